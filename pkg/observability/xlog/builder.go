package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ReplaceAttrFunc 属性替换函数，用于字段重命名、脱敏和过滤。
// 返回空 Key 的 Attr 时该属性被移除。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// Config 是日志的声明式配置，通常来自配置文件。
type Config struct {
	Level     Level     `koanf:"level" json:"level"`
	Format    string    `koanf:"format" json:"format"`
	AddSource bool      `koanf:"add_source" json:"add_source"`
	Rotation  *Rotation `koanf:"rotation" json:"rotation"`
}

// Builder 日志配置构建器
//
// first-error-wins：遇到第一个配置错误后，后续 Set 操作不会覆盖它，Build 返回该错误。
type Builder struct {
	output      io.Writer
	levelVar    *slog.LevelVar
	format      string
	addSource   bool
	replaceAttr ReplaceAttrFunc
	attrs       []slog.Attr
	rotation    *Rotation
	err         error
}

// New 创建配置构建器：stderr、Info 级别、text 格式。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: levelVar,
		format:   "text",
	}
}

// FromConfig 按 Config 创建构建器。
func FromConfig(c Config) *Builder {
	b := New().
		SetLevel(c.Level).
		SetFormat(c.Format).
		SetAddSource(c.AddSource)
	if c.Rotation != nil {
		b.SetRotation(*c.Rotation)
	}
	return b
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		return b.fail(ErrNilOutput)
	}
	b.output = w
	b.rotation = nil
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(level.Slog())
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		return b.fail(err)
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json。空值使用 text。
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		return b.fail(fmt.Errorf("%w: %q", ErrUnknownFormat, format))
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetRotation 把日志写入按大小轮转的文件，覆盖 SetOutput。
func (b *Builder) SetRotation(r Rotation) *Builder {
	if err := r.Validate(); err != nil {
		return b.fail(err)
	}
	b.rotation = &r
	return b
}

// SetReplaceAttr 设置属性替换函数
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// SetAttrs 添加每条日志都携带的固定属性，在 Build 时一次性注入。
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// Build 构建 Logger
//
// 返回值：
//   - *slog.Logger: 日志实例
//   - *slog.LevelVar: 级别控制，运行时调用 Set 即时生效
//   - func() error: 清理函数，关闭轮转文件；幂等
//   - error: 配置错误
func (b *Builder) Build() (*slog.Logger, *slog.LevelVar, func() error, error) {
	if b.err != nil {
		return nil, nil, nil, b.err
	}

	output := b.output
	var closer io.Closer
	if b.rotation != nil {
		w, err := b.rotation.open()
		if err != nil {
			return nil, nil, nil, err
		}
		output, closer = w, w
	}

	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.replaceAttr,
	}
	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	var once sync.Once
	cleanup := func() error {
		var err error
		once.Do(func() {
			if closer != nil {
				err = closer.Close()
			}
		})
		return err
	}
	return slog.New(handler), b.levelVar, cleanup, nil
}
