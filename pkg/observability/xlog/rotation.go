package xlog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 轮转默认值与上限
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30

	maxSizeMB  = 10240 // 10 GB
	maxBackups = 1024
	maxAgeDays = 3650
)

// Rotation 是按文件大小轮转的配置。零值字段在 Build 时取默认值，
// 因此配置文件只需写 filename。
type Rotation struct {
	// Filename 日志文件路径，父目录不存在时自动创建。
	Filename string `koanf:"filename" json:"filename"`
	// MaxSizeMB 单个文件最大大小（MB），0 取 DefaultMaxSizeMB。
	MaxSizeMB int `koanf:"max_size_mb" json:"max_size_mb"`
	// MaxBackups 保留备份数，0 取 DefaultMaxBackups，-1 表示只按天数清理。
	MaxBackups int `koanf:"max_backups" json:"max_backups"`
	// MaxAgeDays 备份保留天数，0 取 DefaultMaxAgeDays，-1 表示只按数量清理。
	MaxAgeDays int `koanf:"max_age_days" json:"max_age_days"`
	// Compress 是否 gzip 压缩备份。
	Compress bool `koanf:"compress" json:"compress"`
	// LocalTime 备份文件名是否使用本地时间，默认 UTC。
	LocalTime bool `koanf:"local_time" json:"local_time"`
}

// withDefaults 填充默认值，并把 -1 还原为 lumberjack 的 "不限制" (0)。
func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB == 0 {
		r.MaxSizeMB = DefaultMaxSizeMB
	}
	switch r.MaxBackups {
	case 0:
		r.MaxBackups = DefaultMaxBackups
	case -1:
		r.MaxBackups = 0
	}
	switch r.MaxAgeDays {
	case 0:
		r.MaxAgeDays = DefaultMaxAgeDays
	case -1:
		r.MaxAgeDays = 0
	}
	return r
}

// Validate 校验填充默认值之后的配置。
func (r Rotation) Validate() error {
	if r.Filename == "" {
		return ErrEmptyFilename
	}
	r = r.withDefaults()
	if r.MaxSizeMB < 0 || r.MaxSizeMB > maxSizeMB {
		return fmt.Errorf("%w: got %d, want 1~%d", ErrInvalidMaxSize, r.MaxSizeMB, maxSizeMB)
	}
	if r.MaxBackups < 0 || r.MaxBackups > maxBackups {
		return fmt.Errorf("%w: got %d, want -1~%d", ErrInvalidMaxBackups, r.MaxBackups, maxBackups)
	}
	if r.MaxAgeDays < 0 || r.MaxAgeDays > maxAgeDays {
		return fmt.Errorf("%w: got %d, want -1~%d", ErrInvalidMaxAge, r.MaxAgeDays, maxAgeDays)
	}
	if r.MaxBackups == 0 && r.MaxAgeDays == 0 {
		return ErrNoCleanupPolicy
	}
	return nil
}

// open 创建 lumberjack 写入器。文件在首次写入时才打开。
func (r Rotation) open() (*lumberjack.Logger, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r = r.withDefaults()
	path := filepath.Clean(r.Filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("xlog: create log dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
		LocalTime:  r.LocalTime,
	}, nil
}
