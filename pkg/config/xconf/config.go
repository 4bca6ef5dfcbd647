package xconf

import (
	"fmt"
	"maps"
	"slices"

	"github.com/omeyang/xkitcache/pkg/observability/xlog"
	"github.com/omeyang/xkitcache/pkg/storage/xlocal"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// File 是配置文件的完整内容。
//
//	log:
//	  level: info
//	  format: text
//	  rotation: {filename: /var/log/cache.log, max_backups: 3}
//	caches:
//	  sessions: {policy: lru, guard: mutex, capacity: 1000, default_ttl: 5m}
//	  tokens:   {policy: timed, guard: optimistic, default_ttl: 30s, prune_interval: 10s}
//	  off:      {policy: fifo, disabled: true}
type File struct {
	Log    xlog.Config            `koanf:"log"`
	Caches map[string]xlocal.Spec `koanf:"caches"`

	path   string
	format Format
}

// Path 返回配置文件路径，从字节数据加载时为空。
func (f *File) Path() string { return f.path }

// Format 返回配置格式。
func (f *File) Format() Format { return f.format }

// Names 返回按名称排序的缓存名。
func (f *File) Names() []string {
	return slices.Sorted(maps.Keys(f.Caches))
}

// Specs 校验并返回所有缓存的 Spec。任意一个无效时返回 ErrInvalidCache，
// 错误信息包含缓存名；按名称顺序报告第一个错误。
func (f *File) Specs() (map[string]xlocal.Spec, error) {
	out := make(map[string]xlocal.Spec, len(f.Caches))
	for _, name := range f.Names() {
		s := f.Caches[name]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidCache, name, err)
		}
		out[name] = s
	}
	return out, nil
}
