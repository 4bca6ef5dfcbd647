package xlocal

import (
	"fmt"
	"time"
)

// Spec 是缓存的声明式描述，通常来自配置文件。
//
// 与 NewLRU 的编译期约束不同，Spec 在运行期校验策略与保护方式的组合。
type Spec struct {
	// Policy 淘汰策略。
	Policy Policy `koanf:"policy" json:"policy"`
	// Guard 并发保护方式。
	Guard GuardKind `koanf:"guard" json:"guard"`
	// Capacity 容量上限，Timed 和 Weak 策略忽略此值。
	Capacity int `koanf:"capacity" json:"capacity"`
	// DefaultTTL 默认 TTL。
	DefaultTTL time.Duration `koanf:"default_ttl" json:"default_ttl"`
	// PruneInterval 定时清理间隔，0 表示不启动。
	PruneInterval time.Duration `koanf:"prune_interval" json:"prune_interval"`
	// Disabled 为 true 时 Build 返回 Noop。
	Disabled bool `koanf:"disabled" json:"disabled"`
}

// Validate 校验 Spec。Disabled 的 Spec 只校验策略和保护方式。
func (s Spec) Validate() error {
	if !s.Policy.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, int(s.Policy))
	}
	if _, err := guardFor(s.Guard); err != nil {
		return err
	}
	if s.Disabled {
		return nil
	}
	if err := (Config{Capacity: s.Capacity, DefaultTTL: s.DefaultTTL}).validate(); err != nil {
		return err
	}
	if s.PruneInterval < 0 {
		return ErrInvalidInterval
	}
	if s.Policy.ReordersOnRead() && s.Guard == GuardRW {
		return fmt.Errorf("%w: %s with %s", ErrIncompatibleGuard, s.Policy, s.Guard)
	}
	return nil
}

// Build 按 Spec 创建缓存。Disabled 时返回 Noop。
// Weak 策略需要指针值类型，Build 返回 ErrWeakNotBuildable，应改用 BuildWeak。
func Build[K comparable, V any](s Spec, opts ...Option[K, V]) (Cache[K, V], error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Disabled {
		return NewNoop[K, V](), nil
	}
	g, err := guardFor(s.Guard)
	if err != nil {
		return nil, err
	}
	if s.PruneInterval > 0 {
		opts = append(opts, WithPruneInterval[K, V](s.PruneInterval))
	}
	cfg := Config{Capacity: s.Capacity, DefaultTTL: s.DefaultTTL}

	switch s.Policy {
	case PolicyFIFO:
		return asCache(NewFIFO(cfg, g, opts...))
	case PolicyLRU:
		rg, ok := g.(ReorderingGuard)
		if !ok {
			return nil, ErrIncompatibleGuard
		}
		return asCache(NewLRU(cfg, rg, opts...))
	case PolicyLFU:
		return asCache(NewLFU(cfg, g, opts...))
	case PolicyTimed:
		return asCache(NewTimed(s.DefaultTTL, g, opts...))
	case PolicyWeak:
		return nil, ErrWeakNotBuildable
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(s.Policy))
	}
}

// BuildWeak 按 Spec 创建值为 *T 的缓存。Policy 为 Weak 时创建弱引用缓存，
// 其他策略与 Build 相同。
func BuildWeak[K comparable, T any](s Spec, opts ...Option[K, *T]) (Cache[K, *T], error) {
	if s.Policy != PolicyWeak || s.Disabled {
		return Build(s, opts...)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	g, err := guardFor(s.Guard)
	if err != nil {
		return nil, err
	}
	if s.PruneInterval > 0 {
		opts = append(opts, WithPruneInterval[K, *T](s.PruneInterval))
	}
	return asCache(NewWeak[K, T](s.DefaultTTL, g, opts...))
}

// asCache 避免把 nil *Engine 包装成非 nil 的接口值。
func asCache[K comparable, V any](c *Engine[K, V], err error) (Cache[K, V], error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
