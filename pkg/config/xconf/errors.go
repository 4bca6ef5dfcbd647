package xconf

import "errors"

// 配置加载和解析相关错误。
var (
	// ErrEmptyPath 表示配置文件路径为空。
	ErrEmptyPath = errors.New("xconf: empty config path")

	// ErrUnsupportedFormat 表示不支持的配置格式。
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")

	// ErrLoadFailed 表示配置加载失败。
	ErrLoadFailed = errors.New("xconf: failed to load config")

	// ErrParseFailed 表示配置解析失败。
	ErrParseFailed = errors.New("xconf: failed to parse config")

	// ErrUnmarshalFailed 表示配置反序列化失败。
	ErrUnmarshalFailed = errors.New("xconf: failed to unmarshal config")

	// ErrInvalidCache 表示某个缓存的配置无效。
	ErrInvalidCache = errors.New("xconf: invalid cache")
)

// 配置监视相关错误。
var (
	// ErrNilCallback 表示监视回调为 nil。
	ErrNilCallback = errors.New("xconf: watch callback cannot be nil")

	// ErrInvalidDebounce 表示防抖时间无效。
	ErrInvalidDebounce = errors.New("xconf: debounce must be positive")
)
