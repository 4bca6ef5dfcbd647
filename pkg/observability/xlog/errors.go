package xlog

import "errors"

// Builder 和 Rotation 返回的错误。
var (
	// ErrUnknownLevel 表示无法识别的日志级别。
	ErrUnknownLevel = errors.New("xlog: unknown level")
	// ErrUnknownFormat 表示无法识别的输出格式。
	ErrUnknownFormat = errors.New("xlog: unknown format")
	// ErrNilOutput 表示输出目标为 nil。
	ErrNilOutput = errors.New("xlog: output cannot be nil")

	// ErrEmptyFilename 表示轮转文件名为空。
	ErrEmptyFilename = errors.New("xlog: rotation filename cannot be empty")
	// ErrInvalidMaxSize 表示单文件大小超出范围。
	ErrInvalidMaxSize = errors.New("xlog: invalid rotation max size")
	// ErrInvalidMaxBackups 表示备份数量超出范围。
	ErrInvalidMaxBackups = errors.New("xlog: invalid rotation max backups")
	// ErrInvalidMaxAge 表示保留天数超出范围。
	ErrInvalidMaxAge = errors.New("xlog: invalid rotation max age")
	// ErrNoCleanupPolicy 表示备份数量和保留天数同时为 0，备份会无限增长。
	ErrNoCleanupPolicy = errors.New("xlog: rotation has no cleanup policy")
)
