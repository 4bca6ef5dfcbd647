package xlocal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler 按固定间隔重复执行任务。
//
// Every 返回的 cancel 停止后续调度，并返回一个在进行中的任务结束后完成的 context。
// cancel 可以重复调用。
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func() context.Context, err error)
}

// NewCronScheduler 创建基于 robfig/cron 的调度器。
//
// 每次 Every 调用都创建独立的 cron 实例，任务之间互不影响。
// 任务 panic 会被捕获并记录；上一次执行未结束时跳过本次触发。
func NewCronScheduler(logger *slog.Logger) Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &cronScheduler{logger: logger}
}

type cronScheduler struct {
	logger *slog.Logger
}

func (s *cronScheduler) Every(interval time.Duration, fn func()) (func() context.Context, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	l := cronLogger{l: s.logger}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Schedule(fixedDelay(interval), cron.FuncJob(fn))
	c.Start()

	var (
		once sync.Once
		done context.Context
	)
	return func() context.Context {
		once.Do(func() { done = c.Stop() })
		return done
	}, nil
}

// fixedDelay 是固定间隔的 cron.Schedule，不受 cron 表达式秒级精度的限制。
type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// cronLogger 把 cron.Logger 适配到 slog。cron 的调度日志很频繁，降为 Debug。
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("xlocal: cron "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("xlocal: cron "+msg, append([]any{"error", err}, keysAndValues...)...)
}

// =============================================================================
// Pruner
// =============================================================================

// Pruner 是缓存持有的定时清理任务，每个间隔调用一次 Prune。
type Pruner struct {
	interval time.Duration
	cancel   func() context.Context
	runs     atomic.Uint64
	removed  atomic.Uint64
}

// Interval 返回清理间隔。
func (p *Pruner) Interval() time.Duration { return p.interval }

// Runs 返回已完成的清理次数。
func (p *Pruner) Runs() uint64 { return p.runs.Load() }

// Removed 返回累计清理的条目数。
func (p *Pruner) Removed() uint64 { return p.removed.Load() }

// Cancel 停止后续调度，返回的 context 在进行中的清理结束后完成。可重复调用。
func (p *Pruner) Cancel() context.Context {
	return p.cancel()
}

// SchedulePrune 启动定时清理任务。同一缓存同时只能有一个任务，已有任务时返回 ErrPrunerRunning。
func (c *Engine[K, V]) SchedulePrune(interval time.Duration) (*Pruner, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()
	if c.pruner != nil {
		return nil, ErrPrunerRunning
	}

	sched := c.opts.scheduler
	if sched == nil {
		sched = NewCronScheduler(c.opts.logger)
	}
	p := &Pruner{interval: interval}
	cancel, err := sched.Every(interval, func() {
		n := c.Prune()
		p.runs.Add(1)
		p.removed.Add(uint64(n))
		if n > 0 {
			c.opts.logger.Debug("xlocal: pruned", "cache", c.opts.name, "removed", n)
		}
	})
	if err != nil {
		return nil, err
	}
	p.cancel = cancel
	c.pruner = p
	c.opts.logger.Debug("xlocal: prune scheduled", "cache", c.opts.name, "interval", interval)
	return p, nil
}

// Pruner 返回当前的定时清理任务，没有时返回 nil。
func (c *Engine[K, V]) Pruner() *Pruner {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()
	return c.pruner
}

// CancelPrune 停止定时清理任务，返回的 context 在进行中的清理结束后完成。
// 没有任务时返回 nil。之后可以重新调用 SchedulePrune。
func (c *Engine[K, V]) CancelPrune() context.Context {
	c.pruneMu.Lock()
	p := c.pruner
	c.pruner = nil
	c.pruneMu.Unlock()
	if p == nil {
		return nil
	}
	return p.Cancel()
}
