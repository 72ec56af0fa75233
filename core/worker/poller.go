package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
)

var _ Worker = (*Poller)(nil)

// Task is a unit of work run by a Poller on every tick.
type Task func(ctx context.Context) error

// Poller runs a task once on start and then at a fixed interval.
// A failed task is logged and retried on the next tick.
type Poller struct {
	name     string
	interval time.Duration
	task     Task
	clock    clock.Clock

	running  atomic.Bool
	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func NewPoller(name string, interval time.Duration, task Task, clk clock.Clock) *Poller {
	if clk == nil {
		clk = clock.New()
	}
	return &Poller{
		name:     name,
		interval: interval,
		task:     task,
		clock:    clk,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller) Shutdown() error {
	return p.ShutdownWithContext(context.Background())
}

func (p *Poller) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.ShutdownWithContext(ctx)
}

// ShutdownWithContext stops the poller and waits for Run to return.
// A poller that never ran is marked as stopped and can't be run afterwards.
func (p *Poller) ShutdownWithContext(ctx context.Context) error {
	p.quitOnce.Do(func() {
		close(p.quit)
	})
	if p.running.CompareAndSwap(false, true) {
		close(p.done)
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "poller shutdown context canceled")
	}
}

func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.Wrap(errs.Conflict, "poller is already running or has been stopped")
	}
	defer close(p.done)
	if p.interval <= 0 {
		return errors.Wrapf(errs.InvalidArgument, "invalid polling interval %s", p.interval)
	}

	ctx = logger.WithContext(ctx, slog.String("poller", p.name))

	p.runTask(ctx)

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping poller")
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.runTask(ctx)
		}
	}
}

func (p *Poller) runTask(ctx context.Context) {
	start := p.clock.Now()
	if err := p.task(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.WarnContext(ctx, "Poller task failed, retrying on next interval", slogx.Error(err))
		return
	}
	logger.DebugContext(ctx, "Poller task completed", slogx.Duration("duration", p.clock.Since(start)))
}
