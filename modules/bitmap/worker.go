package bitmap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/core/worker"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var _ worker.Worker = (*Worker)(nil)

const cleanupTimeout = 30 * time.Second

// Runner is a component of the module that blocks until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Worker runs the stream client, the detection processor and the tip poller together.
// If one of them fails, the others are stopped.
type Worker struct {
	stream    Runner
	processor Runner
	tipPoller Runner

	cleanupOnce  sync.Once
	cleanupFuncs []func(context.Context) error

	running  atomic.Bool
	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// NewWorker creates the module worker. tipPoller may be nil.
func NewWorker(stream, processor, tipPoller Runner, cleanupFuncs []func(context.Context) error) *Worker {
	return &Worker{
		stream:       stream,
		processor:    processor,
		tipPoller:    tipPoller,
		cleanupFuncs: cleanupFuncs,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.Wrap(errs.Conflict, "bitmap worker is already running or has been stopped")
	}
	defer close(w.done)
	defer w.cleanup(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return errors.Wrap(w.processor.Run(gctx), "processor stopped")
	})
	group.Go(func() error {
		return errors.Wrap(w.stream.Run(gctx), "stream client stopped")
	})
	if w.tipPoller != nil {
		group.Go(func() error {
			return errors.Wrap(w.tipPoller.Run(gctx), "tip poller stopped")
		})
	}

	logger.InfoContext(ctx, "Started bitmap worker")
	if err := group.Wait(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (w *Worker) Shutdown() error {
	return w.ShutdownWithContext(context.Background())
}

func (w *Worker) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return w.ShutdownWithContext(ctx)
}

// ShutdownWithContext stops a running worker and waits for it, or releases the resources of a worker that never ran.
func (w *Worker) ShutdownWithContext(ctx context.Context) (err error) {
	w.quitOnce.Do(func() {
		close(w.quit)
	})
	if !w.running.CompareAndSwap(false, true) {
		select {
		case <-w.done:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "bitmap worker shutdown context canceled")
		}
		return nil
	}
	close(w.done)
	w.cleanup(ctx)
	return nil
}

func (w *Worker) cleanup(ctx context.Context) {
	w.cleanupOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		for _, cleanup := range w.cleanupFuncs {
			if err := cleanup(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to cleanup bitmap worker resources", err)
			}
		}
	})
}
