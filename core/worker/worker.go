// Package worker contains long running background workers.
package worker

import (
	"context"
	"time"
)

// Worker is a long running process. Run blocks until ctx is done or the worker is shut down.
type Worker interface {
	Run(ctx context.Context) error
	Shutdown() error
	ShutdownWithTimeout(timeout time.Duration) error
	ShutdownWithContext(ctx context.Context) error
}
