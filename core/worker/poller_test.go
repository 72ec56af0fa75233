package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerRunsOnInterval(t *testing.T) {
	mock := clock.NewMock()
	var calls atomic.Int32
	poller := NewPoller("test", 30*time.Second, func(ctx context.Context) error {
		// failures don't stop the poller
		if calls.Add(1) == 2 {
			return errors.New("boom")
		}
		return nil
	}, mock)

	errCh := make(chan error, 1)
	go func() { errCh <- poller.Run(context.Background()) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	for i := int32(2); i <= 4; i++ {
		// wait for the ticker to be registered before advancing
		require.Eventually(t, func() bool {
			mock.Add(30 * time.Second)
			return calls.Load() >= i
		}, time.Second, 5*time.Millisecond)
	}

	require.NoError(t, poller.ShutdownWithTimeout(time.Second))
	require.NoError(t, <-errCh)
	require.NoError(t, poller.Shutdown())
}

func TestPollerStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poller := NewPoller("test", time.Hour, func(ctx context.Context) error { return nil }, clock.NewMock())

	errCh := make(chan error, 1)
	go func() { errCh <- poller.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerInvalidInterval(t *testing.T) {
	poller := NewPoller("test", 0, func(ctx context.Context) error { return nil }, nil)
	assert.ErrorIs(t, poller.Run(context.Background()), errs.InvalidArgument)
}

func TestPollerShutdownBeforeRun(t *testing.T) {
	var calls atomic.Int32
	poller := NewPoller("test", time.Second, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, clock.NewMock())

	errCh := make(chan error, 1)
	go func() { errCh <- poller.Shutdown() }()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown blocked on a poller that never ran")
	}

	assert.ErrorIs(t, poller.Run(context.Background()), errs.Conflict)
	assert.Zero(t, calls.Load())
	assert.NoError(t, poller.ShutdownWithTimeout(time.Second))
}

func TestPollerRunTwice(t *testing.T) {
	poller := NewPoller("test", time.Hour, func(ctx context.Context) error { return nil }, clock.NewMock())

	errCh := make(chan error, 1)
	go func() { errCh <- poller.Run(context.Background()) }()
	require.Eventually(t, func() bool { return poller.running.Load() }, time.Second, time.Millisecond)

	assert.ErrorIs(t, poller.Run(context.Background()), errs.Conflict)
	require.NoError(t, poller.ShutdownWithTimeout(time.Second))
	require.NoError(t, <-errCh)
}
