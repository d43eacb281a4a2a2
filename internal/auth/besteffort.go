package auth

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	apihttp "github.com/isplink/portal/internal/http"
)

// TaskOptions bounds the retries of a best-effort task
type TaskOptions struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultTaskOptions returns the retry policy used outside tests
func DefaultTaskOptions() TaskOptions {
	return TaskOptions{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Tasks runs fire-and-forget calls in the background. Failures are logged, never returned.
type Tasks struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	opts   TaskOptions
	logger zerolog.Logger
}

// NewTasks creates a task runner; zero options take the defaults
func NewTasks(logger zerolog.Logger, opts TaskOptions) *Tasks {
	if opts.MaxTries == 0 {
		opts = DefaultTaskOptions()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tasks{ctx: ctx, cancel: cancel, opts: opts, logger: logger}
}

// Go starts fn in the background, retrying network and server failures
func (t *Tasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = t.opts.InitialInterval
		b.MaxInterval = t.opts.MaxInterval

		_, err := backoff.Retry(t.ctx, func() (struct{}, error) {
			err := fn(t.ctx)
			if err != nil && !retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		},
			backoff.WithBackOff(b),
			backoff.WithMaxTries(t.opts.MaxTries),
			backoff.WithNotify(func(err error, next time.Duration) {
				t.logger.Debug().Err(err).Str("task", name).Dur("retry_in", next).Msg("best-effort task failed, retrying")
			}),
		)
		if err != nil {
			t.logger.Warn().Err(err).Str("task", name).Msg("best-effort task gave up")
			return
		}
		t.logger.Debug().Str("task", name).Msg("best-effort task done")
	}()
}

// Wait blocks until every started task finished
func (t *Tasks) Wait() {
	t.wg.Wait()
}

// Close cancels pending retries and waits for tasks to return
func (t *Tasks) Close() {
	t.cancel()
	t.wg.Wait()
}

func retryable(err error) bool {
	switch apihttp.KindOf(err) {
	case apihttp.KindNetwork, apihttp.KindServer:
		return true
	default:
		return false
	}
}
