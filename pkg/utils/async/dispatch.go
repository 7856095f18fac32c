package async

import (
	"context"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
)

// Dispatch runs handler in a new goroutine detached from ctx cancellation.
//
// The logger of ctx is carried over and the job name is attached to it.
// Panics are recovered and logged with their stack, returned errors are
// logged. The returned channel is closed once handler has returned.
//
// Used for fire-and-forget work such as launching an external image
// viewer, which must keep running after the login flow moves on.
func Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) <-chan struct{} {
	logger := ctxlog.From(ctx).With("job", name)
	jobCtx := ctxlog.With(context.Background(), logger)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in async job",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(jobCtx); err != nil {
			logger.Error("async job failed", "error", err)
		}
	}()

	return done
}
