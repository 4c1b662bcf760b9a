package runnable

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/reglet-dev/runnable-sdk/domain/errors"
	wasmcontext "github.com/reglet-dev/runnable-sdk/internal/wasmcontext"
)

// Middleware wraps a Runnable to add cross-cutting behavior.
type Middleware func(next Runnable) Runnable

// Chain wraps r with mw. Middleware executes in FIFO order (first listed wraps outermost,
// onion model).
func Chain(r Runnable, mw ...Middleware) Runnable {
	for i := len(mw) - 1; i >= 0; i-- {
		r = mw[i](r)
	}
	return r
}

// Recover returns a middleware that converts a panic in the wrapped Runnable into a host
// error instead of trapping the instance.
//
// Without it a panic escapes run_e and the host must discard the instance.
func Recover() Middleware {
	return func(next Runnable) Runnable {
		return RunnableFunc(func(input []byte) (output []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("sdk: runnable panic recovered", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
					output = nil
					err = errors.NewHostError(fmt.Sprintf("runnable panic: %v", r))
				}
			}()
			return next.Run(input)
		})
	}
}

// Logging returns a middleware that logs every invocation at debug level, and failures
// at warn level. A nil logger logs through slog.Default().
func Logging(logger *slog.Logger) Middleware {
	return func(next Runnable) Runnable {
		return RunnableFunc(func(input []byte) ([]byte, error) {
			l := logger
			if l == nil {
				l = slog.Default()
			}
			ctx := wasmcontext.GetCurrentContext()
			ident, _ := wasmcontext.IdentFrom(ctx)

			l.DebugContext(ctx, "sdk: invoking runnable", "ident", ident, "input_size", len(input))
			output, err := next.Run(input)
			if err != nil {
				l.WarnContext(ctx, "sdk: runnable failed", "ident", ident, "code", errors.CodeOf(err), "error", err)
				return output, err
			}
			l.DebugContext(ctx, "sdk: runnable completed", "ident", ident, "output_size", len(output))
			return output, nil
		})
	}
}
