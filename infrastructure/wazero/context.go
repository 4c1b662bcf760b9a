package wazero

import (
	"context"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var (
	sinkKey         = &contextKey{name: "callback_sink"}
	runnableNameKey = &contextKey{name: "runnable_name"}
)

// Callback is one return_result or return_error call observed from the guest.
type Callback struct {
	// Err is set when the payload could not be read; Payload is nil in that case.
	Err     error
	Payload []byte
	Region  entities.Region
	// Code is entities.CodeSuccess for return_result.
	Code  int32
	Ident int32
}

// Sink receives the callbacks of one run_e call.
type Sink interface {
	Deliver(ctx context.Context, cb Callback)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, cb Callback)

// Deliver calls f(ctx, cb).
func (f SinkFunc) Deliver(ctx context.Context, cb Callback) {
	f(ctx, cb)
}

// WithSink returns a context that routes guest callbacks to s.
func WithSink(ctx context.Context, s Sink) context.Context {
	return context.WithValue(ctx, sinkKey, s)
}

// SinkFromContext retrieves the callback sink from the context.
func SinkFromContext(ctx context.Context) (Sink, bool) {
	s, ok := ctx.Value(sinkKey).(Sink)
	return s, ok
}

// WithRunnableName adds the runnable's name to the context for log attribution.
func WithRunnableName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, runnableNameKey, name)
}

// RunnableNameFromContext retrieves the runnable name from the context.
func RunnableNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(runnableNameKey).(string)
	return name, ok
}

// GetRunnableName extracts the runnable name from context, falling back to the module name.
func GetRunnableName(ctx context.Context, mod api.Module) string {
	if name, ok := RunnableNameFromContext(ctx); ok {
		return name
	}
	if mod == nil {
		return ""
	}
	return mod.Name()
}
