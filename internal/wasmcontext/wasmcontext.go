// Package wasmcontext tracks the context of the invocation a guest is currently serving.
// Dispatch installs a context carrying the host's ident for the duration of run_e; SDK
// code that talks to the host outside the call shape (logging) reads it back.
package wasmcontext

import (
	stdcontext "context"
	"sync"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
)

// contextKey is a type alias for context value keys to avoid collisions.
type contextKey string

// IdentKey is the context key for the invocation ident.
const IdentKey contextKey = "ident"

// contextStore holds the current context for the guest execution.
// Since WASM is single-threaded, we can use a simple global variable.
var contextStore = struct {
	ctx stdcontext.Context
	sync.RWMutex
}{
	ctx: stdcontext.Background(),
}

// WithIdent returns a copy of ctx carrying ident.
func WithIdent(ctx stdcontext.Context, ident int32) stdcontext.Context {
	return stdcontext.WithValue(ctx, IdentKey, ident)
}

// IdentFrom extracts the invocation ident from ctx.
func IdentFrom(ctx stdcontext.Context) (int32, bool) {
	ident, ok := ctx.Value(IdentKey).(int32)
	return ident, ok
}

// SetCurrentContext sets the current execution context.
func SetCurrentContext(ctx stdcontext.Context) {
	contextStore.Lock()
	defer contextStore.Unlock()
	contextStore.ctx = ctx
}

// GetCurrentContext returns the current execution context, or context.Background()
// outside of an invocation.
func GetCurrentContext() stdcontext.Context {
	contextStore.RLock()
	defer contextStore.RUnlock()
	if contextStore.ctx == nil {
		return stdcontext.Background()
	}
	return contextStore.ctx
}

// ResetContext resets the global context to background.
// It should be called (usually via defer) after an invocation completes.
func ResetContext() {
	SetCurrentContext(stdcontext.Background())
}

// ContextToWire converts ctx into the wire form attached to guest-to-host messages.
func ContextToWire(ctx stdcontext.Context) entities.ContextWire {
	ident, ok := IdentFrom(ctx)
	return entities.ContextWire{Ident: ident, InCall: ok}
}
