package wasmcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGetCurrentContext(t *testing.T) {
	// Reset store before test
	ResetContext()
	assert.Equal(t, context.Background(), GetCurrentContext(), "should default to background")

	expectedCtx := WithIdent(context.Background(), 42)
	SetCurrentContext(expectedCtx)

	actualCtx := GetCurrentContext()
	assert.Equal(t, expectedCtx, actualCtx, "context mismatch")

	ident, ok := IdentFrom(actualCtx)
	assert.True(t, ok)
	assert.Equal(t, int32(42), ident)

	// Cleanup
	ResetContext()
	assert.Equal(t, context.Background(), GetCurrentContext())
}

func TestIdentFrom_Missing(t *testing.T) {
	_, ok := IdentFrom(context.Background())
	assert.False(t, ok)
}

func TestContextToWire(t *testing.T) {
	wire := ContextToWire(context.Background())
	assert.False(t, wire.InCall)
	assert.Zero(t, wire.Ident)

	wire = ContextToWire(WithIdent(context.Background(), -3))
	assert.True(t, wire.InCall)
	assert.Equal(t, int32(-3), wire.Ident)
}
