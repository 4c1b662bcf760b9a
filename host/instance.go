package host

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	domainerrors "github.com/reglet-dev/runnable-sdk/domain/errors"
	"github.com/reglet-dev/runnable-sdk/domain/entities"
	adapter "github.com/reglet-dev/runnable-sdk/infrastructure/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Instance is one instantiated guest. Its Run method is safe for concurrent use, but calls
// are serialised: a guest serves a single invocation at a time.
type Instance struct {
	module     api.Module
	allocate   api.Function
	deallocate api.Function
	runE       api.Function
	logger     *zap.Logger
	name       string
	mu         sync.Mutex
	maxPayload uint32
	lastIdent  int32
	broken     bool
	closed     bool
}

// Name returns the name of the module the instance was created from.
func (i *Instance) Name() string {
	return i.name
}

// Run invokes the guest's Runnable with input and returns its output.
//
// A failure the Runnable reports comes back as *errors.RunError or *errors.HostError.
// Misbehaving guests yield ErrIdentMismatch, ErrNoCallback or ErrDuplicateCallback. A
// guest that traps, or is interrupted because ctx ended, leaves the instance broken and
// every later call returns ErrInstanceBroken.
func (i *Instance) Run(ctx context.Context, input []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch {
	case i.closed:
		return nil, ErrInstanceClosed
	case i.broken:
		return nil, ErrInstanceBroken
	}
	if uint64(len(input)) > uint64(i.maxPayload) {
		return nil, fmt.Errorf("%w: input is %d bytes, limit %d", ErrPayloadTooLarge, len(input), i.maxPayload)
	}

	ident := i.nextIdent()
	call := &invocation{ident: ident}
	callCtx := adapter.WithRunnableName(adapter.WithSink(ctx, call), i.name)
	start := time.Now()

	in, err := i.writeInput(callCtx, input)
	if err != nil {
		return nil, i.breakWith(ctx, "writing input", err)
	}

	if _, err := i.runE.Call(callCtx, uint64(in.Ptr), uint64(in.Size), api.EncodeI32(ident)); err != nil {
		return nil, i.breakWith(ctx, "run_e", err)
	}

	// The payload copies are already taken; hand every region back, then the input.
	for _, region := range call.regions {
		if err := i.release(callCtx, region); err != nil {
			return nil, i.breakWith(ctx, "releasing payload", err)
		}
	}
	if err := i.release(callCtx, in); err != nil {
		return nil, i.breakWith(ctx, "releasing input", err)
	}

	logger := i.logger.With(zap.Int32("ident", ident), zap.Duration("elapsed", time.Since(start)))
	if call.err != nil {
		logger.Warn("invalid callback", zap.Error(call.err))
		return nil, call.err
	}
	if !call.done {
		logger.Warn("no callback")
		return nil, fmt.Errorf("%w (ident %d)", ErrNoCallback, ident)
	}

	logger.Debug("invocation complete", zap.Int32("code", call.outcome.Code), zap.Int("payload_bytes", len(call.outcome.Payload)))
	if err := domainerrors.FromOutcome(call.outcome); err != nil {
		return nil, err
	}
	return call.outcome.Payload, nil
}

// Close tears the guest down. Pending and later calls return ErrInstanceClosed.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.module.Close(ctx)
}

// Healthy reports whether the instance can still serve invocations.
func (i *Instance) Healthy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	return !i.closed && !i.broken
}

// nextIdent returns a fresh positive ident. Callers hold mu.
func (i *Instance) nextIdent() int32 {
	if i.lastIdent == math.MaxInt32 {
		i.lastIdent = 0
	}
	i.lastIdent++
	return i.lastIdent
}

// writeInput allocates a guest region for input and fills it.
func (i *Instance) writeInput(ctx context.Context, input []byte) (entities.Region, error) {
	size := uint32(len(input)) //nolint:gosec // G115: bounded by maxPayload
	results, err := i.allocate.Call(ctx, uint64(size))
	if err != nil {
		return entities.Region{}, fmt.Errorf("allocate(%d): %w", size, err)
	}
	if len(results) == 0 {
		return entities.Region{}, fmt.Errorf("allocate(%d) returned no results", size)
	}

	region := entities.Region{Ptr: api.DecodeU32(results[0]), Size: size}
	if region.Ptr == 0 {
		return entities.Region{}, fmt.Errorf("allocate(%d) returned a null pointer", size)
	}
	if size > 0 && !i.module.Memory().Write(region.Ptr, input) {
		return entities.Region{}, fmt.Errorf("input region %s is outside guest memory", region)
	}
	return region, nil
}

func (i *Instance) release(ctx context.Context, region entities.Region) error {
	if region.IsZero() {
		return nil
	}
	if _, err := i.deallocate.Call(ctx, uint64(region.Ptr), uint64(region.Size)); err != nil {
		return fmt.Errorf("deallocate%s: %w", region, err)
	}
	return nil
}

// breakWith marks the instance unusable after a guest fault. Callers hold mu.
func (i *Instance) breakWith(ctx context.Context, stage string, err error) error {
	i.broken = true
	if cause := context.Cause(ctx); cause != nil {
		i.logger.Warn("invocation interrupted", zap.String("stage", stage), zap.Error(cause))
		return fmt.Errorf("%w: %s interrupted: %w", ErrInstanceBroken, stage, cause)
	}
	i.logger.Error("guest fault", zap.String("stage", stage), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrInstanceBroken, stage, err)
}

// invocation collects the callbacks of one run_e call.
type invocation struct {
	err     error
	regions []entities.Region
	outcome entities.Outcome
	ident   int32
	done    bool
}

// Deliver implements adapter.Sink.
func (c *invocation) Deliver(_ context.Context, cb adapter.Callback) {
	// The guest pinned the region whether or not its payload was readable.
	if !cb.Region.IsZero() {
		c.regions = append(c.regions, cb.Region)
	}

	switch {
	case cb.Ident != c.ident:
		c.fail(fmt.Errorf("%w: got %d, want %d", ErrIdentMismatch, cb.Ident, c.ident))
	case c.done:
		c.fail(fmt.Errorf("%w (ident %d)", ErrDuplicateCallback, c.ident))
	case cb.Err != nil:
		c.done = true
		c.fail(domainerrors.WrapHostError("unreadable callback payload", cb.Err))
	default:
		c.done = true
		c.outcome = entities.Outcome{Code: cb.Code, Payload: cb.Payload}
	}
}

// fail keeps the first error.
func (c *invocation) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}
