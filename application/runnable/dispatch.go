package runnable

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
	"github.com/reglet-dev/runnable-sdk/domain/errors"
	"github.com/reglet-dev/runnable-sdk/domain/ports"
	wasmcontext "github.com/reglet-dev/runnable-sdk/internal/wasmcontext"
)

// Dispatcher serves run_e calls for one guest instance.
type Dispatcher struct {
	slot   *Slot
	memory ports.Memory
	host   ports.HostCallbacks
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger dispatch reports boundary faults to.
// By default it logs through slog.Default() as of each call.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher that runs the Runnable held by slot, reads input and
// pins output through memory, and reports outcomes to host.
func NewDispatcher(slot *Slot, memory ports.Memory, host ports.HostCallbacks, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		slot:   slot,
		memory: memory,
		host:   host,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one invocation: it records ident, copies the size bytes at ptr into an
// owned buffer, runs the active Runnable, and calls exactly one host callback with the
// payload region and ident. The payload region stays pinned until the host deallocates it.
//
// Dispatch never releases the input region; that region belongs to the host.
func (d *Dispatcher) Dispatch(ptr, size uint32, ident int32) {
	d.slot.begin(ident)

	ctx := wasmcontext.WithIdent(context.Background(), ident)
	wasmcontext.SetCurrentContext(ctx)
	defer wasmcontext.ResetContext()

	outcome := d.invoke(ctx, ptr, size)

	payload, err := d.memory.Expose(outcome.Payload)
	if err != nil {
		// The payload cannot be pinned, so the host gets the bare failure code.
		d.log().ErrorContext(ctx, "sdk: failed to expose payload",
			"ident", ident, "code", outcome.Code, "size", len(outcome.Payload), "error", err)
		d.host.ReturnError(errors.HostErrorCode, entities.Region{}, ident)
		return
	}

	if outcome.Success() {
		d.host.ReturnResult(payload, ident)
		return
	}
	d.host.ReturnError(outcome.Code, payload, ident)
}

// invoke reconstructs the input and runs the active Runnable.
func (d *Dispatcher) invoke(ctx context.Context, ptr, size uint32) entities.Outcome {
	input, err := d.memory.Reconstruct(ptr, size)
	if err != nil {
		d.log().ErrorContext(ctx, "sdk: rejected input region",
			"region", entities.Region{Ptr: ptr, Size: size}.String(), "error", err)
		return errors.ToOutcome(nil, errors.WrapHostError("invalid input region", err))
	}

	output, err := d.slot.Active().Run(input)
	return errors.ToOutcome(output, err)
}

func (d *Dispatcher) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}
