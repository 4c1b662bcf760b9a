package runnable

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNilRunnable is returned when registering a nil Runnable.
	ErrNilRunnable = errors.New("runnable: cannot register nil runnable")

	// ErrAlreadyRegistered is returned when a slot already holds a Runnable.
	ErrAlreadyRegistered = errors.New("runnable: already registered")

	// ErrSlotSealed is returned when registering after the first dispatch.
	ErrSlotSealed = errors.New("runnable: registration closed after first dispatch")
)

// Slot holds the active Runnable of one guest instance and the ident of the invocation it
// is serving. The Runnable is set once, before the first dispatch, and read-only after.
//
// A Slot is not synchronised: the sandbox drives one invocation at a time, and each
// instance owns its own Slot.
type Slot struct {
	runnable Runnable
	ident    int32
	sealed   bool
}

// Set registers r as the slot's Runnable.
func (s *Slot) Set(r Runnable) error {
	switch {
	case r == nil:
		return ErrNilRunnable
	case s.sealed:
		return ErrSlotSealed
	case s.runnable != nil:
		return fmt.Errorf("%w: %T", ErrAlreadyRegistered, s.runnable)
	}
	s.runnable = r
	return nil
}

// Active returns the registered Runnable, or DefaultRunnable if none was registered.
func (s *Slot) Active() Runnable {
	if s.runnable == nil {
		return DefaultRunnable{}
	}
	return s.runnable
}

// Ident returns the ident of the current (or most recent) invocation.
func (s *Slot) Ident() int32 {
	return s.ident
}

// begin records the ident of a new invocation and closes registration.
func (s *Slot) begin(ident int32) {
	s.ident = ident
	s.sealed = true
}

// defaultSlot is the process-wide slot behind the run_e export.
var defaultSlot = &Slot{}

// DefaultSlot returns the process-wide slot.
func DefaultSlot() *Slot {
	return defaultSlot
}

// Use registers r as the module's Runnable. Guest authors call it from init().
// A second registration, or one after the host's first call, is ignored with a warning.
func Use(r Runnable) {
	if err := defaultSlot.Set(r); err != nil {
		slog.Warn("sdk: runnable registration ignored", "error", err)
		return
	}
	slog.Debug("sdk: runnable registered", "type", fmt.Sprintf("%T", r))
}

// Ident returns the ident of the invocation the module is serving.
func Ident() int32 {
	return defaultSlot.Ident()
}
