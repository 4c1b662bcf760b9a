package host

import (
	"errors"

	adapter "github.com/reglet-dev/runnable-sdk/infrastructure/wazero"
)

var (
	// ErrMissingExport is returned when a guest lacks one of the Runnable exports.
	ErrMissingExport = errors.New("guest is missing a required export")

	// ErrIdentMismatch is returned when a guest answers with an ident other than the one it was called with.
	ErrIdentMismatch = errors.New("callback ident does not match the invocation")

	// ErrNoCallback is returned when run_e returns without calling back.
	ErrNoCallback = errors.New("guest returned without a result or error callback")

	// ErrDuplicateCallback is returned when a guest calls back more than once for one invocation.
	ErrDuplicateCallback = errors.New("guest called back more than once")

	// ErrPayloadTooLarge is returned when an input or callback payload exceeds the configured limit.
	ErrPayloadTooLarge = adapter.ErrPayloadTooLarge

	// ErrInstanceBroken is returned by an Instance whose guest trapped or was interrupted.
	// The guest's memory can no longer be trusted; discard the instance.
	ErrInstanceBroken = errors.New("instance is no longer usable")

	// ErrInstanceClosed is returned by an Instance after Close.
	ErrInstanceClosed = errors.New("instance is closed")
)
