package ports

//go:generate mockgen -destination=mocks/host_callbacks.go -package=mocks . HostCallbacks

import "github.com/reglet-dev/runnable-sdk/domain/entities"

// HostCallbacks defines the functions the host supplies to receive an invocation's outcome.
// Exactly one of them is called per invocation.
type HostCallbacks interface {
	// ReturnResult delivers a successful payload.
	ReturnResult(payload entities.Region, ident int32)

	// ReturnError delivers a failure status and its UTF-8 message.
	ReturnError(code int32, payload entities.Region, ident int32)
}
