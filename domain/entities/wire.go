package entities

// ContextWire is the invocation context attached to messages a guest sends to its host
// outside the run_e call shape (log records).
type ContextWire struct {
	// Ident is the correlation identifier of the in-flight invocation.
	Ident int32 `json:"ident"`

	// InCall is false when the message was produced outside any invocation
	// (module initialisation, for instance), in which case Ident is meaningless.
	InCall bool `json:"in_call"`
}
