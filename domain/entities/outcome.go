package entities

// CodeSuccess is the status code of a successful invocation. Any other code routes the
// payload to the host's failure callback.
const CodeSuccess int32 = 0

// Outcome is the (code, payload) pair an invocation produces before it crosses the boundary.
// For failures the payload is the UTF-8 encoded error message.
type Outcome struct {
	Payload []byte
	Code    int32
}

// Success reports whether the outcome is delivered through the success callback.
func (o Outcome) Success() bool {
	return o.Code == CodeSuccess
}
