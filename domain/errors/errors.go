// Package errors provides the failure taxonomy a Runnable reports to its host.
// All error types support error unwrapping via errors.As() and errors.Is().
//
// The taxonomy is closed: a failure is either a *RunError, which carries a status code the
// caller can act on, or a *HostError, which is opaque to the caller and always reported
// with HostErrorCode. Any other error value is classified as a host error.
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
)

const (
	// HostErrorCode is the sentinel status reported for every HostError.
	HostErrorCode int32 = -1

	// DefaultRunCode is the status reported by the default Runnable, and the status a
	// RunError carrying code 0 is normalised to.
	DefaultRunCode int32 = 500
)

// Coded is implemented by errors that know the status code they cross the boundary with.
type Coded interface {
	error
	Code() int32
}

// RunError is an application-level failure with a caller-meaningful status code.
// Codes 0 and HostErrorCode are reserved on the wire; Code reports both as DefaultRunCode.
type RunError struct {
	Message string
	Status  int32
}

// NewRunError creates a RunError with the given status code and message.
func NewRunError(code int32, message string) *RunError {
	return &RunError{Status: code, Message: message}
}

func (e *RunError) Error() string {
	return fmt.Sprintf("Run Error(%d): %s", e.Status, e.Message)
}

// Code implements Coded. A zero status would read as success and -1 as a host error, so
// both are reported as DefaultRunCode.
func (e *RunError) Code() int32 {
	if e.Status == entities.CodeSuccess || e.Status == HostErrorCode {
		return DefaultRunCode
	}
	return e.Status
}

// HostError is an infrastructure-level failure. Its code is always HostErrorCode.
type HostError struct {
	Err     error
	Message string
}

// NewHostError creates a HostError with the given message.
func NewHostError(message string) *HostError {
	return &HostError{Message: message}
}

// WrapHostError creates a HostError that keeps err in its chain.
func WrapHostError(message string, err error) *HostError {
	return &HostError{Message: message, Err: err}
}

func (e *HostError) Error() string {
	return fmt.Sprintf("Host Error: %s", e.text())
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// Code implements Coded.
func (e *HostError) Code() int32 {
	return HostErrorCode
}

func (e *HostError) text() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// ToOutcome converts the result of a Runnable into the (code, payload) pair that crosses
// the boundary. A nil error yields CodeSuccess with output as the payload; failures carry
// their message (not the Error() rendering) as UTF-8 bytes.
func ToOutcome(output []byte, err error) entities.Outcome {
	if err == nil {
		return entities.Outcome{Code: entities.CodeSuccess, Payload: output}
	}

	// The outermost coded error decides: a HostError wrapping a RunError is a host error.
	var coded Coded
	if stdErrors.As(err, &coded) {
		switch e := coded.(type) {
		case *RunError:
			return entities.Outcome{Code: e.Code(), Payload: []byte(e.Message)}
		case *HostError:
			return entities.Outcome{Code: HostErrorCode, Payload: []byte(e.text())}
		}
		code := coded.Code()
		if code == entities.CodeSuccess || code == HostErrorCode {
			code = DefaultRunCode
		}
		return entities.Outcome{Code: code, Payload: []byte(err.Error())}
	}

	// Anything outside the taxonomy is an infrastructure failure.
	return entities.Outcome{Code: HostErrorCode, Payload: []byte(err.Error())}
}

// FromOutcome rebuilds the failure a host observed through the error callback.
// It returns nil for a successful outcome.
func FromOutcome(o entities.Outcome) error {
	switch o.Code {
	case entities.CodeSuccess:
		return nil
	case HostErrorCode:
		return NewHostError(string(o.Payload))
	default:
		return NewRunError(o.Code, string(o.Payload))
	}
}

// CodeOf returns the status code err would cross the boundary with.
func CodeOf(err error) int32 {
	return ToOutcome(nil, err).Code
}
