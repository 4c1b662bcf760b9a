package runnable

import "github.com/reglet-dev/runnable-sdk/domain/errors"

// Runnable is the single computation a guest module exposes.
type Runnable interface {
	// Run consumes exactly the bytes the host wrote and returns an owned output, or an
	// error. Errors other than *errors.RunError are reported to the host as host errors.
	Run(input []byte) ([]byte, error)
}

// RunnableFunc adapts an ordinary function to the Runnable interface.
type RunnableFunc func(input []byte) ([]byte, error)

// Run calls f(input).
func (f RunnableFunc) Run(input []byte) ([]byte, error) {
	return f(input)
}

// DefaultRunnable stands in until a real Runnable is registered.
type DefaultRunnable struct{}

// Run always fails with errors.DefaultRunCode and an empty message.
func (DefaultRunnable) Run([]byte) ([]byte, error) {
	return nil, errors.NewRunError(errors.DefaultRunCode, "")
}
