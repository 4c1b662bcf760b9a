// Package runnable is the guest side of the Runnable protocol.
//
// A guest module implements Runnable and registers it once, before the host makes its
// first call:
//
//	type echo struct{}
//
//	func (echo) Run(input []byte) ([]byte, error) {
//	    return input, nil
//	}
//
//	func init() {
//	    runnable.Use(echo{})
//	}
//
//	func main() {}
//
// Built with GOOS=wasip1 -buildmode=c-shared, the module exports allocate, deallocate and
// run_e, and imports return_result and return_error from the host's "env" module. For
// every run_e call the Dispatcher copies the host's input into an owned buffer, runs the
// registered Runnable, and reports the result, or a failure code and message, through
// exactly one of the two imports.
//
// Failures are reported with *errors.RunError for application outcomes the caller can act
// on, and *errors.HostError for everything else (see package domain/errors). Until a
// Runnable is registered, every call fails with Run Error(500) and an empty message.
package runnable
