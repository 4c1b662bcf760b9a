// Package host runs Runnable guests on the wazero runtime.
//
// An Executor owns a wazero runtime with WASI and the env callback module registered.
// Compile a guest once, then Instantiate it as many times as there are workers; each
// Instance serves one invocation at a time through Instance.Run, which performs the whole
// allocate, write, run_e, callback, deallocate sequence and surfaces guest failures as
// *errors.RunError or *errors.HostError.
package host
