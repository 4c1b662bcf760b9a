// Package wazero registers the host side of the Runnable ABI with the wazero runtime.
//
// A guest imports three functions from the "env" module:
//
//   - return_result(ptr, size, ident i32) delivers a success payload
//   - return_error(code, ptr, size, ident i32) delivers a failure code and message
//   - log_message(packed i64) forwards a structured log record (optional)
//
// The adapter reads the guest memory behind each callback, copies it out, and hands it to
// the Sink carried by the context of the run_e call that triggered it. Host modules are
// shared by every instance in a runtime, so all per-call state travels in the context.
//
// # Basic Usage
//
//	runtime := wazero.NewRuntime(ctx)
//	err := adapter.RegisterWithRuntime(ctx, runtime,
//	    adapter.WithLogger(logger),
//	    adapter.WithMaxPayloadSize(1 << 20),
//	)
//
//	ctx = adapter.WithSink(ctx, adapter.SinkFunc(func(ctx context.Context, cb adapter.Callback) {
//	    // record cb
//	}))
//	_, err = runE.Call(ctx, ptr, size, ident)
//
// # Custom Handlers
//
// Extra host functions can be exported from the same module with WithCustomHandler.
package wazero
