// Package pool schedules invocations of one Runnable across a set of guest instances.
//
// Every worker owns its own instance, so the single-invocation-per-instance rule holds
// while the pool as a whole serves jobs concurrently. The worker count is reconciled to
// the configured size lazily on the first job (or eagerly with WithPreWarm), a worker whose
// instance trapped replaces it, and a per-job timeout interrupts runaway guests.
package pool
