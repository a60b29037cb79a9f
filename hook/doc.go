// Package hook implements the lifecycle callback subsystem of TaskMesh.
//
// Hooks attach instrumentation (telemetry, cost tracking, auditing) to the
// execution pipeline without touching core logic. Firing is strictly
// best-effort: a hook that errors, panics or exceeds its timeout is logged
// and skipped, never aborting the remaining hooks and never propagating into
// the caller, so instrumentation cannot affect business outcomes.
//
// Handlers come in two flavors, chosen at registration time:
//   - context-aware handlers (Func) are awaited directly and should observe
//     ctx cancellation themselves
//   - plain handlers (SyncFunc) are offloaded to a bounded worker pool and
//     rejoined, with the registry enforcing the timeout from outside
//
// Hooks of one event type fire in ascending priority order, ties broken by
// registration order.
package hook
