// Package engine implements the execution interceptor at the center of
// TaskMesh.
//
// The Interceptor wraps every unit of work with lifecycle hooks, a global
// counting limiter, timeout enforcement and rolling accounting. Its single
// guarantee is failure containment: Execute never panics and never returns an
// error. Every outcome, including defects inside the wrapping logic itself,
// is converted into a *core.Result the caller can branch on.
//
// # Execution pipeline
//
//  1. Generate an execution id if the caller did not supply one
//  2. Acquire a global concurrency slot (bounded by Config.MaxConcurrent)
//  3. Register the ActiveExecution entry
//  4. Fire pre_execution hooks
//  5. Invoke the tool under the configured timeout
//  6. Fire post_execution, then the success path (on_success plus
//     on_cache_hit/on_cache_miss) or the failure path (on_failure plus
//     error-pattern recording); on_timeout fires exactly once on timeouts
//     and on_retry fires when the tool reported internal retries
//  7. Update rolling statistics, the performance series and the history ring
//  8. Release the ActiveExecution entry and the limiter slot unconditionally
//
// The active-execution map never retains entries for completed calls.
//
// # Accounting
//
// Error patterns (capped occurrence buffers keyed by tool:error_type),
// per-tool performance series (capped duration windows with derived
// avg/min/max) and the optional execution history ring are independent
// append-capped stores guarded by one mutex. Clear resets all of them
// atomically. Read accessors return plain copied records safe to expose over
// any transport.
package engine
