// Package pool implements the agent capability registry.
//
// The pool tracks named workers, their declared specializations, concurrency
// ceilings and observed performance, and ranks them by a weighted
// availability score. It performs no scheduling itself: coordination
// strategies consult it, acquire per-agent load slots immediately before
// dispatch and release them immediately after.
package pool
