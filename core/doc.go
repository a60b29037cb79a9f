// Package core defines the shared contracts of the TaskMesh execution engine:
// the Tool interface every unit of work implements, the Result record that
// carries execution outcomes as data rather than errors, the coordination Task
// description matched against agent capabilities, and the error taxonomy used
// across the interceptor and coordination strategies.
//
// Everything above this package (interceptor, pool, strategies, orchestrator)
// couples to business logic exclusively through Tool and Result. Tool failures
// are represented as Result values so callers branch without error handling;
// only genuinely unexpected internal faults are converted into synthetic
// failure Results at the interceptor boundary.
package core
