// Package orchestrator composes the coordination strategies into a fixed
// multi-phase investigation pipeline: parallel evidence gathering per data
// domain, a committee risk assessment over the gathered findings, and a
// sequential synthesis of the final report. Every (task, result) pair is
// appended to a ledger for audit.
//
// The orchestrator also runs a simple closed-loop capacity controller that
// lowers the concurrency ceiling of agents whose observed success rate falls
// below a floor and raises it for agents exceeding a performance ceiling.
package orchestrator
