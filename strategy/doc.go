// Package strategy implements the pluggable coordination algorithms that
// allocate a task across capable pool agents: parallel fan-out, sequential
// pipeline, committee voting and load-balanced dispatch.
//
// Every strategy shares the same contract: filter the candidate agents down
// to those whose specializations satisfy the task's required capabilities,
// dispatch the selected members' work through the execution interceptor, and
// aggregate the outcomes into a fresh Result. Allocation failures
// (no_agents_available, insufficient_agents, all_agents_busy) are structured
// status values, never errors, keeping orchestration control flow linear.
//
// Agent load slots are claimed immediately before dispatch and released on
// every exit path, so the per-agent concurrency ceiling and the
// interceptor's global limiter are both honored before work proceeds.
package strategy
