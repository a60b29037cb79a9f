package core

import "time"

// Task describes a unit of coordinated work submitted to a strategy. A task
// "matches" an agent iff every required capability is among the agent's
// specializations.
type Task struct {
	// ID uniquely identifies the task within a coordination run.
	ID string `json:"task_id"`

	// Type is a free-form classifier (e.g. "gather", "risk_assessment").
	Type string `json:"task_type"`

	// Complexity in [0,1] scales the parallel fan-out and the per-agent
	// confidence discount.
	Complexity float64 `json:"complexity"`

	// RequiredCapabilities lists the specialization tags an agent must carry
	// to be eligible for this task.
	RequiredCapabilities []string `json:"required_capabilities"`

	// Input is the task payload handed to the selected agents' tools.
	Input map[string]any `json:"input_data,omitempty"`

	// Priority ranges 1 (lowest) to 10 (highest).
	Priority int `json:"priority"`

	// Deadline, when set, bounds the coordination run.
	Deadline *time.Time `json:"deadline,omitempty"`

	// Dependencies names task IDs that must complete first. The engine does
	// not schedule dependencies itself; orchestrators order their phases.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Validate checks the task specification and returns a *ValidationError
// describing the first violation found, or nil if the task is well-formed.
func (t *Task) Validate() error {
	if t.ID == "" {
		return NewValidationError("task_id", "must not be empty")
	}
	if t.Type == "" {
		return NewValidationError("task_type", "must not be empty")
	}
	if t.Complexity < 0 || t.Complexity > 1 {
		return NewValidationError("complexity", "must be within [0,1]")
	}
	if t.Priority < 1 || t.Priority > 10 {
		return NewValidationError("priority", "must be within 1..10")
	}
	if len(t.RequiredCapabilities) == 0 {
		return NewValidationError("required_capabilities", "must name at least one capability")
	}
	return nil
}

// MatchedBy reports whether the given specialization set satisfies every
// required capability of the task.
func (t *Task) MatchedBy(specializations map[string]struct{}) bool {
	for _, c := range t.RequiredCapabilities {
		if _, ok := specializations[c]; !ok {
			return false
		}
	}
	return true
}
