package strategy

import (
	"context"
	"sort"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/pool"
)

// Status classifies the outcome of a coordination run.
type Status string

const (
	// StatusSuccess means at least the decisive part of the work succeeded.
	StatusSuccess Status = "success"

	// StatusFailed means agents were dispatched but none produced a
	// successful result.
	StatusFailed Status = "failed"

	// StatusNoAgents means no registered agent matched the task's required
	// capabilities.
	StatusNoAgents Status = "no_agents_available"

	// StatusInsufficientAgents means the committee quorum was not reached.
	StatusInsufficientAgents Status = "insufficient_agents"

	// StatusAllAgentsBusy means every matching agent was at its ceiling.
	StatusAllAgentsBusy Status = "all_agents_busy"

	// StatusInvalidTask means the task specification failed validation.
	StatusInvalidTask Status = "invalid_task"
)

// Outcome records one agent's participation in a coordination run.
type Outcome struct {
	// Agent is the pool member's name.
	Agent string `json:"agent"`

	// Result is the interceptor-wrapped execution outcome. Nil when the
	// agent was skipped.
	Result *core.Result `json:"result,omitempty"`

	// Confidence is the strategy-assigned weight of this outcome.
	Confidence float64 `json:"confidence"`

	// Vote is the committee decision this agent emitted, when applicable.
	Vote string `json:"vote,omitempty"`

	// Skipped marks an agent that was selected but at capacity when the
	// dispatch tried to claim its load slot.
	Skipped bool `json:"skipped,omitempty"`
}

// Result aggregates a coordination run. It is created fresh per Coordinate
// call and never mutated after return.
type Result struct {
	Status   Status    `json:"status"`
	Strategy string    `json:"strategy"`
	TaskID   string    `json:"task_id"`
	Outcomes []Outcome `json:"outcomes,omitempty"`

	// Decision is the aggregated committee decision, when applicable.
	Decision string `json:"decision,omitempty"`

	// Confidence is the aggregated confidence of the run in [0,1].
	Confidence float64 `json:"confidence"`

	// Output is the aggregated payload (strategy-specific shape).
	Output any `json:"output,omitempty"`

	// Error carries the validation message for invalid_task results.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the run completed with StatusSuccess.
func (r *Result) Succeeded() bool { return r.Status == StatusSuccess }

// Strategy is the polymorphic coordination contract. Implementations filter
// the candidates by capability, execute the selected members' work through
// the interceptor and aggregate the outcomes. Coordinate never panics and
// reports allocation failures as Result statuses.
type Strategy interface {
	// Name returns the strategy identifier recorded in results.
	Name() string

	// Coordinate allocates the task across the candidate agents.
	Coordinate(ctx context.Context, agents []*pool.Agent, task *core.Task) *Result
}

// base carries the dependencies every strategy shares.
type base struct {
	interceptor *engine.Interceptor
	logger      logging.Logger
}

// invalidTask builds the structured result for a task that failed validation.
func invalidTask(strategy string, task *core.Task, err error) *Result {
	return &Result{Status: StatusInvalidTask, Strategy: strategy, TaskID: task.ID, Error: err.Error()}
}

// matchAgents filters candidates to those satisfying every required
// capability of the task.
func matchAgents(agents []*pool.Agent, task *core.Task) []*pool.Agent {
	var out []*pool.Agent
	for _, a := range agents {
		if a.Matches(task) {
			out = append(out, a)
		}
	}
	return out
}

// byAvailability sorts agents by availability score descending, ties broken
// by name for determinism.
func byAvailability(agents []*pool.Agent) []*pool.Agent {
	out := append([]*pool.Agent(nil), agents...)
	scores := make(map[*pool.Agent]float64, len(out))
	for _, a := range out {
		scores[a] = a.AvailabilityScore()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// dispatch claims the agent's load slot, executes its backing tool through
// the interceptor and folds the observation back into the agent. The slot is
// released on every exit path.
func (b *base) dispatch(ctx context.Context, a *pool.Agent, task *core.Task, input map[string]any) Outcome {
	if !a.TryAcquire() {
		b.logger.Debug("strategy skipped agent at capacity agent=%s task=%s", a.Name(), task.ID)
		return Outcome{Agent: a.Name(), Skipped: true}
	}
	defer a.Release()

	res := b.interceptor.Execute(ctx, a.Runner(), input, func(o *engine.ExecOptions) {
		o.Metadata = map[string]any{"task_id": task.ID, "task_type": task.Type, "agent": a.Name()}
	})
	a.RecordOutcome(res.Success, res.Duration)

	return Outcome{Agent: a.Name(), Result: res}
}
