package strategy

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/pool"
)

// LoadBalancedOptions configures the load-balanced strategy.
type LoadBalancedOptions struct {
	Logger logging.Logger
}

// LoadBalanced dispatches the task to the single matching agent with the
// highest availability score that still has load headroom. The agent's load
// slot is claimed before execution and released on every exit path; when all
// matching agents are at capacity the run reports all_agents_busy.
type LoadBalanced struct {
	base
}

// NewLoadBalanced creates a load-balanced dispatch strategy executing
// through the given interceptor.
func NewLoadBalanced(interceptor *engine.Interceptor, optFns ...func(o *LoadBalancedOptions)) *LoadBalanced {
	opts := LoadBalancedOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LoadBalanced{base: base{interceptor: interceptor, logger: opts.Logger}}
}

// Name returns the strategy identifier.
func (s *LoadBalanced) Name() string { return "load_balanced" }

// Coordinate implements Strategy.
func (s *LoadBalanced) Coordinate(ctx context.Context, agents []*pool.Agent, task *core.Task) *Result {
	if err := task.Validate(); err != nil {
		return invalidTask(s.Name(), task, err)
	}

	matches := matchAgents(agents, task)
	if len(matches) == 0 {
		return &Result{Status: StatusNoAgents, Strategy: s.Name(), TaskID: task.ID}
	}

	// Walk the ranking until an agent grants a slot; the best-scoring agent
	// may fill up between scoring and acquisition.
	var chosen *pool.Agent
	for _, a := range byAvailability(matches) {
		if a.TryAcquire() {
			chosen = a
			break
		}
	}
	if chosen == nil {
		return &Result{Status: StatusAllAgentsBusy, Strategy: s.Name(), TaskID: task.ID}
	}
	defer chosen.Release()

	confidence := chosen.SuccessRate()
	res := s.interceptor.Execute(ctx, chosen.Runner(), task.Input, func(o *engine.ExecOptions) {
		o.Metadata = map[string]any{"task_id": task.ID, "task_type": task.Type, "agent": chosen.Name()}
	})
	chosen.RecordOutcome(res.Success, res.Duration)

	result := &Result{
		Strategy: s.Name(),
		TaskID:   task.ID,
		Outcomes: []Outcome{{Agent: chosen.Name(), Result: res, Confidence: confidence}},
	}
	if res.Success {
		result.Status = StatusSuccess
		result.Output = res.Output
		result.Confidence = confidence
	} else {
		result.Status = StatusFailed
	}

	return result
}
