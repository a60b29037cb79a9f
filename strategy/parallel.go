package strategy

import (
	"context"
	"math"
	"sync"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/pool"
)

// ParallelOptions configures the parallel strategy.
type ParallelOptions struct {
	Logger logging.Logger
}

// Parallel fans a task out to the best-ranked matching agents and runs their
// work concurrently through the interceptor.
//
// The fan-out width scales with task complexity:
//
//	K = clamp(round(complexity*3) + 1, 1, len(matches))
//
// so a trivial task engages one agent and a maximally complex task up to
// four. Per-agent confidence is the agent's success rate discounted by
// complexity: successRate * (1 - complexity*0.2).
type Parallel struct {
	base
}

// NewParallel creates a parallel fan-out strategy executing through the
// given interceptor.
func NewParallel(interceptor *engine.Interceptor, optFns ...func(o *ParallelOptions)) *Parallel {
	opts := ParallelOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Parallel{base: base{interceptor: interceptor, logger: opts.Logger}}
}

// Name returns the strategy identifier.
func (s *Parallel) Name() string { return "parallel" }

// FanOut returns the number of agents the strategy would select for the
// given complexity and match count.
func FanOut(complexity float64, matches int) int {
	k := int(math.Round(complexity*3)) + 1
	if k < 1 {
		k = 1
	}
	if k > matches {
		k = matches
	}
	return k
}

// Coordinate implements Strategy.
func (s *Parallel) Coordinate(ctx context.Context, agents []*pool.Agent, task *core.Task) *Result {
	if err := task.Validate(); err != nil {
		return invalidTask(s.Name(), task, err)
	}

	matches := matchAgents(agents, task)
	if len(matches) == 0 {
		return &Result{Status: StatusNoAgents, Strategy: s.Name(), TaskID: task.ID}
	}

	ranked := byAvailability(matches)
	selected := ranked[:FanOut(task.Complexity, len(ranked))]

	discount := 1.0 - task.Complexity*0.2
	confidences := make([]float64, len(selected))
	for i, a := range selected {
		confidences[i] = a.SuccessRate() * discount
	}

	outcomes := make([]Outcome, len(selected))
	var wg sync.WaitGroup
	for i, a := range selected {
		wg.Add(1)
		go func(i int, a *pool.Agent) {
			defer wg.Done()
			out := s.dispatch(ctx, a, task, task.Input)
			out.Confidence = confidences[i]
			outcomes[i] = out
		}(i, a)
	}
	wg.Wait()

	result := &Result{Strategy: s.Name(), TaskID: task.ID, Outcomes: outcomes}

	output := make(map[string]any)
	var confidenceSum float64
	successes, skipped := 0, 0
	for _, out := range outcomes {
		if out.Skipped {
			skipped++
			continue
		}
		if out.Result.Success {
			successes++
			confidenceSum += out.Confidence
			output[out.Agent] = out.Result.Output
		}
	}

	switch {
	case successes > 0:
		result.Status = StatusSuccess
		result.Output = output
		result.Confidence = confidenceSum / float64(successes)
	case skipped == len(outcomes):
		result.Status = StatusAllAgentsBusy
	default:
		result.Status = StatusFailed
	}

	return result
}
