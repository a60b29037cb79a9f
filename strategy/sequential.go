package strategy

import (
	"context"
	"sort"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/pool"
)

// defaultMaxStages bounds the pipeline prefix.
const defaultMaxStages = 3

// SequentialOptions configures the sequential strategy.
type SequentialOptions struct {
	Logger logging.Logger

	// MaxStages bounds how many agents form the pipeline.
	MaxStages int
}

// Sequential chains the best-ranked matching agents into a single pipeline:
// each stage's output becomes the next stage's input, and the final result
// is the last stage's output plus the per-stage trace.
//
// Agents are ranked by capability overlap with the task first and observed
// success rate second; at most MaxStages agents participate. A failing stage
// terminates the pipeline early.
type Sequential struct {
	base
	maxStages int
}

// NewSequential creates a sequential pipeline strategy executing through the
// given interceptor.
func NewSequential(interceptor *engine.Interceptor, optFns ...func(o *SequentialOptions)) *Sequential {
	opts := SequentialOptions{
		Logger:    logging.NoOpLogger{},
		MaxStages: defaultMaxStages,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxStages < 1 {
		opts.MaxStages = 1
	}

	return &Sequential{
		base:      base{interceptor: interceptor, logger: opts.Logger},
		maxStages: opts.MaxStages,
	}
}

// Name returns the strategy identifier.
func (s *Sequential) Name() string { return "sequential" }

// Coordinate implements Strategy.
func (s *Sequential) Coordinate(ctx context.Context, agents []*pool.Agent, task *core.Task) *Result {
	if err := task.Validate(); err != nil {
		return invalidTask(s.Name(), task, err)
	}

	matches := matchAgents(agents, task)
	if len(matches) == 0 {
		return &Result{Status: StatusNoAgents, Strategy: s.Name(), TaskID: task.ID}
	}

	stages := s.rank(matches, task)
	if len(stages) > s.maxStages {
		stages = stages[:s.maxStages]
	}

	result := &Result{Strategy: s.Name(), TaskID: task.ID}

	input := task.Input
	var lastOutput any
	completed := 0

	for _, a := range stages {
		out := s.dispatch(ctx, a, task, input)
		result.Outcomes = append(result.Outcomes, out)

		if out.Skipped {
			// Stage agent was at capacity; the pipeline continues with the
			// unchanged input.
			continue
		}
		if !out.Result.Success {
			result.Status = StatusFailed
			return result
		}

		completed++
		lastOutput = out.Result.Output
		input = stageInput(task.Input, lastOutput)
	}

	if completed == 0 {
		result.Status = StatusAllAgentsBusy
		return result
	}

	result.Status = StatusSuccess
	result.Output = lastOutput
	result.Confidence = float64(completed) / float64(len(stages))
	return result
}

// rank orders matches by capability overlap, then success rate, then name.
func (s *Sequential) rank(matches []*pool.Agent, task *core.Task) []*pool.Agent {
	out := append([]*pool.Agent(nil), matches...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].CapabilityOverlap(task), out[j].CapabilityOverlap(task)
		if oi != oj {
			return oi > oj
		}
		ri, rj := out[i].SuccessRate(), out[j].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// stageInput shapes a stage's output into the next stage's input. Map
// outputs flow through directly; anything else is wrapped, with the original
// task input preserved for reference.
func stageInput(taskInput map[string]any, output any) map[string]any {
	if m, ok := output.(map[string]any); ok {
		return m
	}
	next := make(map[string]any, len(taskInput)+1)
	for k, v := range taskInput {
		next[k] = v
	}
	next["input"] = output
	return next
}
