// Package taskmesh provides a high-level façade over the execution
// interceptor, the agent capability pool, the coordination strategies and
// the multi-phase orchestrator. Most applications interact with this package
// by:
//  1. Creating a TaskMesh via New() (optionally overriding configuration,
//     hooks and logging)
//  2. Registering pool agents with their backing tools
//  3. Coordinating tasks through a named strategy, or running the full
//     investigation pipeline via Investigate
//
// The façade wires the components together through explicit dependency
// injection; there is no package-level state. All defaults are safe for
// local development and testing.
package taskmesh

import (
	"context"
	"fmt"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/hook"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/orchestrator"
	"github.com/hupe1980/taskmesh/pool"
	"github.com/hupe1980/taskmesh/strategy"
)

// Options configures the TaskMesh instance.
type Options struct {
	// EngineConfig tunes the interceptor (concurrency, timeouts, history).
	EngineConfig engine.Config

	// HookConfig tunes hook firing (per-hook timeout, worker pool size).
	HookConfig hook.Config

	// OrchestratorConfig shapes the investigation pipeline and the capacity
	// controller.
	OrchestratorConfig orchestrator.Config

	// CommitteeSeed makes committee voter sampling deterministic when
	// non-zero.
	CommitteeSeed int64

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// TaskMesh is the high-level façade aggregating the execution engine,
// capability pool, strategies and orchestrator.
type TaskMesh struct {
	opts         Options
	hooks        *hook.Registry
	interceptor  *engine.Interceptor
	pool         *pool.Pool
	strategies   map[string]strategy.Strategy
	orchestrator *orchestrator.Orchestrator
}

// New creates a new TaskMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *TaskMesh {
	opts := Options{
		EngineConfig:       engine.DefaultConfig,
		HookConfig:         hook.DefaultConfig,
		OrchestratorConfig: orchestrator.DefaultConfig,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	hooks := hook.NewRegistry(func(o *hook.Options) {
		o.Config = opts.HookConfig
		o.Logger = opts.Logger
	})

	interceptor := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Hooks = hooks
		o.Logger = opts.Logger
	})

	agentPool := pool.New(func(o *pool.Options) {
		o.Logger = opts.Logger
	})

	strategies := map[string]strategy.Strategy{}
	for _, s := range []strategy.Strategy{
		strategy.NewParallel(interceptor, func(o *strategy.ParallelOptions) { o.Logger = opts.Logger }),
		strategy.NewSequential(interceptor, func(o *strategy.SequentialOptions) { o.Logger = opts.Logger }),
		strategy.NewCommittee(interceptor, func(o *strategy.CommitteeOptions) {
			o.Logger = opts.Logger
			o.Seed = opts.CommitteeSeed
		}),
		strategy.NewLoadBalanced(interceptor, func(o *strategy.LoadBalancedOptions) { o.Logger = opts.Logger }),
	} {
		strategies[s.Name()] = s
	}

	orch := orchestrator.New(agentPool, interceptor, func(o *orchestrator.Options) {
		o.Config = opts.OrchestratorConfig
		o.Logger = opts.Logger
		o.Parallel = strategies["parallel"]
		o.Committee = strategies["committee"]
		o.Sequential = strategies["sequential"]
	})

	return &TaskMesh{
		opts:         opts,
		hooks:        hooks,
		interceptor:  interceptor,
		pool:         agentPool,
		strategies:   strategies,
		orchestrator: orch,
	}
}

// Hooks exposes the hook registry for wiring instrumentation (telemetry,
// cost tracking) into the execution lifecycle.
func (m *TaskMesh) Hooks() *hook.Registry { return m.hooks }

// Interceptor exposes the execution interceptor.
func (m *TaskMesh) Interceptor() *engine.Interceptor { return m.interceptor }

// Pool exposes the agent capability pool.
func (m *TaskMesh) Pool() *pool.Pool { return m.pool }

// Orchestrator exposes the multi-phase orchestrator.
func (m *TaskMesh) Orchestrator() *orchestrator.Orchestrator { return m.orchestrator }

// RegisterAgent adds an agent to the pool.
func (m *TaskMesh) RegisterAgent(a *pool.Agent) error { return m.pool.Register(a) }

// Execute runs a single tool through the interception pipeline.
func (m *TaskMesh) Execute(ctx context.Context, tool core.Tool, input map[string]any, optFns ...func(o *engine.ExecOptions)) *core.Result {
	return m.interceptor.Execute(ctx, tool, input, optFns...)
}

// Coordinate allocates a task across the pool using the named strategy
// ("parallel", "sequential", "committee" or "load_balanced").
func (m *TaskMesh) Coordinate(ctx context.Context, strategyName string, task *core.Task) (*strategy.Result, error) {
	s, ok := m.strategies[strategyName]
	if !ok {
		return nil, fmt.Errorf("strategy %s not found", strategyName)
	}
	return s.Coordinate(ctx, m.pool.Agents(), task), nil
}

// Investigate runs the full multi-phase investigation pipeline.
func (m *TaskMesh) Investigate(ctx context.Context, subject string, input map[string]any) (*orchestrator.Report, error) {
	return m.orchestrator.Investigate(ctx, subject, input)
}
