package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/pool"
	"github.com/hupe1980/taskmesh/strategy"
)

// Config defines the pipeline shape and the capacity controller thresholds.
type Config struct {
	// Domains are the data domains gathered in phase 1, one parallel task
	// each.
	Domains []string

	// GatherComplexity is the complexity assigned to phase 1 tasks, scaling
	// the per-domain fan-out.
	GatherComplexity float64

	// RiskCapability tags the phase 2 committee voters.
	RiskCapability string

	// SynthesisCapability tags the phase 3 pipeline agents.
	SynthesisCapability string

	// SuccessFloor: agents observed below this success rate get their
	// concurrency ceiling lowered.
	SuccessFloor float64

	// PerformanceCeiling: agents observed above this success rate and
	// responding faster than FastResponse get their ceiling raised.
	PerformanceCeiling float64

	// FastResponse is the response time an agent must beat to qualify for a
	// capacity raise.
	FastResponse time.Duration

	// MaxCapacity caps how far the controller will raise any ceiling.
	MaxCapacity int
}

// DefaultConfig mirrors the standard investigation setup.
var DefaultConfig = Config{
	Domains:             []string{"device", "network", "log"},
	GatherComplexity:    0.5,
	RiskCapability:      "risk_scoring",
	SynthesisCapability: "synthesis",
	SuccessFloor:        0.4,
	PerformanceCeiling:  0.9,
	FastResponse:        2 * time.Second,
	MaxCapacity:         10,
}

// Options configures an Orchestrator.
type Options struct {
	Config Config
	Logger logging.Logger

	// Strategy overrides; defaults are built from the interceptor.
	Parallel   strategy.Strategy
	Committee  strategy.Strategy
	Sequential strategy.Strategy
}

// LedgerEntry pairs a dispatched task with its coordination result.
type LedgerEntry struct {
	Task      *core.Task       `json:"task"`
	Result    *strategy.Result `json:"result"`
	Timestamp time.Time        `json:"timestamp"`
}

// Report is the aggregated outcome of one investigation run.
type Report struct {
	ID          string                      `json:"id"`
	Subject     string                      `json:"subject"`
	Findings    map[string]*strategy.Result `json:"findings"`   // phase 1, by domain
	Assessment  *strategy.Result            `json:"assessment"` // phase 2
	Synthesis   *strategy.Result            `json:"synthesis"`  // phase 3
	StartedAt   time.Time                   `json:"started_at"`
	CompletedAt time.Time                   `json:"completed_at"`
}

// Orchestrator drives the three-phase investigation pipeline over a shared
// agent pool. Construct via New and share by reference; explicit dependency
// injection only, no package-level state.
type Orchestrator struct {
	pool       *pool.Pool
	parallel   strategy.Strategy
	committee  strategy.Strategy
	sequential strategy.Strategy
	config     Config
	logger     logging.Logger

	mu     sync.Mutex
	ledger []LedgerEntry
}

// New creates an orchestrator over the given pool. Strategies default to the
// standard implementations executing through the given interceptor.
func New(p *pool.Pool, interceptor *engine.Interceptor, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Parallel == nil {
		opts.Parallel = strategy.NewParallel(interceptor)
	}
	if opts.Committee == nil {
		opts.Committee = strategy.NewCommittee(interceptor)
	}
	if opts.Sequential == nil {
		opts.Sequential = strategy.NewSequential(interceptor)
	}

	return &Orchestrator{
		pool:       p,
		parallel:   opts.Parallel,
		committee:  opts.Committee,
		sequential: opts.Sequential,
		config:     opts.Config,
		logger:     opts.Logger,
	}
}

// Investigate runs the full pipeline: parallel gathering per data domain,
// committee risk assessment over the findings, sequential synthesis of the
// report. Allocation failures surface inside the report's per-phase results;
// the returned error is non-nil only when ctx ends the run early.
func (o *Orchestrator) Investigate(ctx context.Context, subject string, input map[string]any) (*Report, error) {
	report := &Report{
		ID:        uuid.NewString(),
		Subject:   subject,
		Findings:  make(map[string]*strategy.Result, len(o.config.Domains)),
		StartedAt: time.Now(),
	}

	// Phase 1: independent parallel gather tasks, one per data domain.
	var findingsMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, domain := range o.config.Domains {
		g.Go(func() error {
			task := o.newTask("gather", o.config.GatherComplexity, []string{domain}, input, 5)
			res := o.parallel.Coordinate(gctx, o.pool.Agents(), task)
			o.append(task, res)

			findingsMu.Lock()
			report.Findings[domain] = res
			findingsMu.Unlock()

			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("gather phase interrupted: %w", err)
	}

	findings := make(map[string]any, len(report.Findings))
	for domain, res := range report.Findings {
		if res.Succeeded() {
			findings[domain] = res.Output
		}
	}

	// Phase 2: one committee assessment consuming the phase 1 outputs.
	assessInput := mergeInput(input, map[string]any{"findings": findings})
	assessTask := o.newTask("risk_assessment", 0.7, []string{o.config.RiskCapability}, assessInput, 7)
	report.Assessment = o.committee.Coordinate(ctx, o.pool.Agents(), assessTask)
	o.append(assessTask, report.Assessment)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("assessment phase interrupted: %w", err)
	}

	// Phase 3: sequential synthesis consuming phases 1 and 2.
	synthInput := mergeInput(input, map[string]any{
		"findings":   findings,
		"assessment": outputOf(report.Assessment),
	})
	synthTask := o.newTask("synthesis", 0.6, []string{o.config.SynthesisCapability}, synthInput, 8)
	synthTask.Dependencies = []string{assessTask.ID}
	report.Synthesis = o.sequential.Coordinate(ctx, o.pool.Agents(), synthTask)
	o.append(synthTask, report.Synthesis)

	report.CompletedAt = time.Now()
	return report, ctx.Err()
}

// Ledger returns a copy of all (task, result) pairs appended so far.
func (o *Orchestrator) Ledger() []LedgerEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]LedgerEntry(nil), o.ledger...)
}

// AdjustCapacities runs one pass of the closed-loop capacity controller and
// returns how many agent ceilings changed.
func (o *Orchestrator) AdjustCapacities() int {
	adjusted := 0
	for _, a := range o.pool.Agents() {
		rate := a.SuccessRate()
		current := a.MaxConcurrent()

		switch {
		case rate < o.config.SuccessFloor && current > 1:
			a.SetMaxConcurrent(current - 1)
			o.logger.Info("capacity lowered agent=%s rate=%.2f max=%d", a.Name(), rate, current-1)
			adjusted++
		case rate > o.config.PerformanceCeiling &&
			a.AvgResponseTime() < o.config.FastResponse &&
			current < o.config.MaxCapacity:
			a.SetMaxConcurrent(current + 1)
			o.logger.Info("capacity raised agent=%s rate=%.2f max=%d", a.Name(), rate, current+1)
			adjusted++
		}
	}
	return adjusted
}

// Run executes the capacity controller periodically until ctx ends.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.AdjustCapacities()
		}
	}
}

func (o *Orchestrator) newTask(taskType string, complexity float64, caps []string, input map[string]any, priority int) *core.Task {
	return &core.Task{
		ID:                   fmt.Sprintf("%s-%s", taskType, uuid.NewString()),
		Type:                 taskType,
		Complexity:           complexity,
		RequiredCapabilities: caps,
		Input:                input,
		Priority:             priority,
	}
}

func (o *Orchestrator) append(task *core.Task, res *strategy.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledger = append(o.ledger, LedgerEntry{Task: task, Result: res, Timestamp: time.Now()})
}

func mergeInput(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func outputOf(res *strategy.Result) any {
	if res == nil {
		return nil
	}
	return res.Output
}
