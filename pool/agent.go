package pool

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// outcomeWeight controls how strongly a single observation moves the
// exponential moving success rate and response time.
const outcomeWeight = 0.3

// AgentOptions configures agent construction.
type AgentOptions struct {
	// Specializations are the capability tags this agent can serve.
	Specializations []string

	// MaxConcurrentTasks is the agent's individual concurrency ceiling.
	MaxConcurrentTasks int

	// SuccessRate seeds the observed success rate in [0,1].
	SuccessRate float64

	// AvgResponseTime seeds the observed response time.
	AvgResponseTime time.Duration
}

// Agent is one pool member: a named worker with declared capabilities, a
// concurrency ceiling and rolling performance observations. The backing Tool
// is chosen by the worker-selection collaborator and treated as opaque here.
//
// Load is mutated exclusively through TryAcquire and Release so that
// 0 <= current load <= max concurrent tasks holds at all times.
type Agent struct {
	name            string
	specializations map[string]struct{}
	runner          core.Tool

	mu            sync.Mutex
	maxConcurrent int
	load          int
	successRate   float64
	avgResponse   time.Duration
}

// NewAgent creates an agent backed by the given tool.
func NewAgent(name string, runner core.Tool, optFns ...func(o *AgentOptions)) *Agent {
	opts := AgentOptions{
		MaxConcurrentTasks: 3,
		SuccessRate:        1.0,
		AvgResponseTime:    time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentTasks < 1 {
		opts.MaxConcurrentTasks = 1
	}
	if opts.SuccessRate < 0 {
		opts.SuccessRate = 0
	}
	if opts.SuccessRate > 1 {
		opts.SuccessRate = 1
	}

	specs := make(map[string]struct{}, len(opts.Specializations))
	for _, s := range opts.Specializations {
		specs[s] = struct{}{}
	}

	return &Agent{
		name:            name,
		specializations: specs,
		runner:          runner,
		maxConcurrent:   opts.MaxConcurrentTasks,
		successRate:     opts.SuccessRate,
		avgResponse:     opts.AvgResponseTime,
	}
}

// Name returns the agent identifier.
func (a *Agent) Name() string { return a.name }

// Runner returns the backing tool implementation.
func (a *Agent) Runner() core.Tool { return a.runner }

// HasSpecialization reports whether the agent carries the given tag.
func (a *Agent) HasSpecialization(tag string) bool {
	_, ok := a.specializations[tag]
	return ok
}

// Matches reports whether the agent satisfies every required capability of
// the task.
func (a *Agent) Matches(task *core.Task) bool {
	return task.MatchedBy(a.specializations)
}

// CapabilityOverlap counts how many of the task's required capabilities the
// agent carries. Used by the sequential strategy's ranking.
func (a *Agent) CapabilityOverlap(task *core.Task) int {
	n := 0
	for _, c := range task.RequiredCapabilities {
		if _, ok := a.specializations[c]; ok {
			n++
		}
	}
	return n
}

// TryAcquire claims one load slot if the agent is below its ceiling. It
// reports whether the slot was granted.
func (a *Agent) TryAcquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.load >= a.maxConcurrent {
		return false
	}
	a.load++
	return true
}

// Release returns one load slot. Releasing below zero is a no-op.
func (a *Agent) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.load > 0 {
		a.load--
	}
}

// Load returns the current number of claimed slots.
func (a *Agent) Load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load
}

// MaxConcurrent returns the agent's concurrency ceiling.
func (a *Agent) MaxConcurrent() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxConcurrent
}

// SetMaxConcurrent adjusts the ceiling, clamped so it never drops below one
// or below the currently claimed load.
func (a *Agent) SetMaxConcurrent(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n < 1 {
		n = 1
	}
	if n < a.load {
		n = a.load
	}
	a.maxConcurrent = n
}

// SuccessRate returns the rolling observed success rate.
func (a *Agent) SuccessRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.successRate
}

// AvgResponseTime returns the rolling observed response time.
func (a *Agent) AvgResponseTime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.avgResponse
}

// RecordOutcome folds one observed execution into the rolling success rate
// and response time.
func (a *Agent) RecordOutcome(success bool, duration time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	observed := 0.0
	if success {
		observed = 1.0
	}
	a.successRate = (1-outcomeWeight)*a.successRate + outcomeWeight*observed
	a.avgResponse = time.Duration((1-outcomeWeight)*float64(a.avgResponse) + outcomeWeight*float64(duration))
}

// AvailabilityScore combines load headroom, success rate and response speed
// into one ranking scalar:
//
//	0.4*(1 - load/max) + 0.4*successRate + 0.2*(1/(1 + avgSeconds/10))
func (a *Agent) AvailabilityScore() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	headroom := 1.0 - float64(a.load)/float64(a.maxConcurrent)
	speed := 1.0 / (1.0 + a.avgResponse.Seconds()/10.0)
	return 0.4*headroom + 0.4*a.successRate + 0.2*speed
}

// Snapshot is a plain copy of the agent's observable state.
type Snapshot struct {
	Name               string        `json:"name"`
	Specializations    []string      `json:"specializations"`
	MaxConcurrentTasks int           `json:"max_concurrent_tasks"`
	CurrentLoad        int           `json:"current_load"`
	SuccessRate        float64       `json:"success_rate"`
	AvgResponseTime    time.Duration `json:"avg_response_time"`
	AvailabilityScore  float64       `json:"availability_score"`
}

// Snapshot returns the agent's observable state as a plain record.
func (a *Agent) Snapshot() Snapshot {
	score := a.AvailabilityScore()

	a.mu.Lock()
	defer a.mu.Unlock()

	specs := make([]string, 0, len(a.specializations))
	for s := range a.specializations {
		specs = append(specs, s)
	}
	sort.Strings(specs)

	return Snapshot{
		Name:               a.name,
		Specializations:    specs,
		MaxConcurrentTasks: a.maxConcurrent,
		CurrentLoad:        a.load,
		SuccessRate:        a.successRate,
		AvgResponseTime:    a.avgResponse,
		AvailabilityScore:  score,
	}
}
