package pool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// Options configures a Pool.
type Options struct {
	Logger logging.Logger
}

// Pool is the passive capability registry consulted by coordination
// strategies. It is safe for concurrent use.
type Pool struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	logger logging.Logger
}

// New creates an empty pool.
func New(optFns ...func(o *Options)) *Pool {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Pool{
		agents: make(map[string]*Agent),
		logger: opts.Logger,
	}
}

// Register adds an agent to the pool. An agent with the same name replaces
// the previous registration.
func (p *Pool) Register(a *Agent) error {
	if a == nil || a.Name() == "" {
		return core.NewValidationError("name", "agent must have a name")
	}
	if a.Runner() == nil {
		return fmt.Errorf("register agent %s: %w", a.Name(), core.NewValidationError("runner", "agent must have a backing tool"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.agents[a.Name()] = a
	p.logger.Debug("pool registered agent name=%s", a.Name())

	return nil
}

// Unregister removes an agent by name and reports whether it existed.
func (p *Pool) Unregister(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.agents[name]; !ok {
		return false
	}
	delete(p.agents, name)
	p.logger.Debug("pool unregistered agent name=%s", name)
	return true
}

// Get retrieves an agent by name.
func (p *Pool) Get(name string) (*Agent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.agents[name]
	return a, ok
}

// Agents returns all registered agents sorted by name.
func (p *Pool) Agents() []*Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Agent, 0, len(p.agents))
	for _, a := range p.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// AvailableAgents returns agents with load headroom, sorted by name.
func (p *Pool) AvailableAgents() []*Agent {
	var out []*Agent
	for _, a := range p.Agents() {
		if a.Load() < a.MaxConcurrent() {
			out = append(out, a)
		}
	}
	return out
}

// BySpecialization returns agents carrying the given tag, sorted by name.
func (p *Pool) BySpecialization(tag string) []*Agent {
	var out []*Agent
	for _, a := range p.Agents() {
		if a.HasSpecialization(tag) {
			out = append(out, a)
		}
	}
	return out
}

// Matching returns agents whose specializations satisfy every required
// capability of the task, sorted by name.
func (p *Pool) Matching(task *core.Task) []*Agent {
	var out []*Agent
	for _, a := range p.Agents() {
		if a.Matches(task) {
			out = append(out, a)
		}
	}
	return out
}

// WorkloadReport returns plain per-agent snapshots (load, capacity, rates,
// availability score) safe to expose over any transport.
func (p *Pool) WorkloadReport() []Snapshot {
	agents := p.Agents()
	out := make([]Snapshot, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Snapshot())
	}
	return out
}
