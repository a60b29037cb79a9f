package hook

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/taskmesh/logging"
)

// Config tunes registry firing behavior.
type Config struct {
	// DefaultTimeout bounds each hook invocation unless the hook declares
	// its own. This budget is distinct from any tool timeout.
	DefaultTimeout time.Duration

	// WorkerPoolSize bounds how many offloaded SyncFunc handlers may run
	// simultaneously across all firings.
	WorkerPoolSize int
}

// DefaultConfig provides conservative firing defaults.
var DefaultConfig = Config{
	DefaultTimeout: 5 * time.Second,
	WorkerPoolSize: 8,
}

// Options configures a Registry.
type Options struct {
	Config Config
	Logger logging.Logger
}

// Registry stores and orders lifecycle hooks per event type and fires them
// with failure containment. Registration is guarded by a mutex; firing takes
// a snapshot of the ordered list so handlers never block registration.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[EventType][]*Hook
	seq    map[EventType]int // registration counter per type, for stable ties
	order  map[*Hook]int
	pool   *semaphore.Weighted
	config Config
	logger logging.Logger
}

// NewRegistry creates a hook registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.WorkerPoolSize <= 0 {
		opts.Config.WorkerPoolSize = DefaultConfig.WorkerPoolSize
	}
	if opts.Config.DefaultTimeout <= 0 {
		opts.Config.DefaultTimeout = DefaultConfig.DefaultTimeout
	}

	return &Registry{
		hooks:  make(map[EventType][]*Hook),
		seq:    make(map[EventType]int),
		order:  make(map[*Hook]int),
		pool:   semaphore.NewWeighted(int64(opts.Config.WorkerPoolSize)),
		config: opts.Config,
		logger: opts.Logger,
	}
}

// Register validates the hook, enables it and inserts it into the type's
// ordered list. The list is re-sorted by ascending priority with ties kept in
// registration order (stable sort).
func (r *Registry) Register(h *Hook) error {
	if err := h.validate(); err != nil {
		return fmt.Errorf("register hook: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h.enabled = true
	r.seq[h.Type]++
	r.order[h] = r.seq[h.Type]

	list := append(r.hooks[h.Type], h)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return r.order[list[i]] < r.order[list[j]]
	})
	r.hooks[h.Type] = list

	return nil
}

// Unregister removes the first hook of the given type with the given name.
// It reports whether a hook was removed.
func (r *Registry) Unregister(t EventType, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.hooks[t]
	for i, h := range list {
		if h.Name == name {
			r.hooks[t] = append(list[:i:i], list[i+1:]...)
			delete(r.order, h)
			return true
		}
	}
	return false
}

// SetEnabled toggles participation of the named hook without removing it.
// It reports whether the hook was found.
func (r *Registry) SetEnabled(t EventType, name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.hooks[t] {
		if h.Name == name {
			h.enabled = enabled
			return true
		}
	}
	return false
}

// Hooks returns the ordered hook list for a type. The returned slice is a
// copy; the hooks themselves are shared.
func (r *Registry) Hooks(t EventType) []*Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Hook, len(r.hooks[t]))
	copy(out, r.hooks[t])
	return out
}

// Fire invokes all enabled hooks of the given type in priority order.
//
// Every handler runs under its own timeout. Handler errors, panics and
// timeouts are logged and skipped: Fire never returns an error and never
// aborts the remaining hooks. SyncFunc handlers are dispatched to the bounded
// worker pool and rejoined; Func handlers are awaited directly with a
// deadline context.
func (r *Registry) Fire(ctx context.Context, t EventType, ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Type = t

	for _, h := range r.Hooks(t) {
		if !h.Enabled() {
			continue
		}
		r.fireOne(ctx, h, ev)
	}
}

func (r *Registry) fireOne(ctx context.Context, h *Hook, ev *Event) {
	timeout := r.config.DefaultTimeout
	if h.Timeout > 0 {
		timeout = h.Timeout
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if h.SyncHandler != nil {
		r.fireSync(hookCtx, h, ev)
		return
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("panic: %v", rec)
			}
		}()
		done <- h.Handler(hookCtx, ev)
	}()

	select {
	case err := <-done:
		if err != nil {
			r.logger.Warn("hook failed: type=%s name=%s err=%v", h.Type, h.Name, err)
		}
	case <-hookCtx.Done():
		r.logger.Warn("hook timed out: type=%s name=%s timeout=%s", h.Type, h.Name, timeout)
	}
}

// fireSync offloads a plain handler to the worker pool and rejoins it. A
// handler that outlives its timeout is abandoned; its pool slot is released
// when it eventually returns.
func (r *Registry) fireSync(ctx context.Context, h *Hook, ev *Event) {
	if err := r.pool.Acquire(ctx, 1); err != nil {
		r.logger.Warn("hook pool slot unavailable: type=%s name=%s err=%v", h.Type, h.Name, err)
		return
	}

	done := make(chan struct{})
	go func() {
		defer r.pool.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Warn("hook panicked: type=%s name=%s panic=%v", h.Type, h.Name, rec)
			}
			close(done)
		}()
		h.SyncHandler(ev)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("hook timed out: type=%s name=%s", h.Type, h.Name)
	}
}
