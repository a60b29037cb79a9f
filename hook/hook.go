package hook

import (
	"context"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// EventType names a lifecycle point of a tool execution. The set is closed;
// registering a hook for an unknown type is a validation error.
type EventType string

const (
	// EventPreExecution fires before the tool body runs.
	EventPreExecution EventType = "pre_execution"

	// EventPostExecution fires after the tool body returns, before the
	// success or failure path.
	EventPostExecution EventType = "post_execution"

	// EventOnSuccess fires when the execution produced a successful Result.
	EventOnSuccess EventType = "on_success"

	// EventOnFailure fires when the execution produced a failure Result.
	EventOnFailure EventType = "on_failure"

	// EventOnRetry fires when the tool reported at least one internal retry.
	EventOnRetry EventType = "on_retry"

	// EventOnTimeout fires exactly once when an execution exceeds its budget.
	EventOnTimeout EventType = "on_timeout"

	// EventOnCacheHit fires on a successful Result served from cache.
	EventOnCacheHit EventType = "on_cache_hit"

	// EventOnCacheMiss fires on a successful Result computed fresh.
	EventOnCacheMiss EventType = "on_cache_miss"

	// EventOnValidationError fires when admission rejects malformed input.
	EventOnValidationError EventType = "on_validation_error"

	// EventOnCircuitOpen is reserved for circuit-breaker integrations.
	EventOnCircuitOpen EventType = "on_circuit_open"
)

// eventTypes is the closed registration set.
var eventTypes = map[EventType]struct{}{
	EventPreExecution:      {},
	EventPostExecution:     {},
	EventOnSuccess:         {},
	EventOnFailure:         {},
	EventOnRetry:           {},
	EventOnTimeout:         {},
	EventOnCacheHit:        {},
	EventOnCacheMiss:       {},
	EventOnValidationError: {},
	EventOnCircuitOpen:     {},
}

// Valid reports whether t belongs to the closed event type set.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Event is the payload handed to every handler of a firing.
type Event struct {
	Type        EventType      `json:"type"`
	ExecutionID string         `json:"execution_id"`
	ToolName    string         `json:"tool_name"`
	Input       map[string]any `json:"input,omitempty"`
	Result      *core.Result   `json:"result,omitempty"` // nil before the tool ran
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Func is a context-aware handler. It is awaited directly by the registry and
// should return promptly or observe ctx cancellation.
type Func func(ctx context.Context, ev *Event) error

// SyncFunc is a plain handler with no suspension points of its own. The
// registry offloads it to the bounded worker pool and enforces the per-hook
// timeout from outside.
type SyncFunc func(ev *Event)

// Hook binds a handler to an event type with ordering and lifecycle metadata.
// A Hook is immutable after registration except for its enabled flag, which
// the registry toggles.
type Hook struct {
	// Type selects the lifecycle point this hook observes.
	Type EventType

	// Name identifies the hook for unregistration and logging.
	Name string

	// Handler is the context-aware variant. Exactly one of Handler and
	// SyncHandler must be set.
	Handler Func

	// SyncHandler is the plain variant, run on the worker pool.
	SyncHandler SyncFunc

	// Priority orders hooks of the same type; lower runs first. Ties keep
	// registration order.
	Priority int

	// Timeout overrides the registry's default per-hook timeout when > 0.
	Timeout time.Duration

	// Metadata carries free-form annotations for observability surfaces.
	Metadata map[string]any

	enabled bool
}

// Enabled reports whether the hook currently participates in firings.
func (h *Hook) Enabled() bool { return h.enabled }

func (h *Hook) validate() error {
	if !h.Type.Valid() {
		return core.NewValidationError("type", "unknown event type "+string(h.Type))
	}
	if h.Name == "" {
		return core.NewValidationError("name", "must not be empty")
	}
	if (h.Handler == nil) == (h.SyncHandler == nil) {
		return core.NewValidationError("handler", "exactly one of Handler and SyncHandler must be set")
	}
	return nil
}
