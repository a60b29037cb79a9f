package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/hook"
	"github.com/hupe1980/taskmesh/logging"
)

// ErrReplayNotImplemented is returned by Replay when the feature flag is set.
// Replay is declared in configuration but intentionally unimplemented.
var ErrReplayNotImplemented = errors.New("execution replay is not implemented")

// ErrReplayDisabled is returned by Replay when the feature flag is unset.
var ErrReplayDisabled = errors.New("execution replay is disabled")

// Config defines tuning parameters for the Interceptor.
type Config struct {
	// MaxConcurrent limits tool executions system-wide. This bound is
	// independent of per-agent concurrency ceilings; both must be satisfied
	// before work proceeds.
	MaxConcurrent int

	// DefaultTimeout bounds each tool invocation. Zero disables the budget.
	DefaultTimeout time.Duration

	// ErrorBufferLimit caps the per-pattern occurrence buffer.
	ErrorBufferLimit int

	// PerformanceLimit caps the per-tool duration series.
	PerformanceLimit int

	// EnableHistory turns on the execution history ring.
	EnableHistory bool

	// HistoryLimit caps the history ring.
	HistoryLimit int

	// EnableReplay declares the replay capability. The capability itself is
	// not implemented; Replay reports that explicitly.
	EnableReplay bool
}

// DefaultConfig provides production-ready defaults.
var DefaultConfig = Config{
	MaxConcurrent:    10,
	DefaultTimeout:   30 * time.Second,
	ErrorBufferLimit: 50,
	PerformanceLimit: 1000,
	EnableHistory:    true,
	HistoryLimit:     100,
}

// Options configures an Interceptor instance.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Hooks receives lifecycle events. Defaults to an empty registry.
	Hooks *hook.Registry

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// ActiveExecution is the snapshot record of one in-flight call.
type ActiveExecution struct {
	ExecutionID string         `json:"execution_id"`
	ToolName    string         `json:"tool_name"`
	StartTime   time.Time      `json:"start_time"`
	Input       map[string]any `json:"input,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Status      string         `json:"status"`
}

// Interceptor wraps tool executions with hooks, bounded concurrency, timeout
// handling and rolling statistics. Construct via New and share by reference;
// all methods are safe for concurrent use.
type Interceptor struct {
	config Config
	hooks  *hook.Registry
	logger logging.Logger
	slots  *semaphore.Weighted

	accounting accounting // guarded store set, see accounting.go
}

// New creates an Interceptor with sensible defaults and optional overrides.
//
// Example:
//
//	ic := engine.New(func(o *engine.Options) {
//	    o.Config.MaxConcurrent = 50
//	    o.Hooks = registry
//	    o.Logger = logger
//	})
func New(optFns ...func(o *Options)) *Interceptor {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Hooks == nil {
		opts.Hooks = hook.NewRegistry()
	}
	if opts.Config.MaxConcurrent <= 0 {
		opts.Config.MaxConcurrent = DefaultConfig.MaxConcurrent
	}
	if opts.Config.ErrorBufferLimit <= 0 {
		opts.Config.ErrorBufferLimit = DefaultConfig.ErrorBufferLimit
	}
	if opts.Config.PerformanceLimit <= 0 {
		opts.Config.PerformanceLimit = DefaultConfig.PerformanceLimit
	}
	if opts.Config.HistoryLimit <= 0 {
		opts.Config.HistoryLimit = DefaultConfig.HistoryLimit
	}

	i := &Interceptor{
		config: opts.Config,
		hooks:  opts.Hooks,
		logger: opts.Logger,
		slots:  semaphore.NewWeighted(int64(opts.Config.MaxConcurrent)),
	}
	i.accounting.init(opts.Config)

	return i
}

// Hooks exposes the hook registry for wiring instrumentation.
func (i *Interceptor) Hooks() *hook.Registry { return i.hooks }

// ExecOptions configures a single Execute call.
type ExecOptions struct {
	// ExecutionID overrides the generated identifier.
	ExecutionID string

	// Timeout overrides Config.DefaultTimeout for this call. Negative
	// disables the budget entirely.
	Timeout time.Duration

	// Metadata is attached to the ActiveExecution snapshot and every hook
	// event of this call.
	Metadata map[string]any
}

// Execute runs one tool invocation through the full interception pipeline.
//
// It never panics and has no error return: tool failures, timeouts,
// cancellations and even defects in the interceptor's own bookkeeping all
// surface as failure Results with a populated ErrorType.
func (i *Interceptor) Execute(ctx context.Context, tool core.Tool, input map[string]any, optFns ...func(o *ExecOptions)) (res *core.Result) {
	opts := ExecOptions{Timeout: i.config.DefaultTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()

	// Containment boundary: nothing escapes Execute uncaught.
	defer func() {
		if rec := recover(); rec != nil {
			i.logger.Error("interceptor fault: tool=%s panic=%v", toolName(tool), rec)
			res = core.Failuref(core.ErrorTypeInterceptor, "interceptor fault: %v", rec)
			res.Duration = time.Since(start)
		}
	}()

	if tool == nil {
		res = core.Failure(core.ErrorTypeValidation, "tool must not be nil")
		i.hooks.Fire(ctx, hook.EventOnValidationError, &hook.Event{Result: res, Metadata: opts.Metadata})
		return res
	}

	execID := opts.ExecutionID
	if execID == "" {
		// Tool name plus random uuid: unique under any throughput, unlike
		// coarse timestamps.
		execID = fmt.Sprintf("%s-%s", tool.Name(), uuid.NewString())
	}

	ev := &hook.Event{
		ExecutionID: execID,
		ToolName:    tool.Name(),
		Input:       input,
		Metadata:    opts.Metadata,
	}

	// Global limiter: one of MaxConcurrent slots, acquired before the call
	// is admitted.
	if err := i.slots.Acquire(ctx, 1); err != nil {
		res = i.classify(tool.Name(), err, opts.Timeout)
		res.Duration = time.Since(start)
		return res
	}
	defer i.slots.Release(1)

	i.accounting.registerActive(&ActiveExecution{
		ExecutionID: execID,
		ToolName:    tool.Name(),
		StartTime:   start,
		Input:       input,
		Metadata:    opts.Metadata,
		Status:      "running",
	})
	// Guaranteed cleanup: the active map never retains completed calls.
	defer i.accounting.releaseActive(execID)

	i.hooks.Fire(ctx, hook.EventPreExecution, ev)

	res = i.invoke(ctx, tool, input, opts.Timeout)
	ev.Result = res

	i.hooks.Fire(ctx, hook.EventPostExecution, ev)

	if res.ErrorType == core.ErrorTypeTimeout {
		i.hooks.Fire(ctx, hook.EventOnTimeout, ev)
	}

	if res.Success {
		i.hooks.Fire(ctx, hook.EventOnSuccess, ev)
		if res.FromCache {
			i.hooks.Fire(ctx, hook.EventOnCacheHit, ev)
		} else {
			i.hooks.Fire(ctx, hook.EventOnCacheMiss, ev)
		}
	} else {
		i.hooks.Fire(ctx, hook.EventOnFailure, ev)
	}

	if res.RetryCount > 0 {
		i.hooks.Fire(ctx, hook.EventOnRetry, ev)
	}

	i.accounting.record(execID, tool.Name(), res)

	return res
}

// invoke runs the tool body under the caller-enforced timeout. The tool runs
// in its own goroutine so a non-cooperative implementation cannot stall the
// pipeline past its budget; on timeout the goroutine is abandoned with a
// cancelled context.
func (i *Interceptor) invoke(ctx context.Context, tool core.Tool, input map[string]any, timeout time.Duration) *core.Result {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	type outcome struct {
		res *core.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", rec)}
			}
		}()
		res, err := tool.Execute(runCtx, input)
		done <- outcome{res: res, err: err}
	}()

	var res *core.Result
	select {
	case out := <-done:
		if out.err != nil {
			res = i.classify(tool.Name(), out.err, timeout)
		} else if out.res == nil {
			res = &core.Result{Success: true}
		} else {
			res = out.res
		}
	case <-runCtx.Done():
		res = i.classify(tool.Name(), runCtx.Err(), timeout)
	}

	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	return res
}

// classify converts a raised error into a failure Result with the matching
// taxonomy entry.
func (i *Interceptor) classify(tool string, err error, timeout time.Duration) *core.Result {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return core.Failuref(core.ErrorTypeTimeout, "tool %s exceeded its %s budget", tool, timeout)
	case errors.Is(err, context.Canceled):
		return core.Failuref(core.ErrorTypeCancelled, "tool %s cancelled: %v", tool, err)
	default:
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return core.Failure(core.ErrorTypeValidation, verr.Error())
		}
		return core.Failure(core.ErrorTypeToolFailure, err.Error())
	}
}

// Replay is the feature-flagged replay capability. It is intentionally not
// implemented: when enabled it reports ErrReplayNotImplemented rather than
// fabricating behavior.
func (i *Interceptor) Replay(executionID string) error {
	if !i.config.EnableReplay {
		return ErrReplayDisabled
	}
	return fmt.Errorf("replay %s: %w", executionID, ErrReplayNotImplemented)
}

func toolName(t core.Tool) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
