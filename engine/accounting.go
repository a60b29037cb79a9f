package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// ErrorOccurrence is one recorded failure instance inside a pattern buffer.
type ErrorOccurrence struct {
	Timestamp  time.Time     `json:"timestamp"`
	Message    string        `json:"message"`
	RetryCount int           `json:"retry_count"`
	Duration   time.Duration `json:"duration"`
}

// ErrorPattern aggregates failures of one tool:error_type pair: a running
// frequency counter plus a capped chronological buffer of occurrences,
// newest last.
type ErrorPattern struct {
	Key         string            `json:"key"` // "<tool>:<error_type>"
	ToolName    string            `json:"tool_name"`
	ErrorType   string            `json:"error_type"`
	Frequency   int               `json:"frequency"`
	Occurrences []ErrorOccurrence `json:"occurrences"`
}

// ErrorReport is the read-only error analysis record.
type ErrorReport struct {
	TotalErrors int            `json:"total_errors"`
	Frequencies map[string]int `json:"frequencies"` // pattern key -> count
	TopErrors   []ErrorPattern `json:"top_errors"`  // by frequency, descending
}

// PerformanceStats are derived on demand from a tool's duration series.
type PerformanceStats struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// HistoryEntry is one serialized execution summary in the history ring.
type HistoryEntry struct {
	ExecutionID string        `json:"execution_id"`
	ToolName    string        `json:"tool_name"`
	Success     bool          `json:"success"`
	FromCache   bool          `json:"from_cache"`
	ErrorType   string        `json:"error_type,omitempty"`
	Duration    time.Duration `json:"duration"`
	RetryCount  int           `json:"retry_count"`
	Timestamp   time.Time     `json:"timestamp"`
}

// ToolStats holds per-tool rolling counters.
type ToolStats struct {
	Executions int `json:"executions"`
	Successes  int `json:"successes"`
	Failures   int `json:"failures"`
}

// ExecutionStats is the rolling statistics snapshot.
type ExecutionStats struct {
	Total     int                  `json:"total"`
	Successes int                  `json:"successes"`
	Failures  int                  `json:"failures"`
	Timeouts  int                  `json:"timeouts"`
	CacheHits int                  `json:"cache_hits"`
	ByTool    map[string]ToolStats `json:"by_tool"`
}

// SuccessRate returns successes over total, or zero before any execution.
func (s ExecutionStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total)
}

// accounting is the guarded store set behind the interceptor: the active
// execution map, rolling stats, error patterns, performance series and the
// history ring. All writes happen under one mutex so Clear is atomic from the
// caller's perspective.
type accounting struct {
	mu       sync.Mutex
	config   Config
	active   map[string]*ActiveExecution
	stats    ExecutionStats
	patterns map[string]*ErrorPattern
	perf     map[string][]time.Duration
	history  []HistoryEntry
}

func (a *accounting) init(cfg Config) {
	a.config = cfg
	a.active = make(map[string]*ActiveExecution)
	a.stats = ExecutionStats{ByTool: make(map[string]ToolStats)}
	a.patterns = make(map[string]*ErrorPattern)
	a.perf = make(map[string][]time.Duration)
	a.history = nil
}

func (a *accounting) registerActive(ae *ActiveExecution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[ae.ExecutionID] = ae
}

func (a *accounting) releaseActive(executionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, executionID)
}

// record folds one completed execution into every store.
func (a *accounting) record(executionID, tool string, res *core.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Total++
	ts := a.stats.ByTool[tool]
	ts.Executions++
	if res.Success {
		a.stats.Successes++
		ts.Successes++
		if res.FromCache {
			a.stats.CacheHits++
		}
	} else {
		a.stats.Failures++
		ts.Failures++
		if res.ErrorType == core.ErrorTypeTimeout {
			a.stats.Timeouts++
		}
		a.recordErrorLocked(tool, res)
	}
	a.stats.ByTool[tool] = ts

	series := append(a.perf[tool], res.Duration)
	if over := len(series) - a.config.PerformanceLimit; over > 0 {
		series = series[over:]
	}
	a.perf[tool] = series

	if a.config.EnableHistory {
		a.history = append(a.history, HistoryEntry{
			ExecutionID: executionID,
			ToolName:    tool,
			Success:     res.Success,
			FromCache:   res.FromCache,
			ErrorType:   res.ErrorType,
			Duration:    res.Duration,
			RetryCount:  res.RetryCount,
			Timestamp:   time.Now(),
		})
		if over := len(a.history) - a.config.HistoryLimit; over > 0 {
			a.history = a.history[over:]
		}
	}
}

func (a *accounting) recordErrorLocked(tool string, res *core.Result) {
	key := tool + ":" + res.ErrorType
	p, ok := a.patterns[key]
	if !ok {
		p = &ErrorPattern{Key: key, ToolName: tool, ErrorType: res.ErrorType}
		a.patterns[key] = p
	}
	p.Frequency++
	p.Occurrences = append(p.Occurrences, ErrorOccurrence{
		Timestamp:  time.Now(),
		Message:    res.Error,
		RetryCount: res.RetryCount,
		Duration:   res.Duration,
	})
	if over := len(p.Occurrences) - a.config.ErrorBufferLimit; over > 0 {
		p.Occurrences = p.Occurrences[over:]
	}
}

// Stats returns a copy of the rolling execution statistics.
func (i *Interceptor) Stats() ExecutionStats {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.stats
	out.ByTool = make(map[string]ToolStats, len(a.stats.ByTool))
	for k, v := range a.stats.ByTool {
		out.ByTool[k] = v
	}
	return out
}

// ActiveExecutions returns a snapshot of all in-flight calls.
func (i *Interceptor) ActiveExecutions() []ActiveExecution {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ActiveExecution, 0, len(a.active))
	for _, ae := range a.active {
		out = append(out, *ae)
	}
	return out
}

// ActiveCount returns how many calls are currently in flight.
func (i *Interceptor) ActiveCount() int {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

// ErrorAnalysis returns pattern frequencies and the most frequent patterns,
// each with its recent occurrence buffer.
func (i *Interceptor) ErrorAnalysis() ErrorReport {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()

	report := ErrorReport{Frequencies: make(map[string]int, len(a.patterns))}
	for key, p := range a.patterns {
		report.Frequencies[key] = p.Frequency
		report.TotalErrors += p.Frequency

		cp := *p
		cp.Occurrences = append([]ErrorOccurrence(nil), p.Occurrences...)
		report.TopErrors = append(report.TopErrors, cp)
	}
	sort.Slice(report.TopErrors, func(x, y int) bool {
		if report.TopErrors[x].Frequency != report.TopErrors[y].Frequency {
			return report.TopErrors[x].Frequency > report.TopErrors[y].Frequency
		}
		return report.TopErrors[x].Key < report.TopErrors[y].Key
	})
	if len(report.TopErrors) > 5 {
		report.TopErrors = report.TopErrors[:5]
	}
	return report
}

// ErrorPatternFor returns the pattern recorded for a tool:error_type pair.
func (i *Interceptor) ErrorPatternFor(tool, errorType string) (ErrorPattern, bool) {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.patterns[tool+":"+errorType]
	if !ok {
		return ErrorPattern{}, false
	}
	cp := *p
	cp.Occurrences = append([]ErrorOccurrence(nil), p.Occurrences...)
	return cp, true
}

// History returns a copy of the bounded execution history, oldest first.
func (i *Interceptor) History() []HistoryEntry {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]HistoryEntry(nil), a.history...)
}

// ToolPerformance derives avg/min/max from the tool's duration series.
func (i *Interceptor) ToolPerformance(tool string) (PerformanceStats, bool) {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()

	series, ok := a.perf[tool]
	if !ok || len(series) == 0 {
		return PerformanceStats{}, false
	}

	stats := PerformanceStats{Count: len(series), Min: series[0], Max: series[0]}
	var total time.Duration
	for _, d := range series {
		total += d
		if d < stats.Min {
			stats.Min = d
		}
		if d > stats.Max {
			stats.Max = d
		}
	}
	stats.Avg = total / time.Duration(len(series))
	return stats, true
}

// Clear resets statistics, error patterns, performance series and history in
// one atomic step. In-flight executions keep their active entries.
func (i *Interceptor) Clear() {
	a := &i.accounting
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats = ExecutionStats{ByTool: make(map[string]ToolStats)}
	a.patterns = make(map[string]*ErrorPattern)
	a.perf = make(map[string][]time.Duration)
	a.history = nil
}
