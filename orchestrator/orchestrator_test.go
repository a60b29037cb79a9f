package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/pool"
	"github.com/hupe1980/taskmesh/strategy"
)

// scriptedTool returns a fixed output and records the inputs it receives.
type scriptedTool struct {
	name   string
	output any

	mu     sync.Mutex
	inputs []map[string]any
}

func (s *scriptedTool) Name() string { return s.name }

func (s *scriptedTool) Execute(_ context.Context, input map[string]any) (*core.Result, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, input)
	s.mu.Unlock()
	return &core.Result{Success: true, Output: s.output, Duration: time.Millisecond}, nil
}

func (s *scriptedTool) lastInput() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		return nil
	}
	return s.inputs[len(s.inputs)-1]
}

func investigationPool(t *testing.T) (*pool.Pool, map[string]*scriptedTool) {
	t.Helper()
	p := pool.New()
	tools := map[string]*scriptedTool{}

	register := func(name, spec string, output any) {
		tool := &scriptedTool{name: name, output: output}
		tools[name] = tool
		require.NoError(t, p.Register(pool.NewAgent(name, tool, func(o *pool.AgentOptions) {
			o.Specializations = []string{spec}
		})))
	}

	register("device-1", "device", map[string]any{"domain": "device", "anomalies": 2})
	register("network-1", "network", map[string]any{"domain": "network", "anomalies": 0})
	register("log-1", "log", map[string]any{"domain": "log", "anomalies": 5})
	for i := 1; i <= 3; i++ {
		register(fmt.Sprintf("risk-%d", i), "risk_scoring", `{"decision":"approve","confidence":0.8}`)
	}
	register("synth-1", "synthesis", "incident report body")

	return p, tools
}

func TestInvestigate_FullPipeline(t *testing.T) {
	p, tools := investigationPool(t)
	o := New(p, engine.New())

	report, err := o.Investigate(context.Background(), "host-7", map[string]any{"subject": "host-7"})
	require.NoError(t, err)

	require.Len(t, report.Findings, 3)
	for _, domain := range []string{"device", "network", "log"} {
		require.Contains(t, report.Findings, domain)
		assert.True(t, report.Findings[domain].Succeeded(), "domain %s gathered", domain)
	}

	require.NotNil(t, report.Assessment)
	assert.True(t, report.Assessment.Succeeded())
	assert.Equal(t, "approve", report.Assessment.Decision)

	require.NotNil(t, report.Synthesis)
	assert.True(t, report.Synthesis.Succeeded())
	assert.Equal(t, "incident report body", report.Synthesis.Output)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "host-7", report.Subject)
	assert.False(t, report.CompletedAt.Before(report.StartedAt))

	// Later phases consume earlier outputs.
	riskInput := tools["risk-1"].lastInput()
	require.NotNil(t, riskInput)
	findings, ok := riskInput["findings"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, findings, "device")

	synthInput := tools["synth-1"].lastInput()
	require.NotNil(t, synthInput)
	assert.Contains(t, synthInput, "assessment")
}

func TestInvestigate_LedgerRecordsEveryTask(t *testing.T) {
	p, _ := investigationPool(t)
	o := New(p, engine.New())

	_, err := o.Investigate(context.Background(), "host-7", nil)
	require.NoError(t, err)

	ledger := o.Ledger()
	require.Len(t, ledger, 5, "three gathers, one assessment, one synthesis")

	types := map[string]int{}
	for _, e := range ledger {
		require.NotNil(t, e.Result)
		require.NotEmpty(t, e.Task.ID)
		types[e.Task.Type]++
	}
	assert.Equal(t, map[string]int{"gather": 3, "risk_assessment": 1, "synthesis": 1}, types)
}

func TestInvestigate_MissingDomainAgents(t *testing.T) {
	p := pool.New()
	// Only the risk and synthesis layers are staffed.
	for i := 1; i <= 3; i++ {
		tool := &scriptedTool{name: fmt.Sprintf("risk-%d", i), output: `{"decision":"reject","confidence":0.9}`}
		require.NoError(t, p.Register(pool.NewAgent(tool.name, tool, func(o *pool.AgentOptions) {
			o.Specializations = []string{"risk_scoring"}
		})))
	}
	synth := &scriptedTool{name: "synth-1", output: "report"}
	require.NoError(t, p.Register(pool.NewAgent("synth-1", synth, func(o *pool.AgentOptions) {
		o.Specializations = []string{"synthesis"}
	})))

	o := New(p, engine.New())
	report, err := o.Investigate(context.Background(), "host-7", nil)
	require.NoError(t, err, "allocation failures stay inside the report")

	for domain, res := range report.Findings {
		assert.Equal(t, strategy.StatusNoAgents, res.Status, "domain %s", domain)
	}
	assert.True(t, report.Assessment.Succeeded(), "later phases still run")
	assert.True(t, report.Synthesis.Succeeded())
}

func TestInvestigate_CancelledContext(t *testing.T) {
	p, _ := investigationPool(t)
	o := New(p, engine.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Investigate(ctx, "host-7", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdjustCapacities(t *testing.T) {
	p := pool.New()
	add := func(name string, successRate float64, avgResponse time.Duration, maxTasks int) *pool.Agent {
		a := pool.NewAgent(name, &scriptedTool{name: name}, func(o *pool.AgentOptions) {
			o.Specializations = []string{"device"}
			o.SuccessRate = successRate
			o.AvgResponseTime = avgResponse
			o.MaxConcurrentTasks = maxTasks
		})
		require.NoError(t, p.Register(a))
		return a
	}

	struggling := add("struggling", 0.2, time.Second, 3)
	thriving := add("thriving", 0.95, time.Second, 3)
	steady := add("steady", 0.6, time.Second, 3)
	floor := add("floor", 0.2, time.Second, 1)
	slow := add("slow", 0.95, 5*time.Second, 3)

	o := New(p, engine.New())
	adjusted := o.AdjustCapacities()

	assert.Equal(t, 2, adjusted)
	assert.Equal(t, 2, struggling.MaxConcurrent(), "low success rate lowers the ceiling")
	assert.Equal(t, 4, thriving.MaxConcurrent(), "fast high performer gets headroom")
	assert.Equal(t, 3, steady.MaxConcurrent(), "mid-band agents are untouched")
	assert.Equal(t, 1, floor.MaxConcurrent(), "ceiling never drops below one")
	assert.Equal(t, 3, slow.MaxConcurrent(), "slow responders are not raised")
}

func TestAdjustCapacities_RespectsMaxCapacity(t *testing.T) {
	p := pool.New()
	a := pool.NewAgent("capped", &scriptedTool{name: "capped"}, func(o *pool.AgentOptions) {
		o.Specializations = []string{"device"}
		o.SuccessRate = 0.95
		o.AvgResponseTime = time.Second
		o.MaxConcurrentTasks = 4
	})
	require.NoError(t, p.Register(a))

	o := New(p, engine.New(), func(opts *Options) {
		opts.Config.MaxCapacity = 4
	})

	assert.Zero(t, o.AdjustCapacities())
	assert.Equal(t, 4, a.MaxConcurrent())
}

func TestMarshalReport(t *testing.T) {
	p, _ := investigationPool(t)
	o := New(p, engine.New())

	report, err := o.Investigate(context.Background(), "host-7", map[string]any{"subject": "host-7"})
	require.NoError(t, err)

	doc, err := report.MarshalReport()
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(doc))

	assert.Equal(t, report.ID, gjson.GetBytes(doc, "id").String())
	assert.Equal(t, "host-7", gjson.GetBytes(doc, "subject").String())
	assert.Equal(t, "success", gjson.GetBytes(doc, "findings.device.status").String())
	assert.Equal(t, int64(5), gjson.GetBytes(doc, "findings.log.output.log-1.anomalies").Int())
	assert.Equal(t, "approve", gjson.GetBytes(doc, "assessment.decision").String())
	assert.Equal(t, "success", gjson.GetBytes(doc, "synthesis.status").String())
	assert.Equal(t, "incident report body", gjson.GetBytes(doc, "synthesis.output").String())

	_, perr := time.Parse(time.RFC3339Nano, gjson.GetBytes(doc, "started_at").String())
	assert.NoError(t, perr)
}
