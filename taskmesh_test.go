package taskmesh

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/hook"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/pool"
	"github.com/hupe1980/taskmesh/strategy"
)

func registerMockAgent(t *testing.T, m *TaskMesh, name string, specs []string, responses map[string]string) {
	t.Helper()
	mock := model.NewMockModel(name)
	for needle, response := range responses {
		mock.AddResponse(needle, response)
	}
	require.NoError(t, m.RegisterAgent(pool.NewAgent(name, model.NewTool(name, mock), func(o *pool.AgentOptions) {
		o.Specializations = specs
	})))
}

func TestTaskMesh_ExecuteThroughPipeline(t *testing.T) {
	m := New()

	fired := 0
	require.NoError(t, m.Hooks().Register(&hook.Hook{
		Type: hook.EventOnSuccess,
		Name: "counter",
		Handler: func(context.Context, *hook.Event) error {
			fired++
			return nil
		},
	}))

	tool := model.NewTool("echo", model.NewMockModel("echo"))
	res := m.Execute(context.Background(), tool, map[string]any{"prompt": "hello"})

	require.True(t, res.Success)
	assert.Equal(t, "mock response to: hello", res.Output)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, m.Interceptor().Stats().Total)
}

func TestTaskMesh_CoordinateByName(t *testing.T) {
	m := New()
	registerMockAgent(t, m, "worker", []string{"analysis"}, map[string]string{"": ""})

	task := &core.Task{
		ID:                   "t1",
		Type:                 "gather",
		Complexity:           0.3,
		Priority:             5,
		RequiredCapabilities: []string{"analysis"},
		Input:                map[string]any{"prompt": "inspect"},
	}

	res, err := m.Coordinate(context.Background(), "load_balanced", task)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "load_balanced", res.Strategy)

	_, err = m.Coordinate(context.Background(), "roundrobin", task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTaskMesh_Investigate(t *testing.T) {
	m := New(func(o *Options) {
		o.CommitteeSeed = 11
	})

	for _, domain := range []string{"device", "network", "log"} {
		registerMockAgent(t, m, domain+"-analyst", []string{domain}, map[string]string{
			"": "",
		})
	}
	for i := 1; i <= 3; i++ {
		registerMockAgent(t, m, fmt.Sprintf("risk-%d", i), []string{"risk_scoring"}, nil)
	}
	registerMockAgent(t, m, "writer", []string{"synthesis"}, nil)

	report, err := m.Investigate(context.Background(), "host-7", map[string]any{"subject": "host-7"})
	require.NoError(t, err)

	assert.Len(t, report.Findings, 3)
	require.NotNil(t, report.Assessment)
	assert.Equal(t, strategy.VoteApprove, report.Assessment.Decision, "successful mock runs approve by default")
	require.NotNil(t, report.Synthesis)
	assert.True(t, report.Synthesis.Succeeded())

	assert.Len(t, m.Orchestrator().Ledger(), 5)
}
