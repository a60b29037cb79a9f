package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/pool"
)

func TestLoadBalanced_PicksBestAvailable(t *testing.T) {
	s := NewLoadBalanced(newInterceptor())

	loaded := testAgent("loaded", succeedingTool("loaded", "from loaded"), func(o *pool.AgentOptions) {
		o.MaxConcurrentTasks = 2
	})
	require.True(t, loaded.TryAcquire())
	idle := testAgent("idle", succeedingTool("idle", "from idle"))

	res := s.Coordinate(context.Background(), []*pool.Agent{loaded, idle}, analysisTask(0.5))
	require.True(t, res.Succeeded())
	require.Len(t, res.Outcomes, 1, "exactly one agent is dispatched")
	assert.Equal(t, "idle", res.Outcomes[0].Agent, "headroom wins the ranking")
	assert.Equal(t, "from idle", res.Output)
}

func TestLoadBalanced_ConfidenceIsSuccessRate(t *testing.T) {
	s := NewLoadBalanced(newInterceptor())

	a := testAgent("solo", succeedingTool("solo", "out"), func(o *pool.AgentOptions) {
		o.SuccessRate = 0.85
	})

	res := s.Coordinate(context.Background(), []*pool.Agent{a}, analysisTask(0.5))
	require.True(t, res.Succeeded())
	assert.InDelta(t, 0.85, res.Confidence, 1e-9, "pre-dispatch success rate")
}

func TestLoadBalanced_AllAgentsBusy(t *testing.T) {
	s := NewLoadBalanced(newInterceptor())

	var agents []*pool.Agent
	for _, name := range []string{"a1", "a2"} {
		a := testAgent(name, succeedingTool(name, nil), func(o *pool.AgentOptions) {
			o.MaxConcurrentTasks = 1
		})
		require.True(t, a.TryAcquire())
		agents = append(agents, a)
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.5))
	assert.Equal(t, StatusAllAgentsBusy, res.Status)
	assert.Empty(t, res.Outcomes)
}

func TestLoadBalanced_ReleasesLoadOnFailure(t *testing.T) {
	s := NewLoadBalanced(newInterceptor())

	a := testAgent("flaky", failingTool("flaky"))

	res := s.Coordinate(context.Background(), []*pool.Agent{a}, analysisTask(0.5))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Zero(t, a.Load(), "slot released on the failure path")
}

func TestLoadBalanced_NoMatchingAgents(t *testing.T) {
	s := NewLoadBalanced(newInterceptor())

	agents := []*pool.Agent{
		pool.NewAgent("other", succeedingTool("other", nil), func(o *pool.AgentOptions) {
			o.Specializations = []string{"unrelated"}
		}),
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.5))
	assert.Equal(t, StatusNoAgents, res.Status)
}
