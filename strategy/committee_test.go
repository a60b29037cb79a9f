package strategy

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/pool"
)

func votingTool(name, decision string, confidence float64) *scriptedTool {
	return succeedingTool(name, fmt.Sprintf(`{"decision":%q,"confidence":%v}`, decision, confidence))
}

func TestCommittee_WeightedDecision(t *testing.T) {
	s := NewCommittee(newInterceptor(), func(o *CommitteeOptions) { o.Seed = 7 })

	agents := []*pool.Agent{
		testAgent("a1", votingTool("a1", VoteApprove, 0.3)),
		testAgent("a2", votingTool("a2", VoteApprove, 0.3)),
		testAgent("a3", votingTool("a3", VoteReject, 0.9)),
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.7))
	require.True(t, res.Succeeded())
	assert.Equal(t, "committee", res.Strategy)
	assert.Equal(t, VoteReject, res.Decision, "a single emphatic rejection outweighs two weak approvals")
	assert.InDelta(t, 0.9/1.5, res.Confidence, 1e-9)

	output, ok := res.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, VoteReject, output["decision"])
	totals, ok := output["totals"].(map[string]float64)
	require.True(t, ok)
	assert.InDelta(t, 0.6, totals[VoteApprove], 1e-9)
	assert.InDelta(t, 0.9, totals[VoteReject], 1e-9)
}

func TestCommittee_FallbackVotes(t *testing.T) {
	s := NewCommittee(newInterceptor(), func(o *CommitteeOptions) { o.Seed = 7 })

	// Non-JSON output: a successful run approves with the agent's success
	// rate, a failed one abstains without weight.
	agents := []*pool.Agent{
		testAgent("a1", succeedingTool("a1", "all good")),
		testAgent("a2", succeedingTool("a2", "looks fine")),
		testAgent("a3", failingTool("a3")),
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.7))
	require.True(t, res.Succeeded())
	assert.Equal(t, VoteApprove, res.Decision)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)

	votes := map[string]string{}
	for _, out := range res.Outcomes {
		votes[out.Agent] = out.Vote
	}
	assert.Equal(t, VoteApprove, votes["a1"])
	assert.Equal(t, VoteAbstain, votes["a3"])
}

func TestCommittee_QuorumNotReached(t *testing.T) {
	s := NewCommittee(newInterceptor(), func(o *CommitteeOptions) { o.Seed = 7 })

	agents := []*pool.Agent{
		testAgent("a1", votingTool("a1", VoteApprove, 0.5)),
		testAgent("a2", votingTool("a2", VoteApprove, 0.5)),
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.7))
	assert.Equal(t, StatusInsufficientAgents, res.Status)
	assert.Empty(t, res.Outcomes, "no votes are cast below quorum")
}

func TestCommittee_NoMatchingAgents(t *testing.T) {
	s := NewCommittee(newInterceptor(), func(o *CommitteeOptions) { o.Seed = 7 })

	agents := []*pool.Agent{
		pool.NewAgent("other", succeedingTool("other", nil), func(o *pool.AgentOptions) {
			o.Specializations = []string{"unrelated"}
		}),
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.7))
	assert.Equal(t, StatusNoAgents, res.Status)
}

func TestCommittee_VoterCap(t *testing.T) {
	s := NewCommittee(newInterceptor(), func(o *CommitteeOptions) { o.Seed = 7 })

	var agents []*pool.Agent
	for i := 0; i < 7; i++ {
		name := fmt.Sprintf("a%d", i)
		agents = append(agents, testAgent(name, votingTool(name, VoteApprove, 0.5)))
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.7))
	require.True(t, res.Succeeded())
	assert.Len(t, res.Outcomes, 5, "at most five voters are sampled")
}

func TestCommittee_SeededSamplingIsDeterministic(t *testing.T) {
	build := func() (*Committee, []*pool.Agent) {
		var agents []*pool.Agent
		for i := 0; i < 7; i++ {
			name := fmt.Sprintf("a%d", i)
			agents = append(agents, testAgent(name, votingTool(name, VoteApprove, 0.5)))
		}
		return NewCommittee(newInterceptor(), func(o *CommitteeOptions) { o.Seed = 42 }), agents
	}

	voterNames := func(res *Result) []string {
		out := make([]string, len(res.Outcomes))
		for i, o := range res.Outcomes {
			out[i] = o.Agent
		}
		return out
	}

	s1, agents1 := build()
	s2, agents2 := build()
	res1 := s1.Coordinate(context.Background(), agents1, analysisTask(0.7))
	res2 := s2.Coordinate(context.Background(), agents2, analysisTask(0.7))

	assert.Equal(t, voterNames(res1), voterNames(res2), "same seed samples the same voters")
}

func TestCommittee_VotesRouteThroughInterceptor(t *testing.T) {
	ic := newInterceptor()
	s := NewCommittee(ic, func(o *CommitteeOptions) { o.Seed = 7 })

	agents := []*pool.Agent{
		testAgent("a1", votingTool("a1", VoteApprove, 0.5)),
		testAgent("a2", votingTool("a2", VoteApprove, 0.5)),
		testAgent("a3", votingTool("a3", VoteApprove, 0.5)),
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.7))
	require.True(t, res.Succeeded())
	assert.Equal(t, 3, ic.Stats().Total, "every vote is a real wrapped execution")
}

func TestCommittee_AllVotersBusy(t *testing.T) {
	s := NewCommittee(newInterceptor(), func(o *CommitteeOptions) { o.Seed = 7 })

	var agents []*pool.Agent
	for i := 0; i < 3; i++ {
		a := testAgent(fmt.Sprintf("a%d", i), votingTool("a", VoteApprove, 0.5), func(o *pool.AgentOptions) {
			o.MaxConcurrentTasks = 1
		})
		require.True(t, a.TryAcquire())
		agents = append(agents, a)
	}

	res := s.Coordinate(context.Background(), agents, analysisTask(0.7))
	assert.Equal(t, StatusAllAgentsBusy, res.Status)
}
