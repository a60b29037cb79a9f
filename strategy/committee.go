package strategy

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/pool"
)

// Committee decision values.
const (
	VoteApprove = "approve"
	VoteReject  = "reject"
	VoteAbstain = "abstain"
)

const (
	defaultQuorum    = 3
	defaultMaxVoters = 5
)

// CommitteeOptions configures the committee strategy.
type CommitteeOptions struct {
	Logger logging.Logger

	// Quorum is the minimum number of matching agents required before a
	// committee decision can proceed.
	Quorum int

	// MaxVoters caps how many matching agents are sampled as voters.
	MaxVoters int

	// Seed makes voter sampling deterministic. Zero seeds from entropy.
	Seed int64
}

// Committee assembles a randomly sampled voter set from the matching agents
// and aggregates their confidence-weighted votes into a single decision.
//
// Every vote is a real interceptor-wrapped execution of the voter's backing
// tool; vote generation stays agent-implementation-agnostic by reading the
// decision out of the tool's output. An output carrying a JSON "decision"
// field (approve/reject/abstain, optionally with "confidence") is taken
// verbatim; otherwise a successful execution counts as an approval weighted
// by the agent's success rate and a failed one as a weightless abstention.
//
// Voter sampling is a workload-distribution device and is seedable for
// deterministic testing.
type Committee struct {
	base
	quorum    int
	maxVoters int

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewCommittee creates a committee voting strategy executing through the
// given interceptor.
func NewCommittee(interceptor *engine.Interceptor, optFns ...func(o *CommitteeOptions)) *Committee {
	opts := CommitteeOptions{
		Logger:    logging.NoOpLogger{},
		Quorum:    defaultQuorum,
		MaxVoters: defaultMaxVoters,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Quorum < 1 {
		opts.Quorum = defaultQuorum
	}
	if opts.MaxVoters < 1 {
		opts.MaxVoters = defaultMaxVoters
	}

	var rnd *rand.Rand
	if opts.Seed != 0 {
		rnd = rand.New(rand.NewSource(opts.Seed))
	} else {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}

	return &Committee{
		base:      base{interceptor: interceptor, logger: opts.Logger},
		quorum:    opts.Quorum,
		maxVoters: opts.MaxVoters,
		rnd:       rnd,
	}
}

// Name returns the strategy identifier.
func (s *Committee) Name() string { return "committee" }

// Coordinate implements Strategy.
func (s *Committee) Coordinate(ctx context.Context, agents []*pool.Agent, task *core.Task) *Result {
	if err := task.Validate(); err != nil {
		return invalidTask(s.Name(), task, err)
	}

	matches := matchAgents(agents, task)
	if len(matches) == 0 {
		return &Result{Status: StatusNoAgents, Strategy: s.Name(), TaskID: task.ID}
	}
	if len(matches) < s.quorum {
		return &Result{Status: StatusInsufficientAgents, Strategy: s.Name(), TaskID: task.ID}
	}

	voters := s.sample(matches)

	outcomes := make([]Outcome, len(voters))
	var wg sync.WaitGroup
	for i, a := range voters {
		wg.Add(1)
		go func(i int, a *pool.Agent) {
			defer wg.Done()
			fallbackWeight := a.SuccessRate()
			out := s.dispatch(ctx, a, task, task.Input)
			if !out.Skipped {
				out.Vote, out.Confidence = parseVote(out.Result, fallbackWeight)
			}
			outcomes[i] = out
		}(i, a)
	}
	wg.Wait()

	result := &Result{Strategy: s.Name(), TaskID: task.ID, Outcomes: outcomes}

	totals := map[string]float64{}
	var sum float64
	voted := 0
	for _, out := range outcomes {
		if out.Skipped {
			continue
		}
		voted++
		totals[out.Vote] += out.Confidence
		sum += out.Confidence
	}

	if voted == 0 {
		result.Status = StatusAllAgentsBusy
		return result
	}

	decision, weight := tally(totals)
	result.Decision = decision
	if sum > 0 {
		result.Confidence = weight / sum
	}
	result.Output = map[string]any{"decision": decision, "totals": totals}
	result.Status = StatusSuccess

	return result
}

// sample shuffles the matches with the seedable source and takes up to
// MaxVoters of them.
func (s *Committee) sample(matches []*pool.Agent) []*pool.Agent {
	out := append([]*pool.Agent(nil), matches...)

	s.rndMu.Lock()
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.rndMu.Unlock()

	if len(out) > s.maxVoters {
		out = out[:s.maxVoters]
	}
	return out
}

// tally picks the decision with the highest confidence-weighted total. Ties
// resolve in the fixed order approve, reject, abstain.
func tally(totals map[string]float64) (string, float64) {
	decision, weight := VoteAbstain, 0.0
	for _, vote := range []string{VoteApprove, VoteReject, VoteAbstain} {
		if totals[vote] > weight {
			decision, weight = vote, totals[vote]
		}
	}
	return decision, weight
}

// parseVote extracts an explicit {decision, confidence} pair from the tool
// output, falling back to outcome-derived voting: success approves with the
// agent's pre-dispatch success rate, failure abstains without weight.
func parseVote(res *core.Result, fallbackWeight float64) (string, float64) {
	if doc, ok := voteDocument(res.Output); ok {
		decision := gjson.Get(doc, "decision").String()
		switch decision {
		case VoteApprove, VoteReject, VoteAbstain:
			confidence := fallbackWeight
			if c := gjson.Get(doc, "confidence"); c.Exists() {
				confidence = c.Float()
			}
			return decision, confidence
		}
	}

	if res.Success {
		return VoteApprove, fallbackWeight
	}
	return VoteAbstain, 0
}

// voteDocument renders the tool output as a JSON document for gjson lookup.
func voteDocument(output any) (string, bool) {
	switch v := output.(type) {
	case nil:
		return "", false
	case string:
		if !gjson.Valid(v) {
			return "", false
		}
		return v, true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
