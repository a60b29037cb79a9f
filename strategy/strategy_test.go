package strategy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/pool"
)

// scriptedTool returns a fixed result, optionally recording the inputs it was
// called with.
type scriptedTool struct {
	name   string
	result *core.Result
	err    error

	mu     sync.Mutex
	inputs []map[string]any
}

func (s *scriptedTool) Name() string { return s.name }

func (s *scriptedTool) Execute(_ context.Context, input map[string]any) (*core.Result, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, input)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *scriptedTool) recordedInputs() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.inputs...)
}

func succeedingTool(name string, output any) *scriptedTool {
	return &scriptedTool{name: name, result: &core.Result{Success: true, Output: output, Duration: time.Millisecond}}
}

func failingTool(name string) *scriptedTool {
	return &scriptedTool{name: name, err: errors.New(name + " broke")}
}

func testAgent(name string, tool core.Tool, optFns ...func(o *pool.AgentOptions)) *pool.Agent {
	return pool.NewAgent(name, tool, append([]func(o *pool.AgentOptions){func(o *pool.AgentOptions) {
		o.Specializations = []string{"analysis"}
	}}, optFns...)...)
}

func analysisTask(complexity float64) *core.Task {
	return &core.Task{
		ID:                   "task-1",
		Type:                 "gather",
		Complexity:           complexity,
		Priority:             5,
		RequiredCapabilities: []string{"analysis"},
	}
}

func newInterceptor() *engine.Interceptor {
	return engine.New()
}
