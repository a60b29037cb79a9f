package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/taskmesh/core"
)

// ToolOptions configures the Model-to-Tool adapter.
type ToolOptions struct {
	// Instructions is attached to every request as the system-level text.
	Instructions string
}

// Tool adapts a Model to the core.Tool contract so model-backed agents flow
// through the interceptor pipeline like any other unit of work.
//
// The prompt is taken from the "prompt" input key when it is a string;
// otherwise the whole input map is serialized as the prompt. Provider errors
// are returned as errors and classified by the interceptor.
type Tool struct {
	name         string
	model        Model
	instructions string
}

// NewTool wraps a Model as a named core.Tool.
func NewTool(name string, m Model, optFns ...func(o *ToolOptions)) *Tool {
	opts := ToolOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Tool{name: name, model: m, instructions: opts.Instructions}
}

// Name implements core.Tool.
func (t *Tool) Name() string { return t.name }

// Execute implements core.Tool.
func (t *Tool) Execute(ctx context.Context, input map[string]any) (*core.Result, error) {
	prompt, err := promptFrom(input)
	if err != nil {
		return nil, err
	}

	resp, err := t.model.Complete(ctx, Request{Instructions: t.instructions, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", t.model.Info().Name, err)
	}

	return &core.Result{Success: true, Output: resp.Text}, nil
}

func promptFrom(input map[string]any) (string, error) {
	if p, ok := input["prompt"].(string); ok && p != "" {
		return p, nil
	}
	if len(input) == 0 {
		return "", core.NewValidationError("prompt", "input must carry a prompt or serializable payload")
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("serialize prompt input: %w", err)
	}
	return string(b), nil
}
