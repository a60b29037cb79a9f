package model

import (
	"context"
	"fmt"
	"strings"
)

// Request captures one normalized completion request.
type Request struct {
	// Instructions is the system-level steering text, optional.
	Instructions string `json:"instructions,omitempty"`

	// Prompt is the user-level input.
	Prompt string `json:"prompt"`
}

// TokenUsage captures token statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one completed model output.
type Response struct {
	Text  string      `json:"text"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface a worker backend implements.
type Model interface {
	// Complete performs one text completion.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns metadata about the implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
// It returns canned responses keyed by prompt substring, falling back to an
// echo of the prompt.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned response returned when the prompt contains
// the given substring.
func (m *MockModel) AddResponse(promptContains, response string) {
	m.responses[promptContains] = response
}

// Complete implements Model.
func (m *MockModel) Complete(_ context.Context, req Request) (*Response, error) {
	for needle, response := range m.responses {
		if needle != "" && strings.Contains(req.Prompt, needle) {
			return &Response{Text: response}, nil
		}
	}
	return &Response{Text: fmt.Sprintf("mock response to: %s", req.Prompt)}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
