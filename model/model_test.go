package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
)

func TestMockModel_CannedResponses(t *testing.T) {
	m := NewMockModel("tester")
	m.AddResponse("weather", "sunny")

	resp, err := m.Complete(context.Background(), Request{Prompt: "what is the weather like"})
	require.NoError(t, err)
	assert.Equal(t, "sunny", resp.Text)

	resp, err = m.Complete(context.Background(), Request{Prompt: "unrelated"})
	require.NoError(t, err)
	assert.Equal(t, "mock response to: unrelated", resp.Text)

	info := m.Info()
	assert.Equal(t, "tester", info.Name)
	assert.Equal(t, "mock", info.Provider)
}

func TestTool_PromptPassthrough(t *testing.T) {
	m := NewMockModel("tester")
	m.AddResponse("analyze host-7", "no anomalies")

	tool := NewTool("analyst", m)
	assert.Equal(t, "analyst", tool.Name())

	res, err := tool.Execute(context.Background(), map[string]any{"prompt": "analyze host-7"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "no anomalies", res.Output)
}

func TestTool_SerializesStructuredInput(t *testing.T) {
	m := NewMockModel("tester")
	m.AddResponse(`"subject":"host-7"`, "structured ok")

	tool := NewTool("analyst", m)
	res, err := tool.Execute(context.Background(), map[string]any{"subject": "host-7"})
	require.NoError(t, err)
	assert.Equal(t, "structured ok", res.Output)
}

func TestTool_EmptyInput(t *testing.T) {
	tool := NewTool("analyst", NewMockModel("tester"))

	_, err := tool.Execute(context.Background(), nil)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prompt", verr.Field)
}

type failingModel struct{}

func (failingModel) Complete(context.Context, Request) (*Response, error) {
	return nil, errors.New("rate limited")
}

func (failingModel) Info() Info { return Info{Name: "failing", Provider: "mock"} }

func TestTool_ProviderErrorPropagates(t *testing.T) {
	tool := NewTool("analyst", failingModel{})

	_, err := tool.Execute(context.Background(), map[string]any{"prompt": "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
