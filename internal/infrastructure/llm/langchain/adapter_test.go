package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/infrastructure/logger"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, o := range options {
		o(&m.opts)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestChatConvertsToolCalls(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: `{"memory":"on search page"}`,
		ToolCalls: []llms.ToolCall{{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "click", Arguments: `{"index":2}`},
		}},
	}}}}

	a := New(model, logger.NewNopLogger())
	resp, err := a.Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: "you navigate"},
			{Role: entity.RoleUser, Content: "state", Images: []string{"data:image/jpeg;base64,AA"}},
		},
		Tools: []entity.ToolDefinition{{Name: "click", Parameters: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "click", resp.Message.ToolCalls[0].Name)
	assert.Equal(t, `{"index":2}`, resp.Message.ToolCalls[0].Arguments)
	assert.Equal(t, entity.RoleAssistant, resp.Message.Role)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Len(t, model.messages[1].Parts, 2)
	require.Len(t, model.opts.Tools, 1)
	assert.Equal(t, "click", model.opts.Tools[0].Function.Name)
}

func TestChatErrors(t *testing.T) {
	a := New(&fakeModel{err: errors.New("rate limited")}, nil)
	_, err := a.Chat(context.Background(), output.ChatRequest{Messages: []entity.Message{{Role: entity.RoleUser, Content: "x"}}})
	assert.ErrorContains(t, err, "rate limited")

	a = New(&fakeModel{resp: &llms.ContentResponse{}}, nil)
	_, err = a.Chat(context.Background(), output.ChatRequest{Messages: []entity.Message{{Role: entity.RoleUser, Content: "x"}}})
	assert.ErrorContains(t, err, "no choices")
}
