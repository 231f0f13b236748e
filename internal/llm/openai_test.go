package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/RichardoC/aether-chat/internal/models"
)

type fakeModel struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range messages {
		for _, p := range m.Parts {
			if text, ok := p.(llms.TextContent); ok {
				f.prompt = text.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestOpenAIReplyTrimsQuotes(t *testing.T) {
	model := &fakeModel{reply: "  \"Sure thing\"  "}
	o := newOpenAIWithModel(model, time.Second)

	reply, err := o.Reply(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sure thing", reply)
	assert.Contains(t, model.prompt, "user: hi")
}

func TestOpenAIEmptyReplyFallsBack(t *testing.T) {
	o := newOpenAIWithModel(&fakeModel{reply: "   "}, time.Second)

	reply, err := o.Reply(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, fallback("hi"), reply)
}

func TestOpenAIError(t *testing.T) {
	o := newOpenAIWithModel(&fakeModel{err: errors.New("boom")}, time.Second)

	_, err := o.Reply(context.Background(), "hi", nil)
	assert.ErrorContains(t, err, "boom")
}

func TestBuildPromptDoesNotRepeatCurrentMessage(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there"},
		{Role: models.RoleUser, Content: "Any advice for me?"},
	}

	prompt := buildPrompt("Any advice for me?", history)
	assert.Equal(t, 1, strings.Count(prompt, "Any advice for me?"))
	assert.Contains(t, prompt, "assistant: hi there")
	assert.True(t, strings.HasSuffix(prompt, "user: Any advice for me?\n\nResponse:"))
}

func TestBuildPromptKeepsUnrelatedLastMessage(t *testing.T) {
	history := []models.Message{{Role: models.RoleUser, Content: "📷 Image"}}

	prompt := buildPrompt("", history)
	assert.Contains(t, prompt, "user: 📷 Image")
}
