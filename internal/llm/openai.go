package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/RichardoC/aether-chat/internal/models"
)

const systemPrompt = `You are aetherAI, a friendly assistant inside a chat app.
Answer the user's latest message in a few sentences of plain text.`

// historyLimit caps how many earlier messages are sent along with a prompt.
const historyLimit = 10

type OpenAI struct {
	llm     llms.Model
	timeout time.Duration
}

func NewOpenAI(baseURL, token, model string, timeout time.Duration) (*OpenAI, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return newOpenAIWithModel(llm, timeout), nil
}

func newOpenAIWithModel(model llms.Model, timeout time.Duration) *OpenAI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{llm: model, timeout: timeout}
}

// buildPrompt renders history followed by the current message. The caller's
// history usually already ends with that message; it is not repeated.
func buildPrompt(prompt string, history []models.Message) string {
	if n := len(history); n > 0 && history[n-1].Role == models.RoleUser && history[n-1].Content == prompt {
		history = history[:n-1]
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nConversation history:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\nCurrent message:\n%s: %s\n\nResponse:", models.RoleUser, prompt)
	return b.String()
}

func (o *OpenAI) Reply(ctx context.Context, prompt string, history []models.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, o.llm, buildPrompt(prompt, history))
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	reply := strings.TrimSpace(completion)
	if strings.HasPrefix(reply, "\"") && strings.HasSuffix(reply, "\"") && len(reply) > 1 {
		reply = reply[1 : len(reply)-1]
	}
	if reply == "" {
		return fallback(prompt), nil
	}
	return reply, nil
}
