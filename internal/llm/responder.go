package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/RichardoC/aether-chat/internal/models"
)

// Responder produces the assistant's reply to a user message.
type Responder interface {
	Reply(ctx context.Context, prompt string, history []models.Message) (string, error)
}

type template struct {
	keywords []string
	reply    func(prompt string) string
}

func (t template) matches(lower string) bool {
	for _, k := range t.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func fixed(s string) func(string) string {
	return func(string) string { return s }
}

var templates = []template{
	{
		keywords: []string{"advice"},
		reply:    fixed("Here's my advice: Stay focused on your goals, embrace challenges as learning opportunities, and remember that progress, not perfection, is what matters most. What specific area would you like guidance on?"),
	},
	{
		keywords: []string{"youtube", "video"},
		reply:    fixed("For YouTube content ideas, consider: 1) Behind-the-scenes of your daily work, 2) Solving common problems in your niche, 3) Comparison videos, or 4) Educational tutorials. What's your channel focus?"),
	},
	{
		keywords: []string{"kratos", "lesson"},
		reply:    fixed("Kratos teaches us powerful lessons: Control your rage, learn from your past mistakes, protect what matters most, and never give up no matter the odds. The journey of redemption is always possible. Which lesson resonates with you?"),
	},
	{
		keywords: []string{"help", "?"},
		reply: func(prompt string) string {
			return fmt.Sprintf("I'd be happy to help you with \"%s\". Could you provide more details about what you're looking for? The more specific you are, the better I can assist you.", prompt)
		},
	},
}

func fallback(prompt string) string {
	return fmt.Sprintf("That's an interesting point about \"%s\". Let me think about this... Based on my understanding, I'd suggest approaching this from multiple angles. Would you like me to elaborate on any specific aspect?", prompt)
}

// Canned answers from a fixed template table. The first template whose
// keyword appears in the prompt wins.
type Canned struct{}

func NewCanned() *Canned {
	return &Canned{}
}

func (Canned) Reply(_ context.Context, prompt string, _ []models.Message) (string, error) {
	lower := strings.ToLower(prompt)
	for _, t := range templates {
		if t.matches(lower) {
			return t.reply(prompt), nil
		}
	}
	return fallback(prompt), nil
}
