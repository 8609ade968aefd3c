package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/safetylearn/safetylearn-web/internal/logger"
)

// assistantAck is the canned model turn that anchors the conversation
// after the system instructions.
const assistantAck = "I understand. I'll provide age-appropriate safety guidance focused on the specific topics for your age group. What would you like to know about staying safe?"

// Chat runs age-appropriate safety conversations on top of a provider.
type Chat struct {
	client LLM
	guard  *TopicGuard
	logger *logger.Log
}

func NewChat(client LLM) *Chat {
	return &Chat{
		client: client,
		guard:  NewTopicGuard(),
		logger: logger.New(),
	}
}

// Respond generates the assistant reply for a message within an existing
// conversation. Off-topic messages get an explicit redirect instruction
// appended for the model, naming the nearest allowed topic.
func (c *Chat) Respond(ctx context.Context, userAge int, history []Message, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message cannot be empty")
	}

	var b strings.Builder
	b.WriteString(SystemPrompt(userAge))
	b.WriteString("\n\nAssistant: ")
	b.WriteString(assistantAck)
	b.WriteString("\n")

	for _, turn := range history {
		switch turn.Role {
		case "user":
			b.WriteString("\nUser: ")
		default:
			b.WriteString("\nAssistant: ")
		}
		b.WriteString(turn.Content)
	}

	b.WriteString("\nUser: ")
	b.WriteString(message)

	if topic, onTopic := c.guard.NearestTopic(userAge, message); !onTopic && topic != "" {
		c.logger.Debugf("message looks off-topic, steering toward %q", topic)
		b.WriteString(fmt.Sprintf("\n\n(The user's question is outside your allowed topics. Gently redirect toward %q.)", topic))
	}

	b.WriteString("\nAssistant:")

	reply, err := c.client.GenerateResponse(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("safety chat generation failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
