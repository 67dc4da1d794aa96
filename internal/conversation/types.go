package conversation

import (
	"time"

	"github.com/qpg-app/qpg/internal/ai"
)

// Conversation is the history of one chat id
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single entry in a conversation
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewConversation creates an empty conversation
func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a message
func (c *Conversation) AddMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// ToAIFormat converts to the provider message format
func (m *Message) ToAIFormat() ai.Message {
	return ai.Message{
		Role:    m.Role,
		Content: m.Content,
	}
}

// GetMessagesForAI returns the history in provider format
func (c *Conversation) GetMessagesForAI() []ai.Message {
	messages := make([]ai.Message, 0, len(c.Messages))
	for _, msg := range c.Messages {
		messages = append(messages, msg.ToAIFormat())
	}
	return messages
}

// trim drops the oldest non-system messages until at most max remain.
func (c *Conversation) trim(max int) {
	if max <= 0 || len(c.Messages) <= max {
		return
	}

	kept := make([]Message, 0, max)
	excess := len(c.Messages) - max
	for _, msg := range c.Messages {
		if excess > 0 && msg.Role != ai.RoleSystem {
			excess--
			continue
		}
		kept = append(kept, msg)
	}
	c.Messages = kept
}
