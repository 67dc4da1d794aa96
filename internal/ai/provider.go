package ai

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// AIProvider is the language-model collaborator: send a conversation,
// get the next assistant message back.
type AIProvider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
