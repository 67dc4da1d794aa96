package conversation

import (
	"sort"
	"sync"

	"github.com/qpg-app/qpg/internal/ai"
)

// Manager owns the in-memory conversations of this process, keyed by
// chat id. The set of ids it holds is the set of chats that have already
// received the system preamble.
type Manager struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	maxHistory    int
}

// NewManager creates a Manager. maxHistory bounds the messages kept per
// conversation; system messages are never dropped. Zero means unbounded.
func NewManager(maxHistory int) *Manager {
	return &Manager{
		conversations: make(map[string]*Conversation),
		maxHistory:    maxHistory,
	}
}

// Begin registers chatID and, if it was unseen, records preamble as its
// system message. The check and the insert are one step, so concurrent
// first turns of the same chat record the preamble exactly once. It
// reports whether the preamble was recorded.
func (m *Manager) Begin(chatID, preamble string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.conversations[chatID]; seen {
		return false
	}

	conv := NewConversation(chatID)
	conv.AddMessage(Message{Role: ai.RoleSystem, Content: preamble})
	m.conversations[chatID] = conv
	return true
}

// Seen reports whether chatID has begun.
func (m *Manager) Seen(chatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conversations[chatID]
	return ok
}

// History returns a copy of chatID's messages in provider format.
func (m *Manager) History(chatID string) []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[chatID]
	if !ok {
		return nil
	}
	return conv.GetMessagesForAI()
}

// Record appends a completed turn to chatID. Unknown ids are ignored.
func (m *Manager) Record(chatID string, messages ...Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[chatID]
	if !ok {
		return
	}
	for _, msg := range messages {
		conv.AddMessage(msg)
	}
	conv.trim(m.maxHistory)
}

// Get returns a copy of the conversation for chatID.
func (m *Manager) Get(chatID string) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[chatID]
	if !ok {
		return nil, false
	}
	c := *conv
	c.Messages = append([]Message(nil), conv.Messages...)
	return &c, true
}

// List returns the known chat ids, oldest first.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	convs := make([]*Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].CreatedAt.Before(convs[j].CreatedAt)
	})

	ids := make([]string, len(convs))
	for i, conv := range convs {
		ids[i] = conv.ID
	}
	return ids
}

// Delete forgets chatID; its next turn receives the preamble again.
func (m *Manager) Delete(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, chatID)
}
