package memory

import (
	"context"
	"sync"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// ConversationBuffer implements History in process memory. It backs local
// runs without Redis.
type ConversationBuffer struct {
	messages map[string][]interfaces.Message
	turns    int
	mu       sync.RWMutex
}

// Option represents an option for configuring the conversation buffer
type Option func(*ConversationBuffer)

// WithMaxTurns sets the number of turns kept per session
func WithMaxTurns(turns int) Option {
	return func(c *ConversationBuffer) {
		c.turns = turns
	}
}

// NewConversationBuffer creates a new conversation buffer
func NewConversationBuffer(options ...Option) *ConversationBuffer {
	buffer := &ConversationBuffer{
		messages: make(map[string][]interfaces.Message),
		turns:    DefaultHistoryTurns,
	}
	for _, option := range options {
		option(buffer)
	}
	return buffer
}

// AddMessages appends messages to the session
func (c *ConversationBuffer) AddMessages(_ context.Context, s Session, messages ...interfaces.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sessionKey("", s)
	c.messages[key] = append(c.messages[key], messages...)
	if limit := 2 * c.turns; limit > 0 && len(c.messages[key]) > limit {
		c.messages[key] = c.messages[key][len(c.messages[key])-limit:]
	}
	return nil
}

// Messages returns a copy of the session messages
func (c *ConversationBuffer) Messages(_ context.Context, s Session) ([]interfaces.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored := c.messages[sessionKey("", s)]
	out := make([]interfaces.Message, len(stored))
	copy(out, stored)
	return out, nil
}

// Clear clears the buffer for a session
func (c *ConversationBuffer) Clear(_ context.Context, s Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, sessionKey("", s))
	return nil
}
