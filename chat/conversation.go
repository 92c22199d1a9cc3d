package chat

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadyInFlight is returned when a second assistant message is started mid-stream
	ErrAlreadyInFlight = errors.New("an assistant message is already in flight")
	// ErrNotInFlight is returned when a delta arrives with no message in flight
	ErrNotInFlight = errors.New("no assistant message in flight")
)

// Conversation is the ordered, chronological list of messages shown in the widget.
// At most one message is in flight at a time and it is always the last element;
// only its Content may change, and only by appending.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
	inFlight bool
}

// NewConversation creates a conversation seeded with the given history
func NewConversation(history []Message) *Conversation {
	msgs := make([]Message, len(history))
	copy(msgs, history)
	return &Conversation{messages: msgs}
}

// Append adds a finished message to the end of the conversation
func (c *Conversation) Append(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrAlreadyInFlight
	}
	c.messages = append(c.messages, msg)
	return nil
}

// BeginAssistant appends an empty assistant message and marks it in flight
func (c *Conversation) BeginAssistant() (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return Message{}, ErrAlreadyInFlight
	}
	msg := NewMessage(RoleAssistant, "")
	c.messages = append(c.messages, msg)
	c.inFlight = true
	return msg, nil
}

// AppendDelta grows the content of the in-flight message
func (c *Conversation) AppendDelta(delta string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight {
		return ErrNotInFlight
	}
	last := len(c.messages) - 1
	c.messages[last].Content += delta
	return nil
}

// Finish clears the in-flight flag; the last message becomes immutable
func (c *Conversation) Finish() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// InFlight reports whether the last message is still growing
func (c *Conversation) InFlight() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inFlight
}

// Reset drops every message
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.messages = nil
	c.inFlight = false
	c.mu.Unlock()
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Snapshot returns a copy of the messages safe to render or persist
func (c *Conversation) Snapshot() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}
