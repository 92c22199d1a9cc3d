package chat

import (
	"sync"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a single chat message
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage creates a message stamped with the current time
func NewMessage(role Role, content string) Message {
	now := time.Now()
	return Message{
		ID:        nextID(now),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

var (
	idMu   sync.Mutex
	lastID int64
)

// nextID derives an ID from the creation time in milliseconds.
// IDs handed out in the same millisecond are bumped so they stay strictly increasing.
func nextID(now time.Time) int64 {
	idMu.Lock()
	defer idMu.Unlock()

	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}
