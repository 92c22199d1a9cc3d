// Package storage persists the widget conversation under a single fixed key.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"chat-widget/chat"
	"chat-widget/db"
	"chat-widget/utils"
)

const (
	// ConversationKey is the one physical key the conversation lives under
	ConversationKey = "chatbot_conversation"

	envelopeVersion = 1
)

// ErrMalformedState marks a stored envelope that could not be decoded
var ErrMalformedState = errors.New("malformed stored conversation")

// envelope is the persisted JSON value. Envelopes written without a version
// are read as version 1.
type envelope struct {
	Version  int            `json:"version,omitempty"`
	Messages []chat.Message `json:"messages"`
}

// Store reads and writes the conversation through one backend
type Store struct {
	mode    utils.StorageMode
	backend Backend
	logger  *utils.Logger
}

// NewStore creates a store for mode on top of backend
func NewStore(mode utils.StorageMode, backend Backend, logger *utils.Logger) *Store {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	if backend == nil || mode == utils.StorageMemory {
		backend = MemoryBackend{}
	}
	return &Store{mode: mode, backend: backend, logger: logger}
}

// BackendFor picks the physical backend for a storage mode.
// Durable mode needs an open database.
func BackendFor(mode utils.StorageMode, database *db.DB) (Backend, error) {
	switch mode {
	case utils.StorageMemory:
		return MemoryBackend{}, nil
	case utils.StorageSession:
		return ProcessSession(), nil
	case utils.StorageDurable:
		if database == nil {
			return nil, errors.New("durable storage requires a database")
		}
		return NewDurableBackend(database), nil
	}
	return nil, fmt.Errorf("unknown storage mode %q", mode)
}

// Mode returns the storage mode this store was created for
func (s *Store) Mode() utils.StorageMode {
	return s.mode
}

// Load returns the stored history. It never fails: a missing, unreadable or
// malformed entry all come back as an empty history.
func (s *Store) Load() []chat.Message {
	raw, ok, err := s.backend.Read(ConversationKey)
	if err != nil {
		s.logger.Error("Failed to read stored conversation: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	messages, err := decodeEnvelope(raw)
	if err != nil {
		s.logger.Warn("Failed to load conversation: %v", err)
		return nil
	}

	s.logger.Debug("Loaded %d messages from %s storage", len(messages), s.mode)
	return messages
}

// Save writes the full history, or removes the entry when history is empty
func (s *Store) Save(messages []chat.Message) error {
	if s.mode == utils.StorageMemory {
		return nil
	}

	if len(messages) == 0 {
		return utils.WrapError(s.backend.Remove(ConversationKey), "failed to remove conversation")
	}

	data, err := json.Marshal(envelope{Version: envelopeVersion, Messages: messages})
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	return utils.WrapError(s.backend.Write(ConversationKey, string(data)), "failed to save conversation")
}

// Clear removes the stored entry regardless of in-memory state
func (s *Store) Clear() error {
	if s.mode == utils.StorageMemory {
		return nil
	}
	return utils.WrapError(s.backend.Remove(ConversationKey), "failed to clear conversation")
}

func decodeEnvelope(raw string) ([]chat.Message, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if env.Version != 0 && env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedState, env.Version)
	}
	for i, msg := range env.Messages {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("%w: message %d has role %q", ErrMalformedState, i, msg.Role)
		}
	}
	return env.Messages, nil
}
