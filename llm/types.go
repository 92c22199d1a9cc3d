package llm

import (
	"context"
	"net/http"
	"time"
)

// DefaultTemperature is sent with every completion request
const DefaultTemperature = 0.7

// Message is one role-tagged entry of the history sent upstream
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// StreamResponse represents a chunk of streaming response
type StreamResponse struct {
	Content string
	Done    bool
	Error   error
}

// Provider is the completion backend the widget talks to
type Provider interface {
	// StreamChat sends messages and returns a channel of incremental deltas.
	// Upstream failures are returned before any delta is produced.
	StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error)

	// Chat sends messages and returns the complete response (non-streaming)
	Chat(ctx context.Context, messages []Message) (string, error)

	// Name returns the provider name
	Name() string

	// ValidateConfig validates the provider configuration
	ValidateConfig() error
}

// Config represents provider configuration
type Config struct {
	ProviderName string
	APIKey       string
	Endpoint     string
	Model        string
	Temperature  float64
	// Timeout bounds a whole request; zero leaves it to the transport
	Timeout    time.Duration
	HTTPClient *http.Client
}
