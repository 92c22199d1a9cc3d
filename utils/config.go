package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StorageMode selects where conversation history is kept
type StorageMode string

const (
	// StorageMemory keeps nothing across reloads
	StorageMemory StorageMode = "memory"
	// StorageSession keeps history until the process ends
	StorageSession StorageMode = "session"
	// StorageDurable keeps history in the sqlite database
	StorageDurable StorageMode = "durable"
)

const (
	// DefaultEndpoint is the chat completions endpoint used when none is configured
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	// DefaultModel is the model used when none is configured
	DefaultModel = "gpt-4o-mini"
)

// ErrConfigurationMissing is returned when no API credential could be found
var ErrConfigurationMissing = errors.New("OpenAI API key is not configured. Please set OPENAI_API_KEY in your environment or .env file")

// Config is the static widget configuration as stored on disk
type Config struct {
	Model          string   `json:"model"`
	SystemPrompt   string   `json:"systemPrompt"`
	Stream         bool     `json:"stream"`
	StorageMode    string   `json:"storageMode"`
	Endpoint       string   `json:"endpoint,omitempty"`
	Title          string   `json:"title,omitempty"`
	Welcome        string   `json:"welcome,omitempty"`
	QuickReplies   []string `json:"quickReplies,omitempty"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty"`
	DataPath       string   `json:"dataPath,omitempty"`
	KeyringService string   `json:"keyringService,omitempty"`
}

// Settings is the merged, immutable configuration a widget runs with
type Settings struct {
	Model        string
	SystemPrompt string
	Stream       bool
	StorageMode  StorageMode
	APIKey       string
	Endpoint     string
	Title        string
	Welcome      string
	QuickReplies []string
	Timeout      time.Duration
	DataPath     string
}

// Validate reports ErrConfigurationMissing when the credential is empty
func (s Settings) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return ErrConfigurationMissing
	}
	return nil
}

// DefaultConfig returns the configuration written on first run
func DefaultConfig() *Config {
	return &Config{
		Model:        DefaultModel,
		SystemPrompt: "You are a friendly support assistant for an online store. Help customers with orders, discounts and returns. Keep answers short.",
		Stream:       true,
		StorageMode:  string(StorageSession),
		Endpoint:     DefaultEndpoint,
		Title:        "Support Assistant",
		Welcome:      "👋 Hello! How can I help you today?",
		QuickReplies: []string{
			"Where's my order?",
			"Discount codes?",
			"Returns policy?",
		},
		DataPath:       "./data/chat.db",
		KeyringService: defaultKeyringService,
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Expand paths
	if config.DataPath != "" {
		config.DataPath = expandPath(config.DataPath)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(configPath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ParseStorageMode normalizes a configured storage mode.
// The browser spellings sessionStorage and localStorage are accepted as well.
func ParseStorageMode(value string) (StorageMode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "memory":
		return StorageMemory, true
	case "session", "sessionstorage":
		return StorageSession, true
	case "durable", "localstorage":
		return StorageDurable, true
	}
	return StorageSession, false
}

// BuildSettings merges the static config with the injected credential.
// An unknown storage mode falls back to session storage.
func BuildSettings(config *Config, apiKey string, logger *Logger) Settings {
	if config == nil {
		config = DefaultConfig()
	}

	mode, ok := ParseStorageMode(config.StorageMode)
	if !ok && logger != nil {
		logger.Warn("Unknown storage mode %q, falling back to %s", config.StorageMode, mode)
	}

	defaults := DefaultConfig()
	settings := Settings{
		Model:        config.Model,
		SystemPrompt: config.SystemPrompt,
		Stream:       config.Stream,
		StorageMode:  mode,
		APIKey:       strings.TrimSpace(apiKey),
		Endpoint:     config.Endpoint,
		Title:        config.Title,
		Welcome:      config.Welcome,
		QuickReplies: append([]string(nil), config.QuickReplies...),
		Timeout:      time.Duration(config.TimeoutSeconds) * time.Second,
		DataPath:     config.DataPath,
	}

	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.Endpoint == "" {
		settings.Endpoint = defaults.Endpoint
	}
	if settings.Title == "" {
		settings.Title = defaults.Title
	}
	if settings.Welcome == "" {
		settings.Welcome = defaults.Welcome
	}
	if settings.DataPath == "" {
		settings.DataPath = defaults.DataPath
	}
	if settings.Timeout < 0 {
		settings.Timeout = 0
	}

	return settings
}

// LoadSettings reads the config file, resolves the credential and merges both.
// A missing credential is not an error here; callers check Settings.Validate.
func LoadSettings(configPath string, credentials *CredentialSource, logger *Logger) (Settings, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return Settings{}, err
	}

	if credentials == nil {
		credentials = NewCredentialSource(config.KeyringService, logger)
	}
	apiKey := credentials.Lookup()
	if apiKey == "" && logger != nil {
		logger.Warn("No API key found; sending will be disabled until one is configured")
	}

	return BuildSettings(config, apiKey, logger), nil
}

// expandPath expands ~ and relative paths
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	// Expand ~
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		return absPath
	}

	return path
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to current directory
		return "./config/chatbot-config.json"
	}

	return filepath.Join(configDir, "chat-widget", "chatbot-config.json")
}

// EnsureDefaultConfig creates a default config file if it doesn't exist
func EnsureDefaultConfig() (string, error) {
	configPath := GetConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	if err := SaveConfig(configPath, DefaultConfig()); err != nil {
		return "", err
	}

	return configPath, nil
}
