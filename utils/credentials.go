package utils

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

const (
	// APIKeyEnv is the environment variable holding the completion API key
	APIKeyEnv = "OPENAI_API_KEY"

	defaultKeyringService = "chat-widget"
	keyringUser           = "openai"
)

// CredentialSource resolves the API key from the environment, a .env file
// or the OS keyring, in that order. Lookups never fail; a missing key is "".
type CredentialSource struct {
	EnvFile        string
	KeyringService string
	logger         *Logger
}

// NewCredentialSource creates a source reading ./.env and the given keyring service
func NewCredentialSource(keyringService string, logger *Logger) *CredentialSource {
	if keyringService == "" {
		keyringService = defaultKeyringService
	}
	return &CredentialSource{
		EnvFile:        ".env",
		KeyringService: keyringService,
		logger:         logger,
	}
}

// Lookup returns the first non-empty credential found
func (c *CredentialSource) Lookup() string {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key
	}
	if key := c.fromEnvFile(); key != "" {
		return key
	}
	return c.fromKeyring()
}

// StoreAPIKey saves key in the OS keyring for later lookups
func (c *CredentialSource) StoreAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key is empty")
	}
	return WrapError(keyring.Set(c.KeyringService, keyringUser, key), "failed to store API key")
}

// DeleteAPIKey removes the stored key from the OS keyring
func (c *CredentialSource) DeleteAPIKey() error {
	err := keyring.Delete(c.KeyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return WrapError(err, "failed to delete API key")
}

func (c *CredentialSource) fromEnvFile() string {
	if c.EnvFile == "" {
		return ""
	}
	// Read instead of Load so the process environment stays untouched
	values, err := godotenv.Read(c.EnvFile)
	if err != nil {
		if c.logger != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to read %s: %v", c.EnvFile, err)
		}
		return ""
	}
	return strings.TrimSpace(values[APIKeyEnv])
}

func (c *CredentialSource) fromKeyring() string {
	if c.KeyringService == "" {
		return ""
	}
	key, err := keyring.Get(c.KeyringService, keyringUser)
	if err != nil {
		if c.logger != nil && !errors.Is(err, keyring.ErrNotFound) {
			c.logger.Debug("Keyring lookup failed: %v", err)
		}
		return ""
	}
	return strings.TrimSpace(key)
}
