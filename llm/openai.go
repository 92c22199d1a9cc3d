package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"chat-widget/utils"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to an OpenAI-compatible chat completions endpoint.
// It decodes the stream itself so a single malformed line never aborts a reply.
type OpenAIProvider struct {
	config Config
	client *http.Client
	logger *utils.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config, logger *utils.Logger) (*OpenAIProvider, error) {
	// Allow empty API key - validation happens before each send
	if config.Endpoint == "" {
		config.Endpoint = utils.DefaultEndpoint
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.ProviderName == "" {
		config.ProviderName = "OpenAI"
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}

	client := config.HTTPClient
	if client == nil {
		// Streaming replies can run long, so only connection setup is bounded here
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 120 * time.Second,
			},
		}
	}

	return &OpenAIProvider{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// Chat implements non-streaming chat
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	content, err := messageContent(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if content == "" {
		return EmptyResponsePlaceholder, nil
	}
	return content, nil
}

// StreamChat implements streaming chat. The request and status check run
// before returning, so a CompletionFailedError arrives as the returned error.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error) {
	parent := ctx
	ctx, cancel := p.withTimeout(parent)

	resp, err := p.post(ctx, messages, true)
	if err != nil {
		cancel()
		return nil, err
	}

	responseChan := make(chan StreamResponse)

	go func() {
		defer close(responseChan)
		defer cancel()
		defer resp.Body.Close()

		// Sends give up only when the caller is gone; a request timeout is still reported
		send := func(r StreamResponse) bool {
			select {
			case responseChan <- r:
				return true
			case <-parent.Done():
				return false
			}
		}

		err := DecodeStream(resp.Body, func(delta string) error {
			if !send(StreamResponse{Content: delta}) {
				return parent.Err()
			}
			return nil
		}, p.logger)

		if err != nil {
			if parent.Err() != nil {
				p.logger.Info("Stream stopped: %v", parent.Err())
				return
			}
			send(StreamResponse{Error: fmt.Errorf("stream error: %w", err)})
			return
		}
		send(StreamResponse{Done: true})
	}()

	return responseChan, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.config.ProviderName
}

// ValidateConfig validates the configuration
func (p *OpenAIProvider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return utils.ErrConfigurationMissing
	}
	if p.config.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

func (p *OpenAIProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout > 0 {
		return context.WithTimeout(ctx, p.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// post sends the completion request and turns a non-2xx answer into a CompletionFailedError
func (p *OpenAIProvider) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(p.buildRequest(messages, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	p.logger.Debug("POST %s model=%s messages=%d stream=%t", p.config.Endpoint, p.config.Model, len(messages), stream)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		failure := errorFromResponse(resp)
		p.logger.Warn("Completion request failed with status %d: %v", resp.StatusCode, failure)
		return nil, failure
	}

	return resp, nil
}

func (p *OpenAIProvider) buildRequest(messages []Message, stream bool) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    openaiMessages,
		Temperature: float32(p.config.Temperature),
		Stream:      stream,
	}
}
