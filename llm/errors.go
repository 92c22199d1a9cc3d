package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const (
	// FallbackErrorMessage is used when an error body carries no message
	FallbackErrorMessage = "Failed to get response"
	// EmptyResponsePlaceholder replaces a successful but empty completion
	EmptyResponsePlaceholder = "No response received."

	maxErrorBody = 1 << 20
)

// ErrMalformedChunk marks a streamed data line whose payload is not valid JSON
var ErrMalformedChunk = errors.New("malformed stream chunk")

// CompletionFailedError is returned for any non-2xx answer from the completion endpoint
type CompletionFailedError struct {
	StatusCode int
	Message    string
}

// Error returns the upstream message unchanged
func (e *CompletionFailedError) Error() string {
	return e.Message
}

// IsCompletionFailed reports whether err is (or wraps) a CompletionFailedError
func IsCompletionFailed(err error) bool {
	var cf *CompletionFailedError
	return errors.As(err, &cf)
}

// errorFromResponse builds a CompletionFailedError from a non-2xx response,
// taking the message from the JSON error envelope when there is one
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := FallbackErrorMessage
	var envelope openai.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	return &CompletionFailedError{StatusCode: resp.StatusCode, Message: message}
}

func malformedChunk(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedChunk, err)
}
