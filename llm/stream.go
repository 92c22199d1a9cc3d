package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"chat-widget/utils"

	"github.com/sashabaranov/go-openai"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
	readSize     = 4096
)

// DeltaFunc receives each non-empty content delta in order
type DeltaFunc func(delta string) error

// StreamDecoder turns a newline-delimited completion stream into content deltas.
// Bytes are fed in arbitrary chunks; only complete lines are processed and the
// trailing fragment is held until the next Feed or Close.
type StreamDecoder struct {
	pending []byte
	done    bool
	skipped int
	onDelta DeltaFunc
	logger  *utils.Logger
}

// NewStreamDecoder creates a decoder delivering deltas to onDelta
func NewStreamDecoder(onDelta DeltaFunc, logger *utils.Logger) *StreamDecoder {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &StreamDecoder{onDelta: onDelta, logger: logger}
}

// Feed appends chunk to the decode buffer and processes every complete line
func (d *StreamDecoder) Feed(chunk []byte) error {
	if d.done {
		return nil
	}
	d.pending = append(d.pending, chunk...)

	start := 0
	for {
		i := bytes.IndexByte(d.pending[start:], '\n')
		if i < 0 {
			break
		}
		line := d.pending[start : start+i]
		start += i + 1

		if err := d.processLine(line); err != nil {
			return err
		}
		if d.done {
			d.pending = nil
			return nil
		}
	}

	// Keep only the incomplete fragment
	d.pending = append(d.pending[:0], d.pending[start:]...)
	return nil
}

// Close processes a final fragment that arrived without a newline
func (d *StreamDecoder) Close() error {
	if d.done || len(d.pending) == 0 {
		return nil
	}
	line := d.pending
	d.pending = nil
	return d.processLine(line)
}

// Done reports whether the [DONE] sentinel has been seen
func (d *StreamDecoder) Done() bool {
	return d.done
}

// Skipped returns how many data lines failed to parse
func (d *StreamDecoder) Skipped() int {
	return d.skipped
}

func (d *StreamDecoder) processLine(line []byte) error {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil
	}

	payload := line[len(dataPrefix):]
	if string(payload) == doneSentinel {
		d.done = true
		return nil
	}

	delta, err := deltaContent(payload)
	if err != nil {
		// Keepalives and partial lines happen upstream; skip and keep going
		d.skipped++
		d.logger.Debug("Skipping stream line: %v", malformedChunk(err))
		return nil
	}
	if delta == "" {
		return nil
	}
	return d.onDelta(delta)
}

// contentOnly holds the only fields read from a completion payload. Compatible
// backends disagree with the OpenAI types on fields like id and created.
type contentOnly struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func decodeContentOnly(payload []byte) (contentOnly, error) {
	var loose contentOnly
	err := json.Unmarshal(payload, &loose)
	return loose, err
}

// deltaContent extracts choices[0].delta.content from one stream payload
func deltaContent(payload []byte) (string, error) {
	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &chunk); err == nil {
		if len(chunk.Choices) == 0 {
			return "", nil
		}
		return chunk.Choices[0].Delta.Content, nil
	}

	loose, err := decodeContentOnly(payload)
	if err != nil {
		return "", err
	}
	if len(loose.Choices) == 0 {
		return "", nil
	}
	return loose.Choices[0].Delta.Content, nil
}

// messageContent extracts choices[0].message.content from a batch response body
func messageContent(body []byte) (string, error) {
	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err == nil {
		if len(completion.Choices) == 0 {
			return "", nil
		}
		return completion.Choices[0].Message.Content, nil
	}

	loose, err := decodeContentOnly(body)
	if err != nil {
		return "", err
	}
	if len(loose.Choices) == 0 {
		return "", nil
	}
	return loose.Choices[0].Message.Content, nil
}

// DecodeStream reads r until EOF or [DONE], delivering deltas to onDelta.
// Malformed lines are skipped; read errors and onDelta errors are returned.
func DecodeStream(r io.Reader, onDelta DeltaFunc, logger *utils.Logger) error {
	decoder := NewStreamDecoder(onDelta, logger)
	buf := make([]byte, readSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := decoder.Feed(buf[:n]); ferr != nil {
				return ferr
			}
			if decoder.Done() {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return decoder.Close()
		}
		if err != nil {
			return err
		}
	}
}
