package widget

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chat-widget/chat"
	"chat-widget/llm"
	"chat-widget/storage"
	"chat-widget/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers from canned values and records what it was sent
type fakeProvider struct {
	mu       sync.Mutex
	requests [][]llm.Message

	reply     string
	chatErr   error
	deltas    []string
	streamErr error
	midErr    error
	configErr error
	gate      chan struct{}
}

func (f *fakeProvider) record(messages []llm.Message) {
	f.mu.Lock()
	f.requests = append(f.requests, messages)
	f.mu.Unlock()
}

func (f *fakeProvider) lastRequest() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.record(messages)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.chatErr
}

func (f *fakeProvider) StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.StreamResponse, error) {
	f.record(messages)
	if f.streamErr != nil {
		return nil, f.streamErr
	}

	ch := make(chan llm.StreamResponse)
	go func() {
		defer close(ch)
		for _, d := range f.deltas {
			select {
			case ch <- llm.StreamResponse{Content: d}:
			case <-ctx.Done():
				return
			}
		}
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return
			}
		}
		if f.midErr != nil {
			ch <- llm.StreamResponse{Error: f.midErr}
			return
		}
		ch <- llm.StreamResponse{Done: true}
	}()
	return ch, nil
}

func (f *fakeProvider) Name() string          { return "fake" }
func (f *fakeProvider) ValidateConfig() error { return f.configErr }

func testSettings(stream bool) utils.Settings {
	return utils.Settings{
		Model:        "gpt-test",
		SystemPrompt: "You are a shop assistant.",
		Stream:       stream,
		StorageMode:  utils.StorageSession,
		APIKey:       "sk-test",
		Welcome:      "👋 Hello! How can I help you today?",
	}
}

func newTestController(t *testing.T, settings utils.Settings, provider llm.Provider) (*Controller, *storage.SessionBackend) {
	t.Helper()
	backend := storage.NewSessionBackend()
	store := storage.NewStore(settings.StorageMode, backend, nil)
	return NewController(settings, provider, store, nil), backend
}

func TestController_BatchReply(t *testing.T) {
	provider := &fakeProvider{reply: "Hello"}
	c, backend := newTestController(t, testSettings(false), provider)
	assert.True(t, c.ShowWelcome())

	require.NoError(t, c.Send(context.Background(), "Where's my order?"))
	c.Wait()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, "Where's my order?", msgs[0].Content)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.ShowWelcome())

	sent := provider.lastRequest()
	require.Len(t, sent, 2)
	assert.Equal(t, "system", sent[0].Role)
	assert.Equal(t, "You are a shop assistant.", sent[0].Content)
	assert.Equal(t, "user", sent[1].Role)

	_, ok, _ := backend.Read(storage.ConversationKey)
	assert.True(t, ok)
}

func TestController_StreamingReply(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"Hi", " there"}}
	c, backend := newTestController(t, testSettings(true), provider)

	var notifications atomic.Int32
	c.Subscribe(func() { notifications.Add(1) })

	require.NoError(t, c.QuickReply(context.Background(), "Discount codes?"))
	c.Wait()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi there", msgs[1].Content)
	assert.Equal(t, StateIdle, c.State())
	assert.GreaterOrEqual(t, int(notifications.Load()), 4)

	stored := storage.NewStore(utils.StorageSession, backend, nil).Load()
	require.Len(t, stored, 2)
	assert.Equal(t, "Hi there", stored[1].Content)
}

func TestController_RejectsEmptyInput(t *testing.T) {
	provider := &fakeProvider{reply: "Hello"}
	c, _ := newTestController(t, testSettings(false), provider)

	for _, text := range []string{"", "   ", "\n\t "} {
		assert.ErrorIs(t, c.Send(context.Background(), text), ErrEmptyMessage)
	}
	assert.Empty(t, c.Messages())
	assert.Nil(t, provider.lastRequest())
}

func TestController_SingleFlight(t *testing.T) {
	provider := &fakeProvider{reply: "Hello", gate: make(chan struct{})}
	c, _ := newTestController(t, testSettings(false), provider)

	require.NoError(t, c.Send(context.Background(), "first"))
	assert.Equal(t, StateSending, c.State())
	assert.ErrorIs(t, c.Send(context.Background(), "second"), ErrBusy)

	close(provider.gate)
	c.Wait()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, StateIdle, c.State())

	provider.gate = nil
	require.NoError(t, c.Send(context.Background(), "second"))
	c.Wait()
	assert.Len(t, c.Messages(), 4)
}

func TestController_MissingCredential(t *testing.T) {
	settings := testSettings(false)
	settings.APIKey = ""
	provider := &fakeProvider{reply: "Hello"}
	c, _ := newTestController(t, settings, provider)
	c.SetInput("Returns policy?")

	err := c.SendInput(context.Background())
	assert.ErrorIs(t, err, utils.ErrConfigurationMissing)
	assert.Empty(t, c.Messages())
	assert.Nil(t, provider.lastRequest())
	assert.Equal(t, "Returns policy?", c.Input(), "input survives a rejected send")
}

func TestController_ProviderConfigRejected(t *testing.T) {
	provider := &fakeProvider{reply: "Hello", configErr: errors.New("model is required")}
	c, _ := newTestController(t, testSettings(false), provider)

	err := c.Send(context.Background(), "Returns policy?")
	assert.EqualError(t, err, "model is required")
	assert.Empty(t, c.Messages())
	assert.Nil(t, provider.lastRequest())
	assert.Equal(t, StateIdle, c.State())
}

func TestController_FailureAppendsErrorMessage(t *testing.T) {
	provider := &fakeProvider{chatErr: &llm.CompletionFailedError{StatusCode: 401, Message: "invalid key"}}
	c, _ := newTestController(t, testSettings(false), provider)

	require.NoError(t, c.Send(context.Background(), "hello"))
	c.Wait()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Sorry, I encountered an error: invalid key. Please try again.", msgs[1].Content)
	assert.Equal(t, StateIdleWithError, c.State())
	assert.True(t, llm.IsCompletionFailed(c.LastError()))
	assert.Greater(t, msgs[1].ID, msgs[0].ID)

	provider.chatErr = nil
	provider.reply = "ok now"
	require.NoError(t, c.Send(context.Background(), "again"))
	c.Wait()
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.LastError())
}

func TestController_StreamErrors(t *testing.T) {
	t.Run("rejected before streaming", func(t *testing.T) {
		provider := &fakeProvider{streamErr: &llm.CompletionFailedError{StatusCode: 500, Message: "upstream down"}}
		c, _ := newTestController(t, testSettings(true), provider)

		require.NoError(t, c.Send(context.Background(), "hello"))
		c.Wait()

		msgs := c.Messages()
		require.Len(t, msgs, 2, "no empty assistant message before the request is accepted")
		assert.Contains(t, msgs[1].Content, "upstream down")
	})

	t.Run("fails mid stream", func(t *testing.T) {
		provider := &fakeProvider{deltas: []string{"Partial"}, midErr: errors.New("connection reset")}
		c, _ := newTestController(t, testSettings(true), provider)

		require.NoError(t, c.Send(context.Background(), "hello"))
		c.Wait()

		msgs := c.Messages()
		require.Len(t, msgs, 3)
		assert.Equal(t, "Partial", msgs[1].Content)
		assert.Equal(t, ErrorReply(errors.New("connection reset")), msgs[2].Content)
		assert.Equal(t, StateIdleWithError, c.State())
	})
}

func TestController_ResetClearsBackend(t *testing.T) {
	provider := &fakeProvider{reply: "Hello"}
	c, backend := newTestController(t, testSettings(false), provider)

	require.NoError(t, c.Send(context.Background(), "hi"))
	c.Wait()
	_, ok, _ := backend.Read(storage.ConversationKey)
	require.True(t, ok)

	require.NoError(t, c.Reset())
	assert.Empty(t, c.Messages())
	assert.True(t, c.ShowWelcome())
	_, ok, _ = backend.Read(storage.ConversationKey)
	assert.False(t, ok)
}

func TestController_ResetDiscardsOutstandingReply(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"Hi"}, gate: make(chan struct{})}
	c, backend := newTestController(t, testSettings(true), provider)

	require.NoError(t, c.Send(context.Background(), "hi"))
	require.NoError(t, c.Reset())
	c.Wait()

	assert.Empty(t, c.Messages())
	assert.Equal(t, StateIdle, c.State())
	_, ok, _ := backend.Read(storage.ConversationKey)
	assert.False(t, ok)
}

func TestController_HydratesFromStore(t *testing.T) {
	backend := storage.NewSessionBackend()
	store := storage.NewStore(utils.StorageSession, backend, nil)
	require.NoError(t, store.Save([]chat.Message{chat.NewMessage(chat.RoleUser, "Where's my order?")}))

	c := NewController(testSettings(false), &fakeProvider{}, store, nil)
	assert.False(t, c.ShowWelcome())
	require.Len(t, c.Messages(), 1)
}

func TestController_MemoryModeStartsEmpty(t *testing.T) {
	settings := testSettings(false)
	settings.StorageMode = utils.StorageMemory
	provider := &fakeProvider{reply: "Hello"}

	backend := storage.NewSessionBackend()
	first := NewController(settings, provider, storage.NewStore(utils.StorageMemory, backend, nil), nil)
	require.NoError(t, first.Send(context.Background(), "hi"))
	first.Wait()
	require.Len(t, first.Messages(), 2)

	second := NewController(settings, provider, storage.NewStore(utils.StorageMemory, backend, nil), nil)
	assert.True(t, second.ShowWelcome())
}

func TestController_ShutdownCancelsQuietly(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"Hi"}, gate: make(chan struct{})}
	c, _ := newTestController(t, testSettings(true), provider)

	require.NoError(t, c.Send(context.Background(), "hi"))

	require.Eventually(t, func() bool {
		msgs := c.Messages()
		return len(msgs) == 2 && msgs[1].Content == "Hi"
	}, 2*time.Second, 10*time.Millisecond)

	c.Shutdown()

	msgs := c.Messages()
	require.Len(t, msgs, 2, "cancellation adds no error message")
	assert.Equal(t, "Hi", msgs[1].Content)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_PanelAndInput(t *testing.T) {
	c, _ := newTestController(t, testSettings(false), &fakeProvider{reply: "Hello"})

	var count atomic.Int32
	unsubscribe := c.Subscribe(func() { count.Add(1) })

	assert.False(t, c.IsOpen())
	c.Toggle()
	assert.True(t, c.IsOpen())
	c.Open()
	c.Close()
	assert.False(t, c.IsOpen())
	assert.Equal(t, int32(2), count.Load(), "Open on an open panel does not notify")

	unsubscribe()
	c.Toggle()
	assert.Equal(t, int32(2), count.Load())

	assert.False(t, c.CanSubmit())
	c.SetInput("  ")
	assert.False(t, c.CanSubmit())
	c.SetInput("hello")
	assert.True(t, c.CanSubmit())

	require.NoError(t, c.SendInput(context.Background()))
	assert.Empty(t, c.Input())
	c.Wait()
}

func TestController_RecoversFromProviderPanic(t *testing.T) {
	c, _ := newTestController(t, testSettings(false), panickingProvider{})

	require.NoError(t, c.Send(context.Background(), "hi"))
	c.Wait()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "unexpected error")
	assert.Equal(t, StateIdleWithError, c.State())
}

type panickingProvider struct{}

func (panickingProvider) Chat(context.Context, []llm.Message) (string, error) { panic("boom") }
func (panickingProvider) StreamChat(context.Context, []llm.Message) (<-chan llm.StreamResponse, error) {
	panic("boom")
}
func (panickingProvider) Name() string          { return "panicking" }
func (panickingProvider) ValidateConfig() error { return nil }
