package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chat-widget/chat"
	"chat-widget/llm"
	"chat-widget/storage"
	"chat-widget/utils"
)

// Listener is called after any change the views should repaint for.
// It runs on whichever goroutine made the change.
type Listener func()

// Controller owns one widget instance: its open flag, input text, conversation
// and the single outstanding completion request.
type Controller struct {
	mu           sync.Mutex
	settings     utils.Settings
	provider     llm.Provider
	store        *storage.Store
	conversation *chat.Conversation
	logger       *utils.Logger

	open      bool
	input     string
	state     State
	lastError error

	// generation is bumped by Reset so a request started before it cannot touch the new conversation
	generation uint64
	cancel     context.CancelFunc
	done       <-chan struct{}

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextListen int
}

// NewController creates a controller and hydrates it from the store
func NewController(settings utils.Settings, provider llm.Provider, store *storage.Store, logger *utils.Logger) *Controller {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	if store == nil {
		store = storage.NewStore(utils.StorageMemory, nil, logger)
	}

	history := store.Load()
	if len(history) > 0 {
		logger.Info("Restored %d messages from %s storage", len(history), store.Mode())
	}

	return &Controller{
		settings:     settings,
		provider:     provider,
		store:        store,
		conversation: chat.NewConversation(history),
		logger:       logger,
		listeners:    make(map[int]Listener),
	}
}

// Settings returns the settings the widget runs with
func (c *Controller) Settings() utils.Settings {
	return c.settings
}

// Subscribe registers fn for change notifications and returns a func that removes it
func (c *Controller) Subscribe(fn Listener) func() {
	c.listenerMu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.listenerMu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Toggle flips the panel between open and closed
func (c *Controller) Toggle() {
	c.mu.Lock()
	c.open = !c.open
	c.mu.Unlock()
	c.notify()
}

// Open shows the panel
func (c *Controller) Open() {
	c.setOpen(true)
}

// Close hides the panel. An outstanding request keeps running.
func (c *Controller) Close() {
	c.setOpen(false)
}

func (c *Controller) setOpen(open bool) {
	c.mu.Lock()
	changed := c.open != open
	c.open = open
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// IsOpen reports whether the panel is shown
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// SetInput records the current contents of the input box
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Input returns the current contents of the input box
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// State returns the send state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the failure that ended the previous turn, if any
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Messages returns a copy of the conversation
func (c *Controller) Messages() []chat.Message {
	return c.conversation.Snapshot()
}

// ShowWelcome reports whether the welcome text and quick replies should be shown
func (c *Controller) ShowWelcome() bool {
	return c.conversation.Len() == 0
}

// CanSubmit reports whether the send button should be enabled for the current input
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CanSend() && strings.TrimSpace(c.input) != ""
}

// SendInput sends whatever is in the input box
func (c *Controller) SendInput(ctx context.Context) error {
	return c.Send(ctx, c.Input())
}

// QuickReply sends a preset label as if the user had typed it
func (c *Controller) QuickReply(ctx context.Context, label string) error {
	return c.Send(ctx, label)
}

// Send appends a user message and starts the completion request in the background.
// Failures of the request itself never come back from Send; they end up in the
// conversation as an assistant message.
func (c *Controller) Send(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if !c.state.CanSend() {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := c.settings.Validate(); err != nil {
		c.mu.Unlock()
		c.logger.Warn("Send rejected: %v", err)
		return err
	}
	if err := c.provider.ValidateConfig(); err != nil {
		c.mu.Unlock()
		c.logger.Warn("Send rejected by %s: %v", c.provider.Name(), err)
		return err
	}

	if err := c.conversation.Append(chat.NewMessage(chat.RoleUser, content)); err != nil {
		c.mu.Unlock()
		return utils.WrapError(err, "append user message")
	}
	c.persistLocked()

	history := c.conversation.Snapshot()
	reqCtx, cancel := context.WithCancel(ctx)
	generation := c.generation

	c.state = StateSending
	c.lastError = nil
	c.input = ""
	c.cancel = cancel

	c.done = utils.SafeGo(c.logger, "widget send", func() {
		defer cancel()
		c.complete(reqCtx, generation, history)
	}, func(recovered interface{}) {
		c.fail(reqCtx, generation, fmt.Errorf("unexpected error: %v", recovered))
	})
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Controller) complete(ctx context.Context, generation uint64, history []chat.Message) {
	messages := c.requestMessages(history)

	var err error
	if c.settings.Stream {
		err = c.stream(ctx, generation, messages)
	} else {
		err = c.batch(ctx, generation, messages)
	}
	if err != nil {
		c.fail(ctx, generation, err)
		return
	}

	c.mu.Lock()
	if c.generation == generation {
		c.state = StateIdle
		c.cancel = nil
	}
	c.mu.Unlock()
	c.notify()
}

// requestMessages prepends the system prompt to the whole visible history
func (c *Controller) requestMessages(history []chat.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	if c.settings.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: string(chat.RoleSystem), Content: c.settings.SystemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return messages
}

func (c *Controller) batch(ctx context.Context, generation uint64, messages []llm.Message) error {
	reply, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.generation == generation {
		if err := c.conversation.Append(chat.NewMessage(chat.RoleAssistant, reply)); err != nil {
			c.logger.Error("Failed to append reply: %v", err)
		}
		c.persistLocked()
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) stream(ctx context.Context, generation uint64, messages []llm.Message) error {
	stream, err := c.provider.StreamChat(ctx, messages)
	if err != nil {
		return err
	}

	// The assistant message only appears once the endpoint has accepted the request
	if !c.mutate(generation, func() error {
		_, err := c.conversation.BeginAssistant()
		return err
	}) {
		return nil
	}

	for resp := range stream {
		if resp.Error != nil {
			return resp.Error
		}
		if resp.Done {
			c.mutate(generation, func() error {
				c.conversation.Finish()
				return nil
			})
			return nil
		}
		if !c.mutate(generation, func() error {
			return c.conversation.AppendDelta(resp.Content)
		}) {
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("stream ended unexpectedly")
}

// mutate applies fn to the conversation if it still belongs to generation,
// persists and notifies. It returns false once the conversation has been reset.
func (c *Controller) mutate(generation uint64, fn func() error) bool {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return false
	}
	if err := fn(); err != nil {
		c.logger.Error("Conversation update failed: %v", err)
	}
	c.persistLocked()
	c.mu.Unlock()

	c.notify()
	return true
}

// fail ends the turn. A cancelled request is closed quietly; anything else is
// shown to the user as an assistant message.
func (c *Controller) fail(ctx context.Context, generation uint64, err error) {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}

	c.conversation.Finish()
	c.cancel = nil

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		c.logger.Info("Request cancelled: %v", err)
		c.state = StateIdle
		c.persistLocked()
		c.mu.Unlock()
		c.notify()
		return
	}

	c.logger.Error("Completion failed: %v", err)
	if appendErr := c.conversation.Append(chat.NewMessage(chat.RoleAssistant, ErrorReply(err))); appendErr != nil {
		c.logger.Error("Failed to append error message: %v", appendErr)
	}
	c.persistLocked()
	c.state = StateIdleWithError
	c.lastError = err
	c.mu.Unlock()

	c.notify()
}

// ErrorReply is the assistant message shown when a turn fails
func ErrorReply(err error) string {
	return fmt.Sprintf("Sorry, I encountered an error: %s. Please try again.", err.Error())
}

// Reset clears the conversation in memory and in storage and shows the welcome block again.
// An outstanding request is cancelled and its result discarded.
func (c *Controller) Reset() error {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.conversation.Reset()
	c.state = StateIdle
	c.lastError = nil
	err := c.store.Clear()
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Failed to clear stored conversation: %v", err)
	} else {
		c.logger.Info("Conversation reset")
	}
	c.notify()
	return err
}

// Shutdown cancels the outstanding request, if any, and waits for it to wind down
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.Wait()
}

// Wait blocks until the most recent request has finished
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// persistLocked writes the conversation through the store; c.mu must be held
func (c *Controller) persistLocked() {
	if err := c.store.Save(c.conversation.Snapshot()); err != nil {
		c.logger.Warn("Failed to persist conversation: %v", err)
	}
}
