package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/authchat/internal/domain"
)

// defaultSignOutTimeout bounds the fire-and-forget sign-out request.
const defaultSignOutTimeout = 10 * time.Second

// ChatState is a snapshot of the chat view.
type ChatState struct {
	Messages []domain.Message `json:"messages"`
	Loading  bool             `json:"loading"`
}

// Chat controls the chat view. The message list is append-only for the
// lifetime of the view; the only removal is a full Clear.
type Chat struct {
	backend ChatBackend
	jar     http.CookieJar
	logger  *slog.Logger

	// pubMu serialises observer delivery so snapshots arrive in order.
	pubMu sync.Mutex

	mu        sync.Mutex
	messages  []domain.Message
	loading   bool
	observers map[int]func(ChatState)
	nextObs   int

	signOutTimeout time.Duration
	signOutDone    chan struct{}
}

// NewChat creates an empty chat view bound to a session jar.
func NewChat(b ChatBackend, jar http.CookieJar, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{
		backend:        b,
		jar:            jar,
		logger:         logger,
		observers:      make(map[int]func(ChatState)),
		signOutTimeout: defaultSignOutTimeout,
	}
}

// State returns a copy of the current view state.
func (c *Chat) State() ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Messages returns a copy of the conversation.
func (c *Chat) Messages() []domain.Message {
	return c.State().Messages
}

// Loading reports whether a reply is pending.
func (c *Chat) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that removes it. fn runs on the goroutine that changed
// the state and must not block for long.
func (c *Chat) Subscribe(fn func(ChatState)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Submit sends input to the backend. Whitespace-only input is ignored
// without contacting the backend. Otherwise the user message is appended
// immediately, and exactly one assistant message follows once the request
// resolves: the reply, or the fallback text on failure. When ctx is
// cancelled because the view went away, nothing further is appended.
func (c *Chat) Submit(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.messages = append(c.messages, domain.Message{Text: input, Sender: domain.SenderUser})
	c.loading = true
	c.mu.Unlock()
	c.publish()

	reply, err := c.backend.Chat(ctx, c.jar, input)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		c.publish()
		return err
	}

	text := reply
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			c.logger.Warn("Chat request failed", "error", err)
		} else {
			c.logger.Warn("Chat reply was empty")
		}
		text = domain.ChatFallbackText
	}

	c.mu.Lock()
	c.messages = append(c.messages, domain.Message{Text: text, Sender: domain.SenderAssistant})
	c.loading = false
	c.mu.Unlock()
	c.publish()
	return err
}

// Clear discards the whole conversation locally.
func (c *Chat) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
	c.publish()
}

// SignOut fires a sign-out request without waiting for it and navigates to
// the sign-in view regardless of its outcome.
func (c *Chat) SignOut(ctx context.Context, fx Effects) {
	done := make(chan struct{})
	c.mu.Lock()
	c.signOutDone = done
	c.mu.Unlock()

	signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.signOutTimeout)
	go func() {
		defer close(done)
		defer cancel()
		if err := c.backend.SignOut(signOutCtx, c.jar); err != nil {
			c.logger.Debug("Sign-out request failed", "error", err)
		}
	}()

	fx.Navigate(domain.RouteSignIn)
}

// WaitSignOut blocks until the last fired sign-out request has finished or
// ctx is done. Terminal callers use it before exiting the process.
func (c *Chat) WaitSignOut(ctx context.Context) {
	c.mu.Lock()
	done := c.signOutDone
	c.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (c *Chat) snapshotLocked() ChatState {
	msgs := make([]domain.Message, len(c.messages))
	copy(msgs, c.messages)
	return ChatState{Messages: msgs, Loading: c.loading}
}

// publish delivers the latest snapshot to every observer. Observers must
// not call back into the controller.
func (c *Chat) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	state := c.snapshotLocked()
	fns := make([]func(ChatState), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
