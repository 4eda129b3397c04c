// Package chatws serves the chat view over a websocket. Each connection is
// one mounted chat view with its own controller; closing the connection
// unmounts the view and cancels its in-flight request.
package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/authchat/internal/controller"
	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/logger"
	"github.com/ashureev/authchat/internal/session"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const (
	readLimit    = 64 << 10
	writeTimeout = 10 * time.Second
)

// Client frame types.
const (
	FrameSubmit  = "submit"
	FrameClear   = "clear"
	FrameSignOut = "signout"
	FramePing    = "ping"
)

// Server frame types.
const (
	FrameState    = "state"
	FrameNavigate = "navigate"
	FramePong     = "pong"
)

type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type stateFrame struct {
	Type string `json:"type"`
	controller.ChatState
}

type navigateFrame struct {
	Type string       `json:"type"`
	To   domain.Route `json:"to"`
}

// ActivityRecorder records device activity.
type ActivityRecorder interface {
	Touch(ctx context.Context, deviceID string) error
}

// Handler upgrades chat view connections.
type Handler struct {
	backend       controller.ChatBackend
	registry      *Registry
	activity      ActivityRecorder
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a chat websocket handler. activity may be nil.
func NewHandler(b controller.ChatBackend, registry *Registry, activity ActivityRecorder, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		backend:       b,
		registry:      registry,
		activity:      activity,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// RegisterRoutes registers the websocket route. It expects
// session.Middleware upstream.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.ServeHTTP)
}

// peer is the server side of one chat view connection.
type peer struct {
	ws     *websocket.Conn
	ctx    context.Context
	logger *slog.Logger

	writeMu sync.Mutex
}

func (p *peer) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, writeTimeout)
	defer cancel()
	return p.ws.Write(ctx, websocket.MessageText, data)
}

// Navigate implements controller.Effects and Peer.
func (p *peer) Navigate(route domain.Route) {
	if err := p.writeJSON(navigateFrame{Type: FrameNavigate, To: route}); err != nil {
		p.logger.Debug("Failed to send navigate", "error", err)
	}
}

// Notify implements controller.Effects. The chat view has no notices.
func (p *peer) Notify(domain.Notice) {}

// Close implements Peer.
func (p *peer) Close(reason string) {
	if err := p.ws.Close(websocket.StatusNormalClosure, reason); err != nil {
		p.logger.Debug("Failed to close websocket", "error", err)
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "device_id", sess.DeviceID)
		return
	}
	ws.SetReadLimit(readLimit)

	log, connID := logger.WithConn(slog.Default())
	log = log.With("device_id", sess.DeviceID)
	log.Info("Chat view mounted")

	ctx, cancel := context.WithCancel(r.Context())
	p := &peer{ws: ws, ctx: ctx, logger: log}

	h.registry.Register(sess.DeviceID, connID, p)

	chat := controller.NewChat(h.backend, sess.Jar, log)
	states := make(chan controller.ChatState, 1)
	unsubscribe := chat.Subscribe(func(s controller.ChatState) { offerLatest(states, s) })

	var wg sync.WaitGroup
	defer func() {
		unsubscribe()
		cancel()
		wg.Wait()
		h.registry.Unregister(sess.DeviceID, connID, p)
		if closeErr := ws.Close(websocket.StatusNormalClosure, "view closed"); closeErr != nil {
			log.Debug("Failed to close websocket", "error", closeErr)
		}
		log.Info("Chat view unmounted")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(ctx, p, states)
	}()
	offerLatest(states, chat.State())

	h.readLoop(ctx, p, chat, sess, connID, &wg)
}

// offerLatest puts s on a one-slot channel, replacing an unsent older
// snapshot. Snapshots are full states so only the newest matters.
func offerLatest(ch chan controller.ChatState, s controller.ChatState) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, p *peer, states <-chan controller.ChatState) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-states:
			if err := p.writeJSON(stateFrame{Type: FrameState, ChatState: s}); err != nil {
				p.logger.Debug("Failed to send state", "error", err)
				return
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, p *peer, chat *controller.Chat, sess *session.Session, connID string, wg *sync.WaitGroup) {
	for {
		_, data, err := p.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				p.logger.Debug("WebSocket closed by client")
			} else {
				p.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg clientFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Debug("Ignoring malformed frame", "error", err)
			continue
		}

		switch msg.Type {
		case FrameSubmit:
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				if err := chat.Submit(ctx, text); errors.Is(err, controller.ErrBusy) {
					p.logger.Debug("Chat submission ignored while loading")
				}
			}(msg.Text)
		case FrameClear:
			chat.Clear()
		case FrameSignOut:
			chat.SignOut(ctx, p)
			h.registry.NavigateOthers(sess.DeviceID, connID, domain.RouteSignIn)
		case FramePing:
			if err := p.writeJSON(map[string]string{"type": FramePong}); err != nil {
				p.logger.Debug("Failed to send pong", "error", err)
			}
		default:
			p.logger.Debug("Ignoring unknown frame", "type", msg.Type)
		}

		h.touch(sess.DeviceID)
	}
}

// touch updates last seen asynchronously with a timeout.
func (h *Handler) touch(deviceID string) {
	if h.activity == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.activity.Touch(ctx, deviceID); err != nil {
			slog.Warn("Failed to update last seen", "device_id", deviceID, "error", err)
		}
	}()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	if origin == "https://"+r.Host || origin == "http://"+r.Host {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
