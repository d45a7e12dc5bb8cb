// Package realtime maintains the single live WebSocket connection to the
// conversations backend and republishes its push events on the in-process
// bus under the rt. namespace.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/brightpath-hq/inbox/internal/bus"
	"github.com/brightpath-hq/inbox/internal/status"
)

// Defaults for the reconnect policy. Tunable via Options, not a contract.
const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
)

// Options tunes the transport.
type Options struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

func (o *Options) defaults() {
	if o.ReconnectAttempts == 0 {
		o.ReconnectAttempts = DefaultReconnectAttempts
	}
	if o.ReconnectDelay == 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
}

// Conn is a handle to a live events socket. Writes are serialized; reads
// happen only in the manager's read loop.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Emit sends one event frame on the socket.
func (c *Conn) Emit(ctx context.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, frame)
}

// Manager owns the one live connection per token session. Connect is
// idempotent because every UI component may call it during mount cycles; the
// first call wins and later calls get the existing handle.
type Manager struct {
	url     string
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	opts    Options

	// connectMu serializes the whole dial sequence so concurrent Connect
	// calls cannot each open a socket.
	connectMu sync.Mutex

	mu           sync.Mutex
	conn         *Conn
	token        string
	subs         map[string]struct{}
	closing      bool
	reconnecting bool
	cancel       context.CancelFunc
}

// NewManager creates a transport manager for the given realtime endpoint.
func NewManager(url string, b *bus.Bus, m *status.Machine, logger *zap.Logger, opts Options) *Manager {
	opts.defaults()
	return &Manager{
		url:     strings.TrimRight(url, "/"),
		bus:     b,
		machine: m,
		logger:  logger,
		opts:    opts,
		subs:    make(map[string]struct{}),
	}
}

// Connect opens the events socket authenticated by token. The token rides in
// the handshake query; the server derives tenant context from it, so it
// must never move to a header. Returns the existing handle when already
// connected; concurrent callers are serialized and share the one socket.
// A failed dial arms the reconnect loop, so callers may treat the returned
// error as advisory. Fails once Disconnect has shut the transport down.
func (m *Manager) Connect(ctx context.Context, token string) (*Conn, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.conn != nil {
		conn := m.conn
		m.mu.Unlock()
		return conn, nil
	}
	if m.closing {
		m.mu.Unlock()
		return nil, errors.New("transport is shut down")
	}
	m.token = token
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connecting)

	wsURL := strings.Replace(m.url, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/events?token=" + token

	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		_ = m.machine.Transition(status.Reconnecting)
		m.scheduleReconnect()
		return nil, fmt.Errorf("dial events socket: %w", err)
	}
	// The conversation history can be long; frames stay small but the
	// default 32KB read limit is tight for conversation:updated payloads.
	ws.SetReadLimit(1 << 20)

	conn := &Conn{ws: ws}
	readCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.closing {
		// Disconnect won the race while the dial was in flight; do not
		// resurrect the connection.
		m.mu.Unlock()
		cancel()
		_ = ws.Close(websocket.StatusNormalClosure, "client disconnect")
		return nil, errors.New("transport is shut down")
	}
	m.conn = conn
	m.cancel = cancel
	resubscribe := make([]string, 0, len(m.subs))
	for sid := range m.subs {
		resubscribe = append(resubscribe, sid)
	}
	m.mu.Unlock()

	_ = m.machine.Transition(status.Ready)
	m.logger.Info("realtime connected", zap.String("url", m.url))
	m.bus.Publish(bus.Event{Kind: KindConnected, Timestamp: time.Now()})

	// Re-establish conversation subscriptions that survived a reconnect.
	for _, sid := range resubscribe {
		if err := conn.Emit(ctx, "subscribe:conversation", subscribePayload{ConversationSid: sid}); err != nil {
			m.logger.Warn("resubscribe failed", zap.String("sid", sid), zap.Error(err))
		}
	}

	go m.readLoop(readCtx, conn)
	return conn, nil
}

// Disconnect tears down the connection and clears the handle. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	conn := m.conn
	m.conn = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	if conn != nil {
		_ = conn.ws.Close(websocket.StatusNormalClosure, "client disconnect")
		m.logger.Info("realtime disconnected")
		m.bus.Publish(bus.Event{Kind: KindDisconnected, Timestamp: time.Now()})
	}
}

// Conn returns the current connection handle, or nil while disconnected.
func (m *Manager) Conn() *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Subscribe registers interest in a conversation's push events. Repeated
// calls for the same sid do not emit duplicate subscriptions. A temporarily
// absent connection is tolerated: the sid is remembered and subscribed on
// (re)connect.
func (m *Manager) Subscribe(sid string) {
	m.mu.Lock()
	if _, ok := m.subs[sid]; ok {
		m.mu.Unlock()
		return
	}
	m.subs[sid] = struct{}{}
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Emit(context.Background(), "subscribe:conversation", subscribePayload{ConversationSid: sid}); err != nil {
		m.logger.Warn("subscribe failed", zap.String("sid", sid), zap.Error(err))
	}
}

// Unsubscribe drops interest in a conversation's push events.
func (m *Manager) Unsubscribe(sid string) {
	m.mu.Lock()
	if _, ok := m.subs[sid]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.subs, sid)
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Emit(context.Background(), "unsubscribe:conversation", subscribePayload{ConversationSid: sid}); err != nil {
		m.logger.Warn("unsubscribe failed", zap.String("sid", sid), zap.Error(err))
	}
}

func (m *Manager) readLoop(ctx context.Context, conn *Conn) {
	for {
		_, data, err := conn.ws.Read(ctx)
		if err != nil {
			m.mu.Lock()
			closing := m.closing
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()

			if closing || ctx.Err() != nil {
				return
			}

			m.logger.Warn("realtime read error", zap.Error(err))
			m.bus.Publish(bus.Event{Kind: KindDisconnected, Timestamp: time.Now(), Payload: err.Error()})
			_ = m.machine.Transition(status.Reconnecting)
			m.scheduleReconnect()
			return
		}
		m.dispatch(data)
	}
}

// scheduleReconnect starts the reconnect loop unless one is already running
// or the transport is shutting down. Both a dropped connection and a failed
// initial dial land here, so a backend that is down at launch is still
// retried.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.reconnecting || m.closing {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.mu.Unlock()
	go m.reconnectLoop()
}

// reconnectLoop retries with a fixed delay up to the attempt cap, then gives
// up into Degraded. REST keeps working there; only live updates stop.
func (m *Manager) reconnectLoop() {
	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		time.Sleep(m.opts.ReconnectDelay)

		m.mu.Lock()
		closing := m.closing
		m.mu.Unlock()
		if closing {
			return
		}

		m.logger.Info("reconnecting", zap.Int("attempt", attempt))
		if _, err := m.Connect(context.Background(), token); err != nil {
			m.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return
	}

	m.logger.Error("reconnect attempts exhausted", zap.Int("attempts", m.opts.ReconnectAttempts))
	_ = m.machine.Transition(status.Degraded)
}

// dispatch decodes one server frame and republishes it on the bus.
func (m *Manager) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.logger.Warn("undecodable frame", zap.Error(err))
		return
	}
	m.logger.Debug("event", zap.String("event", env.Event))

	switch env.Event {
	case "message:received":
		m.publishAs(env, KindMessageReceived, &MessageEvent{})
	case "message:sent":
		m.publishAs(env, KindMessageSent, &MessageEvent{})
	case "conversation:updated":
		m.publishAs(env, KindConversationUpdated, &ConversationEvent{})
	case "delivery:receipt":
		m.publishAs(env, KindDeliveryReceipt, &ReceiptEvent{})
	case "typing:start":
		m.publishAs(env, KindTypingStart, &TypingEvent{})
	case "typing:stop":
		m.publishAs(env, KindTypingStop, &TypingEvent{})
	default:
		m.logger.Debug("unhandled event", zap.String("event", env.Event))
	}
}

func (m *Manager) publishAs(env Envelope, kind string, payload any) {
	if err := json.Unmarshal(env.Data, payload); err != nil {
		m.logger.Warn("undecodable payload", zap.String("event", env.Event), zap.Error(err))
		return
	}
	m.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
