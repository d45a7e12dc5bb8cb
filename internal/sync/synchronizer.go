// Package sync reconciles the REST-fetched conversation state with the
// realtime push stream into one consistent view.
//
// The Synchronizer owns all mutable view-model state. REST completions and
// push events interleave freely, so every asynchronous completion re-checks
// a generation counter before applying its result: any selection or channel
// change bumps the counter and thereby discards whatever was still in
// flight. That counter is the cancellation mechanism: in-flight requests
// are never aborted, their results are just ignored when stale.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightpath-hq/inbox/internal/adapter"
	"github.com/brightpath-hq/inbox/internal/bus"
	"github.com/brightpath-hq/inbox/internal/channel"
	"github.com/brightpath-hq/inbox/internal/realtime"
	"github.com/brightpath-hq/inbox/internal/rest"
)

// KindChanged is published on the bus after every visible state change.
const KindChanged = "convo.changed"

// DefaultHistoryLimit is the page size for thread history fetches.
const DefaultHistoryLimit = 30

// Precondition failures of SendMessage. These are usage errors and are
// returned to the caller instead of being absorbed.
var (
	ErrNoSelection = errors.New("no conversation selected")
	ErrNoUser      = errors.New("no authenticated user")
)

// Backend is the slice of the conversations REST API the synchronizer uses.
type Backend interface {
	ListConversations(ctx context.Context) ([]rest.Conversation, error)
	GetConversation(ctx context.Context, sid string) (*rest.Conversation, error)
	History(ctx context.Context, sid string, limit int, ch channel.Backend) ([]rest.Message, error)
	SendMessage(ctx context.Context, sid string, msg rest.OutboundMessage) (*rest.Message, error)
	SendEmail(ctx context.Context, sid string, msg rest.OutboundMessage) (*rest.Message, error)
}

// Transport is the slice of the realtime layer the synchronizer drives.
type Transport interface {
	Subscribe(sid string)
	Unsubscribe(sid string)
}

// Synchronizer merges conversation lists and history fetched over REST with
// the live push stream, tracks the active (conversation, channel) pair, and
// exposes derived state to the UI.
type Synchronizer struct {
	backend   Backend
	transport Transport
	bus       *bus.Bus
	logger    *zap.Logger
	userID    string
	limit     int

	mu            sync.Mutex
	gen           uint64
	conversations []adapter.ConversationView
	selected      string
	subscribed    string
	detail        *rest.Conversation
	activeChannel channel.Display
	messages      []adapter.MessageView // newest first
	typing        bool
	loading       bool
	listErr       error
	detailErr     error
	historyErr    error

	cancel context.CancelFunc
}

// NewSynchronizer creates a synchronizer for the given authenticated user.
func NewSynchronizer(backend Backend, transport Transport, b *bus.Bus, logger *zap.Logger, userID string) *Synchronizer {
	return &Synchronizer{
		backend:       backend,
		transport:     transport,
		bus:           b,
		logger:        logger,
		userID:        userID,
		limit:         DefaultHistoryLimit,
		activeChannel: channel.Default,
	}
}

// SetInitialChannel sets the channel filter before any conversation is
// selected, for applying the configured default at startup. No-op once a
// selection exists; use SetActiveChannel then.
func (s *Synchronizer) SetInitialChannel(ch channel.Display) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" && ch != "" {
		s.activeChannel = ch
	}
}

// Start subscribes to the transport's rt. events on the bus.
func (s *Synchronizer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe("rt.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				s.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops event ingestion.
func (s *Synchronizer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// LoadConversations fetches the conversation list. Blocking; callers run it
// in a goroutine.
func (s *Synchronizer) LoadConversations(ctx context.Context) {
	recs, err := s.backend.ListConversations(ctx)

	s.mu.Lock()
	if err != nil {
		s.listErr = err
	} else {
		s.listErr = nil
		s.conversations = adapter.ConversationsToView(recs)
	}
	s.mu.Unlock()
	s.publishChanged()
}

// SelectConversation makes sid the active conversation, fetches its detail
// record and history for the current channel, and subscribes the transport.
// Reselecting the current sid refetches without duplicating the
// subscription.
func (s *Synchronizer) SelectConversation(ctx context.Context, sid string) {
	s.mu.Lock()
	if s.selected != sid {
		s.selected = sid
		s.detail = nil
		s.messages = nil
		s.typing = false
	}
	s.gen++
	gen := s.gen
	ch := s.activeChannel
	limit := s.limit
	s.loading = true
	s.detailErr = nil
	s.historyErr = nil
	prev := s.subscribed
	s.subscribed = sid
	s.mu.Unlock()

	if prev != sid {
		if prev != "" {
			s.transport.Unsubscribe(prev)
		}
		s.transport.Subscribe(sid)
	}
	s.publishChanged()

	go s.fetchDetail(ctx, sid, gen)
	go s.fetchHistory(ctx, sid, limit, ch, gen)
}

// SetActiveChannel switches the channel axis of the active conversation. The
// visible message list is cleared synchronously so the UI never shows
// stale-channel messages while the reload is in flight. No-op without a
// selection or when the channel is unchanged.
func (s *Synchronizer) SetActiveChannel(ctx context.Context, ch channel.Display) {
	s.mu.Lock()
	if s.selected == "" || ch == s.activeChannel {
		s.mu.Unlock()
		return
	}
	s.activeChannel = ch
	s.messages = nil
	s.gen++
	gen := s.gen
	sid := s.selected
	limit := s.limit
	s.loading = true
	s.historyErr = nil
	s.mu.Unlock()

	s.publishChanged()
	go s.fetchHistory(ctx, sid, limit, ch, gen)
}

// ClearSelection resets the selection axis and all per-conversation derived
// state, and unsubscribes the transport from the previously selected
// conversation.
func (s *Synchronizer) ClearSelection() {
	s.mu.Lock()
	// Capture before clearing, or there is nothing left to unsubscribe.
	prev := s.subscribed
	s.gen++
	s.selected = ""
	s.subscribed = ""
	s.detail = nil
	s.messages = nil
	s.typing = false
	s.detailErr = nil
	s.historyErr = nil
	s.loading = false
	s.mu.Unlock()

	if prev != "" {
		s.transport.Unsubscribe(prev)
	}
	s.publishChanged()
}

// LoadMessages refetches the thread for sid. It only takes effect when sid is
// the active conversation. A non-empty ch that differs from the active
// channel switches channels first, which clears the list before the reload.
func (s *Synchronizer) LoadMessages(ctx context.Context, sid string, limit int, ch channel.Display) {
	s.mu.Lock()
	if sid != s.selected {
		s.mu.Unlock()
		return
	}
	if limit <= 0 {
		limit = s.limit
	}
	if ch != "" && ch != s.activeChannel {
		s.activeChannel = ch
		s.messages = nil
	} else {
		ch = s.activeChannel
	}
	s.gen++
	gen := s.gen
	s.loading = true
	s.historyErr = nil
	s.mu.Unlock()

	s.publishChanged()
	go s.fetchHistory(ctx, sid, limit, ch, gen)
}

// SendMessage submits body to the active conversation. ch overrides the
// active channel when non-empty. The sent message is not appended locally:
// the backend echoes it back as a message:sent push event, which keeps REST
// submission and UI append on one path and avoids double insertion.
func (s *Synchronizer) SendMessage(ctx context.Context, body string, ch channel.Display) error {
	s.mu.Lock()
	sid := s.selected
	if ch == "" {
		ch = s.activeChannel
	}
	s.mu.Unlock()

	if sid == "" {
		return ErrNoSelection
	}
	if s.userID == "" {
		return ErrNoUser
	}

	attrs, err := json.Marshal(map[string]string{
		"channel": string(channel.ToBackend(ch)),
		"author":  s.userID,
	})
	if err != nil {
		return err
	}
	msg := rest.OutboundMessage{
		Author:     s.userID,
		Body:       body,
		Attributes: string(attrs),
		EchoToken:  uuid.New().String(),
	}

	if ch == channel.Email {
		_, err = s.backend.SendEmail(ctx, sid, msg)
	} else {
		_, err = s.backend.SendMessage(ctx, sid, msg)
	}
	return err
}

// Conversations returns a copy of the conversation list view models.
func (s *Synchronizer) Conversations() []adapter.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]adapter.ConversationView, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Messages returns the active thread in strict chronological order,
// regardless of the order the backend returned it in.
func (s *Synchronizer) Messages() []adapter.MessageView {
	s.mu.Lock()
	msgs := make([]adapter.MessageView, len(s.messages))
	copy(msgs, s.messages)
	s.mu.Unlock()

	// Internal representation is newest first: reverse, then stable-sort by
	// timestamp to absorb pagination quirks without reordering ties.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	keys := make([]time.Time, len(msgs))
	for i := range msgs {
		keys[i], _ = time.Parse(time.RFC3339Nano, msgs[i].Timestamp)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return msgs
}

// Selected returns the active conversation sid, empty when none.
func (s *Synchronizer) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Detail returns the backend record of the active conversation, nil until
// the detail fetch lands.
func (s *Synchronizer) Detail() *rest.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

// ActiveChannel returns the active channel filter.
func (s *Synchronizer) ActiveChannel() channel.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChannel
}

// Typing reports whether the remote party is typing in the active
// conversation.
func (s *Synchronizer) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Loading reports whether a history fetch for the active view is in flight.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err coalesces the list/detail/history fetch errors into one user-visible
// string; the UI only needs to know something failed, not which fetch.
// Empty when healthy.
func (s *Synchronizer) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range []error{s.listErr, s.detailErr, s.historyErr} {
		if err != nil {
			return err.Error()
		}
	}
	return ""
}

func (s *Synchronizer) fetchDetail(ctx context.Context, sid string, gen uint64) {
	rec, err := s.backend.GetConversation(ctx, sid)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return // selection changed while in flight
	}
	if err != nil {
		s.detailErr = err
	} else {
		s.detail = rec
	}
	s.mu.Unlock()
	s.publishChanged()
}

func (s *Synchronizer) fetchHistory(ctx context.Context, sid string, limit int, ch channel.Display, gen uint64) {
	recs, err := s.backend.History(ctx, sid, limit, channel.ToBackend(ch))

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return // stale: selection or channel changed while in flight
	}
	s.loading = false
	if err != nil {
		s.historyErr = err
	} else {
		s.messages = adapter.MessagesToView(recs, ch, s.userID)
	}
	s.mu.Unlock()
	s.publishChanged()
}

func (s *Synchronizer) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case realtime.KindMessageReceived:
		if ev, ok := evt.Payload.(*realtime.MessageEvent); ok {
			s.ingestMessage(ev, true)
		}
	case realtime.KindMessageSent:
		if ev, ok := evt.Payload.(*realtime.MessageEvent); ok {
			s.ingestMessage(ev, false)
		}
	case realtime.KindConversationUpdated:
		if ev, ok := evt.Payload.(*realtime.ConversationEvent); ok {
			s.ingestConversation(ev)
		}
	case realtime.KindTypingStart:
		if ev, ok := evt.Payload.(*realtime.TypingEvent); ok {
			s.setTyping(ev, true)
		}
	case realtime.KindTypingStop:
		if ev, ok := evt.Payload.(*realtime.TypingEvent); ok {
			s.setTyping(ev, false)
		}
	case realtime.KindDeliveryReceipt:
		if ev, ok := evt.Payload.(*realtime.ReceiptEvent); ok {
			s.ingestReceipt(ev)
		}
	}
}

// ingestMessage applies a message push. The thread pane only takes messages
// for the active conversation whose resolved channel matches the active
// filter (or that carry no channel at all); everything else still refreshes
// the conversation-list summary so previews and unread counts stay live.
func (s *Synchronizer) ingestMessage(ev *realtime.MessageEvent, received bool) {
	s.mu.Lock()
	view := adapter.MessageToView(&ev.Message, s.activeChannel, s.userID)

	attrs := adapter.ParseAttributes(ev.Message.Attributes)
	code, _ := attrs["channel"].(string)
	match := code == "" || channel.ToDisplay(code) == s.activeChannel

	if ev.ConversationSid == s.selected && match {
		s.messages = append([]adapter.MessageView{view}, s.messages...)
	}
	s.touchSummary(ev.ConversationSid, view, received && ev.ConversationSid != s.selected)
	s.mu.Unlock()
	s.publishChanged()
}

func (s *Synchronizer) ingestConversation(ev *realtime.ConversationEvent) {
	s.mu.Lock()
	view := adapter.ConversationToView(&ev.Conversation)
	replaced := false
	for i := range s.conversations {
		if s.conversations[i].Sid == ev.ConversationSid {
			s.conversations[i] = view
			replaced = true
			break
		}
	}
	if !replaced {
		s.conversations = append([]adapter.ConversationView{view}, s.conversations...)
	}
	if ev.ConversationSid == s.selected {
		rec := ev.Conversation
		s.detail = &rec
	}
	s.mu.Unlock()
	s.publishChanged()
}

func (s *Synchronizer) setTyping(ev *realtime.TypingEvent, on bool) {
	s.mu.Lock()
	// Own typing events echo back from the server; string-compare the ids
	// because transport ids are strings even where domain ids are numeric.
	if ev.ConversationSid != s.selected || ev.UserID == s.userID {
		s.mu.Unlock()
		return
	}
	changed := s.typing != on
	s.typing = on
	s.mu.Unlock()
	if changed {
		s.publishChanged()
	}
}

func (s *Synchronizer) ingestReceipt(ev *realtime.ReceiptEvent) {
	if ev.Timestamp == nil {
		return
	}
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].Sid == ev.ConversationSid {
			s.conversations[i].LastMessageAt = adapter.NormalizeTimestamp(ev.Timestamp)
			break
		}
	}
	s.mu.Unlock()
	s.publishChanged()
}

// touchSummary must be called with s.mu held.
func (s *Synchronizer) touchSummary(sid string, view adapter.MessageView, incrementUnread bool) {
	for i := range s.conversations {
		if s.conversations[i].Sid != sid {
			continue
		}
		s.conversations[i].Messages = []adapter.MessageView{view}
		s.conversations[i].LastMessageAt = view.Timestamp
		if incrementUnread {
			s.conversations[i].UnreadCount++
		}
		return
	}
	if s.logger != nil {
		s.logger.Debug("push for unknown conversation", zap.String("sid", sid))
	}
}

func (s *Synchronizer) publishChanged() {
	s.bus.Publish(bus.Event{Kind: KindChanged, Timestamp: time.Now()})
}
