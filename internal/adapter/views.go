// Package adapter converts backend conversation and message records into the
// view models the UI renders. All functions are pure; failures in embedded
// attributes degrade to defaults instead of erroring.
package adapter

import (
	"time"

	"github.com/brightpath-hq/inbox/internal/channel"
	"github.com/brightpath-hq/inbox/internal/rest"
)

// ConversationView is a conversation row as rendered in the inbox list.
type ConversationView struct {
	Sid           string
	Name          string
	Messages      []MessageView // one-element summary built from the latest message
	UnreadCount   int
	Starred       bool
	Channel       channel.Display
	Contact       map[string]any
	LastMessageAt string // ISO-8601
}

// MessageView is a single rendered message in a thread.
type MessageView struct {
	Sid       string
	Sender    string
	Body      string
	Timestamp string // ISO-8601
	Channel   channel.Display
}

// ConversationToView converts a backend conversation record. The attributes
// blob supplies unread count (default 0), starred flag (default false),
// channel (default SMS), and free-form contact metadata.
func ConversationToView(rec *rest.Conversation) ConversationView {
	attrs := ParseAttributes(rec.Attributes)

	name := rec.FriendlyName
	if name == "" {
		name = "Unknown"
	}

	v := ConversationView{
		Sid:           rec.Sid,
		Name:          name,
		UnreadCount:   intAttr(attrs, "unreadCount"),
		Starred:       boolAttr(attrs, "starred"),
		Channel:       channel.ToDisplay(stringAttr(attrs, "channel")),
		Contact:       mapAttr(attrs, "contact"),
		LastMessageAt: NormalizeTimestamp(rec.DateUpdated),
	}
	if rec.LastMessage != nil {
		v.Messages = []MessageView{MessageToView(rec.LastMessage, v.Channel, "")}
	}
	return v
}

// MessageToView converts a backend message record. Channel resolution order:
// the message's own attributes, then fallback, then SMS. The sender becomes
// "You" when the author equals currentUserID (string compare; transport ids
// are strings even where domain ids are numeric), "System" when absent.
func MessageToView(rec *rest.Message, fallback channel.Display, currentUserID string) MessageView {
	attrs := ParseAttributes(rec.Attributes)

	ch := fallback
	if ch == "" {
		ch = channel.Default
	}
	if code := stringAttr(attrs, "channel"); code != "" {
		ch = channel.ToDisplay(code)
	}

	sender := rec.Author
	if sender == "" {
		sender = "System"
	}
	if currentUserID != "" && rec.Author == currentUserID {
		sender = "You"
	}

	return MessageView{
		Sid:       rec.Sid,
		Sender:    sender,
		Body:      rec.Body,
		Timestamp: NormalizeTimestamp(rec.DateCreated),
		Channel:   ch,
	}
}

// ConversationsToView maps ConversationToView over a slice, preserving order.
func ConversationsToView(recs []rest.Conversation) []ConversationView {
	out := make([]ConversationView, 0, len(recs))
	for i := range recs {
		out = append(out, ConversationToView(&recs[i]))
	}
	return out
}

// MessagesToView maps MessageToView over a slice, preserving order.
func MessagesToView(recs []rest.Message, fallback channel.Display, currentUserID string) []MessageView {
	out := make([]MessageView, 0, len(recs))
	for i := range recs {
		out = append(out, MessageToView(&recs[i], fallback, currentUserID))
	}
	return out
}

// NormalizeTimestamp normalizes a wire timestamp to ISO-8601 UTC. The backend
// sends either strings or unix milliseconds depending on the endpoint.
func NormalizeTimestamp(v any) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339Nano)
	case int64:
		return time.UnixMilli(t).UTC().Format(time.RFC3339Nano)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	return time.Now().UTC().Format(time.RFC3339Nano)
}
