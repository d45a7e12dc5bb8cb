package realtime

import (
	"encoding/json"

	"github.com/brightpath-hq/inbox/internal/rest"
)

// Bus kinds published by the transport. Server events map 1:1; connected and
// disconnected are meta-events of the link itself.
const (
	KindConnected           = "rt.connected"
	KindDisconnected        = "rt.disconnected"
	KindMessageReceived     = "rt.message_received"
	KindMessageSent         = "rt.message_sent"
	KindConversationUpdated = "rt.conversation_updated"
	KindDeliveryReceipt     = "rt.delivery_receipt"
	KindTypingStart         = "rt.typing_start"
	KindTypingStop          = "rt.typing_stop"
)

// Envelope is the wire format of every frame on the events socket, both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessageEvent accompanies message:received and message:sent.
type MessageEvent struct {
	ConversationSid string       `json:"conversationSid"`
	Message         rest.Message `json:"message"`
}

// ConversationEvent accompanies conversation:updated.
type ConversationEvent struct {
	ConversationSid string            `json:"conversationSid"`
	Conversation    rest.Conversation `json:"conversation"`
}

// TypingEvent accompanies typing:start and typing:stop.
type TypingEvent struct {
	ConversationSid string `json:"conversationSid"`
	UserID          string `json:"userId"`
}

// ReceiptEvent accompanies delivery:receipt.
type ReceiptEvent struct {
	ConversationSid string `json:"conversationSid"`
	MessageSid      string `json:"messageSid"`
	Status          string `json:"status"`
	Timestamp       any    `json:"timestamp,omitempty"`
}

// subscribePayload is the body of subscribe:conversation and
// unsubscribe:conversation emissions.
type subscribePayload struct {
	ConversationSid string `json:"conversationSid"`
}
