package rest

import "encoding/json"

// Conversation is a backend conversation record. Attributes is a free-form
// JSON blob owned by the backend; the adapter layer parses it defensively.
type Conversation struct {
	Sid          string   `json:"sid"`
	FriendlyName string   `json:"friendlyName"`
	Attributes   string   `json:"attributes"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
	// DateUpdated arrives either as an ISO-8601 string or as unix
	// milliseconds, depending on the endpoint.
	DateUpdated any `json:"dateUpdated,omitempty"`
}

// Message is a backend message record.
type Message struct {
	Sid        string `json:"sid"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	Attributes string `json:"attributes"`
	// DateCreated arrives either as an ISO-8601 string or as unix
	// milliseconds.
	DateCreated any `json:"dateCreated,omitempty"`
}

// OutboundMessage is the body of POST /conversations/{sid}/messages and
// POST /conversations/{sid}/email.
type OutboundMessage struct {
	Author     string `json:"author"`
	Body       string `json:"body"`
	Attributes string `json:"attributes,omitempty"`
	EchoToken  string `json:"echoToken,omitempty"`
}

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	FriendlyName string `json:"friendlyName"`
	Attributes   string `json:"attributes,omitempty"`
}

// envelope is the optional {meta, data} wrapper some endpoints respond with.
type envelope struct {
	Meta map[string]any  `json:"meta,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// unwrap returns the payload bytes whether the response arrived bare or
// wrapped in a {meta, data} envelope. Both shapes are in active use on the
// backend, so the union is decoded here and nowhere else.
func unwrap(raw []byte) []byte {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}
