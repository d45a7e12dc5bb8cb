// Package rest is the client for the conversations REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brightpath-hq/inbox/internal/channel"
)

// DefaultTimeout bounds every REST call.
const DefaultTimeout = 30 * time.Second

// Client talks to the conversations REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a REST client for the given base URL and access token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// ListConversations fetches the conversation list.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []Conversation
	if err := json.Unmarshal(unwrap(raw), &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out, nil
}

// GetConversation fetches a single conversation by sid.
func (c *Client) GetConversation(ctx context.Context, sid string) (*Conversation, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/conversations/"+url.PathEscape(sid), nil, nil)
	if err != nil {
		return nil, err
	}
	var out Conversation
	if err := json.Unmarshal(unwrap(raw), &out); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", sid, err)
	}
	return &out, nil
}

// History fetches the message history for a conversation, newest first,
// scoped to the given channel.
func (c *Client) History(ctx context.Context, sid string, limit int, ch channel.Backend) ([]Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	q.Set("order", "desc")
	q.Set("channel", string(ch))

	raw, err := c.doRequest(ctx, http.MethodGet, "/conversations/"+url.PathEscape(sid)+"/history", nil, q)
	if err != nil {
		return nil, err
	}
	var out []Message
	if err := json.Unmarshal(unwrap(raw), &out); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", sid, err)
	}
	return out, nil
}

// CreateConversation creates a new conversation.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	raw, err := c.doRequest(ctx, http.MethodPost, "/conversations", req, nil)
	if err != nil {
		return nil, err
	}
	var out Conversation
	if err := json.Unmarshal(unwrap(raw), &out); err != nil {
		return nil, fmt.Errorf("decode created conversation: %w", err)
	}
	return &out, nil
}

// SendMessage submits a message to a conversation.
func (c *Client) SendMessage(ctx context.Context, sid string, msg OutboundMessage) (*Message, error) {
	return c.postMessage(ctx, sid, "/messages", msg)
}

// SendEmail submits a message routed through the conversation's email
// channel.
func (c *Client) SendEmail(ctx context.Context, sid string, msg OutboundMessage) (*Message, error) {
	return c.postMessage(ctx, sid, "/email", msg)
}

func (c *Client) postMessage(ctx context.Context, sid, suffix string, msg OutboundMessage) (*Message, error) {
	raw, err := c.doRequest(ctx, http.MethodPost, "/conversations/"+url.PathEscape(sid)+suffix, msg, nil)
	if err != nil {
		return nil, err
	}
	var out Message
	if err := json.Unmarshal(unwrap(raw), &out); err != nil {
		return nil, fmt.Errorf("decode sent message: %w", err)
	}
	return &out, nil
}
