package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brightpath-hq/inbox/internal/channel"
)

func TestListConversationsBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", got)
		}
		w.Write([]byte(`[{"sid":"CV1","friendlyName":"Alice"},{"sid":"CV2"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1")
	convos, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(convos) != 2 || convos[0].Sid != "CV1" {
		t.Errorf("got %+v, want CV1, CV2", convos)
	}
}

func TestListConversationsEnveloped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"total":1},"data":[{"sid":"CV9","friendlyName":"Bob"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	convos, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(convos) != 1 || convos[0].Sid != "CV9" {
		t.Errorf("got %+v, want single CV9", convos)
	}
}

func TestGetConversationBareObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations/CV1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"sid":"CV1","friendlyName":"Alice","attributes":"{\"channel\":\"EMAIL\"}"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	convo, err := c.GetConversation(context.Background(), "CV1")
	if err != nil {
		t.Fatal(err)
	}
	if convo.FriendlyName != "Alice" {
		t.Errorf("friendlyName = %q, want Alice", convo.FriendlyName)
	}
}

func TestHistoryQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "30" || q.Get("order") != "desc" || q.Get("channel") != "EMAIL" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"data":[{"sid":"IM2","body":"later"},{"sid":"IM1","body":"earlier"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	msgs, err := c.History(context.Background(), "CV1", 30, channel.BackendEmail)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Sid != "IM2" {
		t.Errorf("got %+v, want IM2 first (newest-first)", msgs)
	}
}

func TestSendMessageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"conversation closed"}`, http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.SendMessage(context.Background(), "CV1", OutboundMessage{Author: "42", Body: "hi"})
	if err == nil {
		t.Fatal("expected error on HTTP 409")
	}
}

func TestUnwrapLeavesBareObjectsAlone(t *testing.T) {
	raw := []byte(`{"sid":"CV1"}`)
	if got := string(unwrap(raw)); got != string(raw) {
		t.Errorf("unwrap changed bare object: %s", got)
	}

	wrapped := []byte(`{"meta":{},"data":{"sid":"CV1"}}`)
	if got := string(unwrap(wrapped)); got != `{"sid":"CV1"}` {
		t.Errorf("unwrap(wrapped) = %s", got)
	}
}
