package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/brightpath-hq/inbox/internal/bus"
	"github.com/brightpath-hq/inbox/internal/status"
)

// wsServer is a fake events endpoint. Frames emitted by the client arrive on
// inbound; push writes frames to the client. Setting rejects makes the next
// N handshakes fail, for exercising the dial-retry path.
type wsServer struct {
	srv      *httptest.Server
	inbound  chan Envelope
	conns    atomic.Int32
	rejects  atomic.Int32
	tokens   chan string
	connCh   chan *websocket.Conn
	lastConn *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{
		inbound: make(chan Envelope, 32),
		tokens:  make(chan string, 4),
		connCh:  make(chan *websocket.Conn, 4),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			http.NotFound(w, r)
			return
		}
		if s.rejects.Add(-1) >= 0 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		s.tokens <- r.URL.Query().Get("token")
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.conns.Add(1)
		s.connCh <- ws
		for {
			_, data, err := ws.Read(r.Context())
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) == nil {
				s.inbound <- env
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) push(t *testing.T, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.lastConn.Write(context.Background(), websocket.MessageText, frame); err != nil {
		t.Fatal(err)
	}
}

func (s *wsServer) waitConn(t *testing.T) {
	t.Helper()
	select {
	case c := <-s.connCh:
		s.lastConn = c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server-side connection")
	}
}

func newTestManager(t *testing.T, url string, b *bus.Bus) (*Manager, *status.Machine) {
	t.Helper()
	m := status.NewMachine(b)
	mgr := NewManager(url, b, m, zap.NewNop(), Options{ReconnectAttempts: 2, ReconnectDelay: 10 * time.Millisecond})
	t.Cleanup(mgr.Disconnect)
	return mgr, m
}

func TestConnectIdempotentAndTokenInQuery(t *testing.T) {
	s := newWSServer(t)
	b := bus.New()
	mgr, machine := newTestManager(t, s.srv.URL, b)

	conn1, err := mgr.Connect(context.Background(), "tok-42")
	if err != nil {
		t.Fatal(err)
	}
	s.waitConn(t)

	if got := <-s.tokens; got != "tok-42" {
		t.Errorf("handshake token = %q, want tok-42", got)
	}
	if machine.Current() != status.Ready {
		t.Errorf("state = %s, want READY", machine.Current())
	}

	conn2, err := mgr.Connect(context.Background(), "tok-42")
	if err != nil {
		t.Fatal(err)
	}
	if conn1 != conn2 {
		t.Error("second Connect returned a new handle")
	}
	if n := s.conns.Load(); n != 1 {
		t.Errorf("server saw %d connections, want 1", n)
	}
}

func TestSubscribeEmitsOncePerSid(t *testing.T) {
	s := newWSServer(t)
	b := bus.New()
	mgr, _ := newTestManager(t, s.srv.URL, b)

	if _, err := mgr.Connect(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	s.waitConn(t)
	<-s.tokens

	mgr.Subscribe("CV1")
	mgr.Subscribe("CV1") // duplicate, must not re-emit

	select {
	case env := <-s.inbound:
		if env.Event != "subscribe:conversation" {
			t.Errorf("event = %q", env.Event)
		}
		var p subscribePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationSid != "CV1" {
			t.Errorf("payload = %s", env.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for subscribe frame")
	}

	mgr.Unsubscribe("CV1")
	select {
	case env := <-s.inbound:
		if env.Event != "unsubscribe:conversation" {
			t.Errorf("event = %q, want unsubscribe (duplicate subscribe leaked?)", env.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for unsubscribe frame")
	}
}

func TestPushEventReachesBus(t *testing.T) {
	s := newWSServer(t)
	b := bus.New()
	ch, unsub := b.Subscribe("rt.message_received", 10)
	defer unsub()

	mgr, _ := newTestManager(t, s.srv.URL, b)
	if _, err := mgr.Connect(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	s.waitConn(t)
	<-s.tokens

	s.push(t, "message:received", map[string]any{
		"conversationSid": "CV1",
		"message":         map[string]any{"sid": "IM1", "author": "alice", "body": "hello"},
	})

	select {
	case evt := <-ch:
		ev, ok := evt.Payload.(*MessageEvent)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if ev.ConversationSid != "CV1" || ev.Message.Body != "hello" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for bus event")
	}
}

func TestFailedInitialDialArmsReconnect(t *testing.T) {
	s := newWSServer(t)
	s.rejects.Store(1) // backend down for the first handshake only
	b := bus.New()
	mgr, machine := newTestManager(t, s.srv.URL, b)

	if _, err := mgr.Connect(context.Background(), "tok"); err == nil {
		t.Fatal("expected the initial dial to fail")
	}

	// The manager must keep dialing on its own and come up once the
	// backend does.
	s.waitConn(t)
	<-s.tokens

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if machine.Current() == status.Ready && mgr.Conn() != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state = %s, conn = %v; want READY with a live handle", machine.Current(), mgr.Conn())
}

func TestConcurrentConnectSharesOneSocket(t *testing.T) {
	s := newWSServer(t)
	b := bus.New()
	mgr, _ := newTestManager(t, s.srv.URL, b)

	var wg sync.WaitGroup
	handles := make([]*Conn, 2)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := mgr.Connect(context.Background(), "tok")
			if err != nil {
				t.Errorf("Connect() error = %v", err)
			}
			handles[i] = conn
		}(i)
	}
	wg.Wait()
	s.waitConn(t)
	<-s.tokens

	if handles[0] == nil || handles[0] != handles[1] {
		t.Errorf("handles differ: %p vs %p", handles[0], handles[1])
	}
	if n := s.conns.Load(); n != 1 {
		t.Errorf("server saw %d connections, want 1", n)
	}
}

func TestConnectAfterDisconnectRefused(t *testing.T) {
	s := newWSServer(t)
	b := bus.New()
	mgr, _ := newTestManager(t, s.srv.URL, b)

	if _, err := mgr.Connect(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	s.waitConn(t)
	<-s.tokens

	mgr.Disconnect()

	if _, err := mgr.Connect(context.Background(), "tok"); err == nil {
		t.Error("Connect succeeded after Disconnect")
	}
	if n := s.conns.Load(); n != 1 {
		t.Errorf("server saw %d connections, want 1", n)
	}
}

func TestReconnectResubscribes(t *testing.T) {
	s := newWSServer(t)
	b := bus.New()
	mgr, _ := newTestManager(t, s.srv.URL, b)

	if _, err := mgr.Connect(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	s.waitConn(t)
	<-s.tokens

	mgr.Subscribe("CV1")
	select {
	case env := <-s.inbound:
		if env.Event != "subscribe:conversation" {
			t.Fatalf("event = %q", env.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first subscribe frame")
	}

	// Drop the connection server-side; the manager reconnects and must
	// re-emit the remembered subscription.
	_ = s.lastConn.Close(websocket.StatusGoingAway, "restart")
	s.waitConn(t)
	<-s.tokens

	select {
	case env := <-s.inbound:
		if env.Event != "subscribe:conversation" {
			t.Errorf("event = %q, want subscribe:conversation", env.Event)
		}
		var p subscribePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationSid != "CV1" {
			t.Errorf("payload = %s", env.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for resubscribe frame")
	}
}

func TestExhaustedReconnectGoesDegraded(t *testing.T) {
	s := newWSServer(t)
	b := bus.New()
	mgr, machine := newTestManager(t, s.srv.URL, b)

	if _, err := mgr.Connect(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	s.waitConn(t)
	<-s.tokens

	// Kill the server entirely so every reconnect attempt fails.
	s.srv.CloseClientConnections()
	s.srv.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if machine.Current() == status.Degraded {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("state = %s, want DEGRADED", machine.Current())
}
