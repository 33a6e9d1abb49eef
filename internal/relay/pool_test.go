package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
)

// startEchoRelay answers every REQ with one EVENT plus EOSE and every
// published EVENT with an accepting OK. Returns the ws:// URL.
func startEchoRelay(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var arr []json.RawMessage
			if json.Unmarshal(data, &arr) != nil || len(arr) < 2 {
				continue
			}
			var label string
			if json.Unmarshal(arr[0], &label) != nil {
				continue
			}
			switch label {
			case "REQ":
				var subID string
				if json.Unmarshal(arr[1], &subID) != nil {
					continue
				}
				ev := model.Event{ID: "echo-" + subID, CreatedAt: 1, Kind: 1}
				for _, frame := range []any{
					[]any{"EVENT", subID, ev},
					[]any{"EOSE", subID},
				} {
					b, _ := json.Marshal(frame)
					_ = conn.WriteMessage(websocket.TextMessage, b)
				}
			case "EVENT":
				var ev model.Event
				if json.Unmarshal(arr[1], &ev) != nil {
					continue
				}
				b, _ := json.Marshal([]any{"OK", ev.ID, true, ""})
				_ = conn.WriteMessage(websocket.TextMessage, b)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPool_SharesConnectionsByURL(t *testing.T) {
	t.Parallel()
	url := startEchoRelay(t)
	p := NewPool(zap.NewNop())
	defer p.Close()

	ctx := context.Background()
	c1, err := p.acquire(ctx, url)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	c2, err := p.acquire(ctx, url)
	if err != nil {
		t.Fatalf("acquire again: %v", err)
	}
	if c1 != c2 {
		t.Fatal("two acquires of one URL dialed separate connections")
	}

	p.release(c1)
	if !c1.Alive() {
		t.Fatal("connection closed while a reference was still held")
	}
	p.release(c2)
	if c2.Alive() {
		t.Fatal("connection survived its last release")
	}
}

func TestPool_RedialsAfterConnectionDeath(t *testing.T) {
	t.Parallel()
	url := startEchoRelay(t)
	p := NewPool(zap.NewNop())
	defer p.Close()

	ctx := context.Background()
	c1, err := p.acquire(ctx, url)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	c1.Close()

	c2, err := p.acquire(ctx, url)
	if err != nil {
		t.Fatalf("acquire after death: %v", err)
	}
	if c2 == c1 {
		t.Fatal("acquire handed out the dead connection")
	}
	if !c2.Alive() {
		t.Fatal("redialed connection is not alive")
	}
	p.release(c2)
}

func TestPool_AcquireSurvivesConcurrentRelease(t *testing.T) {
	t.Parallel()
	url := startEchoRelay(t)
	p := NewPool(zap.NewNop())
	defer p.Close()

	// Releases racing acquires close the connection out from under freshly
	// dialed callers; every acquire against a reachable relay must still win.
	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				conn, err := p.acquire(context.Background(), url)
				if err != nil {
					errCh <- err
					return
				}
				p.release(conn)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("acquire during churn: %v", err)
	}
}

func TestPool_AcquireUnreachable(t *testing.T) {
	t.Parallel()
	p := NewPool(zap.NewNop())
	defer p.Close()

	_, err := p.acquire(context.Background(), "ws://127.0.0.1:1")
	if !errors.Is(err, errs.ErrConnectionFailed) {
		t.Fatalf("err=%v, want ErrConnectionFailed", err)
	}
}

func TestConn_SendAfterClose(t *testing.T) {
	t.Parallel()
	url := startEchoRelay(t)
	conn, err := Dial(context.Background(), url, zap.NewNop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
	if err := conn.Send(`["CLOSE","s1"]`); !errors.Is(err, errs.ErrConnectionClosed) {
		t.Fatalf("err=%v, want ErrConnectionClosed", err)
	}
}

func TestPool_SubscribeRoutesEventsAndEOSE(t *testing.T) {
	t.Parallel()
	url := startEchoRelay(t)
	p := NewPool(zap.NewNop())
	defer p.Close()

	sub, err := p.Subscribe(context.Background(), url, "s1", model.Filter{Kinds: []int{1}})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer p.Unsubscribe(sub)

	select {
	case ev := <-sub.Events:
		if ev.ID != "echo-s1" {
			t.Fatalf("event %q routed to s1", ev.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event within deadline")
	}
	select {
	case reason := <-sub.EndOfStream:
		if reason != "" {
			t.Fatalf("EOSE carried reason %q", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no EOSE within deadline")
	}
}

func TestPool_TwoSubscriptionsOneConnection(t *testing.T) {
	t.Parallel()
	url := startEchoRelay(t)
	p := NewPool(zap.NewNop())
	defer p.Close()

	ctx := context.Background()
	s1, err := p.Subscribe(ctx, url, "s1", model.Filter{})
	if err != nil {
		t.Fatalf("Subscribe s1: %v", err)
	}
	s2, err := p.Subscribe(ctx, url, "s2", model.Filter{})
	if err != nil {
		t.Fatalf("Subscribe s2: %v", err)
	}
	if s1.conn != s2.conn {
		t.Fatal("subscriptions to one relay did not share a connection")
	}

	for _, s := range []*Subscription{s1, s2} {
		select {
		case ev := <-s.Events:
			if ev.ID != "echo-"+s.ID {
				t.Fatalf("subscription %s received %q", s.ID, ev.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscription %s starved", s.ID)
		}
	}

	// Dropping one subscription leaves the shared connection open.
	conn := s1.conn
	p.Unsubscribe(s1)
	if !conn.Alive() {
		t.Fatal("connection closed while s2 still held it")
	}
	p.Unsubscribe(s2)
	if conn.Alive() {
		t.Fatal("connection survived its last subscription")
	}
}

func TestPool_PublishCorrelatesOK(t *testing.T) {
	t.Parallel()
	url := startEchoRelay(t)
	p := NewPool(zap.NewNop())
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := &model.Event{ID: "abcd", CreatedAt: 1, Kind: 1, Sig: "ff"}
	ack, err := p.Publish(ctx, url, ev)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ack.Accepted {
		t.Fatalf("ack=%+v, want accepted", ack)
	}
}

func TestPool_PublishTimesOutWithoutOK(t *testing.T) {
	t.Parallel()
	// Accepts the websocket but never answers.
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	p := NewPool(zap.NewNop())
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := p.Publish(ctx, url, &model.Event{ID: "abcd", Kind: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want deadline exceeded", err)
	}
}
