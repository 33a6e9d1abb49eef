package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/zeroxbob/pinstr/internal/model"
)

// relayBehavior scripts a fake relay for coordinator tests.
type relayBehavior struct {
	// events are served in order after each REQ.
	events []model.Event
	// eose controls whether an EOSE follows the stored events.
	eose bool
	// ack, when non-nil, answers every published event; nil stays silent.
	ack       *bool
	ackReason string
}

func acceptAll() *bool { b := true; return &b }
func rejectAll() *bool { b := false; return &b }

// startRelay serves the wire protocol over a local websocket and returns its
// ws:// URL. One goroutine per connection; it is the only writer on it.
func startRelay(t *testing.T, behave relayBehavior) string {
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
				for i := range behave.events {
					writeFrame(t, conn, []any{"EVENT", subID, behave.events[i]})
				}
				if behave.eose {
					writeFrame(t, conn, []any{"EOSE", subID})
				}
			case "EVENT":
				if behave.ack == nil {
					continue
				}
				var ev model.Event
				if json.Unmarshal(arr[1], &ev) != nil {
					continue
				}
				writeFrame(t, conn, []any{"OK", ev.ID, *behave.ack, behave.ackReason})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame []any) {
	t.Helper()
	b, err := json.Marshal(frame)
	if err != nil {
		t.Errorf("marshal frame: %v", err)
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func readRelay(url string) model.RelayConfig {
	return model.RelayConfig{URL: url, Read: true}
}

func writeRelay(url string) model.RelayConfig {
	return model.RelayConfig{URL: url, Write: true}
}
