// Package wire encodes and decodes the JSON-array frames exchanged with a relay.
//
// Client->relay: ["REQ", sub, filter...], ["CLOSE", sub], ["EVENT", event].
// Relay->client: ["EVENT", sub, event], ["EOSE", sub], ["NOTICE", msg],
// ["CLOSED", sub, msg], ["OK", id, accepted, msg].
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zeroxbob/pinstr/internal/model"
)

// MsgType discriminates decoded relay->client frames.
type MsgType int

const (
	// MsgUnknown marks a frame that did not parse; callers log and drop it.
	MsgUnknown MsgType = iota
	MsgEvent
	MsgEOSE
	MsgNotice
	MsgClosed
	MsgOK
)

// Message is a decoded relay->client frame. Fields are populated per Type:
// Event/SubID for MsgEvent, SubID for MsgEOSE, SubID/Reason for MsgClosed,
// Reason for MsgNotice, EventID/Accepted/Reason for MsgOK.
type Message struct {
	Type     MsgType
	SubID    string
	Event    *model.Event
	EventID  string
	Accepted bool
	Reason   string
}

func marshalFrame(frame []any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(frame); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// EncodeReq builds a subscribe frame for one or more filters.
func EncodeReq(subID string, filters ...model.Filter) (string, error) {
	frame := make([]any, 0, 2+len(filters))
	frame = append(frame, "REQ", subID)
	for _, f := range filters {
		frame = append(frame, f)
	}
	return marshalFrame(frame)
}

// EncodeClose builds an unsubscribe frame.
func EncodeClose(subID string) (string, error) {
	return marshalFrame([]any{"CLOSE", subID})
}

// EncodeEvent builds a client->relay publish frame.
func EncodeEvent(ev *model.Event) (string, error) {
	return marshalFrame([]any{"EVENT", ev})
}

// Decode parses a relay->client frame. It never panics or fails hard:
// anything malformed or unexpected comes back as MsgUnknown.
func Decode(data []byte) Message {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil || len(arr) < 2 {
		return Message{Type: MsgUnknown}
	}
	var label string
	if err := json.Unmarshal(arr[0], &label); err != nil {
		return Message{Type: MsgUnknown}
	}

	switch label {
	case "EVENT":
		if len(arr) < 3 {
			return Message{Type: MsgUnknown}
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return Message{Type: MsgUnknown}
		}
		var ev model.Event
		if err := json.Unmarshal(arr[2], &ev); err != nil || ev.ID == "" {
			return Message{Type: MsgUnknown}
		}
		return Message{Type: MsgEvent, SubID: subID, Event: &ev}

	case "EOSE":
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return Message{Type: MsgUnknown}
		}
		return Message{Type: MsgEOSE, SubID: subID}

	case "NOTICE":
		var msg string
		if err := json.Unmarshal(arr[1], &msg); err != nil {
			return Message{Type: MsgUnknown}
		}
		return Message{Type: MsgNotice, Reason: msg}

	case "CLOSED":
		if len(arr) < 3 {
			return Message{Type: MsgUnknown}
		}
		var subID, msg string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return Message{Type: MsgUnknown}
		}
		if err := json.Unmarshal(arr[2], &msg); err != nil {
			return Message{Type: MsgUnknown}
		}
		return Message{Type: MsgClosed, SubID: subID, Reason: msg}

	case "OK":
		if len(arr) < 4 {
			return Message{Type: MsgUnknown}
		}
		var id string
		var accepted bool
		var msg string
		if err := json.Unmarshal(arr[1], &id); err != nil {
			return Message{Type: MsgUnknown}
		}
		if err := json.Unmarshal(arr[2], &accepted); err != nil {
			return Message{Type: MsgUnknown}
		}
		if err := json.Unmarshal(arr[3], &msg); err != nil {
			return Message{Type: MsgUnknown}
		}
		return Message{Type: MsgOK, EventID: id, Accepted: accepted, Reason: msg}
	}

	return Message{Type: MsgUnknown}
}
