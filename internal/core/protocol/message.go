// Package protocol defines the JSON messages exchanged over the frame stream.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/sim"
)

// Message is the envelope for every message. Only the fields that belong to
// Type are set.
type Message struct {
	Type     MessageType `json:"type"`
	ClientID ClientID    `json:"client_id,omitempty"`
	Frame    *sim.Frame  `json:"frame,omitempty"`
	Event    *bus.Event  `json:"event,omitempty"`
	Code     string      `json:"code,omitempty"`
	Down     bool        `json:"down,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func NewHello(id ClientID) Message {
	return Message{Type: MessageTypeHello, ClientID: id}
}

func NewFrame(f sim.Frame) Message {
	return Message{Type: MessageTypeFrame, Frame: &f}
}

func NewEvent(e bus.Event) Message {
	return Message{Type: MessageTypeEvent, Event: &e}
}

func NewKey(code string, down bool) Message {
	return Message{Type: MessageTypeKey, Code: code, Down: down}
}

func NewError(err error) Message {
	return Message{Type: MessageTypeError, Error: err.Error()}
}

// JSONCodec encodes messages as JSON text frames.
type JSONCodec struct{}

func (JSONCodec) Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return json.Marshal(msg)
}

// Decode parses a message. Unknown types decode without error so callers can
// skip them; malformed JSON and a missing type are errors.
func (JSONCodec) Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	if msg.Type == MessageTypeKey && msg.Code == "" {
		return Message{}, fmt.Errorf("%w: key message without code", ErrInvalidMessage)
	}
	return msg, nil
}
