package protocol

import "github.com/google/uuid"

// ClientID identifies one connected frame-stream client.
type ClientID string

func GenerateClientID() ClientID {
	return ClientID(uuid.NewString())
}

// MessageType tags every message on the wire.
type MessageType string

const (
	// MessageTypeHello is the first server message on a new connection.
	MessageTypeHello MessageType = "hello"
	// MessageTypeFrame carries one rendered tick.
	MessageTypeFrame MessageType = "frame"
	// MessageTypeEvent carries a simulation event.
	MessageTypeEvent MessageType = "event"
	// MessageTypeKey is a key press or release sent by a client.
	MessageTypeKey MessageType = "key"
	// MessageTypeError reports a rejected client message.
	MessageTypeError MessageType = "error"
)

func (mt MessageType) String() string { return string(mt) }

func (mt MessageType) Valid() bool {
	switch mt {
	case MessageTypeHello, MessageTypeFrame, MessageTypeEvent, MessageTypeKey, MessageTypeError:
		return true
	}
	return false
}
