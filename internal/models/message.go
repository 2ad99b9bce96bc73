package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Realtime message types pushed on the batch socket.
const (
	MessageItemUpdate  = "item_update"
	MessageSetReserved = "set_reserved"
)

var (
	// ErrUnknownMessage is returned for well-formed messages with an unrecognised type.
	ErrUnknownMessage = errors.New("unknown realtime message type")

	// ErrMalformedMessage is returned for payloads that are not a usable message.
	ErrMalformedMessage = errors.New("malformed realtime message")
)

// Message is a decoded realtime message.
// Exactly one of ItemUpdate and SetReserved is set, matching Type.
type Message struct {
	Type        string
	ItemUpdate  *ItemUpdate
	SetReserved *SetReserved
}

// ItemUpdate tells the client that one item changed server-side.
type ItemUpdate struct {
	ItemID ItemID `json:"item_id"`
}

// SetReserved tells the client who now holds a set group.
// An empty ReservedBy means the reservation was released.
type SetReserved struct {
	SetCode    string  `json:"set_code"`
	ReservedBy *string `json:"reserved_by"`
}

// Holder returns the reserving operator, or "" when released.
func (s SetReserved) Holder() string {
	if s.ReservedBy == nil {
		return ""
	}
	return *s.ReservedBy
}

// DecodeMessage parses one socket frame.
func DecodeMessage(data []byte) (Message, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch envelope.Type {
	case MessageItemUpdate:
		var body ItemUpdate
		if err := json.Unmarshal(data, &body); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if body.ItemID.IsZero() {
			return Message{}, fmt.Errorf("%w: item_update without item_id", ErrMalformedMessage)
		}
		return Message{Type: envelope.Type, ItemUpdate: &body}, nil

	case MessageSetReserved:
		var body SetReserved
		if err := json.Unmarshal(data, &body); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return Message{Type: envelope.Type, SetReserved: &body}, nil

	case "":
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, envelope.Type)
	}
}
