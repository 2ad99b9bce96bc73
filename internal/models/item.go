// Package models defines the data exchanged with the picking batch server.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ItemID is the server-assigned identifier of a batch item.
// It is opaque to the client; the server emits integers but any string is accepted.
type ItemID string

// String returns the id as a string.
func (id ItemID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id ItemID) IsZero() bool {
	return id == ""
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode item id: %w", err)
		}
		*id = ItemID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode item id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("item id %s is not an integer", n)
	}
	*id = ItemID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers so the server sees the same shape it sent.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Item is a snapshot of one line to be picked.
// The client never holds authoritative item state; every Item is a copy of
// what the server last reported.
type Item struct {
	ID              ItemID `json:"id"`
	CardName        string `json:"card_name"`
	Condition       string `json:"condition"`
	Language        string `json:"language"`
	CollectorNumber string `json:"collector_number"`
	SetCode         string `json:"set_code"`
	SetName         string `json:"set_name,omitempty"`
	Printing        string `json:"printing"` // Finish, e.g. "foil", "nonfoil", "etched"
	QtyRequired     int    `json:"qty_required"`
	QtyRemaining    int    `json:"qty_remaining"`
	ImageURL        string `json:"image_url,omitempty"`
}

// ConditionLanguage returns the "NM / EN" style label shown next to a card.
func (i Item) ConditionLanguage() string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(i.Condition); c != "" {
		parts = append(parts, c)
	}
	if l := strings.TrimSpace(i.Language); l != "" {
		parts = append(parts, l)
	}
	return strings.Join(parts, " / ")
}

// Quantity returns the remaining/required pair, e.g. "2/3".
func (i Item) Quantity() string {
	return fmt.Sprintf("%d/%d", i.QtyRemaining, i.QtyRequired)
}
