package models

import (
	"fmt"
	"slices"
	"strings"
)

// Mode is the traversal strategy used by assisted picking.
type Mode string

const (
	ModeTopDown   Mode = "top_down"
	ModeBottomUp  Mode = "bottom_up"
	ModeMiddleOut Mode = "middle_out"
)

// Modes lists every traversal mode in menu order.
var Modes = []Mode{ModeTopDown, ModeBottomUp, ModeMiddleOut}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Modes, m) {
		return "", fmt.Errorf("unknown traversal mode %q", s)
	}
	return m, nil
}

// Label returns a human readable name for the mode.
func (m Mode) Label() string {
	switch m {
	case ModeTopDown:
		return "Top down"
	case ModeBottomUp:
		return "Bottom up"
	case ModeMiddleOut:
		return "Middle out"
	default:
		return string(m)
	}
}

// Action is an operator decision on the presented item.
type Action string

const (
	ActionPicked  Action = "picked"
	ActionPickAll Action = "pick_all"
	ActionSkip    Action = "skip"
	ActionMissing Action = "missing"
)

// ParseAction validates an action string.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionPicked, ActionPickAll, ActionSkip, ActionMissing:
		return a, nil
	default:
		return "", fmt.Errorf("unknown assisted action %q", s)
	}
}

// Snapshot is the server's answer to an assisted "next" or "act" request.
type Snapshot struct {
	Done            bool  `json:"done"`
	Item            *Item `json:"item,omitempty"`
	RemainingCards  int   `json:"remaining_cards"`
	RemainingCopies int   `json:"remaining_copies"`
	Mode            Mode  `json:"mode,omitempty"`
}

// ActRequest is the body of an assisted "act" submission.
type ActRequest struct {
	ItemID         ItemID   `json:"item_id"`
	Action         Action   `json:"action"`
	Mode           Mode     `json:"mode"`
	ExcludeItemIDs []ItemID `json:"exclude_item_ids"`
}
