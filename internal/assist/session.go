// Package assist runs the assisted picking workflow: one item at a time, in
// a chosen traversal mode, with a local record of skipped items.
//
// Skips are never sent to the server as state. Each request carries the
// session's exclusion list instead, so operators running sessions against
// the same batch never block each other.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// State is the session's position in the workflow.
type State int

const (
	Unselected State = iota
	AwaitingItem
	Presenting
	Complete
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case AwaitingItem:
		return "awaiting_item"
	case Presenting:
		return "presenting"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrBusy is returned while a request is in flight and controls are disabled.
	ErrBusy = errors.New("assisted picking request in flight")
	// ErrNotPresenting is returned by Act when no item is shown.
	ErrNotPresenting = errors.New("no item is being presented")
	// ErrInvalidMode is returned by SelectMode for an unknown mode.
	ErrInvalidMode = errors.New("invalid traversal mode")
)

// API is the assisted picking part of the batch server client.
type API interface {
	AssistNext(ctx context.Context, mode models.Mode, exclude []models.ItemID) (*models.Snapshot, error)
	AssistAct(ctx context.Context, act models.ActRequest) (*models.Snapshot, error)
}

// Session is one operator's assisted picking session. Safe for concurrent use.
type Session struct {
	api    API
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	mode        models.Mode
	snapshot    *models.Snapshot
	exclude     []models.ItemID
	busy        bool
	imageFailed bool
	lastErr     error
}

// NewSession creates a session in the unselected state.
func NewSession(api API, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{api: api, logger: logger}
}

// SelectMode starts (or restarts) the session in mode: it clears the
// exclusion list and requests the first item.
func (s *Session) SelectMode(ctx context.Context, mode models.Mode) error {
	if !slices.Contains(models.Modes, mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.mode = mode
	s.exclude = nil
	s.snapshot = nil
	s.imageFailed = false
	s.lastErr = nil
	s.state = AwaitingItem
	s.mu.Unlock()

	s.logger.Debug("Assisted mode selected", "mode", mode)
	snap, err := s.api.AssistNext(ctx, mode, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.lastErr = err
		return fmt.Errorf("failed to fetch first item: %w", err)
	}
	s.apply(snap)
	return nil
}

// Act submits the operator's decision on the presented item. A skip adds the
// item to the exclusion list; any other action removes it. A failed
// submission falls back to fetching the next item with the unchanged
// exclusion list. Controls are re-enabled when the round trip settles.
func (s *Session) Act(ctx context.Context, action models.Action) error {
	action, err := models.ParseAction(string(action))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.state != Presenting || s.snapshot == nil || s.snapshot.Item == nil {
		s.mu.Unlock()
		return ErrNotPresenting
	}
	id := s.snapshot.Item.ID
	if action == models.ActionSkip {
		if !slices.Contains(s.exclude, id) {
			s.exclude = append(s.exclude, id)
		}
	} else {
		s.exclude = slices.DeleteFunc(s.exclude, func(x models.ItemID) bool { return x == id })
	}
	req := models.ActRequest{
		ItemID:         id,
		Action:         action,
		Mode:           s.mode,
		ExcludeItemIDs: slices.Clone(s.exclude),
	}
	s.busy = true
	s.lastErr = nil
	s.mu.Unlock()

	snap, err := s.api.AssistAct(ctx, req)
	if err != nil {
		s.logger.Warn("Assisted action failed, fetching next item",
			"itemID", id, "action", action, "error", err)
		snap, err = s.api.AssistNext(ctx, req.Mode, req.ExcludeItemIDs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.lastErr = err
		return fmt.Errorf("failed to fetch next item: %w", err)
	}
	s.apply(snap)
	return nil
}

// apply must be called with mu held.
func (s *Session) apply(snap *models.Snapshot) {
	s.imageFailed = false
	if snap.Done || snap.Item == nil {
		s.state = Complete
		s.snapshot = nil
		s.logger.Info("Assisted picking complete", "mode", s.mode)
		return
	}
	cp := *snap
	item := *snap.Item
	cp.Item = &item
	s.snapshot = &cp
	s.state = Presenting
}

// ImageFailed swaps the presented image for the placeholder.
func (s *Session) ImageFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Presenting {
		s.imageFailed = true
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Exclusions returns the skipped item ids in skip order.
func (s *Session) Exclusions() []models.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.exclude)
}

// ControlsEnabled reports whether action controls accept input.
func (s *Session) ControlsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Presenting && !s.busy
}
