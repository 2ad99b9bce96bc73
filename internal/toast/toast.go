// Package toast implements the undo notification shown after a pick.
//
// At most one toast is live. Showing a new toast stops the previous
// countdown and invalidates its handle, so an undo can only ever act on the
// most recent action.
package toast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/pickapi"
)

const (
	// DefaultTicks is the number of countdown ticks before a toast expires.
	DefaultTicks = 5
	// DefaultTick is the length of one countdown tick.
	DefaultTick = time.Second
)

var (
	// ErrSuperseded is returned by Undo on a toast replaced by a newer one.
	ErrSuperseded = errors.New("toast superseded")
	// ErrExpired is returned by Undo after the countdown reached zero.
	ErrExpired = errors.New("toast expired")
	// ErrUndone is returned by Undo when the undo was already issued.
	ErrUndone = errors.New("undo already issued")
)

// Undoer issues the undo request.
type Undoer interface {
	PostUndo(ctx context.Context, endpoint string, f filter.Source) error
}

// Syncer refreshes the list after an undo.
type Syncer interface {
	RefreshCounts(ctx context.Context) error
	Reconcile(ctx context.Context, id models.ItemID)
	Refresh(ctx context.Context) error
}

// Config holds the controller settings.
type Config struct {
	Ticks  int
	Tick   time.Duration
	Undoer Undoer
	Filter filter.Source
	Syncer Syncer
	Logger *slog.Logger
}

// View is what the toast area currently shows.
type View struct {
	Visible   bool
	ID        string
	Message   string
	Remaining int
	Undoing   bool
}

// Toast is the handle returned by Show.
type Toast struct {
	ID        string
	Message   string
	Endpoint  string
	RelatedID models.ItemID

	c         *Controller
	stop      chan struct{}
	stopOnce  sync.Once
	remaining int
	expired   bool
	undoing   bool
}

func (t *Toast) halt() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Controller owns the single live toast.
type Controller struct {
	config  Config
	logger  *slog.Logger
	mu      sync.Mutex
	live    *Toast
	changes chan struct{}
}

// NewController creates a controller.
func NewController(config Config) *Controller {
	if config.Ticks <= 0 {
		config.Ticks = DefaultTicks
	}
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		config:  config,
		logger:  logger,
		changes: make(chan struct{}, 1),
	}
}

// Changes receives a value whenever the visible toast changes.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Show displays message with an undo bound to endpoint and starts the
// countdown. relatedID may be empty. Any previous toast is cancelled.
func (c *Controller) Show(message, endpoint string, relatedID models.ItemID) *Toast {
	t := &Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Endpoint:  endpoint,
		RelatedID: relatedID,
		c:         c,
		stop:      make(chan struct{}),
		remaining: c.config.Ticks,
	}

	c.mu.Lock()
	prev := c.live
	c.live = t
	c.mu.Unlock()

	if prev != nil {
		prev.halt()
		c.logger.Debug("Superseded toast", "toastID", prev.ID)
	}
	go c.countdown(t)
	c.notify()
	return t
}

func (c *Controller) countdown(t *Toast) {
	ticker := time.NewTicker(c.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.live != t || t.undoing {
			c.mu.Unlock()
			return
		}
		t.remaining--
		done := t.remaining <= 0
		if done {
			t.expired = true
			c.live = nil
		}
		c.mu.Unlock()

		c.notify()
		if done {
			c.logger.Debug("Toast expired", "toastID", t.ID)
			return
		}
	}
}

// Current returns the visible toast.
func (c *Controller) Current() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live == nil {
		return View{}
	}
	return View{
		Visible:   true,
		ID:        c.live.ID,
		Message:   c.live.Message,
		Remaining: c.live.remaining,
		Undoing:   c.live.undoing,
	}
}

// Live returns the live toast handle, or nil.
func (c *Controller) Live() *Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Dismiss hides the live toast without taking any action.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	t := c.live
	c.live = nil
	c.mu.Unlock()
	if t != nil {
		t.halt()
		c.notify()
	}
}

// Undo stops the countdown and posts the undo. On completion the toast is
// dismissed, counts are refreshed, the related item is reconciled and the
// full list is refreshed. A handle that is no longer live does nothing.
func (t *Toast) Undo(ctx context.Context) error {
	c := t.c

	c.mu.Lock()
	switch {
	case t.undoing:
		c.mu.Unlock()
		return ErrUndone
	case t.expired:
		c.mu.Unlock()
		return ErrExpired
	case c.live != t:
		c.mu.Unlock()
		return ErrSuperseded
	}
	t.undoing = true
	c.mu.Unlock()
	t.halt()
	c.notify()

	err := c.config.Undoer.PostUndo(ctx, t.Endpoint, c.config.Filter)

	c.mu.Lock()
	if c.live == t {
		c.live = nil
	}
	c.mu.Unlock()
	c.notify()

	// Any HTTP answer completes the request, and the server may have applied
	// part of the undo. Only a transport failure skips the resync.
	var statusErr *pickapi.StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return fmt.Errorf("undo %q: %w", t.Message, err)
	}
	if err == nil {
		c.logger.Info("Undo issued", "endpoint", t.Endpoint, "itemID", t.RelatedID)
	} else {
		c.logger.Warn("Undo rejected", "endpoint", t.Endpoint, "itemID", t.RelatedID, "status", statusErr.Code)
	}

	if s := c.config.Syncer; s != nil {
		if err := s.RefreshCounts(ctx); err != nil {
			c.logger.Warn("Failed to refresh counts", "error", err)
		}
		if !t.RelatedID.IsZero() {
			s.Reconcile(ctx, t.RelatedID)
		}
		if err := s.Refresh(ctx); err != nil {
			c.logger.Warn("Failed to refresh list", "error", err)
		}
	}
	if err != nil {
		return fmt.Errorf("undo %q: %w", t.Message, err)
	}
	return nil
}

// Remaining returns the ticks left on this toast's countdown.
func (t *Toast) Remaining() int {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.remaining
}
