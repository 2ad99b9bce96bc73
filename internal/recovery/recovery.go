// Package recovery handles responses whose display target vanished while
// the request was in flight.
//
// Recovery is bounded: an overlay response is retried at most once per
// open, and a list response falls back to a single full refresh.
package recovery

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/view"
)

// Target names the container a response was meant for.
type Target string

const (
	TargetList    Target = "items"
	TargetOverlay Target = "card-modal"
	TargetRow     Target = "row"
)

const (
	overlayPathFragment = "/card/modal"
	batchPathFragment   = "/batch/"
)

// SwapFailure describes a response that could not be applied.
type SwapFailure struct {
	Target         Target
	TargetAttached bool
	ResponsePath   string
}

// Decision is the recovery chosen for a failure.
type Decision int

const (
	// Ignore means no recovery applies.
	Ignore Decision = iota
	// RetryOverlay clears the overlay and opens the last item again.
	RetryOverlay
	// RefreshList reloads the full list.
	RefreshList
	// ClearOverlay resets the overlay to empty.
	ClearOverlay
)

func (d Decision) String() string {
	switch d {
	case RetryOverlay:
		return "retry_overlay"
	case RefreshList:
		return "refresh_list"
	case ClearOverlay:
		return "clear_overlay"
	default:
		return "ignore"
	}
}

// Decide applies the recovery table to f. lastItem is the item most recently
// opened in the overlay and retrying reports whether its one retry is
// already in flight.
func Decide(f SwapFailure, lastItem models.ItemID, retrying bool) Decision {
	missing := !f.TargetAttached
	overlayResponse := strings.Contains(f.ResponsePath, overlayPathFragment)

	if missing && overlayResponse && !lastItem.IsZero() && !retrying {
		return RetryOverlay
	}
	if missing && (f.Target == TargetList || strings.Contains(f.ResponsePath, batchPathFragment)) {
		return RefreshList
	}
	if f.Target == TargetOverlay {
		return ClearOverlay
	}
	return Ignore
}

// ModalAPI fetches card-detail fragments.
type ModalAPI interface {
	CardModal(ctx context.Context, id models.ItemID) (string, error)
}

// ListRefresher reloads the full list.
type ListRefresher interface {
	Refresh(ctx context.Context) error
}

// Overlay opens card details and recovers failed overlay and list swaps.
type Overlay struct {
	api       ModalAPI
	container *view.Overlay
	refresher ListRefresher
	modalPath func(models.ItemID) string
	logger    *slog.Logger

	mu       sync.Mutex
	lastItem models.ItemID
	retrying bool
}

// NewOverlay creates an overlay controller. modalPath names the request
// path reported in swap failures.
func NewOverlay(api ModalAPI, container *view.Overlay, refresher ListRefresher, modalPath func(models.ItemID) string, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{
		api:       api,
		container: container,
		refresher: refresher,
		modalPath: modalPath,
		logger:    logger,
	}
}

// Open shows the card details for id. Each operator open re-arms the single
// retry.
func (o *Overlay) Open(ctx context.Context, id models.ItemID) error {
	o.mu.Lock()
	o.lastItem = id
	o.retrying = false
	o.mu.Unlock()
	return o.open(ctx, id)
}

func (o *Overlay) open(ctx context.Context, id models.ItemID) error {
	o.container.Ensure().Clear()

	content, err := o.api.CardModal(ctx, id)
	if err != nil {
		return err
	}
	if o.container.Swap(id, content) {
		return nil
	}
	o.Handle(ctx, SwapFailure{Target: TargetOverlay, ResponsePath: o.modalPath(id)})
	return nil
}

// Close detaches the overlay container.
func (o *Overlay) Close() {
	o.container.Close()
}

// Handle recovers from a failed swap.
func (o *Overlay) Handle(ctx context.Context, f SwapFailure) Decision {
	o.mu.Lock()
	decision := Decide(f, o.lastItem, o.retrying)
	last := o.lastItem
	if decision == RetryOverlay {
		o.retrying = true
	}
	o.mu.Unlock()

	o.logger.Debug("Recovering failed swap", "target", f.Target, "path", f.ResponsePath, "decision", decision)

	switch decision {
	case RetryOverlay:
		o.container.Ensure().Clear()
		if err := o.open(ctx, last); err != nil {
			o.logger.Warn("Overlay retry failed", "itemID", last, "error", err)
		}
	case RefreshList:
		if o.refresher == nil {
			break
		}
		if err := o.refresher.Refresh(ctx); err != nil {
			o.logger.Warn("Recovery refresh failed", "error", err)
		}
	case ClearOverlay:
		o.container.Ensure().Clear()
	}
	return decision
}

// HandleListFailure adapts Handle to the list refresher's swap-failure hook.
func (o *Overlay) HandleListFailure(ctx context.Context, responsePath string) {
	o.Handle(ctx, SwapFailure{Target: TargetList, ResponsePath: responsePath})
}
