package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/markup"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/pickapi"
	"github.com/ramonehamilton/pickdesk/internal/view"
)

// Outcome describes what a reconciliation did to the list.
type Outcome int

const (
	// Unchanged means nothing was applied: a removal or empty answer for a
	// row that is not displayed.
	Unchanged Outcome = iota
	// Removed means the displayed row was dropped.
	Removed
	// Replaced means the displayed row was swapped in place.
	Replaced
	// Refreshed means the row was not displayed and the full list was reloaded.
	Refreshed
)

func (o Outcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case Replaced:
		return "replaced"
	case Refreshed:
		return "refreshed"
	default:
		return "unchanged"
	}
}

// ListRefresher reloads the full list.
type ListRefresher interface {
	Refresh(ctx context.Context) error
}

// Reconciler re-synchronizes single rows.
type Reconciler struct {
	api     API
	model   *view.Model
	filter  filter.Source
	refresh ListRefresher
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler. refresh is used when a fetched row has
// no place in the displayed list.
func NewReconciler(api API, model *view.Model, f filter.Source, refresh ListRefresher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		api:     api,
		model:   model,
		filter:  f,
		refresh: refresh,
		logger:  logger,
	}
}

// Reconcile re-fetches one item and applies it to the list. Failures are
// logged; the next notification or refresh recovers a lost update.
func (r *Reconciler) Reconcile(ctx context.Context, id models.ItemID) {
	outcome, err := r.Apply(ctx, id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Warn("Failed to reconcile item", "itemID", id, "error", err)
		return
	}
	r.logger.Debug("Reconciled item", "itemID", id, "outcome", outcome)
}

// Apply fetches the item's row under the live filter and resolves it
// against the list as it is when the response arrives:
//
//   - removed and displayed: the row is dropped
//   - present and displayed: the row is replaced in place
//   - present and not displayed: the full list is refreshed
//
// Empty groups are pruned after a removal or replacement. The row is looked
// up only after the fetch returns, so a concurrent reconciliation of the
// same item that finished first is never undone or duplicated.
func (r *Reconciler) Apply(ctx context.Context, id models.ItemID) (Outcome, error) {
	result, err := r.api.FetchRow(ctx, id, r.filter)
	if err != nil {
		return Unchanged, err
	}

	switch result.Status {
	case pickapi.RowRemoved:
		if !r.model.RemoveRow(id) {
			return Unchanged, nil
		}
		r.model.PruneEmptyGroups()
		return Removed, nil

	case pickapi.RowPresent:
		row, err := markup.ParseRow(result.Markup)
		if err != nil {
			return Unchanged, fmt.Errorf("failed to parse row %s: %w", id, err)
		}
		row.ItemID = id
		if current, ok := r.model.Row(id); ok && row.SetCode == "" {
			row.SetCode = current.SetCode
		}
		if r.model.ReplaceRow(row) {
			r.model.PruneEmptyGroups()
			return Replaced, nil
		}
		if r.refresh == nil {
			return Unchanged, nil
		}
		if err := r.refresh.Refresh(ctx); err != nil {
			return Unchanged, fmt.Errorf("failed to refresh list for %s: %w", id, err)
		}
		return Refreshed, nil
	}

	return Unchanged, nil
}
