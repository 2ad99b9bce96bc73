// Package reconcile keeps the list view in step with the server.
//
// A Reconciler re-fetches one item after a realtime notification and applies
// the result to the current list, falling back to the Refresher when no
// insertion point for the row can be inferred.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/markup"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/pickapi"
	"github.com/ramonehamilton/pickdesk/internal/view"
)

// API is the part of the batch server client used by this package.
type API interface {
	FetchRow(ctx context.Context, id models.ItemID, f filter.Source) (pickapi.RowResult, error)
	FetchList(ctx context.Context, f filter.Source) (string, error)
	FetchCounts(ctx context.Context) (string, error)
}

// CollapseState reports the stored collapse flag for a set group key.
type CollapseState interface {
	IsCollapsed(key string) bool
}

// SwapFailureFunc is called with the response path of a list fetch that
// found its container detached.
type SwapFailureFunc func(ctx context.Context, responsePath string)

// Config holds the Refresher dependencies.
type Config struct {
	API      API
	Model    *view.Model
	Filter   filter.Source
	Collapse CollapseState // nil means every group is expanded

	// OnSwapFailure is called when the list container was detached while a
	// list fetch was in flight.
	OnSwapFailure SwapFailureFunc
	ListPath      string

	Logger *slog.Logger
}

// Refresher reloads the whole filtered list and the batch counts.
type Refresher struct {
	config Config
	logger *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(config Config) *Refresher {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{config: config, logger: logger}
}

// Refresh replaces the displayed list with the server's current filtered
// list, re-applies stored collapse flags and prunes empty groups. It does
// nothing while the list container is detached.
func (r *Refresher) Refresh(ctx context.Context) error {
	model := r.config.Model
	if !model.Attached() {
		r.logger.Debug("Skipping list refresh, list detached")
		return nil
	}

	fragment, err := r.config.API.FetchList(ctx, r.config.Filter)
	if err != nil {
		return err
	}
	groups, err := markup.ParseList(fragment)
	if err != nil {
		return fmt.Errorf("failed to parse list: %w", err)
	}

	if !model.ReplaceAllIfAttached(groups) {
		r.logger.Debug("List detached during refresh")
		if r.config.OnSwapFailure != nil {
			r.config.OnSwapFailure(ctx, r.config.ListPath)
		}
		return nil
	}
	model.ApplyCollapse(r.collapsed)
	model.PruneEmptyGroups()
	r.logger.Debug("Refreshed list", "groups", len(groups), "rows", model.Len())
	return nil
}

// RefreshCounts re-fetches the batch counts fragment.
func (r *Refresher) RefreshCounts(ctx context.Context) error {
	counts, err := r.config.API.FetchCounts(ctx)
	if err != nil {
		return err
	}
	r.config.Model.SetCounts(markup.Text(counts))
	return nil
}

func (r *Refresher) collapsed(key string) bool {
	if r.config.Collapse == nil {
		return false
	}
	return r.config.Collapse.IsCollapsed(key)
}
