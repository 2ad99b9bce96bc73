package app

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/markup"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/pickapi"
	"github.com/ramonehamilton/pickdesk/internal/prefs"
	"github.com/ramonehamilton/pickdesk/internal/toast"
	"github.com/ramonehamilton/pickdesk/internal/view"
)

// Reconcile re-synchronizes one row. Errors are logged.
func (d *Desk) Reconcile(ctx context.Context, id models.ItemID) {
	d.Metrics.Reconciles.Add(1)
	d.Reconciler.Reconcile(ctx, id)
}

// Pick records one picked copy of id, applies the returned row and offers
// an undo.
func (d *Desk) Pick(ctx context.Context, id models.ItemID) (*toast.Toast, error) {
	label := id.String()
	if row, ok := d.Model.Row(id); ok {
		label = row.Label()
	}

	fragment, err := d.Client.Pick(ctx, id, d.Filter)
	if err != nil {
		return nil, err
	}
	d.applyRow(ctx, id, fragment)
	if err := d.RefreshCounts(ctx); err != nil {
		d.logger.Warn("Failed to refresh counts", "error", err)
	}

	d.logger.Info("Picked item", "itemID", id)
	return d.Toasts.Show("Picked "+label, pickapi.UndoPath(id), id), nil
}

// applyRow swaps an action's row response into the list. An empty fragment
// means the row left the filtered list.
func (d *Desk) applyRow(ctx context.Context, id models.ItemID, fragment string) {
	if fragment == "" {
		if d.Model.RemoveRow(id) {
			d.Model.PruneEmptyGroups()
		}
		return
	}
	row, err := markup.ParseRow(fragment)
	if err != nil {
		d.logger.Warn("Unreadable row response", "itemID", id, "error", err)
		d.Reconcile(ctx, id)
		return
	}
	row.ItemID = id
	if d.Model.ReplaceRow(row) {
		d.Model.PruneEmptyGroups()
		return
	}
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("Failed to refresh list", "error", err)
	}
}

// afterItemChange runs the follow-up shared by missing and unmissing:
// counts, the item itself, then the whole list.
func (d *Desk) afterItemChange(ctx context.Context, id models.ItemID) {
	if err := d.RefreshCounts(ctx); err != nil {
		d.logger.Warn("Failed to refresh counts", "error", err)
	}
	d.Reconcile(ctx, id)
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("Failed to refresh list", "error", err)
	}
}

// MarkMissing flags id as missing with an optional note.
func (d *Desk) MarkMissing(ctx context.Context, id models.ItemID, note string) error {
	if _, err := d.Client.MarkMissing(ctx, id, note, d.Filter); err != nil {
		return err
	}
	d.logger.Info("Marked item missing", "itemID", id)
	d.afterItemChange(ctx, id)
	return nil
}

// UnmarkMissing clears the missing flag of id.
func (d *Desk) UnmarkMissing(ctx context.Context, id models.ItemID) error {
	if _, err := d.Client.UnmarkMissing(ctx, id, d.Filter); err != nil {
		return err
	}
	d.logger.Info("Unmarked item missing", "itemID", id)
	d.afterItemChange(ctx, id)
	return nil
}

// ReserveSet toggles the reservation of a set group for the operator. The
// server also broadcasts the change to every client.
func (d *Desk) ReserveSet(ctx context.Context, setCode string) error {
	res, err := d.Client.ReserveSet(ctx, setCode, d.OperatorName())
	if err != nil {
		return err
	}
	holder := ""
	if res.ReservedBy != nil {
		holder = *res.ReservedBy
	}
	d.Model.SetReservation(setCode, holder)
	return nil
}

// ToggleSetGroup flips and persists the collapse flag of a set group.
func (d *Desk) ToggleSetGroup(ctx context.Context, setCode string) error {
	collapsed := !d.Model.Collapsed(setCode)
	if !d.Model.SetCollapsed(setCode, collapsed) {
		return nil
	}
	if err := d.Prefs.SetCollapsed(ctx, setCode, collapsed); err != nil {
		return fmt.Errorf("save collapse state: %w", err)
	}
	return nil
}

// OperatorName returns the name used for reservations.
func (d *Desk) OperatorName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.operator == "" {
		return prefs.Anonymous
	}
	return d.operator
}

// SetOperatorName stores the name used for reservations. Blank means anonymous.
func (d *Desk) SetOperatorName(ctx context.Context, name string) error {
	stored, err := d.Prefs.SetOperatorName(ctx, name)
	d.mu.Lock()
	d.operator = stored
	d.mu.Unlock()
	return err
}

// SetFilter edits the live filter and reloads the list.
func (d *Desk) SetFilter(ctx context.Context, fn func(*filter.Values)) error {
	d.Filter.Update(fn)
	return d.Refresh(ctx)
}

// OpenCard shows the card-detail overlay for id.
func (d *Desk) OpenCard(ctx context.Context, id models.ItemID) error {
	return d.Cards.Open(ctx, id)
}

// CloseCard closes the card-detail overlay.
func (d *Desk) CloseCard() {
	d.Cards.Close()
}

// HideList detaches the list while another screen is shown. Refreshes and
// list responses arriving meanwhile are dropped.
func (d *Desk) HideList() {
	d.Model.Detach()
}

// ShowList re-attaches the list and reloads it.
func (d *Desk) ShowList(ctx context.Context) error {
	d.Model.Attach()
	return d.Refresh(ctx)
}

// Groups returns the displayed set groups.
func (d *Desk) Groups() []view.Group {
	return d.Model.Groups()
}
