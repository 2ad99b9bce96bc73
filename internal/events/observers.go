package events

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// ItemReconciler re-synchronizes one displayed item.
type ItemReconciler interface {
	Reconcile(ctx context.Context, id models.ItemID)
}

// ItemObserver forwards item_update messages to the reconciler.
type ItemObserver struct {
	reconciler ItemReconciler
}

// NewItemObserver creates an observer for item_update messages.
func NewItemObserver(reconciler ItemReconciler) *ItemObserver {
	return &ItemObserver{reconciler: reconciler}
}

// OnMessage reconciles the carried item.
func (o *ItemObserver) OnMessage(ctx context.Context, msg models.Message) error {
	if msg.ItemUpdate == nil {
		return fmt.Errorf("item_update without payload")
	}
	o.reconciler.Reconcile(ctx, msg.ItemUpdate.ItemID)
	return nil
}

// GetName returns the observer's name.
func (o *ItemObserver) GetName() string {
	return "ItemObserver"
}

// ShouldHandle returns true for item_update.
func (o *ItemObserver) ShouldHandle(msgType string) bool {
	return msgType == models.MessageItemUpdate
}

// ReservationView is the part of the list view holding reservation badges.
type ReservationView interface {
	SetReservation(setCode, reservedBy string) int
}

// ReservationObserver projects set_reserved messages onto the set group badges.
// Each message fully replaces the badge, so it runs inline: the last message
// received for a set is the one shown.
type ReservationObserver struct {
	view ReservationView
}

// NewReservationObserver creates an observer for set_reserved messages.
func NewReservationObserver(view ReservationView) *ReservationObserver {
	return &ReservationObserver{view: view}
}

// OnMessage replaces the reservation badge of the matching groups.
func (o *ReservationObserver) OnMessage(_ context.Context, msg models.Message) error {
	if msg.SetReserved == nil {
		return fmt.Errorf("set_reserved without payload")
	}
	o.view.SetReservation(msg.SetReserved.SetCode, msg.SetReserved.Holder())
	return nil
}

// GetName returns the observer's name.
func (o *ReservationObserver) GetName() string {
	return "ReservationObserver"
}

// Inline reports true; a badge write must not be reordered.
func (o *ReservationObserver) Inline() bool {
	return true
}

// ShouldHandle returns true for set_reserved.
func (o *ReservationObserver) ShouldHandle(msgType string) bool {
	return msgType == models.MessageSetReserved
}
