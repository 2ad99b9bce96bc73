package view

import (
	"sync"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// Overlay is the card-detail container shown over the list.
type Overlay struct {
	mu       sync.RWMutex
	attached bool
	itemID   models.ItemID
	content  string
}

// NewOverlay creates a detached, empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// Ensure attaches the container if needed and returns it.
func (o *Overlay) Ensure() *Overlay {
	o.mu.Lock()
	o.attached = true
	o.mu.Unlock()
	return o
}

// Clear attaches the container and empties it.
func (o *Overlay) Clear() {
	o.mu.Lock()
	o.attached = true
	o.itemID = ""
	o.content = ""
	o.mu.Unlock()
}

// Close detaches the container. A response arriving afterwards has nowhere to go.
func (o *Overlay) Close() {
	o.mu.Lock()
	o.attached = false
	o.itemID = ""
	o.content = ""
	o.mu.Unlock()
}

// Swap fills the container. It reports false, and changes nothing, when the
// container is detached.
func (o *Overlay) Swap(id models.ItemID, content string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.attached {
		return false
	}
	o.itemID = id
	o.content = content
	return true
}

// Attached reports whether the container is part of the page.
func (o *Overlay) Attached() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.attached
}

// Content returns the displayed item and fragment.
func (o *Overlay) Content() (models.ItemID, string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.itemID, o.content
}
