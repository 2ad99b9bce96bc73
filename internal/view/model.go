// Package view holds the client's in-memory projection of the batch list.
//
// The model stands in for the rendered page: it is the only place the client
// records which rows and set groups are displayed. It is never authoritative;
// every row is a copy of a server fragment. Callers that fetch something and
// then mutate the model must look the row up again at mutation time, since a
// concurrent reconciliation may have changed it while the fetch was in flight.
package view

import (
	"strings"
	"sync"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// UnknownSetCode is the group key used for items without a set code.
const UnknownSetCode = "unknown"

// Row is one displayed item.
type Row struct {
	ItemID  models.ItemID
	SetCode string
	Name    string // Card name when the fragment carries one
	Markup  string // Server fragment, opaque to the client
	Summary string // One-line text extracted from the fragment
}

// Label returns the card name, or the summary when the name is unknown.
func (r Row) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Summary
}

// Group is a set group and its member rows, in display order.
type Group struct {
	SetCode    string
	Title      string
	ReservedBy string
	Collapsed  bool
	Rows       []Row
}

// Key returns the preference key component for the group.
func (g Group) Key() string {
	return GroupKey(g.SetCode)
}

// GroupKey normalises a set code for lookups and preference keys.
func GroupKey(setCode string) string {
	code := strings.ToLower(strings.TrimSpace(setCode))
	if code == "" {
		return UnknownSetCode
	}
	return code
}

// Model is the mutable list view. Safe for concurrent use.
type Model struct {
	mu       sync.RWMutex
	groups   []*Group
	attached bool
	counts   string
	version  uint64
	changes  chan struct{}
}

// NewModel creates an empty, attached list view.
func NewModel() *Model {
	return &Model{
		attached: true,
		changes:  make(chan struct{}, 1),
	}
}

// Changes returns a channel that receives a value after mutations.
// Notifications are coalesced: one pending value covers any number of changes.
func (m *Model) Changes() <-chan struct{} {
	return m.changes
}

func (m *Model) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// changed must be called with mu held for writing.
func (m *Model) changed() {
	m.version++
}

// Version increases on every mutation.
func (m *Model) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Attached reports whether the list container is part of the page.
func (m *Model) Attached() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attached
}

// Detach removes the list container, e.g. while another batch is shown.
func (m *Model) Detach() {
	m.mu.Lock()
	m.attached = false
	m.changed()
	m.mu.Unlock()
	m.notify()
}

// Attach restores the list container.
func (m *Model) Attach() {
	m.mu.Lock()
	m.attached = true
	m.changed()
	m.mu.Unlock()
	m.notify()
}

// locate must be called with mu held.
func (m *Model) locate(id models.ItemID) (gi, ri int, ok bool) {
	for gi, g := range m.groups {
		for ri, r := range g.Rows {
			if r.ItemID == id {
				return gi, ri, true
			}
		}
	}
	return -1, -1, false
}

// Has reports whether a row for id is currently displayed.
func (m *Model) Has(id models.ItemID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, _, ok := m.locate(id)
	return ok
}

// Row returns the displayed row for id.
func (m *Model) Row(id models.ItemID) (Row, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gi, ri, ok := m.locate(id)
	if !ok {
		return Row{}, false
	}
	return m.groups[gi].Rows[ri], true
}

// ReplaceRow swaps the displayed row with the same id in place, keeping its
// siblings and position. It reports false, and changes nothing, when no such
// row is displayed.
func (m *Model) ReplaceRow(row Row) bool {
	m.mu.Lock()
	gi, ri, ok := m.locate(row.ItemID)
	if ok {
		m.groups[gi].Rows[ri] = row
		m.changed()
	}
	m.mu.Unlock()
	if ok {
		m.notify()
	}
	return ok
}

// RemoveRow drops the displayed row for id. Removing an absent row is a no-op.
func (m *Model) RemoveRow(id models.ItemID) bool {
	m.mu.Lock()
	gi, ri, ok := m.locate(id)
	if ok {
		rows := m.groups[gi].Rows
		m.groups[gi].Rows = append(rows[:ri:ri], rows[ri+1:]...)
		m.changed()
	}
	m.mu.Unlock()
	if ok {
		m.notify()
	}
	return ok
}

// PruneEmptyGroups removes every group with no member rows and returns how
// many were removed.
func (m *Model) PruneEmptyGroups() int {
	m.mu.Lock()
	kept := m.groups[:0]
	pruned := 0
	for _, g := range m.groups {
		if len(g.Rows) == 0 {
			pruned++
			continue
		}
		kept = append(kept, g)
	}
	for i := len(kept); i < len(m.groups); i++ {
		m.groups[i] = nil
	}
	m.groups = kept
	if pruned > 0 {
		m.changed()
	}
	m.mu.Unlock()
	if pruned > 0 {
		m.notify()
	}
	return pruned
}

// ReplaceAll swaps the whole list. Duplicate ids keep their first occurrence.
func (m *Model) ReplaceAll(groups []Group) {
	next := dedupe(groups)
	m.mu.Lock()
	m.groups = next
	m.changed()
	m.mu.Unlock()
	m.notify()
}

// ReplaceAllIfAttached swaps the whole list only while the container is
// attached, checking and replacing under one lock. It reports whether the
// list was replaced.
func (m *Model) ReplaceAllIfAttached(groups []Group) bool {
	next := dedupe(groups)
	m.mu.Lock()
	if !m.attached {
		m.mu.Unlock()
		return false
	}
	m.groups = next
	m.changed()
	m.mu.Unlock()
	m.notify()
	return true
}

func dedupe(groups []Group) []*Group {
	seen := make(map[models.ItemID]bool)
	next := make([]*Group, 0, len(groups))
	for _, g := range groups {
		cp := g
		cp.Rows = make([]Row, 0, len(g.Rows))
		for _, r := range g.Rows {
			if seen[r.ItemID] {
				continue
			}
			seen[r.ItemID] = true
			cp.Rows = append(cp.Rows, r)
		}
		next = append(next, &cp)
	}
	return next
}

// SetReservation replaces the reservation badge on every group matching
// setCode. An empty reservedBy clears the badge. Returns the number of
// groups touched.
func (m *Model) SetReservation(setCode, reservedBy string) int {
	key := GroupKey(setCode)
	reservedBy = strings.TrimSpace(reservedBy)

	m.mu.Lock()
	n := 0
	for _, g := range m.groups {
		if g.Key() != key {
			continue
		}
		g.ReservedBy = reservedBy
		n++
	}
	if n > 0 {
		m.changed()
	}
	m.mu.Unlock()
	if n > 0 {
		m.notify()
	}
	return n
}

// SetCollapsed sets the collapse flag of the matching groups.
func (m *Model) SetCollapsed(setCode string, collapsed bool) bool {
	key := GroupKey(setCode)

	m.mu.Lock()
	found := false
	for _, g := range m.groups {
		if g.Key() == key {
			g.Collapsed = collapsed
			found = true
		}
	}
	if found {
		m.changed()
	}
	m.mu.Unlock()
	if found {
		m.notify()
	}
	return found
}

// ApplyCollapse sets every group's collapse flag from collapsed(groupKey).
func (m *Model) ApplyCollapse(collapsed func(key string) bool) {
	m.mu.Lock()
	for _, g := range m.groups {
		g.Collapsed = collapsed(g.Key())
	}
	m.changed()
	m.mu.Unlock()
	m.notify()
}

// Collapsed reports the collapse flag of the first group matching setCode.
func (m *Model) Collapsed(setCode string) bool {
	key := GroupKey(setCode)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.groups {
		if g.Key() == key {
			return g.Collapsed
		}
	}
	return false
}

// Counts returns the last batch counts text.
func (m *Model) Counts() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts
}

// SetCounts stores the batch counts text.
func (m *Model) SetCounts(counts string) {
	m.mu.Lock()
	m.counts = counts
	m.changed()
	m.mu.Unlock()
	m.notify()
}

// Groups returns a deep copy of the displayed groups.
func (m *Model) Groups() []Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		cp := *g
		cp.Rows = append([]Row(nil), g.Rows...)
		out = append(out, cp)
	}
	return out
}

// ItemIDs returns the displayed ids in display order.
func (m *Model) ItemIDs() []models.ItemID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []models.ItemID
	for _, g := range m.groups {
		for _, r := range g.Rows {
			ids = append(ids, r.ItemID)
		}
	}
	return ids
}

// Len returns the number of displayed rows.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, g := range m.groups {
		n += len(g.Rows)
	}
	return n
}
