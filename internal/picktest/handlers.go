package picktest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r.URL.Query())

	s.mu.Lock()
	var b strings.Builder
	var current *string
	for _, it := range s.sorted() {
		if !v.listed(it) {
			continue
		}
		code := it.SetCode
		if current == nil || *current != code {
			if current != nil {
				b.WriteString("</div>\n")
			}
			c := code
			current = &c
			fmt.Fprintf(&b, `<div class="set-group" data-set-code="%s"><div class="set-header"><span class="set-title">%s</span><div class="set-actions">`,
				html.EscapeString(code), html.EscapeString(strings.ToUpper(code)))
			if by := s.reservations[strings.ToLower(code)]; by != "" {
				fmt.Fprintf(&b, `<span class="reserve-badge">Reserved by %s</span>`, html.EscapeString(by))
			}
			b.WriteString("</div></div>\n")
		}
		b.WriteString(renderRow(it))
		b.WriteString("\n")
	}
	if current != nil {
		b.WriteString("</div>\n")
	}
	s.mu.Unlock()

	writeHTML(w, http.StatusOK, b.String())
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	counts := s.counts
	if counts == "" {
		total, remaining, missing := len(s.items), 0, 0
		for _, it := range s.items {
			if it.remaining() > 0 {
				remaining++
			}
			if it.Missing {
				missing++
			}
		}
		counts = fmt.Sprintf(`<span>Total %d</span> <span>Remaining %d</span> <span>Missing %d</span>`, total, remaining, missing)
	}
	s.mu.Unlock()
	writeHTML(w, http.StatusOK, counts)
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	id := models.ItemID(chi.URLParam(r, "itemID"))
	v := viewFrom(r.URL.Query())

	s.mu.Lock()
	it := s.find(id)
	visible := it != nil && v.rowVisible(it)
	body := ""
	if visible {
		body = renderRow(it)
	}
	s.mu.Unlock()

	if !visible {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// mutate applies fn to an item, broadcasts item_update and answers with the
// row as the current filter sees it (empty when filtered out).
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*Item)) {
	id := models.ItemID(chi.URLParam(r, "itemID"))
	v := viewFrom(r.URL.Query())

	s.mu.Lock()
	it := s.find(id)
	if it == nil {
		s.mu.Unlock()
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	fn(it)
	body := ""
	if v.rowVisible(it) {
		body = renderRow(it)
	}
	s.mu.Unlock()

	s.NotifyItem(id)
	w.Header().Set("HX-Trigger", "batch-counts-changed")
	writeHTML(w, http.StatusOK, body)
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(it *Item) {
		if it.remaining() > 0 {
			it.QtyPicked++
		}
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(it *Item) {
		if it.QtyPicked > 0 {
			it.QtyPicked--
		}
	})
}

func (s *Server) handleMissing(w http.ResponseWriter, r *http.Request) {
	note := r.PostFormValue("note")
	s.mutate(w, r, func(it *Item) {
		it.Missing = true
		it.Note = note
	})
}

func (s *Server) handleUnmissing(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(it *Item) {
		it.Missing = false
		it.Note = ""
	})
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(strings.TrimSpace(r.PostFormValue("set_code")))
	by := strings.TrimSpace(r.PostFormValue("reserved_by"))
	if by == "" {
		by = "anonymous"
	}

	s.mu.Lock()
	var holder *string
	if s.reservations[code] == by {
		delete(s.reservations, code)
	} else {
		s.reservations[code] = by
		holder = &by
	}
	s.mu.Unlock()

	s.Hub.Broadcast(map[string]any{"type": models.MessageSetReserved, "set_code": code, "reserved_by": holder})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "reserved_by": holder})
}

func (s *Server) handleCardModal(w http.ResponseWriter, r *http.Request) {
	id := models.ItemID(r.URL.Query().Get("item_id"))

	s.mu.Lock()
	it := s.find(id)
	var body string
	if it != nil {
		body = fmt.Sprintf(`<div class="card-modal" data-item-id="%s"><h2>%s</h2><p>%s #%s</p></div>`,
			html.EscapeString(id.String()), html.EscapeString(it.CardName),
			html.EscapeString(it.SetCode), html.EscapeString(it.CollectorNumber))
	}
	s.mu.Unlock()

	if it == nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// next picks the next assisted item: remaining, not missing, not excluded.
// Must be called with mu held.
func (s *Server) next(mode models.Mode, exclude map[models.ItemID]bool) models.Snapshot {
	var pool []*Item
	copies := 0
	for _, it := range s.sorted() {
		if it.remaining() == 0 || it.Missing || exclude[it.ID] {
			continue
		}
		pool = append(pool, it)
		copies += it.remaining()
	}
	if len(pool) == 0 {
		return models.Snapshot{Done: true}
	}

	var pick *Item
	switch mode {
	case models.ModeBottomUp:
		pick = pool[len(pool)-1]
	case models.ModeMiddleOut:
		pick = pool[len(pool)/2]
	default:
		pick = pool[0]
	}
	item := pick.Item
	item.QtyRemaining = pick.remaining()
	return models.Snapshot{
		Item:            &item,
		RemainingCards:  len(pool),
		RemainingCopies: copies,
		Mode:            mode,
	}
}

func exclusionSet(ids []models.ItemID) map[models.ItemID]bool {
	set := make(map[models.ItemID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *Server) handleAssistNext(w http.ResponseWriter, r *http.Request) {
	mode, err := models.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var exclude []models.ItemID
	for _, part := range strings.Split(r.URL.Query().Get("exclude_item_ids"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			exclude = append(exclude, models.ItemID(part))
		}
	}

	s.mu.Lock()
	snap := s.next(mode, exclusionSet(exclude))
	s.mu.Unlock()

	writeJSON(w, snap)
}

func (s *Server) handleAssistAct(w http.ResponseWriter, r *http.Request) {
	var req models.ActRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	it := s.find(req.ItemID)
	if it == nil {
		s.mu.Unlock()
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	switch req.Action {
	case models.ActionPicked:
		if it.remaining() > 0 {
			it.QtyPicked++
		}
	case models.ActionPickAll:
		it.QtyPicked = it.QtyRequired
	case models.ActionMissing:
		it.Missing = true
	case models.ActionSkip:
	default:
		s.mu.Unlock()
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	snap := s.next(req.Mode, exclusionSet(req.ExcludeItemIDs))
	s.mu.Unlock()

	if req.Action != models.ActionSkip {
		s.NotifyItem(req.ItemID)
	}
	writeJSON(w, snap)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
