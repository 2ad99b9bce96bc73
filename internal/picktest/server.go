// Package picktest provides an in-process picking batch server for tests.
//
// The server implements every endpoint the client uses over a chi router,
// renders rows and lists as small HTML fragments, runs the assisted picking
// protocol, and broadcasts realtime messages through a websocket hub. Tests
// can inject failures, hold responses to stage races, and inspect the
// requests the client made.
package picktest

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// Item is the server-side state of one batch item.
type Item struct {
	models.Item
	Game      string
	QtyPicked int
	Missing   bool
	Note      string
}

func (i *Item) remaining() int {
	if r := i.QtyRequired - i.QtyPicked; r > 0 {
		return r
	}
	return 0
}

// Request is a recorded client request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Body   string
}

// Server is a fake batch server.
type Server struct {
	*httptest.Server

	BatchID string
	Hub     *Hub

	mu           sync.Mutex
	items        []*Item
	reservations map[string]string
	requests     []Request
	failures     map[string][]int
	holds        map[string]chan struct{}
	counts       string
}

// New starts a server for batchID seeded with items. It is closed when the test ends.
func New(t testing.TB, batchID string, items ...Item) *Server {
	t.Helper()

	s := &Server{
		BatchID:      batchID,
		Hub:          NewHub(slog.Default()),
		reservations: make(map[string]string),
		failures:     make(map[string][]int),
		holds:        make(map[string]chan struct{}),
	}
	for i := range items {
		it := items[i]
		s.items = append(s.items, &it)
	}

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(func() {
		s.ReleaseAll()
		s.Hub.Stop()
		s.Server.Close()
	})
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/ws/batch/{batchID}", s.Hub.ServeWs)

	r.Route("/batch/{batchID}", func(r chi.Router) {
		r.Get("/items", s.handleList)
		r.Get("/counts", s.handleCounts)
		r.Post("/reserve-set", s.handleReserve)
		r.Get("/assist/next", s.handleAssistNext)
		r.Post("/assist/act", s.handleAssistAct)
	})

	r.Route("/items/{itemID}", func(r chi.Router) {
		r.Get("/row", s.handleRow)
		r.Post("/pick", s.handlePick)
		r.Post("/undo", s.handleUndo)
		r.Post("/missing", s.handleMissing)
		r.Post("/unmissing", s.handleUnmissing)
	})

	r.Get("/card/modal", s.handleCardModal)
	return r
}

// record logs the request, applies injected failures and holds.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
		if r.Method == http.MethodPost {
			if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
				if err := r.ParseForm(); err == nil {
					rec.Form = r.PostForm
				}
			} else if r.Body != nil {
				data, _ := io.ReadAll(r.Body)
				rec.Body = string(data)
				r.Body = io.NopCloser(bytes.NewReader(data))
			}
		}

		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests = append(s.requests, rec)
		hold := s.holds[key]
		status := 0
		if queue := s.failures[key]; len(queue) > 0 {
			status = queue[0]
			s.failures[key] = queue[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			<-hold
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail makes the next request to "METHOD /path" answer with status.
// Calling it several times queues several failures.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], status)
}

// Hold blocks requests to "METHOD /path" until the returned release func runs.
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	key := method + " " + path
	s.mu.Lock()
	s.holds[key] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[key] == ch {
				delete(s.holds, key)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// ReleaseAll releases every held request.
func (s *Server) ReleaseAll() {
	s.mu.Lock()
	holds := s.holds
	s.holds = make(map[string]chan struct{})
	s.mu.Unlock()
	for _, ch := range holds {
		close(ch)
	}
}

// Requests returns the recorded requests whose path has the given prefix.
func (s *Server) Requests(method, pathPrefix string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if (method == "" || r.Method == method) && strings.HasPrefix(r.Path, pathPrefix) {
			out = append(out, r)
		}
	}
	return out
}

// Update mutates an item under the server lock. It reports false for unknown ids.
func (s *Server) Update(id models.ItemID, fn func(*Item)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.find(id)
	if it == nil {
		return false
	}
	fn(it)
	return true
}

// Add inserts a new item.
func (s *Server) Add(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, &item)
}

// Delete removes an item.
func (s *Server) Delete(id models.ItemID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Item returns a copy of an item's server state.
func (s *Server) Item(id models.ItemID) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.find(id)
	if it == nil {
		return Item{}, false
	}
	return *it, true
}

// SetCounts overrides the counts fragment.
func (s *Server) SetCounts(counts string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = counts
}

// NotifyItem broadcasts an item_update for id.
func (s *Server) NotifyItem(id models.ItemID) int {
	return s.Hub.Broadcast(map[string]any{"type": models.MessageItemUpdate, "item_id": id})
}

// find must be called with mu held.
func (s *Server) find(id models.ItemID) *Item {
	for _, it := range s.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// view is the decoded filter form.
type view struct {
	game        string
	q           string
	showPicked  bool
	showMissing bool
	showAll     bool
}

func viewFrom(q url.Values) view {
	return view{
		game:        q.Get("game"),
		q:           strings.ToLower(q.Get("q")),
		showPicked:  q.Get("show_picked") == "1",
		showMissing: q.Get("show_missing") == "1",
		showAll:     q.Get("show_all") == "1",
	}
}

// rowVisible mirrors the per-row filter of the item row endpoint.
func (v view) rowVisible(it *Item) bool {
	if v.showAll {
		return true
	}
	if !v.showPicked && it.remaining() == 0 {
		return false
	}
	if v.showMissing && !it.Missing {
		return false
	}
	return true
}

// listed mirrors the list endpoint, which also applies game and name search.
func (v view) listed(it *Item) bool {
	if v.game != "" && it.Game != v.game {
		return false
	}
	if v.q != "" && !strings.Contains(strings.ToLower(it.CardName), v.q) {
		return false
	}
	return v.rowVisible(it)
}

// sorted returns items ordered by game (Magic first), set code (blank last), name.
// Must be called with mu held.
func (s *Server) sorted() []*Item {
	out := append([]*Item(nil), s.items...)
	gameRank := func(g string) int {
		switch {
		case g == "":
			return 2
		case strings.HasPrefix(strings.ToLower(g), "magic"):
			return 0
		default:
			return 1
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ga, gb := gameRank(a.Game), gameRank(b.Game); ga != gb {
			return ga < gb
		}
		if a.Game != b.Game {
			return a.Game < b.Game
		}
		ea, eb := strings.TrimSpace(a.SetCode) == "", strings.TrimSpace(b.SetCode) == ""
		if ea != eb {
			return !ea
		}
		if a.SetCode != b.SetCode {
			return a.SetCode < b.SetCode
		}
		return a.CardName < b.CardName
	})
	return out
}

func renderRow(it *Item) string {
	snap := it.Item
	snap.QtyRemaining = it.remaining()
	missing := ""
	if it.Missing {
		missing = " MISSING"
	}
	return fmt.Sprintf(`<div class="item-row" id="item-%s" data-set-code="%s" data-name="%s">%s [%s #%s] %s %s %s%s</div>`,
		html.EscapeString(snap.ID.String()),
		html.EscapeString(snap.SetCode),
		html.EscapeString(snap.CardName),
		html.EscapeString(snap.CardName),
		html.EscapeString(snap.SetCode),
		html.EscapeString(snap.CollectorNumber),
		html.EscapeString(snap.Printing),
		html.EscapeString(snap.ConditionLanguage()),
		snap.Quantity(),
		missing,
	)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
