package reconcile

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/pickapi"
	"github.com/ramonehamilton/pickdesk/internal/picktest"
	"github.com/ramonehamilton/pickdesk/internal/view"
)

func seedItems() []picktest.Item {
	return []picktest.Item{
		{Game: "Magic", Item: models.Item{ID: "1", CardName: "Alpha", SetCode: "woe", CollectorNumber: "10", Condition: "NM", Language: "EN", QtyRequired: 2}},
		{Game: "Magic", Item: models.Item{ID: "2", CardName: "Beta", SetCode: "woe", CollectorNumber: "11", Condition: "NM", Language: "EN", QtyRequired: 1}},
		{Game: "Magic", Item: models.Item{ID: "3", CardName: "Gamma", SetCode: "mom", CollectorNumber: "5", Condition: "LP", Language: "DE", QtyRequired: 1}},
	}
}

type fixture struct {
	srv        *picktest.Server
	client     *pickapi.Client
	model      *view.Model
	form       *filter.Form
	refresher  *Refresher
	reconciler *Reconciler
}

type collapsedKeys map[string]bool

func (c collapsedKeys) IsCollapsed(key string) bool { return c[key] }

func newFixture(t *testing.T, collapse CollapseState) *fixture {
	t.Helper()
	srv := picktest.New(t, "1", seedItems()...)
	cfg := pickapi.DefaultConfig(srv.URL, srv.BatchID)
	cfg.MaxRetries = 0
	cfg.RequestsPerSecond = 0
	client, err := pickapi.NewClient(cfg)
	require.NoError(t, err)

	f := &fixture{srv: srv, client: client, model: view.NewModel(), form: filter.NewForm(filter.Values{})}
	f.refresher = NewRefresher(Config{API: client, Model: f.model, Filter: f.form, Collapse: collapse, ListPath: client.ListPath()})
	f.reconciler = NewReconciler(client, f.model, f.form, f.refresher, nil)
	require.NoError(t, f.refresher.Refresh(context.Background()))
	return f
}

func groupCodes(m *view.Model) []string {
	var codes []string
	for _, g := range m.Groups() {
		codes = append(codes, g.SetCode)
	}
	return codes
}

func countID(m *view.Model, id models.ItemID) int {
	n := 0
	for _, got := range m.ItemIDs() {
		if got == id {
			n++
		}
	}
	return n
}

func TestRefresh_LoadsGroupsAndCollapse(t *testing.T) {
	f := newFixture(t, collapsedKeys{"mom": true})

	assert.Equal(t, []string{"mom", "woe"}, groupCodes(f.model))
	assert.Equal(t, []models.ItemID{"3", "1", "2"}, f.model.ItemIDs())
	assert.True(t, f.model.Collapsed("mom"))
	assert.False(t, f.model.Collapsed("woe"))
}

func TestRefresh_DetachedIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	before := len(f.srv.Requests(http.MethodGet, "/batch/1/items"))

	f.model.Detach()
	require.NoError(t, f.refresher.Refresh(context.Background()))

	assert.Len(t, f.srv.Requests(http.MethodGet, "/batch/1/items"), before)
}

func TestRefresh_UsesLiveFilter(t *testing.T) {
	f := newFixture(t, nil)

	f.form.Update(func(v *filter.Values) { v.Query = "gam" })
	require.NoError(t, f.refresher.Refresh(context.Background()))

	assert.Equal(t, []models.ItemID{"3"}, f.model.ItemIDs())
	assert.Equal(t, []string{"mom"}, groupCodes(f.model))
	reqs := f.srv.Requests(http.MethodGet, "/batch/1/items")
	assert.Equal(t, "gam", reqs[len(reqs)-1].Query.Get("q"))
}

func TestRefreshCounts(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.SetCounts("<span>Total 9</span>")

	require.NoError(t, f.refresher.RefreshCounts(context.Background()))
	assert.Equal(t, "Total 9", f.model.Counts())
}

func TestReconcile_ReplaceInPlace(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Update("1", func(it *picktest.Item) { it.QtyPicked = 1 })

	outcome, err := f.reconciler.Apply(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, Replaced, outcome)
	assert.Equal(t, []models.ItemID{"3", "1", "2"}, f.model.ItemIDs())
	row, ok := f.model.Row("1")
	require.True(t, ok)
	assert.Contains(t, row.Summary, "1/2")
}

// A removed item that was the last member of its group takes the group with it.
func TestReconcile_RemovedPrunesGroup(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Update("3", func(it *picktest.Item) { it.QtyPicked = 1 })

	outcome, err := f.reconciler.Apply(context.Background(), "3")
	require.NoError(t, err)

	assert.Equal(t, Removed, outcome)
	assert.False(t, f.model.Has("3"))
	assert.Equal(t, []string{"woe"}, groupCodes(f.model))
}

func TestReconcile_RemovedWhenAbsentIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Delete("9")

	outcome, err := f.reconciler.Apply(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, outcome)
	assert.Equal(t, 3, f.model.Len())
}

func TestReconcile_NewlyMatchingItemRefreshesList(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Add(picktest.Item{Game: "Magic", Item: models.Item{ID: "4", CardName: "Delta", SetCode: "neo", QtyRequired: 1}})

	outcome, err := f.reconciler.Apply(context.Background(), "4")
	require.NoError(t, err)

	assert.Equal(t, Refreshed, outcome)
	assert.Equal(t, []string{"mom", "neo", "woe"}, groupCodes(f.model))
	assert.Equal(t, 1, countID(f.model, "4"))
}

func TestReconcile_FetchErrorIsSwallowed(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Fail(http.MethodGet, "/items/1/row", http.StatusInternalServerError)

	_, err := f.reconciler.Apply(context.Background(), "1")
	assert.Error(t, err)

	f.srv.Fail(http.MethodGet, "/items/1/row", http.StatusInternalServerError)
	f.reconciler.Reconcile(context.Background(), "1")
	assert.Equal(t, 1, countID(f.model, "1"))
}

func TestReconcile_ConcurrentSameItem(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Update("1", func(it *picktest.Item) { it.QtyPicked = 1 })
	release := f.srv.Hold(http.MethodGet, "/items/1/row")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.reconciler.Reconcile(context.Background(), "1")
		}()
	}
	release()
	wg.Wait()

	assert.Equal(t, 1, countID(f.model, "1"))
}

// scriptedAPI answers row fetches from a fixed script, in call order.
type scriptedAPI struct {
	mu     sync.Mutex
	rows   []pickapi.RowResult
	list   string
	listed int
}

func (s *scriptedAPI) FetchRow(context.Context, models.ItemID, filter.Source) (pickapi.RowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return pickapi.RowResult{}, errors.New("no scripted row")
	}
	next := s.rows[0]
	s.rows = s.rows[1:]
	return next, nil
}

func (s *scriptedAPI) FetchList(context.Context, filter.Source) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listed++
	return s.list, nil
}

func (s *scriptedAPI) FetchCounts(context.Context) (string, error) {
	return "", nil
}

const (
	rowOne     = `<div class="item-row" id="item-1" data-set-code="woe">Alpha 1/2</div>`
	rowTwo     = `<div class="item-row" id="item-2" data-set-code="woe">Beta 1/1</div>`
	listOneTwo = `<div class="set-group" data-set-code="woe">` + rowOne + rowTwo + `</div>`
)

// Responses for two reconciliations of the same item may land in either
// order. Every order must leave at most one row for the item.
func TestReconcile_ResponseOrders(t *testing.T) {
	present := pickapi.RowResult{Status: pickapi.RowPresent, Markup: rowOne}
	removed := pickapi.RowResult{Status: pickapi.RowRemoved}

	tests := []struct {
		name    string
		replies []pickapi.RowResult
		want    int
	}{
		{"replace then replace", []pickapi.RowResult{present, present}, 1},
		{"remove then remove", []pickapi.RowResult{removed, removed}, 0},
		{"replace then remove", []pickapi.RowResult{present, removed}, 0},
		{"remove then stale replace", []pickapi.RowResult{removed, present}, 1},
		{"empty then replace", []pickapi.RowResult{{Status: pickapi.RowEmpty}, present}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &scriptedAPI{rows: tt.replies, list: listOneTwo}
			model := view.NewModel()
			refresher := NewRefresher(Config{API: api, Model: model})
			require.NoError(t, refresher.Refresh(context.Background()))
			rec := NewReconciler(api, model, filter.NewForm(filter.Values{}), refresher, nil)

			rec.Reconcile(context.Background(), "1")
			rec.Reconcile(context.Background(), "1")

			assert.Equal(t, tt.want, countID(model, "1"))
			for _, g := range model.Groups() {
				assert.NotEmpty(t, g.Rows)
			}
		})
	}
}

func TestRefresh_DetachedMidFlightReportsSwapFailure(t *testing.T) {
	model := view.NewModel()
	var paths []string
	api := &detachingAPI{model: model}
	refresher := NewRefresher(Config{
		API:      api,
		Model:    model,
		ListPath: "/batch/1/items",
		OnSwapFailure: func(_ context.Context, path string) {
			paths = append(paths, path)
		},
	})

	require.NoError(t, refresher.Refresh(context.Background()))
	assert.Equal(t, []string{"/batch/1/items"}, paths)
	assert.Equal(t, 0, model.Len())
}

// detachingAPI detaches the list while the list fetch is in flight.
type detachingAPI struct {
	scriptedAPI
	model *view.Model
}

func (d *detachingAPI) FetchList(context.Context, filter.Source) (string, error) {
	d.model.Detach()
	return listOneTwo, nil
}

func TestReconcile_EmptyRowLeavesModel(t *testing.T) {
	api := &scriptedAPI{rows: []pickapi.RowResult{{Status: pickapi.RowEmpty}}, list: listOneTwo}
	model := view.NewModel()
	refresher := NewRefresher(Config{API: api, Model: model})
	require.NoError(t, refresher.Refresh(context.Background()))
	before := model.Version()

	outcome, err := NewReconciler(api, model, filter.NewForm(filter.Values{}), refresher, nil).Apply(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, Unchanged, outcome)
	assert.Equal(t, 1, countID(model, "1"))
	assert.Equal(t, before, model.Version())
	assert.Equal(t, 1, api.listed, "no reload")
}
