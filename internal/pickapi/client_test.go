package pickapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/picktest"
)

func seedItems() []picktest.Item {
	return []picktest.Item{
		{Game: "Magic", Item: models.Item{ID: "1", CardName: "Alpha", SetCode: "woe", CollectorNumber: "10", Condition: "NM", Language: "EN", Printing: "nonfoil", QtyRequired: 2}},
		{Game: "Magic", Item: models.Item{ID: "2", CardName: "Beta", SetCode: "woe", CollectorNumber: "11", Condition: "LP", Language: "EN", Printing: "foil", QtyRequired: 1}},
		{Game: "Pokemon", Item: models.Item{ID: "3", CardName: "Zard", SetCode: "sv1", CollectorNumber: "4", Condition: "NM", Language: "JP", Printing: "holo", QtyRequired: 1}},
	}
}

func newTestClient(t *testing.T, srv *picktest.Server) *Client {
	t.Helper()
	cfg := DefaultConfig(srv.URL, srv.BatchID)
	cfg.MaxRetries = 0
	cfg.RequestsPerSecond = 0
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(DefaultConfig("http://localhost:8000", ""))
	assert.Error(t, err)

	_, err = NewClient(DefaultConfig("ftp://localhost", "1"))
	assert.Error(t, err)

	client, err := NewClient(DefaultConfig("http://localhost:8000/", "12"))
	require.NoError(t, err)
	assert.NotEmpty(t, client.SessionID())
	assert.Equal(t, "12", client.BatchID())
}

func TestClient_SocketURL(t *testing.T) {
	plain, err := NewClient(DefaultConfig("http://picker.local:8000", "7"))
	require.NoError(t, err)
	assert.Equal(t, "ws://picker.local:8000/ws/batch/7", plain.SocketURL())

	secure, err := NewClient(DefaultConfig("https://picker.example.com/app/", "7"))
	require.NoError(t, err)
	assert.Equal(t, "wss://picker.example.com/app/ws/batch/7", secure.SocketURL())
}

func TestClient_SocketHeaderBasicAuth(t *testing.T) {
	cfg := DefaultConfig("http://localhost", "1")
	cfg.Username = "op"
	cfg.Password = "secret"
	client, err := NewClient(cfg)
	require.NoError(t, err)

	h := client.SocketHeader()
	assert.True(t, strings.HasPrefix(h.Get("Authorization"), "Basic "))
	assert.Equal(t, client.SessionID(), h.Get(SessionHeader))
}

func TestClient_FetchRow(t *testing.T) {
	srv := picktest.New(t, "1", seedItems()...)
	client := newTestClient(t, srv)
	ctx := context.Background()
	form := filter.NewForm(filter.Values{})

	res, err := client.FetchRow(ctx, "1", form)
	require.NoError(t, err)
	assert.Equal(t, RowPresent, res.Status)
	assert.Contains(t, res.Markup, `id="item-1"`)

	srv.Update("1", func(it *picktest.Item) { it.QtyPicked = 2 })
	res, err = client.FetchRow(ctx, "1", form)
	require.NoError(t, err)
	assert.Equal(t, RowRemoved, res.Status, "fully picked rows are filtered out")

	form.Update(func(v *filter.Values) { v.ShowPicked = true })
	res, err = client.FetchRow(ctx, "1", form)
	require.NoError(t, err)
	assert.Equal(t, RowPresent, res.Status)

	reqs := srv.Requests(http.MethodGet, "/items/1/row")
	require.Len(t, reqs, 3)
	assert.Equal(t, "1", reqs[2].Query.Get("show_picked"))
}

func TestClient_FetchRowEmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := NewClient(DefaultConfig(ts.URL, "1"))
	require.NoError(t, err)

	res, err := client.FetchRow(context.Background(), "5", nil)
	require.NoError(t, err)
	assert.Equal(t, RowEmpty, res.Status)
}

func TestClient_RetriesGetOnServerError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<div>list</div>"))
	}))
	defer ts.Close()

	cfg := DefaultConfig(ts.URL, "1")
	cfg.MaxRetries = 2
	cfg.RetryBaseDelay = time.Millisecond
	client, err := NewClient(cfg)
	require.NoError(t, err)

	list, err := client.FetchList(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "<div>list</div>", list)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	cfg := DefaultConfig(ts.URL, "1")
	cfg.MaxRetries = 3
	cfg.RetryBaseDelay = time.Millisecond
	client, err := NewClient(cfg)
	require.NoError(t, err)

	err = client.PostUndo(context.Background(), "/items/1/undo", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_PickUndoAndMissing(t *testing.T) {
	srv := picktest.New(t, "1", seedItems()...)
	client := newTestClient(t, srv)
	ctx := context.Background()
	form := filter.NewForm(filter.Values{})

	row, err := client.Pick(ctx, "1", form)
	require.NoError(t, err)
	assert.Contains(t, row, "1/2")

	row, err = client.Pick(ctx, "1", form)
	require.NoError(t, err)
	assert.Empty(t, row, "last copy picked leaves the unpicked view")

	require.NoError(t, client.PostUndo(ctx, UndoPath("1"), form))
	it, _ := srv.Item("1")
	assert.Equal(t, 1, it.QtyPicked)

	_, err = client.MarkMissing(ctx, "2", "binder empty", form)
	require.NoError(t, err)
	it, _ = srv.Item("2")
	assert.True(t, it.Missing)
	assert.Equal(t, "binder empty", it.Note)

	_, err = client.UnmarkMissing(ctx, "2", form)
	require.NoError(t, err)
	it, _ = srv.Item("2")
	assert.False(t, it.Missing)

	_, err = client.Pick(ctx, "404", form)
	assert.True(t, IsNotFound(err))
}

func TestClient_ReserveSetToggles(t *testing.T) {
	srv := picktest.New(t, "1", seedItems()...)
	client := newTestClient(t, srv)
	ctx := context.Background()

	res, err := client.ReserveSet(ctx, "WOE", "ana")
	require.NoError(t, err)
	require.NotNil(t, res.ReservedBy)
	assert.Equal(t, "ana", *res.ReservedBy)

	res, err = client.ReserveSet(ctx, "woe", "ana")
	require.NoError(t, err)
	assert.Nil(t, res.ReservedBy)
}

func TestClient_AssistNextAndAct(t *testing.T) {
	srv := picktest.New(t, "1", seedItems()...)
	client := newTestClient(t, srv)
	ctx := context.Background()

	snap, err := client.AssistNext(ctx, models.ModeTopDown, nil)
	require.NoError(t, err)
	require.False(t, snap.Done)
	assert.Equal(t, models.ItemID("1"), snap.Item.ID)
	assert.Equal(t, 3, snap.RemainingCards)
	assert.Equal(t, 4, snap.RemainingCopies)

	snap, err = client.AssistNext(ctx, models.ModeBottomUp, []models.ItemID{"3"})
	require.NoError(t, err)
	assert.Equal(t, models.ItemID("2"), snap.Item.ID)
	reqs := srv.Requests(http.MethodGet, "/batch/1/assist/next")
	assert.Equal(t, "3", reqs[len(reqs)-1].Query.Get("exclude_item_ids"))

	snap, err = client.AssistAct(ctx, models.ActRequest{ItemID: "1", Action: models.ActionPickAll, Mode: models.ModeTopDown})
	require.NoError(t, err)
	assert.Equal(t, models.ItemID("2"), snap.Item.ID)

	acts := srv.Requests(http.MethodPost, "/batch/1/assist/act")
	require.Len(t, acts, 1)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(acts[0].Body), &body))
	assert.Equal(t, []any{}, body["exclude_item_ids"])
}

func TestClient_AssistActFailure(t *testing.T) {
	srv := picktest.New(t, "1", seedItems()...)
	client := newTestClient(t, srv)
	srv.Fail(http.MethodPost, "/batch/1/assist/act", http.StatusConflict)

	_, err := client.AssistAct(context.Background(), models.ActRequest{ItemID: "1", Action: models.ActionPicked, Mode: models.ModeTopDown})
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Code)
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	_, err := decodeSnapshot([]byte(`{"done":false}`))
	assert.Error(t, err)

	snap, err := decodeSnapshot([]byte(`{"done":true}`))
	require.NoError(t, err)
	assert.True(t, snap.Done)
}

func TestClient_CardModal(t *testing.T) {
	srv := picktest.New(t, "1", seedItems()...)
	client := newTestClient(t, srv)

	body, err := client.CardModal(context.Background(), "3")
	require.NoError(t, err)
	assert.Contains(t, body, "Zard")
	assert.Equal(t, "/card/modal?item_id=3", CardModalPath("3"))
}
