package toast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/pickapi"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) PostUndo(_ context.Context, endpoint string, f filter.Source) error {
	r.add("undo " + filter.WithQuery(endpoint, f))
	return r.fail
}

func (r *recorder) RefreshCounts(context.Context) error {
	r.add("counts")
	return nil
}

func (r *recorder) Reconcile(_ context.Context, id models.ItemID) {
	r.add("reconcile " + id.String())
}

func (r *recorder) Refresh(context.Context) error {
	r.add("refresh")
	return nil
}

func newController(rec *recorder, tick time.Duration, f filter.Source) *Controller {
	return NewController(Config{Tick: tick, Undoer: rec, Syncer: rec, Filter: f})
}

func TestShow_Defaults(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, DefaultTicks, c.config.Ticks)
	assert.Equal(t, DefaultTick, c.config.Tick)
}

func TestUndo_Sequence(t *testing.T) {
	rec := &recorder{}
	form := filter.NewForm(filter.Values{Game: "Magic"})
	c := newController(rec, time.Hour, form)

	toast := c.Show("Picked Alpha", "/items/1/undo", "1")
	form.Update(func(v *filter.Values) { v.ShowPicked = true })
	require.NoError(t, toast.Undo(context.Background()))

	assert.Equal(t, []string{
		"undo /items/1/undo?game=Magic&q=&show_picked=1",
		"counts",
		"reconcile 1",
		"refresh",
	}, rec.Calls())
	assert.False(t, c.Current().Visible)
	assert.ErrorIs(t, toast.Undo(context.Background()), ErrUndone)
}

func TestUndo_WithoutRelatedItem(t *testing.T) {
	rec := &recorder{}
	c := newController(rec, time.Hour, filter.NewForm(filter.Values{}))

	require.NoError(t, c.Show("Done", "/items/2/undo", "").Undo(context.Background()))
	assert.Equal(t, []string{"undo /items/2/undo?game=&q=", "counts", "refresh"}, rec.Calls())
}

func TestShow_SupersedesPrevious(t *testing.T) {
	rec := &recorder{}
	c := newController(rec, time.Hour, filter.NewForm(filter.Values{}))

	first := c.Show("Picked A", "/items/1/undo", "1")
	second := c.Show("Picked B", "/items/2/undo", "2")

	assert.ErrorIs(t, first.Undo(context.Background()), ErrSuperseded)
	assert.Empty(t, rec.Calls())

	require.NoError(t, second.Undo(context.Background()))
	calls := rec.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "undo /items/2/undo?game=&q=", calls[0])
	for _, call := range calls {
		assert.NotContains(t, call, "/items/1/")
	}
}

func TestShow_SupersededCountdownStops(t *testing.T) {
	rec := &recorder{}
	c := NewController(Config{Ticks: 100, Tick: 5 * time.Millisecond, Undoer: rec, Syncer: rec})

	first := c.Show("A", "/items/1/undo", "1")
	require.Eventually(t, func() bool { return first.Remaining() < 100 }, time.Second, time.Millisecond)

	second := c.Show("B", "/items/2/undo", "2")
	frozen := first.Remaining()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, frozen, first.Remaining())
	assert.Less(t, second.Remaining(), 100)
	assert.Equal(t, "B", c.Current().Message)
}

func TestCountdown_ExpiresWithoutAction(t *testing.T) {
	rec := &recorder{}
	c := NewController(Config{Ticks: 3, Tick: 5 * time.Millisecond, Undoer: rec, Syncer: rec})

	toast := c.Show("Picked A", "/items/1/undo", "1")
	require.Eventually(t, func() bool { return !c.Current().Visible }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, toast.Remaining())
	assert.ErrorIs(t, toast.Undo(context.Background()), ErrExpired)
	assert.Empty(t, rec.Calls())
}

func TestUndo_FailureDismisses(t *testing.T) {
	rec := &recorder{fail: errors.New("boom")}
	c := newController(rec, time.Hour, filter.NewForm(filter.Values{}))

	err := c.Show("Picked A", "/items/1/undo", "1").Undo(context.Background())
	assert.Error(t, err)
	assert.False(t, c.Current().Visible)
	assert.Len(t, rec.Calls(), 1)
}

func TestUndo_StatusErrorStillResyncs(t *testing.T) {
	rec := &recorder{fail: fmt.Errorf("failed to undo: %w",
		&pickapi.StatusError{Method: "POST", Path: "/items/1/undo", Code: 500})}
	c := newController(rec, time.Hour, filter.NewForm(filter.Values{}))

	err := c.Show("Picked A", "/items/1/undo", "1").Undo(context.Background())
	require.Error(t, err)
	assert.Equal(t, 500, pickapi.StatusCode(err))
	assert.False(t, c.Current().Visible)
	assert.Equal(t, []string{"undo /items/1/undo?game=&q=", "counts", "reconcile 1", "refresh"}, rec.Calls())
}

func TestDismiss(t *testing.T) {
	rec := &recorder{}
	c := newController(rec, time.Hour, filter.NewForm(filter.Values{}))

	toast := c.Show("A", "/items/1/undo", "1")
	c.Dismiss()
	assert.False(t, c.Current().Visible)
	assert.ErrorIs(t, toast.Undo(context.Background()), ErrSuperseded)
}
