package realtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/picktest"
)

// delayRecorder replaces the reconnect wait and records requested delays.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return sleep(ctx, time.Millisecond)
}

func (r *delayRecorder) snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func socketURL(srv *picktest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/batch/" + srv.BatchID
}

type collector struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (c *collector) handle(msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *collector) at(i int) models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[i]
}

func TestConn_DeliversDecodedMessages(t *testing.T) {
	srv := picktest.New(t, "1")
	got := &collector{}
	conn := NewConn(Config{URL: socketURL(srv)}, got.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Start(ctx)

	require.Eventually(t, func() bool { return srv.Hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateOpen, conn.State())

	srv.Hub.BroadcastRaw([]byte("not json at all"))
	srv.Hub.BroadcastRaw([]byte(`{"type":"mystery"}`))
	srv.NotifyItem("5")
	srv.Hub.BroadcastRaw([]byte(`{"type":"item_update","item_id":6}` + "\n" + `{"type":"set_reserved","set_code":"woe","reserved_by":"ana"}`))

	require.Eventually(t, func() bool { return got.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, models.ItemID("5"), got.at(0).ItemUpdate.ItemID)
	assert.Equal(t, models.ItemID("6"), got.at(1).ItemUpdate.ItemID)
	assert.Equal(t, "ana", got.at(2).SetReserved.Holder())

	assert.Equal(t, 1, srv.Hub.Accepted(), "bad frames must not tear down the socket")
	assert.Equal(t, 1, conn.Generation())
}

func TestConn_ReconnectSequence(t *testing.T) {
	srv := picktest.New(t, "1")
	rec := &delayRecorder{}
	floor, ceiling := 10*time.Millisecond, 100*time.Millisecond
	conn := NewConn(Config{URL: socketURL(srv), Floor: floor, Ceiling: ceiling}, nil)
	conn.wait = rec.wait

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Start(ctx)

	require.Eventually(t, func() bool { return srv.Hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Server goes away: the open socket drops and the next dials fail.
	srv.Hub.Refuse(true)
	srv.Hub.DropAll()

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 3 }, 2*time.Second, time.Millisecond)
	delays := rec.snapshot()
	assert.Equal(t, []time.Duration{floor, 2 * floor, 4 * floor}, delays[:3])

	// Server comes back: one successful open resets the delay.
	srv.Hub.Refuse(false)
	require.Eventually(t, func() bool { return conn.Generation() == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, floor, conn.NextDelay())

	before := len(rec.snapshot())
	srv.Hub.DropAll()
	require.Eventually(t, func() bool { return len(rec.snapshot()) > before }, 2*time.Second, time.Millisecond)
	assert.Equal(t, floor, rec.snapshot()[before])
}

func TestConn_CancelStopsPendingReconnect(t *testing.T) {
	srv := picktest.New(t, "1")
	srv.Hub.Refuse(true)

	conn := NewConn(Config{URL: socketURL(srv), Floor: time.Hour, Ceiling: time.Hour}, nil)

	var states []State
	var mu sync.Mutex
	conn.config.OnState = func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	// The first dial fails and the loop parks on an hour-long reconnect timer.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2
	}, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateClosed, conn.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
}
