// Package metrics records how well the client keeps up with the batch server.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Latency summarises a histogram, in milliseconds.
type Latency struct {
	Count int
	Mean  float64
	P50   float64
	P95   float64
	Max   float64
}

// Sync collects request and realtime counters. Safe for concurrent use.
type Sync struct {
	Requests  *Histogram
	Refreshes *Histogram // every full list reload, whoever triggers it

	RequestCount  atomic.Uint64
	RequestErrors atomic.Uint64
	Messages      atomic.Uint64
	Reconciles    atomic.Uint64 // single-row re-syncs
	Connects      atomic.Uint64

	started time.Time
}

// NewSync creates an empty collector.
func NewSync() *Sync {
	return &Sync{
		Requests:  NewHistogram(0),
		Refreshes: NewHistogram(0),
		started:   time.Now(),
	}
}

// Stats is a point-in-time copy of a Sync collector.
type Stats struct {
	Requests      Latency
	Refreshes     Latency
	RequestCount  uint64
	RequestErrors uint64
	Messages      uint64
	Reconciles    uint64
	Reconnects    uint64 // Connects after the first
	Uptime        time.Duration
}

// Stats returns the current values.
func (s *Sync) Stats() Stats {
	st := Stats{
		Requests:      s.Requests.Summary(),
		Refreshes:     s.Refreshes.Summary(),
		RequestCount:  s.RequestCount.Load(),
		RequestErrors: s.RequestErrors.Load(),
		Messages:      s.Messages.Load(),
		Reconciles:    s.Reconciles.Load(),
		Uptime:        time.Since(s.started).Round(time.Second),
	}
	if c := s.Connects.Load(); c > 1 {
		st.Reconnects = c - 1
	}
	return st
}

// String renders a one-line summary.
func (st Stats) String() string {
	return fmt.Sprintf("requests %d (%d failed, p95 %.1fms) · refreshes %d (p95 %.1fms) · messages %d · reconciles %d · reconnects %d",
		st.RequestCount, st.RequestErrors, st.Requests.P95,
		st.Refreshes.Count, st.Refreshes.P95,
		st.Messages, st.Reconciles, st.Reconnects)
}

// Transport wraps an http.RoundTripper and records every round trip.
type Transport struct {
	Base    http.RoundTripper
	Metrics *Sync
}

// Instrument returns a copy of client whose transport records into m.
func Instrument(client *http.Client, m *Sync) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	out := *client
	out.Transport = &Transport{Base: client.Transport, Metrics: m}
	return &out
}

// RoundTrip implements http.RoundTripper. Transport failures and 5xx
// responses count as errors.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)
	t.Metrics.Requests.Since(start)
	t.Metrics.RequestCount.Add(1)
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		t.Metrics.RequestErrors.Add(1)
	}
	return resp, err
}
