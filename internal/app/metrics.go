package app

import (
	"context"

	"github.com/ramonehamilton/pickdesk/internal/metrics"
	"github.com/ramonehamilton/pickdesk/internal/models"
)

// messageCounter counts routed realtime messages.
type messageCounter struct {
	m *metrics.Sync
}

func (c messageCounter) OnMessage(context.Context, models.Message) error {
	c.m.Messages.Add(1)
	return nil
}

func (messageCounter) Inline() bool { return true }

func (messageCounter) GetName() string { return "metrics" }

func (messageCounter) ShouldHandle(msgType string) bool {
	return msgType == models.MessageItemUpdate || msgType == models.MessageSetReserved
}

// Stats returns the sync counters.
func (d *Desk) Stats() metrics.Stats {
	return d.Metrics.Stats()
}
