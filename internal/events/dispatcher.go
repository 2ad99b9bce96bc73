// Package events routes decoded realtime messages to the components that
// consume them.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// Observer defines the interface for components notified of realtime messages.
type Observer interface {
	// OnMessage is called when a message is routed.
	// Returns an error if the observer fails to handle the message.
	OnMessage(ctx context.Context, msg models.Message) error

	// GetName returns a human-readable name for this observer (for logging/debugging).
	GetName() string

	// ShouldHandle returns true if this observer should handle the given message type.
	ShouldHandle(msgType string) bool
}

// InlineObserver is an observer whose handling is a cheap in-memory write.
// The router runs it on the delivering goroutine, so it sees messages in
// socket order.
type InlineObserver interface {
	Observer
	Inline() bool
}

func inline(obs Observer) bool {
	io, ok := obs.(InlineObserver)
	return ok && io.Inline()
}

// Router implements the Observer pattern for realtime messages.
// Thread-safe for concurrent use.
type Router struct {
	observers []Observer
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		observers: make([]Observer, 0),
		logger:    logger,
	}
}

// Register adds an observer to the router.
func (r *Router) Register(observer Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = append(r.observers, observer)
	r.logger.Debug("Registered observer", "observer", observer.GetName())
}

// Unregister removes an observer from the router.
func (r *Router) Unregister(observer Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, obs := range r.observers {
		if obs == observer {
			r.observers[i] = r.observers[len(r.observers)-1]
			r.observers = r.observers[:len(r.observers)-1]
			r.logger.Debug("Unregistered observer", "observer", observer.GetName())
			return
		}
	}
}

func (r *Router) matching(msgType string) []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Observer
	for _, obs := range r.observers {
		if obs.ShouldHandle(msgType) {
			out = append(out, obs)
		}
	}
	return out
}

// Route delivers msg to every interested observer, sequentially, in
// registration order. Messages nobody handles are dropped. Observer errors
// are logged and never stop delivery.
func (r *Router) Route(ctx context.Context, msg models.Message) {
	observers := r.matching(msg.Type)
	if len(observers) == 0 {
		r.logger.Debug("Ignoring realtime message", "type", msg.Type)
		return
	}
	for _, obs := range observers {
		r.deliver(ctx, obs, msg)
	}
}

// RouteAsync delivers msg to each interested observer. Inline observers run
// before RouteAsync returns; every other observer gets its own goroutine so
// a slow fetch never blocks the socket read loop.
func (r *Router) RouteAsync(ctx context.Context, msg models.Message) {
	for _, obs := range r.matching(msg.Type) {
		if inline(obs) {
			r.deliver(ctx, obs, msg)
			continue
		}
		go r.deliver(ctx, obs, msg)
	}
}

func (r *Router) deliver(ctx context.Context, obs Observer, msg models.Message) {
	if err := obs.OnMessage(ctx, msg); err != nil {
		r.logger.Warn("Observer failed to handle message",
			"observer", obs.GetName(), "type", msg.Type, "error", err)
	}
}

// Handler adapts the router to a socket message callback bound to ctx.
func (r *Router) Handler(ctx context.Context) func(models.Message) {
	return func(msg models.Message) {
		r.RouteAsync(ctx, msg)
	}
}

// ObserverCount returns the number of registered observers.
func (r *Router) ObserverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}
