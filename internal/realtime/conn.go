// Package realtime keeps one push channel to the batch server open.
package realtime

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

// State is the connection lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives every decoded message.
type Handler func(msg models.Message)

// Config configures a Conn.
type Config struct {
	// URL is the batch socket endpoint, e.g. "ws://host/ws/batch/12".
	URL string

	// Header is sent with every handshake.
	Header http.Header

	// Floor and Ceiling bound the reconnect delay.
	Floor   time.Duration
	Ceiling time.Duration

	Dialer *websocket.Dialer
	Logger *slog.Logger

	// OnState is called on every state transition. Optional.
	OnState func(State)
}

// Conn is a self-healing socket. Every successful dial starts a fresh read
// loop; messages from the previous socket are never mixed into the new one.
type Conn struct {
	config  Config
	handler Handler
	backoff *Backoff
	logger  *slog.Logger
	wait    func(ctx context.Context, d time.Duration) error

	mu         sync.RWMutex
	state      State
	generation int
}

// NewConn creates a connection that delivers messages to handler.
func NewConn(config Config, handler Handler) *Conn {
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Conn{
		config:  config,
		handler: handler,
		backoff: NewBackoff(config.Floor, config.Ceiling),
		logger:  config.Logger,
		wait:    sleep,
		state:   StateClosed,
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Generation returns how many sockets have been opened so far.
func (c *Conn) Generation() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// NextDelay returns the delay the next reconnect would wait.
func (c *Conn) NextDelay() time.Duration {
	return c.backoff.Peek()
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	if s == StateOpen {
		c.generation++
	}
	c.mu.Unlock()

	if changed && c.config.OnState != nil {
		c.config.OnState(s)
	}
}

// Start runs the connection loop in a goroutine until ctx is cancelled.
func (c *Conn) Start(ctx context.Context) {
	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("Realtime loop stopped", "error", err)
		}
	}()
}

// Run dials, reads and reconnects until ctx is cancelled. Cancelling ctx also
// cancels a pending reconnect wait. Run always returns ctx.Err().
func (c *Conn) Run(ctx context.Context) error {
	defer c.setState(StateClosed)

	for {
		c.setState(StateConnecting)
		ws, _, err := c.config.Dialer.DialContext(ctx, c.config.URL, c.config.Header)
		if err == nil {
			c.backoff.Reset()
			c.setState(StateOpen)
			c.logger.Info("Realtime connected", "url", c.config.URL, "generation", c.Generation())
			err = c.read(ctx, ws)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.setState(StateClosed)

		delay := c.backoff.Next()
		c.logger.Warn("Realtime disconnected, reconnecting", "delay", delay, "error", err)
		if err := c.wait(ctx, delay); err != nil {
			return err
		}
	}
}

// read consumes frames until the socket closes or ctx is cancelled.
func (c *Conn) read(ctx context.Context, ws *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		c.deliver(data)
	}
}

// deliver decodes a frame and hands each message to the handler. A frame may
// carry several newline separated messages. Bad messages are dropped.
func (c *Conn) deliver(data []byte) {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		msg, err := models.DecodeMessage(line)
		if err != nil {
			c.logger.Debug("Dropping realtime message", "error", err)
			continue
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
