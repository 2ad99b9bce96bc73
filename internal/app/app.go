package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ramonehamilton/pickdesk/internal/assist"
	"github.com/ramonehamilton/pickdesk/internal/config"
	"github.com/ramonehamilton/pickdesk/internal/events"
	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/metrics"
	"github.com/ramonehamilton/pickdesk/internal/pickapi"
	"github.com/ramonehamilton/pickdesk/internal/prefs"
	"github.com/ramonehamilton/pickdesk/internal/realtime"
	"github.com/ramonehamilton/pickdesk/internal/reconcile"
	"github.com/ramonehamilton/pickdesk/internal/recovery"
	"github.com/ramonehamilton/pickdesk/internal/toast"
	"github.com/ramonehamilton/pickdesk/internal/view"
)

// Options configure a Desk.
type Options struct {
	Config *config.Config

	// ConfigPath is watched for changes when non-empty.
	ConfigPath string

	// Prefs is used instead of opening the configured database when set.
	Prefs *prefs.Store

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Desk is a running picking client for one batch.
type Desk struct {
	Client     *pickapi.Client
	Model      *view.Model
	Filter     *filter.Form
	Router     *events.Router
	Refresher  *reconcile.Refresher
	Reconciler *reconcile.Reconciler
	Toasts     *toast.Controller
	Assist     *assist.Session
	Cards      *recovery.Overlay
	Overlay    *view.Overlay
	Prefs      *prefs.Store
	Metrics    *metrics.Sync

	config     *config.Config
	configPath string
	ownsPrefs  bool
	logger     *slog.Logger

	mu       sync.RWMutex
	conn     *realtime.Conn
	connSt   realtime.State
	operator string
	stateCh  chan struct{}
	wg       sync.WaitGroup
}

// New builds a Desk from configuration. Nothing touches the network until Start.
func New(opts Options) (*Desk, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stats := metrics.NewSync()

	clientCfg := pickapi.DefaultConfig(cfg.Server.BaseURL, cfg.Server.BatchID)
	clientCfg.Username = cfg.Server.Username
	clientCfg.Password = cfg.Server.Password
	clientCfg.MaxRetries = cfg.Server.MaxRetries
	clientCfg.RequestsPerSecond = cfg.Server.RateLimit
	clientCfg.HTTPClient = metrics.Instrument(opts.HTTPClient, stats)
	clientCfg.Logger = logger.With("component", "pickapi")
	client, err := pickapi.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("init batch client: %w", err)
	}

	store := opts.Prefs
	ownsPrefs := false
	if store == nil {
		path, err := cfg.PrefsPath()
		if err != nil {
			return nil, err
		}
		prefsCfg := prefs.DefaultConfig(path)
		prefsCfg.Logger = logger.With("component", "prefs")
		if store, err = prefs.Open(prefsCfg); err != nil {
			return nil, fmt.Errorf("open preferences: %w", err)
		}
		ownsPrefs = true
	}

	operator, err := store.OperatorName(context.Background())
	if err != nil {
		logger.Warn("Failed to read operator name", "error", err)
	}

	d := &Desk{
		Client:     client,
		Model:      view.NewModel(),
		Filter:     filter.NewForm(cfg.Filters),
		Overlay:    view.NewOverlay(),
		Prefs:      store,
		Metrics:    stats,
		config:     cfg,
		configPath: opts.ConfigPath,
		ownsPrefs:  ownsPrefs,
		logger:     logger,
		connSt:     realtime.StateClosed,
		operator:   operator,
		stateCh:    make(chan struct{}, 1),
	}

	d.Refresher = reconcile.NewRefresher(reconcile.Config{
		API:      client,
		Model:    d.Model,
		Filter:   d.Filter,
		Collapse: store,
		ListPath: client.ListPath(),
		OnSwapFailure: func(ctx context.Context, path string) {
			d.Cards.HandleListFailure(ctx, path)
		},
		Logger: logger.With("component", "refresh"),
	})
	d.Reconciler = reconcile.NewReconciler(client, d.Model, d.Filter, d, logger.With("component", "reconcile"))
	d.Cards = recovery.NewOverlay(client, d.Overlay, d, pickapi.CardModalPath, logger.With("component", "recovery"))

	tick, _ := cfg.ToastTick()
	d.Toasts = toast.NewController(toast.Config{
		Ticks:  cfg.Toast.Ticks,
		Tick:   tick,
		Undoer: client,
		Filter: d.Filter,
		Syncer: d,
		Logger: logger.With("component", "toast"),
	})
	d.Assist = assist.NewSession(client, logger.With("component", "assist"))

	d.Router = events.NewRouter(logger.With("component", "events"))
	d.Router.Register(events.NewItemObserver(d))
	d.Router.Register(events.NewReservationObserver(d.Model))
	d.Router.Register(messageCounter{stats})

	return d, nil
}

// Start loads the list and counts, then runs the realtime socket and the
// config watcher until ctx is cancelled.
func (d *Desk) Start(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("Initial list load failed", "error", err)
	}
	if err := d.RefreshCounts(ctx); err != nil {
		d.logger.Warn("Initial counts load failed", "error", err)
	}

	floor, _ := d.config.BackoffFloor()
	ceiling, _ := d.config.BackoffCeiling()
	conn := realtime.NewConn(realtime.Config{
		URL:     d.Client.SocketURL(),
		Header:  d.Client.SocketHeader(),
		Floor:   floor,
		Ceiling: ceiling,
		Logger:  d.logger.With("component", "realtime"),
		OnState: d.setConnState,
	}, d.Router.Handler(ctx))

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("Realtime loop stopped", "error", err)
		}
	}()

	if d.configPath != "" {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := config.Watch(ctx, d.configPath, func(c *config.Config) { d.ApplyConfig(ctx, c) }, d.logger); err != nil {
				d.logger.Warn("Config watch stopped", "error", err)
			}
		}()
	}
}

// Close waits for background loops to exit and closes owned resources.
// Cancel the context passed to Start first.
func (d *Desk) Close() error {
	d.wg.Wait()
	d.Toasts.Dismiss()
	if d.ownsPrefs {
		return d.Prefs.Close()
	}
	return nil
}

func (d *Desk) setConnState(s realtime.State) {
	d.mu.Lock()
	d.connSt = s
	d.mu.Unlock()
	if s == realtime.StateOpen {
		d.Metrics.Connects.Add(1)
	}
	select {
	case d.stateCh <- struct{}{}:
	default:
	}
	d.logger.Debug("Realtime state", "state", s)
}

// ConnState returns the socket state.
func (d *Desk) ConnState() realtime.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connSt
}

// ConnChanges receives a value after socket state transitions.
func (d *Desk) ConnChanges() <-chan struct{} {
	return d.stateCh
}

// NextReconnect returns the delay before the next reconnect attempt.
func (d *Desk) NextReconnect() time.Duration {
	d.mu.RLock()
	conn := d.conn
	d.mu.RUnlock()
	if conn == nil {
		return 0
	}
	return conn.NextDelay()
}

// ApplyConfig applies a reloaded config file: the filter section replaces
// the live filter and the list is refreshed.
func (d *Desk) ApplyConfig(ctx context.Context, c *config.Config) {
	if c.Filters == d.Filter.Values() {
		return
	}
	d.Filter.Set(c.Filters)
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("Refresh after config change failed", "error", err)
	}
}

// Refresh reloads the full list.
func (d *Desk) Refresh(ctx context.Context) error {
	defer d.Metrics.Refreshes.Since(time.Now())
	return d.Refresher.Refresh(ctx)
}

// RefreshCounts reloads the batch counts.
func (d *Desk) RefreshCounts(ctx context.Context) error {
	return d.Refresher.RefreshCounts(ctx)
}
