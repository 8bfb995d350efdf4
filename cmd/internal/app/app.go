// Package app wires the linechat process: config, logging, the chat listener, the session ledger
// and the optional ops HTTP listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"linechat/cmd/internal/audit"
	"linechat/cmd/internal/chat"
	"linechat/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns the chat server and everything around it.
type App struct {
	cfg Config
	log Logger

	chat   *chat.Server
	ledger *audit.Recorder
	store  audit.Store
	dbPool *pgxpool.Pool

	registry *prometheus.Registry
	ws       *realtime.WSGateway

	// test hook, called once both listeners are bound
	onListen func(chatAddr, httpAddr net.Addr)
}

// New constructs a fully wired App from config and logger.
// With LINECHAT_DATABASE_URL set the ledger lives in PostgreSQL, otherwise in memory.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, pool, err := newLedgerStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	ledger := audit.NewRecorder(log, store, 0)

	srv, err := chat.NewServer(
		chat.WithLogger(log),
		chat.WithMetrics(chat.NewMetrics(reg)),
		chat.WithObserver(ledger),
		chat.WithWriteTimeout(cfg.WriteTimeout),
		chat.WithMaxLineBytes(cfg.MaxLineBytes),
		chat.WithOutboxLimit(cfg.OutboxLimit),
	)
	if err != nil {
		_ = ledger.Close(ctx)
		_ = store.Close()
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	ws := realtime.NewWSGateway(log, srv, realtime.GatewayConfig{AllowedOrigins: cfg.WSOriginPatterns})

	return &App{
		cfg:      cfg,
		log:      log,
		chat:     srv,
		ledger:   ledger,
		store:    store,
		dbPool:   pool,
		registry: reg,
		ws:       ws,
	}, nil
}

// Run serves until ctx is cancelled, a client issues /shutdown, or a listener fails.
// Shutdown then waits up to ShutdownGrace for every session to be reclaimed.
func (a *App) Run(ctx context.Context) error {
	ln, err := Listen(ctx, a.cfg, a.log)
	if err != nil {
		a.chat.Shutdown()
		a.closeResources(context.Background())
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr(), err)
	}

	var (
		httpSrv *http.Server
		httpLn  net.Listener
	)
	if a.cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", a.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			a.chat.Shutdown()
			a.closeResources(context.Background())
			return fmt.Errorf("listen http %s: %w", a.cfg.HTTPAddr, err)
		}

		mux := http.NewServeMux()
		registerHTTP(mux, a.log, a.chat, a.ledger, a.dbPool, a.registry, a.ws)
		httpSrv = &http.Server{
			Handler:           WithRequestLogging(mux, a.log),
			ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.chat.Serve(ln) }()

	httpErr := make(chan error, 1)
	var httpAddr net.Addr
	if httpSrv != nil {
		httpAddr = httpLn.Addr()
		go func() {
			if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	a.log.Info("app.start",
		"addr", ln.Addr().String(),
		"http_addr", a.cfg.HTTPAddr,
		"ledger", a.ledgerKind(),
		"outbox_limit", a.cfg.OutboxLimit,
	)
	if a.onListen != nil {
		a.onListen(ln.Addr(), httpAddr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("app.stop", "reason", "signal")
	case <-a.chat.Done():
		a.log.Info("app.stop", "reason", "client_shutdown")
	case err := <-serveErr:
		if !errors.Is(err, chat.ErrServerClosed) {
			a.log.Error("app.stop", "reason", "accept_failed", "err", err)
			runErr = err
		}
	case err := <-httpErr:
		a.log.Error("app.stop", "reason", "http_failed", "err", err)
		runErr = fmt.Errorf("http: %w", err)
	}

	a.chat.Shutdown()

	graceCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer cancel()

	if err := a.chat.Wait(graceCtx); err != nil {
		a.log.Warn("app.reclaim.timeout", "live", a.chat.LiveCount(), "err", err)
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(graceCtx); err != nil {
			a.log.Error("http.shutdown.fail", "err", err)
		}
	}
	a.closeResources(graceCtx)

	a.log.Info("app.stopped")
	return runErr
}

func (a *App) closeResources(ctx context.Context) {
	if err := a.ledger.Close(ctx); err != nil {
		a.log.Warn("ledger.close.fail", "err", err, "dropped", a.ledger.Dropped())
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("ledger.store.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

func (a *App) ledgerKind() string {
	if a.dbPool != nil {
		return "postgres"
	}
	return "memory"
}

// newLedgerStore decides between the Postgres-backed ledger and the in-memory ring.
func newLedgerStore(ctx context.Context, cfg Config, log Logger) (audit.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_ledger")
		return audit.NewInMemoryStore(0), nil, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// app owns the pool; PostgresStore.Close is a no-op
	st, err := audit.NewPostgresStore(pool, audit.WithSchema(cfg.AuditSchema))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info("db.enabled.postgres_ledger", "schema", cfg.AuditSchema)
	return st, pool, nil
}
