package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"pifp_protocol/api"
	apimw "pifp_protocol/api/middleware"
	"pifp_protocol/config"
	"pifp_protocol/contract"
	"pifp_protocol/kv"
	"pifp_protocol/ledger"
	"pifp_protocol/metrics"
	"pifp_protocol/sdk"
)

// App is one running protocol node.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	store    kv.Store
	runtime  *ledger.Runtime
	contract *contract.Contract
	metrics  *metrics.Metrics

	// API server (HTTP)
	apiServer *api.Server

	// background jobs started by Run, cancelled on shutdown
	background []func(ctx context.Context)

	shutdownFns []func() error
}

// NewApp creates a new application instance
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg:         cfg,
		log:         log.With().Str("component", "app").Logger(),
		shutdownFns: make([]func() error, 0),
	}

	if err := app.initialize(ctx); err != nil {
		app.shutdown()
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

// initialize sets up the application components
func (a *App) initialize(ctx context.Context) error {
	if err := a.initializeStore(ctx); err != nil {
		return err
	}

	a.initializeRuntime()

	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	a.initializeAPIServer()
	return nil
}

// initializeStore opens the configured backend, optionally behind bigcache
func (a *App) initializeStore(ctx context.Context) error {
	sc := a.cfg.Store
	var store kv.Store

	switch sc.Backend {
	case "memory":
		store = kv.NewMemoryStore()
		a.log.Warn().Msg("Using in-memory store, state is lost on exit")
	case "badger":
		bs, err := kv.OpenBadger(kv.BadgerOptions{
			Dir:        sc.Badger.Dir,
			SyncWrites: sc.Badger.SyncWrites,
		}, a.log)
		if err != nil {
			return fmt.Errorf("failed to open badger at %s: %w", sc.Badger.Dir, err)
		}
		if sc.Badger.GCInterval > 0 {
			a.background = append(a.background, func(ctx context.Context) { bs.RunGC(ctx, sc.Badger.GCInterval) })
		}
		store = bs
		a.log.Info().Str("dir", sc.Badger.Dir).Msg("Badger store opened")
	case "redis":
		rs, err := kv.OpenRedis(ctx, kv.RedisOptions{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", sc.Redis.Addr, err)
		}
		store = rs
		a.log.Info().Str("addr", sc.Redis.Addr).Msg("Redis store connected")
	default:
		return fmt.Errorf("unknown store backend %q", sc.Backend)
	}

	if sc.Cache.Enabled {
		cached, err := kv.NewCached(store, sc.Cache.LifeWindow, sc.Cache.MaxMB)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to create read cache: %w", err)
		}
		store = cached
		a.log.Info().Int("max_mb", sc.Cache.MaxMB).Dur("life_window", sc.Cache.LifeWindow).Msg("Read cache enabled")
	}

	a.store = store
	a.shutdownFns = append(a.shutdownFns, store.Close)
	return nil
}

func (a *App) initializeRuntime() {
	opts := []ledger.Option{
		ledger.WithLogger(a.log),
		ledger.WithDefaultTTL(a.cfg.Ledger.DefaultTTL),
	}
	if a.cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		opts = append(opts, ledger.WithObserver(a.metrics))
	}

	a.runtime = ledger.New(a.store, sdk.Address(a.cfg.Ledger.ContractAddress), opts...)
	a.runtime.OnCommit(func(evs []sdk.Event) {
		for _, ev := range evs {
			a.log.Debug().Uint64("seq", ev.Seq).Str("event", ev.String()).Msg("event committed")
		}
	})
	a.contract = contract.New(a.runtime, a.log)
}

// bootstrap initializes the configured super admin when the store has none yet.
func (a *App) bootstrap(ctx context.Context) error {
	current, ok, err := a.contract.SuperAdmin(ctx)
	if errors.Is(err, sdk.ErrArchived) {
		a.log.Warn().Msg("Protocol state archived, POST /v1/restore to bring it back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read super admin: %w", err)
	}
	if ok {
		a.log.Info().Str("super_admin", current.String()).Msg("Protocol already initialized")
		return nil
	}

	sa := sdk.Address(a.cfg.Bootstrap.SuperAdmin).Normalize()
	if sa == "" {
		a.log.Warn().Msg("Protocol not initialized, waiting for POST /v1/init")
		return nil
	}
	if err := a.contract.Init(sdk.WithAuth(ctx, sdk.Authorization{Signer: sa}), sa); err != nil {
		return fmt.Errorf("failed to bootstrap super admin %s: %w", sa, err)
	}
	a.log.Info().Str("super_admin", sa.String()).Msg("Protocol bootstrapped")
	return nil
}

// initializeAPIServer sets up the HTTP API server with middleware
func (a *App) initializeAPIServer() {
	ac := a.cfg.API
	a.apiServer = api.NewServer(api.Config{
		ListenAddr:        ac.ListenAddr,
		ReadHeaderTimeout: ac.ReadHeaderTimeout,
		ReadTimeout:       ac.ReadTimeout,
		WriteTimeout:      ac.WriteTimeout,
		IdleTimeout:       ac.IdleTimeout,
		MaxHeaderBytes:    ac.MaxHeaderBytes,
	}, a.log)

	a.apiServer.Use(apimw.RequestID())
	a.apiServer.Use(apimw.Recover(a.log))
	a.apiServer.Use(apimw.Logger(a.log))
	if ac.CORS {
		a.apiServer.EnableCORS()
	}

	if a.metrics != nil {
		a.apiServer.Router.Use(a.metrics.HTTP)
		a.apiServer.Router.Handle(a.cfg.Metrics.Path, a.metrics.Handler()).Methods(http.MethodGet)
	}

	opts := api.Options{MaxBodyBytes: ac.MaxBodyBytes}
	if a.cfg.Faucet.Enabled {
		opts.FaucetMax = a.cfg.FaucetMax()
		a.log.Warn().Str("max_amount", opts.FaucetMax.Dec()).Msg("Faucet enabled, do not run this on a shared network")
	}
	api.NewHandler(a.contract, opts, a.log).Register(a.apiServer.Router)
}

// Run serves until SIGINT/SIGTERM or ctx is done, then shuts everything down
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, job := range a.background {
		go job(ctx)
	}

	a.log.Info().Msg("PIFP node started")
	err := a.apiServer.Start(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("HTTP API server failed")
	}

	a.log.Info().Msg("Shutting down")
	if serr := a.shutdown(); serr != nil {
		err = errors.Join(err, serr)
	}
	return err
}

func (a *App) shutdown() error {
	var errs []error
	for i := len(a.shutdownFns) - 1; i >= 0; i-- {
		if err := a.shutdownFns[i](); err != nil {
			a.log.Error().Err(err).Msg("Shutdown step failed")
			errs = append(errs, err)
		}
	}
	a.shutdownFns = nil
	return errors.Join(errs...)
}
