package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BatmanBruc/inkpay/internal/access"
	"github.com/BatmanBruc/inkpay/internal/config"
	"github.com/BatmanBruc/inkpay/internal/handlers"
	"github.com/BatmanBruc/inkpay/internal/membership"
	"github.com/BatmanBruc/inkpay/internal/middleware"
	"github.com/BatmanBruc/inkpay/internal/notify"
	"github.com/BatmanBruc/inkpay/internal/payment"
	"github.com/BatmanBruc/inkpay/internal/points"
	"github.com/BatmanBruc/inkpay/internal/purchase"
	"github.com/BatmanBruc/inkpay/internal/recharge"
	"github.com/BatmanBruc/inkpay/internal/scheduler"
	"github.com/BatmanBruc/inkpay/store"
	"github.com/BatmanBruc/inkpay/types"
)

// Backend is the single store every ledger shares, so one transaction can span them.
type Backend interface {
	types.PointsStore
	types.MembershipStore
	types.PaymentStore
	types.PurchaseStore
	types.ArticleStore
}

type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Store       Backend
	Cache       types.Cache
	Points      *points.Ledger
	Catalog     *membership.Catalog
	Memberships *membership.Ledger
	Tracker     *payment.Tracker
	Recharge    *recharge.Orchestrator
	Purchases   *purchase.Ledger
	Gate        *access.Gate
	Notifier    *notify.Dispatcher
	Scheduler   *scheduler.Scheduler

	redis   *store.RedisClient
	checks  map[string]handlers.Pinger
	closers []func()
}

type Options struct {
	// Migrate applies pending schema migrations when the Postgres store opens.
	Migrate bool
}

// New opens the configured backends and wires the services. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, checks: map[string]handlers.Pinger{}}
	if err := a.openStores(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.PlansFile != "" {
		if err := a.SeedPlans(ctx, cfg.PlansFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context, opts Options) error {
	switch a.cfg.StoreDriver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory store, data is lost on exit")
		a.Store = store.NewMemoryStore()
	default:
		pg, err := store.NewPostgresStore(ctx, a.cfg.PostgresDSN, opts.Migrate)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		a.Store = pg
		a.checks["postgres"] = pg
		a.closers = append(a.closers, pg.Close)
	}

	switch a.cfg.CacheDriver {
	case config.DriverMemory:
		a.Cache = store.NewMemoryCache()
	default:
		rdb, err := store.NewRedisClient(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.cfg.Redis.Prefix)
		if err != nil {
			return err
		}
		a.redis = rdb
		a.checks["redis"] = rdb
		a.Cache = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}
	return nil
}

func (a *App) wire() error {
	policy, err := membership.PolicyByName(a.cfg.Renewal)
	if err != nil {
		return err
	}

	var sender notify.Sender = notify.LogSender{Logger: a.logger.With("component", "notify")}
	if a.cfg.Telegram.Token != "" && a.cfg.Telegram.AlertChatID != 0 {
		tg, err := notify.NewTelegramSender(a.cfg.Telegram.Token, a.cfg.Telegram.AlertChatID)
		if err != nil {
			a.logger.Error("telegram notifications disabled", "err", err)
		} else {
			sender = notify.Multi{sender, tg}
		}
	}
	a.Notifier = notify.NewDispatcher(sender, a.logger, notify.Config{Workers: a.cfg.NotifyWorkers})

	a.Points = points.NewLedger(a.Store, a.Notifier, a.logger)
	a.Catalog = membership.NewCatalog(a.Store)
	a.Memberships = membership.NewLedger(a.Store, a.Catalog, policy, a.logger)
	a.Tracker = payment.NewTracker(a.Store, a.Cache,
		payment.NewHTTPGateway(a.cfg.Payment.APIURL, a.cfg.Payment.Timeout),
		payment.Config{
			PID:          a.cfg.Payment.PID,
			Key:          a.cfg.Payment.Key,
			NotifyURL:    a.cfg.Payment.NotifyURL,
			ReturnURL:    a.cfg.Payment.ReturnURL,
			OrderTTL:     a.cfg.Payment.OrderTTL,
			SettleWindow: a.cfg.Payment.SettleWindow,
		},
		a.logger,
	).WithNotifier(a.Notifier)
	a.Recharge = recharge.NewOrchestrator(recharge.Deps{
		Store:         a.Store,
		Tracker:       a.Tracker,
		Points:        a.Points,
		Catalog:       a.Catalog,
		Memberships:   a.Memberships,
		Notifier:      a.Notifier,
		PointsPerUnit: a.cfg.PointsPerUnit,
		Logger:        a.logger,
	})
	a.Purchases = purchase.NewLedger(a.Store, a.Store, a.Points, a.logger)
	a.Gate = access.NewGate(a.Memberships, a.Purchases, a.logger)

	var locker scheduler.Locker
	if a.redis != nil {
		locker = scheduler.NewRedisLocker(a.redis.Raw(), a.cfg.Redis.Prefix, 0, a.logger)
	}
	a.Scheduler = scheduler.NewScheduler([]scheduler.Job{
		{Name: "memberships.expire", Run: a.Memberships.DeactivateExpired},
		{Name: "orders.expire", Run: a.Tracker.ExpireStale},
	}, locker, a.logger, scheduler.Config{Spec: a.cfg.SweepSpec})
	return nil
}

// SeedPlans upserts the membership catalog from a YAML file.
func (a *App) SeedPlans(ctx context.Context, path string) error {
	plans, err := config.LoadPlans(path)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}
	if err := a.Catalog.Seed(ctx, plans); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	a.logger.Info("membership plans seeded", "file", path, "count", len(plans))
	return nil
}

func (a *App) Handler() http.Handler {
	m := middleware.New(middleware.NewAuthenticator(a.cfg.JWTSecret), a.logger, handlers.WriteError)
	return handlers.NewRouter(handlers.NewHandlers(handlers.Deps{
		Points:      a.Points,
		Catalog:     a.Catalog,
		Memberships: a.Memberships,
		Tracker:     a.Tracker,
		Recharge:    a.Recharge,
		Purchases:   a.Purchases,
		Gate:        a.Gate,
		Articles:    a.Store,
		Checks:      a.checks,
	}), m)
}

// Serve runs the HTTP API, the notification workers and the sweeps until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.Notifier.Start()
	defer a.Notifier.Stop()

	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Sweep runs every maintenance job once.
func (a *App) Sweep(ctx context.Context) map[string]int64 {
	return a.Scheduler.RunOnce(ctx)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
