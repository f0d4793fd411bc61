package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"pos-backend/internal/cache"
	"pos-backend/internal/config"
	"pos-backend/internal/currency"
	"pos-backend/internal/database"
	"pos-backend/internal/db"
	"pos-backend/internal/handlers"
	"pos-backend/internal/health"
	h "pos-backend/internal/http"
	"pos-backend/internal/logging"
	"pos-backend/internal/middleware"
	"pos-backend/internal/realtime"
	"pos-backend/internal/repositories"
	"pos-backend/internal/services"
	"pos-backend/internal/timeutil"
)

func main() {
	app := &cli.App{
		Name:  "pos-backend",
		Usage: "point-of-sale backend: sales, stock and customer ledgers per branch",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and realtime hub",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: migrate,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: database.DefaultMigrationsDir, Usage: "migrations directory"},
				},
			},
			{
				Name:   "backup",
				Usage:  "export a branch's sales as CSV to object storage",
				Action: backup,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "branch", Usage: "branch id (defaults to sales.default_branch)"},
					&cli.StringFlag{Name: "from", Usage: "first day, YYYY-MM-DD (defaults to today)"},
					&cli.StringFlag{Name: "to", Usage: "last day, YYYY-MM-DD (defaults to from)"},
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("pos-backend exited")
	}
}

func loadConfig() *config.Config {
	cfg := config.Load()
	logging.Setup(cfg)
	timeutil.SetLocation(cfg.Timezone)
	return cfg
}

// openStore returns the configured store. The pool is nil in local mode.
func openStore(ctx context.Context, cfg *config.Config) (repositories.Store, *pgxpool.Pool, error) {
	if cfg.Store.Mode == config.StoreModeLocal {
		store, err := repositories.NewLocalStore(cfg.Store.LocalPath)
		return store, nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err == nil {
		return repositories.NewPgStore(pool), pool, nil
	}
	if !cfg.Store.Fallback {
		return nil, nil, err
	}

	log.WithError(err).WithField("path", cfg.Store.LocalPath).
		Warn("[Store] PostgreSQL unavailable, falling back to local store (writes are not transactional)")
	store, localErr := repositories.NewLocalStore(cfg.Store.LocalPath)
	return store, nil, localErr
}

func serve(c *cli.Context) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, pool, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	storeMode := config.StoreModeLocal
	if pool != nil {
		storeMode = config.StoreModePostgres
		log.Info("[Migrate] Running database migrations...")
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := database.NewMigrator(pool, database.DefaultMigrationsDir).RunMigrations(migrateCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisCache, err := cache.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("[Redis] Cache unavailable, serving reads from the store")
	} else if redisCache.Enabled() {
		log.Info("[Redis] Cache connected successfully")
	}
	defer redisCache.Close()

	conv := currency.NewConverter(cfg.Currency.Base, cfg.Currency.Rates)
	hub := realtime.NewHub()

	var branchCache services.BranchCache
	var cachePinger health.Pinger
	if redisCache.Enabled() {
		branchCache = redisCache
		cachePinger = redisCache
	}

	saleService := services.NewSaleService(store, conv, services.SaleServiceConfig{
		Options: services.SaleOptions{
			CustomItemPrefix: cfg.Sales.CustomItemPrefix,
			InvoicePrefix:    cfg.Sales.InvoicePrefix,
		},
		MaxAttempts:   cfg.Sales.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff(),
		DefaultBranch: cfg.Sales.DefaultBranch,
	})
	saleService.Events = hub
	saleService.Cache = branchCache

	ledgerService := services.NewLedgerService(store, conv)
	ledgerService.Events = hub
	ledgerService.Cache = branchCache
	ledgerService.Retry = services.WritePolicy(cfg.Sales.MaxAttempts, cfg.RetryBackoff())

	catalogService := services.NewCatalogService(store)
	catalogService.Events = hub
	catalogService.Retry = services.WritePolicy(cfg.Sales.MaxAttempts, cfg.RetryBackoff())

	historyService := services.NewSaleHistoryService(store, branchCache)
	receiptService := services.NewReceiptService(cfg.Server.StoreName, conv.Base())

	router := h.NewRouter(h.Handlers{
		Sales:     handlers.NewSaleHandler(saleService, historyService, receiptService),
		Products:  handlers.NewProductHandler(catalogService),
		Customers: handlers.NewCustomerHandler(ledgerService, receiptService),
		Reports:   handlers.NewReportHandler(historyService),
		Health:    handlers.NewHealthHandler(health.NewHealthChecker(pool, cachePinger, storeMode)),
		Realtime:  hub.ServeWS,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           middleware.NewCORS(cfg)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		log.WithFields(log.Fields{
			"addr":  srv.Addr,
			"store": storeMode,
		}).Info("[Server] Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("[Server] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func migrate(c *cli.Context) error {
	cfg := loadConfig()

	pool, err := db.Connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return database.NewMigrator(pool, c.String("dir")).RunMigrations(c.Context)
}

func backup(c *cli.Context) error {
	cfg := loadConfig()

	branch := c.String("branch")
	if branch == "" {
		branch = cfg.Sales.DefaultBranch
	}

	from := timeutil.Now()
	if raw := c.String("from"); raw != "" {
		parsed, err := timeutil.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		from = parsed
	}
	to := from
	if raw := c.String("to"); raw != "" {
		parsed, err := timeutil.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		to = parsed
	}

	store, _, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := services.NewS3Client(c.Context, cfg)
	if err != nil {
		return err
	}

	key, err := services.NewBackupService(store, client, cfg.Backup.Bucket).
		ExportSales(c.Context, branch, timeutil.StartOfDay(from), timeutil.EndOfDay(to))
	if err != nil {
		return err
	}

	fmt.Println(key)
	return nil
}
