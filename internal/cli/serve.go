package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stacksight/internal/amqp"
	"stacksight/internal/auth"
	"stacksight/internal/cache"
	"stacksight/internal/config"
	"stacksight/internal/db"
	apphttp "stacksight/internal/http"
	applog "stacksight/internal/log"
	"stacksight/internal/services"
	"stacksight/internal/storage"
)

const (
	lookupCacheEntries = 64
	shutdownTimeout    = 30 * time.Second
	startupPingTimeout = 5 * time.Second
)

func newServeCommand() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(true)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg.LogLevel)

			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			return runServe(ctx, cfg, logger, migrateFirst)
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *applog.Logger, migrateFirst bool) error {
	dbCfg := cfg.Database()
	if migrateFirst {
		if err := storage.RunMigrations(dbCfg); err != nil {
			return err
		}
		logger.Info("Migrations applied", applog.FieldOperation, applog.OpMigrate)
	}

	engine, err := db.Open(dbCfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	if err := engine.Ping(pingCtx); err != nil {
		logger.Warn("Database not reachable at startup", applog.FieldError, err, "driver", engine.Driver())
	}
	cancel()

	exec := db.NewExecutor(engine, logger.Logger)
	lookups := db.NewCachedReader(exec, cfg.LookupCacheTTL, lookupCacheEntries)
	repo := storage.NewRepository(exec, lookups, logger.Logger)

	caches := cache.NewManager()
	caches.Register("lookups", lookups)
	caches.StartCleanup(cfg.LookupCacheTTL)
	defer caches.Stop()

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect AMQP: %w", err)
		}
		defer client.Close()
		events = client
		logger.Info("Publishing events", "exchange", cfg.AMQPExchange)
	}

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	svc := services.NewAccountService(repo, hasher, events, logger.Logger)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		QueryTimeout:       cfg.QueryTimeout,
		CookieSecure:       cfg.CookieSecure,
		Ready:              engine,
		LookupCache:        lookups,
	}, svc, sessions, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting stacksight server", "port", cfg.Port, "driver", engine.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return GracefulShutdown(gctx, logger, shutdownTimeout, srv.Shutdown)
	})
	g.Go(func() error {
		reloadLookupsOnHangup(gctx, repo, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// reloadLookupsOnHangup drops the cached lookup lists on every SIGHUP so
// rows added to the reference tables show up without a restart.
func reloadLookupsOnHangup(ctx context.Context, repo *storage.Repository, logger *applog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			n := repo.InvalidateLookups()
			logger.WithComponent(applog.ComponentCache).Info("Lookup cache invalidated", "entries_removed", n)
		}
	}
}
