package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediimate/gateway/internal/config"
	"github.com/mediimate/gateway/internal/domain/account"
	"github.com/mediimate/gateway/internal/domain/doctor"
	"github.com/mediimate/gateway/internal/domain/healthlog"
	"github.com/mediimate/gateway/internal/domain/records"
	"github.com/mediimate/gateway/internal/domain/vault"
	"github.com/mediimate/gateway/internal/platform/auth"
	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/db"
	"github.com/mediimate/gateway/internal/platform/hipaa"
	"github.com/mediimate/gateway/internal/platform/middleware"
	"github.com/mediimate/gateway/internal/platform/refresh"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/websocket"
	"github.com/mediimate/gateway/migrations"
)

const janitorInterval = time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediimate-server",
		Short: "MediiMate patient and doctor gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run gateway database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage gateway sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions from the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			logger := newLogger(cfg)

			var pool *pgxpool.Pool
			if cfg.DatabaseURL != "" {
				pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
				if err != nil {
					return err
				}
				defer pool.Close()
			}
			store, closeStore, err := openStore(ctx, cfg, pool, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := store.PurgeExpired(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			fmt.Printf("Purged %d expired session(s) from the %s store.\n", n, cfg.ResolvedSessionStore())
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			logger.Error().Err(err).Msg("sentry init failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()

	// Database is optional; it backs the postgres session store and the
	// vault audit log.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		applied, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
		if applied > 0 {
			logger.Info().Int("count", applied).Msg("applied migrations")
		}
	}

	// Sessions
	store, closeStore, err := openStore(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer closeStore()

	sealer, generated, err := hipaa.NewTokenSealerFromHex(cfg.SessionEncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid session encryption key")
	}
	if generated {
		logger.Warn().Msg("SESSION_ENCRYPTION_KEY not set; using an ephemeral key, sessions will not survive a restart")
	}
	manager := session.NewManager(store, sealer, session.NewIssuer(cfg.SessionSigningKey), cfg.SessionTTL)

	var audit hipaa.AccessRecorder = hipaa.NewLogRecorder(logger)
	if pool != nil {
		audit = hipaa.NewAuditLogger(pool)
	}

	// Backend
	client := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger)

	// Push refresh
	hub := websocket.NewHub(logger)
	views := records.NewViews()
	workspaces := vault.NewWorkspaces()
	uploadLimit := middleware.ParseSize(cfg.UploadLimit, 10<<20)
	recordsSvc := records.NewService(client, manager, hub, views, uploadLimit, logger)

	poller := refresh.NewPoller(hub, recordsSvc, manager, logger)
	hub.SetListener(poller)
	if err := poller.Start(cfg.RefreshInterval); err != nil {
		logger.Fatal().Err(err).Msg("failed to start refresh poller")
	}
	defer poller.Stop()

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	if cfg.KafkaEnabled() {
		feed := refresh.NewFeedConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, hub, logger)
		defer feed.Close()
		go func() {
			if err := feed.Run(feedCtx); err != nil {
				logger.Error().Err(err).Msg("change feed stopped")
			}
		}()
	}

	manager.OnEnd(poller.Forget)
	manager.OnEnd(views.Drop)
	manager.OnEnd(workspaces.Drop)

	janitor := session.NewJanitor(manager, cfg.SessionTTL, logger, views.Sweep, workspaces.Sweep)
	if err := janitor.Start(janitorInterval); err != nil {
		logger.Fatal().Err(err).Msg("failed to start session janitor")
	}
	defer janitor.Stop()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Session auth
	e.Use(auth.SessionMiddleware(manager, auth.AuthSkipper))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(db.CheckPool(pool)))

	apiV1 := e.Group("/api/v1", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}))
	patient := apiV1.Group("", auth.RequireRole(session.RolePatient), auth.RequireTnC())
	doctorGated := apiV1.Group("", auth.RequireRole(session.RoleDoctor), auth.RequireTnC())

	// Patient
	accountHandler := account.NewHandler(account.NewService(client, manager, cfg.PhoneCountryCode, logger))
	accountHandler.RegisterRoutes(apiV1)

	healthlogHandler := healthlog.NewHandler(healthlog.NewService(client, manager))
	healthlogHandler.RegisterRoutes(patient)

	recordsHandler := records.NewHandler(recordsSvc)
	recordsHandler.RegisterRoutes(patient)

	// Doctor
	doctorHandler := doctor.NewHandler(doctor.NewService(client, manager, cfg.PhoneCountryCode, logger))
	doctorHandler.RegisterRoutes(apiV1, doctorGated)

	vaultHandler := vault.NewHandler(vault.NewService(client, manager, audit, workspaces, logger))
	vaultHandler.RegisterRoutes(doctorGated)

	// Live updates
	wsHandler := websocket.NewHandler(hub, cfg.CORSOrigins)
	wsHandler.OnConnect(poller.Remember)
	wsHandler.RegisterRoutes(e, apiV1)

	resetNotFound(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("session_store", cfg.ResolvedSessionStore()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopFeed()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// resetNotFound re-registers the catch-all 404 routes of api. Every
// sub-group created with middleware installs its own catch-alls on the same
// prefix, and the last one wins; without this an unknown /api/v1 path would
// run the role checks of the last gated group and answer 403. Call it after
// all routes are mounted.
func resetNotFound(api *echo.Group) {
	api.RouteNotFound("", echo.NotFoundHandler)
	api.RouteNotFound("/*", echo.NotFoundHandler)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

// openStore builds the session store named by the config. The returned
// func releases whatever connection the store opened.
func openStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (session.Store, func(), error) {
	noop := func() {}
	switch kind := cfg.ResolvedSessionStore(); kind {
	case "postgres":
		if pool == nil {
			return nil, noop, fmt.Errorf("postgres session store needs DATABASE_URL")
		}
		return session.NewPGStore(pool), noop, nil
	case "redis":
		rdb, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		logger.Info().Msg("connected to redis")
		return session.NewRedisStore(rdb), closeRedis(rdb, logger), nil
	case "memory":
		logger.Warn().Msg("using in-memory session store; sessions are lost on restart")
		return session.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown session store %q", kind)
	}
}

func closeRedis(rdb *redis.Client, logger zerolog.Logger) func() {
	return func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing redis client")
		}
	}
}
