package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/referral-desk/referral-desk/internal/admin"
	"github.com/referral-desk/referral-desk/internal/app"
	"github.com/referral-desk/referral-desk/internal/auth"
	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/consult"
	"github.com/referral-desk/referral-desk/internal/inquiries"
	"github.com/referral-desk/referral-desk/internal/leaderboard"
	"github.com/referral-desk/referral-desk/internal/notices"
	"github.com/referral-desk/referral-desk/internal/notifications"
	"github.com/referral-desk/referral-desk/internal/observability"
	"github.com/referral-desk/referral-desk/internal/partnerdash"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/platform/cache"
	"github.com/referral-desk/referral-desk/internal/platform/db"
	"github.com/referral-desk/referral-desk/internal/rbac"
	"github.com/referral-desk/referral-desk/internal/realtime"
	"github.com/referral-desk/referral-desk/internal/settlements"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/internal/view"
	"github.com/referral-desk/referral-desk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	var handler http.Handler
	if !cfg.BackendConfigured() {
		logger.Warn("backend not configured, serving setup guidance only")
		handler = app.NewSetupRouter(logger, templates)
	} else {
		pool, err := db.New(ctx, cfg.BackendURL, cfg.BackendKey)
		if err != nil {
			logger.Error("connect backend", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()

		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		inspector := asynq.NewInspector(redisOpt)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(redisOpt)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()

		handler = buildRouter(ctx, cfg, logger, templates, pool, redisClient, jobClient, inspector)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func buildRouter(ctx context.Context, cfg *app.Config, logger *slog.Logger, templates *view.Engine, pool *pgxpool.Pool, redisClient *redis.Client, jobClient *jobs.Client, inspector *asynq.Inspector) http.Handler {
	sessionManager := shared.NewSessionManager(redisClient, "referral_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	generations := shared.NewGenerations()

	authBackend := backend.NewAuth(pool)
	rpc := backend.NewRPC(pool)

	partnerService := partners.NewService(
		partners.NewRepository(pool),
		rpc,
		jobClient,
		cache.NewVersioned(redisClient, "partners", 5*time.Minute),
		logger,
	)
	clientService := clients.NewService(clients.NewRepository(pool), rpc)
	clientService.UseLeaderboard(jobClient, logger)
	inquiryService := inquiries.NewService(inquiries.NewRepository(pool))
	settlementService := settlements.NewService(settlements.NewRepository(pool), partnerService)
	notificationService := notifications.NewService(pool)
	noticeService := notices.NewService(pool)
	board := leaderboard.NewService(rpc, cache.NewVersioned(redisClient, "leaderboard", cfg.LeaderboardCacheTTL))

	metrics := observability.NewMetrics()

	hub := realtime.NewHub(redisClient, logger)
	bridge := realtime.NewBridge(hub)
	if err := metrics.ObserveRealtime(hub.Count); err != nil {
		logger.Warn("register realtime gauge", slog.Any("error", err))
	}
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("realtime hub", slog.Any("error", err))
		}
	}()
	go func() {
		if err := hub.Pump(ctx, pool); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("change feed", slog.Any("error", err))
		}
	}()

	guard := rbac.Middleware{
		Sessions: authBackend,
		Logger:   logger,
		OnExpired: func(sessionID string) {
			if err := bridge.End(ctx, sessionID); err != nil {
				logger.Warn("end expired realtime bridge", slog.Any("error", err))
			}
			generations.Forget(admin.FeedKey(sessionID))
		},
	}

	authService := auth.NewService(authBackend, partnerService, bridge, logger)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)
	authHandler.OnLogout(func(sessionID string) {
		generations.Forget(admin.FeedKey(sessionID))
	})

	adminHandler := admin.NewHandler(logger, admin.Services{
		Inquiries:   inquiryService,
		Clients:     clientService,
		Partners:    partnerService,
		Settlements: settlementService,
		Notices:     noticeService,
	}, templates, csrfManager, guard, generations)

	partnerHandler := partnerdash.NewHandler(logger, partnerdash.Services{
		Partners:      partnerService,
		Clients:       clientService,
		Settlements:   settlementService,
		Notifications: notificationService,
		Notices:       noticeService,
		Leaderboard:   board,
		Peers:         rpc,
		Bridge:        bridge,
	}, templates, csrfManager, guard)

	consultHandler := consult.NewHandler(logger, clientService, templates, csrfManager)
	consultHandler.UseSubmissionGuard(shared.NewIdempotencyStore(redisClient, 10*time.Minute))

	return app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		AdminHandler:   adminHandler,
		PartnerHandler: partnerHandler,
		ConsultHandler: consultHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})
}
