package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/contaflux-erp/contaflux-erp/internal/app"
	"github.com/contaflux-erp/contaflux-erp/internal/cashsync"
	"github.com/contaflux-erp/contaflux-erp/internal/categorize"
	"github.com/contaflux-erp/contaflux-erp/internal/costing"
	"github.com/contaflux-erp/contaflux-erp/internal/integration"
	"github.com/contaflux-erp/contaflux-erp/internal/marketplace"
	"github.com/contaflux-erp/contaflux-erp/internal/observability"
	"github.com/contaflux-erp/contaflux-erp/internal/payables"
	"github.com/contaflux-erp/contaflux-erp/internal/platform/cache"
	"github.com/contaflux-erp/contaflux-erp/internal/platform/db"
	"github.com/contaflux-erp/contaflux-erp/internal/receivables"
	"github.com/contaflux-erp/contaflux-erp/internal/shared"
	"github.com/contaflux-erp/contaflux-erp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	marginRepo := integration.NewMarginRepository(dbpool)
	integrationHooks := integration.NewHooks(marginRepo)

	costingRepo := costing.NewRepository(dbpool)
	costingService := costing.NewService(costingRepo, auditLogger, logger,
		costing.ServiceConfig{StrictNegativeStock: cfg.StrictNegativeStock}, integrationHooks)

	marketplaceRepo := marketplace.NewRepository(dbpool)
	resolver := marketplace.NewResolver(marketplaceRepo, costingService, logger, 0)

	ruleCache := categorize.NewRuleCache(redisClient, cfg.RuleCacheTTL)
	if err := ruleCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("rule cache subscribe", slog.Any("error", err))
	}
	categorizeRepo := categorize.NewRepository(dbpool)
	categorizeService := categorize.NewService(categorizeRepo, ruleCache, logger,
		categorize.ServiceConfig{MinConfidence: cfg.CategorizeMinConfidence})

	payablesRepo := payables.NewRepository(dbpool)
	payablesService := payables.NewService(payablesRepo)
	receivablesRepo := receivables.NewRepository(dbpool)
	receivablesService := receivables.NewService(receivablesRepo)

	cashRepo := cashsync.NewRepository(dbpool)
	notifier := cashsync.NewRedisNotifier(redisClient, logger)
	syncService := cashsync.NewService(cashRepo, []cashsync.SourcePort{
		cashsync.NewPayableSource(payablesRepo),
		cashsync.NewReceivableSource(receivablesRepo),
		cashsync.NewMarketplaceSource(marketplaceRepo, categorizeService),
	}, notifier, auditLogger, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CostingHandler:     costing.NewHandler(logger, costingService),
		MarketplaceHandler: marketplace.NewHandler(logger, resolver, idempotencyStore),
		CategorizeHandler:  categorize.NewHandler(logger, categorizeService),
		CashSyncHandler:    cashsync.NewHandler(logger, syncService),
		PayablesHandler:    payables.NewHandler(logger, payablesService),
		ReceivablesHandler: receivables.NewHandler(logger, receivablesService),
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
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
