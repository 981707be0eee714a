package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/contaflux-erp/contaflux-erp/internal/app"
	"github.com/contaflux-erp/contaflux-erp/internal/cashsync"
	"github.com/contaflux-erp/contaflux-erp/internal/categorize"
	jobmetrics "github.com/contaflux-erp/contaflux-erp/internal/jobs"
	"github.com/contaflux-erp/contaflux-erp/internal/marketplace"
	"github.com/contaflux-erp/contaflux-erp/internal/payables"
	"github.com/contaflux-erp/contaflux-erp/internal/platform/cache"
	"github.com/contaflux-erp/contaflux-erp/internal/platform/db"
	"github.com/contaflux-erp/contaflux-erp/internal/receivables"
	"github.com/contaflux-erp/contaflux-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	metrics := jobmetrics.NewMetrics(nil)

	payablesRepo := payables.NewRepository(pool)
	receivablesRepo := receivables.NewRepository(pool)
	marketplaceRepo := marketplace.NewRepository(pool)

	ruleCache := categorize.NewRuleCache(redisClient, cfg.RuleCacheTTL)
	categorizeRepo := categorize.NewRepository(pool)
	categorizeService := categorize.NewService(categorizeRepo, ruleCache, logger,
		categorize.ServiceConfig{MinConfidence: cfg.CategorizeMinConfidence})

	cashRepo := cashsync.NewRepository(pool)
	notifier := cashsync.NewRedisNotifier(redisClient, logger)
	syncService := cashsync.NewService(cashRepo, []cashsync.SourcePort{
		cashsync.NewPayableSource(payablesRepo),
		cashsync.NewReceivableSource(receivablesRepo),
		cashsync.NewMarketplaceSource(marketplaceRepo, categorizeService),
	}, notifier, nil, logger)

	syncJob := jobs.NewSyncMovementsJob(syncService, pool, metrics, logger)
	reprocessJob := jobs.NewCategorizeReprocessJob(categorizeService, metrics, logger)
	hashJob := jobs.NewImportHashJob(redisClient, metrics, logger)
	viewsJob := func(ctx context.Context, t *asynq.Task) error {
		return metrics.Track("views_refresh").
			End(jobs.RefreshReportingViews(ctx, pool, notifier, logger))
	}

	syncTask, err := jobs.NewSyncMovementsTask(jobs.SyncMovementsPayload{ScheduledFor: time.Now()})
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	viewsTask, err := jobs.NewViewsRefreshTask(time.Now())
	if err != nil {
		logger.Error("build views task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSyncMovements, Handler: syncJob.Handle},
			{Type: jobs.TaskCategorizeReprocess, Handler: reprocessJob.Handle},
			{Type: jobs.TaskImportHash, Handler: hashJob.Handle},
			{Type: jobs.TaskViewsRefresh, Handler: viewsJob},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SyncCron, Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ViewsRefreshCron, Task: viewsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
