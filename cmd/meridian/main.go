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
	"golang.org/x/sync/errgroup"

	"github.com/meridian-ledger/meridian-ledger/internal/app"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/accounts"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/balances"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/journals"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/openitems"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/outbox"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/periods"
	"github.com/meridian-ledger/meridian-ledger/internal/platform/cache"
	"github.com/meridian-ledger/meridian-ledger/internal/platform/db"
	"github.com/meridian-ledger/meridian-ledger/internal/shared"
	"github.com/meridian-ledger/meridian-ledger/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	auditLogger := shared.NewAuditLogger(pool)
	notifier := outbox.NewRedisNotifier(redisClient, cfg.OutboxWakeKey)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	balancesRepo := balances.NewRepository(pool)
	balancesService := balances.NewService(balancesRepo, accountsRepo)
	balancesHandler := balances.NewHandler(logger, balancesService)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo, balancesService)
	periodsHandler := periods.NewHandler(logger, periodsService)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, auditLogger, notifier)
	journalsHandler := journals.NewHandler(logger, journalsService)

	outboxRepo := outbox.NewRepository(pool)
	outboxService := outbox.NewService(outboxRepo, cfg.OutboxMaxAttempts)
	outboxHandler := outbox.NewHandler(logger, outboxService)

	openItemsRepo := openitems.NewRepository(pool)
	openItemsService := openitems.NewService(openItemsRepo)
	openItemsHandler := openitems.NewHandler(logger, openItemsService)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	dispatcher := outbox.NewDispatcher(outboxRepo, jobs.NewAsynqSink(asynqClient), notifier, logger, outbox.DispatcherConfig{
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
		PollInterval: cfg.OutboxPollInterval,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AccountsHandler:  accountsHandler,
		PeriodsHandler:   periodsHandler,
		JournalsHandler:  journalsHandler,
		BalancesHandler:  balancesHandler,
		OutboxHandler:    outboxHandler,
		OpenItemsHandler: openItemsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := dispatcher.Run(groupCtx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("runtime", slog.Any("error", err))
		os.Exit(1)
	}
}
