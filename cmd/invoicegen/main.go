package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdeblander/billing-engine/internal/billing"
	"github.com/gdeblander/billing-engine/internal/config"
	"github.com/gdeblander/billing-engine/internal/domain"
	"github.com/gdeblander/billing-engine/internal/eventstore"
	"github.com/gdeblander/billing-engine/internal/infra/postgresql"
	"github.com/gdeblander/billing-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/gdeblander/billing-engine/internal/infra/redis"
	"github.com/gdeblander/billing-engine/internal/observability"
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/gdeblander/billing-engine/internal/service"
	"go.uber.org/zap"
)

func main() {
	month := flag.String("month", domain.FormatMonthYear(time.Now().UTC()), "billing month to generate, format YYYY-MM")
	division := flag.String("division", "", "restrict the run to one division id")
	financer := flag.String("financer", "", "restrict the run to one financer id")
	dryRun := flag.Bool("dry-run", false, "compute invoices without persisting them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	events, err := eventstore.NewGormStore(db)
	if err != nil {
		logger.Fatal("event store initialization failed", zap.Error(err))
	}

	locker, err := infraredis.NewRedisLocker(rdb, time.Duration(cfg.LockTTLSeconds)*time.Second)
	if err != nil {
		logger.Fatal("locker initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	prorata := billing.NewProrataCalculator(infraredis.NewRedisCache(rdb, logger), logger)

	batchService, err := service.NewBatchService(
		repository.NewGormInvoiceRepo(db),
		repository.NewGormBatchRepo(db),
		repository.NewGormCreditRepo(db),
		repository.NewGormRecipientDirectory(db),
		events,
		locker,
		billing.NewStrategyFactory(logger),
		prorata,
		cfg.WorkerConcurrency,
		cfg.DryRunPersistEvents,
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("batch service initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params := service.ExecuteParams{
		MonthYear: *month,
		DryRun:    *dryRun,
	}
	if *division != "" {
		params.DivisionID = division
	}
	if *financer != "" {
		params.FinancerID = financer
	}

	summary, err := batchService.Execute(ctx, params)
	if err != nil {
		logger.Error("batch run failed", zap.Error(err))
		os.Exit(1)
	}

	for recipientID, message := range summary.Failures {
		logger.Warn("recipient failed",
			zap.String("recipientId", recipientID),
			zap.String("error", message),
		)
	}

	fmt.Printf("batch %s month %s status %s total %d succeeded %d failed %d skipped %d\n",
		summary.BatchID, summary.MonthYear, summary.Status,
		summary.TotalInvoices, summary.SucceededCount, summary.FailedCount, summary.SkippedCount)

	if summary.Status == domain.BatchStatusFailed {
		os.Exit(1)
	}
}
