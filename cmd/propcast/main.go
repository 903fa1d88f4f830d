// Command propcast runs the prediction pipeline: trigger ingestion,
// batch coordination, the scoring worker pool, periodic weight
// recomputation, and the HTTP query surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/courtside/propcast/internal/adapters/http"
	"github.com/courtside/propcast/internal/config"
	"github.com/courtside/propcast/internal/engine"
	"github.com/courtside/propcast/internal/ports"

	"github.com/courtside/propcast/infrastructure/featurestore"
	"github.com/courtside/propcast/infrastructure/middleware"
	"github.com/courtside/propcast/infrastructure/models"
	"github.com/courtside/propcast/infrastructure/queue"
	"github.com/courtside/propcast/infrastructure/storage"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := middleware.NewPrometheusMetrics()

	var (
		results ports.ResultStore
		batches ports.BatchStore
		ledger  ports.IdempotencyLedger
		weights ports.WeightStore
	)
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		defer client.Close()
		store := storage.NewRedisStore(client)
		results, batches, ledger, weights = store, store, store, store
	default:
		store := storage.NewMemoryStore()
		results, batches, ledger, weights = store, store, store, store
	}

	if cfg.PostgresDSN == "" {
		return errors.New("postgres_dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	features := featurestore.NewPostgresStore(pool, logger)

	workQueue := queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueCapacity))
	defer workQueue.Close() //nolint:errcheck

	methods, err := buildMethods(cfg, logger)
	if err != nil {
		return err
	}

	aggConfig := engine.DefaultAggregatorConfig()
	aggConfig.ConfidenceBlend = cfg.ConfidenceBlend
	aggConfig.MinEdge = cfg.MinEdge
	aggConfig.LowAgreement = cfg.LowAgreement
	aggregator, err := engine.NewAggregator(aggConfig)
	if err != nil {
		return err
	}
	selector, err := engine.NewChampionSelector(engine.DefaultChampionConfig())
	if err != nil {
		return err
	}

	coordConfig := engine.DefaultCoordinatorConfig()
	coordConfig.BatchDeadline = cfg.BatchDeadline
	coordConfig.DispatchRate = cfg.DispatchRate
	coordConfig.DispatchBurst = cfg.DispatchBurst
	coordinator, err := engine.NewCoordinator(batches, ledger, workQueue, features, logger, metrics, coordConfig)
	if err != nil {
		return err
	}

	worker, err := engine.NewWorker(methods, aggregator, selector,
		features, results, batches, weights, coordinator,
		logger, metrics, engine.DefaultWorkerConfig())
	if err != nil {
		return err
	}
	workerPool, err := engine.NewPool(workQueue, worker, cfg.WorkerCount, logger)
	if err != nil {
		return err
	}

	updaterConfig := engine.DefaultWeightUpdaterConfig()
	updaterConfig.Window = time.Duration(cfg.WeightWindowDays) * 24 * time.Hour
	updaterConfig.MinSamples = cfg.WeightMinSamples
	updaterConfig.Interval = cfg.WeightInterval
	updater, err := engine.NewWeightUpdater(features, weights, logger, metrics, updaterConfig)
	if err != nil {
		return err
	}

	handler := httpapi.New(httpapi.Config{
		Batches: coordinator,
		Results: results,
		Weights: weights,
		Updater: updater,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return workerPool.Run(ctx) })
	g.Go(func() error {
		coordinator.Run(ctx)
		return nil
	})
	g.Go(func() error {
		updater.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("propcast started",
		zap.String("store_backend", cfg.StoreBackend),
		zap.Int("workers", cfg.WorkerCount))

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildMethods(cfg *config.Config, logger *zap.Logger) ([]ports.ScoringMethod, error) {
	baseline, err := models.NewBaselineMethod(models.DefaultBaselineConfig())
	if err != nil {
		return nil, err
	}
	zone, err := models.NewZoneMatchupMethod(models.DefaultZoneMatchupConfig())
	if err != nil {
		return nil, err
	}
	similarity, err := models.NewSimilarityMethod(models.DefaultSimilarityConfig())
	if err != nil {
		return nil, err
	}

	var predictor ports.Predictor
	if cfg.ModelArtifactPath != "" {
		predictor, err = models.LoadArtifactPredictor(cfg.ModelArtifactPath)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no model artifact configured, learned method will abstain")
		predictor = models.UnavailablePredictor{}
	}
	learned, err := models.NewLearnedMethod(models.DefaultLearnedConfig(), predictor)
	if err != nil {
		return nil, err
	}

	return []ports.ScoringMethod{baseline, zone, similarity, learned}, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	return zapConfig.Build()
}
