package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/guildmind-backend/internal/data/db"
	"github.com/yungbote/guildmind-backend/internal/data/repos"
	"github.com/yungbote/guildmind-backend/internal/gateway"
	"github.com/yungbote/guildmind-backend/internal/ingest"
	"github.com/yungbote/guildmind-backend/internal/jobs/pipeline"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/jobs/worker"
	"github.com/yungbote/guildmind-backend/internal/observability"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/reconciler"
	"github.com/yungbote/guildmind-backend/internal/sessionizer"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Repos    repos.All
	Services Services
	Metrics  *observability.Metrics

	worker     *worker.Worker
	ingestor   *ingest.Ingestor
	reconciler *reconciler.Reconciler

	cancel          context.CancelFunc
	metricsShutdown func(context.Context) error
	otelShutdown    func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "guildmind",
		Environment: os.Getenv("ENVIRONMENT"),
		Version:     os.Getenv("SERVICE_VERSION"),
	})
	metrics, metricsShutdown, err := observability.NewMetrics(ctx, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	// Postgres
	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}

	// Clients
	clientset, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	// Repos
	reposet := repos.New(theDB, log)

	// Services
	serviceset, err := wireServices(log, cfg, clientset, reposet)
	if err != nil {
		clientset.Close()
		log.Sync()
		return nil, err
	}

	// Worker pipeline
	registry := runtime.NewRegistry()
	pipelineCfg := pipeline.Config{
		SessionWindow: cfg.SessionWindow,
		BackfillPage:  cfg.BackfillPage,
		Session: sessionizer.Params{
			Gap:         cfg.SessionTimeGap,
			MaxTokens:   cfg.SessionMaxTokens,
			MinMessages: cfg.SessionMinMessages,
		},
		Refine: sessionizer.RefineParams{
			ThresholdMessages: cfg.RefineThresholdMessages,
			Percentile:        cfg.RefinePercentile,
			MinMessages:       cfg.SessionMinMessages,
		},
		MaxTextBytes:      cfg.MaxTextBytes,
		MaxPDFBytes:       cfg.MaxPDFBytes,
		MaxImageBytes:     cfg.MaxImageBytes,
		BlockedExtensions: cfg.BlockedExtensions,
		ChunkMaxTokens:    cfg.SessionMaxTokens,
		ChunkMinTokens:    cfg.ChunkMinTokens,
	}
	if err := pipeline.RegisterAll(registry, pipeline.Deps{
		Log:       log,
		Repos:     reposet,
		Store:     clientset.VectorStore,
		Embedder:  serviceset.Embedder,
		Enqueue:   serviceset.Enqueuer,
		Fetcher:   serviceset.Fetcher,
		Captioner: serviceset.Captioner,
		Cfg:       pipelineCfg,
	}); err != nil {
		clientset.Close()
		log.Sync()
		return nil, fmt.Errorf("register pipeline handlers: %w", err)
	}

	jobWorker := worker.NewWorker(theDB, log, reposet.Jobs, registry, metrics, worker.Config{
		Concurrency:       cfg.WorkerConcurrency,
		VisibilityTimeout: cfg.VisibilityTimeout,
		MaxAttempts:       cfg.JobMaxAttempts,
		BackoffBase:       cfg.JobBackoffBase,
		BackoffCap:        cfg.JobBackoffCap,
	})

	rec := reconciler.New(log, reposet, clientset.VectorStore, serviceset.Embedder, serviceset.Enqueuer, metrics, reconciler.Config{
		Interval:   cfg.ReconcilerInterval,
		BatchLimit: cfg.ReconcilerBatch,
	})

	ingestor := ingest.NewIngestor(log, reposet, serviceset.Enqueuer, metrics)

	handlerset := wireHandlers(log, serviceset)
	router := wireRouter(log, handlerset)

	return &App{
		Log:             log,
		DB:              theDB,
		Router:          router,
		Cfg:             cfg,
		Clients:         clientset,
		Repos:           reposet,
		Services:        serviceset,
		Metrics:         metrics,
		worker:          jobWorker,
		ingestor:        ingestor,
		reconciler:      rec,
		metricsShutdown: metricsShutdown,
		otelShutdown:    otelShutdown,
	}, nil
}

// Start launches the background roles selected for this process.
func (a *App) Start(runWorker, runIngestor, runReconciler bool) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if runWorker {
		a.worker.Start(ctx)
	}
	if runReconciler {
		go a.reconciler.Run(ctx)
	}
	if runIngestor {
		if a.Clients.GatewayBus == nil {
			cancel()
			a.cancel = nil
			return fmt.Errorf("ingestor role requires REDIS_ADDR")
		}
		if err := a.Clients.GatewayBus.StartConsumer(ctx, func(ev gateway.Event) {
			a.ingestor.Handle(ctx, ev)
		}); err != nil {
			cancel()
			a.cancel = nil
			return fmt.Errorf("start gateway consumer: %w", err)
		}
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.Clients.Close()
	ctx := context.Background()
	if a.metricsShutdown != nil {
		_ = a.metricsShutdown(ctx)
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
