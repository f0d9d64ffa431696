package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/cv-ingest/internal/async"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/export"
	"github.com/joseph-ayodele/cv-ingest/internal/ingest"
	"github.com/joseph-ayodele/cv-ingest/internal/llm"
	"github.com/joseph-ayodele/cv-ingest/internal/llm/openai"
	"github.com/joseph-ayodele/cv-ingest/internal/metrics"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
	repo "github.com/joseph-ayodele/cv-ingest/internal/repository"
	"github.com/joseph-ayodele/cv-ingest/internal/server"
)

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; extractions will fail until it is configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Connect(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	researchers := repo.NewResearcherRepository(db, logger)

	model := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.AttemptTimeout + 10*time.Second,
	}, logger)
	executor := llm.NewExecutor(model, llm.ExecutorConfig{
		AttemptTimeout: cfg.LLM.AttemptTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryDelay:     cfg.LLM.RetryDelay,
	}, logger)
	processor := pipeline.NewProcessor(pipeline.Config{
		Model:         model.Model(),
		MaxInputChars: cfg.LLM.MaxInputChars,
		MaxPages:      cfg.Server.MaxPages,
	}, executor, researchers, m, logger)

	// gRPC health for orchestrators
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc.start", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
		}
	}()

	// Watch folders feed the worker queue.
	var queue *async.ProcessorQueue
	if len(cfg.Ingest.WatchDirs) > 0 {
		ingestor := ingest.NewIngestor(processor, 1, logger)
		queue = async.NewProcessorQueue(ingestor, logger,
			async.WithWorkers(cfg.Ingest.Workers),
			async.WithQueueSize(cfg.Ingest.QueueSize),
			async.WithProcessTimeout(cfg.Ingest.JobTimeout),
		)
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:      cfg.Ingest.WatchDirs,
			Debounce:   cfg.Ingest.Debounce,
			SkipHidden: true,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			for err := range errs {
				logger.Warn("watcher.error", "error", err)
			}
		}()
		go queue.Feed(ctx, paths)
	}

	httpServer := server.NewServer(server.Deps{
		Runner:      processor,
		Researchers: researchers,
		Exporter:    export.NewService(researchers, logger),
		Health: func(ctx context.Context) error {
			return repo.HealthCheck(ctx, db, 2*time.Second, logger)
		},
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, server.Config{
		Addr:           cfg.Server.HTTPAddr,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		StreamTimeout:  cfg.Stream.Timeout,
		Heartbeat:      cfg.Stream.Heartbeat,
	}, logger)

	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
}
