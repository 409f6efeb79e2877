package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/adamanr/unit_service/internal/api/http"
	"github.com/adamanr/unit_service/internal/config"
	"github.com/adamanr/unit_service/internal/controllers"
	"github.com/adamanr/unit_service/internal/database"
	"github.com/adamanr/unit_service/internal/metrics"
	"github.com/adamanr/unit_service/internal/upstream"
	logging "github.com/adamanr/unit_service/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultLogFile  = "server.log"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logger, err := logging.SetupLogger(defaultLogFile, slog.LevelInfo)
	if err != nil {
		log.Fatal("Failed to setup logger:", err)
		return
	}
	slog.SetDefault(logger)

	cfg, err := config.GetConfig(logger)
	if err != nil {
		log.Fatal("Failed to load config:", err)
		return
	}

	if cfg.Server.LogFile != defaultLogFile {
		if logger, err = logging.SetupLogger(cfg.Server.LogFile, slog.LevelInfo); err != nil {
			log.Fatal("Failed to setup logger:", err)
			return
		}
		slog.SetDefault(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, redisErr := database.NewRedisConn(ctx, cfg, logger)
	if redisErr != nil {
		log.Fatal("Failed to connect to Redis:", redisErr)
		return
	}
	defer rdb.Close()

	client, clientErr := upstream.New(upstream.Options{
		BaseURL:             cfg.Upstream.BaseURL,
		CertDir:             cfg.Upstream.CertDir,
		RequireServerVerify: cfg.Upstream.RequireServerVerify,
		Timeout:             cfg.Upstream.Timeout,
	}, logger)
	if clientErr != nil {
		log.Fatal("Failed to create upstream client:", clientErr)
		return
	}

	deps := &controllers.Dependens{
		Redis:    rdb,
		Upstream: client,
		Logger:   logger,
		Config:   cfg,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
	}

	if cfg.Database.Host != "" {
		db, dbErr := database.NewConnect(ctx, cfg, logger)
		if dbErr != nil {
			logger.Error("Failed to connect to database", slog.Any("error", dbErr))
			return
		}
		defer db.Close()

		deps.DB = db
	}

	server := api.NewServer(deps)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(logger))
	r.Use(deps.Metrics.Middleware)
	r.Use(server.AuthMiddleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/public/health", server.Health)

	h := api.HandlerWithOptions(server, api.ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: server.ParamError,
	})

	s := &http.Server{
		Handler:           h,
		Addr:              cfg.Server.Host,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Server is starting",
		slog.String("address", cfg.Server.Host),
		slog.String("units_source", cfg.Units.Source),
		slog.String("upstream", cfg.Upstream.BaseURL),
	)

	if err = s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server stopped", slog.String("error", err.Error()))
		return
	}

	logger.Info("Server stopped")
}
