package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/api/rest"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/api/websocket"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/infrastructure/config"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/infrastructure/telemetry"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/metrics"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/service/streaming"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
		anomalyRate = flag.Float64("anomaly-rate", 0.05, "Injected anomaly probability for the synthetic source")
	)
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *anomalyRate); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, anomalyRate float64) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meters, err := metrics.NewRegistry("profitpulse-anomaly")
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	var hub streaming.Broadcaster
	var wsHandler *websocket.Handler
	if cfg.Streaming.EnableWebsocket {
		wsHandler = websocket.NewHandler(logger)
		wsHandler.Start(ctx)
		defer wsHandler.Stop()
		hub = wsHandler.Hub()
	}

	source := streaming.NewSyntheticSource(cfg.Detector.Seed, anomalyRate)
	svc, err := streaming.NewService(cfg, source, hub, meters, logger)
	if err != nil {
		return fmt.Errorf("building streaming service: %w", err)
	}

	svc.Start(ctx)
	defer svc.Stop()

	mux := http.NewServeMux()
	rest.NewHandler(svc, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", MetricsHandler())

	var wsServer *http.Server
	if wsHandler != nil {
		wsMux := http.NewServeMux()
		wsMux.HandleFunc("GET /ws/alerts", wsHandler.HandleAlertEvents)
		wsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Streaming.WebsocketPort),
			Handler: wsMux,
		}
		go func() {
			logger.Info("websocket server listening", zap.Int("port", cfg.Streaming.WebsocketPort))
			if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("websocket server failed", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      InstrumentHTTPHandler("api", mux.ServeHTTP),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if wsServer != nil {
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("websocket shutdown incomplete", zap.Error(err))
		}
	}

	return nil
}
