package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-meet/internal/config"
	"github.com/weiawesome/wes-meet/internal/events"
	"github.com/weiawesome/wes-meet/internal/handler"
	"github.com/weiawesome/wes-meet/internal/hub"
	"github.com/weiawesome/wes-meet/internal/service"
	"github.com/weiawesome/wes-meet/internal/store"
	pkglog "github.com/weiawesome/wes-meet/pkg/log"
	"github.com/weiawesome/wes-meet/pkg/pubsub"
	"golang.org/x/sync/errgroup"
)

// newBroker is swapped in tests.
var newBroker = pubsub.NewBroker

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "meet-service"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	logger := pkglog.L()
	if err != nil {
		logger.Error().Err(err).Msg("meet-service exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("meet-service stopped")
}

// run serves until ctx is done or the server fails. The event broker is
// closed on every return path so queued messages are flushed.
func run(ctx context.Context, cfg *config.Config) error {
	logger := pkglog.L()
	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting meet-service")

	// Lifecycle events are optional; the coordinator works without a bus.
	broker, err := newBroker(cfg.Events.Config, events.Topics(cfg.Events.ChannelPrefix)...)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event broker, lifecycle events disabled")
		broker = pubsub.NopBroker{}
	} else if cfg.Events.Driver != pubsub.DriverNone && cfg.Events.Driver != "" {
		logger.Info().Str("driver", cfg.Events.Driver).Msg("lifecycle events enabled")
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event broker")
		}
	}()
	producer := events.NewProducer(broker, cfg.Events.ChannelPrefix, cfg.Events.BufferSize)

	// Initialize coordinator
	wsHub := hub.NewHub(cfg.WebSocket)
	roomStore := store.New(cfg.Room.MaxHistory)
	signalSvc := service.NewSignalService(wsHub, roomStore, producer)

	// Setup HTTP server
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handler.NewRouter(
		logger,
		cfg.Server.TrustedProxies,
		handler.NewWSHandler(wsHub, signalSvc),
		handler.NewHTTPHandler(signalSvc, cfg.WebRTC.ICEServers, cfg.Static.Dir),
	)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return producer.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("meet-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down meet-service")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}
