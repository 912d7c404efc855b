package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ksred/klear-trading/internal/api"
	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/database"
	"github.com/ksred/klear-trading/internal/events"
)

// setupLogging configures the global logger. Outside production it pretty
// prints with timestamps.
func setupLogging(cfg *config.Config) {
	if !cfg.IsProduction() {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
}

// main runs the trading API and the outbox relay until SIGINT or SIGTERM
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg)

	db, err := database.Open(cfg.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	var sink events.Sink = events.LogSink{}
	if len(cfg.Events.Brokers) > 0 {
		sink = events.NewKafkaSink(cfg.Events.Brokers, cfg.Events.Topic)
	}
	defer sink.Close()
	relay := events.NewRelay(db, sink, cfg.Events.RelayInterval, cfg.Events.BatchSize, cfg.Events.MaxAttempts)

	server := api.New(cfg, db)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info().
			Str("port", cfg.Server.Port).
			Str("pricing_mode", cfg.Pricing.Mode).
			Int("kafka_brokers", len(cfg.Events.Brokers)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return relay.Start(gctx)
	})
	g.Go(func() error {
		return server.Limiter.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("Shutting down server...")

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zlog.Fatal().Err(err).Msg("Server stopped with error")
	}

	zlog.Info().Msg("Server exiting")
}
