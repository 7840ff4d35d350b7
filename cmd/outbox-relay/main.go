package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/logger"
	"github.com/Niiaks/ticketcore/internal/outbox"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewWorkerLogger(cfg.Observability, loggerService, "outbox-relay")

	log.Info().
		Int("batch_size", cfg.Outbox.BatchSize).
		Dur("interval", cfg.Outbox.Interval).
		Strs("brokers", cfg.Kafka.Brokers).
		Msg("Starting Outbox Relay...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.DefaultConfig(cfg.Kafka.Brokers), &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka producer")
	}
	defer producer.Close()

	relay := outbox.NewRelay(db.Pool, producer, cfg.Outbox, &log)

	// The relay runs as its own process, so it serves its own outbox counters.
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{Addr: cfg.Outbox.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Start(gctx)
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Outbox Relay stopped with error")
	}
	log.Info().Msg("Outbox Relay shutdown complete")
}
