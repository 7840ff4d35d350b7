package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Niiaks/ticketcore/internal/alert"
	"github.com/Niiaks/ticketcore/internal/catalog"
	"github.com/Niiaks/ticketcore/internal/checkout"
	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/inventory"
	"github.com/Niiaks/ticketcore/internal/logger"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/psp"
	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/Niiaks/ticketcore/internal/reservation"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewWorkerLogger(cfg.Observability, loggerService, "sweeper")

	log.Info().Msg("Starting Sweeper Worker...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	rdb, err := redis.New(&log, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis")
	}
	defer rdb.Close()

	mongoClient, events, err := catalog.Connect(context.Background(), cfg.Mongo, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event catalog")
	}
	defer mongoClient.Disconnect(context.Background()) //nolint:errcheck

	reservations := reservation.NewReservationService(reservation.NewReservationRepository(db.Pool), cfg.Checkout.ReservationTTL, cfg.Checkout.ExpiryGrace)
	checkouts := checkout.NewCheckoutService(checkout.NewCheckoutRepository(db.Pool), reservations, psp.NewStripeClient(cfg.Stripe), rdb, cfg.Checkout, cfg.Stripe.Currency)
	inventoryService := inventory.NewInventoryService(inventory.NewInventoryRepository(db.Pool), events, cfg.Stripe.Currency)
	alerts := alert.NewAlertService(alert.NewAlertRepository(db.Pool), inventoryService, events)

	s := &sweeper{
		lock: func(ctx context.Context, key string, ttl time.Duration) (func(), error) {
			l, err := rdb.AcquireLock(ctx, key, ttl)
			if err != nil {
				return nil, err
			}
			return func() { _ = l.Release(context.Background()) }, nil
		},
		lockTTL: cfg.Sweeper.LockTTL,
		now:     time.Now,
		log:     &log,
	}

	ctx, cancel := context.WithCancel(middleware.WithLogger(context.Background(), &log))
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.every(gctx, "reservations", cfg.Sweeper.ReservationInterval, func(ctx context.Context, now time.Time) (int, error) {
			sessions, err := checkouts.SweepExpired(ctx, now)
			if err != nil {
				return sessions, err
			}
			held, err := reservations.ExpireDue(ctx, now)
			return sessions + held, err
		})
	})
	g.Go(func() error {
		return s.every(gctx, "alerts", cfg.Sweeper.AlertInterval, func(ctx context.Context, _ time.Time) (int, error) {
			return alerts.Evaluate(ctx)
		})
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Sweeper Worker...")
	cancel()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("sweeper stopped with error")
	}

	log.Info().Msg("Sweeper Worker shutdown complete")
}
