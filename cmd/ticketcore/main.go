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
	"github.com/Niiaks/ticketcore/internal/dispute"
	"github.com/Niiaks/ticketcore/internal/inventory"
	"github.com/Niiaks/ticketcore/internal/logger"
	"github.com/Niiaks/ticketcore/internal/order"
	"github.com/Niiaks/ticketcore/internal/payout"
	"github.com/Niiaks/ticketcore/internal/psp"
	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/Niiaks/ticketcore/internal/reservation"
	"github.com/Niiaks/ticketcore/internal/router"
	"github.com/Niiaks/ticketcore/internal/server"
	"github.com/Niiaks/ticketcore/internal/user"
	"github.com/Niiaks/ticketcore/internal/webhook"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	rdb, err := redis.New(&log, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}
	defer rdb.Close()

	mongoClient, events, err := catalog.Connect(context.Background(), cfg.Mongo, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event catalog")
	}
	defer mongoClient.Disconnect(context.Background()) //nolint:errcheck

	srv, err := server.NewServer(cfg, &log, loggerService, db, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	userRepo := user.NewUserRepository(db.Pool)
	inventoryRepo := inventory.NewInventoryRepository(db.Pool)
	reservationRepo := reservation.NewReservationRepository(db.Pool)
	checkoutRepo := checkout.NewCheckoutRepository(db.Pool)
	webhookRepo := webhook.NewWebhookRepository(db.Pool)
	orderRepo := order.NewOrderRepository(db.Pool)
	payoutRepo := payout.NewPayoutRepository(db.Pool)
	disputeRepo := dispute.NewDisputeRepository(db.Pool)
	alertRepo := alert.NewAlertRepository(db.Pool)

	stripe := psp.NewStripeClient(cfg.Stripe)

	userService := user.NewUserService(userRepo)
	inventoryService := inventory.NewInventoryService(inventoryRepo, events, cfg.Stripe.Currency)
	reservationService := reservation.NewReservationService(reservationRepo, cfg.Checkout.ReservationTTL, cfg.Checkout.ExpiryGrace)
	checkoutService := checkout.NewCheckoutService(checkoutRepo, reservationService, stripe, rdb, cfg.Checkout, cfg.Stripe.Currency)
	orderService := order.NewOrderService(orderRepo, events)
	payoutService := payout.NewPayoutService(payoutRepo, rdb, cfg.Checkout.IdempotencyTTL)
	disputeService := dispute.NewDisputeService(disputeRepo, cfg.Checkout.DisputeWindow)
	alertService := alert.NewAlertService(alertRepo, inventoryService, events)

	inventoryService.Observe(alertService)

	handlers := &router.Handlers{
		User:      user.NewUserHandler(userService),
		Inventory: inventory.NewInventoryHandler(inventoryService),
		Checkout:  checkout.NewCheckoutHandler(checkoutService, cfg.Checkout.CreateTimeout, cfg.Checkout.StatusTimeout),
		Webhook:   webhook.NewWebhookHandler(cfg.Stripe.WebhookSecret, webhookRepo, checkoutService),
		Order:     order.NewOrderHandler(orderService),
		Payout:    payout.NewPayoutHandler(payoutService),
		Dispute:   dispute.NewDisputeHandler(disputeService),
		Alert:     alert.NewAlertHandler(alertService),
	}

	r := router.NewRouter(srv, handlers, router.Deps{
		Identities:  userRepo,
		RateLimiter: rdb,
	})

	srv.SetupHTTPServer(r)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
