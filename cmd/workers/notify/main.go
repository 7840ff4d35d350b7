package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/logger"
	"github.com/Niiaks/ticketcore/internal/notify"
	"github.com/Niiaks/ticketcore/internal/user"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewWorkerLogger(cfg.Observability, loggerService, "notify")

	log.Info().Msg("Starting Notify Worker...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	kcfg := kafka.DefaultConfig(cfg.Kafka.Brokers)

	producer, err := kafka.NewProducer(kcfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka producer")
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(kcfg, &log, kafka.GroupNotifyWorker,
		kafka.TopicOrders, kafka.TopicPayouts, kafka.TopicDisputes, kafka.TopicAlerts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}
	defer consumer.Close()
	consumer.OnDeadLetter(deadLetter(producer, &log))

	var mailer notify.Mailer
	if cfg.Notify.ResendAPIKey != "" {
		mailer = notify.NewResendMailer(cfg.Notify)
	} else {
		log.Warn().Msg("TIX_RESEND_API_KEY not set, emails disabled")
	}
	var pusher notify.Pusher
	if cfg.PubNub.PublishKey != "" {
		pusher = notify.NewPubNubPusher(cfg.PubNub)
	} else {
		log.Warn().Msg("TIX_PUBNUB_PUBLISH_KEY not set, realtime pushes disabled")
	}

	notifier := notify.NewNotifier(mailer, pusher, user.NewUserRepository(db.Pool), cfg.Notify.FrontendURL, &log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Run(ctx, notifier.Handle); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Notify consumer stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Notify Worker...")
	cancel()

	log.Info().Msg("Notify Worker shutdown complete")
}

// deadLetter parks records that kept failing on the DLQ topic with the
// failure attached.
func deadLetter(producer *kafka.Producer, log *zerolog.Logger) kafka.DeadLetter {
	return func(ctx context.Context, msg *kafka.Message, cause error) {
		headers := make(map[string]string, len(msg.Headers)+2)
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers["dlq_source_topic"] = msg.Topic
		headers["dlq_error"] = cause.Error()

		err := producer.PublishOne(ctx, kafka.Record{Topic: kafka.TopicDLQ, Key: msg.Key, Value: msg.Value, Headers: headers})
		if err != nil {
			log.Error().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("failed to publish to DLQ")
		}
	}
}
