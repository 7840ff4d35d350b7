package kafka

import (
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic names used by the relay and the workers
const (
	TopicOrders   = "ticketcore.orders"
	TopicPayouts  = "ticketcore.payouts"
	TopicDisputes = "ticketcore.disputes"
	TopicAlerts   = "ticketcore.alerts"

	TopicDLQ = "ticketcore.dlq"
)

// Event types written to the outbox
const (
	EventOrderCompleted  = "order.completed"
	EventPayoutCreated   = "payout.created"
	EventPayoutCompleted = "payout.completed"
	EventDisputeOpened   = "dispute.opened"
	EventDisputeRefunded = "dispute.refunded"
	EventDisputeClosed   = "dispute.closed"
	EventAlertTriggered  = "alert.triggered"
)

// HeaderEventType carries the outbox event type on every record.
const HeaderEventType = "event_type"

// HeaderCorrelationID carries the originating request id.
const HeaderCorrelationID = "correlation_id"

// ConsumerGroup names for different Kafka consumers
const (
	GroupNotifyWorker = "ticketcore.notify.worker"
)

// TopicFor routes an outbox event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCompleted:
		return TopicOrders
	case EventPayoutCreated, EventPayoutCompleted:
		return TopicPayouts
	case EventDisputeOpened, EventDisputeRefunded, EventDisputeClosed:
		return TopicDisputes
	case EventAlertTriggered:
		return TopicAlerts
	default:
		return TopicDLQ
	}
}

type Config struct {
	Brokers           []string
	ProducerTimeout   time.Duration
	RequiredAcks      kgo.Acks
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxPollRecords    int
	MaxRetries        int
	RetryBackoff      time.Duration
}

func DefaultConfig(brokers []string) *Config {
	return &Config{
		Brokers:           brokers,
		ProducerTimeout:   10 * time.Second,
		RequiredAcks:      kgo.AllISRAcks(),
		SessionTimeout:    10 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		MaxPollRecords:    100,
		MaxRetries:        5,
		RetryBackoff:      1 * time.Second,
	}
}
