package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TIX_ENV", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.1", cfg.Checkout.CommissionRate.String())
	assert.Equal(t, 30*time.Minute, cfg.Checkout.ReservationTTL)
	assert.Equal(t, 48*time.Hour, cfg.Checkout.DisputeWindow)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
	assert.Equal(t, "postgres://ticketcore:@localhost:5432/ticketcore?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, OutboxConfig{BatchSize: 100, Interval: time.Second, MaxRetries: 10, MetricsAddr: ":9101"}, cfg.Outbox)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("TIX_COMMISSION_RATE", "0.12")
	t.Setenv("TIX_RESERVATION_TTL", "45m")
	t.Setenv("TIX_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.12", cfg.Checkout.CommissionRate.String())
	assert.Equal(t, 45*time.Minute, cfg.Checkout.ReservationTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_RejectsEmptyOutboxBatch(t *testing.T) {
	t.Setenv("TIX_OUTBOX_BATCH_SIZE", "0")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_RejectsBadCommission(t *testing.T) {
	t.Setenv("TIX_COMMISSION_RATE", "1.5")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_ProductionNeedsSecrets(t *testing.T) {
	t.Setenv("TIX_ENV", "production")
	t.Setenv("TIX_JWT_SECRET", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "TIX_JWT_SECRET")
}
