package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.Equal(t, "1", cfg.Fees.PixPercentage)
	assert.Equal(t, "4.49", cfg.Fees.CardPercentage)
	assert.Equal(t, 14*24*time.Hour, cfg.Settlement.CardReleaseWindow)
	assert.Equal(t, int64(9000), cfg.Settlement.MinWithdrawal)
	assert.Equal(t, 5, cfg.Inventory.MaxRetries)
	assert.Equal(t, 10000, cfg.Inventory.CourtesyCapacity)
	assert.False(t, cfg.Fulfillment.AllOrNothing)
	assert.Equal(t, "payments.confirmed", cfg.Kafka.PaymentsTopic)
	assert.Equal(t, "tickets.issued", cfg.Kafka.TicketsTopic)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SETTLEMENT_CARD_RELEASE_WINDOW", "360h")
	t.Setenv("FULFILLMENT_ALL_OR_NOTHING", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("INVENTORY_MAX_RETRIES", "not-a-number")
	t.Setenv("DB_HOST", "db")

	cfg := Load()

	assert.Equal(t, 15*24*time.Hour, cfg.Settlement.CardReleaseWindow)
	assert.True(t, cfg.Fulfillment.AllOrNothing)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Inventory.MaxRetries)
	assert.Contains(t, cfg.Database.DSN, "host=db ")
}
