package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "STARTING_BALANCE", "TURN_TIMEOUT_SECONDS", "PAYOUT_ALERT_THRESHOLD"} {
		t.Setenv(k, "")
	}

	c := Load()

	assert.Equal(t, DriverPostgres, c.StoreDriver)
	assert.True(t, decimal.NewFromInt(1000).Equal(c.StartingBalance))
	assert.Equal(t, 30*time.Second, c.TurnTimeout)
	assert.Equal(t, "socket.service", c.SocketTopic)
	assert.Equal(t, "game.service", c.GameTopic)
}

func TestLoadOverridesAndBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverMemory)
	t.Setenv("STARTING_BALANCE", "250.50")
	t.Setenv("TURN_TIMEOUT_SECONDS", "nope")
	t.Setenv("PAYOUT_ALERT_THRESHOLD", "-5")

	c := Load()

	assert.Equal(t, DriverMemory, c.StoreDriver)
	assert.True(t, decimal.RequireFromString("250.50").Equal(c.StartingBalance))
	assert.Equal(t, 30*time.Second, c.TurnTimeout)
	assert.True(t, decimal.NewFromInt(500).Equal(c.PayoutAlertThreshold))
}
