package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "KAFKA_BROKERS", "STORAGE", "OPERATION_TIMEOUT", "DEFAULT_MARGIN_PERCENT", "RESERVE_CAPITAL_ON_CREATE"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, ":8081", c.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, c.KafkaBrokers)
	assert.Equal(t, "postgres", c.Storage)
	assert.Equal(t, 10*time.Second, c.OperationTimeout)
	assert.Equal(t, "10", c.DefaultMarginPercent.String())
	assert.True(t, c.ReserveCapitalOnCreate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORAGE", "Memory")
	t.Setenv("OPERATION_TIMEOUT", "3s")
	t.Setenv("DEFAULT_MARGIN_PERCENT", "12.5")
	t.Setenv("RESERVE_CAPITAL_ON_CREATE", "false")
	t.Setenv("AUDIT_WORKERS", "nope")

	c := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, "memory", c.Storage)
	assert.Equal(t, 3*time.Second, c.OperationTimeout)
	assert.Equal(t, "12.5", c.DefaultMarginPercent.String())
	assert.False(t, c.ReserveCapitalOnCreate)
	assert.Equal(t, 4, c.AuditWorkers)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("STORAGE", "mongo")
	t.Setenv("DEFAULT_MARGIN_PERCENT", "150")

	err := Load().Validate(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STORAGE")
	assert.Contains(t, err.Error(), "DEFAULT_MARGIN_PERCENT")

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("STORAGE", "memory")
	t.Setenv("DEFAULT_MARGIN_PERCENT", "")
	assert.NoError(t, Load().Validate(true))
	t.Setenv("JWT_SECRET", "")
	assert.NoError(t, Load().Validate(false))
}
