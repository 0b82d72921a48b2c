package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("info"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("bogus"))
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	assert.Equal(t, uint(115200), cfg.BaudRate)
	assert.Equal(t, "Europe/Vilnius", cfg.Timezone)
	assert.Equal(t, "lt", cfg.PriceArea)
	assert.Equal(t, 0.20, cfg.PriceThreshold)
	assert.Equal(t, 10, cfg.StatePollSeconds)
	assert.Equal(t, 55, cfg.ActuateIntervalSeconds)
	assert.Equal(t, 5000, cfg.HTTPPort)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{PriceThreshold: 0.35, StatePollSeconds: 30}
	cfg.applyDefaults()

	assert.Equal(t, 0.35, cfg.PriceThreshold)
	assert.Equal(t, 30, cfg.StatePollSeconds)
}

func TestValidateResolvesLocation(t *testing.T) {
	cfg := Config{Timezone: "Europe/Vilnius"}
	cfg.applyDefaults()
	cfg.validate()

	require.NotNil(t, cfg.Location)
	assert.Equal(t, "Europe/Vilnius", cfg.Location.String())
}

func TestValidatePanicsOnBadTimezone(t *testing.T) {
	cfg := Config{Timezone: "Mars/Olympus_Mons"}
	cfg.applyDefaults()

	assert.Panics(t, func() { cfg.validate() })
}

func TestValidatePanicsOnNegativeThreshold(t *testing.T) {
	cfg := Config{PriceThreshold: -0.1}
	cfg.applyDefaults()

	assert.Panics(t, func() { cfg.validate() })
}

func TestValidatePanicsOnOversizedActuateInterval(t *testing.T) {
	cfg := Config{ActuateIntervalSeconds: 7200}
	cfg.applyDefaults()

	assert.Panics(t, func() { cfg.validate() })
}
