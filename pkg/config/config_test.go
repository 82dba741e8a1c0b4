package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(8), cfg.RatingDelta)
	assert.Equal(t, int64(1000), cfg.DefaultRating)
	assert.Equal(t, 10, cfg.DefaultMinutes)
	assert.Equal(t, 0, cfg.DefaultIncrement)
	assert.False(t, cfg.SwapColorsOnRematch)
	assert.Equal(t, time.Second, cfg.ClockTick)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_KEYS", "key-one, key-two, ")
	t.Setenv("RATING_DELTA", "16")
	t.Setenv("DEFAULT_RATING", "1200")
	t.Setenv("TIME_CONTROL", "5+3")
	t.Setenv("SWAP_COLORS_ON_REMATCH", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"key-one", "key-two"}, cfg.APIKeys)
	assert.Equal(t, int64(16), cfg.RatingDelta)
	assert.Equal(t, int64(1200), cfg.DefaultRating)
	assert.Equal(t, 5, cfg.DefaultMinutes)
	assert.Equal(t, 3, cfg.DefaultIncrement)
	assert.True(t, cfg.SwapColorsOnRematch)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("RATING_DELTA", "-4")
	t.Setenv("DEFAULT_RATING", "lots")
	t.Setenv("TIME_CONTROL", "blitz")
	t.Setenv("SWAP_COLORS_ON_REMATCH", "maybe")

	cfg := Load()

	assert.Equal(t, int64(8), cfg.RatingDelta)
	assert.Equal(t, int64(1000), cfg.DefaultRating)
	assert.Equal(t, 10, cfg.DefaultMinutes)
	assert.False(t, cfg.SwapColorsOnRematch)
}

func TestParseTimeControl(t *testing.T) {
	tests := []struct {
		input     string
		minutes   int
		increment int
		ok        bool
	}{
		{"10+0", 10, 0, true},
		{"3+2", 3, 2, true},
		{" 15 + 10 ", 15, 10, true},
		{"10", 0, 0, false},
		{"0+5", 0, 0, false},
		{"5+-1", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		minutes, increment, ok := parseTimeControl(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		if tt.ok {
			assert.Equal(t, tt.minutes, minutes, "input %q", tt.input)
			assert.Equal(t, tt.increment, increment, "input %q", tt.input)
		}
	}
}
