// Package config holds the runtime configuration of the server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config encapsulates everything tunable through the environment.
type Config struct {
	Debug bool
	Port  string

	// AllowedOrigin restricts websocket upgrades; empty allows any origin.
	AllowedOrigin string
	APIKeys       []string

	RedisURL string

	RatingDelta   int64
	DefaultRating int64

	DefaultMinutes   int
	DefaultIncrement int

	// SwapColorsOnRematch flips board colors when a session re-initializes.
	SwapColorsOnRematch bool

	ClockTick time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	cfg := &Config{
		Port:             "8080",
		RatingDelta:      8,
		DefaultRating:    1000,
		DefaultMinutes:   10,
		DefaultIncrement: 0,
		ClockTick:        time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = v
	}

	cfg.AllowedOrigin = strings.TrimSpace(os.Getenv("FRONTEND_PATH"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	if v := os.Getenv("API_KEYS"); v != "" {
		for _, key := range strings.Split(v, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.APIKeys = append(cfg.APIKeys, key)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("RATING_DELTA")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.RatingDelta = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_RATING")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.DefaultRating = n
		}
	}

	// TIME_CONTROL is the default control for invite rooms, e.g. "10+0".
	if v := strings.TrimSpace(os.Getenv("TIME_CONTROL")); v != "" {
		if minutes, increment, ok := parseTimeControl(v); ok {
			cfg.DefaultMinutes = minutes
			cfg.DefaultIncrement = increment
		}
	}

	if v := strings.TrimSpace(os.Getenv("SWAP_COLORS_ON_REMATCH")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SwapColorsOnRematch = b
		}
	}

	return cfg
}

func parseTimeControl(s string) (minutes, increment int, ok bool) {
	parts := strings.SplitN(s, "+", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || minutes <= 0 {
		return 0, 0, false
	}
	increment, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || increment < 0 {
		return 0, 0, false
	}
	return minutes, increment, true
}
