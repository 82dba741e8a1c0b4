// Package main is the entry point of the application
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chesslive/match-server/internal/auth"
	"github.com/chesslive/match-server/pkg/config"
	"github.com/chesslive/match-server/pkg/events"
	"github.com/chesslive/match-server/pkg/game"
	"github.com/chesslive/match-server/pkg/matchmaker"
	"github.com/chesslive/match-server/pkg/rating"
	"github.com/chesslive/match-server/pkg/repository"
	"github.com/chesslive/match-server/pkg/server"
)

// application encapsulates global dependencies
type application struct {
	Auth      *auth.APIKeyAuth
	Logger    *zap.Logger
	Config    *config.Config
	Publisher *events.Publisher
	Hub       *server.Hub
	Server    *http.Server

	upgrader websocket.Upgrader

	StartTime time.Time
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.String("port", "", "server port")
	flag.Parse()

	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := config.Load()
	cfg.Debug = *debug
	if *port != "" {
		cfg.Port = *port
	}

	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	publisher := events.NewPublisher()
	publisher.SubscribeAll(func(event events.Event) {
		logger.Debug("event",
			zap.String("type", string(event.Type)),
			zap.String("session_id", event.SessionID),
		)
	})

	var ratingSvc rating.Service
	if cfg.RedisURL != "" {
		store, err := rating.NewRedisStore(cfg.RedisURL, cfg.DefaultRating, logger)
		if err != nil {
			logger.Fatal("rating store init error", zap.Error(err))
		}
		defer store.Close()
		ratingSvc = store
	} else {
		logger.Warn("REDIS_URL not set; ratings run on cached values only")
	}

	sessions := repository.NewInMemoryRepository(logger)

	defaultControl := game.TimeControl{
		Minutes:   cfg.DefaultMinutes,
		Increment: cfg.DefaultIncrement,
	}

	factory := func(p1, p2 game.Participant, tc game.TimeControl) *game.Session {
		return game.NewSession(p1, p2, game.SessionConfig{
			TimeControl:         tc,
			Ratings:             ratingSvc,
			RatingDelta:         cfg.RatingDelta,
			SwapColorsOnRematch: cfg.SwapColorsOnRematch,
			ClockTick:           cfg.ClockTick,
			Publisher:           publisher,
			Logger:              logger,
		})
	}

	mm := matchmaker.New(defaultControl, factory, logger)
	hub := server.NewHub(mm, sessions, ratingSvc, defaultControl, cfg.DefaultRating, publisher, logger)

	app := &application{
		Auth:      auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:    logger,
		Config:    cfg,
		Hub:       hub,
		Publisher: publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == cfg.AllowedOrigin
			},
		},
		StartTime: time.Now(),
	}

	go app.Hub.Run()

	if err := app.serve(); err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	if app.Hub != nil {
		app.Hub.Shutdown()
	}

	app.Logger.Info("all components shut down successfully")
}
