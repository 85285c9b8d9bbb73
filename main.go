package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/aaronzipp/impostor-bot/internal/config"
	"github.com/aaronzipp/impostor-bot/internal/game"
	"github.com/aaronzipp/impostor-bot/internal/storage"
	"github.com/aaronzipp/impostor-bot/internal/telegram"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram authentication failed")
	}
	api.Debug = cfg.Debug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The leaderboard is optional; without a DSN games simply go unrecorded.
	var recorder game.GameRecorder
	var standings telegram.Standings
	if cfg.PostgresDSN != "" {
		store, err := storage.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("database unreachable")
		}
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema setup failed")
		}
		recorder = store
		standings = store
		log.Info().Msg("leaderboard storage connected")
	}

	notifier := telegram.NewNotifier(api, cfg, log)
	engine := game.NewEngine(cfg, rand.New(rand.NewSource(time.Now().UnixNano())), notifier, log)
	flow := game.NewFlow(engine, cfg, notifier, recorder, log)
	handler := telegram.NewHandler(api, flow, standings, log)
	bot := telegram.NewBot(api, handler, log)

	bot.Run(ctx)

	engine.Scheduler().CancelAll()
	log.Info().Msg("shutdown complete")
}
