// Package telegram connects the game to the Telegram Bot API: one long-poll
// update loop dispatching commands and button presses into the handlers.
package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	log     zerolog.Logger
}

func NewBot(api *tgbotapi.BotAPI, handler *Handler, log zerolog.Logger) *Bot {
	return &Bot{api: api, handler: handler, log: log}
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.log.Info().Str("bot", b.api.Self.UserName).Msg("bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info().Msg("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.dispatchCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Chat.IsPrivate():
		// A plain DM gets the command overview.
		b.handler.HandleHelp(update.Message.Chat.ID)
	case update.CallbackQuery != nil:
		b.dispatchCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) dispatchCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handler.HandleStart(ctx, msg)
	case "join":
		b.handler.HandleJoin(ctx, msg.Chat.ID, msg.From, false)
	case "task":
		b.handler.HandleTask(ctx, msg)
	case "kill":
		b.handler.HandleKill(ctx, msg.Chat.ID, msg.From, strings.TrimSpace(msg.CommandArguments()), msg.Chat.IsPrivate())
	case "vote":
		b.handler.HandleVote(ctx, msg.Chat.ID, msg.From, strings.TrimSpace(msg.CommandArguments()))
	case "cancel":
		b.handler.HandleCancel(ctx, msg.Chat.ID, msg.From)
	case "status":
		b.handler.HandleStatus(msg.Chat.ID)
	case "leaderboard":
		b.handler.HandleLeaderboard(ctx, msg.Chat.ID)
	case "help":
		b.handler.HandleHelp(msg.Chat.ID)
	}
}

func (b *Bot) dispatchCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Acknowledge first so the button stops spinning.
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Error().Err(err).Msg("callback ack failed")
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	data := callback.Data
	switch {
	case data == "join-game":
		b.handler.HandleJoin(ctx, chatID, callback.From, true)
	case data == "cancel-game":
		b.handler.HandleCancel(ctx, chatID, callback.From)
	case strings.HasPrefix(data, "kill:"):
		b.handler.HandleKill(ctx, chatID, callback.From, strings.TrimPrefix(data, "kill:"), callback.Message.Chat.IsPrivate())
	case strings.HasPrefix(data, "vote:"):
		b.handler.HandleVote(ctx, chatID, callback.From, strings.TrimPrefix(data, "vote:"))
	}
}
