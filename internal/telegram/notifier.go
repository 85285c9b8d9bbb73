package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/aaronzipp/impostor-bot/internal/config"
	"github.com/aaronzipp/impostor-bot/internal/models"
)

// Notifier delivers game output over Telegram. It also acts as the lobby
// allocator: Telegram bots cannot create group chats, so every game runs in
// the preconfigured lobby chat and players enter via its invite link.
type Notifier struct {
	sender MessageSender
	cfg    config.Config
	log    zerolog.Logger

	mu     sync.Mutex
	origin int64
	qrSent bool
}

func NewNotifier(sender MessageSender, cfg config.Config, log zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, cfg: cfg, log: log}
}

// CreateLobby hands out the preconfigured lobby chat as the session
// conversation and remembers where the game was started from.
func (n *Notifier) CreateLobby(_ context.Context, originGroupID string) (string, error) {
	if n.cfg.LobbyChatID == 0 {
		return "", errors.New("LOBBY_CHAT_ID is not configured")
	}
	origin, err := strconv.ParseInt(originGroupID, 10, 64)
	if err != nil {
		return "", errors.New("origin is not a telegram chat id")
	}

	n.mu.Lock()
	n.origin = origin
	n.qrSent = false
	n.mu.Unlock()

	return strconv.FormatInt(n.cfg.LobbyChatID, 10), nil
}

func (n *Notifier) LobbyMessage(_ context.Context, text string) error {
	_, err := n.sender.Send(tgbotapi.NewMessage(n.cfg.LobbyChatID, text))
	return err
}

// OriginJoinPrompt posts the join invitation in the chat the game was started
// from. The first prompt of a lobby also carries a QR code for the invite
// link so players on another device can scan in.
func (n *Notifier) OriginJoinPrompt(_ context.Context, text string) error {
	n.mu.Lock()
	origin := n.origin
	sendQR := !n.qrSent && n.cfg.LobbyInviteLink != ""
	n.qrSent = true
	n.mu.Unlock()

	msg := tgbotapi.NewMessage(origin, text)
	msg.ReplyMarkup = n.joinKeyboard()
	if _, err := n.sender.Send(msg); err != nil {
		return err
	}

	if sendQR {
		png, err := qrcode.Encode(n.cfg.LobbyInviteLink, qrcode.Medium, 256)
		if err != nil {
			n.log.Error().Err(err).Msg("qr encoding failed")
			return nil
		}
		photo := tgbotapi.NewPhoto(origin, tgbotapi.FileBytes{Name: "lobby.png", Bytes: png})
		photo.Caption = "Scan to open the lobby chat"
		if _, err := n.sender.Send(photo); err != nil {
			n.log.Error().Err(err).Msg("qr photo failed")
		}
	}
	return nil
}

func (n *Notifier) DirectMessage(_ context.Context, playerID, text string) error {
	chatID, err := strconv.ParseInt(playerID, 10, 64)
	if err != nil {
		return errors.New("player id is not a telegram chat id")
	}
	_, err = n.sender.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// KillMenu DMs the impostor one button per living target.
func (n *Notifier) KillMenu(ctx context.Context, impostorID string, targets []models.Player) error {
	chatID, err := strconv.ParseInt(impostorID, 10, 64)
	if err != nil {
		return errors.New("player id is not a telegram chat id")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range targets {
		button := tgbotapi.NewInlineKeyboardButtonData("🔪 "+t.Name, "kill:"+t.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	if len(rows) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, "Pick your target:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = n.sender.Send(msg)
	return err
}

// VoteMenu posts the ballot in the lobby chat.
func (n *Notifier) VoteMenu(_ context.Context, targets []models.Player) error {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range targets {
		button := tgbotapi.NewInlineKeyboardButtonData(t.Name, "vote:"+t.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	if len(rows) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(n.cfg.LobbyChatID, "Who is the impostor?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := n.sender.Send(msg)
	return err
}

func (n *Notifier) CancelPrompt(_ context.Context, window time.Duration) error {
	msg := tgbotapi.NewMessage(n.cfg.LobbyChatID,
		"The game begins shortly. Anyone can call it off within "+window.String()+".")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel game", "cancel-game"),
		),
	)
	_, err := n.sender.Send(msg)
	return err
}

func (n *Notifier) joinKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🚀 Join game", "join-game"),
	}
	if n.cfg.LobbyInviteLink != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("Open lobby chat", n.cfg.LobbyInviteLink))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
}
