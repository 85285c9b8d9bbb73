package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/aaronzipp/impostor-bot/internal/game"
	"github.com/aaronzipp/impostor-bot/internal/models"
	"github.com/aaronzipp/impostor-bot/internal/storage"
)

// MessageSender is the outgoing half of the Telegram API.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// GameService is the round driver as the handlers see it.
type GameService interface {
	StartLobby(ctx context.Context, originGroupID, starterID, starterName string) (string, error)
	HandleJoin(ctx context.Context, playerID, name string, replace bool) (game.JoinOutcome, error)
	HandleTask(ctx context.Context, playerID, answer string) (bool, error)
	HandleKill(ctx context.Context, killerID, targetRef string) (game.KillResult, error)
	HandleVote(ctx context.Context, voterID, targetRef string) (bool, error)
	HandleCancel(ctx context.Context, requesterID string) error
	Status() game.StatusReport
	LobbyGroupID() string
}

// Standings reads the persisted leaderboard.
type Standings interface {
	Leaderboard(ctx context.Context, limit int) ([]storage.Standing, error)
}

type Handler struct {
	Bot       MessageSender
	Service   GameService
	Standings Standings // nil when the bot runs without a database
	log       zerolog.Logger
}

func NewHandler(bot MessageSender, service GameService, standings Standings, log zerolog.Logger) *Handler {
	return &Handler{Bot: bot, Service: service, Standings: standings, log: log}
}

// HandleStart - /start in a group opens a lobby.
func (h *Handler) HandleStart(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat.IsPrivate() {
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "Start a game from a group chat."))
		return
	}

	origin := strconv.FormatInt(msg.Chat.ID, 10)
	_, err := h.Service.StartLobby(ctx, origin, userID(msg.From), displayName(msg.From))
	if errors.Is(err, game.ErrAlreadyActive) {
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "A game is already in progress."))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("start lobby failed")
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "Could not open a lobby. Try again."))
	}
}

// HandleJoin seats the player. replace is true on the join-button path, where
// a full lobby evicts its oldest member.
func (h *Handler) HandleJoin(ctx context.Context, chatID int64, user *tgbotapi.User, replace bool) {
	_, err := h.Service.HandleJoin(ctx, userID(user), displayName(user), replace)
	switch {
	case errors.Is(err, game.ErrLobbyFull):
		h.send(tgbotapi.NewMessage(chatID, "The lobby is full."))
	case errors.Is(err, game.ErrInvalidPhase):
		h.send(tgbotapi.NewMessage(chatID, "No lobby is open right now. Use /start in a group."))
	case err != nil:
		h.log.Error().Err(err).Msg("join failed")
		h.send(tgbotapi.NewMessage(chatID, "Could not join. Try again."))
	}
}

// HandleTask - /task <answer> in the lobby chat.
func (h *Handler) HandleTask(ctx context.Context, msg *tgbotapi.Message) {
	if strconv.FormatInt(msg.Chat.ID, 10) != h.Service.LobbyGroupID() {
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "Submit answers in the lobby chat."))
		return
	}
	answer := strings.TrimSpace(msg.CommandArguments())
	if answer == "" {
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "Usage: /task <answer>"))
		return
	}

	done, err := h.Service.HandleTask(ctx, userID(msg.From), answer)
	switch {
	case errors.Is(err, game.ErrInvalidPhase):
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "Tasks can only be completed during the task phase."))
	case errors.Is(err, game.ErrNotAuthorized):
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "Eliminated players cannot complete tasks."))
	case err != nil:
		h.log.Error().Err(err).Msg("task submission failed")
	case done:
		h.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("✅ Correct, %s!", displayName(msg.From))))
	default:
		h.send(tgbotapi.NewMessage(msg.Chat.ID, "❌ Not quite. Try again."))
	}
}

// HandleKill resolves a kill attempt. Only usable in a DM so the target stays
// secret until the result lands in the lobby.
func (h *Handler) HandleKill(ctx context.Context, chatID int64, user *tgbotapi.User, targetRef string, private bool) {
	if !private {
		h.send(tgbotapi.NewMessage(chatID, "Kill attempts only work in our private chat."))
		return
	}
	if targetRef == "" {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /kill <player>"))
		return
	}

	result, err := h.Service.HandleKill(ctx, userID(user), targetRef)
	var cooldown *game.CooldownError
	switch {
	case errors.As(err, &cooldown):
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("⏳ Cooldown: wait another %s.", formatSeconds(cooldown.Remaining))))
	case errors.Is(err, game.ErrAttemptsExhausted):
		h.send(tgbotapi.NewMessage(chatID, "You have no kill attempts left."))
	case errors.Is(err, game.ErrNotAuthorized):
		h.send(tgbotapi.NewMessage(chatID, "You are not the impostor."))
	case errors.Is(err, game.ErrTargetNotFound):
		h.send(tgbotapi.NewMessage(chatID, "No such target."))
	case errors.Is(err, game.ErrInvalidPhase):
		h.send(tgbotapi.NewMessage(chatID, "Kills are only possible during the task phase."))
	case err != nil:
		h.log.Error().Err(err).Msg("kill attempt failed")
	case result.Success:
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔪 Done. %d attempt(s) left.", result.AttemptsLeft)))
	default:
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("The attempt on %s failed. %d attempt(s) left.", result.TargetName, result.AttemptsLeft)))
	}
}

// HandleVote records a ballot, from either the vote buttons or /vote <player>.
func (h *Handler) HandleVote(ctx context.Context, chatID int64, user *tgbotapi.User, targetRef string) {
	if targetRef == "" {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /vote <player>"))
		return
	}

	ok, err := h.Service.HandleVote(ctx, userID(user), targetRef)
	switch {
	case errors.Is(err, game.ErrInvalidPhase):
		h.send(tgbotapi.NewMessage(chatID, "Voting is not open."))
	case errors.Is(err, game.ErrNotAuthorized):
		h.send(tgbotapi.NewMessage(chatID, "Eliminated players cannot vote."))
	case errors.Is(err, game.ErrTargetNotFound):
		h.send(tgbotapi.NewMessage(chatID, "No such player."))
	case err != nil:
		h.log.Error().Err(err).Msg("vote failed")
	case ok:
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🗳️ %s voted.", displayName(user))))
	default:
		h.send(tgbotapi.NewMessage(chatID, "You already voted this round."))
	}
}

// HandleCancel - /cancel before the first round starts.
func (h *Handler) HandleCancel(ctx context.Context, chatID int64, user *tgbotapi.User) {
	err := h.Service.HandleCancel(ctx, userID(user))
	if errors.Is(err, game.ErrInvalidPhase) {
		h.send(tgbotapi.NewMessage(chatID, "The game has already started and cannot be cancelled."))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("cancel failed")
	}
}

// HandleStatus - /status reports the phase and remaining time.
func (h *Handler) HandleStatus(chatID int64) {
	st := h.Service.Status()
	if st.Phase == models.PhaseIdle {
		h.send(tgbotapi.NewMessage(chatID, "No game running. Use /start in a group to open a lobby."))
		return
	}

	text := fmt.Sprintf("Phase: %s\nPlayers: %d (%d alive)", st.Phase.Label(st.Round), st.PlayerCount, st.AliveCount)
	if st.TimeRemaining > 0 {
		text += fmt.Sprintf("\nTime remaining: %s", formatSeconds(st.TimeRemaining))
	}
	h.send(tgbotapi.NewMessage(chatID, text))
}

// HandleLeaderboard - /leaderboard shows the persisted standings.
func (h *Handler) HandleLeaderboard(ctx context.Context, chatID int64) {
	if h.Standings == nil {
		h.send(tgbotapi.NewMessage(chatID, "The leaderboard is not enabled on this bot."))
		return
	}

	standings, err := h.Standings.Leaderboard(ctx, 10)
	if err != nil {
		h.log.Error().Err(err).Msg("leaderboard query failed")
		h.send(tgbotapi.NewMessage(chatID, "Could not load the leaderboard."))
		return
	}
	if len(standings) == 0 {
		h.send(tgbotapi.NewMessage(chatID, "No games recorded yet."))
		return
	}

	text := "🏆 Leaderboard:\n"
	for i, st := range standings {
		text += fmt.Sprintf("%d. %s — %d win(s), %d loss(es)\n", i+1, st.DisplayName, st.Wins, st.Losses)
	}
	h.send(tgbotapi.NewMessage(chatID, text))
}

// HandleHelp - /help and unknown commands.
func (h *Handler) HandleHelp(chatID int64) {
	text := "I run hidden-impostor games. Commands:\n\n" +
		"/start - open a lobby (group chats only)\n" +
		"/join - join the open lobby\n" +
		"/task <answer> - submit a task answer\n" +
		"/kill <player> - attempt a kill (impostor, DM only)\n" +
		"/vote <player> - vote during the voting phase\n" +
		"/cancel - call the game off before it starts\n" +
		"/status - show phase and remaining time\n" +
		"/leaderboard - all-time standings\n" +
		"/help - this message"
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.Bot.Send(c); err != nil {
		h.log.Error().Err(err).Msg("send failed")
	}
}

func userID(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func displayName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}
