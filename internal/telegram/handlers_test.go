package telegram

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aaronzipp/impostor-bot/internal/game"
	"github.com/aaronzipp/impostor-bot/internal/storage"
)

type MockGameService struct {
	mock.Mock
}

func (m *MockGameService) StartLobby(ctx context.Context, originGroupID, starterID, starterName string) (string, error) {
	args := m.Called(ctx, originGroupID, starterID, starterName)
	return args.String(0), args.Error(1)
}

func (m *MockGameService) HandleJoin(ctx context.Context, playerID, name string, replace bool) (game.JoinOutcome, error) {
	args := m.Called(ctx, playerID, name, replace)
	return args.Get(0).(game.JoinOutcome), args.Error(1)
}

func (m *MockGameService) HandleTask(ctx context.Context, playerID, answer string) (bool, error) {
	args := m.Called(ctx, playerID, answer)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameService) HandleKill(ctx context.Context, killerID, targetRef string) (game.KillResult, error) {
	args := m.Called(ctx, killerID, targetRef)
	return args.Get(0).(game.KillResult), args.Error(1)
}

func (m *MockGameService) HandleVote(ctx context.Context, voterID, targetRef string) (bool, error) {
	args := m.Called(ctx, voterID, targetRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameService) HandleCancel(ctx context.Context, requesterID string) error {
	args := m.Called(ctx, requesterID)
	return args.Error(0)
}

func (m *MockGameService) Status() game.StatusReport {
	args := m.Called()
	return args.Get(0).(game.StatusReport)
}

func (m *MockGameService) LobbyGroupID() string {
	args := m.Called()
	return args.String(0)
}

type MockStandings struct {
	mock.Mock
}

func (m *MockStandings) Leaderboard(ctx context.Context, limit int) ([]storage.Standing, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Standing), args.Error(1)
}

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	if msg, ok := args.Get(0).(tgbotapi.Message); ok {
		return msg, args.Error(1)
	}
	return tgbotapi.Message{}, args.Error(1)
}

func (m *MockMessageSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return nil, args.Error(1)
}

func newTestHandler() (*Handler, *MockGameService, *MockMessageSender) {
	svc := new(MockGameService)
	sender := new(MockMessageSender)
	return NewHandler(sender, svc, nil, zerolog.Nop()), svc, sender
}

// sentText digs the text out of the Chattable captured by the mock.
func sentText(t *testing.T, sender *MockMessageSender, call int) string {
	t.Helper()
	require.Greater(t, len(sender.Calls), call)
	msg, ok := sender.Calls[call].Arguments.Get(0).(tgbotapi.MessageConfig)
	require.True(t, ok, "expected a MessageConfig")
	return msg.Text
}

func groupMessage(chatID int64, user *tgbotapi.User, text string, entities ...tgbotapi.MessageEntity) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "group"},
		From:     user,
		Text:     text,
		Entities: entities,
	}
}

func commandEntity(length int) tgbotapi.MessageEntity {
	return tgbotapi.MessageEntity{Type: "bot_command", Offset: 0, Length: length}
}

func TestHandleStartOpensLobbyFromGroup(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}
	msg := groupMessage(456, user, "/start", commandEntity(6))

	svc.On("StartLobby", mock.Anything, "456", "123", "Alice").Return("lobby", nil).Once()

	handler.HandleStart(context.Background(), msg)

	svc.AssertExpectations(t)
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestHandleStartRejectsPrivateChat(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}
	msg := &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 123, Type: "private"},
		From: user, Text: "/start",
		Entities: []tgbotapi.MessageEntity{commandEntity(6)},
	}

	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleStart(context.Background(), msg)

	svc.AssertNotCalled(t, "StartLobby", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, sentText(t, sender, 0), "group chat")
}

func TestHandleStartReportsActiveGame(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}
	msg := groupMessage(456, user, "/start", commandEntity(6))

	svc.On("StartLobby", mock.Anything, "456", "123", "Alice").Return("", game.ErrAlreadyActive).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleStart(context.Background(), msg)

	assert.Contains(t, sentText(t, sender, 0), "already in progress")
}

func TestHandleJoinFullLobby(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}

	svc.On("HandleJoin", mock.Anything, "123", "Alice", false).Return(game.JoinOutcome{}, game.ErrLobbyFull).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleJoin(context.Background(), 456, user, false)

	assert.Contains(t, sentText(t, sender, 0), "full")
}

func TestHandleTaskOnlyInLobbyChat(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}
	msg := groupMessage(999, user, "/task 1234", commandEntity(5))

	svc.On("LobbyGroupID").Return("456").Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleTask(context.Background(), msg)

	svc.AssertNotCalled(t, "HandleTask", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, sentText(t, sender, 0), "lobby chat")
}

func TestHandleTaskCorrectAnswer(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}
	msg := groupMessage(456, user, "/task 1234", commandEntity(5))

	svc.On("LobbyGroupID").Return("456").Once()
	svc.On("HandleTask", mock.Anything, "123", "1234").Return(true, nil).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleTask(context.Background(), msg)

	assert.Contains(t, sentText(t, sender, 0), "Correct")
}

func TestHandleKillRefusedOutsideDM(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}

	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleKill(context.Background(), 456, user, "bob", false)

	svc.AssertNotCalled(t, "HandleKill", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, sentText(t, sender, 0), "private chat")
}

func TestHandleKillCooldownMessage(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}

	svc.On("HandleKill", mock.Anything, "123", "bob").
		Return(game.KillResult{}, &game.CooldownError{Remaining: 9500 * time.Millisecond}).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleKill(context.Background(), 123, user, "bob", true)

	text := sentText(t, sender, 0)
	assert.Contains(t, text, "Cooldown")
	assert.Contains(t, text, "10s")
}

func TestHandleKillSuccess(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}

	svc.On("HandleKill", mock.Anything, "123", "bob").
		Return(game.KillResult{Success: true, TargetName: "Bob", AttemptsLeft: 2}, nil).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleKill(context.Background(), 123, user, "bob", true)

	assert.Contains(t, sentText(t, sender, 0), "2 attempt(s) left")
}

func TestHandleVoteDuplicate(t *testing.T) {
	handler, svc, sender := newTestHandler()
	user := &tgbotapi.User{ID: 123, FirstName: "Alice"}

	svc.On("HandleVote", mock.Anything, "123", "bob").Return(false, nil).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleVote(context.Background(), 456, user, "bob")

	assert.Contains(t, sentText(t, sender, 0), "already voted")
}

func TestHandleStatusIdle(t *testing.T) {
	handler, svc, sender := newTestHandler()

	svc.On("Status").Return(game.StatusReport{}).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleStatus(456)

	assert.Contains(t, sentText(t, sender, 0), "No game running")
}

func TestHandleLeaderboardWithoutDatabase(t *testing.T) {
	handler, _, sender := newTestHandler()

	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleLeaderboard(context.Background(), 456)

	assert.Contains(t, sentText(t, sender, 0), "not enabled")
}

func TestHandleLeaderboardFormatsStandings(t *testing.T) {
	svc := new(MockGameService)
	sender := new(MockMessageSender)
	standings := new(MockStandings)
	handler := NewHandler(sender, svc, standings, zerolog.Nop())

	standings.On("Leaderboard", mock.Anything, 10).Return([]storage.Standing{
		{PlayerID: "1", DisplayName: "Alice", Wins: 3, Losses: 1},
		{PlayerID: "2", DisplayName: "Bob", Wins: 1, Losses: 3},
	}, nil).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	handler.HandleLeaderboard(context.Background(), 456)

	text := sentText(t, sender, 0)
	assert.Contains(t, text, "1. Alice — 3 win(s)")
	assert.Contains(t, text, "2. Bob — 1 win(s)")
}
