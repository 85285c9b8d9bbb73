package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaronzipp/impostor-bot/internal/config"
	"github.com/aaronzipp/impostor-bot/internal/models"
)

// Notifier is the outbound boundary: the flow hands it structured data and
// ready-made text, and the transport layer decides how to deliver it.
type Notifier interface {
	LobbyMessage(ctx context.Context, text string) error
	OriginJoinPrompt(ctx context.Context, text string) error
	DirectMessage(ctx context.Context, playerID, text string) error
	KillMenu(ctx context.Context, impostorID string, targets []models.Player) error
	VoteMenu(ctx context.Context, targets []models.Player) error
	CancelPrompt(ctx context.Context, window time.Duration) error
}

// GameRecorder persists finished games for the leaderboard. Optional; the bot
// runs without one.
type GameRecorder interface {
	RecordResult(ctx context.Context, winner models.Role, players []models.Player) error
}

// JoinOutcome tells the transport what a join changed.
type JoinOutcome struct {
	Evicted *models.Player
	Players []models.Player
	Started bool
}

// StatusReport is a read-only snapshot for time-remaining queries.
type StatusReport struct {
	Phase         models.Phase
	Round         int
	PlayerCount   int
	AliveCount    int
	TimeRemaining time.Duration
}

// Flow drives rounds forward. Player actions arrive through the Handle*
// methods; phase timers call back into the unexported phase starters. All
// state lives in the engine, so the flow itself is stateless and re-entrant.
type Flow struct {
	engine   *Engine
	cfg      config.Config
	notify   Notifier
	recorder GameRecorder
	log      zerolog.Logger
}

func NewFlow(engine *Engine, cfg config.Config, notify Notifier, recorder GameRecorder, log zerolog.Logger) *Flow {
	return &Flow{
		engine:   engine,
		cfg:      cfg,
		notify:   notify,
		recorder: recorder,
		log:      log,
	}
}

// StartLobby creates the lobby, seats the starter, announces the join window
// in the origin group, and arms the join window timer.
func (f *Flow) StartLobby(ctx context.Context, originGroupID, starterID, starterName string) (string, error) {
	lobbyID, err := f.engine.CreateLobby(ctx, originGroupID)
	if err != nil {
		return "", err
	}
	if err := f.engine.AddPlayer(starterID, starterName); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("🚀 Impostor game lobby created!\n\nUp to %d players may join within %s.",
		f.cfg.MaxPlayers, formatDuration(f.cfg.JoinWindow))
	if err := f.notify.OriginJoinPrompt(ctx, prompt); err != nil {
		f.log.Error().Err(err).Msg("join prompt failed")
	}

	f.engine.Scheduler().Schedule("joinWindow", f.cfg.JoinWindow, f.onJoinWindowExpired)
	return lobbyID, nil
}

func (f *Flow) onJoinWindowExpired() {
	ctx := context.Background()
	if f.engine.Phase() != models.PhaseWaitingForPlayers {
		return
	}
	if f.engine.CanStartGame() {
		if err := f.StartGame(ctx); err != nil {
			f.log.Error().Err(err).Msg("start after join window failed")
		}
		return
	}
	if err := f.notify.LobbyMessage(ctx, "Not enough players joined. Game cancelled."); err != nil {
		f.log.Error().Err(err).Msg("cancel notice failed")
	}
	f.engine.Cleanup()
}

// HandleJoin seats a player. The button path (replace=true) may evict the
// first-joined player when the roster is full. A full roster after the join
// starts the game immediately.
func (f *Flow) HandleJoin(ctx context.Context, playerID, name string, replace bool) (JoinOutcome, error) {
	var (
		evicted *models.Player
		err     error
	)
	if replace {
		evicted, err = f.engine.AddPlayerEvicting(playerID, name)
	} else {
		err = f.engine.AddPlayer(playerID, name)
	}
	if err != nil {
		return JoinOutcome{}, err
	}

	if evicted != nil {
		msg := "⚠️ You were removed from the lobby to make room for a new player.\n\nYou can join again if there's space."
		if err := f.notify.DirectMessage(ctx, evicted.ID, msg); err != nil {
			f.log.Error().Err(err).Str("player", evicted.ID).Msg("eviction notice failed")
		}
		notice := fmt.Sprintf("⚠️ %s was removed to make room for %s.", evicted.Name, name)
		if err := f.notify.LobbyMessage(ctx, notice); err != nil {
			f.log.Error().Err(err).Msg("eviction lobby notice failed")
		}
	}

	players := f.engine.Players()
	roster := fmt.Sprintf("🚀 IMPOSTOR LOBBY\n\nPlayers joined: %s (%d/%d)",
		playerNames(players), len(players), f.cfg.MaxPlayers)
	if err := f.notify.OriginJoinPrompt(ctx, roster); err != nil {
		f.log.Error().Err(err).Msg("roster prompt failed")
	}

	outcome := JoinOutcome{Evicted: evicted, Players: players}
	if len(players) >= f.cfg.MaxPlayers {
		f.engine.Scheduler().Cancel("joinWindow")
		if err := f.StartGame(ctx); err != nil {
			return outcome, err
		}
		outcome.Started = true
	}
	return outcome, nil
}

// StartGame assigns roles, reveals them over DM, opens the short cancel
// window, and begins round one.
func (f *Flow) StartGame(ctx context.Context) error {
	if err := f.engine.AssignRoles(); err != nil {
		// Two triggers can race here (a join filling the roster while the
		// join window expires); whoever loses finds the game already
		// underway, which is not a failure.
		if errors.Is(err, ErrAlreadyAssigned) {
			return nil
		}
		return err
	}

	for _, p := range f.engine.Players() {
		var msg string
		if p.Role == models.RoleImpostor {
			msg = fmt.Sprintf(
				"🔪 You are the IMPOSTOR.\n\nFake your tasks and eliminate the crew.\n"+
					"Success chance: %.0f%%\nMax attempts: %d\nCooldown: %s per attempt",
				f.cfg.KillSuccessChance*100, f.cfg.MaxKillAttempts, formatDuration(f.cfg.KillCooldown))
		} else {
			msg = "🛠️ You are CREW.\n\nComplete your tasks and vote out the impostor."
		}
		if err := f.notify.DirectMessage(ctx, p.ID, msg); err != nil {
			f.log.Error().Err(err).Str("player", p.ID).Msg("role reveal failed")
		}
	}

	if err := f.notify.LobbyMessage(ctx, "Roles assigned.\n\nRound 1 is starting."); err != nil {
		f.log.Error().Err(err).Msg("round announcement failed")
	}
	if err := f.notify.CancelPrompt(ctx, f.cfg.CancelWindow); err != nil {
		f.log.Error().Err(err).Msg("cancel prompt failed")
	}

	if err := f.engine.StartRound(1); err != nil {
		return err
	}
	f.startTaskAndKillPhase(ctx, 1)
	return nil
}

func (f *Flow) startTaskAndKillPhase(ctx context.Context, round int) {
	dur := f.cfg.CombinedPhaseDuration()

	announce := fmt.Sprintf(
		"🛠️🔪 Round %d — Task & Kill Phase\n\n"+
			"Complete your assigned tasks with /task <answer>.\nPhase duration: %s.",
		round, formatDuration(dur))
	if err := f.notify.LobbyMessage(ctx, announce); err != nil {
		f.log.Error().Err(err).Msg("phase announcement failed")
	}

	go f.dispatchTasks(round)

	if impostorID := f.engine.ImpostorID(); impostorID != "" {
		if p, ok := f.engine.PlayerByID(impostorID); ok && p.IsAlive {
			targets := make([]models.Player, 0)
			for _, t := range f.engine.AlivePlayers() {
				if t.ID != impostorID {
					targets = append(targets, t)
				}
			}
			if err := f.notify.KillMenu(ctx, impostorID, targets); err != nil {
				f.log.Error().Err(err).Msg("kill menu failed")
			}
		}
	}

	f.engine.Scheduler().Schedule(fmt.Sprintf("taskAndKillPhase-%d", round), dur, func() {
		if f.engine.Phase() != models.PhaseTaskAndKill {
			return
		}
		if err := f.engine.AdvancePhase(); err != nil {
			f.log.Error().Err(err).Msg("advance to discussion failed")
			return
		}
		f.startDiscussionPhase(context.Background(), round)
	})
}

// dispatchTasks paces task announcements so the last one lands at least the
// dispatch buffer before the phase ends.
func (f *Flow) dispatchTasks(round int) {
	ctx := context.Background()
	players := f.engine.AlivePlayers()
	total := len(players) * f.cfg.TasksPerPlayer
	if total == 0 {
		return
	}
	interval := (f.cfg.CombinedPhaseDuration() - f.cfg.TaskDispatchBuffer) / time.Duration(total)

	sent := 0
	for idx := 0; idx < f.cfg.TasksPerPlayer; idx++ {
		for _, p := range players {
			if f.engine.Phase() != models.PhaseTaskAndKill || f.engine.Round() != round {
				return
			}
			task, ok := f.engine.TaskForPlayer(p.ID, idx)
			if !ok {
				continue
			}
			msg := fmt.Sprintf("@%s\n\n🛠️ Task %d/%d:\n\n%s\n\nSubmit your answer: /task <answer>",
				p.Name, idx+1, f.cfg.TasksPerPlayer, task.Question)
			if err := f.notify.LobbyMessage(ctx, msg); err != nil {
				f.log.Error().Err(err).Str("player", p.ID).Msg("task announcement failed")
			}
			sent++
			if sent < total {
				time.Sleep(interval)
			}
		}
	}
}

// HandleTask submits an answer for the player's next incomplete task.
func (f *Flow) HandleTask(ctx context.Context, playerID, answer string) (bool, error) {
	return f.engine.CompleteTask(playerID, answer)
}

// HandleKill resolves a kill attempt. A successful kill is announced to the
// lobby and cuts the task phase short after a short grace delay.
func (f *Flow) HandleKill(ctx context.Context, killerID, targetRef string) (KillResult, error) {
	result, err := f.engine.AttemptKill(killerID, targetRef)
	if err != nil || !result.Success {
		return result, err
	}

	if err := f.notify.LobbyMessage(ctx, result.Message); err != nil {
		f.log.Error().Err(err).Msg("kill announcement failed")
	}

	if win := f.engine.CheckWinCondition(); win.GameEnded {
		f.endGame(ctx, win.Winner)
		return result, nil
	}

	// Preempt the phase timer before advancing early, so a stale timer can't
	// double-advance the state machine.
	round := f.engine.Round()
	f.engine.Scheduler().Cancel(fmt.Sprintf("taskAndKillPhase-%d", round))
	f.engine.Scheduler().Schedule(fmt.Sprintf("advanceAfterKill-%d", round), f.cfg.KillAdvanceDelay, func() {
		if f.engine.Phase() != models.PhaseTaskAndKill {
			return
		}
		if err := f.engine.AdvancePhase(); err != nil {
			f.log.Error().Err(err).Msg("advance after kill failed")
			return
		}
		f.startDiscussionPhase(context.Background(), round)
	})
	return result, nil
}

func (f *Flow) startDiscussionPhase(ctx context.Context, round int) {
	msg := fmt.Sprintf("💬 Discussion Phase — %s.\n\nTalk freely.", formatDuration(f.cfg.DiscussionPhaseDuration))
	if err := f.notify.LobbyMessage(ctx, msg); err != nil {
		f.log.Error().Err(err).Msg("discussion announcement failed")
	}

	f.engine.Scheduler().Schedule(fmt.Sprintf("discussion-%d", round), f.cfg.DiscussionPhaseDuration, func() {
		if f.engine.Phase() != models.PhaseDiscussion {
			return
		}
		if err := f.engine.AdvancePhase(); err != nil {
			f.log.Error().Err(err).Msg("advance to voting failed")
			return
		}
		f.startVotingPhase(context.Background(), round)
	})
}

func (f *Flow) startVotingPhase(ctx context.Context, round int) {
	if err := f.notify.LobbyMessage(ctx, "🗳️ Voting Phase\n\nVote to eliminate a player:"); err != nil {
		f.log.Error().Err(err).Msg("voting announcement failed")
	}
	if err := f.notify.VoteMenu(ctx, f.engine.AlivePlayers()); err != nil {
		f.log.Error().Err(err).Msg("vote menu failed")
	}

	f.engine.Scheduler().Schedule(fmt.Sprintf("voting-%d", round), f.cfg.VotingPhaseDuration, func() {
		f.resolveVoting(context.Background(), round)
	})
}

// HandleVote records a vote for the current round.
func (f *Flow) HandleVote(ctx context.Context, voterID, targetRef string) (bool, error) {
	return f.engine.CastVote(voterID, targetRef)
}

// resolveVoting applies the majority rule: the leading target is eliminated
// iff it reaches ceil(alive/2) votes and strictly leads the runner-up. A tie
// at the top never eliminates.
func (f *Flow) resolveVoting(ctx context.Context, round int) {
	if f.engine.Phase() != models.PhaseVoting {
		return
	}

	results := f.engine.VoteResults()
	if len(results) == 0 {
		if err := f.notify.LobbyMessage(ctx, "No votes cast. No one eliminated."); err != nil {
			f.log.Error().Err(err).Msg("vote result notice failed")
		}
	} else {
		top := results[0]
		tied := len(results) > 1 && results[1].Votes == top.Votes
		if !tied && top.Votes >= f.engine.MajorityThreshold() {
			target, _ := f.engine.PlayerByID(top.Target)
			if err := f.engine.EliminatePlayer(top.Target); err != nil {
				f.log.Error().Err(err).Str("target", top.Target).Msg("elimination failed")
			}

			reveal := fmt.Sprintf("❌ %s was eliminated.\n\nThey were CREW.", target.Name)
			if target.Role == models.RoleImpostor {
				reveal = fmt.Sprintf("🔥 %s was eliminated.\n\nThey were the IMPOSTOR.", target.Name)
			}
			if err := f.notify.LobbyMessage(ctx, reveal); err != nil {
				f.log.Error().Err(err).Msg("elimination notice failed")
			}
		} else {
			if err := f.notify.LobbyMessage(ctx, "Tie or no majority. No one eliminated."); err != nil {
				f.log.Error().Err(err).Msg("vote result notice failed")
			}
		}
	}

	if win := f.engine.CheckWinCondition(); win.GameEnded {
		f.endGame(ctx, win.Winner)
		return
	}

	if round < f.cfg.MaxRounds {
		next := round + 1
		if err := f.engine.StartRound(next); err != nil {
			f.log.Error().Err(err).Int("round", next).Msg("next round failed")
			return
		}
		f.startTaskAndKillPhase(ctx, next)
		return
	}
	f.endGame(ctx, models.RoleImpostor)
}

// HandleCancel aborts a game that has not started yet.
func (f *Flow) HandleCancel(ctx context.Context, requesterID string) error {
	switch f.engine.Phase() {
	case models.PhaseLobbyCreated, models.PhaseWaitingForPlayers:
	default:
		return ErrInvalidPhase
	}

	if err := f.notify.LobbyMessage(ctx, "❌ Game cancelled."); err != nil {
		f.log.Error().Err(err).Msg("cancel notice failed")
	}
	f.log.Info().Str("requester", requesterID).Msg("game cancelled before start")
	f.engine.Cleanup()
	return nil
}

func (f *Flow) endGame(ctx context.Context, winner models.Role) {
	f.engine.Scheduler().CancelAll()

	// Snapshot roles before cleanup wipes them.
	players := f.engine.Players()

	aliveCrew := 0
	for _, p := range players {
		if p.IsAlive && p.Role == models.RoleCrew {
			aliveCrew++
		}
	}

	var msg string
	switch {
	case winner == models.RoleCrew:
		msg = "🏆 CREW WINS! The impostor has been eliminated."
	case aliveCrew == 0:
		msg = "🔥 IMPOSTOR WINS! The entire crew has been eliminated."
	default:
		msg = fmt.Sprintf("🔥 IMPOSTOR WINS! Survived all %d round(s).", f.cfg.MaxRounds)
	}
	if err := f.notify.LobbyMessage(ctx, msg); err != nil {
		f.log.Error().Err(err).Msg("winner announcement failed")
	}

	if f.recorder != nil {
		if err := f.recorder.RecordResult(ctx, winner, players); err != nil {
			f.log.Error().Err(err).Msg("result recording failed")
		}
	}

	if err := f.engine.EndGame(); err != nil {
		f.log.Error().Err(err).Msg("end game transition failed")
	}
	f.engine.Cleanup()
	f.log.Info().Str("winner", string(winner)).Msg("game over")
}

// Status reports the current phase and time remaining for UI queries.
func (f *Flow) Status() StatusReport {
	var remaining time.Duration
	if deadline := f.engine.PhaseDeadline(); !deadline.IsZero() {
		if d := time.Until(deadline); d > 0 {
			remaining = d
		}
	}
	return StatusReport{
		Phase:         f.engine.Phase(),
		Round:         f.engine.Round(),
		PlayerCount:   len(f.engine.Players()),
		AliveCount:    len(f.engine.AlivePlayers()),
		TimeRemaining: remaining,
	}
}

// LobbyGroupID exposes the session conversation id to the transport layer.
func (f *Flow) LobbyGroupID() string { return f.engine.LobbyGroupID() }

// OriginGroupID exposes the origin conversation id to the transport layer.
func (f *Flow) OriginGroupID() string { return f.engine.OriginGroupID() }

func playerNames(players []models.Player) string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

func formatDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d minute(s)", int(d.Minutes()))
	}
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}
