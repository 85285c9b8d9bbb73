// Package game owns the game state machine. The Engine validates and performs
// phase transitions, resolves kill attempts and vote tallies, and computes win
// conditions; the Flow drives rounds forward on player actions and timers.
package game

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaronzipp/impostor-bot/internal/config"
	"github.com/aaronzipp/impostor-bot/internal/models"
	"github.com/aaronzipp/impostor-bot/internal/tasks"
	"github.com/aaronzipp/impostor-bot/internal/timers"
)

// LobbyCreator allocates the session conversation for a new game. The engine
// stores the returned id but never interprets it.
type LobbyCreator interface {
	CreateLobby(ctx context.Context, originGroupID string) (string, error)
}

// KillResult is the outcome of a resolved kill attempt. The message is ready
// to forward; the structured fields let the transport build its own.
type KillResult struct {
	Success      bool
	TargetID     string
	TargetName   string
	AttemptsLeft int
	Message      string
}

// WinCheck reports whether the game has ended and who won.
type WinCheck struct {
	GameEnded bool
	Winner    models.Role
}

// Engine is the single owner of one game's state. Every entry point takes the
// engine mutex, so player actions and timer callbacks never interleave.
type Engine struct {
	mu          sync.Mutex
	game        *models.Game
	cfg         config.Config
	rng         *rand.Rand
	gen         *tasks.Generator
	timers      *timers.Scheduler
	lobbies     LobbyCreator
	now         func() time.Time
	log         zerolog.Logger
	deadlineKey string // timer that owns CurrentPhaseDeadline
}

// NewEngine builds an engine around an injected random source. Tests pass a
// fixed seed to make role assignment and kill rolls deterministic.
func NewEngine(cfg config.Config, rng *rand.Rand, lobbies LobbyCreator, log zerolog.Logger) *Engine {
	e := &Engine{
		game:    models.NewGame(),
		cfg:     cfg,
		rng:     rng,
		gen:     tasks.NewGenerator(rng),
		lobbies: lobbies,
		now:     time.Now,
		log:     log,
	}
	e.timers = timers.NewScheduler(log, e)
	return e
}

// Scheduler exposes the engine's phase timer scheduler to the round driver.
func (e *Engine) Scheduler() *timers.Scheduler { return e.timers }

// SetPhaseDeadline implements timers.DeadlineSink. The most recently
// scheduled timer becomes the deadline's owner.
func (e *Engine) SetPhaseDeadline(key string, deadline time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadlineKey = key
	e.game.CurrentPhaseDeadline = deadline
}

// ClearPhaseDeadline implements timers.DeadlineSink. Clears from timers that
// no longer own the deadline are dropped, so a stale timer winding down
// cannot blank the deadline of the phase that superseded it.
func (e *Engine) ClearPhaseDeadline(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deadlineKey != key {
		return
	}
	e.deadlineKey = ""
	e.game.CurrentPhaseDeadline = time.Time{}
}

// CreateLobby starts a new game session from an origin conversation. Only
// legal when no game is active.
func (e *Engine) CreateLobby(ctx context.Context, originGroupID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Phase != models.PhaseIdle {
		return "", fmt.Errorf("%w (phase %s)", ErrAlreadyActive, e.game.Phase)
	}

	lobbyID, err := e.lobbies.CreateLobby(ctx, originGroupID)
	if err != nil {
		return "", fmt.Errorf("create lobby conversation: %w", err)
	}

	g := models.NewGame()
	g.Phase = models.PhaseLobbyCreated
	g.OriginGroupID = originGroupID
	g.LobbyGroupID = lobbyID
	g.StartTime = e.now()
	g.JoinDeadline = e.now().Add(e.cfg.JoinWindow)
	g.KillCooldown = e.cfg.KillCooldown
	g.KillSuccessChance = e.cfg.KillSuccessChance
	g.MaxKillAttempts = e.cfg.MaxKillAttempts
	e.game = g

	// The lobby is immediately open for joins.
	g.Phase = models.PhaseWaitingForPlayers

	e.log.Info().Str("origin", originGroupID).Str("lobby", lobbyID).Msg("lobby created")
	return lobbyID, nil
}

// AddPlayer appends a player to the roster. Joining again with a known id is
// an idempotent no-op.
func (e *Engine) AddPlayer(id, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Phase != models.PhaseWaitingForPlayers {
		return ErrInvalidPhase
	}
	if _, ok := e.game.Players[id]; ok {
		return nil
	}
	if len(e.game.Players) >= e.cfg.MaxPlayers {
		return ErrLobbyFull
	}
	e.addPlayerLocked(id, name)
	return nil
}

// AddPlayerEvicting is the join-button re-entry path: when the roster is at
// capacity the first-joined player is evicted to make room, and returned so
// the caller can notify them.
func (e *Engine) AddPlayerEvicting(id, name string) (*models.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Phase != models.PhaseWaitingForPlayers {
		return nil, ErrInvalidPhase
	}
	if _, ok := e.game.Players[id]; ok {
		return nil, nil
	}

	var evicted *models.Player
	if len(e.game.Players) >= e.cfg.MaxPlayers {
		oldestID := e.game.JoinOrder[0]
		old := e.game.Players[oldestID]
		copied := *old
		evicted = &copied
		delete(e.game.Players, oldestID)
		e.game.JoinOrder = e.game.JoinOrder[1:]
		e.log.Info().Str("player", oldestID).Msg("player evicted to make room")
	}

	e.addPlayerLocked(id, name)
	return evicted, nil
}

func (e *Engine) addPlayerLocked(id, name string) {
	e.game.Players[id] = &models.Player{
		ID:      id,
		Name:    name,
		Role:    models.RoleNone,
		IsAlive: true,
	}
	e.game.JoinOrder = append(e.game.JoinOrder, id)
	e.log.Info().Str("player", id).Str("name", name).Int("roster", len(e.game.Players)).Msg("player joined")
}

// CanStartGame reports whether the lobby has enough players to begin.
func (e *Engine) CanStartGame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Phase == models.PhaseWaitingForPlayers &&
		e.game.AliveCount() >= e.cfg.MinPlayersToStart
}

// AssignRoles picks exactly one impostor uniformly at random; everyone else
// is crew. Calling it twice fails.
func (e *Engine) AssignRoles() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.ImpostorID != "" {
		return ErrAlreadyAssigned
	}
	if e.game.Phase != models.PhaseWaitingForPlayers {
		return ErrInvalidPhase
	}

	impostorID := e.game.JoinOrder[e.rng.Intn(len(e.game.JoinOrder))]
	for id, p := range e.game.Players {
		if id == impostorID {
			p.Role = models.RoleImpostor
		} else {
			p.Role = models.RoleCrew
		}
	}
	e.game.ImpostorID = impostorID
	e.game.Phase = models.PhaseAssignRoles

	e.log.Info().Str("impostor", impostorID).Int("players", len(e.game.Players)).Msg("roles assigned")
	return nil
}

// StartRound begins round n: transitions into the task-and-kill phase and
// deals fresh tasks to every living player. Legal from ASSIGN_ROLES for round
// one, and from VOTING for each following round. The kill attempt budget is
// per game and is not reset here.
func (e *Engine) StartRound(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.game.Phase == models.PhaseAssignRoles && n == 1:
	case e.game.Phase == models.PhaseVoting && n == e.game.Round+1 && n <= e.cfg.MaxRounds:
	default:
		return ErrInvalidPhase
	}

	e.game.Round = n
	e.game.Phase = models.PhaseTaskAndKill
	for _, p := range e.game.AlivePlayers() {
		assigned := make([]*models.Task, 0, e.cfg.TasksPerPlayer)
		for i := 0; i < e.cfg.TasksPerPlayer; i++ {
			task := e.gen.Generate()
			assigned = append(assigned, &task)
		}
		e.game.TaskAssignments[p.ID] = assigned
	}

	e.log.Info().Int("round", n).Msg("round started")
	return nil
}

// TaskForPlayer returns a copy of the task at index in the player's
// assignment list.
func (e *Engine) TaskForPlayer(id string, index int) (models.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	assigned := e.game.TaskAssignments[id]
	if index < 0 || index >= len(assigned) {
		return models.Task{}, false
	}
	return *assigned[index], true
}

// CompleteTask validates an answer against the player's earliest incomplete
// task. A match marks it completed; a miss leaves the task open for
// resubmission. There is no limit on attempts per task.
func (e *Engine) CompleteTask(id, answer string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Phase != models.PhaseTaskAndKill {
		return false, ErrInvalidPhase
	}
	p, ok := e.game.Players[id]
	if !ok {
		return false, ErrPlayerNotFound
	}
	if !p.IsAlive {
		return false, ErrNotAuthorized
	}

	for _, task := range e.game.TaskAssignments[id] {
		if task.Completed {
			continue
		}
		if !tasks.Validate(*task, answer) {
			return false, nil
		}
		task.Completed = true
		p.CompletedTasks++
		e.log.Info().Str("player", id).Str("task", task.ID).Msg("task completed")
		return true, nil
	}
	return false, nil
}

// AttemptKill resolves a kill attempt by the impostor. Cooldown rejections do
// not consume the attempt budget; resolved attempts (hit or miss) do.
func (e *Engine) AttemptKill(killerID, targetRef string) (KillResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Phase != models.PhaseTaskAndKill {
		return KillResult{}, ErrInvalidPhase
	}
	killer, ok := e.game.Players[killerID]
	if !ok {
		return KillResult{}, ErrPlayerNotFound
	}
	if killer.Role != models.RoleImpostor || !killer.IsAlive {
		return KillResult{}, ErrNotAuthorized
	}

	target, err := e.resolveTargetLocked(targetRef)
	if err != nil {
		return KillResult{}, err
	}
	if !target.IsAlive || target.ID == killerID {
		return KillResult{}, ErrTargetNotFound
	}

	if !killer.LastKillAttempt.IsZero() {
		if elapsed := e.now().Sub(killer.LastKillAttempt); elapsed < e.game.KillCooldown {
			return KillResult{}, &CooldownError{Remaining: e.game.KillCooldown - elapsed}
		}
	}
	if killer.KillAttempts >= e.game.MaxKillAttempts {
		return KillResult{}, ErrAttemptsExhausted
	}

	killer.KillAttempts++
	killer.LastKillAttempt = e.now()

	result := KillResult{
		TargetID:     target.ID,
		TargetName:   target.Name,
		AttemptsLeft: e.game.MaxKillAttempts - killer.KillAttempts,
	}
	if e.rng.Float64() < e.game.KillSuccessChance {
		target.IsAlive = false
		e.game.Eliminated[target.ID] = struct{}{}
		result.Success = true
		result.Message = fmt.Sprintf("💀 %s has been eliminated!", target.Name)
	} else {
		result.Message = fmt.Sprintf("The attempt on %s failed. %d attempt(s) left.", target.Name, result.AttemptsLeft)
	}

	e.log.Info().Str("target", target.ID).Bool("success", result.Success).
		Int("attemptsLeft", result.AttemptsLeft).Msg("kill attempt resolved")
	return result, nil
}

// CastVote records a vote for the current round. A second vote by the same
// player returns false without overwriting the first.
func (e *Engine) CastVote(voterID, targetRef string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Phase != models.PhaseVoting {
		return false, ErrInvalidPhase
	}
	voter, ok := e.game.Players[voterID]
	if !ok {
		return false, ErrPlayerNotFound
	}
	if !voter.IsAlive {
		return false, ErrNotAuthorized
	}
	if voter.Voted {
		return false, nil
	}

	target, err := e.resolveTargetLocked(targetRef)
	if err != nil {
		return false, err
	}
	if !target.IsAlive {
		return false, ErrTargetNotFound
	}

	voter.Voted = true
	voter.VoteTarget = target.ID
	e.log.Info().Str("voter", voterID).Str("target", target.ID).Msg("vote cast")
	return true, nil
}

// VoteResults tallies the current round's votes, ordered by descending count.
// Ties keep the targets' join order (stable sort over the roster).
func (e *Engine) VoteResults() []models.VoteResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voteResultsLocked()
}

func (e *Engine) voteResultsLocked() []models.VoteResult {
	counts := make(map[string]int)
	for _, p := range e.game.Players {
		if p.Voted && p.VoteTarget != "" {
			counts[p.VoteTarget]++
		}
	}

	results := make([]models.VoteResult, 0, len(counts))
	for _, id := range e.game.JoinOrder {
		if n, ok := counts[id]; ok {
			results = append(results, models.VoteResult{Target: id, Votes: n})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Votes > results[j].Votes
	})
	return results
}

// MajorityThreshold is the vote count required to eliminate: ceil(alive/2).
func (e *Engine) MajorityThreshold() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(math.Ceil(float64(e.game.AliveCount()) / 2))
}

// EliminatePlayer removes a player from play. The player record is kept so
// history stays inspectable.
func (e *Engine) EliminatePlayer(targetID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.game.Players[targetID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.IsAlive = false
	e.game.Eliminated[targetID] = struct{}{}
	e.log.Info().Str("player", targetID).Msg("player eliminated")
	return nil
}

// CheckWinCondition evaluates the end of game. Crew wins when the impostor is
// dead; the impostor wins when all crew are eliminated, or when the final
// round's voting resolves with the impostor still alive.
func (e *Engine) CheckWinCondition() WinCheck {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.ImpostorID == "" {
		return WinCheck{}
	}
	impostor := e.game.Players[e.game.ImpostorID]
	if impostor == nil || !impostor.IsAlive {
		return WinCheck{GameEnded: true, Winner: models.RoleCrew}
	}

	aliveCrew := 0
	for _, p := range e.game.AlivePlayers() {
		if p.Role == models.RoleCrew {
			aliveCrew++
		}
	}
	if aliveCrew == 0 {
		return WinCheck{GameEnded: true, Winner: models.RoleImpostor}
	}
	if e.game.Round >= e.cfg.MaxRounds && e.game.Phase == models.PhaseVoting {
		return WinCheck{GameEnded: true, Winner: models.RoleImpostor}
	}
	return WinCheck{}
}

// AdvancePhase moves the state machine strictly forward within the round:
// TASKS → DISCUSSION → VOTING → GAME_END. Entering the next round goes
// through StartRound. Votes are reset exactly once per round, on the
// transition into VOTING.
func (e *Engine) AdvancePhase() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.game.Phase {
	case models.PhaseTaskAndKill:
		e.game.Phase = models.PhaseDiscussion
	case models.PhaseDiscussion:
		e.game.Phase = models.PhaseVoting
		for _, p := range e.game.AlivePlayers() {
			p.Voted = false
			p.VoteTarget = ""
		}
	case models.PhaseVoting:
		e.game.Phase = models.PhaseGameEnd
	default:
		return ErrInvalidPhase
	}

	e.log.Info().Str("phase", e.game.Phase.Label(e.game.Round)).Msg("phase advanced")
	return nil
}

// EndGame marks the game over. Legal from any phase of an assigned game.
func (e *Engine) EndGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.game.Phase {
	case models.PhaseIdle, models.PhaseGameEnd, models.PhaseCleanup:
		return ErrInvalidPhase
	}
	e.game.Phase = models.PhaseGameEnd
	return nil
}

// Cleanup clears all game state, cancels every phase timer, and resets to
// IDLE. Safe to call repeatedly.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	e.game = models.NewGame()
	e.deadlineKey = ""
	e.mu.Unlock()

	// Outside the engine lock: canceling timers reports deadline clears back
	// through the sink, which locks the engine again.
	e.timers.CancelAll()
	e.log.Info().Msg("game state cleared")
}

// resolveTargetLocked matches a target reference against player ids first,
// then display names (case-insensitive). Ambiguous names fail.
func (e *Engine) resolveTargetLocked(ref string) (*models.Player, error) {
	if p, ok := e.game.Players[ref]; ok {
		return p, nil
	}

	var match *models.Player
	for _, id := range e.game.JoinOrder {
		p := e.game.Players[id]
		if strings.EqualFold(p.Name, strings.TrimSpace(ref)) {
			if match != nil {
				return nil, ErrTargetNotFound
			}
			match = p
		}
	}
	if match == nil {
		return nil, ErrTargetNotFound
	}
	return match, nil
}

// Read-only accessors. Everything returned is a copy; callers never hold a
// reference into live game state.

func (e *Engine) Phase() models.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Phase
}

func (e *Engine) Round() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Round
}

func (e *Engine) LobbyGroupID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.LobbyGroupID
}

func (e *Engine) OriginGroupID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.OriginGroupID
}

func (e *Engine) ImpostorID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.ImpostorID
}

func (e *Engine) JoinDeadline() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.JoinDeadline
}

func (e *Engine) PhaseDeadline() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.CurrentPhaseDeadline
}

// Players returns copies of all players in join order.
func (e *Engine) Players() []models.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Player, 0, len(e.game.JoinOrder))
	for _, p := range e.game.PlayersInOrder() {
		out = append(out, *p)
	}
	return out
}

// AlivePlayers returns copies of the living players in join order.
func (e *Engine) AlivePlayers() []models.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Player, 0, len(e.game.JoinOrder))
	for _, p := range e.game.AlivePlayers() {
		out = append(out, *p)
	}
	return out
}

// PlayerByID returns a copy of one player.
func (e *Engine) PlayerByID(id string) (models.Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.game.Players[id]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}
