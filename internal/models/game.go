package models

import "time"

// Game represents one active game session (ephemeral). All mutation goes
// through the engine; other packages only ever see copies.
type Game struct {
	Phase         Phase
	LobbyGroupID  string // conversation created for the session
	OriginGroupID string // conversation where the game was started

	Players   map[string]*Player
	JoinOrder []string // player ids in join order

	Round                int
	StartTime            time.Time
	JoinDeadline         time.Time
	CurrentPhaseDeadline time.Time

	ImpostorID string
	Eliminated map[string]struct{}

	// Session copies of the deployment configuration, immutable per game.
	KillCooldown      time.Duration
	KillSuccessChance float64
	MaxKillAttempts   int

	TaskAssignments map[string][]*Task
}

// NewGame returns an empty game in the IDLE phase.
func NewGame() *Game {
	return &Game{
		Phase:           PhaseIdle,
		Players:         make(map[string]*Player),
		Eliminated:      make(map[string]struct{}),
		TaskAssignments: make(map[string][]*Task),
	}
}

// PlayersInOrder returns the players in join order.
func (g *Game) PlayersInOrder() []*Player {
	out := make([]*Player, 0, len(g.JoinOrder))
	for _, id := range g.JoinOrder {
		if p, ok := g.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// AlivePlayers returns the living players in join order.
func (g *Game) AlivePlayers() []*Player {
	out := make([]*Player, 0, len(g.JoinOrder))
	for _, p := range g.PlayersInOrder() {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

// AliveCount returns the number of living players.
func (g *Game) AliveCount() int {
	return len(g.AlivePlayers())
}
