package models

import "time"

// Role is a player's assigned game role.
type Role string

const (
	RoleNone     Role = ""
	RoleCrew     Role = "CREW"
	RoleImpostor Role = "IMPOSTOR"
)

// Player represents a player in the game
type Player struct {
	ID              string
	Name            string
	Role            Role
	IsAlive         bool
	CompletedTasks  int
	KillAttempts    int
	LastKillAttempt time.Time // zero value means no attempt yet
	Voted           bool
	VoteTarget      string
}
