package models

import "fmt"

// Phase represents the current state of the game state machine.
//
// Tasks and kill attempts share a single phase per round (the merged
// task-and-kill window), followed by discussion and voting.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLobbyCreated
	PhaseWaitingForPlayers
	PhaseAssignRoles
	PhaseTaskAndKill
	PhaseDiscussion
	PhaseVoting
	PhaseGameEnd
	PhaseCleanup
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseLobbyCreated:
		return "LOBBY_CREATED"
	case PhaseWaitingForPlayers:
		return "WAITING_FOR_PLAYERS"
	case PhaseAssignRoles:
		return "ASSIGN_ROLES"
	case PhaseTaskAndKill:
		return "TASKS"
	case PhaseDiscussion:
		return "DISCUSSION"
	case PhaseVoting:
		return "VOTING"
	case PhaseGameEnd:
		return "GAME_END"
	case PhaseCleanup:
		return "CLEANUP"
	default:
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
}

// Label renders the phase with its round context, e.g. "ROUND_2_VOTING".
func (p Phase) Label(round int) string {
	if p.InRound() {
		return fmt.Sprintf("ROUND_%d_%s", round, p.String())
	}
	return p.String()
}

// InRound reports whether the phase belongs to the per-round sequence.
func (p Phase) InRound() bool {
	switch p {
	case PhaseTaskAndKill, PhaseDiscussion, PhaseVoting:
		return true
	}
	return false
}
