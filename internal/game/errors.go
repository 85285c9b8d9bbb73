package game

import (
	"errors"
	"fmt"
	"time"
)

// Every failure the engine produces is recoverable at the call site: the
// transport layer turns it into a user-facing message and the game continues.
var (
	ErrInvalidPhase      = errors.New("action not legal in current phase")
	ErrLobbyFull         = errors.New("lobby is full")
	ErrAlreadyActive     = errors.New("a game is already in progress")
	ErrAlreadyAssigned   = errors.New("roles already assigned")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrTargetNotFound    = errors.New("target not found")
	ErrOnCooldown        = errors.New("kill attempt on cooldown")
	ErrAttemptsExhausted = errors.New("no kill attempts remaining")
	ErrNotAuthorized     = errors.New("not authorized for this action")
)

// CooldownError carries the remaining wait so the transport can report it.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("kill attempt on cooldown for another %s", e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrOnCooldown }
