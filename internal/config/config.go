package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every deployment tunable. A started game copies the kill
// parameters into its session state, so changing the environment never
// affects a game in flight.
type Config struct {
	TelegramToken   string `env:"TELEGRAM_TOKEN"`
	LobbyChatID     int64  `env:"LOBBY_CHAT_ID"`
	LobbyInviteLink string `env:"LOBBY_INVITE_LINK"`
	PostgresDSN     string `env:"POSTGRES_DSN"`
	Debug           bool   `env:"DEBUG"`

	MaxPlayers        int `env:"MAX_PLAYERS" envDefault:"6"`
	MinPlayersToStart int `env:"MIN_PLAYERS_TO_START" envDefault:"3"`
	MaxRounds         int `env:"MAX_ROUNDS" envDefault:"1"`
	TasksPerPlayer    int `env:"TASKS_PER_PLAYER" envDefault:"2"`

	KillCooldown      time.Duration `env:"KILL_COOLDOWN" envDefault:"15s"`
	KillSuccessChance float64       `env:"KILL_SUCCESS_CHANCE" envDefault:"0.5"`
	MaxKillAttempts   int           `env:"MAX_KILL_ATTEMPTS" envDefault:"3"`

	TaskPhaseDuration       time.Duration `env:"TASK_PHASE_DURATION" envDefault:"60s"`
	KillPhaseDuration       time.Duration `env:"KILL_PHASE_DURATION" envDefault:"60s"`
	DiscussionPhaseDuration time.Duration `env:"DISCUSSION_PHASE_DURATION" envDefault:"45s"`
	VotingPhaseDuration     time.Duration `env:"VOTING_PHASE_DURATION" envDefault:"60s"`
	JoinWindow              time.Duration `env:"JOIN_WINDOW" envDefault:"2m"`
	CancelWindow            time.Duration `env:"CANCEL_WINDOW" envDefault:"10s"`

	// TaskDispatchBuffer is how long before the end of the task phase the
	// last task announcement must have gone out.
	TaskDispatchBuffer time.Duration `env:"TASK_DISPATCH_BUFFER" envDefault:"15s"`

	// KillAdvanceDelay is the grace period between a successful kill and the
	// early advance into discussion.
	KillAdvanceDelay time.Duration `env:"KILL_ADVANCE_DELAY" envDefault:"2s"`
}

// Load reads .env if present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the state machine cannot run with.
func (c Config) Validate() error {
	if c.MaxPlayers < c.MinPlayersToStart {
		return fmt.Errorf("MAX_PLAYERS (%d) below MIN_PLAYERS_TO_START (%d)", c.MaxPlayers, c.MinPlayersToStart)
	}
	if c.MinPlayersToStart < 2 {
		return fmt.Errorf("MIN_PLAYERS_TO_START must be at least 2, got %d", c.MinPlayersToStart)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("MAX_ROUNDS must be at least 1, got %d", c.MaxRounds)
	}
	if c.KillSuccessChance < 0 || c.KillSuccessChance > 1 {
		return fmt.Errorf("KILL_SUCCESS_CHANCE must be in [0,1], got %v", c.KillSuccessChance)
	}
	if c.MaxKillAttempts < 1 {
		return fmt.Errorf("MAX_KILL_ATTEMPTS must be at least 1, got %d", c.MaxKillAttempts)
	}
	if c.TasksPerPlayer < 1 {
		return fmt.Errorf("TASKS_PER_PLAYER must be at least 1, got %d", c.TasksPerPlayer)
	}
	if c.TaskDispatchBuffer >= c.CombinedPhaseDuration() {
		return fmt.Errorf("TASK_DISPATCH_BUFFER (%v) must be shorter than the task phase (%v)", c.TaskDispatchBuffer, c.CombinedPhaseDuration())
	}
	return nil
}

// CombinedPhaseDuration is the length of the merged task-and-kill phase.
func (c Config) CombinedPhaseDuration() time.Duration {
	if c.KillPhaseDuration > c.TaskPhaseDuration {
		return c.KillPhaseDuration
	}
	return c.TaskPhaseDuration
}
