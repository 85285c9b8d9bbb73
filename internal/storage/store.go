// Package storage persists finished games in Postgres for the leaderboard.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaronzipp/impostor-bot/internal/models"
)

// Standing is one leaderboard row.
type Standing struct {
	PlayerID    string
	DisplayName string
	Wins        int
	Losses      int
}

type Store struct {
	db *pgxpool.Pool
}

// New opens a connection pool against dsn.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	return &Store{db: pool}, nil
}

// EnsureSchema creates the leaderboard table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboard (
			player_id    TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			wins         INT NOT NULL DEFAULT 0,
			losses       INT NOT NULL DEFAULT 0,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordResult credits a win or a loss to every player of a finished game,
// depending on whether their role matches the winning side.
func (s *Store) RecordResult(ctx context.Context, winner models.Role, players []models.Player) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range players {
		won := p.Role == winner
		winInc, lossInc := 0, 1
		if won {
			winInc, lossInc = 1, 0
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO leaderboard (player_id, display_name, wins, losses, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (player_id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				wins = leaderboard.wins + EXCLUDED.wins,
				losses = leaderboard.losses + EXCLUDED.losses,
				updated_at = NOW()`,
			p.ID, p.Name, winInc, lossInc,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Leaderboard returns the top standings ordered by wins, then fewest losses.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT player_id, display_name, wins, losses
		FROM leaderboard
		ORDER BY wins DESC, losses ASC, display_name ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []Standing
	for rows.Next() {
		var st Standing
		if err := rows.Scan(&st.PlayerID, &st.DisplayName, &st.Wins, &st.Losses); err != nil {
			return nil, err
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.Close()
}
