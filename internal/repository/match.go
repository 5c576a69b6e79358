package repository

import (
	"context"
	"fmt"

	"github.com/pongarena/platform/internal/domain"
)

type matchRepo struct{}

// NewMatchRepository returns a pgx-backed MatchRepository.
func NewMatchRepository() MatchRepository {
	return &matchRepo{}
}

func (r *matchRepo) Insert(ctx context.Context, db DBTX, m *domain.Match) error {
	err := db.QueryRow(ctx, `
		INSERT INTO matches (
			mode, against_ai, ai_difficulty,
			player1_id, player2_id, player3_id, player4_id,
			player1_score, player2_score, player3_score, player4_score,
			winner_id, played_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		m.Mode, m.AgainstAI, nullString(m.AIDifficulty),
		m.Player1ID, m.Player2ID, m.Player3ID, m.Player4ID,
		m.Player1Score, m.Player2Score, m.Player3Score, m.Player4Score,
		m.WinnerID, m.PlayedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (r *matchRepo) ListByUser(ctx context.Context, db DBTX, userID int64, limit int) ([]domain.Match, error) {
	rows, err := db.Query(ctx, `
		SELECT id, mode, against_ai, coalesce(ai_difficulty, ''),
			player1_id, player2_id, player3_id, player4_id,
			player1_score, player2_score, player3_score, player4_score,
			winner_id, played_at
		FROM matches
		WHERE $1 IN (player1_id, player2_id, player3_id, player4_id)
		ORDER BY played_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(
			&m.ID, &m.Mode, &m.AgainstAI, &m.AIDifficulty,
			&m.Player1ID, &m.Player2ID, &m.Player3ID, &m.Player4ID,
			&m.Player1Score, &m.Player2Score, &m.Player3Score, &m.Player4Score,
			&m.WinnerID, &m.PlayedAt,
		); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
