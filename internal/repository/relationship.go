package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pongarena/platform/internal/domain"
)

type relationshipRepo struct{}

// NewRelationshipRepository returns a pgx-backed RelationshipRepository.
func NewRelationshipRepository() RelationshipRepository {
	return &relationshipRepo{}
}

func (r *relationshipRepo) AreFriends(ctx context.Context, db DBTX, userA, userB int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE user_lo = least($1::bigint, $2::bigint)
			  AND user_hi = greatest($1::bigint, $2::bigint)
		)`, userA, userB).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}

func (r *relationshipRepo) CreateFriendship(ctx context.Context, db DBTX, userA, userB int64) error {
	_, err := db.Exec(ctx, `
		INSERT INTO friendships (user_lo, user_hi)
		VALUES (least($1::bigint, $2::bigint), greatest($1::bigint, $2::bigint))
		ON CONFLICT DO NOTHING`, userA, userB)
	if err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (r *relationshipRepo) DeleteFriendship(ctx context.Context, db DBTX, userA, userB int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		DELETE FROM friendships
		WHERE user_lo = least($1::bigint, $2::bigint)
		  AND user_hi = greatest($1::bigint, $2::bigint)`, userA, userB)
	if err != nil {
		return false, fmt.Errorf("delete friendship: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *relationshipRepo) ListFriends(ctx context.Context, db DBTX, userID int64) ([]domain.PublicProfile, error) {
	rows, err := db.Query(ctx, `
		SELECT u.id, u.username, u.avatar_path, u.is_online,
			u.games_played, u.games_won, u.games_lost
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.user_lo = $1 THEN f.user_hi ELSE f.user_lo END
		WHERE f.user_lo = $1 OR f.user_hi = $1
		ORDER BY u.username`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func scanProfiles(rows pgx.Rows) ([]domain.PublicProfile, error) {
	var profiles []domain.PublicProfile
	for rows.Next() {
		var p domain.PublicProfile
		if err := rows.Scan(&p.ID, &p.Username, &p.Avatar, &p.IsOnline,
			&p.GamesPlayed, &p.GamesWon, &p.GamesLost); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *relationshipRepo) HasBlock(ctx context.Context, db DBTX, blocker, blocked int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2
		)`, blocker, blocked).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists, nil
}

func (r *relationshipRepo) AnyBlockBetween(ctx context.Context, db DBTX, userA, userB int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)`, userA, userB).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blocks: %w", err)
	}
	return exists, nil
}

func (r *relationshipRepo) CreateBlock(ctx context.Context, db DBTX, blocker, blocked int64) error {
	_, err := db.Exec(ctx, `
		INSERT INTO blocks (blocker_id, blocked_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, blocker, blocked)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

func (r *relationshipRepo) DeleteBlock(ctx context.Context, db DBTX, blocker, blocked int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`, blocker, blocked)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *relationshipRepo) ListBlocked(ctx context.Context, db DBTX, blocker int64) ([]domain.PublicProfile, error) {
	rows, err := db.Query(ctx, `
		SELECT u.id, u.username, u.avatar_path, u.is_online,
			u.games_played, u.games_won, u.games_lost
		FROM blocks b
		JOIN users u ON u.id = b.blocked_id
		WHERE b.blocker_id = $1
		ORDER BY u.username`, blocker)
	if err != nil {
		return nil, fmt.Errorf("list blocked: %w", err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}
