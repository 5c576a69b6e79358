package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pongarena/platform/internal/domain"
)

const requestColumns = `id, from_user_id, to_user_id, status, created_at, updated_at`

type friendRequestRepo struct{}

// NewFriendRequestRepository returns a pgx-backed FriendRequestRepository.
func NewFriendRequestRepository() FriendRequestRepository {
	return &friendRequestRepo{}
}

func (r *friendRequestRepo) FindBetween(ctx context.Context, db DBTX, userA, userB int64) (*domain.FriendRequest, error) {
	row := db.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM friend_requests
		WHERE (from_user_id = $1 AND to_user_id = $2)
		   OR (from_user_id = $2 AND to_user_id = $1)
		ORDER BY created_at DESC
		LIMIT 1`, userA, userB)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *friendRequestRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.FriendRequest, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM friend_requests WHERE id = $1 FOR UPDATE`, id)
	return scanRequest(row)
}

func (r *friendRequestRepo) Create(ctx context.Context, db DBTX, req *domain.FriendRequest) error {
	err := db.QueryRow(ctx, `
		INSERT INTO friend_requests (from_user_id, to_user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		req.FromUserID, req.ToUserID, req.Status,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

func (r *friendRequestRepo) Delete(ctx context.Context, db DBTX, id int64) error {
	_, err := db.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

func (r *friendRequestRepo) DeleteBetween(ctx context.Context, db DBTX, userA, userB int64) error {
	_, err := db.Exec(ctx, `
		DELETE FROM friend_requests
		WHERE (from_user_id = $1 AND to_user_id = $2)
		   OR (from_user_id = $2 AND to_user_id = $1)`, userA, userB)
	if err != nil {
		return fmt.Errorf("delete friend requests: %w", err)
	}
	return nil
}

func (r *friendRequestRepo) ListPendingFor(ctx context.Context, db DBTX, userID int64) ([]domain.PendingRequest, error) {
	rows, err := db.Query(ctx, `
		SELECT fr.id, fr.created_at,
			u.id, u.username, u.avatar_path, u.is_online,
			u.games_played, u.games_won, u.games_lost
		FROM friend_requests fr
		JOIN users u ON u.id = fr.from_user_id
		WHERE fr.to_user_id = $1 AND fr.status = 'pending'
		ORDER BY fr.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var pending []domain.PendingRequest
	for rows.Next() {
		var p domain.PendingRequest
		if err := rows.Scan(
			&p.ID, &p.CreatedAt,
			&p.FromUser.ID, &p.FromUser.Username, &p.FromUser.Avatar,
			&p.FromUser.IsOnline, &p.FromUser.GamesPlayed,
			&p.FromUser.GamesWon, &p.FromUser.GamesLost,
		); err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.FriendRequest, error) {
	var req domain.FriendRequest
	err := row.Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan friend request: %w", err)
	}
	return &req, nil
}
