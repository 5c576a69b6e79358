package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pongarena/platform/internal/domain"
)

const userColumns = `
	id, username, email, password_hash, tournament_name, avatar_path,
	is_active, is_online, external_login, games_played, games_won,
	games_lost, default_lang, created_at, updated_at`

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) FindByUsername(ctx context.Context, db DBTX, username string) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *userRepo) FindByEmail(ctx context.Context, db DBTX, email string) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *userRepo) FindByExternalLogin(ctx context.Context, db DBTX, username string) (*domain.User, error) {
	row := db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username = $1 AND external_login = true`, username)
	return scanUser(row)
}

func (r *userRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.User, error) {
	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	return scanUser(row)
}

func (r *userRepo) Create(ctx context.Context, db DBTX, user *domain.User) error {
	err := db.QueryRow(ctx, `
		INSERT INTO users (
			username, email, password_hash, tournament_name, avatar_path,
			is_active, is_online, external_login, default_lang
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.TournamentName,
		user.AvatarPath,
		user.IsActive,
		user.IsOnline,
		user.ExternalLogin,
		user.DefaultLang,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepo) Update(ctx context.Context, db DBTX, user *domain.User) error {
	tag, err := db.Exec(ctx, `
		UPDATE users SET
			username = $2, email = $3, password_hash = $4,
			tournament_name = $5, avatar_path = $6, default_lang = $7,
			updated_at = now()
		WHERE id = $1`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.TournamentName,
		user.AvatarPath,
		user.DefaultLang,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepo) SetActive(ctx context.Context, db DBTX, id int64, active bool) error {
	_, err := db.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

func (r *userRepo) SetOnline(ctx context.Context, db DBTX, id int64, online bool) error {
	_, err := db.Exec(ctx,
		`UPDATE users SET is_online = $2, updated_at = now() WHERE id = $1`, id, online)
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, db DBTX, id int64) error {
	tag, err := db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepo) TournamentNameExists(ctx context.Context, db DBTX, name string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE tournament_name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tournament name: %w", err)
	}
	return exists, nil
}

// AddMatchResult bumps counters with server-side arithmetic so two
// matches finishing at once never lose an increment.
func (r *userRepo) AddMatchResult(ctx context.Context, db DBTX, id int64, won bool) error {
	var sql string
	if won {
		sql = `UPDATE users SET games_played = games_played + 1,
			games_won = games_won + 1, updated_at = now() WHERE id = $1`
	} else {
		sql = `UPDATE users SET games_played = games_played + 1,
			games_lost = games_lost + 1, updated_at = now() WHERE id = $1`
	}
	tag, err := db.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("add match result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepo) Search(ctx context.Context, db DBTX, viewerID int64, query string, limit int) ([]domain.SearchResult, error) {
	rows, err := db.Query(ctx, `
		SELECT
			u.id, u.username, u.avatar_path, u.is_online,
			u.games_played, u.games_won, u.games_lost,
			EXISTS (
				SELECT 1 FROM friendships f
				WHERE f.user_lo = least(u.id, $1) AND f.user_hi = greatest(u.id, $1)
			) AS is_friend,
			EXISTS (
				SELECT 1 FROM blocks b
				WHERE (b.blocker_id = $1 AND b.blocked_id = u.id)
				   OR (b.blocker_id = u.id AND b.blocked_id = $1)
			) AS is_blocked,
			EXISTS (
				SELECT 1 FROM friend_requests fr
				WHERE fr.status = 'pending'
				  AND ((fr.from_user_id = $1 AND fr.to_user_id = u.id)
				    OR (fr.from_user_id = u.id AND fr.to_user_id = $1))
			) AS has_pending_request
		FROM users u
		WHERE u.id <> $1
		  AND u.is_active = true
		  AND (u.username ILIKE '%' || $2 || '%' OR u.tournament_name ILIKE '%' || $2 || '%')
		ORDER BY u.username
		LIMIT $3`, viewerID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var sr domain.SearchResult
		if err := rows.Scan(
			&sr.ID, &sr.Username, &sr.Avatar, &sr.IsOnline,
			&sr.GamesPlayed, &sr.GamesWon, &sr.GamesLost,
			&sr.IsFriend, &sr.IsBlocked, &sr.HasPendingRequest,
		); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.TournamentName,
		&u.AvatarPath, &u.IsActive, &u.IsOnline, &u.ExternalLogin,
		&u.GamesPlayed, &u.GamesWon, &u.GamesLost, &u.DefaultLang,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
