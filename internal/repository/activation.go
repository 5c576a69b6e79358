package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pongarena/platform/internal/domain"
)

type activationRepo struct{}

// NewActivationRepository returns a pgx-backed ActivationRepository.
func NewActivationRepository() ActivationRepository {
	return &activationRepo{}
}

func (r *activationRepo) Create(ctx context.Context, db DBTX, token *domain.ActivationToken) error {
	_, err := db.Exec(ctx, `
		INSERT INTO account_activation_tokens (user_id, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at`,
		token.UserID, token.Token, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert activation token: %w", err)
	}
	return nil
}

func (r *activationRepo) FindByToken(ctx context.Context, db DBTX, token uuid.UUID) (*domain.ActivationToken, error) {
	var t domain.ActivationToken
	err := db.QueryRow(ctx, `
		SELECT user_id, token, created_at, expires_at
		FROM account_activation_tokens WHERE token = $1`, token).
		Scan(&t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find activation token: %w", err)
	}
	return &t, nil
}

func (r *activationRepo) DeleteByUserID(ctx context.Context, db DBTX, userID int64) error {
	_, err := db.Exec(ctx,
		`DELETE FROM account_activation_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete activation token: %w", err)
	}
	return nil
}
