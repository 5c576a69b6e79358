package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/repository"
)

// MatchService records finished games and keeps the per-user counters
// consistent with them.
type MatchService struct {
	pool    *pgxpool.Pool
	users   repository.UserRepository
	matches repository.MatchRepository
	outbox  repository.OutboxRepository
}

// NewMatchService creates a new MatchService.
func NewMatchService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	matches repository.MatchRepository,
	outbox repository.OutboxRepository,
) *MatchService {
	return &MatchService{pool: pool, users: users, matches: matches, outbox: outbox}
}

// Record stores a match and bumps every participant's counters in the
// same transaction, so a crash can never count a game without storing
// it or the other way round.
func (s *MatchService) Record(ctx context.Context, cmd *domain.CreateMatchCommand) (*domain.Match, error) {
	if err := cmd.Validate(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range cmd.Participants() {
		if _, err := s.users.FindByID(ctx, tx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound("user", fmt.Sprint(id))
			}
			return nil, domain.ErrInternal("find user", err)
		}
	}

	match := &domain.Match{
		Mode:         cmd.Mode,
		AgainstAI:    cmd.AgainstAI(),
		AIDifficulty: cmd.AIDifficulty,
		Player1ID:    cmd.Player1ID,
		Player2ID:    cmd.Player2ID,
		Player3ID:    cmd.Player3ID,
		Player4ID:    cmd.Player4ID,
		Player1Score: cmd.Player1Score,
		Player2Score: cmd.Player2Score,
		Player3Score: cmd.Player3Score,
		Player4Score: cmd.Player4Score,
		WinnerID:     cmd.WinnerID,
		PlayedAt:     time.Now(),
	}
	if err := s.matches.Insert(ctx, tx, match); err != nil {
		return nil, domain.ErrInternal("insert match", err)
	}

	for _, id := range cmd.Participants() {
		won := cmd.WinnerID != nil && *cmd.WinnerID == id
		if err := s.users.AddMatchResult(ctx, tx, id, won); err != nil {
			return nil, domain.ErrInternal("update counters", err)
		}
	}

	event := domain.NewOutboxEvent(domain.TopicMatchRecorded,
		fmt.Sprint(match.Player1ID), match)
	if err := s.outbox.Insert(ctx, tx, event); err != nil {
		return nil, domain.ErrInternal("stage event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	return match, nil
}

// History returns the user's recent matches, newest first.
func (s *MatchService) History(ctx context.Context, userID int64, limit int) ([]domain.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	matches, err := s.matches.ListByUser(ctx, s.pool, userID, limit)
	if err != nil {
		return nil, domain.ErrInternal("list matches", err)
	}
	return matches, nil
}
