package repository

import (
	"context"
	"fmt"

	"github.com/pongarena/platform/internal/domain"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db DBTX, event domain.OutboxEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_outbox (topic, event_key, payload, occurred_at)
		VALUES ($1, $2, $3, $4)`,
		event.Topic, event.Key, event.Payload, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
