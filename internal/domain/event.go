package domain

import (
	"encoding/json"
	"time"
)

// Kafka topics for domain events published through the outbox.
const (
	TopicFriendAccepted = "pong.friend.accepted"
	TopicFriendRemoved  = "pong.friend.removed"
	TopicUserBlocked    = "pong.user.blocked"
	TopicMatchRecorded  = "pong.match.recorded"
)

// OutboxEvent is a domain event staged in the event_outbox table within
// the transaction that produced it, and published asynchronously.
type OutboxEvent struct {
	SeqID      int64
	Topic      string
	Key        string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// NewOutboxEvent builds an event draft. Marshal errors are impossible
// for the map/struct payloads used here, so they surface as a nil
// payload rather than an error return.
func NewOutboxEvent(topic, key string, payload interface{}) OutboxEvent {
	raw, _ := json.Marshal(payload)
	return OutboxEvent{
		Topic:      topic,
		Key:        key,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}
}
