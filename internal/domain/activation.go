package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivationTokenTTL is how long an account activation link stays valid.
const ActivationTokenTTL = 48 * time.Hour

// ActivationToken gates login on a freshly registered account. One per
// user; consumed (deleted) on successful activation. Expired tokens are
// inert: activation checks the deadline but does not garbage-collect.
type ActivationToken struct {
	UserID    int64
	Token     uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its deadline.
func (t *ActivationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
