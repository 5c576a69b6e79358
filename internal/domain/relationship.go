package domain

import "time"

// FriendRequest statuses, mirroring the column's check constraint.
// Accepted and declined requests are deleted rather than kept, so live
// rows are always pending; the terminal values exist for the schema.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// FriendRequest is an in-flight invitation from one user to another.
// At most one row may exist per ordered (from, to) pair, and the engine
// guarantees at most one pending row per unordered pair.
type FriendRequest struct {
	ID         int64     `json:"id"`
	FromUserID int64     `json:"from_user_id"`
	ToUserID   int64     `json:"to_user_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SendOutcome reports how the engine resolved a send: a fresh pending
// request, or an auto-accept because the counterparty had already asked.
type SendOutcome string

const (
	SendOutcomeSent     SendOutcome = "sent"
	SendOutcomeAccepted SendOutcome = "accepted"
)

// RelationshipStatus summarizes how two users relate, as seen from the
// first user's side.
type RelationshipStatus struct {
	IsFriend          bool `json:"is_friend"`
	HasPendingRequest bool `json:"has_pending_request"`
}

// PendingRequest is a received invitation together with the sender's
// public profile, shaped for the requests inbox.
type PendingRequest struct {
	ID        int64         `json:"id"`
	FromUser  PublicProfile `json:"from_user"`
	CreatedAt time.Time     `json:"created_at"`
}
