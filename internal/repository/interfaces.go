package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pongarena/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// UserRepository provides access to the users table.
type UserRepository interface {
	// FindByID returns a user by ID.
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.User, error)

	// FindByUsername returns a user by username.
	FindByUsername(ctx context.Context, db DBTX, username string) (*domain.User, error)

	// FindByEmail returns a user by email.
	FindByEmail(ctx context.Context, db DBTX, email string) (*domain.User, error)

	// FindByExternalLogin returns a user provisioned through OAuth.
	FindByExternalLogin(ctx context.Context, db DBTX, login string) (*domain.User, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the user.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.User, error)

	// Create inserts a new user and fills in the generated ID.
	Create(ctx context.Context, db DBTX, user *domain.User) error

	// Update persists mutable profile columns.
	Update(ctx context.Context, db DBTX, user *domain.User) error

	// SetActive flips the activation flag.
	SetActive(ctx context.Context, db DBTX, id int64, active bool) error

	// SetOnline flips the presence flag.
	SetOnline(ctx context.Context, db DBTX, id int64, online bool) error

	// Delete removes the user row. Dependent rows cascade.
	Delete(ctx context.Context, db DBTX, id int64) error

	// TournamentNameExists checks a candidate name for collisions.
	TournamentNameExists(ctx context.Context, db DBTX, name string) (bool, error)

	// AddMatchResult bumps the game counters with server-side arithmetic.
	AddMatchResult(ctx context.Context, db DBTX, id int64, won bool) error

	// Search returns users whose username or tournament name matches the
	// query, excluding the viewer, annotated with relationship state.
	Search(ctx context.Context, db DBTX, viewerID int64, query string, limit int) ([]domain.SearchResult, error)
}

// FriendRequestRepository provides access to friend_requests.
type FriendRequestRepository interface {
	// FindBetween returns the request between two users in either
	// direction, or nil when none exists.
	FindBetween(ctx context.Context, db DBTX, userA, userB int64) (*domain.FriendRequest, error)

	// LockForUpdate acquires a row-level lock on a request by ID.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.FriendRequest, error)

	// Create inserts a pending request and fills in the generated ID.
	Create(ctx context.Context, db DBTX, req *domain.FriendRequest) error

	// Delete removes a request row.
	Delete(ctx context.Context, db DBTX, id int64) error

	// DeleteBetween removes all requests between two users, both directions.
	DeleteBetween(ctx context.Context, db DBTX, userA, userB int64) error

	// ListPendingFor returns pending requests addressed to the user,
	// newest first, with sender profiles attached.
	ListPendingFor(ctx context.Context, db DBTX, userID int64) ([]domain.PendingRequest, error)
}

// RelationshipRepository provides access to friendships and blocks.
type RelationshipRepository interface {
	// AreFriends reports whether an edge exists between the two users.
	AreFriends(ctx context.Context, db DBTX, userA, userB int64) (bool, error)

	// CreateFriendship inserts the undirected edge.
	CreateFriendship(ctx context.Context, db DBTX, userA, userB int64) error

	// DeleteFriendship removes the edge. Returns true if one existed.
	DeleteFriendship(ctx context.Context, db DBTX, userA, userB int64) (bool, error)

	// ListFriends returns the user's friends as public profiles.
	ListFriends(ctx context.Context, db DBTX, userID int64) ([]domain.PublicProfile, error)

	// HasBlock reports whether blocker has blocked blocked.
	HasBlock(ctx context.Context, db DBTX, blocker, blocked int64) (bool, error)

	// AnyBlockBetween reports whether either user has blocked the other.
	AnyBlockBetween(ctx context.Context, db DBTX, userA, userB int64) (bool, error)

	// CreateBlock inserts a directed block.
	CreateBlock(ctx context.Context, db DBTX, blocker, blocked int64) error

	// DeleteBlock removes a directed block. Returns true if one existed.
	DeleteBlock(ctx context.Context, db DBTX, blocker, blocked int64) (bool, error)

	// ListBlocked returns the users this user has blocked.
	ListBlocked(ctx context.Context, db DBTX, blocker int64) ([]domain.PublicProfile, error)
}

// ActivationRepository provides access to account_activation_tokens.
type ActivationRepository interface {
	// Create inserts an activation token for a user, replacing any
	// previous one.
	Create(ctx context.Context, db DBTX, token *domain.ActivationToken) error

	// FindByToken returns the activation token row, or nil if unknown.
	FindByToken(ctx context.Context, db DBTX, token uuid.UUID) (*domain.ActivationToken, error)

	// DeleteByUserID consumes the user's token.
	DeleteByUserID(ctx context.Context, db DBTX, userID int64) error
}

// MatchRepository provides access to matches.
type MatchRepository interface {
	// Insert records a finished match and fills in the generated ID.
	Insert(ctx context.Context, db DBTX, match *domain.Match) error

	// ListByUser returns matches the user participated in, newest first.
	ListByUser(ctx context.Context, db DBTX, userID int64, limit int) ([]domain.Match, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event within the caller's transaction.
	Insert(ctx context.Context, db DBTX, event domain.OutboxEvent) error
}
