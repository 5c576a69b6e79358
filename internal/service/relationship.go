package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/repository"
)

// RelationshipService runs the friend request state machine and the
// block list. Every mutation happens inside one transaction; concurrent
// mutations on the same pair serialize on row locks and the pending
// request unique index.
type RelationshipService struct {
	pool     *pgxpool.Pool
	users    repository.UserRepository
	requests repository.FriendRequestRepository
	rels     repository.RelationshipRepository
	outbox   repository.OutboxRepository
}

// NewRelationshipService creates a new RelationshipService.
func NewRelationshipService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	requests repository.FriendRequestRepository,
	rels repository.RelationshipRepository,
	outbox repository.OutboxRepository,
) *RelationshipService {
	return &RelationshipService{
		pool:     pool,
		users:    users,
		requests: requests,
		rels:     rels,
		outbox:   outbox,
	}
}

// errPendingPair reports an insert that lost the race against another
// pending request between the same pair.
var errPendingPair = errors.New("pending request pair exists")

// SendRequest asks targetUsername for friendship. If the target already
// asked first, the two requests collapse into an immediate friendship.
func (s *RelationshipService) SendRequest(ctx context.Context, fromID int64, targetUsername string) (domain.SendOutcome, error) {
	target, err := s.resolveTarget(ctx, targetUsername)
	if err != nil {
		return "", err
	}
	if target.ID == fromID {
		return "", domain.ErrValidation("you cannot send a friend request to yourself")
	}

	outcome, err := s.trySend(ctx, fromID, target.ID)
	if errors.Is(err, errPendingPair) {
		// Two mutual sends can race past FindBetween; the loser's insert
		// hits the pending pair index. The winner's row is committed by
		// then, so a second attempt lands on the auto-accept branch.
		outcome, err = s.trySend(ctx, fromID, target.ID)
		if errors.Is(err, errPendingPair) {
			err = domain.ErrConflict("friend request already sent")
		}
	}
	return outcome, err
}

func (s *RelationshipService) trySend(ctx context.Context, fromID, toID int64) (domain.SendOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	blocked, err := s.rels.AnyBlockBetween(ctx, tx, fromID, toID)
	if err != nil {
		return "", domain.ErrInternal("check blocks", err)
	}
	if blocked {
		return "", domain.ErrForbidden("you cannot send a friend request to this user")
	}

	friends, err := s.rels.AreFriends(ctx, tx, fromID, toID)
	if err != nil {
		return "", domain.ErrInternal("check friendship", err)
	}
	if friends {
		return "", domain.ErrConflict("you are already friends with this user")
	}

	existing, err := s.requests.FindBetween(ctx, tx, fromID, toID)
	if err != nil {
		return "", domain.ErrInternal("find friend request", err)
	}

	if existing != nil {
		// Re-read under lock. A concurrent Decline can delete the row
		// between the lookup and here; acting on the stale read would
		// befriend a pair whose request was just declined.
		locked, err := s.requests.LockForUpdate(ctx, tx, existing.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrInternal("lock friend request", err)
		}
		if locked != nil && locked.Status == domain.RequestPending {
			if locked.FromUserID == fromID {
				return "", domain.ErrConflict("friend request already sent")
			}
			// The counterparty asked first; both requests collapse.
			if err := s.befriend(ctx, tx, fromID, toID); err != nil {
				return "", err
			}
			if err := tx.Commit(ctx); err != nil {
				return "", domain.ErrInternal("commit tx", err)
			}
			return domain.SendOutcomeAccepted, nil
		}
	}

	req := &domain.FriendRequest{
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     domain.RequestPending,
	}
	if err := s.requests.Create(ctx, tx, req); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", errPendingPair
		}
		return "", domain.ErrInternal("create friend request", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", domain.ErrInternal("commit tx", err)
	}
	return domain.SendOutcomeSent, nil
}

// Accept resolves a pending request addressed to the acting user.
func (s *RelationshipService) Accept(ctx context.Context, actingUserID, requestID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.lockOwnPending(ctx, tx, actingUserID, requestID)
	if err != nil {
		return err
	}

	if err := s.befriend(ctx, tx, req.FromUserID, req.ToUserID); err != nil {
		return err
	}
	return commit(ctx, tx)
}

// Decline drops a pending request addressed to the acting user. The
// sender may ask again later.
func (s *RelationshipService) Decline(ctx context.Context, actingUserID, requestID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.lockOwnPending(ctx, tx, actingUserID, requestID)
	if err != nil {
		return err
	}

	if err := s.requests.Delete(ctx, tx, req.ID); err != nil {
		return domain.ErrInternal("delete friend request", err)
	}
	return commit(ctx, tx)
}

// RemoveFriend severs the friendship with targetUsername for both sides.
func (s *RelationshipService) RemoveFriend(ctx context.Context, actingUserID int64, targetUsername string) error {
	target, err := s.resolveTarget(ctx, targetUsername)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	removed, err := s.rels.DeleteFriendship(ctx, tx, actingUserID, target.ID)
	if err != nil {
		return domain.ErrInternal("delete friendship", err)
	}
	if !removed {
		return domain.ErrNotFound("friendship", targetUsername)
	}
	if err := s.requests.DeleteBetween(ctx, tx, actingUserID, target.ID); err != nil {
		return domain.ErrInternal("delete friend requests", err)
	}

	if err := s.publish(ctx, tx, domain.TopicFriendRemoved, actingUserID, target.ID); err != nil {
		return err
	}
	return commit(ctx, tx)
}

// Block hides the acting user from targetUsername. An existing
// friendship and any requests between the two are dropped.
func (s *RelationshipService) Block(ctx context.Context, actingUserID int64, targetUsername string) error {
	target, err := s.resolveTarget(ctx, targetUsername)
	if err != nil {
		return err
	}
	if target.ID == actingUserID {
		return domain.ErrValidation("you cannot block yourself")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	already, err := s.rels.HasBlock(ctx, tx, actingUserID, target.ID)
	if err != nil {
		return domain.ErrInternal("check block", err)
	}
	if already {
		return domain.ErrConflict("user is already blocked")
	}

	if err := s.rels.CreateBlock(ctx, tx, actingUserID, target.ID); err != nil {
		return domain.ErrInternal("create block", err)
	}
	if _, err := s.rels.DeleteFriendship(ctx, tx, actingUserID, target.ID); err != nil {
		return domain.ErrInternal("delete friendship", err)
	}
	if err := s.requests.DeleteBetween(ctx, tx, actingUserID, target.ID); err != nil {
		return domain.ErrInternal("delete friend requests", err)
	}

	if err := s.publish(ctx, tx, domain.TopicUserBlocked, actingUserID, target.ID); err != nil {
		return err
	}
	return commit(ctx, tx)
}

// Unblock lifts the acting user's block. The old friendship does not
// come back with it.
func (s *RelationshipService) Unblock(ctx context.Context, actingUserID int64, targetUsername string) error {
	target, err := s.resolveTarget(ctx, targetUsername)
	if err != nil {
		return err
	}

	removed, err := s.rels.DeleteBlock(ctx, s.pool, actingUserID, target.ID)
	if err != nil {
		return domain.ErrInternal("delete block", err)
	}
	if !removed {
		return domain.ErrNotFound("block", targetUsername)
	}
	return nil
}

// Friends lists the acting user's friends.
func (s *RelationshipService) Friends(ctx context.Context, userID int64) ([]domain.PublicProfile, error) {
	friends, err := s.rels.ListFriends(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("list friends", err)
	}
	return friends, nil
}

// PendingRequests lists invitations waiting on the acting user.
func (s *RelationshipService) PendingRequests(ctx context.Context, userID int64) ([]domain.PendingRequest, error) {
	pending, err := s.requests.ListPendingFor(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("list pending requests", err)
	}
	return pending, nil
}

// Blocked lists the users the acting user has blocked.
func (s *RelationshipService) Blocked(ctx context.Context, userID int64) ([]domain.PublicProfile, error) {
	blocked, err := s.rels.ListBlocked(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("list blocked", err)
	}
	return blocked, nil
}

// Status reports how the acting user relates to targetUsername.
func (s *RelationshipService) Status(ctx context.Context, actingUserID int64, targetUsername string) (*domain.RelationshipStatus, error) {
	target, err := s.resolveTarget(ctx, targetUsername)
	if err != nil {
		return nil, err
	}

	friends, err := s.rels.AreFriends(ctx, s.pool, actingUserID, target.ID)
	if err != nil {
		return nil, domain.ErrInternal("check friendship", err)
	}
	req, err := s.requests.FindBetween(ctx, s.pool, actingUserID, target.ID)
	if err != nil {
		return nil, domain.ErrInternal("find friend request", err)
	}

	return &domain.RelationshipStatus{
		IsFriend:          friends,
		HasPendingRequest: req != nil && req.Status == domain.RequestPending,
	}, nil
}

// befriend creates the edge, clears the requests and stages the event.
func (s *RelationshipService) befriend(ctx context.Context, tx pgx.Tx, userA, userB int64) error {
	if err := s.rels.CreateFriendship(ctx, tx, userA, userB); err != nil {
		return domain.ErrInternal("create friendship", err)
	}
	if err := s.requests.DeleteBetween(ctx, tx, userA, userB); err != nil {
		return domain.ErrInternal("delete friend requests", err)
	}
	return s.publish(ctx, tx, domain.TopicFriendAccepted, userA, userB)
}

// lockOwnPending locks a request and checks it is pending and addressed
// to the acting user. Anything else reads as not-found so request ids
// cannot be probed.
func (s *RelationshipService) lockOwnPending(ctx context.Context, tx pgx.Tx, actingUserID, requestID int64) (*domain.FriendRequest, error) {
	req, err := s.requests.LockForUpdate(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound("friend request", fmt.Sprint(requestID))
		}
		return nil, domain.ErrInternal("lock friend request", err)
	}
	if req.ToUserID != actingUserID || req.Status != domain.RequestPending {
		return nil, domain.ErrNotFound("friend request", fmt.Sprint(requestID))
	}
	return req, nil
}

func (s *RelationshipService) publish(ctx context.Context, tx pgx.Tx, topic string, userA, userB int64) error {
	event := domain.NewOutboxEvent(topic, fmt.Sprintf("%d:%d", userA, userB), map[string]int64{
		"user_id":  userA,
		"other_id": userB,
	})
	if err := s.outbox.Insert(ctx, tx, event); err != nil {
		return domain.ErrInternal("stage event", err)
	}
	return nil
}

func (s *RelationshipService) resolveTarget(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, s.pool, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound("user", username)
		}
		return nil, domain.ErrInternal("find user", err)
	}
	if !user.IsActive {
		return nil, domain.ErrNotFound("user", username)
	}
	return user, nil
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit tx", err)
	}
	return nil
}
