package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager("test-secret-key", time.Hour, 7*24*time.Hour, 4*time.Hour, nil)
}

func TestIssueAndDecodeAccessToken(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	tok, err := mgr.Issue(KindAccess, 42, "")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	claims, err := mgr.DecodeKind(ctx, tok, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.Empty(t, claims.SessionKey)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestSessionTokenCarriesSessionKey(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	tok, err := mgr.Issue(KindSession, 7, "abc123sessionkey")
	require.NoError(t, err)

	claims, err := mgr.DecodeKind(ctx, tok, KindSession)
	require.NoError(t, err)
	assert.Equal(t, "abc123sessionkey", claims.SessionKey)
}

func TestSessionKeyIgnoredOnOtherKinds(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	tok, err := mgr.Issue(KindAccess, 7, "should-not-appear")
	require.NoError(t, err)

	claims, err := mgr.Decode(ctx, tok)
	require.NoError(t, err)
	assert.Empty(t, claims.SessionKey)
}

func TestKindMismatchRejected(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	tok, err := mgr.Issue(KindRefresh, 1, "")
	require.NoError(t, err)

	_, err = mgr.DecodeKind(ctx, tok, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestWrongSecretRejected(t *testing.T) {
	mgr1 := NewManager("secret-1", time.Hour, time.Hour, time.Hour, nil)
	mgr2 := NewManager("secret-2", time.Hour, time.Hour, time.Hour, nil)
	ctx := context.Background()

	tok, err := mgr1.Issue(KindAccess, 1, "")
	require.NoError(t, err)

	_, err = mgr2.Decode(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr := NewManager("test-secret-key", -time.Minute, time.Hour, time.Hour, nil)
	ctx := context.Background()

	tok, err := mgr.Issue(KindAccess, 1, "")
	require.NoError(t, err)

	_, err = mgr.Decode(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMalformedTokenRejected(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	_, err := mgr.Decode(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = mgr.Decode(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnknownKindRejectedOnIssue(t *testing.T) {
	mgr := newTestManager()

	_, err := mgr.Issue(Kind("royal"), 1, "")
	assert.Error(t, err)
}

func TestRevokedTokenRejected(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	tok, err := mgr.Issue(KindAccess, 9, "")
	require.NoError(t, err)

	// Valid before revocation.
	_, err = mgr.Decode(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, tok))

	_, err = mgr.Decode(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeIsPerToken(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	tok1, err := mgr.Issue(KindAccess, 9, "")
	require.NoError(t, err)
	tok2, err := mgr.Issue(KindAccess, 9, "")
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, tok1))

	_, err = mgr.Decode(ctx, tok1)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Other tokens for the same user stay valid.
	_, err = mgr.Decode(ctx, tok2)
	assert.NoError(t, err)
}

func TestRevokeInvalidTokenFails(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	err := mgr.Revoke(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryBlacklistExpiry(t *testing.T) {
	bl := NewMemoryBlacklist()
	ctx := context.Background()

	require.NoError(t, bl.Revoke(ctx, "jti-1", 50*time.Millisecond))
	assert.True(t, bl.IsRevoked(ctx, "jti-1"))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, bl.IsRevoked(ctx, "jti-1"))
}
