//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/test/integration/testutil"
)

// ─── Friend requests ────────────────────────────────────────────────────────

func TestSendRequest_Pending(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	resp := env.AuthPOST("/friends/requests", map[string]string{"username": "bob"}, aliceTok)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Outcome string `json:"outcome"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "sent", result.Outcome)

	// Bob sees the invitation, Alice does not
	listResp := env.AuthGET("/friends/requests", bobTok)
	var pending []struct {
		ID       int64 `json:"id"`
		FromUser struct {
			Username string `json:"username"`
		} `json:"from_user"`
	}
	testutil.DecodeJSON(t, listResp, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].FromUser.Username)

	ownResp := env.AuthGET("/friends/requests", aliceTok)
	var own []struct{}
	testutil.DecodeJSON(t, ownResp, &own)
	assert.Empty(t, own)
}

func TestSendRequest_ToSelf(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, tok := env.NewPlayer("narcissus")

	resp := env.AuthPOST("/friends/requests", map[string]string{"username": "narcissus"}, tok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendRequest_UnknownUser(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, tok := env.NewPlayer("lonely")

	resp := env.AuthPOST("/friends/requests", map[string]string{"username": "nobody"}, tok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendRequest_Duplicate(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, aliceTok := env.NewPlayer("alice")
	env.NewPlayer("bob")

	resp := env.AuthPOST("/friends/requests", map[string]string{"username": "bob"}, aliceTok)
	resp.Body.Close()

	again := env.AuthPOST("/friends/requests", map[string]string{"username": "bob"}, aliceTok)
	assert.Equal(t, http.StatusConflict, again.StatusCode)
	testutil.AssertErrorCode(t, again, "CONFLICT")
}

func TestSendRequest_MutualCollapsesIntoFriendship(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	resp := env.AuthPOST("/friends/requests", map[string]string{"username": "bob"}, aliceTok)
	resp.Body.Close()

	back := env.AuthPOST("/friends/requests", map[string]string{"username": "alice"}, bobTok)
	assert.Equal(t, http.StatusCreated, back.StatusCode)

	var result struct {
		Outcome string `json:"outcome"`
	}
	testutil.DecodeJSON(t, back, &result)
	assert.Equal(t, "accepted", result.Outcome)

	assert.Equal(t, 1, testutil.CountFriendships(t, env, aliceID))

	var pendingCount int
	env.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM friend_requests WHERE status = 'pending'").Scan(&pendingCount)
	assert.Equal(t, 0, pendingCount)

	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, domain.TopicFriendAccepted))
}

func TestSendRequest_ConcurrentMutualSends(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	var wg sync.WaitGroup
	statuses := make([]int, 2)
	for i, send := range []struct {
		target, token string
	}{
		{"bob", aliceTok},
		{"alice", bobTok},
	} {
		i, send := i, send
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.AuthPOST("/friends/requests", map[string]string{"username": send.target}, send.token)
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}()
	}
	wg.Wait()

	// The tie-break turns the losing send into an auto-accept, so
	// neither caller sees an error and the pair collapses into exactly
	// one friendship with no live request left behind.
	for _, code := range statuses {
		assert.Equal(t, http.StatusCreated, code)
	}
	assert.Equal(t, 1, testutil.CountFriendships(t, env, aliceID))

	var pendingCount int
	env.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM friend_requests WHERE status = 'pending'").Scan(&pendingCount)
	assert.Equal(t, 0, pendingCount)
}

func TestDecline_RacingMutualSend(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")

	var declineStatus, sendStatus int
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		resp := env.AuthPOST(requestPath(reqID, "decline"), nil, bobTok)
		declineStatus = resp.StatusCode
		resp.Body.Close()
	}()
	go func() {
		defer wg.Done()
		resp := env.AuthPOST("/friends/requests", map[string]string{"username": "alice"}, bobTok)
		sendStatus = resp.StatusCode
		resp.Body.Close()
	}()
	wg.Wait()

	assert.Equal(t, http.StatusCreated, sendStatus)

	// Either the decline landed first and the send opened a fresh
	// request, or the send collapsed the pair first and the decline
	// found nothing left. A decline that reported success must never
	// coexist with a friendship.
	switch declineStatus {
	case http.StatusOK:
		assert.Equal(t, 0, testutil.CountFriendships(t, env, aliceID))
	case http.StatusNotFound:
		assert.Equal(t, 1, testutil.CountFriendships(t, env, aliceID))
	default:
		t.Fatalf("unexpected decline status %d", declineStatus)
	}
}

// ─── Accept / decline ───────────────────────────────────────────────────────

func requestPath(id int64, action string) string {
	return fmt.Sprintf("/friends/requests/%d/%s", id, action)
}

func sendRequestID(t *testing.T, env *testutil.TestEnv, fromTok, toTok, target string) int64 {
	t.Helper()
	resp := env.AuthPOST("/friends/requests", map[string]string{"username": target}, fromTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	listResp := env.AuthGET("/friends/requests", toTok)
	var pending []struct {
		ID int64 `json:"id"`
	}
	testutil.DecodeJSON(t, listResp, &pending)
	require.Len(t, pending, 1)
	return pending[0].ID
}

func TestAcceptRequest(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")

	resp := env.AuthPOST(requestPath(reqID, "accept"), nil, bobTok)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	assert.Equal(t, 1, testutil.CountFriendships(t, env, aliceID))

	// Both sides now list each other
	var friends []struct {
		Username string `json:"username"`
	}
	friendsResp := env.AuthGET("/friends/", aliceTok)
	testutil.DecodeJSON(t, friendsResp, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)

	friendsResp = env.AuthGET("/friends/", bobTok)
	testutil.DecodeJSON(t, friendsResp, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0].Username)

	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, domain.TopicFriendAccepted))
}

func TestAcceptRequest_OnlyRecipientMay(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")

	// The sender cannot accept their own request
	resp := env.AuthPOST(requestPath(reqID, "accept"), nil, aliceTok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeclineRequest_AllowsResend(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")

	resp := env.AuthPOST(requestPath(reqID, "decline"), nil, bobTok)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	assert.Equal(t, 0, testutil.CountFriendships(t, env, aliceID))

	// Declining is silent and does not burn the pair
	again := env.AuthPOST("/friends/requests", map[string]string{"username": "bob"}, aliceTok)
	defer again.Body.Close()
	assert.Equal(t, http.StatusCreated, again.StatusCode)
}

func TestAcceptRequest_UnknownID(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, tok := env.NewPlayer("alice")

	resp := env.AuthPOST("/friends/requests/999999/accept", nil, tok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── Removal ────────────────────────────────────────────────────────────────

func TestRemoveFriend(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")
	resp := env.AuthPOST(requestPath(reqID, "accept"), nil, bobTok)
	resp.Body.Close()

	removeResp := env.AuthDELETE("/friends/bob", aliceTok)
	testutil.AssertStatus(t, removeResp, http.StatusOK)
	removeResp.Body.Close()

	assert.Equal(t, 0, testutil.CountFriendships(t, env, aliceID))
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, domain.TopicFriendRemoved))
}

func TestRemoveFriend_NotFriends(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, aliceTok := env.NewPlayer("alice")
	env.NewPlayer("bob")

	resp := env.AuthDELETE("/friends/bob", aliceTok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── Blocks ─────────────────────────────────────────────────────────────────

func TestBlock_DropsFriendshipAndRequests(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")
	resp := env.AuthPOST(requestPath(reqID, "accept"), nil, bobTok)
	resp.Body.Close()

	blockResp := env.AuthPOST("/blocks/", map[string]string{"username": "bob"}, aliceTok)
	testutil.AssertStatus(t, blockResp, http.StatusCreated)
	blockResp.Body.Close()

	assert.Equal(t, 0, testutil.CountFriendships(t, env, aliceID))
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, domain.TopicUserBlocked))

	var blocked []struct {
		Username string `json:"username"`
	}
	listResp := env.AuthGET("/blocks/", aliceTok)
	testutil.DecodeJSON(t, listResp, &blocked)
	require.Len(t, blocked, 1)
	assert.Equal(t, "bob", blocked[0].Username)
}

func TestBlock_StopsRequestsBothWays(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	resp := env.AuthPOST("/blocks/", map[string]string{"username": "bob"}, aliceTok)
	resp.Body.Close()

	// Neither direction can open a request across a block
	fromBlocked := env.AuthPOST("/friends/requests", map[string]string{"username": "alice"}, bobTok)
	assert.Equal(t, http.StatusForbidden, fromBlocked.StatusCode)
	fromBlocked.Body.Close()

	fromBlocker := env.AuthPOST("/friends/requests", map[string]string{"username": "bob"}, aliceTok)
	assert.Equal(t, http.StatusForbidden, fromBlocker.StatusCode)
	fromBlocker.Body.Close()
}

func TestUnblock_DoesNotRestoreFriendship(t *testing.T) {
	env := testutil.NewTestEnv(t)
	aliceID, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")
	resp := env.AuthPOST(requestPath(reqID, "accept"), nil, bobTok)
	resp.Body.Close()

	blockResp := env.AuthPOST("/blocks/", map[string]string{"username": "bob"}, aliceTok)
	blockResp.Body.Close()

	unblockResp := env.AuthDELETE("/blocks/bob", aliceTok)
	testutil.AssertStatus(t, unblockResp, http.StatusOK)
	unblockResp.Body.Close()

	assert.Equal(t, 0, testutil.CountFriendships(t, env, aliceID))

	// Requests flow again after the unblock
	again := env.AuthPOST("/friends/requests", map[string]string{"username": "bob"}, aliceTok)
	defer again.Body.Close()
	assert.Equal(t, http.StatusCreated, again.StatusCode)
}

func TestBlock_AlreadyBlocked(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, aliceTok := env.NewPlayer("alice")
	env.NewPlayer("bob")

	resp := env.AuthPOST("/blocks/", map[string]string{"username": "bob"}, aliceTok)
	resp.Body.Close()

	again := env.AuthPOST("/blocks/", map[string]string{"username": "bob"}, aliceTok)
	defer again.Body.Close()
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

// ─── Status ─────────────────────────────────────────────────────────────────

func TestRelationshipStatus(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, aliceTok := env.NewPlayer("alice")
	_, bobTok := env.NewPlayer("bob")

	var status struct {
		IsFriend          bool `json:"is_friend"`
		HasPendingRequest bool `json:"has_pending_request"`
	}

	resp := env.AuthGET("/friends/bob/status", aliceTok)
	testutil.DecodeJSON(t, resp, &status)
	assert.False(t, status.IsFriend)
	assert.False(t, status.HasPendingRequest)

	reqID := sendRequestID(t, env, aliceTok, bobTok, "bob")

	resp = env.AuthGET("/friends/bob/status", aliceTok)
	testutil.DecodeJSON(t, resp, &status)
	assert.False(t, status.IsFriend)
	assert.True(t, status.HasPendingRequest)

	acceptResp := env.AuthPOST(requestPath(reqID, "accept"), nil, bobTok)
	acceptResp.Body.Close()

	resp = env.AuthGET("/friends/bob/status", aliceTok)
	testutil.DecodeJSON(t, resp, &status)
	assert.True(t, status.IsFriend)
	assert.False(t, status.HasPendingRequest)
}
