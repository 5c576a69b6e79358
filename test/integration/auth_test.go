//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pongarena/platform/test/integration/testutil"
)

// ─── Registration ───────────────────────────────────────────────────────────

func TestRegister_Success(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.POST("/auth/register", map[string]string{
		"username": "alice", "email": "alice@test.com",
		"password": "secret123", "password_confirmation": "secret123",
	}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotZero(t, result.ID)
	assert.Equal(t, "alice", result.Username)

	// Account starts inactive with a pending activation token
	var isActive bool
	env.Pool.QueryRow(context.Background(), "SELECT is_active FROM users WHERE id = $1", result.ID).Scan(&isActive)
	assert.False(t, isActive)

	var tokenCount int
	env.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM account_activation_tokens WHERE user_id = $1", result.ID).Scan(&tokenCount)
	assert.Equal(t, 1, tokenCount)
}

func TestRegister_AssignsTournamentName(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterUser("tname", "tname@test.com", "secret123")

	var tournamentName string
	env.Pool.QueryRow(context.Background(), "SELECT tournament_name FROM users WHERE id = $1", userID).Scan(&tournamentName)
	assert.Regexp(t, `^noob\d{6}$`, tournamentName)
}

func TestRegister_TournamentNamesDistinct(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterUser("dup1", "dup1@test.com", "secret123")
	env.RegisterUser("dup2", "dup2@test.com", "secret123")

	var distinct int
	env.Pool.QueryRow(context.Background(), "SELECT COUNT(DISTINCT tournament_name) FROM users").Scan(&distinct)
	assert.Equal(t, 2, distinct)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterUser("taken", "taken@test.com", "secret123")

	resp := env.POST("/auth/register", map[string]string{
		"username": "taken", "email": "other@test.com",
		"password": "secret123", "password_confirmation": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	testutil.DecodeJSON(t, resp, &errResp)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
	assert.Contains(t, errResp.Fields, "username")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterUser("mailed", "shared@test.com", "secret123")

	resp := env.POST("/auth/register", map[string]string{
		"username": "other", "email": "shared@test.com",
		"password": "secret123", "password_confirmation": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp struct {
		Fields map[string]string `json:"fields"`
	}
	testutil.DecodeJSON(t, resp, &errResp)
	assert.Contains(t, errResp.Fields, "email")
}

func TestRegister_InvalidEmail(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.POST("/auth/register", map[string]string{
		"username": "bademail", "email": "not-an-email",
		"password": "secret123", "password_confirmation": "secret123",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.POST("/auth/register", map[string]string{
		"username": "longpass", "email": "longpass@test.com",
		"password": "seventeen-chars-x", "password_confirmation": "seventeen-chars-x",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.POST("/auth/register", map[string]string{
		"username": "mismatch", "email": "mismatch@test.com",
		"password": "secret123", "password_confirmation": "secret124",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp struct {
		Fields map[string]string `json:"fields"`
	}
	testutil.DecodeJSON(t, resp, &errResp)
	assert.Contains(t, errResp.Fields, "password_confirmation")
}

// ─── Activation ─────────────────────────────────────────────────────────────

func TestActivate_UnlocksLogin(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/auth/register", map[string]string{
		"username": "pending", "email": "pending@test.com",
		"password": "secret123", "password_confirmation": "secret123",
	}, "")
	var created struct {
		ID int64 `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &created)

	// Login before activation is refused
	loginResp := env.POST("/auth/login", map[string]string{
		"username": "pending", "password": "secret123",
	}, "")
	testutil.AssertStatus(t, loginResp, http.StatusForbidden)
	loginResp.Body.Close()

	env.Activate(created.ID)

	// Token is consumed on use
	var tokenCount int
	env.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM account_activation_tokens WHERE user_id = $1", created.ID).Scan(&tokenCount)
	assert.Equal(t, 0, tokenCount)

	token := env.LoginUser("pending", "secret123")
	assert.NotEmpty(t, token)
}

func TestActivate_UnknownToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.GET("/auth/activate?token=" + uuid.New().String())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActivate_MalformedToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.GET("/auth/activate?token=not-a-uuid")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResendActivation_UnknownEmailSilent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.POST("/auth/activate/resend", map[string]string{
		"email": "nobody@test.com",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResendActivation_IssuesFreshToken(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/auth/register", map[string]string{
		"username": "resend", "email": "resend@test.com",
		"password": "secret123", "password_confirmation": "secret123",
	}, "")
	var created struct {
		ID int64 `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &created)

	first := env.ActivationToken(created.ID)

	resendResp := env.POST("/auth/activate/resend", map[string]string{"email": "resend@test.com"}, "")
	testutil.AssertStatus(t, resendResp, http.StatusOK)
	resendResp.Body.Close()

	second := env.ActivationToken(created.ID)
	assert.NotEqual(t, first, second)
}

// ─── Login ──────────────────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterUser("bob", "bob@test.com", "secret123")

	resp := env.POST("/auth/login", map[string]string{
		"username": "bob", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		User struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			IsOnline bool   `json:"is_online"`
		} `json:"user"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, userID, result.User.ID)
	assert.True(t, result.User.IsOnline)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	// Access token works against an authenticated route
	meResp := env.AuthGET("/users/me", result.AccessToken)
	defer meResp.Body.Close()
	assert.Equal(t, http.StatusOK, meResp.StatusCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterUser("carol", "carol@test.com", "secret123")

	resp := env.POST("/auth/login", map[string]string{
		"username": "carol", "password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	testutil.AssertErrorCode(t, resp, "UNAUTHORIZED")
}

func TestLogin_UnknownUser(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.POST("/auth/login", map[string]string{
		"username": "ghost", "password": "secret123",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_LockoutAfterFailedAttempts(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterUser("victim", "victim@test.com", "secret123")

	for i := 0; i < 5; i++ {
		resp := env.POST("/auth/login", map[string]string{
			"username": "victim", "password": "wrong",
		}, "")
		resp.Body.Close()
	}

	// Even the right password is refused while locked
	resp := env.POST("/auth/login", map[string]string{
		"username": "victim", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	testutil.AssertErrorCode(t, resp, "ACCOUNT_LOCKED")
}

// ─── Token lifecycle ────────────────────────────────────────────────────────

func TestRefresh_RotatesPair(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterUser("rotate", "rotate@test.com", "secret123")
	_, refresh := env.LoginPair("rotate", "secret123")

	resp := env.POST("/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	testutil.DecodeJSON(t, resp, &pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, refresh, pair.RefreshToken)

	// The old refresh token was revoked on rotation
	replay := env.POST("/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	defer replay.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, access := env.NewPlayer("kindcheck")

	resp := env.POST("/auth/refresh", map[string]string{"refresh_token": access}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_RevokesTokens(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterUser("leaver", "leaver@test.com", "secret123")
	access, refresh := env.LoginPair("leaver", "secret123")

	resp := env.AuthPOST("/auth/logout", map[string]string{"refresh_token": refresh}, access)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	meResp := env.AuthGET("/users/me", access)
	defer meResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, meResp.StatusCode)

	refreshResp := env.POST("/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	defer refreshResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, refreshResp.StatusCode)

	var isOnline bool
	env.Pool.QueryRow(context.Background(), "SELECT is_online FROM users WHERE id = $1", userID).Scan(&isOnline)
	assert.False(t, isOnline)
}

func TestProtectedRoute_NoToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.GET("/users/me")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoute_GarbageToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.AuthGET("/users/me", "not.a.jwt")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ─── OAuth callback ─────────────────────────────────────────────────────────

// noFollow stops at the first redirect so its Location can be inspected.
func noFollow() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestOAuthCallback_ProviderErrorRedirects(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp, err := noFollow().Get(env.Server.URL + "/auth/42/callback?error=access_denied")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc, testutil.TestFrontendURL), loc)
	assert.Contains(t, loc, "error=access_denied")
}

func TestOAuthCallback_MissingCodeRedirects(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp, err := noFollow().Get(env.Server.URL + "/auth/42/callback")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc, testutil.TestFrontendURL), loc)
	assert.Contains(t, loc, "error=missing_code")
}
