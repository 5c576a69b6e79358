package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/pongarena/platform/internal/auth"
	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/guard"
	"github.com/pongarena/platform/internal/service"
	"github.com/pongarena/platform/internal/session"
)

// AuthHandler handles registration, activation and login endpoints.
type AuthHandler struct {
	accounts    *service.AccountService
	oauth       *service.OAuthService
	loginRate   *guard.RateLimiter
	frontendURL string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *service.AccountService, oauth *service.OAuthService, loginRate *guard.RateLimiter, frontendURL string) *AuthHandler {
	return &AuthHandler{accounts: accounts, oauth: oauth, loginRate: loginRate, frontendURL: frontendURL}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	user, err := h.accounts.Register(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"message":  "check your email to activate the account",
	})
}

// Activate handles GET /auth/activate?token=. Activation links arrive
// by mail, so the consuming request is a plain browser GET.
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uuid.Parse(r.URL.Query().Get("token"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid activation token"))
		return
	}
	if err := h.accounts.Activate(r.Context(), tokenID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "account activated"})
}

// ResendActivation handles POST /auth/activate/resend.
func (h *AuthHandler) ResendActivation(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := DecodeJSON(r, &input); err != nil || input.Email == "" {
		RespondError(w, domain.ErrValidation("email is required"))
		return
	}
	if err := h.accounts.ResendActivation(r.Context(), input.Email); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "if the account exists, a new link was sent"})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	ip := clientIP(r)
	if res := h.loginRate.Check(r.Context(), ip); !res.Allowed {
		RespondError(w, domain.ErrRateLimited(res.Reason))
		return
	}

	user, pair, err := h.accounts.Login(r.Context(), input.Username, input.Password, ip)
	if err != nil {
		RespondError(w, err)
		return
	}

	// Bind the browser session under a fresh key so a key sniffed
	// before login is worthless after it.
	if sess := session.FromContext(r.Context()); sess != nil {
		sess.CycleKey()
		sess.SetUserID(user.ID)
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := DecodeJSON(r, &input); err != nil || input.RefreshToken == "" {
		RespondError(w, domain.ErrValidation("refresh_token is required"))
		return
	}

	pair, err := h.accounts.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == 0 {
		RespondError(w, domain.ErrUnauthorized("not logged in"))
		return
	}

	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = DecodeJSON(r, &input)

	accessToken := bearerToken(r)
	if err := h.accounts.Logout(r.Context(), userID, accessToken, input.RefreshToken); err != nil {
		RespondError(w, err)
		return
	}

	if sess := session.FromContext(r.Context()); sess != nil {
		sess.Flush()
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// OAuthStart handles GET /auth/42. It redirects to the intranet.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.New().String()
	if sess := session.FromContext(r.Context()); sess != nil {
		sess.Set("oauth_state", state)
	}
	http.Redirect(w, r, h.oauth.AuthorizeURL(state), http.StatusFound)
}

// OAuthCallback handles GET /auth/42/callback. The browser always ends
// up back on the frontend; failures carry an error code in the query
// string rather than a raw provider response.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.redirectFrontend(w, r, url.Values{"error": {providerErr}})
		return
	}
	code := q.Get("code")
	if code == "" {
		h.redirectFrontend(w, r, url.Values{"error": {"missing_code"}})
		return
	}

	if sess := session.FromContext(r.Context()); sess != nil {
		want, _ := sess.Get("oauth_state")
		if got := q.Get("state"); want != nil && want != got {
			h.redirectFrontend(w, r, url.Values{"error": {"state_mismatch"}})
			return
		}
		sess.Delete("oauth_state")
	}

	user, pair, err := h.oauth.LoginWithCode(r.Context(), code)
	if err != nil {
		h.redirectFrontend(w, r, url.Values{"error": {"login_failed"}})
		return
	}

	if sess := session.FromContext(r.Context()); sess != nil {
		sess.CycleKey()
		sess.SetUserID(user.ID)
	}

	h.redirectFrontend(w, r, url.Values{
		"access_token":  {pair.AccessToken},
		"refresh_token": {pair.RefreshToken},
	})
}

func (h *AuthHandler) redirectFrontend(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, h.frontendURL+"/oauth/callback?"+params.Encode(), http.StatusFound)
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
