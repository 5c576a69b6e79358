package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pongarena/platform/internal/auth"
	"github.com/pongarena/platform/internal/token"
)

type contextKey string

const sessionKey contextKey = "session"

// FromContext returns the request's session. The binding middleware
// always installs one, so handlers behind it get a non-nil session.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// CookieConfig describes the session cookie the middleware manages.
type CookieConfig struct {
	Name             string
	Path             string
	Domain           string
	Secure           bool
	HTTPOnly         bool
	SameSite         http.SameSite
	TTL              time.Duration
	SaveEveryRequest bool
}

// ParseSameSite maps a config string to the http constant, defaulting
// to Lax for anything unrecognized.
func ParseSameSite(v string) http.SameSite {
	switch v {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Middleware binds each request to a server-side session through a
// JWT-carrying cookie. The token's session_key claim names the row; the
// token itself proves the cookie was minted here.
//
// At response time, decided when the handler first writes:
//   - a session emptied during the request deletes the cookie and its row,
//   - any session access adds Vary: Cookie, as does deleting the cookie,
//   - a modified session (or every request when configured) is saved,
//     unless the handler already failed with a 5xx or the row was
//     deleted by a concurrent request; a fresh token is set only when
//     the session carries an authenticated user.
type Middleware struct {
	store  Store
	tokens *token.Manager
	cookie CookieConfig
	logger *slog.Logger
}

// NewMiddleware creates the session binding middleware.
func NewMiddleware(store Store, tokens *token.Manager, cookie CookieConfig, logger *slog.Logger) *Middleware {
	if cookie.TTL <= 0 {
		cookie.TTL = DefaultTTL
	}
	return &Middleware{store: store, tokens: tokens, cookie: cookie, logger: logger}
}

// Handler wraps next with session binding.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, hadCookie := m.open(r)
		loadedKey := ""
		if !sess.IsNew() {
			loadedKey = sess.Key()
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		if userID := peekUserID(sess); userID != 0 {
			ctx = auth.WithUserID(ctx, userID)
		}
		r = r.WithContext(ctx)

		sw := &sessionWriter{
			ResponseWriter: w,
			request:        r,
			mw:             m,
			session:        sess,
			hadCookie:      hadCookie,
			loadedKey:      loadedKey,
		}
		next.ServeHTTP(sw, r)

		// Handlers that never write still get the response phase.
		sw.finalize(http.StatusOK)
	})
}

// open restores the session named by the cookie, or starts a fresh one.
func (m *Middleware) open(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(m.cookie.Name)
	if err != nil || cookie.Value == "" {
		return New(), false
	}

	claims, err := m.tokens.DecodeKind(r.Context(), cookie.Value, token.KindSession)
	if err != nil || claims.SessionKey == "" {
		return New(), true
	}

	values, err := m.store.Load(r.Context(), claims.SessionKey)
	if err != nil {
		m.logger.Error("session load failed", "error", err)
		return New(), true
	}
	return Restore(claims.SessionKey, values), true
}

// peekUserID reads the bound user without flipping the accessed flag,
// so a request that never touches the session gets no Vary header.
func peekUserID(s *Session) int64 {
	accessed := s.accessed
	id := s.UserID()
	s.accessed = accessed
	return id
}

// sessionWriter defers the session response phase until the handler
// commits a status, so cookies and Vary land before the status line.
type sessionWriter struct {
	http.ResponseWriter
	request   *http.Request
	mw        *Middleware
	session   *Session
	hadCookie bool
	loadedKey string
	done      bool
}

func (w *sessionWriter) WriteHeader(status int) {
	w.finalize(status)
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	if !w.done {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) finalize(status int) {
	if w.done {
		return
	}
	w.done = true

	m := w.mw
	sess := w.session

	// A cookie-deleting response is cookie-dependent even when the
	// handler never touched the session.
	if sess.Accessed() || (sess.IsEmpty() && w.hadCookie) {
		w.Header().Add("Vary", "Cookie")
	}

	ctx := w.request.Context()

	if sess.IsEmpty() {
		if w.loadedKey != "" {
			if err := m.store.Delete(ctx, w.loadedKey); err != nil {
				m.logger.Error("session delete failed", "error", err)
			}
		}
		if w.hadCookie {
			w.deleteCookie()
		}
		return
	}

	if !sess.Modified() && !m.cookie.SaveEveryRequest {
		return
	}
	if status >= http.StatusInternalServerError {
		return
	}

	if err := m.store.Save(ctx, sess, m.cookie.TTL); err != nil {
		if err == ErrConcurrentSave {
			m.logger.Warn("session vanished during request", "session_key", sess.Key())
		} else {
			m.logger.Error("session save failed", "error", err)
		}
		return
	}

	// A cycled key leaves the old row behind; drop it so the stale
	// cookie cannot restore the session.
	if w.loadedKey != "" && w.loadedKey != sess.Key() {
		if err := m.store.Delete(ctx, w.loadedKey); err != nil {
			m.logger.Error("session delete failed", "error", err)
		}
	}

	// Only an authenticated session earns a cookie. Anonymous rows are
	// reachable for the rest of the request and age out via the janitor.
	userID := peekUserID(sess)
	if userID == 0 {
		return
	}

	tok, err := m.tokens.Issue(token.KindSession, userID, sess.Key())
	if err != nil {
		m.logger.Error("session token mint failed", "error", err)
		return
	}
	w.setCookie(tok)
}

func (w *sessionWriter) setCookie(value string) {
	c := w.mw.cookie
	http.SetCookie(w.ResponseWriter, &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(c.TTL.Seconds()),
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	})
}

func (w *sessionWriter) deleteCookie() {
	c := w.mw.cookie
	http.SetCookie(w.ResponseWriter, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   -1,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	})
}
