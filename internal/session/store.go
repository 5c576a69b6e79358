package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pongarena/platform/internal/repository"
)

// ErrConcurrentSave is returned when saving an existing session whose
// backing row was deleted by another request (logout in a parallel tab).
var ErrConcurrentSave = errors.New("session was deleted by a concurrent request")

// Store persists sessions keyed by their session key.
type Store interface {
	// Load returns the stored values for a key, or nil when the key is
	// unknown or expired.
	Load(ctx context.Context, key string) (map[string]interface{}, error)

	// Save persists the session with the given TTL. New sessions are
	// inserted; existing ones updated. Returns ErrConcurrentSave when
	// the row to update no longer exists.
	Save(ctx context.Context, s *Session, ttl time.Duration) error

	// Delete removes a session row. Unknown keys are not an error.
	Delete(ctx context.Context, key string) error

	// DeleteExpired removes all expired rows and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// PgStore keeps sessions in the sessions table with a jsonb payload.
type PgStore struct {
	db repository.DBTX
}

// NewPgStore creates a Postgres-backed session store.
func NewPgStore(db repository.DBTX) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Load(ctx context.Context, key string) (map[string]interface{}, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT session_data FROM sessions
		WHERE session_key = $1 AND expire_at > now()`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		// Corrupt payloads start the visitor over instead of erroring.
		return nil, nil
	}
	return values, nil
}

func (s *PgStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess.Values())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	expireAt := time.Now().Add(ttl)

	if sess.IsNew() {
		_, err := s.db.Exec(ctx, `
			INSERT INTO sessions (session_key, session_data, expire_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_key) DO UPDATE
			SET session_data = EXCLUDED.session_data, expire_at = EXCLUDED.expire_at`,
			sess.Key(), raw, expireAt)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		sess.markSaved()
		return nil
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET session_data = $2, expire_at = $3
		WHERE session_key = $1`, sess.Key(), raw, expireAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentSave
	}
	sess.markSaved()
	return nil
}

func (s *PgStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE session_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expire_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MemoryStore is an in-process store for tests and single-node dev.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]memoryRow
}

type memoryRow struct {
	values   map[string]interface{}
	expireAt time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]memoryRow)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (map[string]interface{}, error) {
	s.mu.RLock()
	row, ok := s.rows[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(row.expireAt) {
		return nil, nil
	}

	values := make(map[string]interface{}, len(row.values))
	for k, v := range row.values {
		values[k] = v
	}
	return values, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *Session, ttl time.Duration) error {
	values := make(map[string]interface{}, len(sess.Values()))
	for k, v := range sess.Values() {
		values[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !sess.IsNew() {
		if _, ok := s.rows[sess.Key()]; !ok {
			return ErrConcurrentSave
		}
	}
	s.rows[sess.Key()] = memoryRow{values: values, expireAt: time.Now().Add(ttl)}
	sess.markSaved()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.rows, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	var n int64
	s.mu.Lock()
	for k, row := range s.rows {
		if now.After(row.expireAt) {
			delete(s.rows, k)
			n++
		}
	}
	s.mu.Unlock()
	return n, nil
}
