package session

import (
	"crypto/rand"
	"strconv"
	"time"
)

// DefaultTTL is how long a session row lives without being saved again.
const DefaultTTL = 4 * time.Hour

// userIDField is the reserved session field holding the authenticated
// user id, stored as a string to survive JSON round-trips.
const userIDField = "_auth_user_id"

const keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewKey returns a fresh 32-character session key.
func NewKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("session: system random source failed: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(buf)
}

// Session is a lazily loaded bag of per-visitor state keyed by a random
// session key. Reads mark it accessed, writes mark it modified; the
// binding middleware uses those flags to decide what to do at response
// time. Not safe for concurrent use; each request gets its own.
type Session struct {
	key      string
	values   map[string]interface{}
	isNew    bool
	accessed bool
	modified bool
}

// New creates an empty session with a fresh key.
func New() *Session {
	return &Session{
		key:    NewKey(),
		values: make(map[string]interface{}),
		isNew:  true,
	}
}

// Restore rebuilds a session from stored values. A nil values map means
// the key was unknown or expired and the session starts empty and new.
func Restore(key string, values map[string]interface{}) *Session {
	if values == nil {
		return &Session{
			key:    key,
			values: make(map[string]interface{}),
			isNew:  true,
		}
	}
	return &Session{key: key, values: values}
}

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// IsNew reports whether the session has no backing row yet.
func (s *Session) IsNew() bool { return s.isNew }

// Accessed reports whether any field was read or written.
func (s *Session) Accessed() bool { return s.accessed }

// Modified reports whether any field was written.
func (s *Session) Modified() bool { return s.modified }

// IsEmpty reports whether the session holds no values.
func (s *Session) IsEmpty() bool { return len(s.values) == 0 }

// Get reads a field, marking the session accessed.
func (s *Session) Get(field string) (interface{}, bool) {
	s.accessed = true
	v, ok := s.values[field]
	return v, ok
}

// Set writes a field, marking the session accessed and modified.
func (s *Session) Set(field string, value interface{}) {
	s.accessed = true
	s.modified = true
	s.values[field] = value
}

// Delete removes a field if present.
func (s *Session) Delete(field string) {
	s.accessed = true
	if _, ok := s.values[field]; ok {
		s.modified = true
		delete(s.values, field)
	}
}

// Flush empties the session and cycles its key, so the old key can
// never resurrect the state.
func (s *Session) Flush() {
	s.accessed = true
	s.modified = true
	s.values = make(map[string]interface{})
	s.key = NewKey()
	s.isNew = true
}

// CycleKey moves the current values under a fresh key. Called on login
// to defeat session fixation.
func (s *Session) CycleKey() {
	s.accessed = true
	s.modified = true
	s.key = NewKey()
	s.isNew = true
}

// SetUserID binds the session to an authenticated user.
func (s *Session) SetUserID(userID int64) {
	s.Set(userIDField, strconv.FormatInt(userID, 10))
}

// UserID returns the bound user id, or 0 for anonymous sessions.
func (s *Session) UserID() int64 {
	v, ok := s.Get(userIDField)
	if !ok {
		return 0
	}
	str, ok := v.(string)
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Values returns the raw value map for persistence.
func (s *Session) Values() map[string]interface{} { return s.values }

// markSaved clears the dirty flags after a successful store write.
func (s *Session) markSaved() {
	s.isNew = false
	s.modified = false
}
