package domain

import "time"

// Language codes supported for the user interface.
const (
	LangSpanish = "es"
	LangBasque  = "eus"
	LangEnglish = "en"
)

// User is a platform account. Relationship edges and match counters
// reference it by id; mutations to the counter fields go through
// server-side arithmetic only (see MatchRepository).
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	TournamentName string    `json:"tournament_name"`
	AvatarPath     string    `json:"avatar"`
	IsActive       bool      `json:"-"`
	IsOnline       bool      `json:"is_online"`
	ExternalLogin  bool      `json:"external_login"`
	GamesPlayed    int       `json:"games_played"`
	GamesWon       int       `json:"games_won"`
	GamesLost      int       `json:"games_lost"`
	DefaultLang    string    `json:"default_language"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`
}

// PublicProfile is the subset of User exposed to other players.
type PublicProfile struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
	IsOnline    bool   `json:"is_online"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
	GamesLost   int    `json:"games_lost"`
}

// Public strips the private fields from a User.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		Avatar:      u.AvatarPath,
		IsOnline:    u.IsOnline,
		GamesPlayed: u.GamesPlayed,
		GamesWon:    u.GamesWon,
		GamesLost:   u.GamesLost,
	}
}

// SearchResult is a user hit annotated with the searcher's relationship
// to it, so clients can render the right action button in one pass.
type SearchResult struct {
	PublicProfile
	IsFriend          bool `json:"is_friend"`
	IsBlocked         bool `json:"is_blocked"`
	HasPendingRequest bool `json:"has_pending_request"`
}
