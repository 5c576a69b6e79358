package domain

import (
	"fmt"
	"time"
)

// Match modes.
const (
	MatchLocal      = "local"
	MatchTournament = "tournament"
	MatchAI         = "ai"
	Match3Players   = "3players"
	Match4Players   = "4players"
)

// AI difficulties.
const (
	AIEasy = "easy"
	AIHard = "hard"
)

// Match is a recorded game result. Player slots 2-4 are optional
// depending on the mode; AI matches have only player 1.
type Match struct {
	ID           int64     `json:"id"`
	Mode         string    `json:"mode"`
	AgainstAI    bool      `json:"against_ai"`
	AIDifficulty string    `json:"ai_difficulty,omitempty"`
	Player1ID    int64     `json:"player1_id"`
	Player2ID    *int64    `json:"player2_id,omitempty"`
	Player3ID    *int64    `json:"player3_id,omitempty"`
	Player4ID    *int64    `json:"player4_id,omitempty"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	Player3Score int       `json:"player3_score"`
	Player4Score int       `json:"player4_score"`
	WinnerID     *int64    `json:"winner_id,omitempty"`
	PlayedAt     time.Time `json:"played_at"`
}

// CreateMatchCommand is the validated, typed form of a match report.
// The HTTP boundary resolves usernames to ids and builds one of these;
// the recorder never inspects raw payloads.
type CreateMatchCommand struct {
	Mode         string
	AIDifficulty string
	Player1ID    int64
	Player2ID    *int64
	Player3ID    *int64
	Player4ID    *int64
	Player1Score int
	Player2Score int
	Player3Score int
	Player4Score int
	WinnerID     *int64
}

// AgainstAI reports whether the command describes a solo-versus-AI game.
func (c *CreateMatchCommand) AgainstAI() bool {
	return c.Mode == MatchAI
}

// Participants returns the non-nil player ids, player 1 first.
func (c *CreateMatchCommand) Participants() []int64 {
	ids := []int64{c.Player1ID}
	for _, p := range []*int64{c.Player2ID, c.Player3ID, c.Player4ID} {
		if p != nil {
			ids = append(ids, *p)
		}
	}
	return ids
}

// Validate enforces per-mode player requirements and that the winner,
// if any, is a participant.
func (c *CreateMatchCommand) Validate() error {
	switch c.Mode {
	case MatchAI:
		if c.AIDifficulty != AIEasy && c.AIDifficulty != AIHard {
			return fmt.Errorf("ai difficulty must be %q or %q", AIEasy, AIHard)
		}
		if c.Player2ID != nil || c.Player3ID != nil || c.Player4ID != nil {
			return fmt.Errorf("ai matches have only one human player")
		}
	case MatchLocal, MatchTournament:
		if c.Player2ID == nil {
			return fmt.Errorf("player 2 is required for %s matches", c.Mode)
		}
		if c.Player3ID != nil || c.Player4ID != nil {
			return fmt.Errorf("%s matches have exactly two players", c.Mode)
		}
	case Match3Players:
		if c.Player2ID == nil || c.Player3ID == nil {
			return fmt.Errorf("three players are required for 3-player matches")
		}
		if c.Player4ID != nil {
			return fmt.Errorf("3-player matches have exactly three players")
		}
	case Match4Players:
		if c.Player2ID == nil || c.Player3ID == nil || c.Player4ID == nil {
			return fmt.Errorf("four players are required for 4-player matches")
		}
	default:
		return fmt.Errorf("unknown match mode: %q", c.Mode)
	}

	seen := make(map[int64]bool)
	for _, id := range c.Participants() {
		if seen[id] {
			return fmt.Errorf("duplicate participant: %d", id)
		}
		seen[id] = true
	}

	if c.WinnerID != nil && !seen[*c.WinnerID] {
		return fmt.Errorf("winner must be one of the players")
	}
	return nil
}
