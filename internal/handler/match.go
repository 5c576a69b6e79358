package handler

import (
	"net/http"
	"strconv"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/service"
)

// MatchHandler handles match recording and history endpoints.
type MatchHandler struct {
	matches  *service.MatchService
	accounts *service.AccountService
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(matches *service.MatchService, accounts *service.AccountService) *MatchHandler {
	return &MatchHandler{matches: matches, accounts: accounts}
}

// matchInput is the wire shape of a match report. Players are named by
// username; player 1 is always the reporter.
type matchInput struct {
	Mode         string `json:"mode"`
	AIDifficulty string `json:"ai_difficulty"`
	Player2      string `json:"player2"`
	Player3      string `json:"player3"`
	Player4      string `json:"player4"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	Player3Score int    `json:"player3_score"`
	Player4Score int    `json:"player4_score"`
	Winner       string `json:"winner"`
}

// Record handles POST /matches.
func (h *MatchHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input matchInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	cmd, err := h.buildCommand(r, userID, input)
	if err != nil {
		RespondError(w, err)
		return
	}

	match, err := h.matches.Record(r.Context(), cmd)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, match)
}

// History handles GET /matches.
func (h *MatchHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	matches, err := h.matches.History(r.Context(), userID, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	RespondJSON(w, http.StatusOK, matches)
}

// buildCommand resolves usernames to ids and assembles the typed
// command the recorder works on.
func (h *MatchHandler) buildCommand(r *http.Request, reporterID int64, input matchInput) (*domain.CreateMatchCommand, error) {
	cmd := &domain.CreateMatchCommand{
		Mode:         input.Mode,
		AIDifficulty: input.AIDifficulty,
		Player1ID:    reporterID,
		Player1Score: input.Player1Score,
		Player2Score: input.Player2Score,
		Player3Score: input.Player3Score,
		Player4Score: input.Player4Score,
	}

	ids := map[string]int64{}
	for _, username := range []string{input.Player2, input.Player3, input.Player4, input.Winner} {
		if username == "" {
			continue
		}
		if _, ok := ids[username]; ok {
			continue
		}
		profile, err := h.accounts.PublicProfile(r.Context(), username)
		if err != nil {
			return nil, err
		}
		ids[username] = profile.ID
	}

	assign := func(username string, dst **int64) {
		if username == "" {
			return
		}
		id := ids[username]
		*dst = &id
	}
	assign(input.Player2, &cmd.Player2ID)
	assign(input.Player3, &cmd.Player3ID)
	assign(input.Player4, &cmd.Player4ID)

	if input.Winner != "" {
		id := ids[input.Winner]
		cmd.WinnerID = &id
	}
	return cmd, nil
}
