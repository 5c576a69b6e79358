package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/service"
)

// BlockHandler handles block list endpoints.
type BlockHandler struct {
	rels *service.RelationshipService
}

// NewBlockHandler creates a new BlockHandler.
func NewBlockHandler(rels *service.RelationshipService) *BlockHandler {
	return &BlockHandler{rels: rels}
}

// Block handles POST /blocks.
func (h *BlockHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		Username string `json:"username"`
	}
	if err := DecodeJSON(r, &input); err != nil || input.Username == "" {
		RespondError(w, domain.ErrValidation("username is required"))
		return
	}

	if err := h.rels.Block(r.Context(), userID, input.Username); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"message": "user blocked"})
}

// Unblock handles DELETE /blocks/{username}.
func (h *BlockHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	if err := h.rels.Unblock(r.Context(), userID, chi.URLParam(r, "username")); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "user unblocked"})
}

// List handles GET /blocks.
func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	blocked, err := h.rels.Blocked(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if blocked == nil {
		blocked = []domain.PublicProfile{}
	}
	RespondJSON(w, http.StatusOK, blocked)
}
