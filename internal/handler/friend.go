package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/service"
)

// FriendHandler handles friendship endpoints.
type FriendHandler struct {
	rels *service.RelationshipService
}

// NewFriendHandler creates a new FriendHandler.
func NewFriendHandler(rels *service.RelationshipService) *FriendHandler {
	return &FriendHandler{rels: rels}
}

// SendRequest handles POST /friends/requests.
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
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

	outcome, err := h.rels.SendRequest(r.Context(), userID, input.Username)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"outcome": string(outcome)})
}

// ListRequests handles GET /friends/requests.
func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	pending, err := h.rels.PendingRequests(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if pending == nil {
		pending = []domain.PendingRequest{}
	}
	RespondJSON(w, http.StatusOK, pending)
}

// Accept handles POST /friends/requests/{id}/accept.
func (h *FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.rels.Accept, "friend request accepted")
}

// Decline handles POST /friends/requests/{id}/decline.
func (h *FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.rels.Decline, "friend request declined")
}

// List handles GET /friends.
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	friends, err := h.rels.Friends(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if friends == nil {
		friends = []domain.PublicProfile{}
	}
	RespondJSON(w, http.StatusOK, friends)
}

// Remove handles DELETE /friends/{username}.
func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	if err := h.rels.RemoveFriend(r.Context(), userID, chi.URLParam(r, "username")); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "friend removed"})
}

// Status handles GET /friends/{username}/status.
func (h *FriendHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	status, err := h.rels.Status(r.Context(), userID, chi.URLParam(r, "username"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, status)
}

func (h *FriendHandler) resolve(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actingUserID, requestID int64) error, message string) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid request id"))
		return
	}

	if err := fn(r.Context(), userID, requestID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": message})
}
