package handler

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pongarena/platform/internal/auth"
	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/service"
)

// UserHandler handles profile endpoints.
type UserHandler struct {
	accounts  *service.AccountService
	avatarDir string
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(accounts *service.AccountService, avatarDir string) *UserHandler {
	return &UserHandler{accounts: accounts, avatarDir: avatarDir}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /users/me.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input service.UpdateProfileInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

// ChangePassword handles PUT /users/me/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), userID, input.OldPassword, input.NewPassword); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// UploadAvatar handles PUT /users/me/avatar with a multipart form.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxAvatarBytes+4096)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		RespondError(w, domain.ErrValidation("avatar file is required"))
		return
	}
	defer file.Close()

	if err := domain.ValidateAvatarSize(header.Size); err != nil {
		RespondError(w, domain.ErrValidationFields(map[string]string{"avatar": err.Error()}))
		return
	}

	ext := filepath.Ext(header.Filename)
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		RespondError(w, domain.ErrValidationFields(map[string]string{"avatar": "unsupported image format"}))
		return
	}

	name := fmt.Sprintf("%d_%s%s", userID, uuid.New().String(), ext)
	path := filepath.Join(h.avatarDir, name)
	dst, err := os.Create(path)
	if err != nil {
		RespondError(w, domain.ErrInternal("store avatar", err))
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		RespondError(w, domain.ErrInternal("store avatar", err))
		return
	}

	user, err := h.accounts.UpdateAvatar(r.Context(), userID, "/avatars/"+name)
	if err != nil {
		os.Remove(path)
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

// SetTournamentName handles PUT /users/me/tournament-name.
func (h *UserHandler) SetTournamentName(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		TournamentName string `json:"tournament_name"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	user, err := h.accounts.SetTournamentName(r.Context(), userID, input.TournamentName)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

// DeleteMe handles DELETE /users/me.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		Password string `json:"password"`
	}
	_ = DecodeJSON(r, &input)

	if err := h.accounts.DeleteAccount(r.Context(), userID, input.Password); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// Profile handles GET /users/{username}.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.accounts.PublicProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}

// Search handles GET /users?q=...
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	results, err := h.accounts.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		RespondError(w, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	RespondJSON(w, http.StatusOK, results)
}

// actingUser extracts the authenticated user from context.
func actingUser(r *http.Request) (int64, error) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == 0 {
		return 0, domain.ErrUnauthorized("authentication required")
	}
	return userID, nil
}
