package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/guard"
	"github.com/pongarena/platform/internal/mail"
	"github.com/pongarena/platform/internal/repository"
	"github.com/pongarena/platform/internal/token"
)

// AccountService handles registration, activation, login and profile
// management.
type AccountService struct {
	pool        *pgxpool.Pool
	users       repository.UserRepository
	activations repository.ActivationRepository
	tokens      *token.Manager
	mailer      mail.Mailer
	logger      *slog.Logger
	frontendURL string
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	activations repository.ActivationRepository,
	tokens *token.Manager,
	mailer mail.Mailer,
	logger *slog.Logger,
	frontendURL string,
) *AccountService {
	return &AccountService{
		pool:        pool,
		users:       users,
		activations: activations,
		tokens:      tokens,
		mailer:      mailer,
		logger:      logger,
		frontendURL: frontendURL,
	}
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	DefaultLang          string `json:"default_language"`
}

// TokenPair is an access/refresh token couple issued on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Register creates an inactive account and mails an activation link.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := domain.ValidateUsername(input.Username); err != nil {
		return nil, domain.ErrValidationFields(map[string]string{"username": err.Error()})
	}
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrValidationFields(map[string]string{"email": err.Error()})
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, domain.ErrValidationFields(map[string]string{"password": err.Error()})
	}
	if input.Password != input.PasswordConfirmation {
		return nil, domain.ErrValidationFields(map[string]string{"password_confirmation": "Passwords do not match"})
	}
	if input.DefaultLang == "" {
		input.DefaultLang = domain.LangEnglish
	}
	if err := domain.ValidateLanguage(input.DefaultLang); err != nil {
		return nil, domain.ErrValidationFields(map[string]string{"default_language": err.Error()})
	}

	fields := make(map[string]string)
	if existing, err := s.findByUsername(ctx, input.Username); err != nil {
		return nil, err
	} else if existing != nil {
		fields["username"] = "Username is already in use"
	}
	if existing, err := s.findByEmail(ctx, input.Email); err != nil {
		return nil, err
	} else if existing != nil {
		fields["email"] = "Email is already in use"
	}
	if len(fields) > 0 {
		return nil, domain.ErrValidationFields(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	tournamentName, err := s.freshTournamentName(ctx, tx)
	if err != nil {
		return nil, domain.ErrInternal("generate tournament name", err)
	}

	user := &domain.User{
		Username:       input.Username,
		Email:          input.Email,
		PasswordHash:   string(hash),
		TournamentName: tournamentName,
		DefaultLang:    input.DefaultLang,
	}
	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, domain.ErrInternal("create user", err)
	}

	now := time.Now()
	activation := &domain.ActivationToken{
		UserID:    user.ID,
		Token:     uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ActivationTokenTTL),
	}
	if err := s.activations.Create(ctx, tx, activation); err != nil {
		return nil, domain.ErrInternal("create activation token", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	url := fmt.Sprintf("%s/activate?token=%s", s.frontendURL, activation.Token)
	if err := s.mailer.SendActivation(user.Email, user.Username, url); err != nil {
		// The account exists either way; the user can ask for a resend.
		s.logger.Error("activation mail failed", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// Activate consumes an activation token and unlocks the account.
func (s *AccountService) Activate(ctx context.Context, tokenID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	activation, err := s.activations.FindByToken(ctx, tx, tokenID)
	if err != nil {
		return domain.ErrInternal("find activation token", err)
	}
	if activation == nil {
		return domain.ErrNotFound("activation token", tokenID.String())
	}
	if activation.Expired(time.Now()) {
		return domain.ErrValidation("activation link has expired")
	}

	if err := s.users.SetActive(ctx, tx, activation.UserID, true); err != nil {
		return domain.ErrInternal("activate user", err)
	}
	if err := s.activations.DeleteByUserID(ctx, tx, activation.UserID); err != nil {
		return domain.ErrInternal("consume activation token", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit tx", err)
	}
	return nil
}

// ResendActivation issues a fresh token for an inactive account.
func (s *AccountService) ResendActivation(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	// Unknown addresses get a silent success so the endpoint cannot be
	// used to probe for accounts.
	if user == nil || user.IsActive {
		return nil
	}

	now := time.Now()
	activation := &domain.ActivationToken{
		UserID:    user.ID,
		Token:     uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ActivationTokenTTL),
	}
	if err := s.activations.Create(ctx, s.pool, activation); err != nil {
		return domain.ErrInternal("create activation token", err)
	}

	url := fmt.Sprintf("%s/activate?token=%s", s.frontendURL, activation.Token)
	if err := s.mailer.SendActivation(user.Email, user.Username, url); err != nil {
		s.logger.Error("activation mail failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// Login verifies credentials and issues a token pair. ip feeds the
// lockout ledger.
func (s *AccountService) Login(ctx context.Context, username, password, ip string) (*domain.User, *TokenPair, error) {
	if err := guard.CheckLocked(ctx, s.pool, username); err != nil {
		return nil, nil, err
	}

	user, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		guard.RecordAttempt(ctx, s.pool, username, ip, false)
		return nil, nil, domain.ErrUnauthorized("invalid credentials")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		guard.RecordAttempt(ctx, s.pool, username, ip, false)
		return nil, nil, domain.ErrUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, nil, domain.ErrForbidden("account is not activated")
	}

	guard.RecordAttempt(ctx, s.pool, username, ip, true)

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.SetOnline(ctx, s.pool, user.ID, true); err != nil {
		// Presence is cosmetic; a failed flip must not fail the login.
		s.logger.Warn("set online failed", "user_id", user.ID, "error", err)
	}
	user.IsOnline = true

	return user, pair, nil
}

// Refresh rotates a refresh token into a fresh pair. The old token is
// revoked so it cannot be replayed.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.DecodeKind(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid refresh token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid refresh token")
	}

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrUnauthorized("invalid refresh token")
	}

	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, domain.ErrInternal("revoke refresh token", err)
	}
	return s.issuePair(userID)
}

// Logout revokes the presented tokens and clears presence.
func (s *AccountService) Logout(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := s.tokens.Revoke(ctx, accessToken); err != nil && !errors.Is(err, token.ErrInvalidToken) {
			return domain.ErrInternal("revoke access token", err)
		}
	}
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, token.ErrInvalidToken) {
			return domain.ErrInternal("revoke refresh token", err)
		}
	}

	if err := s.users.SetOnline(ctx, s.pool, userID, false); err != nil {
		s.logger.Warn("set offline failed", "user_id", userID, "error", err)
	}
	return nil
}

// Profile returns the caller's own account.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", fmt.Sprint(userID))
	}
	return user, nil
}

// PublicProfile returns another player's public view by username.
func (s *AccountService) PublicProfile(ctx context.Context, username string) (*domain.PublicProfile, error) {
	user, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrNotFound("user", username)
	}
	profile := user.Public()
	return &profile, nil
}

// UpdateProfileInput carries the optional profile mutations. Nil fields
// are left untouched.
type UpdateProfileInput struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	DefaultLang *string `json:"default_language"`
}

// UpdateProfile mutates the caller's account fields.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (*domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	user, err := s.users.LockForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound("user", fmt.Sprint(userID))
		}
		return nil, domain.ErrInternal("lock user", err)
	}
	if user.ExternalLogin && (input.Username != nil || input.Email != nil) {
		return nil, domain.ErrForbidden("externally provisioned accounts cannot change identity fields")
	}

	fields := make(map[string]string)
	if input.Username != nil && *input.Username != user.Username {
		if err := domain.ValidateUsername(*input.Username); err != nil {
			return nil, domain.ErrValidationFields(map[string]string{"username": err.Error()})
		}
		existing, err := s.users.FindByUsername(ctx, tx, *input.Username)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInternal("find user", err)
		}
		if existing != nil {
			fields["username"] = "Username is already in use"
		} else {
			user.Username = *input.Username
		}
	}
	if input.Email != nil && *input.Email != user.Email {
		if err := domain.ValidateEmail(*input.Email); err != nil {
			return nil, domain.ErrValidationFields(map[string]string{"email": err.Error()})
		}
		existing, err := s.users.FindByEmail(ctx, tx, *input.Email)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInternal("find user", err)
		}
		if existing != nil {
			fields["email"] = "Email is already in use"
		} else {
			user.Email = *input.Email
		}
	}
	if len(fields) > 0 {
		return nil, domain.ErrValidationFields(fields)
	}
	if input.DefaultLang != nil {
		if err := domain.ValidateLanguage(*input.DefaultLang); err != nil {
			return nil, domain.ErrValidationFields(map[string]string{"default_language": err.Error()})
		}
		user.DefaultLang = *input.DefaultLang
	}

	if err := s.users.Update(ctx, tx, user); err != nil {
		return nil, domain.ErrInternal("update user", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	return user, nil
}

// ChangePassword swaps the password after verifying the old one.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return domain.ErrValidationFields(map[string]string{"new_password": err.Error()})
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if user.ExternalLogin {
		return domain.ErrForbidden("externally provisioned accounts have no password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return domain.ErrUnauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.ErrInternal("hash password", err)
	}
	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, s.pool, user); err != nil {
		return domain.ErrInternal("update user", err)
	}
	return nil
}

// UpdateAvatar stores a new avatar path after the handler has written
// the file.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID int64, path string) (*domain.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.AvatarPath = path
	if err := s.users.Update(ctx, s.pool, user); err != nil {
		return nil, domain.ErrInternal("update user", err)
	}
	return user, nil
}

// SetTournamentName changes the display name used in tournaments.
func (s *AccountService) SetTournamentName(ctx context.Context, userID int64, name string) (*domain.User, error) {
	if err := domain.ValidateUsername(name); err != nil {
		return nil, domain.ErrValidationFields(map[string]string{"tournament_name": err.Error()})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	user, err := s.users.LockForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound("user", fmt.Sprint(userID))
		}
		return nil, domain.ErrInternal("lock user", err)
	}
	if name != user.TournamentName {
		exists, err := s.users.TournamentNameExists(ctx, tx, name)
		if err != nil {
			return nil, domain.ErrInternal("check tournament name", err)
		}
		if exists {
			return nil, domain.ErrValidationFields(map[string]string{"tournament_name": "Tournament name is already in use"})
		}
		user.TournamentName = name
		if err := s.users.Update(ctx, tx, user); err != nil {
			return nil, domain.ErrInternal("update user", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}
	return user, nil
}

// DeleteAccount removes the account after verifying the password.
// Relationship edges, requests, blocks and activation tokens cascade.
func (s *AccountService) DeleteAccount(ctx context.Context, userID int64, password string) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if !user.ExternalLogin {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			return domain.ErrUnauthorized("password is incorrect")
		}
	}
	if err := s.users.Delete(ctx, s.pool, userID); err != nil {
		return domain.ErrInternal("delete user", err)
	}
	return nil
}

// SetOnline flips the presence flag. Called by the realtime layer on
// socket connect and disconnect.
func (s *AccountService) SetOnline(ctx context.Context, userID int64, online bool) error {
	if err := s.users.SetOnline(ctx, s.pool, userID, online); err != nil {
		return domain.ErrInternal("set online", err)
	}
	return nil
}

// Search finds players by username or tournament name.
func (s *AccountService) Search(ctx context.Context, viewerID int64, query string) ([]domain.SearchResult, error) {
	if query == "" {
		return nil, domain.ErrValidation("search query is required")
	}
	results, err := s.users.Search(ctx, s.pool, viewerID, query, 20)
	if err != nil {
		return nil, domain.ErrInternal("search users", err)
	}
	return results, nil
}

// issuePair mints an access/refresh couple.
func (s *AccountService) issuePair(userID int64) (*TokenPair, error) {
	access, err := s.tokens.Issue(token.KindAccess, userID, "")
	if err != nil {
		return nil, domain.ErrInternal("issue access token", err)
	}
	refresh, err := s.tokens.Issue(token.KindRefresh, userID, "")
	if err != nil {
		return nil, domain.ErrInternal("issue refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// freshTournamentName draws names until one is free.
func (s *AccountService) freshTournamentName(ctx context.Context, db repository.DBTX) (string, error) {
	return GenerateTournamentName(rand.Intn, func(name string) (bool, error) {
		return s.users.TournamentNameExists(ctx, db, name)
	})
}

// GenerateTournamentName draws "noob" plus six digits, redrawing on
// collision. The draw space is a million names, so a retry cap only
// matters for a broken exists check.
func GenerateTournamentName(intn func(int) int, exists func(string) (bool, error)) (string, error) {
	for i := 0; i < 100; i++ {
		name := fmt.Sprintf("noob%06d", intn(1000000))
		taken, err := exists(name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("tournament name space exhausted")
}

func (s *AccountService) findByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, s.pool, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrInternal("find user", err)
	}
	return user, nil
}

func (s *AccountService) findByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, s.pool, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrInternal("find user", err)
	}
	return user, nil
}

func (s *AccountService) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, s.pool, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrInternal("find user", err)
	}
	return user, nil
}
