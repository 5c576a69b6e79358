package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/pongarena/platform/internal/domain"
	"github.com/pongarena/platform/internal/provider"
	"github.com/pongarena/platform/internal/repository"
	"github.com/pongarena/platform/internal/token"
)

// externalPrefix marks accounts provisioned from the 42 intranet. The
// prefix uses characters normal registration rejects, so the two
// namespaces cannot collide.
const externalPrefix = "[42]"

// OAuthService provisions and logs in accounts backed by the 42 intranet.
type OAuthService struct {
	pool     *pgxpool.Pool
	users    repository.UserRepository
	tokens   *token.Manager
	fortyTwo *provider.FortyTwoClient
	logger   *slog.Logger
}

// NewOAuthService creates a new OAuthService.
func NewOAuthService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	tokens *token.Manager,
	fortyTwo *provider.FortyTwoClient,
	logger *slog.Logger,
) *OAuthService {
	return &OAuthService{
		pool:     pool,
		users:    users,
		tokens:   tokens,
		fortyTwo: fortyTwo,
		logger:   logger,
	}
}

// AuthorizeURL starts the OAuth flow.
func (s *OAuthService) AuthorizeURL(state string) string {
	return s.fortyTwo.AuthorizeURL(state)
}

// LoginWithCode trades an authorization code for a logged-in account,
// provisioning one on first sight. Provisioned accounts skip email
// activation; the intranet already vouches for the address.
func (s *OAuthService) LoginWithCode(ctx context.Context, code string) (*domain.User, *TokenPair, error) {
	profile, err := s.fortyTwo.Exchange(ctx, code)
	if err != nil {
		return nil, nil, domain.ErrExternalService("42 intranet", err)
	}

	username := externalPrefix + profile.Login
	user, err := s.users.FindByExternalLogin(ctx, s.pool, username)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrInternal("find user", err)
	}

	if user == nil || errors.Is(err, pgx.ErrNoRows) {
		user, err = s.provision(ctx, username, profile)
		if err != nil {
			return nil, nil, err
		}
	}

	access, err := s.tokens.Issue(token.KindAccess, user.ID, "")
	if err != nil {
		return nil, nil, domain.ErrInternal("issue access token", err)
	}
	refresh, err := s.tokens.Issue(token.KindRefresh, user.ID, "")
	if err != nil {
		return nil, nil, domain.ErrInternal("issue refresh token", err)
	}

	if err := s.users.SetOnline(ctx, s.pool, user.ID, true); err != nil {
		s.logger.Warn("set online failed", "user_id", user.ID, "error", err)
	}
	user.IsOnline = true

	return user, &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *OAuthService) provision(ctx context.Context, username string, profile *provider.FortyTwoProfile) (*domain.User, error) {
	// The account never authenticates with this password; it only
	// exists so the row satisfies the same constraints as local ones.
	hash, err := bcrypt.GenerateFromPassword([]byte(randomSecret()), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	email := profile.Email
	if existing, err := s.users.FindByEmail(ctx, s.pool, email); err == nil && existing != nil {
		email = fmt.Sprintf("%s@users.42.fr", profile.Login)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	tournamentName, err := GenerateTournamentName(mathrand.Intn, func(name string) (bool, error) {
		return s.users.TournamentNameExists(ctx, tx, name)
	})
	if err != nil {
		return nil, domain.ErrInternal("generate tournament name", err)
	}

	user := &domain.User{
		Username:       username,
		Email:          email,
		PasswordHash:   string(hash),
		TournamentName: tournamentName,
		AvatarPath:     profile.Image.Link,
		IsActive:       true,
		ExternalLogin:  true,
		DefaultLang:    domain.LangEnglish,
	}
	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, domain.ErrInternal("create user", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("provisioned external account", "user_id", user.ID, "login", profile.Login)
	return user, nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("oauth: system random source failed: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
