package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pongarena/platform/internal/auth"
	"github.com/pongarena/platform/internal/guard"
	"github.com/pongarena/platform/internal/handler"
	"github.com/pongarena/platform/internal/infra"
	"github.com/pongarena/platform/internal/mail"
	"github.com/pongarena/platform/internal/provider"
	"github.com/pongarena/platform/internal/repository"
	"github.com/pongarena/platform/internal/service"
	"github.com/pongarena/platform/internal/session"
	"github.com/pongarena/platform/internal/token"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool    *pgxpool.Pool
	Tokens  *token.Manager
	Store   session.Store
	Mailer  mail.Mailer
	Logger  *slog.Logger
	Config  *infra.Config
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	tokens := deps.Tokens
	logger := deps.Logger
	cfg := deps.Config

	// Repositories
	userRepo := repository.NewUserRepository()
	requestRepo := repository.NewFriendRequestRepository()
	relRepo := repository.NewRelationshipRepository()
	activationRepo := repository.NewActivationRepository()
	matchRepo := repository.NewMatchRepository()
	outboxRepo := repository.NewOutboxRepository()

	// External providers
	fortyTwo := provider.NewFortyTwoClient(cfg.FortyTwoClientID, cfg.FortyTwoClientSecret, cfg.FortyTwoRedirectURI)

	// Services
	accountSvc := service.NewAccountService(pool, userRepo, activationRepo, tokens, deps.Mailer, logger, cfg.FrontendURL)
	relSvc := service.NewRelationshipService(pool, userRepo, requestRepo, relRepo, outboxRepo)
	matchSvc := service.NewMatchService(pool, userRepo, matchRepo, outboxRepo)
	oauthSvc := service.NewOAuthService(pool, userRepo, tokens, fortyTwo, logger)

	// Guards
	loginRate := guard.NewRateLimiter(10, time.Minute)

	// Handlers
	authHandler := handler.NewAuthHandler(accountSvc, oauthSvc, loginRate, cfg.FrontendURL)
	userHandler := handler.NewUserHandler(accountSvc, cfg.AvatarDir)
	friendHandler := handler.NewFriendHandler(relSvc)
	blockHandler := handler.NewBlockHandler(relSvc)
	matchHandler := handler.NewMatchHandler(matchSvc, accountSvc)

	// Session binding
	sessions := session.NewMiddleware(deps.Store, tokens, session.CookieConfig{
		Name:             cfg.SessionCookieName,
		Path:             cfg.SessionCookiePath,
		Domain:           cfg.SessionCookieDomain,
		Secure:           cfg.SessionCookieSecure,
		HTTPOnly:         cfg.SessionCookieHTTPOnly,
		SameSite:         session.ParseSameSite(cfg.SessionCookieSameSite),
		TTL:              cfg.JWTSessionExpiry,
		SaveEveryRequest: cfg.SessionSaveEveryReq,
	}, logger)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)
	r.Use(sessions.Handler)
	r.Use(auth.Maybe(tokens))

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(pool))

	// Auth routes (no auth)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/activate/resend", authHandler.ResendActivation)
		r.Get("/activate", authHandler.Activate)
		r.Get("/42", authHandler.OAuthStart)
		r.Get("/42/callback", authHandler.OAuthCallback)
	})

	// Authenticated routes, via bearer token or bound session
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Post("/auth/logout", authHandler.Logout)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.Search)
			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateMe)
			r.Delete("/me", userHandler.DeleteMe)
			r.Put("/me/password", userHandler.ChangePassword)
			r.Put("/me/avatar", userHandler.UploadAvatar)
			r.Put("/me/tournament-name", userHandler.SetTournamentName)
			r.Get("/{username}", userHandler.Profile)
		})

		r.Route("/friends", func(r chi.Router) {
			r.Get("/", friendHandler.List)
			r.Post("/requests", friendHandler.SendRequest)
			r.Get("/requests", friendHandler.ListRequests)
			r.Post("/requests/{id}/accept", friendHandler.Accept)
			r.Post("/requests/{id}/decline", friendHandler.Decline)
			r.Delete("/{username}", friendHandler.Remove)
			r.Get("/{username}/status", friendHandler.Status)
		})

		r.Route("/blocks", func(r chi.Router) {
			r.Get("/", blockHandler.List)
			r.Post("/", blockHandler.Block)
			r.Delete("/{username}", blockHandler.Unblock)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", matchHandler.Record)
			r.Get("/", matchHandler.History)
		})
	})

	return r
}
