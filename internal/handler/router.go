/*
Package handler provides the HTTP handlers and routing setup for the duochat server.

This file defines the main Router, applying logging, CORS and IP-based rate
limiting before delegating to the REST handlers and the live websocket endpoint.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/limiter"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/resp"
)

const (
	AuthRate     = 0.2
	AuthBurst    = 5
	ConnectRate  = 1
	ConnectBurst = 10
)

// Router builds the application's routing table. Background work owned by the
// router (limiter sweeps) stops when ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	go authLimiter.Run(ctx, limiter.DefaultCleanupInterval)
	go connectLimiter.Run(ctx, limiter.DefaultCleanupInterval)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if deps.Config.IsDevelopment() || origin == "" {
				return true
			}

			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-PoW-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger(func(r *http.Request) string {
		return jwt.IdentityFromRequest(r, deps.Config.JWTSecret)
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		r.Route("/api", func(api chi.Router) {
			api.Route("/auth", func(auth chi.Router) {
				signup := http.Handler(HandleSignup(deps))
				if deps.Pow != nil {
					auth.Get("/challenge", HandleChallenge(deps))
					auth.Post("/challenge/verify", HandleVerifyChallenge(deps))
					signup = deps.Pow.Middleware(signup)
				}

				auth.With(authLimiter.Middleware).Post("/signup", signup.ServeHTTP)
				auth.With(authLimiter.Middleware).Post("/login", HandleLogin(deps))
				auth.Post("/logout", HandleLogout(deps))

				auth.With(jwt.RequireIdentity).Get("/check", HandleCheckAuth(deps))
				auth.With(jwt.RequireIdentity).Put("/update-profile", HandleUpdateProfile(deps))
			})

			api.Route("/messages", func(msgs chi.Router) {
				msgs.Use(jwt.RequireIdentity)

				msgs.Get("/users", HandleListContacts(deps))
				msgs.Get("/{id}", HandleGetConversation(deps))
				msgs.Post("/send/{id}", HandleSendMessage(deps))
			})
		})

		r.Get("/ws", HandleWebSocket(deps, wsUpgrader, connectLimiter))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errNotFound())
	})

	return r
}

// HandleHealth reports liveness together with the presence layer's counters.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry := deps.Hub.Registry()

		resp.RespondSuccess(w, r, map[string]any{
			"status":      "ok",
			"service":     "duochat",
			"onlineUsers": len(registry.OnlineIdentities()),
			"connections": registry.ConnectionCount(),
		})
	}
}
