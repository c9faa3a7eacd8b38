/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

HandleWebSocket rate limits the caller, resolves the connecting identity,
upgrades the connection and hands it to the presence hub for its lifetime.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"duochat/internal/app/chat"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/limiter"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// The identity comes from the session token. In development a ?userId= query
// parameter is accepted instead, which lets local tools connect without signing in.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)
		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity := ""
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			identity = payload.ID
		} else if deps.Config.IsDevelopment() {
			identity = r.URL.Query().Get("userId")
		}

		if identity == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "user_id", identity)
			return
		}

		client := chat.NewClient(deps.Hub, conn, identity)

		logx.Info("WebSocket connection established", "user_id", identity, "conn_id", client.ID())

		client.Serve()
	}
}
