/*
Package handler provides the HTTP handlers and routing setup for the relay.

This file contains the WebSocket gateway handler: rate limiting, connection
upgrade, connection id assignment, and the start of the client read/write
loops. Accepting a structurally valid connection never fails; login happens
later, over the protocol itself.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"hiroba/internal/app/space"
	"hiroba/internal/pkg/errs"
	"hiroba/internal/pkg/limiter"
	"hiroba/internal/pkg/logx"
	"hiroba/internal/pkg/resp"
)

// HandleWebSocket creates the HandlerFunc that accepts duplex connections.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r.RemoteAddr)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := space.NewClient(deps.Hub, conn)

		go client.WritePump()

		deps.Hub.Register(client)

		logx.Info("WebSocket connection established", "connection_id", client.ID())

		client.ReadPump()
	}
}
