/*
Package handler provides the HTTP handlers and routing setup for the relay.

This file defines the main Router, applying middleware like logging, CORS, and
IP-based rate limiting before delegating to the health, avatar, and WebSocket
handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"hiroba/internal/pkg/limiter"
	"hiroba/internal/pkg/logx"
	"hiroba/internal/pkg/resp"
)

const (
	// ConnectRate limits how often one IP may open new WebSocket connections.
	ConnectRate  = 0.5
	ConnectBurst = 5

	// PresignRate limits avatar upload presign requests per IP.
	PresignRate  = 0.2
	PresignBurst = 3

	// DownloadRate limits avatar download URL requests per IP. Laxer than
	// PresignRate: one observer resolves many participants' avatars.
	DownloadRate  = 2
	DownloadBurst = 10
)

// Router sets up the HTTP routing table (chi.Router) for the relay. It
// configures per-IP rate limiters, CORS, and the WebSocket upgrader with its
// origin allow-list.
func Router(deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	presignLimiter := limiter.NewIPRateLimiter(rate.Limit(PresignRate), PresignBurst)
	downloadLimiter := limiter.NewIPRateLimiter(rate.Limit(DownloadRate), DownloadBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "hiroba relay",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/users", func(w http.ResponseWriter, r *http.Request) {
			resp.RespondSuccess(w, r, deps.Hub.Users())
		})

		rateLimitedPresign := presignLimiter.Middleware(HandlePresignAvatarURL(deps))
		api.Post("/avatar/presign", http.HandlerFunc(rateLimitedPresign.ServeHTTP))

		rateLimitedDownload := downloadLimiter.Middleware(HandleAvatarDownloadURL(deps))
		api.Get("/avatar/url", http.HandlerFunc(rateLimitedDownload.ServeHTTP))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
