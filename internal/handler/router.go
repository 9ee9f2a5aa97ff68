/*
Package handler provides the HTTP handlers and routing setup for the relay chat server.

This file defines the main Router, applying middleware like logging, CORS and IP-based
rate limiting before delegating requests to the WebSocket endpoint and the small HTTP surface
(email verification, upload downloads, health and metrics).
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/limiter"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

const (
	UpgradeRate  = 1
	UpgradeBurst = 10
	VerifyRate   = 0.2
	VerifyBurst  = 5
)

// Router sets up the main HTTP routing table for the application.
// ctx bounds the background sweepers of the rate limiters.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	upgradeLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(UpgradeRate), UpgradeBurst)
	verifyLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(VerifyRate), VerifyBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
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
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "relaychat",
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))

	r.With(verifyLimiter.Middleware).Get("/verify", HandleVerifyEmail(deps.Users))
	r.Get("/uploads/*", HandleDownload(deps.StorageService))

	r.Get("/ws", HandleWebSocket(deps.Hub, wsUpgrader, upgradeLimiter))

	return r
}
