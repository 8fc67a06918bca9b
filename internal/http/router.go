// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/persona-chat/go-persona-backend/internal/auth"
	"github.com/persona-chat/go-persona-backend/internal/config"
	"github.com/persona-chat/go-persona-backend/internal/http/handlers"
	"github.com/persona-chat/go-persona-backend/internal/http/middleware"
	"github.com/persona-chat/go-persona-backend/internal/llm"
	"github.com/persona-chat/go-persona-backend/internal/oauth"
	"github.com/persona-chat/go-persona-backend/internal/repo"
	"github.com/persona-chat/go-persona-backend/internal/search"
	"github.com/persona-chat/go-persona-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS, security headers, gzip (SSE and metrics excluded)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, agg *search.Aggregator, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting). Identity is attached
	// per-group, so the replay pre-check only fires when a handler already
	// resolved the user; the chat service stays authoritative either way.
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID uint, sessionID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Compression. SSE frames and Prometheus scrapes must pass through
	// unbuffered.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/chat", "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/upstream clients
	issuer := auth.NewIssuer(cfg.JWTSecret)
	google := oauth.NewClient(cfg.Google)
	model := llm.NewGroqProvider(cfg.Groq.BaseURL, cfg.Groq.APIKey, cfg.Groq.Model)

	authSvc := services.NewAuthService(db, issuer, google)
	charSvc := services.NewCharacterService(db, model)
	chatSvc := services.NewChatService(db, model)
	chatSvc.StreamDelay = cfg.StreamDelay
	chatSvc.IdempotencyTTL = cfg.IdempotencyTTL
	genHTTP := &http.Client{Timeout: cfg.Search.Timeout}
	genSvc := services.NewGenerationService(search.NewDnDClient(genHTTP), search.NewAniListSource(genHTTP))

	h := handlers.New(authSvc, charSvc, chatSvc, agg, genSvc)

	requireAuth := middleware.RequireAuth(issuer, authSvc.GetUserByEmail, middleware.AuthOptions{})
	// EventSource cannot set headers; the SSE endpoint accepts ?token=.
	requireAuthSSE := middleware.RequireAuth(issuer, authSvc.GetUserByEmail, middleware.AuthOptions{AllowQueryToken: true})

	// Auth
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/set-password", requireAuth, h.SetPassword)
		authGroup.GET("/me", requireAuth, h.Me)

		authGroup.GET("/google/login", h.GoogleLogin)
		authGroup.GET("/google/callback", h.GoogleCallback)
		authGroup.POST("/google/token", h.GoogleToken)
	}

	// Characters (catalog is public, favorites need a bearer token)
	chars := r.Group("/characters")
	{
		chars.GET("", h.ListCharacters)
		chars.POST("", h.CreateCharacter)
		chars.POST("/add", h.CreateCharacter)
		chars.POST("/from-external", h.CreateCharacterFromExternal)
		chars.GET("/my", requireAuth, h.MyCharacters)
		chars.GET("/:id", h.GetCharacter)
		chars.PUT("/:id", h.UpdateCharacter)
		chars.DELETE("/:id", h.DeleteCharacter)
		chars.POST("/:id/favorite", requireAuth, h.FavoriteCharacter)
		chars.DELETE("/:id/favorite", requireAuth, h.UnfavoriteCharacter)
	}

	// External search and persona generation
	r.GET("/api/characters/search", h.SearchCharacters)
	r.GET("/api/characters/dnd/races", h.ListDnDRaces)
	r.GET("/api/characters/dnd/races/:race", h.GetDnDRace)
	r.GET("/api/characters/generate", h.GenerateCharacter)
	r.GET("/api/characters/hybrid", h.HybridCharacter)

	// Chat
	r.POST("/chat", requireAuth, h.Chat)
	r.GET("/chat", requireAuthSSE, h.StreamChat)
	r.GET("/chat/sessions", requireAuth, h.ListSessions)
	r.DELETE("/chat/sessions/:session", requireAuth, h.DeleteSession)
	r.PATCH("/chat/sessions/:session/title", requireAuth, h.RenameSession)
	r.GET("/messages", requireAuth, h.ListMessages)
	r.GET("/messages/chat/:session", requireAuth, h.ListSessionMessages)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
