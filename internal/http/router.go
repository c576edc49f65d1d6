// Package httpapi wires the Gin transport to the query tracker services:
// tracing, correlation ids, redacted access logs, recovery, metrics, CORS,
// security headers, compression, authentication, idempotency and rate
// limiting, then the versioned API routes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-quetras-backend/docs" // registers the OpenAPI document
	"github.com/tbourn/go-quetras-backend/internal/config"
	"github.com/tbourn/go-quetras-backend/internal/http/handlers"
	"github.com/tbourn/go-quetras-backend/internal/http/middleware"
	"github.com/tbourn/go-quetras-backend/internal/storage"
)

// Deps are the collaborators RegisterRoutes mounts.
type Deps struct {
	Queries handlers.QueryService
	Auth    handlers.AuthService
	Inbox   handlers.Inbox
	Tokens  middleware.TokenParser

	// Statter enables list ETags; nil disables them.
	Statter storage.Statter
	// DB stores idempotency records; nil disables POST replay.
	DB *gorm.DB
	// Ping backs /health; nil always reports ok.
	Ping func(context.Context) error
}

// RegisterRoutes installs middleware and every endpoint on r.
//
// Order matters: tracing, request id, logging and recovery first so that
// everything after them is correlated; authentication before idempotency
// and rate limiting because both key on the caller.
func RegisterRoutes(r *gin.Engine, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.Use(corsMiddleware(cfg.CORS))

	base := cfg.APIBasePath
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:        cfg.Security.EnableHSTS,
		HSTSMaxAge:        cfg.Security.HSTSMaxAge,
		NoStorePrefixes:   []string{base + "/auth", base + "/notifications"},
		PermissionsPolicy: true,
	}))
	// SSE must flush unbuffered and promhttp compresses on its own.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
		gzip.WithExcludedPathsRegexs([]string{`/events$`}),
	))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(d.Ping))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var idem handlers.IdempotencyStore
	var lookup middleware.IdempotencyLookup
	if d.DB != nil {
		store := idempotencyStore{db: d.DB, ttl: cfg.IdempotencyTTL}
		idem, lookup = store, store.seen
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, base)
	api.Use(
		middleware.Authenticate(d.Tokens, middleware.AuthOptions{AllowDemoHeaders: cfg.Auth.DemoHeaders}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup),
		rl.Handler(),
	)

	ah := handlers.NewAuthHandler(d.Auth)
	authG := api.Group("/auth")
	{
		authG.POST("/register", ah.Register)
		authG.POST("/login", ah.Login)
		authG.GET("/me", middleware.RequireAuth(), ah.Me)
	}

	qh := handlers.NewQueryHandler(d.Queries, handlers.QueryHandlerOptions{
		Statter:     d.Statter,
		Idempotency: idem,
	})
	q := api.Group("/queries", middleware.RequireAuth())
	{
		q.GET("", qh.List)
		q.POST("", qh.Create)
		q.GET("/can-submit", qh.CanSubmit)
		q.GET("/stats", qh.Stats)
		q.GET("/events", qh.Events)
		q.GET("/:id", qh.Get)
		q.PATCH("/:id", qh.Update)
		q.DELETE("/:id", qh.Delete)
		q.POST("/:id/cancel", qh.Cancel)
		q.POST("/:id/notes", middleware.RequireAdmin(), qh.AddNote)
		q.POST("/:id/notify", middleware.RequireAdmin(), qh.Notify)
	}

	nh := handlers.NewNotificationHandler(d.Inbox)
	n := api.Group("/notifications", middleware.RequireAuth())
	{
		n.GET("", nh.List)
		n.DELETE("", nh.Clear)
		n.POST("/read-all", nh.MarkAllRead)
		n.POST("/:id/read", nh.MarkRead)
	}
}

func health(ping func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// corsMiddleware allows any origin when none are configured; credentials
// are never allowed since auth travels in the Authorization header.
func corsMiddleware(cc config.CORSConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
			middleware.HeaderUserID, middleware.HeaderUserRole, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Location", "Retry-After", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(cc.AllowedOrigins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = cc.AllowedOrigins
	}
	return cors.New(conf)
}

// limitBody caps request bodies; reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
