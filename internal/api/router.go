package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trueface/internal/auth"
	"trueface/internal/httpmiddleware"
	"trueface/internal/logger"
	"trueface/internal/metrics"
)

// RouterConfig carries the settings the router needs beyond the handler.
type RouterConfig struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	Backend         string
	Healthy         func(ctx context.Context) bool
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(h *Handler, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log, "/healthz", "/metrics"))
	r.Use(metrics.GinMiddleware())
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		healthy := cfg.Healthy == nil || cfg.Healthy(c.Request.Context())
		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "store": cfg.Backend})
	})

	r.POST("/teacher/register", h.RegisterTeacher)
	r.POST("/teacher/login", h.Login)
	r.POST("/students/register", h.RegisterStudent)
	r.POST("/attendance/mark", auth.RequireTeacher(h.issuer), h.MarkAttendance)

	r.GET("/teachers", h.ListTeachers)
	r.GET("/students", h.ListStudents)
	r.GET("/attendance", h.ListAttendance)

	r.GET("/session", h.Session)
	r.POST("/logout", h.Logout)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
