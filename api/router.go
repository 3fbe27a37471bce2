package api

import (
	"net/http"
	"time"

	"fieldops_backend/config"
	"fieldops_backend/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"
)

// RouterOptions настройки маршрутизатора
type RouterOptions struct {
	CORS     config.CORSConfig
	Security config.SecurityConfig

	// Redis общий счетчик rate limiting. nil - счетчики в памяти процесса
	Redis *redis.Client

	// UploadDir каталог, раздаваемый по /uploads. Пусто - не раздается
	UploadDir string
}

// NewRouter настраивает Gin router со всеми маршрутами API
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(opts.CORS)))

	// Базовые роуты
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "pong",
		})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", middleware.AuthRateLimit(opts.Redis), h.Login)

	protected := v1.Group("", h.Auth.RequireAuth())
	if opts.Security.RateLimitRequests > 0 {
		protected.Use(middleware.APIRateLimit(opts.Redis, opts.Security.RateLimitRequests, opts.Security.RateLimitWindow))
	}
	protected.GET("/auth/me", h.Me)

	collections := protected.Group("/collections/:collection")
	collections.GET("", h.ListCollection)
	collections.POST("", h.CreateItem)
	collections.GET("/stream", h.StreamCollection)
	collections.PUT("/:id", h.UpdateItem)
	collections.DELETE("/:id", h.DeleteItem)

	dash := protected.Group("/dashboard")
	dash.GET("/stats", h.GetDashboardStats)
	dash.GET("/export", h.ExportDashboard)

	reports := protected.Group("/reports")
	reports.POST("", h.CreateReport)
	reports.GET("/export", h.ExportReports)
	reports.GET("/:id", h.GetReport)
	reports.DELETE("/:id", h.DeleteReport)

	protected.POST("/incidents/:id/photo", h.UploadIncidentPhoto)

	return r
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	c.AllowOrigins = cfg.AllowedOrigins
	if len(c.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	}
	return c
}
