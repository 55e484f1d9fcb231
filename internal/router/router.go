package router

import (
	"context"
	"net/http"
	"time"

	"civiceye/internal/config"
	"civiceye/internal/handlers"
	"civiceye/internal/metrics"
	"civiceye/internal/middleware"
	"civiceye/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "civiceye_session"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Config        *config.Config
	Store         Pinger
	Auth          *services.AuthService
	Grievances    *services.GrievanceService
	Notifications *services.NotificationService
	Feedback      *services.FeedbackService
	Stats         *services.StatsService
	CityUpdates   *services.CityUpdatesService
	Limiter       *middleware.RateLimiter
}

// New builds the engine with the global middleware chain and all routes.
func New(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(metrics.Middleware())

	if len(d.Config.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.Config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	store := cookie.NewStore([]byte(d.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   d.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth)
	userHandler := handlers.NewUserHandler(d.Auth, d.Stats)
	grievanceHandler := handlers.NewGrievanceHandler(d.Grievances)
	adminHandler := handlers.NewAdminHandler(d.Grievances, d.Feedback, d.Stats)
	feedbackHandler := handlers.NewFeedbackHandler(d.Feedback)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	updatesHandler := handlers.NewCityUpdatesHandler(d.CityUpdates)

	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	limit := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.RateLimit()
	}

	api := r.Group("/api")
	api.Use(middleware.LoadUser(d.Auth))

	// Public
	api.POST("/auth/register", limit, authHandler.Register)
	api.POST("/auth/login", limit, authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.POST("/grievances/:id/feedback", limit, feedbackHandler.Submit)
	api.GET("/feedback/public", feedbackHandler.Public)
	api.GET("/map", grievanceHandler.MapPins)
	api.GET("/updates", updatesHandler.List)
	api.GET("/updates/read", updatesHandler.Read)

	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/auth/me", userHandler.Me)
		authorized.PATCH("/auth/me", limit, userHandler.UpdateMe)
		authorized.GET("/stats/me", userHandler.Stats)

		authorized.POST("/grievances", limit, grievanceHandler.Create)
		authorized.GET("/grievances", grievanceHandler.List)
		authorized.GET("/grievances/:id", grievanceHandler.Get)
		authorized.GET("/grievances/:id/history", grievanceHandler.History)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.DELETE("/notifications", notificationHandler.Clear)
	}

	admin := authorized.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.PATCH("/grievances/:id/status", limit, adminHandler.UpdateStatus)
		admin.GET("/feedback", adminHandler.ListFeedback)
		admin.GET("/stats", adminHandler.Stats)
	}
}
