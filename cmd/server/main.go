package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civiceye/internal/auth"
	"civiceye/internal/config"
	"civiceye/internal/db"
	"civiceye/internal/logger"
	"civiceye/internal/middleware"
	"civiceye/internal/router"
	"civiceye/internal/services"
	"civiceye/internal/store"
)

const tokenLifetime = 24 * time.Hour

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Log.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	case "postgres":
		conn, err := db.Open(cfg.DatabaseURL, !cfg.IsProduction())
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(conn), nil
	default:
		return nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Log.WithError(err).Fatal("Invalid configuration")
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open store")
	}

	authSvc := services.NewAuthService(st, auth.NewJWTManager(cfg.JWTSecret, tokenLifetime))
	if err := authSvc.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Log.WithError(err).Fatal("Failed to create admin account")
	}

	notifications := services.NewNotificationService(st, st, services.NewMailService(cfg))
	cityUpdates, err := services.NewCityUpdatesService(cfg.CityFeedURLs, cfg.CityFeedTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialise city updates")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	go limiter.RunCleanup(10*time.Minute, stopCleanup)

	r := router.New(router.Deps{
		Config:        cfg,
		Store:         st,
		Auth:          authSvc,
		Grievances:    services.NewGrievanceService(st, notifications),
		Notifications: notifications,
		Feedback:      services.NewFeedbackService(st, st),
		Stats:         services.NewStatsService(st, st),
		CityUpdates:   cityUpdates,
		Limiter:       limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Log.WithField("port", cfg.Port).Info("CivicEye server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")
	close(stopCleanup)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Graceful shutdown failed")
	}
}
