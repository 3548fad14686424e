// Package main runs the VOD bridge HTTP server: a streaming relay that
// forwards source byte streams to resumable-upload endpoints with
// poll-for-completion job tracking.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vodbridge/backend/config"
	"github.com/vodbridge/backend/internal/auth"
	"github.com/vodbridge/backend/internal/jobs"
	"github.com/vodbridge/backend/internal/middleware"
	"github.com/vodbridge/backend/internal/transfer"
	"github.com/vodbridge/backend/internal/uploads"
	"github.com/vodbridge/backend/pkg/redis"
	"github.com/vodbridge/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Job store: in-process memory by default, Redis when configured.
	var store jobs.Store = jobs.NewMemoryStore(cfg.Transfer.RetentionCap)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		store = jobs.NewRedisStore(rdb.Client, cfg.Transfer.RetentionCap, logger)
	}

	prober := transfer.NewHeadProber(cfg.Transfer.ProbeTimeout(), logger)
	relay := transfer.NewHTTPRelay(cfg.Transfer.IdleTimeout(), logger)
	orch := transfer.NewOrchestrator(store, prober, relay, transfer.Config{
		MaxAttempts:        cfg.Transfer.MaxAttempts,
		BackoffBase:        cfg.Transfer.BackoffBase(),
		BackoffCap:         cfg.Transfer.BackoffCap(),
		DefaultContentType: cfg.Transfer.DefaultContentType,
	}, logger)

	oauthCfg := auth.OAuthConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RefreshToken: cfg.OAuth.RefreshToken,
		RedirectURL:  cfg.OAuth.RedirectURL,
		AuthURL:      cfg.OAuth.AuthURL,
		TokenURL:     cfg.OAuth.TokenURL,
		Scopes:       cfg.OAuth.Scopes,
	}
	var tokens auth.TokenProvider
	if oauthCfg.Configured() {
		tokens = auth.NewOAuthTokenSource(oauthCfg)
		logger.Info("server-side oauth credentials configured")
	}
	authHandler := auth.NewHandler(oauthCfg, logger)
	uploadHandler := uploads.NewHandler(orch, store, tokens, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// One-time browser consent flow (operator only).
	router.GET("/auth/url", authHandler.ConsentURL)
	router.GET("/auth/callback", authHandler.Callback)

	// Transfer jobs.
	router.POST("/uploads", uploadHandler.Submit)
	router.GET("/uploads/:id", uploadHandler.Poll)

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// WriteTimeout left at config value; 0 disables it so synchronous
		// transfers can outlive any fixed deadline.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
