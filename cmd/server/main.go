// Package main runs the planning poker HTTP server with WebSocket and
// graceful shutdown.
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

	"github.com/jfairfie/planning-poker/config"
	"github.com/jfairfie/planning-poker/internal/middleware"
	"github.com/jfairfie/planning-poker/internal/realtime"
	"github.com/jfairfie/planning-poker/internal/rooms"
	"github.com/jfairfie/planning-poker/internal/view"
	"github.com/jfairfie/planning-poker/internal/votes"
	"github.com/jfairfie/planning-poker/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := newLogger(cfg.Log)
	defer logger.Sync()

	// Core state: all volatile, in-memory only.
	roomRepo := rooms.NewRepository()
	voteStore := votes.NewStore()
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(roomRepo, voteStore, registry, view.RenderBoard, cfg.WS.DropOnFull(), logger)
	sessions := realtime.NewSessions(roomRepo, voteStore, registry, broadcaster, logger)

	roomHandler := rooms.NewHandler(roomRepo, sessions, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.SetHTMLTemplate(view.Templates())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Pages and HTMX fragments
	router.GET("/", roomHandler.IndexPage)
	router.GET("/rooms", roomHandler.ListPage)
	router.GET("/rooms/:id", roomHandler.RoomPage)
	router.POST("/rooms", roomHandler.CreateFragment)
	router.DELETE("/rooms/:id", roomHandler.DeleteFragment)

	// JSON API
	api := router.Group("/api")
	{
		api.GET("/rooms", roomHandler.ListAPI)
		api.POST("/rooms", roomHandler.CreateAPI)
		api.DELETE("/rooms/:id", roomHandler.DeleteAPI)
	}

	// WebSocket
	wsOpts := realtime.ClientOptions{
		SendBuffer:      cfg.WS.SendBuffer,
		PingInterval:    time.Duration(cfg.WS.PingIntervalSec) * time.Second,
		PongWait:        time.Duration(cfg.WS.PongWaitSec) * time.Second,
		WriteWait:       time.Duration(cfg.WS.WriteWaitSec) * time.Second,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
	}
	router.GET("/ws", realtime.ServeWs(sessions, wsOpts, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
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

func newLogger(cfg config.LogConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := zcfg.Build()
	return logger
}
