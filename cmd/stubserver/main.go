package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pmstation-client/internal/stub"
	"pmstation-client/pkg/logger"
	"pmstation-client/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := stub.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	zap.ReplaceGlobals(zapLogger)
	zap.L().Info("Stub backend starting",
		zap.String("port", cfg.Port),
		zap.String("generator", cfg.Generator),
	)

	var gen stub.PageGenerator
	switch cfg.Generator {
	case "openai":
		gen, err = stub.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, zapLogger)
		if err != nil {
			zap.L().Fatal("Failed to create OpenAI generator", zap.Error(err))
		}
	default:
		gen = stub.NewFixtureGenerator(cfg.ChunkDelay, zapLogger)
	}

	server := stub.NewServer(gen, zapLogger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.GinZapLogger(zapLogger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server.RegisterRoutes(router)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// SSE-потоки живут дольше обычных запросов, таймаут записи не ставим
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down stub backend...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Stub backend exiting")
}
