package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"pmstation-client/internal/auth"
	"pmstation-client/internal/client"
	"pmstation-client/internal/config"
	delivery "pmstation-client/internal/delivery/http"
	ws "pmstation-client/internal/delivery/websocket"
	"pmstation-client/internal/preview"
	"pmstation-client/internal/session"
	"pmstation-client/internal/store"
	"pmstation-client/pkg/logger"
	"pmstation-client/pkg/middleware"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		// В production .env может не использоваться
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
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
	zap.L().Info("Logger initialized successfully", zap.String("logLevel", cfg.LogLevel))

	// --- Dependency Injection ---
	tokens := client.NewStaticTokenSource(cfg.AccessToken)

	backend, err := client.NewDemoClient(cfg.BackendURL, cfg.RequestTimeout, zapLogger, tokens)
	if err != nil {
		zap.L().Fatal("Failed to create backend client", zap.Error(err))
	}

	demoStore := store.New(zapLogger)

	var gate session.StageGate
	if cfg.RequireFeaturesStage {
		gate = client.NewFeatureStageGate(backend)
	}
	controller := session.NewController(cfg.ProjectID, backend, gate, demoStore, zapLogger)

	runtime := preview.DefaultRuntime()
	if cfg.PreviewReactURL != "" {
		runtime.ReactURL = cfg.PreviewReactURL
	}
	if cfg.PreviewReactDOMURL != "" {
		runtime.ReactDOMURL = cfg.PreviewReactDOMURL
	}
	if cfg.PreviewBabelURL != "" {
		runtime.BabelURL = cfg.PreviewBabelURL
	}
	if cfg.PreviewTailwindURL != "" {
		runtime.TailwindURL = cfg.PreviewTailwindURL
	}
	renderer := preview.NewRenderer(runtime, zapLogger)

	registry := preview.NewRegistry(zapLogger)
	stopCleanup := registry.StartCleanup(cfg.PreviewCleanupInterval, cfg.PreviewMaxAge)
	defer stopCleanup()

	bridge := ws.NewBridge(demoStore, zapLogger)

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, zapLogger)
	if err != nil {
		zap.L().Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	handler := delivery.NewHandler(
		demoStore,
		controller,
		backend,
		renderer,
		registry,
		cfg.ProjectID,
		cfg.PreviewBridgeURL,
		zapLogger,
	)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.GinZapLogger(zapLogger))
	router.Use(gin.Recovery())

	// Configure CORS Middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	handler.RegisterRoutes(router, verifier)
	router.GET("/ws/preview", gin.WrapH(bridge.Handler()))

	// Prometheus middleware применяем после регистрации роутов
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.Port))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Сначала гасим сессии генерации, чтобы не потерять события на полпути
	if err := controller.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Error stopping generation sessions", zap.Error(err))
	}
	bridge.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}
