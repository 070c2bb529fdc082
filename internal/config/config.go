package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию хоста PMStation Client
type Config struct {
	// Настройки сервера
	Port        string `envconfig:"PMSTATION_CLIENT_PORT" default:"8090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Бэкенд PMStation
	BackendURL     string        `envconfig:"PMSTATION_BACKEND_URL" required:"true"`
	ProjectID      string        `envconfig:"PMSTATION_PROJECT_ID" required:"true"`
	RequestTimeout time.Duration `envconfig:"BACKEND_REQUEST_TIMEOUT" default:"30s"`

	// Токен доступа к бэкенду
	AccessToken string `envconfig:"PMSTATION_ACCESS_TOKEN" required:"true"`

	// Настройки JWT для проверки токена пользователя в middleware
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Предпросмотр
	PreviewBridgeURL       string        `envconfig:"PREVIEW_BRIDGE_URL" default:"ws://localhost:8090/ws/preview"`
	PreviewMaxAge          time.Duration `envconfig:"PREVIEW_MAX_AGE" default:"10m"`
	PreviewCleanupInterval time.Duration `envconfig:"PREVIEW_CLEANUP_INTERVAL" default:"1m"`

	// Адреса рантайма предпросмотра (пустые — публичные CDN по умолчанию)
	PreviewReactURL    string `envconfig:"PREVIEW_REACT_URL"`
	PreviewReactDOMURL string `envconfig:"PREVIEW_REACT_DOM_URL"`
	PreviewBabelURL    string `envconfig:"PREVIEW_BABEL_URL"`
	PreviewTailwindURL string `envconfig:"PREVIEW_TAILWIND_URL"`

	// CORS
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Гейт этапа features перед генерацией демо
	RequireFeaturesStage bool `envconfig:"REQUIRE_FEATURES_STAGE" default:"true"`
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load pmstation-client config: %w", err)
	}

	log.Printf("Конфигурация PMStation Client загружена:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  Backend URL: %s", cfg.BackendURL)
	log.Printf("  Project ID: %s", cfg.ProjectID)
	log.Printf("  Request Timeout: %v", cfg.RequestTimeout)
	log.Printf("  Preview Bridge URL: %s", cfg.PreviewBridgeURL)
	log.Printf("  Preview Max Age: %v", cfg.PreviewMaxAge)
	log.Printf("  Require Features Stage: %v", cfg.RequireFeaturesStage)
	log.Println("  Access Token: [ЗАГРУЖЕН]")
	log.Println("  JWT Secret: [ЗАГРУЖЕН]")

	return &cfg, nil
}
