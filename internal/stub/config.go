package stub

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию стаб-бэкенда
type Config struct {
	Port        string `envconfig:"STUB_SERVER_PORT" default:"8091"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`

	// Генератор: fixture (детерминированные шаблоны) или openai
	Generator  string        `envconfig:"STUB_GENERATOR" default:"fixture"`
	ChunkDelay time.Duration `envconfig:"STUB_CHUNK_DELAY" default:"30ms"`

	// Настройки OpenAI-совместимого API (для STUB_GENERATOR=openai)
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
}

// LoadConfig загружает конфигурацию стаба из переменных окружения
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load stub config: %w", err)
	}
	if cfg.Generator != "fixture" && cfg.Generator != "openai" {
		return nil, fmt.Errorf("unknown generator %q, expected fixture or openai", cfg.Generator)
	}
	if cfg.Generator == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai generator")
	}
	return &cfg, nil
}
