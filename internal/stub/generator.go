// Package stub реализует имитацию бэкенда PMStation для локальной разработки:
// те же HTTP и SSE контракты, что у настоящего бэкенда, но генерация страниц
// идет либо из детерминированных шаблонов, либо через OpenAI-совместимый API.
package stub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"pmstation-client/internal/domain"
)

// ErrGenerationFailed - ошибка при генерации кода страницы
var ErrGenerationFailed = errors.New("page generation failed")

var (
	pagesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmstation_stub_pages_generated_total",
			Help: "Total number of demo pages generated by the stub backend.",
		},
		[]string{"generator", "status"},
	)
	pageGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pmstation_stub_page_generation_duration_seconds",
			Help:    "Histogram of page generation durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"generator"},
	)
)

// PageGenerator порождает код страницы, отдавая его чанками по мере готовности.
type PageGenerator interface {
	GeneratePage(ctx context.Context, page domain.DemoPage, instruction string, onChunk func(chunk string) error) (string, error)
}

// markdownFenceRe вырезает обрамление ```jsx ... ``` из ответа модели
var markdownFenceRe = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\n(.*?)\\n?```\\s*$")

// CleanCode убирает markdown-ограждение вокруг кода, если модель его добавила.
func CleanCode(code string) string {
	if m := markdownFenceRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return strings.TrimSpace(code)
}

// FixtureGenerator порождает детерминированные страницы из шаблона.
// Чанки выдаются с небольшой задержкой, чтобы поток выглядел как настоящий.
type FixtureGenerator struct {
	ChunkDelay time.Duration
	FailPages  map[string]string // page_id -> текст ошибки, для проверки сценариев сбоя
	logger     *zap.Logger
}

// NewFixtureGenerator создает шаблонный генератор страниц.
func NewFixtureGenerator(chunkDelay time.Duration, logger *zap.Logger) *FixtureGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixtureGenerator{
		ChunkDelay: chunkDelay,
		FailPages:  make(map[string]string),
		logger:     logger.Named("FixtureGenerator"),
	}
}

// GeneratePage собирает код страницы из шаблона и прогоняет его чанками.
func (g *FixtureGenerator) GeneratePage(ctx context.Context, page domain.DemoPage, instruction string, onChunk func(string) error) (string, error) {
	start := time.Now()

	if msg, ok := g.FailPages[page.ID]; ok {
		pagesGeneratedTotal.With(prometheus.Labels{"generator": "fixture", "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %s", ErrGenerationFailed, msg)
	}

	code := fixturePageCode(page, instruction)

	// Режем код на чанки по строкам, имитируя поток модели
	lines := strings.SplitAfter(code, "\n")
	var sent strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		select {
		case <-ctx.Done():
			pagesGeneratedTotal.With(prometheus.Labels{"generator": "fixture", "status": "canceled"}).Inc()
			return "", ctx.Err()
		default:
		}
		if onChunk != nil {
			if err := onChunk(line); err != nil {
				return "", fmt.Errorf("chunk handler failed: %w", err)
			}
		}
		sent.WriteString(line)
		if g.ChunkDelay > 0 {
			time.Sleep(g.ChunkDelay)
		}
	}

	pagesGeneratedTotal.With(prometheus.Labels{"generator": "fixture", "status": "ok"}).Inc()
	pageGenerationDuration.With(prometheus.Labels{"generator": "fixture"}).Observe(time.Since(start).Seconds())
	return sent.String(), nil
}

func fixturePageCode(page domain.DemoPage, instruction string) string {
	title := page.Name
	if title == "" {
		title = page.ID
	}
	note := ""
	if instruction != "" {
		note = fmt.Sprintf("\n      <p className=\"text-sm text-gray-400\">Modified: %s</p>", instruction)
	}
	return fmt.Sprintf(`function Page({ sharedState, navigateTo, updateState }) {
  return (
    <div className="min-h-screen bg-gray-50 p-8">
      <h1 className="text-2xl font-bold">%s</h1>
      <p className="text-gray-500">%s</p>%s
      <button
        className="mt-4 px-4 py-2 bg-blue-600 text-white rounded"
        onClick={() => updateState({ lastVisited: '%s' })}
      >
        Mark visited
      </button>
    </div>
  );
}
`, title, page.Description, note, page.ID)
}

// OpenAIGenerator порождает страницы через OpenAI-совместимый API в режиме стрима.
type OpenAIGenerator struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIGenerator создает генератор поверх OpenAI-совместимого API.
// baseURL пустой — используется api.openai.com.
func NewOpenAIGenerator(apiKey, baseURL, model string, logger *zap.Logger) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("API key cannot be empty")
	}
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIGenerator{
		client: openaigo.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.Named("OpenAIGenerator"),
	}, nil
}

const pageSystemPrompt = `You are a senior frontend engineer generating a single React page component for a product demo.
Rules:
- Output ONLY the component code, no explanations and no markdown fences.
- Use function components with Tailwind CSS classes.
- The component receives props: sharedState, navigateTo(pageId, stateChanges), updateState(changes).
- Do not use import or export statements.`

// GeneratePage запрашивает код страницы у модели и пробрасывает чанки стрима.
func (g *OpenAIGenerator) GeneratePage(ctx context.Context, page domain.DemoPage, instruction string, onChunk func(string) error) (string, error) {
	start := time.Now()
	log := g.logger.With(zap.String("pageID", page.ID), zap.String("model", g.model))

	userPrompt := fmt.Sprintf("Generate the %q page.\nDescription: %s\nPage id: %s", page.Name, page.Description, page.ID)
	if instruction != "" {
		userPrompt += "\nModification request: " + instruction + "\nCurrent code:\n" + page.Code
	}

	request := openaigo.ChatCompletionRequest{
		Model: g.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: pageSystemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: userPrompt},
		},
		Stream: true,
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		log.Error("Failed to open completion stream", zap.Error(err))
		pagesGeneratedTotal.With(prometheus.Labels{"generator": "openai", "status": "error_stream_init"}).Inc()
		return "", fmt.Errorf("%w: failed to open stream: %v", ErrGenerationFailed, err)
	}
	defer stream.Close()

	var responseTextBuilder strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Error("Failed to read completion stream", zap.Error(err))
			pagesGeneratedTotal.With(prometheus.Labels{"generator": "openai", "status": "error_stream_read"}).Inc()
			return "", fmt.Errorf("%w: failed to read stream: %v", ErrGenerationFailed, err)
		}

		if len(response.Choices) > 0 {
			chunk := response.Choices[0].Delta.Content
			responseTextBuilder.WriteString(chunk)
			if onChunk != nil && chunk != "" {
				if err := onChunk(chunk); err != nil {
					log.Warn("Chunk handler failed", zap.Error(err))
				}
			}
		}
	}

	pagesGeneratedTotal.With(prometheus.Labels{"generator": "openai", "status": "ok"}).Inc()
	pageGenerationDuration.With(prometheus.Labels{"generator": "openai"}).Observe(time.Since(start).Seconds())
	log.Debug("Page generated", zap.Duration("duration", time.Since(start)))
	return CleanCode(responseTextBuilder.String()), nil
}
