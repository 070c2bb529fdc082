package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"pmstation-client/internal/domain"
)

// StatusError — транспортная ошибка с HTTP-статусом ответа бэкенда.
type StatusError struct {
	Status int
	Op     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received unexpected status %d from pmstation backend for %s", e.Status, e.Op)
}

// StageStatus представляет статус этапа воркфлоу на бэкенде.
type StageStatus struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Version int    `json:"version"`
}

// DemoClient — HTTP-клиент демо-пайплайна PMStation: стриминговые запросы
// генерации и обычные REST-вызовы жизненного цикла этапов.
type DemoClient struct {
	baseURL    string
	httpClient *http.Client
	// Отдельный клиент без общего таймаута: поток генерации живет
	// дольше любого разумного таймаута запроса и ограничен только контекстом.
	streamClient *http.Client
	logger       *zap.Logger
	tokens       TokenSource
}

// NewDemoClient создает клиент бэкенда PMStation.
func NewDemoClient(baseURL string, timeout time.Duration, logger *zap.Logger, tokens TokenSource) (*DemoClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL for pmstation backend: %w", err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DemoClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{},
		logger:       logger.Named("DemoClient"),
		tokens:       tokens,
	}, nil
}

// newRequest создает запрос с авторизационным заголовком.
func (c *DemoClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("internal error marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("internal error creating request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// openStream выполняет стриминговый запрос и возвращает тело ответа.
// Закрыть тело обязан вызывающий.
func (c *DemoClient) openStream(ctx context.Context, method, path string, body interface{}, op string) (io.ReadCloser, error) {
	log := c.logger.With(zap.String("op", op), zap.String("path", path))

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	log.Debug("Opening event stream")
	resp, err := c.streamClient.Do(req)
	if err != nil {
		log.Error("HTTP request for event stream failed", zap.Error(err))
		return nil, fmt.Errorf("failed to communicate with pmstation backend: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		log.Warn("Received non-OK status for event stream", zap.Int("status", resp.StatusCode))
		return nil, &StatusError{Status: resp.StatusCode, Op: op}
	}
	if resp.Body == nil {
		log.Warn("Event stream response has no body")
		return nil, fmt.Errorf("stream unavailable: response has no body for %s", op)
	}

	return resp.Body, nil
}

// GenerateStream открывает поток массовой генерации демо по проекту.
func (c *DemoClient) GenerateStream(ctx context.Context, projectID string) (io.ReadCloser, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/demo/generate/stream", projectID)
	return c.openStream(ctx, http.MethodPost, path, nil, "generate")
}

// ModifyStream открывает поток модификации одной страницы по текстовой инструкции.
func (c *DemoClient) ModifyStream(ctx context.Context, projectID, pageID, instruction string) (io.ReadCloser, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/demo/modify", projectID)
	body := map[string]string{
		"page_id":     pageID,
		"instruction": instruction,
	}
	return c.openStream(ctx, http.MethodPost, path, body, "modify")
}

// RegenerateStream открывает поток перегенерации одной страницы.
func (c *DemoClient) RegenerateStream(ctx context.Context, projectID, pageID string) (io.ReadCloser, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/demo/pages/%s/regenerate", projectID, pageID)
	return c.openStream(ctx, http.MethodPost, path, nil, "regenerate")
}

// doJSON выполняет обычный запрос и декодирует JSON-ответ в out (если out != nil).
func (c *DemoClient) doJSON(ctx context.Context, method, path string, body, out interface{}, op string) error {
	log := c.logger.With(zap.String("op", op), zap.String("path", path))

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed", zap.Error(err))
		return fmt.Errorf("failed to communicate with pmstation backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Received non-OK status", zap.Int("status", resp.StatusCode))
		return &StatusError{Status: resp.StatusCode, Op: op}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Error("Failed to decode response", zap.Error(err))
		return fmt.Errorf("invalid %s response format from pmstation backend: %w", op, err)
	}
	return nil
}

// DemoStructure запрашивает структуру демо без кода страниц (быстрая загрузка).
// Ответ отдается сырыми байтами: интерпретация формата — дело DemoStore.
func (c *DemoClient) DemoStructure(ctx context.Context, projectID string) ([]byte, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/demo/structure", projectID)
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw, "structure"); err != nil {
		return nil, err
	}
	return raw, nil
}

// DemoPage запрашивает одну страницу демо вместе с кодом.
func (c *DemoClient) DemoPage(ctx context.Context, projectID, pageID string) (*domain.DemoPage, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/demo/pages/%s", projectID, pageID)
	var page domain.DemoPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page, "page"); err != nil {
		return nil, err
	}
	return &page, nil
}

// SkipPage помечает страницу пропущенной на бэкенде.
func (c *DemoClient) SkipPage(ctx context.Context, projectID, pageID, reason string) error {
	path := fmt.Sprintf("/api/v1/projects/%s/demo/pages/%s/skip", projectID, pageID)
	body := map[string]string{"reason": reason}
	return c.doJSON(ctx, http.MethodPost, path, body, nil, "skip")
}

// UpdatePageCode сохраняет вручную отредактированный код страницы.
func (c *DemoClient) UpdatePageCode(ctx context.Context, projectID, pageID, code string) error {
	path := fmt.Sprintf("/api/v1/projects/%s/demo/pages/%s", projectID, pageID)
	body := map[string]string{"code": code}
	return c.doJSON(ctx, http.MethodPut, path, body, nil, "update_page")
}

// Stage запрашивает статус этапа воркфлоу указанного типа.
func (c *DemoClient) Stage(ctx context.Context, projectID, stageType string) (*StageStatus, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/stages/%s", projectID, stageType)
	var stage StageStatus
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &stage, "stage"); err != nil {
		return nil, err
	}
	return &stage, nil
}
