package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pmstation-client/internal/domain"
)

// Server имитирует бэкенд PMStation: отдает структуру демо, ведет SSE-потоки
// генерации и принимает те же вспомогательные запросы. Все состояние живет
// в памяти процесса и сбрасывается при рестарте.
type Server struct {
	mu        sync.Mutex
	project   *domain.DemoProject
	generator PageGenerator
	logger    *zap.Logger
}

// NewServer создает стаб-бэкенд вокруг генератора страниц.
func NewServer(gen PageGenerator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		project:   FixtureProject(),
		generator: gen,
		logger:    logger.Named("StubServer"),
	}
}

// RegisterRoutes регистрирует маршруты стаба. Аутентификация не проверяется:
// стаб предназначен только для локальной разработки.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/projects/:project_id")
	api.POST("/demo/generate/stream", s.generateStream)
	api.POST("/demo/modify", s.modifyStream)
	api.POST("/demo/pages/:page_id/regenerate", s.regenerateStream)
	api.GET("/demo/structure", s.demoStructure)
	api.GET("/demo/pages/:page_id", s.getPage)
	api.POST("/demo/pages/:page_id/skip", s.skipPage)
	api.PUT("/demo/pages/:page_id", s.updatePageCode)
	api.GET("/stages/:stage_type", s.getStage)
}

// sseWriter пишет события в формате text/event-stream.
type sseWriter struct {
	c *gin.Context
}

func newSSEWriter(c *gin.Context) *sseWriter {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	return &sseWriter{c: c}
}

func (w *sseWriter) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	if _, err := fmt.Fprintf(w.c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event, err)
	}
	w.c.Writer.Flush()
	return nil
}

// generateStream ведет полную генерацию всех страниц всех платформ.
func (s *Server) generateStream(c *gin.Context) {
	w := newSSEWriter(c)
	ctx := c.Request.Context()

	s.mu.Lock()
	snapshot := *s.project
	s.mu.Unlock()

	total := 0
	for i := range snapshot.Platforms {
		total += len(snapshot.Platforms[i].Pages)
	}

	if err := w.send("init", gin.H{
		"total_pages":  total,
		"platforms":    snapshot.Platforms,
		"project_name": snapshot.ProjectName,
		"shared_state": snapshot.SharedState,
	}); err != nil {
		return
	}

	for pi := range snapshot.Platforms {
		platform := &snapshot.Platforms[pi]
		pages := orderedPages(platform)
		for _, page := range pages {
			if ctx.Err() != nil {
				s.logger.Info("Generation stream canceled by client")
				return
			}
			if !s.generateOne(ctx, w, string(platform.Type), page, "", "page") {
				// Ошибка страницы не прерывает поток, следующая страница идет своим чередом
				continue
			}
		}
	}

	s.mu.Lock()
	s.project.GenerationMetadata = domain.GenerationMetadata{
		TotalPages:  total,
		GeneratedAt: time.Now().UTC(),
	}
	final := *s.project
	s.mu.Unlock()

	_ = w.send("complete", gin.H{"demo_project": final})
}

type modifyRequest struct {
	PageID      string `json:"page_id" binding:"required"`
	Instruction string `json:"instruction" binding:"required"`
}

// modifyStream ведет точечную модификацию одной страницы.
func (s *Server) modifyStream(c *gin.Context) {
	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	page, platform := s.findPage(req.PageID)
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	w := newSSEWriter(c)
	s.generateOne(c.Request.Context(), w, platform, *page, req.Instruction, "modify")
}

// regenerateStream перегенерирует одну страницу с нуля.
func (s *Server) regenerateStream(c *gin.Context) {
	pageID := c.Param("page_id")
	page, platform := s.findPage(pageID)
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	w := newSSEWriter(c)
	s.generateOne(c.Request.Context(), w, platform, *page, "", "page")
}

// generateOne прогоняет генерацию одной страницы через SSE-события семейства
// kind ("page" или "modify"). Возвращает false при ошибке генерации.
func (s *Server) generateOne(ctx context.Context, w *sseWriter, platform string, page domain.DemoPage, instruction, kind string) bool {
	startEvent, progressEvent, completeEvent := kind+"_start", kind+"_progress", kind+"_complete"

	if err := w.send(startEvent, gin.H{
		"platform":  platform,
		"page_id":   page.ID,
		"page_name": page.Name,
	}); err != nil {
		return false
	}

	code, err := s.generator.GeneratePage(ctx, page, instruction, func(chunk string) error {
		return w.send(progressEvent, gin.H{"page_id": page.ID, "chunk": chunk})
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.Warn("Page generation failed", zap.String("pageID", page.ID), zap.Error(err))
		_ = w.send("page_error", gin.H{"page_id": page.ID, "error": err.Error()})
		return false
	}

	code = CleanCode(code)

	s.mu.Lock()
	if stored, _ := s.findPageLocked(page.ID); stored != nil {
		stored.Code = code
		stored.Status = domain.PageStatusCompleted
		stored.Error = ""
	}
	s.mu.Unlock()

	return w.send(completeEvent, gin.H{"page_id": page.ID, "code": code}) == nil
}

func (s *Server) demoStructure(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.project)
}

func (s *Server) getPage(c *gin.Context) {
	page, _ := s.findPage(c.Param("page_id"))
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) skipPage(c *gin.Context) {
	pageID := c.Param("page_id")

	s.mu.Lock()
	page, _ := s.findPageLocked(pageID)
	if page == nil {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	page.Status = domain.PageStatusSkipped
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "skipped", "page_id": pageID})
}

type updateCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *Server) updatePageCode(c *gin.Context) {
	pageID := c.Param("page_id")
	var req updateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.mu.Lock()
	page, _ := s.findPageLocked(pageID)
	if page == nil {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	page.Code = req.Code
	page.Status = domain.PageStatusCompleted
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "updated", "page_id": pageID})
}

// getStage всегда отвечает подтвержденным этапом: стаб не моделирует воркфлоу.
func (s *Server) getStage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"type":    c.Param("stage_type"),
		"status":  "confirmed",
		"version": 1,
	})
}

func (s *Server) findPage(pageID string) (*domain.DemoPage, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, platform := s.findPageLocked(pageID)
	if page == nil {
		return nil, ""
	}
	// Копия, чтобы вызывающий не держал указатель под мьютексом
	cp := *page
	return &cp, platform
}

func (s *Server) findPageLocked(pageID string) (*domain.DemoPage, string) {
	for pi := range s.project.Platforms {
		platform := &s.project.Platforms[pi]
		if page := platform.PageByID(pageID); page != nil {
			return page, string(platform.Type)
		}
	}
	return nil, ""
}

func orderedPages(platform *domain.DemoPlatform) []domain.DemoPage {
	pages := make([]domain.DemoPage, len(platform.Pages))
	copy(pages, platform.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Order < pages[j].Order })
	return pages
}
