package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pmstation-client/internal/auth"
	"pmstation-client/internal/client"
	"pmstation-client/internal/preview"
	"pmstation-client/internal/session"
	"pmstation-client/internal/store"
)

// Handler отвечает за HTTP-интерфейс хоста: управление генерацией демо,
// чтение состояния, навигацию и выдачу документов предпросмотра.
type Handler struct {
	store      *store.DemoStore
	controller *session.Controller
	backend    *client.DemoClient
	renderer   *preview.Renderer
	registry   *preview.Registry
	projectID  string
	bridgeURL  string
	logger     *zap.Logger
}

// NewHandler создает HTTP-обработчик хоста.
func NewHandler(
	st *store.DemoStore,
	ctrl *session.Controller,
	backend *client.DemoClient,
	renderer *preview.Renderer,
	registry *preview.Registry,
	projectID string,
	bridgeURL string,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:      st,
		controller: ctrl,
		backend:    backend,
		renderer:   renderer,
		registry:   registry,
		projectID:  projectID,
		bridgeURL:  bridgeURL,
		logger:     logger.Named("Handler"),
	}
}

// RegisterRoutes регистрирует маршруты API под защитой JWT.
// Маршрут предпросмотра регистрируется отдельно: документ запрашивается
// iframe-ом без заголовков и защищен одноразовым хэндлом.
func (h *Handler) RegisterRoutes(router *gin.Engine, verifier *auth.JWTVerifier) {
	router.GET("/health", h.healthCheck)
	router.GET("/preview/:handle", h.servePreview)

	api := router.Group("/api/v1")
	api.Use(verifier.Middleware())

	demo := api.Group("/demo")
	demo.POST("/generation/start", h.startGeneration)
	demo.POST("/generation/stop", h.stopGeneration)
	demo.GET("/state", h.demoState)
	demo.GET("/progress", h.generationProgress)
	demo.GET("/structure", h.loadStructure)
	demo.POST("/platform", h.selectPlatform)
	demo.POST("/navigate", h.navigate)
	demo.POST("/back", h.goBack)
	demo.PATCH("/shared-state", h.updateSharedState)
	demo.POST("/reset", h.resetDemo)

	pages := demo.Group("/pages/:id")
	pages.GET("", h.getPage)
	pages.POST("/modify", h.modifyPage)
	pages.POST("/regenerate", h.regeneratePage)
	pages.POST("/retry", h.retryPage)
	pages.POST("/skip", h.skipPage)
	pages.PUT("/code", h.updatePageCode)

	api.POST("/preview", h.createPreview)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
