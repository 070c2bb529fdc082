package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pmstation-client/internal/preview"
)

// createPreview собирает документ предпросмотра для текущей страницы
// и публикует его под одноразовым хэндлом.
func (h *Handler) createPreview(c *gin.Context) {
	page := h.store.CurrentPage()
	if page == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no page selected"})
		return
	}

	code := h.store.PageCode(page.ID)
	if code == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "page has no code yet"})
		return
	}

	html, err := h.renderer.Render(code, h.store.SharedState(), h.bridgeURL)
	if err != nil {
		h.logger.Error("Failed to render preview document", zap.String("pageID", page.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render preview"})
		return
	}

	handle := h.registry.Publish(html)
	c.JSON(http.StatusCreated, previewResponse{
		Handle: handle,
		URL:    "/preview/" + handle,
	})
}

// servePreview отдает документ по одноразовому хэндлу. Повторный запрос
// по тому же хэндлу получает 404: документ отзывается при выдаче.
func (h *Handler) servePreview(c *gin.Context) {
	handle := c.Param("handle")
	html, err := h.registry.Take(handle)
	if err != nil {
		if errors.Is(err, preview.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "preview document not found"})
			return
		}
		h.logger.Error("Failed to serve preview document", zap.String("handle", handle), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serve preview"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
