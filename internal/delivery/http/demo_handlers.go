package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pmstation-client/internal/client"
	"pmstation-client/internal/domain"
)

// startGeneration запускает массовую генерацию демо.
func (h *Handler) startGeneration(c *gin.Context) {
	if err := h.controller.StartGeneration(c.Request.Context()); err != nil {
		if errors.Is(err, client.ErrStageNotConfirmed) {
			h.logger.Warn("Generation rejected: features stage not confirmed")
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to start generation", zap.Error(err))
		h.backendError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "generating"})
}

// stopGeneration отменяет текущую сессию генерации. Без активной сессии — no-op.
func (h *Handler) stopGeneration(c *gin.Context) {
	h.controller.StopGeneration()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (h *Handler) demoState(c *gin.Context) {
	c.JSON(http.StatusOK, demoStateResponse{
		Platforms:         h.store.Platforms(),
		CurrentPlatform:   h.store.CurrentPlatform(),
		CurrentPageID:     h.store.CurrentPageID(),
		SharedState:       h.store.SharedState(),
		NavigationHistory: h.store.NavigationHistory(),
		IsGenerating:      h.store.IsGenerating(),
		Progress:          h.store.Progress(),
		Stats:             h.store.Stats(),
		Error:             h.store.Error(),
	})
}

func (h *Handler) generationProgress(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"is_generating": h.store.IsGenerating(),
		"progress":      h.store.Progress(),
		"stats":         h.store.Stats(),
	})
}

// loadStructure загружает структуру демо из бэкенда и помещает ее в хранилище.
// Формат ответа бэкенда может быть любым из поддерживаемых, нормализация
// происходит в хранилище.
func (h *Handler) loadStructure(c *gin.Context) {
	raw, err := h.backend.DemoStructure(c.Request.Context(), h.projectID)
	if err != nil {
		h.logger.Error("Failed to load demo structure", zap.Error(err))
		h.backendError(c, err)
		return
	}
	if err := h.store.SetDemoProject(raw); err != nil {
		h.logger.Error("Failed to apply demo structure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "invalid demo structure from backend"})
		return
	}
	h.demoState(c)
}

func (h *Handler) selectPlatform(c *gin.Context) {
	var req selectPlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body for selectPlatform", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Platform != domain.PlatformPC && req.Platform != domain.PlatformMobile {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}
	h.store.SetCurrentPlatform(req.Platform)
	h.demoState(c)
}

func (h *Handler) navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body for navigate", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.store.NavigateToPage(req.PageID, req.StateChanges)
	h.demoState(c)
}

func (h *Handler) goBack(c *gin.Context) {
	h.store.GoBack()
	h.demoState(c)
}

func (h *Handler) updateSharedState(c *gin.Context) {
	var req updateSharedStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body for updateSharedState", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.store.UpdateSharedState(req.Changes)
	c.JSON(http.StatusOK, gin.H{"shared_state": h.store.SharedState()})
}

// resetDemo останавливает генерацию и возвращает хранилище к пустому состоянию.
func (h *Handler) resetDemo(c *gin.Context) {
	h.controller.StopGeneration()
	h.store.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *Handler) getPage(c *gin.Context) {
	pageID := c.Param("id")
	page := h.store.PageByID(pageID)
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	// Код отдаем с учетом буфера активной генерации
	page.Code = h.store.PageCode(pageID)
	c.JSON(http.StatusOK, page)
}

func (h *Handler) modifyPage(c *gin.Context) {
	pageID := c.Param("id")
	var req modifyPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body for modifyPage", zap.String("pageID", pageID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if h.store.PageByID(pageID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	if err := h.controller.ModifyPage(c.Request.Context(), pageID, req.Instruction); err != nil {
		h.logger.Error("Failed to start page modification", zap.String("pageID", pageID), zap.Error(err))
		h.backendError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "modifying", "page_id": pageID})
}

func (h *Handler) regeneratePage(c *gin.Context) {
	h.restartPage(c, "regenerating")
}

// retryPage повторяет генерацию страницы после ошибки. Семантически это та же
// перегенерация: статус error сменяется на generating, прежняя ошибка очищается.
func (h *Handler) retryPage(c *gin.Context) {
	h.restartPage(c, "retrying")
}

func (h *Handler) restartPage(c *gin.Context, status string) {
	pageID := c.Param("id")
	if h.store.PageByID(pageID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	if err := h.controller.RegeneratePage(c.Request.Context(), pageID); err != nil {
		h.logger.Error("Failed to start page regeneration", zap.String("pageID", pageID), zap.Error(err))
		h.backendError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": status, "page_id": pageID})
}

// skipPage помечает страницу с ошибкой как пропущенную. Допустим только
// переход error -> skipped.
func (h *Handler) skipPage(c *gin.Context) {
	pageID := c.Param("id")
	// Тело с причиной необязательно
	var req skipPageRequest
	_ = c.ShouldBindJSON(&req)

	page := h.store.PageByID(pageID)
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	if page.Status != domain.PageStatusError {
		c.JSON(http.StatusConflict, gin.H{"error": "only failed pages can be skipped"})
		return
	}

	if err := h.backend.SkipPage(c.Request.Context(), h.projectID, pageID, req.Reason); err != nil {
		h.logger.Error("Failed to skip page on backend", zap.String("pageID", pageID), zap.Error(err))
		h.backendError(c, err)
		return
	}
	h.store.SetPageStatus(pageID, domain.PageStatusSkipped)
	c.JSON(http.StatusOK, gin.H{"status": "skipped", "page_id": pageID})
}

// updatePageCode сохраняет отредактированный вручную код страницы
// на бэкенде и в локальном хранилище.
func (h *Handler) updatePageCode(c *gin.Context) {
	pageID := c.Param("id")
	var req updatePageCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body for updatePageCode", zap.String("pageID", pageID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if h.store.PageByID(pageID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	if err := h.backend.UpdatePageCode(c.Request.Context(), h.projectID, pageID, req.Code); err != nil {
		h.logger.Error("Failed to update page code on backend", zap.String("pageID", pageID), zap.Error(err))
		h.backendError(c, err)
		return
	}
	h.store.SetPageCode(pageID, req.Code)
	c.JSON(http.StatusOK, gin.H{"status": "updated", "page_id": pageID})
}

// backendError переводит ошибку бэкенда в HTTP-ответ хоста.
func (h *Handler) backendError(c *gin.Context, err error) {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			c.JSON(statusErr.Status, gin.H{"error": "backend rejected credentials"})
		case http.StatusNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found on backend"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "backend request failed"})
		}
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
