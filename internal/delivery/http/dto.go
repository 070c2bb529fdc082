package http

import "pmstation-client/internal/domain"

// Запросы

type selectPlatformRequest struct {
	Platform domain.PlatformType `json:"platform" binding:"required"`
}

type navigateRequest struct {
	PageID       string                 `json:"page_id" binding:"required"`
	StateChanges map[string]interface{} `json:"state_changes"`
}

type updateSharedStateRequest struct {
	Changes map[string]interface{} `json:"changes" binding:"required"`
}

type modifyPageRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

type skipPageRequest struct {
	Reason string `json:"reason"`
}

type updatePageCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// Ответы

type demoStateResponse struct {
	Platforms         []domain.DemoPlatform     `json:"platforms"`
	CurrentPlatform   domain.PlatformType       `json:"current_platform"`
	CurrentPageID     string                    `json:"current_page_id"`
	SharedState       map[string]interface{}    `json:"shared_state"`
	NavigationHistory []string                  `json:"navigation_history"`
	IsGenerating      bool                      `json:"is_generating"`
	Progress          domain.GenerationProgress `json:"progress"`
	Stats             domain.PageStats          `json:"stats"`
	Error             string                    `json:"error,omitempty"`
}

type previewResponse struct {
	Handle string `json:"handle"`
	URL    string `json:"url"`
}
