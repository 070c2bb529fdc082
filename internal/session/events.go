package session

import (
	"encoding/json"

	"pmstation-client/internal/domain"
)

// Типы событий демо-потока, которые понимает контроллер.
const (
	eventInit         = "init"
	eventPageStart    = "page_start"
	eventPageProgress = "page_progress"
	eventPageComplete = "page_complete"
	eventPageError    = "page_error"
	eventComplete     = "complete"
	eventError        = "error"

	eventModifyStart    = "modify_start"
	eventModifyProgress = "modify_progress"
	eventModifyComplete = "modify_complete"
)

// initPayload — скелет проекта из события init.
type initPayload struct {
	TotalPages  int                    `json:"total_pages"`
	Platforms   []domain.DemoPlatform  `json:"platforms"`
	ProjectName string                 `json:"project_name"`
	SharedState map[string]interface{} `json:"shared_state"`
}

// pagePayload покрывает page_start/page_progress/page_complete/page_error
// и их modify_* варианты: заполняются только поля соответствующего события.
type pagePayload struct {
	Platform string `json:"platform,omitempty"`
	PageID   string `json:"page_id"`
	PageName string `json:"page_name,omitempty"`
	Chunk    string `json:"chunk,omitempty"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// completePayload — финальное событие потока с необязательным снимком проекта.
type completePayload struct {
	DemoProject json.RawMessage `json:"demo_project,omitempty"`
}

// errorPayload — фатальная ошибка уровня сессии.
type errorPayload struct {
	Message string `json:"message"`
}
