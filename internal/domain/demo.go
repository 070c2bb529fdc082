package domain

import "time"

// PlatformType определяет целевую поверхность демо (ПК или мобильная).
type PlatformType string

const (
	PlatformPC     PlatformType = "pc"
	PlatformMobile PlatformType = "mobile"
)

// PageStatus представляет статус генерации страницы демо.
type PageStatus string

// Возможные статусы страниц
const (
	PageStatusPending    PageStatus = "pending"
	PageStatusGenerating PageStatus = "generating"
	PageStatusCompleted  PageStatus = "completed"
	PageStatusError      PageStatus = "error"
	PageStatusSkipped    PageStatus = "skipped"
)

// PageTransition описывает возможный переход со страницы на другую страницу.
type PageTransition struct {
	Trigger      string                 `json:"trigger"`
	TargetPageID string                 `json:"target_page_id"`
	StateChanges map[string]interface{} `json:"state_changes,omitempty"`
}

// DemoPage представляет одну сгенерированную страницу демо.
// Code может быть пустым, пока страница еще не сгенерирована.
type DemoPage struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Path        string           `json:"path"`
	Description string           `json:"description"`
	Code        string           `json:"code"`
	Order       int              `json:"order"`
	Status      PageStatus       `json:"status"`
	Transitions []PageTransition `json:"transitions"`
	Error       string           `json:"error,omitempty"`
}

// PlatformNavigation описывает навигационный блок платформы
// (боковая панель для ПК, нижняя панель для мобильных).
type PlatformNavigation struct {
	Type  string   `json:"type"`
	Items []string `json:"items"`
}

// DemoPlatform представляет одну целевую платформу со своим набором страниц.
// Порядок отображения страниц задается полем Order, а не порядком в срезе.
type DemoPlatform struct {
	Type       PlatformType       `json:"type"`
	Subtype    string             `json:"subtype"`
	Pages      []DemoPage         `json:"pages"`
	Navigation PlatformNavigation `json:"navigation"`
}

// GenerationMetadata содержит метаданные прошедшей генерации.
type GenerationMetadata struct {
	TotalPages  int       `json:"total_pages"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DemoProject — агрегирующий корень демо-проекта: платформы,
// общее состояние, видимое всем страницам, и метаданные генерации.
type DemoProject struct {
	ProjectName        string                 `json:"project_name"`
	Platforms          []DemoPlatform         `json:"platforms"`
	SharedState        map[string]interface{} `json:"shared_state"`
	GenerationMetadata GenerationMetadata     `json:"generation_metadata"`
}

// GenerationProgress — эфемерный прогресс текущей сессии генерации.
// Сбрасывается в начале каждой новой сессии и не сохраняется.
type GenerationProgress struct {
	TotalPages      int    `json:"total_pages"`
	CompletedPages  int    `json:"completed_pages"`
	CurrentPageID   string `json:"current_page_id,omitempty"`
	CurrentPageName string `json:"current_page_name,omitempty"`
}

// PageStats содержит количество страниц по статусам.
type PageStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Generating int `json:"generating"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
	Skipped    int `json:"skipped"`
}

// PageByID возвращает страницу платформы по ее идентификатору.
func (p *DemoPlatform) PageByID(id string) *DemoPage {
	for i := range p.Pages {
		if p.Pages[i].ID == id {
			return &p.Pages[i]
		}
	}
	return nil
}

// FirstPage возвращает страницу платформы с минимальным значением Order.
func (p *DemoPlatform) FirstPage() *DemoPage {
	if len(p.Pages) == 0 {
		return nil
	}
	first := &p.Pages[0]
	for i := range p.Pages {
		if p.Pages[i].Order < first.Order {
			first = &p.Pages[i]
		}
	}
	return first
}

// CopySharedState возвращает копию словаря общего состояния.
// Страницы предпросмотра получают состояние по значению, а не по ссылке.
func CopySharedState(state map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}
