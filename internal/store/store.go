package store

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pmstation-client/internal/domain"
)

// DemoStore — единственный владелец состояния демо-проекта в памяти:
// платформы, статусы страниц, буферы частичного кода, общее состояние
// и история навигации. Все мутации проходят через его методы; другие
// компоненты не хранят собственных копий состояния дольше одного чтения.
type DemoStore struct {
	mu sync.RWMutex

	project         *domain.DemoProject
	platforms       []domain.DemoPlatform
	currentPlatform domain.PlatformType
	currentPageID   string
	sharedState     map[string]interface{}
	navHistory      []string

	generating bool
	progress   domain.GenerationProgress
	// Транзитные буферы кода по pageID на время генерации.
	// Отдельные от поля Code страницы: при page_complete буфер отбрасывается.
	pageBuffers map[string]string

	sessionErr string

	logger *zap.Logger
}

// New создает пустой DemoStore.
func New(logger *zap.Logger) *DemoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemoStore{
		sharedState: make(map[string]interface{}),
		pageBuffers: make(map[string]string),
		logger:      logger.Named("DemoStore"),
	}
}

// SetDemoProject принимает демо-проект в одном из трех известных wire-форматов,
// нормализует его к каноническому виду и делает текущим. После нормализации
// автоматически выбирается первая платформа и ее страница с минимальным Order.
func (s *DemoStore) SetDemoProject(raw []byte) error {
	project, err := Normalize(raw)
	if err != nil {
		return fmt.Errorf("failed to normalize demo project: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.project = project
	s.platforms = project.Platforms
	if project.SharedState != nil {
		s.sharedState = domain.CopySharedState(project.SharedState)
	} else {
		s.sharedState = make(map[string]interface{})
	}
	s.navHistory = nil
	s.currentPlatform = ""
	s.currentPageID = ""

	if len(s.platforms) > 0 {
		first := &s.platforms[0]
		s.currentPlatform = first.Type
		if page := first.FirstPage(); page != nil {
			s.currentPageID = page.ID
		}
	}

	s.logger.Info("Demo project loaded",
		zap.String("project", project.ProjectName),
		zap.Int("platforms", len(project.Platforms)),
		zap.Int("totalPages", project.GenerationMetadata.TotalPages))
	return nil
}

// SetPlatforms заменяет список платформ (скелет из события init).
// Страницы без статуса получают статус pending.
func (s *DemoStore) SetPlatforms(platforms []domain.DemoPlatform) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range platforms {
		for j := range platforms[i].Pages {
			if platforms[i].Pages[j].Status == "" {
				platforms[i].Pages[j].Status = domain.PageStatusPending
			}
		}
	}
	s.platforms = platforms

	if s.currentPlatform == "" && len(platforms) > 0 {
		s.currentPlatform = platforms[0].Type
		if page := platforms[0].FirstPage(); page != nil {
			s.currentPageID = page.ID
		}
	}
}

// SetCurrentPlatform переключает активную платформу, очищает историю навигации
// и выбирает страницу платформы с минимальным Order.
func (s *DemoStore) SetCurrentPlatform(platform domain.PlatformType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentPlatform = platform
	s.navHistory = nil

	for i := range s.platforms {
		if s.platforms[i].Type == platform {
			if page := s.platforms[i].FirstPage(); page != nil {
				s.currentPageID = page.ID
			}
			return
		}
	}
}

// SetCurrentPageID выбирает текущую страницу без записи в историю.
func (s *DemoStore) SetCurrentPageID(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPageID = pageID
}

// NavigateToPage переходит на страницу: текущая страница (если была) попадает
// в историю, изменения состояния (если переданы) вливаются в общее состояние.
func (s *DemoStore) NavigateToPage(pageID string, stateChanges map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentPageID != "" {
		s.navHistory = append(s.navHistory, s.currentPageID)
	}
	for k, v := range stateChanges {
		s.sharedState[k] = v
	}
	s.currentPageID = pageID
}

// GoBack возвращается на предыдущую страницу из истории.
// При пустой истории ничего не делает.
func (s *DemoStore) GoBack() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.navHistory) == 0 {
		return
	}
	last := len(s.navHistory) - 1
	s.currentPageID = s.navHistory[last]
	s.navHistory = s.navHistory[:last]
}

// UpdateSharedState вливает изменения в общее состояние.
// Полная замена состояния происходит только при загрузке проекта.
func (s *DemoStore) UpdateSharedState(changes map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range changes {
		s.sharedState[k] = v
	}
}

// BeginGeneration сбрасывает прогресс и ошибку перед новой сессией генерации.
func (s *DemoStore) BeginGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generating = true
	s.sessionErr = ""
	s.progress = domain.GenerationProgress{}
	s.pageBuffers = make(map[string]string)
}

// EndGeneration помечает сессию генерации завершенной.
func (s *DemoStore) EndGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
}

// SetGenerationTotals записывает общее количество страниц из события init.
func (s *DemoStore) SetGenerationTotals(totalPages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.TotalPages = totalPages
	s.progress.CompletedPages = 0
	s.progress.CurrentPageID = ""
	s.progress.CurrentPageName = ""
}

// SetCurrentGeneratingPage обновляет указатель прогресса на текущую страницу.
func (s *DemoStore) SetCurrentGeneratingPage(pageID, pageName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.CurrentPageID = pageID
	s.progress.CurrentPageName = pageName
}

// AppendPageCode добавляет чанк кода в транзитный буфер страницы.
func (s *DemoStore) AppendPageCode(pageID, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageBuffers[pageID] += chunk
}

// CompletePage фиксирует итоговый код страницы. Побеждает финальный payload
// сервера, а не конкатенация чанков: буфер страницы отбрасывается.
// Счетчик завершенных страниц увеличивается ровно на единицу.
func (s *DemoStore) CompletePage(pageID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page := s.findPage(pageID); page != nil {
		page.Code = code
		page.Status = domain.PageStatusCompleted
		page.Error = ""
	}
	delete(s.pageBuffers, pageID)
	s.progress.CompletedPages++
}

// SetPageCode заменяет сохраненный код страницы без изменения статуса
// и прогресса. Используется при ручном редактировании кода.
func (s *DemoStore) SetPageCode(pageID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.findPage(pageID)
	if page == nil {
		return
	}
	page.Code = code
	delete(s.pageBuffers, pageID)
}

// SetPageStatus переводит страницу в новый статус.
// Переход error -> generating (повтор) очищает сообщение об ошибке страницы.
func (s *DemoStore) SetPageStatus(pageID string, status domain.PageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.findPage(pageID)
	if page == nil {
		s.logger.Debug("SetPageStatus for unknown page", zap.String("pageID", pageID))
		return
	}
	if page.Status == domain.PageStatusError && status == domain.PageStatusGenerating {
		page.Error = ""
	}
	page.Status = status
}

// SetPageError помечает страницу ошибочной и сохраняет сообщение.
// Ошибка одной страницы не затрагивает соседние страницы и сессию в целом.
func (s *DemoStore) SetPageError(pageID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page := s.findPage(pageID); page != nil {
		page.Status = domain.PageStatusError
		page.Error = message
	}
}

// SetError записывает ошибку уровня сессии (баннер для пользователя).
func (s *DemoStore) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionErr = message
}

// ClearError сбрасывает ошибку уровня сессии.
func (s *DemoStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionErr = ""
}

// Reset возвращает хранилище в начальное состояние.
func (s *DemoStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.project = nil
	s.platforms = nil
	s.currentPlatform = ""
	s.currentPageID = ""
	s.sharedState = make(map[string]interface{})
	s.navHistory = nil
	s.generating = false
	s.progress = domain.GenerationProgress{}
	s.pageBuffers = make(map[string]string)
	s.sessionErr = ""
}

// --- Чтение состояния ---

// PageCode возвращает код страницы для отображения: сохраненный код,
// затем транзитный буфер генерации, затем пустая строка.
func (s *DemoStore) PageCode(pageID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if page := s.findPage(pageID); page != nil && page.Code != "" {
		return page.Code
	}
	return s.pageBuffers[pageID]
}

// CurrentPage возвращает копию текущей страницы или nil, если ничего не выбрано.
func (s *DemoStore) CurrentPage() *domain.DemoPage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentPlatform == "" || s.currentPageID == "" {
		return nil
	}
	for i := range s.platforms {
		if s.platforms[i].Type != s.currentPlatform {
			continue
		}
		if page := s.platforms[i].PageByID(s.currentPageID); page != nil {
			cp := *page
			return &cp
		}
	}
	return nil
}

// PageByID возвращает копию страницы по идентификатору из любой платформы.
func (s *DemoStore) PageByID(pageID string) *domain.DemoPage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if page := s.findPage(pageID); page != nil {
		cp := *page
		return &cp
	}
	return nil
}

// Platforms возвращает копию списка платформ.
func (s *DemoStore) Platforms() []domain.DemoPlatform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.platformsCopy()
}

// CurrentPlatform возвращает тип активной платформы ("" — не выбрана).
func (s *DemoStore) CurrentPlatform() domain.PlatformType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPlatform
}

// CurrentPageID возвращает идентификатор текущей страницы.
func (s *DemoStore) CurrentPageID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPageID
}

// SharedState возвращает копию общего состояния.
func (s *DemoStore) SharedState() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CopySharedState(s.sharedState)
}

// NavigationHistory возвращает копию истории навигации.
func (s *DemoStore) NavigationHistory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.navHistory))
	copy(out, s.navHistory)
	return out
}

// IsGenerating сообщает, идет ли сейчас сессия массовой генерации.
func (s *DemoStore) IsGenerating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generating
}

// Progress возвращает текущий прогресс генерации.
func (s *DemoStore) Progress() domain.GenerationProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Error возвращает текст ошибки уровня сессии ("" — ошибки нет).
func (s *DemoStore) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionErr
}

// HasPageBuffer сообщает, есть ли транзитный буфер для страницы.
func (s *DemoStore) HasPageBuffer(pageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pageBuffers[pageID]
	return ok
}

// Stats возвращает количество страниц по статусам.
func (s *DemoStore) Stats() domain.PageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.PageStats
	for i := range s.platforms {
		for j := range s.platforms[i].Pages {
			stats.Total++
			switch s.platforms[i].Pages[j].Status {
			case domain.PageStatusGenerating:
				stats.Generating++
			case domain.PageStatusCompleted:
				stats.Completed++
			case domain.PageStatusError:
				stats.Error++
			case domain.PageStatusSkipped:
				stats.Skipped++
			default:
				stats.Pending++
			}
		}
	}
	return stats
}

// Project возвращает копию текущего демо-проекта или nil.
func (s *DemoStore) Project() *domain.DemoProject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.project == nil {
		return nil
	}
	cp := *s.project
	cp.Platforms = s.platformsCopy()
	cp.SharedState = domain.CopySharedState(s.sharedState)
	return &cp
}

// platformsCopy копирует платформы. Вызывается под блокировкой.
func (s *DemoStore) platformsCopy() []domain.DemoPlatform {
	out := make([]domain.DemoPlatform, len(s.platforms))
	copy(out, s.platforms)
	for i := range out {
		pages := make([]domain.DemoPage, len(s.platforms[i].Pages))
		copy(pages, s.platforms[i].Pages)
		out[i].Pages = pages
	}
	return out
}

// findPage ищет страницу по ID во всех платформах. Вызывается под блокировкой.
func (s *DemoStore) findPage(pageID string) *domain.DemoPage {
	for i := range s.platforms {
		if page := s.platforms[i].PageByID(pageID); page != nil {
			return page
		}
	}
	return nil
}
