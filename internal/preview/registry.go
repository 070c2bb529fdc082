package preview

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDocumentNotFound возвращается, когда документ по хэндлу отсутствует
// или уже был выдан.
var ErrDocumentNotFound = errors.New("preview document not found")

type document struct {
	html    string
	created time.Time
}

// Registry хранит опубликованные документы предпросмотра по одноразовым
// хэндлам. Каждый документ выдается ровно один раз: повторный запрос по тому
// же хэндлу получает ErrDocumentNotFound. Невостребованные документы
// вычищаются по возрасту.
type Registry struct {
	mu     sync.Mutex
	docs   map[string]document
	logger *zap.Logger
}

// NewRegistry создает реестр документов предпросмотра.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		docs:   make(map[string]document),
		logger: logger.Named("PreviewRegistry"),
	}
}

// Publish регистрирует документ и возвращает его одноразовый хэндл.
// Старый документ не отзывается автоматически: хэндлы независимы,
// а устаревшие записи убирает CleanupOlderThan.
func (r *Registry) Publish(html string) string {
	handle := uuid.NewString()

	r.mu.Lock()
	r.docs[handle] = document{html: html, created: time.Now()}
	total := len(r.docs)
	r.mu.Unlock()

	r.logger.Debug("Published preview document", zap.String("handle", handle), zap.Int("total", total))
	return handle
}

// Take выдает документ по хэндлу и немедленно отзывает его.
func (r *Registry) Take(handle string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[handle]
	if !ok {
		return "", ErrDocumentNotFound
	}
	delete(r.docs, handle)
	return doc.html, nil
}

// Revoke удаляет документ, не выдавая его. Отсутствующий хэндл — не ошибка.
func (r *Registry) Revoke(handle string) {
	r.mu.Lock()
	delete(r.docs, handle)
	r.mu.Unlock()
}

// CleanupOlderThan удаляет невостребованные документы старше maxAge
// и возвращает число удаленных.
func (r *Registry) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	removed := 0
	for handle, doc := range r.docs {
		if doc.created.Before(cutoff) {
			delete(r.docs, handle)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Info("Cleaned up stale preview documents", zap.Int("removed", removed))
	}
	return removed
}

// StartCleanup запускает фоновую чистку с заданным интервалом.
// Возвращенная функция останавливает ее.
func (r *Registry) StartCleanup(interval, maxAge time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.CleanupOlderThan(maxAge)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
