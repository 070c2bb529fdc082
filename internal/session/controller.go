package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pmstation-client/internal/domain"
	"pmstation-client/internal/sse"
	"pmstation-client/internal/store"
)

// Backend — поверхность бэкенда PMStation, нужная контроллеру сессий.
type Backend interface {
	GenerateStream(ctx context.Context, projectID string) (io.ReadCloser, error)
	ModifyStream(ctx context.Context, projectID, pageID, instruction string) (io.ReadCloser, error)
	RegenerateStream(ctx context.Context, projectID, pageID string) (io.ReadCloser, error)
}

// StageGate проверяет, разрешен ли запуск генерации
// (предшествующий этап воркфлоу должен быть подтвержден).
type StageGate interface {
	GenerationAllowed(ctx context.Context, projectID string) error
}

// Controller управляет сессиями генерации демо: одной массовой сессией
// и независимыми сессиями модификации отдельных страниц. Каждая сессия
// помечена собственным идентификатором; события устаревшей сессии
// отбрасываются и не мутируют состояние.
type Controller struct {
	projectID string
	backend   Backend
	gate      StageGate
	store     *store.DemoStore
	logger    *zap.Logger

	mu      sync.Mutex
	bulk    *activeSession
	modify  map[string]*activeSession // ключ — pageID
	pending sync.WaitGroup
}

// activeSession — одна запущенная стриминговая сессия.
type activeSession struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// NewController создает контроллер сессий для проекта.
func NewController(projectID string, backend Backend, gate StageGate, st *store.DemoStore, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		projectID: projectID,
		backend:   backend,
		gate:      gate,
		store:     st,
		logger:    logger.Named("SessionController"),
		modify:    make(map[string]*activeSession),
	}
}

// StartGeneration запускает новую массовую сессию генерации.
// Предыдущая сессия (если была) отменяется до сброса прогресса, поэтому ее
// запоздавшие события уже не смогут перезаписать свежее состояние.
func (c *Controller) StartGeneration(ctx context.Context) error {
	if c.gate != nil {
		if err := c.gate.GenerationAllowed(ctx, c.projectID); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.bulk != nil {
		c.bulk.cancel()
		c.bulk = nil
	}
	sessionCtx, cancel := context.WithCancel(context.Background())
	sess := &activeSession{id: uuid.New(), cancel: cancel}
	c.bulk = sess
	c.mu.Unlock()

	c.store.BeginGeneration()
	c.store.ClearError()

	log := c.logger.With(zap.String("sessionID", sess.id.String()))
	log.Info("Starting demo generation session")

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer cancel()
		c.runBulk(sessionCtx, sess, log)
	}()
	return nil
}

// StopGeneration отменяет текущую массовую сессию.
// Безопасен при отсутствии активной сессии. Отмена не считается ошибкой
// и не попадает в пользовательское состояние ошибки.
func (c *Controller) StopGeneration() {
	c.mu.Lock()
	if c.bulk != nil {
		c.bulk.cancel()
		c.bulk = nil
	}
	c.mu.Unlock()

	c.store.EndGeneration()
}

// runBulk открывает поток массовой генерации и прокачивает его события.
func (c *Controller) runBulk(ctx context.Context, sess *activeSession, log *zap.Logger) {
	body, err := c.backend.GenerateStream(ctx, c.projectID)
	if err != nil {
		c.failBulk(sess, err, log)
		return
	}
	defer body.Close()

	reader := sse.NewReader(body, log)
	for {
		ev, err := reader.Next()
		if err != nil {
			if errors.Is(err, sse.ErrStreamClosed) {
				// Поток иссяк без события complete: просто завершаем сессию
				c.finishBulk(sess, log)
				return
			}
			c.failBulk(sess, err, log)
			return
		}
		if done := c.dispatchBulk(sess, ev, log); done {
			return
		}
	}
}

// dispatchBulk применяет одно событие массовой сессии.
// Возвращает true, когда сессия закончилась.
func (c *Controller) dispatchBulk(sess *activeSession, ev sse.Event, log *zap.Logger) bool {
	finished := false
	applied := c.applyIfCurrent(sess, func() {
		switch ev.Type {
		case eventInit:
			var p initPayload
			if err := json.Unmarshal(ev.Data, &p); err != nil {
				log.Warn("Failed to decode init payload", zap.Error(err))
				return
			}
			c.store.SetGenerationTotals(p.TotalPages)
			c.store.SetPlatforms(p.Platforms)
			if len(p.SharedState) > 0 {
				c.store.UpdateSharedState(p.SharedState)
			}

		case eventPageStart:
			var p pagePayload
			if err := json.Unmarshal(ev.Data, &p); err != nil {
				log.Warn("Failed to decode page_start payload", zap.Error(err))
				return
			}
			c.store.SetPageStatus(p.PageID, domain.PageStatusGenerating)
			c.store.SetCurrentGeneratingPage(p.PageID, p.PageName)

		case eventPageProgress:
			var p pagePayload
			if err := json.Unmarshal(ev.Data, &p); err != nil {
				return
			}
			c.store.AppendPageCode(p.PageID, p.Chunk)

		case eventPageComplete:
			var p pagePayload
			if err := json.Unmarshal(ev.Data, &p); err != nil {
				log.Warn("Failed to decode page_complete payload", zap.Error(err))
				return
			}
			c.store.CompletePage(p.PageID, p.Code)

		case eventPageError:
			var p pagePayload
			if err := json.Unmarshal(ev.Data, &p); err != nil {
				return
			}
			c.store.SetPageError(p.PageID, p.Error)
			log.Warn("Page generation failed", zap.String("pageID", p.PageID), zap.String("error", p.Error))

		case eventComplete:
			var p completePayload
			if err := json.Unmarshal(ev.Data, &p); err == nil && len(p.DemoProject) > 0 {
				if err := c.store.SetDemoProject(p.DemoProject); err != nil {
					log.Warn("Failed to apply final demo project", zap.Error(err))
				}
			}
			c.store.EndGeneration()
			finished = true
			log.Info("Demo generation session completed")

		case eventError:
			var p errorPayload
			_ = json.Unmarshal(ev.Data, &p)
			c.store.SetError(p.Message)
			c.store.EndGeneration()
			finished = true
			log.Warn("Demo generation session failed", zap.String("message", p.Message))

		default:
			log.Debug("Ignoring unknown stream event", zap.String("event", ev.Type))
		}
	})

	if !applied {
		// Сессия была отменена или вытеснена: событие отброшено
		return true
	}
	if finished {
		c.clearBulk(sess)
	}
	return finished
}

// finishBulk завершает сессию после штатного конца потока.
func (c *Controller) finishBulk(sess *activeSession, log *zap.Logger) {
	if c.applyIfCurrent(sess, func() {
		c.store.EndGeneration()
	}) {
		c.clearBulk(sess)
		log.Info("Demo generation stream ended")
	}
}

// failBulk фиксирует транспортную ошибку сессии.
// Отмена контекста ошибкой не считается.
func (c *Controller) failBulk(sess *activeSession, err error, log *zap.Logger) {
	if errors.Is(err, context.Canceled) {
		log.Debug("Demo generation session aborted")
		return
	}
	if c.applyIfCurrent(sess, func() {
		c.store.SetError(err.Error())
		c.store.EndGeneration()
	}) {
		c.clearBulk(sess)
		log.Error("Demo generation session failed", zap.Error(err))
	}
}

// applyIfCurrent выполняет мутацию, только если сессия все еще текущая.
// Проверка и применение происходят под общей блокировкой, поэтому событие,
// пришедшее после StopGeneration или вытеснения, состояние не изменит.
func (c *Controller) applyIfCurrent(sess *activeSession, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bulk == nil || c.bulk.id != sess.id {
		return false
	}
	fn()
	return true
}

// clearBulk снимает ссылку на завершившуюся сессию.
func (c *Controller) clearBulk(sess *activeSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bulk != nil && c.bulk.id == sess.id {
		c.bulk = nil
	}
}

// IsGenerating сообщает, активна ли массовая сессия.
func (c *Controller) IsGenerating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulk != nil
}

// ModifyPage запускает независимую сессию модификации одной страницы.
// Сессии разных страниц не делят буферы и не мешают друг другу; повторный
// запуск для той же страницы вытесняет предыдущую сессию этой страницы.
func (c *Controller) ModifyPage(ctx context.Context, pageID, instruction string) error {
	if instruction == "" {
		return fmt.Errorf("modify instruction cannot be empty")
	}
	open := func(streamCtx context.Context) (io.ReadCloser, error) {
		return c.backend.ModifyStream(streamCtx, c.projectID, pageID, instruction)
	}
	return c.startPageSession(ctx, pageID, "modify", open)
}

// RegeneratePage запускает сессию перегенерации одной страницы.
// Страница в статусе error при этом возвращается в generating.
func (c *Controller) RegeneratePage(ctx context.Context, pageID string) error {
	open := func(streamCtx context.Context) (io.ReadCloser, error) {
		return c.backend.RegenerateStream(streamCtx, c.projectID, pageID)
	}
	return c.startPageSession(ctx, pageID, "regenerate", open)
}

// startPageSession — общий запуск постраничной стриминговой сессии.
func (c *Controller) startPageSession(_ context.Context, pageID, kind string, open func(context.Context) (io.ReadCloser, error)) error {
	c.mu.Lock()
	if prev, ok := c.modify[pageID]; ok {
		prev.cancel()
	}
	sessionCtx, cancel := context.WithCancel(context.Background())
	sess := &activeSession{id: uuid.New(), cancel: cancel}
	c.modify[pageID] = sess
	c.mu.Unlock()

	c.store.SetPageStatus(pageID, domain.PageStatusGenerating)

	log := c.logger.With(
		zap.String("sessionID", sess.id.String()),
		zap.String("pageID", pageID),
		zap.String("kind", kind))
	log.Info("Starting page session")

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer cancel()
		c.runPageSession(sessionCtx, sess, pageID, open, log)
	}()
	return nil
}

// runPageSession прокачивает события постраничной сессии (modify/regenerate).
func (c *Controller) runPageSession(ctx context.Context, sess *activeSession, pageID string, open func(context.Context) (io.ReadCloser, error), log *zap.Logger) {
	defer c.clearPageSession(pageID, sess)

	body, err := open(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.applyIfPageCurrent(pageID, sess, func() {
			c.store.SetPageError(pageID, err.Error())
		})
		log.Error("Page session failed to open stream", zap.Error(err))
		return
	}
	defer body.Close()

	reader := sse.NewReader(body, log)
	for {
		ev, err := reader.Next()
		if err != nil {
			if !errors.Is(err, sse.ErrStreamClosed) && !errors.Is(err, context.Canceled) {
				c.applyIfPageCurrent(pageID, sess, func() {
					c.store.SetPageError(pageID, err.Error())
				})
				log.Error("Page session stream failed", zap.Error(err))
			}
			return
		}

		done := false
		c.applyIfPageCurrent(pageID, sess, func() {
			switch ev.Type {
			case eventModifyStart, eventPageStart:
				c.store.SetPageStatus(pageID, domain.PageStatusGenerating)

			case eventModifyProgress, eventPageProgress:
				var p pagePayload
				if json.Unmarshal(ev.Data, &p) == nil {
					c.store.AppendPageCode(pageID, p.Chunk)
				}

			case eventModifyComplete, eventPageComplete:
				var p pagePayload
				if err := json.Unmarshal(ev.Data, &p); err != nil {
					log.Warn("Failed to decode completion payload", zap.Error(err))
					return
				}
				c.store.CompletePage(pageID, p.Code)
				done = true
				log.Info("Page session completed")

			case eventPageError, eventError:
				var pe pagePayload
				var se errorPayload
				message := ""
				if json.Unmarshal(ev.Data, &pe) == nil && pe.Error != "" {
					message = pe.Error
				} else if json.Unmarshal(ev.Data, &se) == nil {
					message = se.Message
				}
				// Ошибка постраничной сессии локальна для страницы
				c.store.SetPageError(pageID, message)
				done = true
				log.Warn("Page session failed", zap.String("message", message))

			default:
				log.Debug("Ignoring unknown stream event", zap.String("event", ev.Type))
			}
		})
		if done {
			return
		}
	}
}

// applyIfPageCurrent применяет мутацию, только если сессия страницы текущая.
func (c *Controller) applyIfPageCurrent(pageID string, sess *activeSession, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.modify[pageID]
	if !ok || cur.id != sess.id {
		return false
	}
	fn()
	return true
}

// clearPageSession снимает завершившуюся сессию страницы.
func (c *Controller) clearPageSession(pageID string, sess *activeSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.modify[pageID]; ok && cur.id == sess.id {
		delete(c.modify, pageID)
	}
}

// IsModifying сообщает, идет ли сейчас сессия модификации страницы.
func (c *Controller) IsModifying(pageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.modify[pageID]
	return ok
}

// Shutdown отменяет все активные сессии и дожидается их горутин.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.bulk != nil {
		c.bulk.cancel()
		c.bulk = nil
	}
	for _, sess := range c.modify {
		sess.cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("timed out waiting for generation sessions to finish")
	}
}
