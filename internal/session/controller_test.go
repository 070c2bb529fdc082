package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmstation-client/internal/domain"
	"pmstation-client/internal/store"
)

// fakeBackend выдает заранее подготовленные SSE-потоки.
type fakeBackend struct {
	mu       sync.Mutex
	streams  []io.ReadCloser
	openErr  error
	requests int
}

func (b *fakeBackend) next() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	if b.openErr != nil {
		return nil, b.openErr
	}
	if len(b.streams) == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	s := b.streams[0]
	b.streams = b.streams[1:]
	return s, nil
}

func (b *fakeBackend) GenerateStream(ctx context.Context, projectID string) (io.ReadCloser, error) {
	return b.next()
}

func (b *fakeBackend) ModifyStream(ctx context.Context, projectID, pageID, instruction string) (io.ReadCloser, error) {
	return b.next()
}

func (b *fakeBackend) RegenerateStream(ctx context.Context, projectID, pageID string) (io.ReadCloser, error) {
	return b.next()
}

type deniedGate struct{}

func (deniedGate) GenerationAllowed(ctx context.Context, projectID string) error {
	return errors.New("features stage not confirmed")
}

func sseEvent(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

const initEvent = `{"total_pages": 2, "project_name": "Shop", "shared_state": {"user": "alex"}, "platforms": [{
	"type": "pc", "subtype": "web",
	"pages": [
		{"id": "home", "name": "Home", "path": "/", "order": 0},
		{"id": "about", "name": "About", "path": "/about", "order": 1}
	],
	"navigation": {"type": "sidebar", "items": ["home", "about"]}
}]}`

func bulkStream() io.ReadCloser {
	var b strings.Builder
	b.WriteString(sseEvent("init", strings.ReplaceAll(initEvent, "\n", " ")))
	b.WriteString(sseEvent("page_start", `{"platform": "pc", "page_id": "home", "page_name": "Home"}`))
	b.WriteString(sseEvent("page_progress", `{"page_id": "home", "chunk": "function "}`))
	b.WriteString(sseEvent("page_progress", `{"page_id": "home", "chunk": "Home() {}"}`))
	b.WriteString(sseEvent("page_complete", `{"page_id": "home", "code": "function Home() { return null; }"}`))
	b.WriteString(sseEvent("page_start", `{"platform": "pc", "page_id": "about", "page_name": "About"}`))
	b.WriteString(sseEvent("page_error", `{"page_id": "about", "error": "model timeout"}`))
	b.WriteString(sseEvent("complete", `{}`))
	return io.NopCloser(strings.NewReader(b.String()))
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	assert.Eventually(t, func() bool { return !c.IsGenerating() }, 2*time.Second, 10*time.Millisecond)
}

func TestController_BulkGeneration(t *testing.T) {
	st := store.New(nil)
	backend := &fakeBackend{streams: []io.ReadCloser{bulkStream()}}
	c := NewController("proj-1", backend, nil, st, nil)

	require.NoError(t, c.StartGeneration(context.Background()))
	waitIdle(t, c)

	// Успешная страница: побеждает финальный payload, буфер отброшен
	home := st.PageByID("home")
	require.NotNil(t, home)
	assert.Equal(t, domain.PageStatusCompleted, home.Status)
	assert.Equal(t, "function Home() { return null; }", home.Code)
	assert.False(t, st.HasPageBuffer("home"))

	// Ошибочная страница не задевает соседнюю
	about := st.PageByID("about")
	require.NotNil(t, about)
	assert.Equal(t, domain.PageStatusError, about.Status)
	assert.Equal(t, "model timeout", about.Error)

	progress := st.Progress()
	assert.Equal(t, 2, progress.TotalPages)
	assert.Equal(t, 1, progress.CompletedPages)
	assert.Equal(t, "alex", st.SharedState()["user"])
	assert.False(t, st.IsGenerating())
	assert.Empty(t, st.Error())
}

func TestController_SessionError(t *testing.T) {
	st := store.New(nil)
	stream := sseEvent("init", strings.ReplaceAll(initEvent, "\n", " ")) +
		sseEvent("error", `{"message": "quota exceeded"}`)
	backend := &fakeBackend{streams: []io.ReadCloser{io.NopCloser(strings.NewReader(stream))}}
	c := NewController("proj-1", backend, nil, st, nil)

	require.NoError(t, c.StartGeneration(context.Background()))
	waitIdle(t, c)

	assert.Equal(t, "quota exceeded", st.Error())
	assert.False(t, st.IsGenerating())
}

func TestController_GateDenied(t *testing.T) {
	st := store.New(nil)
	backend := &fakeBackend{}
	c := NewController("proj-1", backend, deniedGate{}, st, nil)

	err := c.StartGeneration(context.Background())
	assert.EqualError(t, err, "features stage not confirmed")
	assert.False(t, c.IsGenerating())
	assert.Zero(t, backend.requests)
}

func TestController_StopDiscardsLateEvents(t *testing.T) {
	st := store.New(nil)

	pr, pw := io.Pipe()
	backend := &fakeBackend{streams: []io.ReadCloser{pr}}
	c := NewController("proj-1", backend, nil, st, nil)

	require.NoError(t, c.StartGeneration(context.Background()))

	// Скармливаем init и дожидаемся, пока контроллер его применит
	_, err := pw.Write([]byte(sseEvent("init", strings.ReplaceAll(initEvent, "\n", " "))))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return st.Progress().TotalPages == 2 }, 2*time.Second, 10*time.Millisecond)

	c.StopGeneration()

	// Событие, дочитанное из сокета после остановки, не должно мутировать состояние
	_, err = pw.Write([]byte(sseEvent("page_complete", `{"page_id": "home", "code": "stale code"}`)))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, c.Shutdown(context.Background()))

	home := st.PageByID("home")
	require.NotNil(t, home)
	assert.NotEqual(t, "stale code", home.Code)
	assert.NotEqual(t, domain.PageStatusCompleted, home.Status)
	assert.Equal(t, 0, st.Progress().CompletedPages)
}

func TestController_RestartSupersedesPreviousSession(t *testing.T) {
	st := store.New(nil)

	pr, pw := io.Pipe()
	backend := &fakeBackend{streams: []io.ReadCloser{pr, bulkStream()}}
	c := NewController("proj-1", backend, nil, st, nil)

	require.NoError(t, c.StartGeneration(context.Background()))
	_, err := pw.Write([]byte(sseEvent("init", strings.ReplaceAll(initEvent, "\n", " "))))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return st.Progress().TotalPages == 2 }, 2*time.Second, 10*time.Millisecond)

	// Перезапуск вытесняет первую сессию
	require.NoError(t, c.StartGeneration(context.Background()))

	// Запоздавшее событие первой сессии отбрасывается
	_, _ = pw.Write([]byte(sseEvent("page_complete", `{"page_id": "home", "code": "stale code"}`)))
	_ = pw.Close()

	waitIdle(t, c)
	require.NoError(t, c.Shutdown(context.Background()))

	home := st.PageByID("home")
	require.NotNil(t, home)
	assert.Equal(t, "function Home() { return null; }", home.Code)
}

func TestController_ModifyPage(t *testing.T) {
	st := store.New(nil)
	st.SetPlatforms([]domain.DemoPlatform{{
		Type: domain.PlatformPC,
		Pages: []domain.DemoPage{
			{ID: "home", Name: "Home", Code: "function Home() {}", Status: domain.PageStatusCompleted},
		},
	}})

	stream := sseEvent("modify_start", `{"page_id": "home"}`) +
		sseEvent("modify_progress", `{"page_id": "home", "chunk": "function Home"}`) +
		sseEvent("modify_complete", `{"page_id": "home", "code": "function Home() { return <div/>; }"}`)
	backend := &fakeBackend{streams: []io.ReadCloser{io.NopCloser(strings.NewReader(stream))}}
	c := NewController("proj-1", backend, nil, st, nil)

	require.NoError(t, c.ModifyPage(context.Background(), "home", "add a div"))
	assert.Eventually(t, func() bool { return !c.IsModifying("home") }, 2*time.Second, 10*time.Millisecond)

	home := st.PageByID("home")
	assert.Equal(t, "function Home() { return <div/>; }", home.Code)
	assert.Equal(t, domain.PageStatusCompleted, home.Status)
}

func TestController_ModifyRequiresInstruction(t *testing.T) {
	c := NewController("proj-1", &fakeBackend{}, nil, store.New(nil), nil)
	assert.Error(t, c.ModifyPage(context.Background(), "home", ""))
}

func TestController_RegenerateFailure(t *testing.T) {
	st := store.New(nil)
	st.SetPlatforms([]domain.DemoPlatform{{
		Type: domain.PlatformPC,
		Pages: []domain.DemoPage{
			{ID: "home", Name: "Home", Status: domain.PageStatusError, Error: "old error"},
		},
	}})

	stream := sseEvent("page_start", `{"page_id": "home"}`) +
		sseEvent("page_error", `{"page_id": "home", "error": "still failing"}`)
	backend := &fakeBackend{streams: []io.ReadCloser{io.NopCloser(strings.NewReader(stream))}}
	c := NewController("proj-1", backend, nil, st, nil)

	require.NoError(t, c.RegeneratePage(context.Background(), "home"))
	assert.Eventually(t, func() bool { return !c.IsModifying("home") }, 2*time.Second, 10*time.Millisecond)

	home := st.PageByID("home")
	assert.Equal(t, domain.PageStatusError, home.Status)
	assert.Equal(t, "still failing", home.Error)
	// Ошибка страницы не эскалирует в ошибку сессии
	assert.Empty(t, st.Error())
}

func TestController_TransportErrorSetsSessionError(t *testing.T) {
	st := store.New(nil)
	backend := &fakeBackend{openErr: errors.New("connection refused")}
	c := NewController("proj-1", backend, nil, st, nil)

	require.NoError(t, c.StartGeneration(context.Background()))
	waitIdle(t, c)

	assert.Equal(t, "connection refused", st.Error())
}
