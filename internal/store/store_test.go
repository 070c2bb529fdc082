package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmstation-client/internal/domain"
)

func testPlatforms() []domain.DemoPlatform {
	return []domain.DemoPlatform{
		{
			Type:    domain.PlatformPC,
			Subtype: "web",
			Pages: []domain.DemoPage{
				{ID: "catalog", Name: "Catalog", Order: 1},
				{ID: "home", Name: "Home", Order: 0},
			},
			Navigation: domain.PlatformNavigation{Type: "sidebar", Items: []string{"home", "catalog"}},
		},
		{
			Type:    domain.PlatformMobile,
			Subtype: "ios",
			Pages: []domain.DemoPage{
				{ID: "m-home", Name: "Home", Order: 0},
			},
			Navigation: domain.PlatformNavigation{Type: "bottom", Items: []string{"m-home"}},
		},
	}
}

func TestDemoStore_SetPlatforms(t *testing.T) {
	s := New(nil)
	s.SetPlatforms(testPlatforms())

	t.Run("defaults missing statuses to pending", func(t *testing.T) {
		page := s.PageByID("home")
		require.NotNil(t, page)
		assert.Equal(t, domain.PageStatusPending, page.Status)
	})

	t.Run("selects first platform and min-order page", func(t *testing.T) {
		assert.Equal(t, domain.PlatformPC, s.CurrentPlatform())
		// Страница с минимальным Order, а не первая в срезе
		assert.Equal(t, "home", s.CurrentPageID())
	})
}

func TestDemoStore_CodeBuffering(t *testing.T) {
	s := New(nil)
	s.SetPlatforms(testPlatforms())

	t.Run("chunks accumulate in transient buffer", func(t *testing.T) {
		s.AppendPageCode("home", "function ")
		s.AppendPageCode("home", "Home() {}")

		assert.Equal(t, "function Home() {}", s.PageCode("home"))
		assert.True(t, s.HasPageBuffer("home"))
		// Буфер не попадает в поле Code страницы
		page := s.PageByID("home")
		assert.Empty(t, page.Code)
	})

	t.Run("final payload wins over concatenated chunks", func(t *testing.T) {
		s.CompletePage("home", "function Home() { return null; }")

		page := s.PageByID("home")
		assert.Equal(t, "function Home() { return null; }", page.Code)
		assert.Equal(t, domain.PageStatusCompleted, page.Status)
		assert.False(t, s.HasPageBuffer("home"))
		assert.Equal(t, "function Home() { return null; }", s.PageCode("home"))
	})

	t.Run("complete increments progress exactly once", func(t *testing.T) {
		before := s.Progress().CompletedPages
		s.CompletePage("catalog", "function Catalog() {}")
		assert.Equal(t, before+1, s.Progress().CompletedPages)
	})

	t.Run("persisted code takes priority over buffer", func(t *testing.T) {
		s.AppendPageCode("catalog", "stale chunk")
		assert.Equal(t, "function Catalog() {}", s.PageCode("catalog"))
	})

	t.Run("unknown page yields empty code", func(t *testing.T) {
		assert.Empty(t, s.PageCode("missing"))
	})
}

func TestDemoStore_PageStateMachine(t *testing.T) {
	s := New(nil)
	s.SetPlatforms(testPlatforms())

	t.Run("error keeps message and does not touch siblings", func(t *testing.T) {
		s.SetPageError("home", "model timeout")

		page := s.PageByID("home")
		assert.Equal(t, domain.PageStatusError, page.Status)
		assert.Equal(t, "model timeout", page.Error)

		other := s.PageByID("catalog")
		assert.NotEqual(t, domain.PageStatusError, other.Status)
	})

	t.Run("retry clears error message", func(t *testing.T) {
		s.SetPageStatus("home", domain.PageStatusGenerating)

		page := s.PageByID("home")
		assert.Equal(t, domain.PageStatusGenerating, page.Status)
		assert.Empty(t, page.Error)
	})

	t.Run("skip from error state", func(t *testing.T) {
		s.SetPageError("catalog", "boom")
		s.SetPageStatus("catalog", domain.PageStatusSkipped)
		assert.Equal(t, domain.PageStatusSkipped, s.PageByID("catalog").Status)
	})

	t.Run("stats count pages per status", func(t *testing.T) {
		stats := s.Stats()
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 1, stats.Generating)
		assert.Equal(t, 1, stats.Skipped)
		assert.Equal(t, 1, stats.Pending)
	})
}

func TestDemoStore_Navigation(t *testing.T) {
	s := New(nil)
	s.SetPlatforms(testPlatforms())

	t.Run("navigate pushes history and merges state", func(t *testing.T) {
		s.NavigateToPage("catalog", map[string]interface{}{"filter": "new"})

		assert.Equal(t, "catalog", s.CurrentPageID())
		assert.Equal(t, []string{"home"}, s.NavigationHistory())
		assert.Equal(t, "new", s.SharedState()["filter"])
	})

	t.Run("go back pops history", func(t *testing.T) {
		s.GoBack()
		assert.Equal(t, "home", s.CurrentPageID())
		assert.Empty(t, s.NavigationHistory())
	})

	t.Run("go back on empty history is a no-op", func(t *testing.T) {
		s.GoBack()
		assert.Equal(t, "home", s.CurrentPageID())
	})

	t.Run("platform switch clears history and selects first page", func(t *testing.T) {
		s.NavigateToPage("catalog", nil)
		require.NotEmpty(t, s.NavigationHistory())

		s.SetCurrentPlatform(domain.PlatformMobile)

		assert.Equal(t, domain.PlatformMobile, s.CurrentPlatform())
		assert.Equal(t, "m-home", s.CurrentPageID())
		assert.Empty(t, s.NavigationHistory())
		// Общее состояние переживает переключение платформы
		assert.Equal(t, "new", s.SharedState()["filter"])
	})
}

func TestDemoStore_SessionLifecycle(t *testing.T) {
	s := New(nil)
	s.SetPlatforms(testPlatforms())

	s.BeginGeneration()
	assert.True(t, s.IsGenerating())

	s.SetGenerationTotals(3)
	s.SetCurrentGeneratingPage("home", "Home")

	progress := s.Progress()
	assert.Equal(t, 3, progress.TotalPages)
	assert.Equal(t, "home", progress.CurrentPageID)
	assert.Equal(t, "Home", progress.CurrentPageName)

	s.SetError("stream interrupted")
	assert.Equal(t, "stream interrupted", s.Error())

	s.EndGeneration()
	assert.False(t, s.IsGenerating())

	// Новая сессия начинается с чистого листа
	s.BeginGeneration()
	s.ClearError()
	s.SetGenerationTotals(3)
	assert.Empty(t, s.Error())
	assert.Equal(t, 0, s.Progress().CompletedPages)
}

func TestDemoStore_SetDemoProject(t *testing.T) {
	s := New(nil)
	raw := []byte(`{
		"project_name": "Shop",
		"platforms": [{
			"type": "pc",
			"subtype": "web",
			"pages": [
				{"id": "b", "name": "B", "path": "/b", "code": "function B() {}", "order": 2, "status": "completed", "transitions": []},
				{"id": "a", "name": "A", "path": "/a", "code": "function A() {}", "order": 1, "status": "completed", "transitions": []}
			],
			"navigation": {"type": "sidebar", "items": ["a", "b"]}
		}],
		"shared_state": {"user": "alex"}
	}`)

	require.NoError(t, s.SetDemoProject(raw))

	assert.Equal(t, domain.PlatformPC, s.CurrentPlatform())
	assert.Equal(t, "a", s.CurrentPageID())
	assert.Equal(t, "alex", s.SharedState()["user"])
	require.NotNil(t, s.Project())
	assert.Equal(t, "Shop", s.Project().ProjectName)

	t.Run("invalid payload is rejected", func(t *testing.T) {
		assert.Error(t, s.SetDemoProject([]byte(`"garbage"`)))
	})

	t.Run("reset returns to empty state", func(t *testing.T) {
		s.Reset()
		assert.Nil(t, s.Project())
		assert.Empty(t, s.Platforms())
		assert.Empty(t, s.CurrentPageID())
		assert.Empty(t, s.SharedState())
	})
}
