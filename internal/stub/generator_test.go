package stub

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmstation-client/internal/domain"
)

func TestCleanCode(t *testing.T) {
	t.Run("strips jsx fence", func(t *testing.T) {
		raw := "```jsx\nfunction Page() {}\n```"
		assert.Equal(t, "function Page() {}", CleanCode(raw))
	})

	t.Run("strips bare fence", func(t *testing.T) {
		raw := "```\nfunction Page() {}\n```"
		assert.Equal(t, "function Page() {}", CleanCode(raw))
	})

	t.Run("leaves plain code untouched", func(t *testing.T) {
		assert.Equal(t, "function Page() {}", CleanCode("function Page() {}\n"))
	})

	t.Run("keeps inner fences", func(t *testing.T) {
		code := "function Page() { return '```'; }"
		assert.Equal(t, code, CleanCode(code))
	})
}

func TestFixtureGenerator(t *testing.T) {
	page := domain.DemoPage{ID: "home", Name: "Home", Description: "Landing"}

	t.Run("chunks concatenate to the final code", func(t *testing.T) {
		g := NewFixtureGenerator(0, nil)

		var chunks []string
		code, err := g.GeneratePage(context.Background(), page, "", func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.Equal(t, code, strings.Join(chunks, ""))
		assert.Contains(t, code, "function Page(")
		assert.Contains(t, code, "Home")
	})

	t.Run("instruction is reflected in modified code", func(t *testing.T) {
		g := NewFixtureGenerator(0, nil)
		code, err := g.GeneratePage(context.Background(), page, "make it dark", nil)
		require.NoError(t, err)
		assert.Contains(t, code, "make it dark")
	})

	t.Run("configured failure produces error", func(t *testing.T) {
		g := NewFixtureGenerator(0, nil)
		g.FailPages["home"] = "synthetic failure"

		_, err := g.GeneratePage(context.Background(), page, "", nil)
		require.ErrorIs(t, err, ErrGenerationFailed)
		assert.Contains(t, err.Error(), "synthetic failure")
	})

	t.Run("canceled context stops chunking", func(t *testing.T) {
		g := NewFixtureGenerator(0, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := g.GeneratePage(ctx, page, "", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFixtureProject(t *testing.T) {
	project := FixtureProject()

	require.Len(t, project.Platforms, 2)
	for _, platform := range project.Platforms {
		assert.NotEmpty(t, platform.Pages)
		assert.NotEmpty(t, platform.Navigation.Items)
		for _, page := range platform.Pages {
			assert.Equal(t, domain.PageStatusPending, page.Status)
			assert.Empty(t, page.Code)
		}
	}
	assert.NotEmpty(t, project.SharedState)
}
