package preview

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(DefaultRuntime(), nil)

	t.Run("embeds sanitized code and state", func(t *testing.T) {
		src := "import React from 'react';\nexport default function Page() { return <div/>; }\n"
		html, err := r.Render(src, map[string]interface{}{"user": "alex"}, "ws://localhost:8090/ws/preview")
		require.NoError(t, err)

		assert.Contains(t, html, "function Page()")
		assert.Contains(t, html, "window.Page = Page;")
		assert.NotContains(t, html, "import React")
		assert.Contains(t, html, `"user":"alex"`)
		assert.Contains(t, html, "ws://localhost:8090/ws/preview")
	})

	t.Run("neutralizes closing script tag in page code", func(t *testing.T) {
		src := "function Page() { return '</script>'; }\n"
		html, err := r.Render(src, nil, "")
		require.NoError(t, err)

		// Единственный </script> на каждый настоящий тег, код не разрывает документ
		assert.Contains(t, html, "<\\/script")
	})

	t.Run("includes runtime script urls", func(t *testing.T) {
		runtime := RuntimeConfig{
			ReactURL:    "https://cdn.local/react.js",
			ReactDOMURL: "https://cdn.local/react-dom.js",
			BabelURL:    "https://cdn.local/babel.js",
			TailwindURL: "https://cdn.local/tailwind.js",
		}
		html, err := NewRenderer(runtime, nil).Render("function Page() {}", nil, "")
		require.NoError(t, err)

		for _, url := range []string{runtime.ReactURL, runtime.ReactDOMURL, runtime.BabelURL, runtime.TailwindURL} {
			assert.Contains(t, html, url)
		}
	})

	t.Run("bootstrap tries conventional names before globals", func(t *testing.T) {
		html, err := r.Render("function Custom() {}", nil, "")
		require.NoError(t, err)
		idx := strings.Index(html, "['App', 'Page', 'Component'")
		assert.Greater(t, idx, 0)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("take is one-shot", func(t *testing.T) {
		reg := NewRegistry(nil)
		handle := reg.Publish("<html>doc</html>")

		html, err := reg.Take(handle)
		require.NoError(t, err)
		assert.Equal(t, "<html>doc</html>", html)

		_, err = reg.Take(handle)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("handles are independent", func(t *testing.T) {
		reg := NewRegistry(nil)
		h1 := reg.Publish("one")
		h2 := reg.Publish("two")
		require.NotEqual(t, h1, h2)

		_, err := reg.Take(h1)
		require.NoError(t, err)

		html, err := reg.Take(h2)
		require.NoError(t, err)
		assert.Equal(t, "two", html)
	})

	t.Run("revoke drops without serving", func(t *testing.T) {
		reg := NewRegistry(nil)
		handle := reg.Publish("doc")
		reg.Revoke(handle)

		_, err := reg.Take(handle)
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		// Отзыв неизвестного хэндла безопасен
		reg.Revoke("missing")
	})

	t.Run("cleanup removes only stale documents", func(t *testing.T) {
		reg := NewRegistry(nil)
		stale := reg.Publish("stale")
		reg.docs[stale] = document{html: "stale", created: time.Now().Add(-time.Hour)}
		fresh := reg.Publish("fresh")

		removed := reg.CleanupOlderThan(10 * time.Minute)
		assert.Equal(t, 1, removed)

		_, err := reg.Take(stale)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
		_, err = reg.Take(fresh)
		assert.NoError(t, err)
	})
}
