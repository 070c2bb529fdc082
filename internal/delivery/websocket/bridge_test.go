package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmstation-client/internal/domain"
	"pmstation-client/internal/store"
)

func newBridgeWithPages(t *testing.T) (*Bridge, *store.DemoStore) {
	t.Helper()
	st := store.New(nil)
	st.SetPlatforms([]domain.DemoPlatform{{
		Type: domain.PlatformPC,
		Pages: []domain.DemoPage{
			{ID: "home", Name: "Home", Order: 0},
			{ID: "about", Name: "About", Order: 1},
		},
	}})
	return NewBridge(st, nil), st
}

func TestBridge_Apply(t *testing.T) {
	t.Run("navigate switches page and merges state", func(t *testing.T) {
		b, st := newBridgeWithPages(t)

		b.Apply([]byte(`{"type": "navigate", "pageId": "about", "stateChanges": {"from": "home"}}`))

		assert.Equal(t, "about", st.CurrentPageID())
		assert.Equal(t, "home", st.SharedState()["from"])
		assert.Equal(t, []string{"home"}, st.NavigationHistory())
	})

	t.Run("updateState merges changes", func(t *testing.T) {
		b, st := newBridgeWithPages(t)

		b.Apply([]byte(`{"type": "updateState", "changes": {"cart": 2}}`))

		assert.EqualValues(t, 2, st.SharedState()["cart"])
		// Навигация не затронута
		assert.Equal(t, "home", st.CurrentPageID())
	})

	t.Run("unknown message type is ignored", func(t *testing.T) {
		b, st := newBridgeWithPages(t)

		b.Apply([]byte(`{"type": "eval", "changes": {"x": 1}}`))

		assert.Empty(t, st.SharedState())
		assert.Equal(t, "home", st.CurrentPageID())
	})

	t.Run("malformed payload is ignored", func(t *testing.T) {
		b, st := newBridgeWithPages(t)

		b.Apply([]byte(`{broken`))
		b.Apply([]byte(`{"type": "navigate"}`))

		require.Equal(t, "home", st.CurrentPageID())
		assert.Empty(t, st.NavigationHistory())
	})

	t.Run("empty updateState is a no-op", func(t *testing.T) {
		b, st := newBridgeWithPages(t)

		b.Apply([]byte(`{"type": "updateState"}`))

		assert.Empty(t, st.SharedState())
	})
}
