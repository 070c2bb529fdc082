package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader отдает данные порциями заданного размера, имитируя
// произвольную нарезку сетевых чанков.
type chunkedReader struct {
	data      string
	pos       int
	chunkSize int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.chunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func TestReader_Next(t *testing.T) {
	stream := "event: init\ndata: {\"total_pages\": 3}\n\n" +
		"event: page_start\ndata: {\"page_id\": \"home\"}\n\n" +
		"event: complete\ndata: {}\n\n"

	t.Run("reads events in order", func(t *testing.T) {
		r := NewReader(strings.NewReader(stream), nil)

		ev, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "init", ev.Type)
		assert.JSONEq(t, `{"total_pages": 3}`, string(ev.Data))

		ev, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, "page_start", ev.Type)

		ev, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, "complete", ev.Type)

		_, err = r.Next()
		assert.ErrorIs(t, err, ErrStreamClosed)
	})

	t.Run("reassembles events split across reads", func(t *testing.T) {
		// Размер чанка 7 гарантированно режет и строки event:, и JSON
		r := NewReader(&chunkedReader{data: stream, chunkSize: 7}, nil)

		var types []string
		for {
			ev, err := r.Next()
			if errors.Is(err, ErrStreamClosed) {
				break
			}
			require.NoError(t, err)
			types = append(types, ev.Type)
		}
		assert.Equal(t, []string{"init", "page_start", "complete"}, types)
	})

	t.Run("skips event with invalid JSON payload", func(t *testing.T) {
		dirty := "event: page_progress\ndata: {broken\n\n" +
			"event: page_complete\ndata: {\"page_id\": \"home\"}\n\n"
		r := NewReader(strings.NewReader(dirty), nil)

		ev, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "page_complete", ev.Type)

		_, err = r.Next()
		assert.ErrorIs(t, err, ErrStreamClosed)
	})

	t.Run("drops trailing fragment without separator", func(t *testing.T) {
		partial := "event: init\ndata: {}\n\nevent: page_start\ndata: {\"page_id\": \"x\"}"
		r := NewReader(strings.NewReader(partial), nil)

		ev, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "init", ev.Type)

		_, err = r.Next()
		assert.ErrorIs(t, err, ErrStreamClosed)
	})

	t.Run("ignores comment-only chunks", func(t *testing.T) {
		withComment := ": keep-alive\n\nevent: complete\ndata: {}\n\n"
		r := NewReader(strings.NewReader(withComment), nil)

		ev, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "complete", ev.Type)
	})

	t.Run("propagates non-EOF read errors", func(t *testing.T) {
		r := NewReader(&failingReader{}, nil)
		_, err := r.Next()
		assert.EqualError(t, err, "connection reset")
	})
}

type failingReader struct{}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}
