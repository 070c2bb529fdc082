package sse

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Event представляет одно разобранное событие из SSE-потока.
type Event struct {
	Type string
	Data json.RawMessage
}

// ErrStreamClosed возвращается из Next после исчерпания потока.
var ErrStreamClosed = errors.New("sse: stream closed")

var (
	eventLineRe = regexp.MustCompile(`(?m)^event:\s*(.+)$`)
	dataLineRe  = regexp.MustCompile(`(?m)^data:\s*(.+)$`)
)

// Reader читает поток text/event-stream и выдает события по мере их поступления.
// События разделяются пустой строкой; незавершенный фрагмент после последнего
// разделителя переносится в буфер до следующего чтения, поэтому событие,
// разрезанное границей сетевого чанка, собирается корректно.
type Reader struct {
	src     io.Reader
	buf     string
	pending []Event
	done    bool
	logger  *zap.Logger
	scratch []byte
}

// NewReader создает Reader поверх тела streaming-ответа.
func NewReader(src io.Reader, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		src:     src,
		logger:  logger.Named("SSEReader"),
		scratch: make([]byte, 4096),
	}
}

// Next возвращает следующее событие потока в порядке поступления.
// По окончании потока возвращает ErrStreamClosed. Событие с некорректным
// JSON в payload не фатально: оно логируется и пропускается.
func (r *Reader) Next() (Event, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			return ev, nil
		}
		if r.done {
			return Event{}, ErrStreamClosed
		}

		n, err := r.src.Read(r.scratch)
		if n > 0 {
			r.buf += string(r.scratch[:n])
			r.split()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Event{}, err
			}
			// Конец потока: остаток буфера без завершающего разделителя отбрасывается
			r.done = true
		}
	}
}

// split разбирает накопленный буфер на завершенные события.
// Последний (возможно неполный) фрагмент остается в буфере.
func (r *Reader) split() {
	parts := strings.Split(r.buf, "\n\n")
	r.buf = parts[len(parts)-1]

	for _, chunk := range parts[:len(parts)-1] {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		ev, ok := r.parseChunk(chunk)
		if ok {
			r.pending = append(r.pending, ev)
		}
	}
}

// parseChunk извлекает тип события и payload из одного блока между разделителями.
func (r *Reader) parseChunk(chunk string) (Event, bool) {
	eventMatch := eventLineRe.FindStringSubmatch(chunk)
	dataMatch := dataLineRe.FindStringSubmatch(chunk)
	if eventMatch == nil || dataMatch == nil {
		r.logger.Debug("Skipping SSE chunk without event/data lines", zap.String("chunk", snippet(chunk)))
		return Event{}, false
	}

	eventType := strings.TrimSpace(eventMatch[1])
	data := strings.TrimSpace(dataMatch[1])

	if !json.Valid([]byte(data)) {
		r.logger.Warn("Failed to parse SSE data, dropping event",
			zap.String("event", eventType),
			zap.String("data", snippet(data)))
		return Event{}, false
	}

	return Event{Type: eventType, Data: json.RawMessage(data)}, true
}

func snippet(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
