package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pmstation-client/internal/store"
)

// Настройки для WebSocket-соединения
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене следует настроить проверку на разрешенные источники
	},
}

// bridgeMessage — сообщение от документа предпросмотра. Допустимы только
// типы navigate и updateState, остальные игнорируются без ошибки.
type bridgeMessage struct {
	Type         string                 `json:"type"`
	PageID       string                 `json:"pageId"`
	StateChanges map[string]interface{} `json:"stateChanges"`
	Changes      map[string]interface{} `json:"changes"`
}

// Bridge принимает WebSocket-соединения от документов предпросмотра и
// транслирует их сообщения в хранилище демо. Канал односторонний: документ
// шлет navigate/updateState, хост только держит соединение живым пингами.
type Bridge struct {
	store   *store.DemoStore
	logger  *zap.Logger
	mu      sync.Mutex
	clients map[uuid.UUID]*websocket.Conn
}

// NewBridge создает мост между документами предпросмотра и хранилищем.
func NewBridge(st *store.DemoStore, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		store:   st,
		logger:  logger.Named("PreviewBridge"),
		clients: make(map[uuid.UUID]*websocket.Conn),
	}
}

// Handler обрабатывает новые соединения от документов предпросмотра.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("Failed to upgrade preview connection", zap.Error(err))
			return
		}

		clientID := uuid.New()
		b.mu.Lock()
		b.clients[clientID] = conn
		b.mu.Unlock()
		b.logger.Debug("Preview document connected", zap.String("client_id", clientID.String()))

		go b.readPump(clientID, conn)
		go b.pingPump(conn)
	})
}

// readPump читает сообщения документа и применяет их к хранилищу.
func (b *Bridge) readPump(clientID uuid.UUID, conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		delete(b.clients, clientID)
		b.mu.Unlock()
		conn.Close()
		b.logger.Debug("Preview document disconnected", zap.String("client_id", clientID.String()))
	}()

	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logger.Warn("Preview connection read error", zap.Error(err))
			}
			return
		}
		b.Apply(data)
	}
}

// Apply разбирает одно сообщение документа и применяет его к хранилищу.
// Непарсящиеся и неизвестные сообщения отбрасываются: документ исполняет
// сгенерированный код и не считается доверенным источником.
func (b *Bridge) Apply(data []byte) {
	var msg bridgeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		b.logger.Debug("Ignoring malformed preview message", zap.Error(err))
		return
	}

	switch msg.Type {
	case "navigate":
		if msg.PageID == "" {
			b.logger.Debug("Ignoring navigate without pageId")
			return
		}
		b.store.NavigateToPage(msg.PageID, msg.StateChanges)
	case "updateState":
		if len(msg.Changes) == 0 {
			return
		}
		b.store.UpdateSharedState(msg.Changes)
	default:
		b.logger.Debug("Ignoring unknown preview message type", zap.String("type", msg.Type))
	}
}

// pingPump держит соединение живым периодическими пингами.
func (b *Bridge) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}

// CloseAll закрывает все активные соединения предпросмотра.
func (b *Bridge) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, conn := range b.clients {
		conn.Close()
		delete(b.clients, id)
	}
}
