package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-api/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// feedClient is one websocket subscriber.
type feedClient struct {
	conn *websocket.Conn
	send chan model.FeedMessage
	once sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() { close(c.send) })
}

// ItemFeed pushes newly stored items to websocket subscribers.
type ItemFeed struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*feedClient]struct{}
}

// NewItemFeed creates an ItemFeed. allowedOrigin limits which browser
// origins may subscribe; "" accepts any.
func NewItemFeed(allowedOrigin string, logger *zap.Logger) *ItemFeed {
	return &ItemFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

// RegisterRoutes registers the feed route with the router.
func (f *ItemFeed) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/items", f.HandleWebSocket).Methods(http.MethodGet)
}

// HandleWebSocket upgrades the connection and subscribes it to the feed.
func (f *ItemFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan model.FeedMessage, sendBuffer),
	}
	client.send <- model.FeedMessage{Type: model.FeedMessageTypeHello, Timestamp: time.Now().UTC()}

	f.mu.Lock()
	f.clients[client] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("feed subscriber connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go f.writePump(client)
	go f.readPump(client)
}

// Publish fans msg out to every subscriber. Subscribers whose buffer is
// full are disconnected.
func (f *ItemFeed) Publish(msg model.FeedMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for client := range f.clients {
		select {
		case client.send <- msg:
		default:
			f.logger.Warn("dropping slow feed subscriber",
				zap.String("remote_addr", client.conn.RemoteAddr().String()))
			delete(f.clients, client)
			client.close()
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (f *ItemFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// readPump discards inbound messages and detects disconnects.
func (f *ItemFeed) readPump(client *feedClient) {
	defer f.removeClient(client)

	client.conn.SetReadLimit(maxMessageSize)
	if err := client.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		f.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump delivers queued messages and keeps the connection alive.
func (f *ItemFeed) writePump(client *feedClient) {
	pingTicker := time.NewTicker(pingPeriod)

	defer func() {
		pingTicker.Stop()
		if err := client.conn.Close(); err != nil {
			f.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				f.sendCloseMessage(client.conn)
				return
			}
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := client.conn.WriteJSON(msg); err != nil {
				f.logger.Debug("failed to send feed message", zap.Error(err))
				return
			}
		case <-pingTicker.C:
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// sendCloseMessage sends a close frame to the connection.
func (f *ItemFeed) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		f.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		f.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient unsubscribes client; its writePump then closes the connection.
func (f *ItemFeed) removeClient(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[client]; exists {
		delete(f.clients, client)
		client.close()
		f.logger.Info("feed subscriber disconnected",
			zap.String("remote_addr", client.conn.RemoteAddr().String()))
	}
}

// CloseAllConnections closes every subscriber connection.
func (f *ItemFeed) CloseAllConnections() {
	f.mu.Lock()
	for client := range f.clients {
		delete(f.clients, client)
		client.close()
	}
	f.mu.Unlock()

	f.logger.Info("all feed connections closed")
}
