package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/services/pubsub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	feedBufferSize = 64
)

// ChangeFeed streams store change events to WebSocket clients. The optional
// "topic" and "key" query parameters narrow the stream.
type ChangeFeed struct {
	pubsub   *pubsub.PubSub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewChangeFeed creates a ChangeFeed over ps.
func NewChangeFeed(ps *pubsub.PubSub, logger *zap.Logger) *ChangeFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeFeed{
		pubsub: ps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /ws
func (f *ChangeFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := pubsub.TopicAll
	if t := r.URL.Query().Get("topic"); t != "" {
		topic = pubsub.Topic(t)
	}

	// Subscribe before the handshake completes so no event published after
	// the client connects is missed.
	sub := f.pubsub.Subscribe(topic, r.URL.Query().Get("key"), feedBufferSize)
	defer f.pubsub.Unsubscribe(sub)

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	f.logger.Debug("change feed client connected",
		zap.String("subscriber", sub.ID),
		zap.String("topic", string(topic)))

	done := make(chan struct{})
	go f.readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			f.logger.Debug("change feed client disconnected", zap.String("subscriber", sub.ID))
			return
		case event, ok := <-sub.Channel:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				f.logger.Debug("change feed write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and closes done when the connection fails.
func (f *ChangeFeed) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
