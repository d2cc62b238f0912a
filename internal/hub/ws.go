package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/forgeworks/forge-coordinator/internal/logging"
)

const writeTimeout = 10 * time.Second

// WSObserver adapts a websocket connection to the Observer contract.
// Writes are serialized on a per-connection mutex.
type WSObserver struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (o *WSObserver) ID() string {
	return o.id
}

func (o *WSObserver) Send(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return o.conn.WriteMessage(websocket.TextMessage, frame)
}

func (o *WSObserver) Close() error {
	return o.conn.Close()
}

// Handler returns the websocket subscription endpoint: upgrade, snapshot,
// live stream until the peer goes away.
func Handler(h *Hub) http.HandlerFunc {
	logger := logging.WithComponent("hub-ws")
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		obs := &WSObserver{id: uuid.NewString(), conn: conn}
		h.Connect(obs)
		defer h.Disconnect(obs.ID())

		// Observers only listen; the read loop exists to notice disconnects
		// and drop control frames.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
