package notify

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StreamHandler upgrades to a websocket and pushes every new toast as a JSON
// text frame. A "since" query parameter replays buffered toasts first; each
// toast is written once.
func StreamHandler(c *Center, checkOrigin func(*http.Request) bool, logger *zap.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			logger.Debug("toast stream upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		var (
			backlog []Toast
			toasts  <-chan Toast
			cancel  func()
		)
		if since, err := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64); err == nil {
			backlog, toasts, cancel = c.SubscribeSince(since)
		} else {
			toasts, cancel = c.Subscribe()
		}
		defer cancel()

		for _, t := range backlog {
			if err := writeToast(conn, t); err != nil {
				return
			}
		}

		// The reader only services control frames and notices the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-closed:
				return
			case t, ok := <-toasts:
				if !ok {
					return
				}
				if err := writeToast(conn, t); err != nil {
					logger.Debug("toast stream write failed", zap.Error(err))
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
}

func writeToast(conn *websocket.Conn, t Toast) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(t)
}
