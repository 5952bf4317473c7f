package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream pushes the status envelope every interval. On shutdown the
// client receives a final 503 envelope followed by a close frame.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Reads only serve control frames and detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("api: websocket read: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	push := func() bool {
		_, env := s.envelope(s.now())
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(env) == nil
	}

	if !push() {
		return
	}

	for {
		select {
		case <-gone:
			return
		case <-s.state.Done():
			push()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, msgStopping),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if !push() {
				return
			}
		}
	}
}
