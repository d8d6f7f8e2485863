package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/orchestrator"
)

// EventSnapshot is the first message on every event stream.
const EventSnapshot orchestrator.EventType = "snapshot"

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Players are served from other origins; CORS already governs the REST API.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamEvents handles GET /api/sessions/:id/events. The stream opens with
// the current snapshot and then carries every orchestrator event until the
// session stops or the client goes away.
func (h *SessionHandler) StreamEvents(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	// Subscribe before the snapshot so nothing falls in between.
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	snap, err := s.Snapshot()
	if err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("session_id", s.ID()).
			Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := logger.ForSession(s.ID())
	log.Debug().Str("remote", c.ClientIP()).Msg("Event stream opened")

	first := orchestrator.Event{
		Type:   EventSnapshot,
		State:  snap.State,
		At:     time.Now(),
		Fields: map[string]any{"snapshot": snap},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(first); err != nil {
		return
	}

	// Reader goroutine - handles pongs and close messages
	done := make(chan struct{})
	go func() {
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
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Debug().Msg("Event stream closed by client")
			return

		case e, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				log.Debug().Err(err).Msg("Event stream write failed")
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
