package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message kinds on the websocket stream.
const (
	KindSnapshot = "snapshot"
	KindChange   = "change"
)

// Message is one frame of the websocket stream. The first frame is always
// a snapshot; every following frame is a change.
type Message struct {
	Kind     string              `json:"kind"`
	Snapshot *combatlog.Snapshot `json:"snapshot,omitempty"`
	Change   *combatlog.Change   `json:"change,omitempty"`
}

// handleWebSocket upgrades to WebSocket and streams state changes to the client.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so no change falls between the two.
	sub := s.backend.Subscribe()
	defer sub.Close()

	// Read pump: detect client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := s.backend.Snapshot()
	if err := s.write(conn, Message{Kind: KindSnapshot, Snapshot: &snap}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ch, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.write(conn, Message{Kind: KindChange, Change: &ch}); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}
