package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Serve attaches an upgraded connection to the hub and blocks until it closes.
// Clients only ever send pings; everything else is server push.
func (h *Hub) Serve(conn *websocket.Conn, client *Client) {
	h.Register(client)

	replies := make(chan []byte, 4)
	go h.writePump(conn, client, replies)
	h.readPump(conn, client, replies)
}

// readPump handles client pings and detects disconnects
func (h *Hub) readPump(conn *websocket.Conn, client *Client, replies chan<- []byte) {
	defer func() {
		h.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).WithFields(client.logFields()).Debug("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != TypePing {
			continue
		}

		pong, err := NewMessage(TypePong, nil).JSON()
		if err != nil {
			continue
		}
		select {
		case replies <- pong:
		default:
		}
	}
}

// writePump forwards hub messages and pongs to the connection and keeps it alive with pings
func (h *Hub) writePump(conn *websocket.Conn, client *Client, replies <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.WithError(err).WithFields(client.logFields()).Debug("WebSocket write failed")
				return
			}

		case reply := <-replies:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// logFields describes a client for log entries
func (c *Client) logFields() logrus.Fields {
	return logrus.Fields{"user_id": c.UserID, "role": c.Role}
}
