package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"lanchat/internal/models"
	"lanchat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

type Client struct {
	id      string
	address string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte

	closeOnce sync.Once
	closed    bool
}

func NewClient(hub *Hub, conn *websocket.Conn, address string, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		id:      uuid.New().String(),
		address: address,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string {
	return c.id
}

// enqueue hands a frame to the write pump without blocking. A full queue closes
// the client.
func (c *Client) enqueue(data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.closeSend()
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.closed = true
		close(c.send)
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Error("Malformed frame from %s: %v", c.id, err)
			env = models.Envelope{}
		}

		if !c.hub.request(c, env) {
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
