package handlers

import (
	"net"
	"net/http"
	"strings"

	ws "lanchat/internal/websocket"
	"lanchat/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	hub        *ws.Hub
	trustProxy bool
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewWebSocketHandlers(hub *ws.Hub, trustProxy bool, sendBuffer int) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub:        hub,
		trustProxy: trustProxy,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	address := NetworkAddress(r, h.trustProxy)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, address, h.sendBuffer)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// NetworkAddress is the host part of the request origin. With trustProxy the first
// X-Forwarded-For entry wins.
func NetworkAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
