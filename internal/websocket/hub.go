package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lanchat/internal/models"
	"lanchat/internal/services"
	"lanchat/pkg/logger"
)

// TokenVerifier resolves a signed identity token to its user id.
type TokenVerifier interface {
	UserIDFromToken(token string) (string, error)
}

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventRequest
)

type event struct {
	kind   eventKind
	client *Client
	env    models.Envelope
}

// Hub is the single dispatcher: connects, disconnects and client requests all flow
// through one channel and are applied to the chat service one at a time.
type Hub struct {
	tokens        TokenVerifier
	purgeInterval time.Duration

	events  chan event
	done    chan struct{}
	clients map[string]*Client
	service *services.ChatService
}

func NewHub(tokens TokenVerifier, purgeInterval time.Duration) *Hub {
	return &Hub{
		tokens:        tokens,
		purgeInterval: purgeInterval,
		events:        make(chan event, 256),
		done:          make(chan struct{}),
		clients:       make(map[string]*Client),
	}
}

// Register queues a new client connection. It reports false once the hub stopped.
func (h *Hub) Register(c *Client) bool {
	return h.enqueue(event{kind: eventRegister, client: c})
}

func (h *Hub) unregister(c *Client) {
	h.enqueue(event{kind: eventUnregister, client: c})
}

func (h *Hub) request(c *Client, env models.Envelope) bool {
	return h.enqueue(event{kind: eventRequest, client: c, env: env})
}

func (h *Hub) enqueue(ev event) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}

// Run processes events against service until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, service *services.ChatService) {
	h.service = service
	defer close(h.done)

	var purge <-chan time.Time
	if h.purgeInterval > 0 {
		ticker := time.NewTicker(h.purgeInterval)
		defer ticker.Stop()
		purge = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for _, client := range h.clients {
				client.closeSend()
			}
			logger.Info("Hub stopped")
			return

		case ev := <-h.events:
			h.handle(ctx, ev)

		case <-purge:
			if purged := service.PurgeExpired(ctx); len(purged) > 0 {
				logger.Info("Purged rooms: %v", purged)
			}
		}
	}
}

func (h *Hub) handle(ctx context.Context, ev event) {
	c := ev.client
	switch ev.kind {
	case eventRegister:
		h.clients[c.id] = c
		h.service.Connect(c.id, c.address)
		logger.Info("Client %s connected from %s", c.id, c.address)

	case eventUnregister:
		if _, ok := h.clients[c.id]; ok {
			delete(h.clients, c.id)
			c.closeSend()
			h.service.Disconnect(ctx, c.id)
			logger.Info("Client %s disconnected", c.id)
		}

	case eventRequest:
		if _, ok := h.clients[c.id]; !ok {
			return
		}
		h.dispatch(ctx, c, ev.env)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, env models.Envelope) {
	svc := h.service

	switch env.Event {
	case models.EventSetNickname:
		var req models.SetNicknameRequest
		if !h.decode(c, env, &req) {
			return
		}
		h.setNickname(ctx, c, env, req)

	case models.EventGetRooms:
		h.Notify(c.id, models.EventRoomsList, svc.ListRoomsFor(c.id))

	case models.EventCreateRoom:
		var req models.CreateRoomRequest
		if !h.decode(c, env, &req) {
			return
		}
		roomID, err := svc.CreateRoom(ctx, c.id, req.RoomName)
		if err != nil {
			logger.Error("Create room failed for %s: %v", c.id, err)
			h.reply(c, env, models.CreateRoomResponse{Code: services.ErrorCode(err), Message: err.Error()})
			return
		}
		h.reply(c, env, models.CreateRoomResponse{Success: true, RoomID: roomID})

	case models.EventJoinRoom:
		var req models.RoomRequest
		if !h.decode(c, env, &req) {
			return
		}
		if _, err := svc.JoinRoom(ctx, c.id, req.RoomID); err != nil {
			h.fail(c, models.EventJoinRoomFailed, err)
		}

	case models.EventLeaveRoom:
		var req models.RoomRequest
		if !h.decode(c, env, &req) {
			return
		}
		if err := svc.LeaveRoom(ctx, c.id, req.RoomID); err != nil {
			h.fail(c, models.EventError, err)
		}

	case models.EventChatMessage:
		var req models.ChatMessageRequest
		if !h.decode(c, env, &req) {
			return
		}
		svc.SendMessage(ctx, c.id, req.Message, req.RoomID)

	case models.EventBanUser:
		var req models.BanUserRequest
		if !h.decode(c, env, &req) {
			return
		}
		if _, err := svc.BanUser(ctx, c.id, req.UserIDToBan, req.RoomID); err != nil {
			h.fail(c, models.EventBanFailed, err)
		}

	case models.EventDeleteRoom:
		var req models.RoomRequest
		if !h.decode(c, env, &req) {
			return
		}
		if err := svc.DeleteRoom(ctx, c.id, req.RoomID); err != nil {
			h.fail(c, models.EventDeleteFailed, err)
		}

	case models.EventRestoreRoom:
		var req models.RoomRequest
		if !h.decode(c, env, &req) {
			return
		}
		if err := svc.RestoreRoom(ctx, c.id, req.RoomID); err != nil {
			h.fail(c, models.EventRestoreFailed, err)
		}

	default:
		logger.Debug("Unknown event %q from %s", env.Event, c.id)
		h.fail(c, models.EventError, services.ErrInvalidRequest)
	}
}

func (h *Hub) setNickname(ctx context.Context, c *Client, env models.Envelope, req models.SetNicknameRequest) {
	userID := req.UserID
	if req.Token != "" && h.tokens != nil {
		verified, err := h.tokens.UserIDFromToken(req.Token)
		if err != nil {
			logger.Error("Rejected identity token from %s: %v", c.id, err)
			h.reply(c, env, nicknameFailure(services.ErrInvalidToken))
			return
		}
		userID = verified
	}

	reg, err := h.service.RegisterIdentity(ctx, c.id, req.Mode, req.Nickname, userID)
	if err != nil {
		logger.Error("Set nickname failed for %s: %v", c.id, err)
		h.reply(c, env, nicknameFailure(err))
		return
	}

	h.reply(c, env, models.SetNicknameResponse{
		Success:   true,
		Mode:      reg.Mode,
		Scope:     reg.Scope,
		UserID:    reg.UserID,
		Directive: reg.Directive,
	})
}

func nicknameFailure(err error) models.SetNicknameResponse {
	return models.SetNicknameResponse{Code: services.ErrorCode(err), Message: err.Error()}
}

func (h *Hub) decode(c *Client, env models.Envelope, v any) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		logger.Error("Malformed %q payload from %s: %v", env.Event, c.id, err)
		h.fail(c, models.EventError, services.ErrInvalidRequest)
		return false
	}
	return true
}

// reply answers a request through its ack id, or as "<event> result" without one.
func (h *Hub) reply(c *Client, env models.Envelope, payload any) {
	if env.Ack > 0 {
		h.send(c, models.OutgoingEnvelope{Event: models.EventAck, Ack: env.Ack, Data: payload})
		return
	}
	h.send(c, models.OutgoingEnvelope{Event: env.Event + " result", Data: payload})
}

func (h *Hub) fail(c *Client, eventName string, err error) {
	var reqErr *services.Error
	if !errors.As(err, &reqErr) {
		logger.Error("Request from %s failed: %v", c.id, err)
	}
	h.send(c, models.OutgoingEnvelope{
		Event: eventName,
		Data:  models.FailurePayload{Code: services.ErrorCode(err), Message: err.Error()},
	})
}

// Notify implements services.Notifier. It must only be called from the Run goroutine.
func (h *Hub) Notify(connectionID, eventName string, payload any) {
	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	h.send(c, models.OutgoingEnvelope{Event: eventName, Data: payload})
}

func (h *Hub) send(c *Client, env models.OutgoingEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logger.Error("Error marshaling %q: %v", env.Event, err)
		return
	}
	if !c.enqueue(data) {
		logger.Error("Dropping slow client %s", c.id)
	}
}
