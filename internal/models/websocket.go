package models

import "encoding/json"

// Events consumed from clients.
const (
	EventSetNickname = "set nickname"
	EventGetRooms    = "get rooms"
	EventCreateRoom  = "create room"
	EventJoinRoom    = "join room"
	EventLeaveRoom   = "leave room"
	EventChatMessage = "chat message"
	EventBanUser     = "ban user"
	EventDeleteRoom  = "delete room"
	EventRestoreRoom = "restore room"
)

// Events produced for clients.
const (
	EventAck              = "ack"
	EventError            = "error"
	EventChatHistory      = "chat history"
	EventRoomsList        = "rooms list"
	EventJoinRoomSuccess  = "join room success"
	EventJoinRoomFailed   = "join room failed"
	EventLeaveRoomSuccess = "leave room success"
	EventRoomUserList     = "room user list update"
	EventBanned           = "banned"
	EventBanSuccess       = "ban success"
	EventBanFailed        = "ban failed"
	EventRoomDeleted      = "room deleted"
	EventDeleteSuccess    = "delete success"
	EventDeleteFailed     = "delete failed"
	EventRestoreSuccess   = "restore success"
	EventRestoreFailed    = "restore failed"
	EventMentioned        = "mentioned"
)

// Envelope is the frame exchanged over the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   int             `json:"ack,omitempty"`
}

type OutgoingEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   int    `json:"ack,omitempty"`
}

type SetNicknameRequest struct {
	Nickname string `json:"nickname"`
	Mode     Mode   `json:"mode"`
	UserID   string `json:"userId"`
	Token    string `json:"token,omitempty"`
}

type CreateRoomRequest struct {
	RoomName string `json:"roomName"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type ChatMessageRequest struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

type BanUserRequest struct {
	UserIDToBan string `json:"userIdToBan"`
	RoomID      string `json:"roomId"`
}

type SetNicknameResponse struct {
	Success   bool   `json:"success"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Mode      Mode   `json:"mode,omitempty"`
	Scope     string `json:"scope,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Directive string `json:"directive,omitempty"`
}

type CreateRoomResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type FailurePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type JoinRoomSuccess struct {
	Room    RoomListing `json:"room"`
	History []Message   `json:"history"`
	IsOwner bool        `json:"isOwner"`
}

type RoomNotice struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName,omitempty"`
	Message  string `json:"message,omitempty"`
}

type BanSuccess struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

type MentionNotice struct {
	RoomID   string  `json:"roomId"`
	RoomName string  `json:"roomName"`
	Message  Message `json:"message"`
}
