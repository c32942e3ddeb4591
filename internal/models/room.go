package models

import (
	"slices"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeOpen  Mode = "open"
)

type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeSystem MessageType = "system"
)

// Message is one entry of a room or local scope history. Never mutated after append.
type Message struct {
	Type     MessageType `json:"type"`
	Nickname string      `json:"nickname,omitempty"`
	Text     string      `json:"message"`
	Mentions []string    `json:"mentions,omitempty"`
}

func SystemMessage(text string) Message {
	return Message{Type: MessageTypeSystem, Text: text}
}

// Room is the durable open-mode room record.
type Room struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	OwnerID       string     `json:"ownerId"`
	History       []Message  `json:"history"`
	BannedUserIDs []string   `json:"bannedUserIds"`
	DeletedAt     *time.Time `json:"deletedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (r *Room) IsDeleted() bool {
	return r.DeletedAt != nil
}

func (r *Room) IsBanned(userID string) bool {
	return slices.Contains(r.BannedUserIDs, userID)
}

func (r *Room) IsOwner(userID string) bool {
	return userID != "" && r.OwnerID == userID
}

// Clone returns a deep copy so stores never share slices with the live state.
func (r *Room) Clone() *Room {
	c := *r
	c.History = slices.Clone(r.History)
	c.BannedUserIDs = slices.Clone(r.BannedUserIDs)
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// RoomListing is the per-requester view of a room in a rooms list snapshot.
type RoomListing struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	OwnerID   string     `json:"ownerId"`
	DeletedAt *time.Time `json:"deletedAt"`
	IsOwner   bool       `json:"isOwner"`
}

// RoomUser is one entry of a room user list.
type RoomUser struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// Session is the transient open-mode identity bound to a connection.
type Session struct {
	ConnectionID  string
	UserID        string
	Nickname      string
	CurrentRoomID string
}

func (s *Session) InRoom() bool {
	return s.CurrentRoomID != ""
}
