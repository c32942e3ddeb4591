package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"lanchat/internal/database"
	"lanchat/internal/models"
	"lanchat/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit  = 100
	DefaultRestoreWindow = 72 * time.Hour
)

// Notifier delivers one event to one connection. Delivery is fire-and-forget.
type Notifier interface {
	Notify(connectionID, event string, payload any)
}

type Options struct {
	HistoryLimit  int
	RestoreWindow time.Duration
	Now           func() time.Time
	NewID         func() string
}

type connection struct {
	id            string
	address       string
	mode          models.Mode
	localNickname string
}

type localScope struct {
	address string
	active  map[string]string // nickname -> connection id
	members map[string]struct{}
	history []models.Message
}

// ChatService owns every piece of chat state: connections, local scopes, open-mode
// sessions, rooms and room membership. It is not safe for concurrent use; the hub
// serializes all calls.
type ChatService struct {
	notifier  Notifier
	rooms     database.RoomStore
	nicknames database.NicknameStore
	opts      Options

	conns         map[string]*connection
	sessions      map[string]*models.Session
	scopes        map[string]*localScope
	usedNicknames map[string][]string
	roomRecords   map[string]*models.Room
	membership    map[string]map[string]struct{} // room id -> connection ids
}

func NewChatService(notifier Notifier, rooms database.RoomStore, nicknames database.NicknameStore, opts Options) *ChatService {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.RestoreWindow <= 0 {
		opts.RestoreWindow = DefaultRestoreWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	return &ChatService{
		notifier:      notifier,
		rooms:         rooms,
		nicknames:     nicknames,
		opts:          opts,
		conns:         make(map[string]*connection),
		sessions:      make(map[string]*models.Session),
		scopes:        make(map[string]*localScope),
		usedNicknames: make(map[string][]string),
		roomRecords:   make(map[string]*models.Room),
		membership:    make(map[string]map[string]struct{}),
	}
}

// Load reads the durable room store and nickname store. Load errors are logged and
// the service starts empty for that store.
func (s *ChatService) Load(ctx context.Context) {
	rooms, err := s.rooms.LoadRooms(ctx)
	if err != nil {
		logger.Error("Failed to load rooms, starting empty: %v", err)
	} else {
		for id, room := range rooms {
			if room.ID == "" {
				room.ID = id
			}
			s.trimHistory(&room.History)
			s.roomRecords[room.ID] = room
		}
	}

	nicknames, err := s.nicknames.LoadNicknames(ctx)
	if err != nil {
		logger.Error("Failed to load nicknames, starting empty: %v", err)
	} else {
		for address, names := range nicknames {
			s.usedNicknames[address] = slices.Clone(names)
		}
	}

	logger.Info("Loaded %d rooms and nicknames for %d addresses", len(s.roomRecords), len(s.usedNicknames))
}

// Connect records a new live connection originating from address.
func (s *ChatService) Connect(connID, address string) {
	s.conns[connID] = &connection{id: connID, address: address}
	logger.Debug("Connection %s from %s", connID, address)
}

// Disconnect performs the implicit leave for whatever the connection was part of
// and forgets it.
func (s *ChatService) Disconnect(ctx context.Context, connID string) {
	conn, ok := s.conns[connID]
	if !ok {
		return
	}

	switch conn.mode {
	case models.ModeLocal:
		s.releaseLocal(conn, true)
	case models.ModeOpen:
		s.dropSession(ctx, connID)
	}

	delete(s.conns, connID)
	logger.Debug("Connection %s closed", connID)
}

func (s *ChatService) notify(connID, event string, payload any) {
	s.notifier.Notify(connID, event, payload)
}

func (s *ChatService) notifyRoom(roomID, event string, payload any, except string) {
	for connID := range s.membership[roomID] {
		if connID == except {
			continue
		}
		s.notify(connID, event, payload)
	}
}

// roomUsers lists the occupants of a room ordered by nickname.
func (s *ChatService) roomUsers(roomID string) []models.RoomUser {
	users := make([]models.RoomUser, 0, len(s.membership[roomID]))
	for connID := range s.membership[roomID] {
		if sess, ok := s.sessions[connID]; ok {
			users = append(users, models.RoomUser{ID: sess.UserID, Nickname: sess.Nickname})
		}
	}
	slices.SortFunc(users, func(a, b models.RoomUser) int {
		if c := strings.Compare(a.Nickname, b.Nickname); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return users
}

func (s *ChatService) notifyUserList(roomID string) {
	s.notifyRoom(roomID, models.EventRoomUserList, s.roomUsers(roomID), "")
}

// broadcastRoomList sends every live connection its own rooms list snapshot.
func (s *ChatService) broadcastRoomList() {
	for connID := range s.conns {
		userID := ""
		if sess, ok := s.sessions[connID]; ok {
			userID = sess.UserID
		}
		s.notify(connID, models.EventRoomsList, s.ListRooms(userID))
	}
}

func (s *ChatService) appendHistory(history *[]models.Message, msg models.Message) {
	*history = append(*history, msg)
	s.trimHistory(history)
}

func (s *ChatService) trimHistory(history *[]models.Message) {
	if over := len(*history) - s.opts.HistoryLimit; over > 0 {
		*history = slices.Clone((*history)[over:])
	}
}

// saveRooms writes the whole room store. Failures are logged and returned; the
// in-memory state stays authoritative.
func (s *ChatService) saveRooms(ctx context.Context) error {
	if err := s.rooms.SaveRooms(ctx, s.roomRecords); err != nil {
		logger.Error("Failed to persist rooms: %v", err)
		return fmt.Errorf("persist rooms: %w", err)
	}
	return nil
}

func (s *ChatService) saveNicknames(ctx context.Context) error {
	if err := s.nicknames.SaveNicknames(ctx, s.usedNicknames); err != nil {
		logger.Error("Failed to persist nicknames: %v", err)
		return fmt.Errorf("persist nicknames: %w", err)
	}
	return nil
}

func (s *ChatService) session(connID string) (*models.Session, error) {
	sess, ok := s.sessions[connID]
	if !ok {
		return nil, ErrIdentityRequired
	}
	return sess, nil
}

// Session returns a copy of the open-mode session bound to connID.
func (s *ChatService) Session(connID string) (models.Session, bool) {
	sess, ok := s.sessions[connID]
	if !ok {
		return models.Session{}, false
	}
	return *sess, true
}

// Room returns a copy of a room record.
func (s *ChatService) Room(roomID string) (*models.Room, bool) {
	room, ok := s.roomRecords[roomID]
	if !ok {
		return nil, false
	}
	return room.Clone(), true
}

// RoomUsers returns the current occupants of a room.
func (s *ChatService) RoomUsers(roomID string) []models.RoomUser {
	return s.roomUsers(roomID)
}

// ScopeHistory returns a copy of the local scope history for an address.
func (s *ChatService) ScopeHistory(address string) []models.Message {
	scope, ok := s.scopes[address]
	if !ok {
		return nil
	}
	return slices.Clone(scope.history)
}
