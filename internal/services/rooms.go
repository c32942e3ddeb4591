package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"lanchat/internal/models"
	"lanchat/pkg/logger"
)

// ListRooms returns every live room plus the soft-deleted rooms owned by userID.
func (s *ChatService) ListRooms(userID string) map[string]models.RoomListing {
	listing := make(map[string]models.RoomListing, len(s.roomRecords))
	for id, room := range s.roomRecords {
		isOwner := room.IsOwner(userID)
		if room.IsDeleted() && !isOwner {
			continue
		}
		listing[id] = roomListing(room, isOwner)
	}
	return listing
}

func roomListing(room *models.Room, isOwner bool) models.RoomListing {
	l := models.RoomListing{
		ID:      room.ID,
		Name:    room.Name,
		OwnerID: room.OwnerID,
		IsOwner: isOwner,
	}
	if room.DeletedAt != nil {
		t := *room.DeletedAt
		l.DeletedAt = &t
	}
	return l
}

// ListRoomsFor is ListRooms for the identity bound to a connection.
func (s *ChatService) ListRoomsFor(connID string) map[string]models.RoomListing {
	userID := ""
	if sess, ok := s.sessions[connID]; ok {
		userID = sess.UserID
	}
	return s.ListRooms(userID)
}

// CreateRoom creates a room owned by the connection's identity and pushes a fresh
// rooms list to every connection.
func (s *ChatService) CreateRoom(ctx context.Context, connID, name string) (string, error) {
	sess, err := s.session(connID)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrRoomNameRequired
	}

	room := &models.Room{
		ID:            s.opts.NewID(),
		Name:          name,
		OwnerID:       sess.UserID,
		History:       []models.Message{},
		BannedUserIDs: []string{},
		CreatedAt:     s.opts.Now(),
	}
	s.roomRecords[room.ID] = room
	_ = s.saveRooms(ctx)

	logger.Info("Room %s (%s) created by %s", room.Name, room.ID, sess.UserID)
	s.broadcastRoomList()
	return room.ID, nil
}

// JoinRoom moves the session into roomID. The previous room, if any, is left and
// fully notified before anything is emitted for the new room.
func (s *ChatService) JoinRoom(ctx context.Context, connID, roomID string) (*models.JoinRoomSuccess, error) {
	sess, err := s.session(connID)
	if err != nil {
		return nil, err
	}
	room, ok := s.roomRecords[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.IsBanned(sess.UserID) {
		return nil, ErrBanned
	}
	isOwner := room.IsOwner(sess.UserID)
	if room.IsDeleted() && !isOwner {
		return nil, ErrRoomDeleted
	}

	result := &models.JoinRoomSuccess{
		Room:    roomListing(room, isOwner),
		IsOwner: isOwner,
	}

	if sess.CurrentRoomID == roomID {
		result.History = slices.Clone(room.History)
		s.notify(connID, models.EventJoinRoomSuccess, result)
		return result, nil
	}

	if sess.InRoom() {
		s.leaveRoom(ctx, sess)
	}

	s.addMember(roomID, connID)
	sess.CurrentRoomID = roomID

	result.History = slices.Clone(room.History)
	s.notify(connID, models.EventJoinRoomSuccess, result)

	msg := models.SystemMessage(fmt.Sprintf("%q joined the room.", sess.Nickname))
	s.appendHistory(&room.History, msg)
	s.notifyRoom(roomID, models.EventChatMessage, msg, connID)
	s.notifyUserList(roomID)

	logger.Info("User %s joined room %s", sess.Nickname, roomID)
	return result, nil
}

// LeaveRoom returns the session to the lobby.
func (s *ChatService) LeaveRoom(ctx context.Context, connID, roomID string) error {
	sess, err := s.session(connID)
	if err != nil {
		return err
	}
	if !sess.InRoom() || (roomID != "" && sess.CurrentRoomID != roomID) {
		return ErrNotInRoom
	}
	left := sess.CurrentRoomID
	s.leaveRoom(ctx, sess)
	s.notify(connID, models.EventLeaveRoomSuccess, models.RoomNotice{RoomID: left})
	return nil
}

func (s *ChatService) leaveRoom(_ context.Context, sess *models.Session) {
	roomID := sess.CurrentRoomID
	s.removeMember(roomID, sess.ConnectionID)
	sess.CurrentRoomID = ""

	room, ok := s.roomRecords[roomID]
	if !ok {
		return
	}
	msg := models.SystemMessage(fmt.Sprintf("%q left the room.", sess.Nickname))
	s.appendHistory(&room.History, msg)
	s.notifyRoom(roomID, models.EventChatMessage, msg, "")
	s.notifyUserList(roomID)

	logger.Info("User %s left room %s", sess.Nickname, roomID)
}

func (s *ChatService) addMember(roomID, connID string) {
	members, ok := s.membership[roomID]
	if !ok {
		members = make(map[string]struct{})
		s.membership[roomID] = members
	}
	members[connID] = struct{}{}
}

func (s *ChatService) removeMember(roomID, connID string) {
	members, ok := s.membership[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(s.membership, roomID)
	}
}
