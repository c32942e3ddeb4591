package services

import (
	"context"
	"fmt"
	"slices"

	"lanchat/internal/models"
	"lanchat/pkg/logger"
)

// ownedRoom resolves roomID and checks the connection's identity owns it.
func (s *ChatService) ownedRoom(connID, roomID string) (*models.Session, *models.Room, error) {
	sess, err := s.session(connID)
	if err != nil {
		return nil, nil, err
	}
	room, ok := s.roomRecords[roomID]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	if !room.IsOwner(sess.UserID) {
		return nil, nil, ErrNotAuthorized
	}
	return sess, room, nil
}

// BanUser bans targetUserID from roomID, evicting any of the target's connections
// currently in the room. It returns the target's nickname.
func (s *ChatService) BanUser(ctx context.Context, connID, targetUserID, roomID string) (string, error) {
	sess, room, err := s.ownedRoom(connID, roomID)
	if err != nil {
		return "", err
	}
	if room.IsBanned(targetUserID) {
		return "", ErrAlreadyBanned
	}
	if targetUserID == sess.UserID {
		return "", ErrCannotBanSelf
	}

	nickname := s.nicknameOf(targetUserID, roomID)

	room.BannedUserIDs = append(room.BannedUserIDs, targetUserID)
	_ = s.saveRooms(ctx)

	targets := s.roomConnectionsOf(roomID, targetUserID)
	for _, target := range targets {
		s.removeMember(roomID, target)
		s.sessions[target].CurrentRoomID = ""
		s.notify(target, models.EventBanned, models.RoomNotice{
			RoomID:   roomID,
			RoomName: room.Name,
			Message:  fmt.Sprintf("You were banned from %q.", room.Name),
		})
	}

	msg := models.SystemMessage(fmt.Sprintf("%q was banned from the room.", nickname))
	s.appendHistory(&room.History, msg)
	s.notifyRoom(roomID, models.EventChatMessage, msg, "")
	s.notifyUserList(roomID)

	s.notify(connID, models.EventBanSuccess, models.BanSuccess{
		RoomID:   roomID,
		UserID:   targetUserID,
		Nickname: nickname,
		Message:  fmt.Sprintf("%q has been banned.", nickname),
	})

	logger.Info("User %s banned from room %s by %s", targetUserID, roomID, sess.UserID)
	return nickname, nil
}

// nicknameOf prefers an occupant of roomID, then any live session, then the id itself.
func (s *ChatService) nicknameOf(userID, roomID string) string {
	fallback := ""
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if sess.CurrentRoomID == roomID {
			return sess.Nickname
		}
		if fallback == "" {
			fallback = sess.Nickname
		}
	}
	if fallback != "" {
		return fallback
	}
	return userID
}

func (s *ChatService) roomConnectionsOf(roomID, userID string) []string {
	var conns []string
	for connID := range s.membership[roomID] {
		if sess, ok := s.sessions[connID]; ok && sess.UserID == userID {
			conns = append(conns, connID)
		}
	}
	slices.Sort(conns)
	return conns
}

// DeleteRoom soft-deletes roomID and evicts every occupant.
func (s *ChatService) DeleteRoom(ctx context.Context, connID, roomID string) error {
	sess, room, err := s.ownedRoom(connID, roomID)
	if err != nil {
		return err
	}
	if room.IsDeleted() {
		return ErrAlreadyDeleted
	}

	now := s.opts.Now()
	room.DeletedAt = &now
	_ = s.saveRooms(ctx)

	notice := models.RoomNotice{
		RoomID:   roomID,
		RoomName: room.Name,
		Message:  fmt.Sprintf("Room %q was deleted by its owner.", room.Name),
	}
	s.evictOccupants(roomID, notice)

	s.appendHistory(&room.History, models.SystemMessage(notice.Message))

	s.notify(connID, models.EventDeleteSuccess, models.RoomNotice{
		RoomID:   roomID,
		RoomName: room.Name,
		Message:  fmt.Sprintf("Room %q deleted. It can be restored for %s.", room.Name, s.opts.RestoreWindow),
	})
	s.broadcastRoomList()

	logger.Info("Room %s deleted by %s", roomID, sess.UserID)
	return nil
}

// evictOccupants sends notice as "room deleted" to every occupant of roomID, returns
// their sessions to the lobby and drops the room's membership.
func (s *ChatService) evictOccupants(roomID string, notice models.RoomNotice) {
	occupants := make([]string, 0, len(s.membership[roomID]))
	for occupant := range s.membership[roomID] {
		occupants = append(occupants, occupant)
	}
	slices.Sort(occupants)
	for _, occupant := range occupants {
		s.notify(occupant, models.EventRoomDeleted, notice)
		if occ, ok := s.sessions[occupant]; ok {
			occ.CurrentRoomID = ""
		}
	}
	delete(s.membership, roomID)
}

// RestoreRoom clears the soft-delete mark while the restore window is open. The
// window end is inclusive.
func (s *ChatService) RestoreRoom(ctx context.Context, connID, roomID string) error {
	sess, room, err := s.ownedRoom(connID, roomID)
	if err != nil {
		return err
	}
	if !room.IsDeleted() {
		return ErrNotDeleted
	}
	if s.opts.Now().Sub(*room.DeletedAt) > s.opts.RestoreWindow {
		return ErrRestoreWindowExpired
	}

	room.DeletedAt = nil
	_ = s.saveRooms(ctx)

	s.notify(connID, models.EventRestoreSuccess, models.RoomNotice{
		RoomID:   roomID,
		RoomName: room.Name,
		Message:  fmt.Sprintf("Room %q restored.", room.Name),
	})
	s.broadcastRoomList()

	logger.Info("Room %s restored by %s", roomID, sess.UserID)
	return nil
}

// PurgeExpired physically removes soft-deleted rooms whose restore window has
// elapsed and returns their ids. Nothing calls it unless purging is configured.
func (s *ChatService) PurgeExpired(ctx context.Context) []string {
	now := s.opts.Now()
	var purged []string
	for id, room := range s.roomRecords {
		if room.IsDeleted() && now.Sub(*room.DeletedAt) > s.opts.RestoreWindow {
			purged = append(purged, id)
		}
	}
	if len(purged) == 0 {
		return nil
	}

	slices.Sort(purged)
	for _, id := range purged {
		room := s.roomRecords[id]
		s.evictOccupants(id, models.RoomNotice{
			RoomID:   id,
			RoomName: room.Name,
			Message:  fmt.Sprintf("Room %q was permanently removed.", room.Name),
		})
		delete(s.roomRecords, id)
	}
	_ = s.saveRooms(ctx)
	s.broadcastRoomList()

	logger.Info("Purged %d expired rooms", len(purged))
	return purged
}
