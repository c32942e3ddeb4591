package services

import (
	"context"
	"slices"
	"strings"

	"lanchat/internal/models"
)

// SendMessage routes a chat message. Messages from unregistered connections, or for
// a room the connection is not joined to, are dropped.
func (s *ChatService) SendMessage(_ context.Context, connID, text, roomID string) {
	if text == "" {
		return
	}
	conn, ok := s.conns[connID]
	if !ok {
		return
	}

	switch conn.mode {
	case models.ModeLocal:
		s.sendLocal(conn, text)
	case models.ModeOpen:
		s.sendOpen(connID, text, roomID)
	}
}

func (s *ChatService) sendLocal(conn *connection, text string) {
	scope, ok := s.scopes[conn.address]
	if !ok {
		return
	}
	msg := models.Message{Type: models.MessageTypeChat, Nickname: conn.localNickname, Text: text}
	s.appendHistory(&scope.history, msg)
	for member := range scope.members {
		s.notify(member, models.EventChatMessage, msg)
	}
}

func (s *ChatService) sendOpen(connID, text, roomID string) {
	sess, ok := s.sessions[connID]
	if !ok || !sess.InRoom() || sess.CurrentRoomID != roomID {
		return
	}
	room, ok := s.roomRecords[roomID]
	if !ok {
		return
	}

	msg := models.Message{Type: models.MessageTypeChat, Nickname: sess.Nickname, Text: text}

	tagged := s.resolveMentions(roomID, ParseMentions(text))
	if len(tagged) > 0 {
		for _, tag := range tagged {
			msg.Mentions = append(msg.Mentions, tag.userID)
		}
		notice := models.MentionNotice{RoomID: roomID, RoomName: room.Name, Message: msg}
		for _, tag := range tagged {
			for _, target := range tag.connIDs {
				s.notify(target, models.EventMentioned, notice)
			}
		}
	}

	s.appendHistory(&room.History, msg)
	s.notifyRoom(roomID, models.EventChatMessage, msg, "")
}

// ParseMentions returns the nickname part of every "@name" token in order of
// appearance, duplicates included. A bare "@" is not a mention.
func ParseMentions(text string) []string {
	var names []string
	for _, token := range strings.Fields(text) {
		if name, ok := strings.CutPrefix(token, "@"); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

type mention struct {
	userID  string
	connIDs []string
}

// resolveMentions matches names exactly against the room's occupants. Each user
// appears once, in order of first mention.
func (s *ChatService) resolveMentions(roomID string, names []string) []mention {
	if len(names) == 0 {
		return nil
	}

	byNickname := make(map[string][]*models.Session)
	for connID := range s.membership[roomID] {
		if sess, ok := s.sessions[connID]; ok {
			byNickname[sess.Nickname] = append(byNickname[sess.Nickname], sess)
		}
	}

	var tagged []mention
	index := make(map[string]int)
	for _, name := range names {
		occupants := byNickname[name]
		slices.SortFunc(occupants, func(a, b *models.Session) int {
			return strings.Compare(a.ConnectionID, b.ConnectionID)
		})
		for _, sess := range occupants {
			i, seen := index[sess.UserID]
			if !seen {
				i = len(tagged)
				index[sess.UserID] = i
				tagged = append(tagged, mention{userID: sess.UserID})
			}
			if !slices.Contains(tagged[i].connIDs, sess.ConnectionID) {
				tagged[i].connIDs = append(tagged[i].connIDs, sess.ConnectionID)
			}
		}
	}
	return tagged
}
