package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"lanchat/internal/models"
	"lanchat/pkg/logger"
)

const DirectiveLobby = "lobby"

type Registration struct {
	Mode      models.Mode
	Scope     string
	UserID    string
	Directive string
}

// RegisterIdentity binds a nickname to a connection in the given mode. A second
// registration on the same connection replaces the first one.
func (s *ChatService) RegisterIdentity(ctx context.Context, connID string, mode models.Mode, nickname, userID string) (*Registration, error) {
	conn, ok := s.conns[connID]
	if !ok {
		return nil, ErrNotConnected
	}
	if mode != models.ModeLocal && mode != models.ModeOpen {
		return nil, ErrInvalidMode
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrNicknameRequired
	}

	if mode == models.ModeLocal {
		if owner, taken := s.scopeFor(conn.address).active[nickname]; taken && owner != connID {
			return nil, ErrNicknameTaken
		}
	}

	switch conn.mode {
	case models.ModeLocal:
		s.releaseLocal(conn, false)
	case models.ModeOpen:
		s.dropSession(ctx, connID)
	}

	if mode == models.ModeLocal {
		return s.registerLocal(ctx, conn, nickname), nil
	}
	return s.registerOpen(conn, nickname, userID), nil
}

func (s *ChatService) scopeFor(address string) *localScope {
	scope, ok := s.scopes[address]
	if !ok {
		scope = &localScope{
			address: address,
			active:  make(map[string]string),
			members: make(map[string]struct{}),
		}
		s.scopes[address] = scope
	}
	return scope
}

func (s *ChatService) registerLocal(ctx context.Context, conn *connection, nickname string) *Registration {
	scope := s.scopeFor(conn.address)

	if !slices.Contains(s.usedNicknames[conn.address], nickname) {
		s.usedNicknames[conn.address] = append(s.usedNicknames[conn.address], nickname)
		_ = s.saveNicknames(ctx)
	}

	conn.mode = models.ModeLocal
	conn.localNickname = nickname
	scope.active[nickname] = conn.id
	scope.members[conn.id] = struct{}{}

	s.notify(conn.id, models.EventChatHistory, slices.Clone(scope.history))

	msg := models.SystemMessage(fmt.Sprintf("%q joined the chat.", nickname))
	s.appendHistory(&scope.history, msg)
	for member := range scope.members {
		if member != conn.id {
			s.notify(member, models.EventChatMessage, msg)
		}
	}

	logger.Info("User %s joined local scope %s", nickname, conn.address)
	return &Registration{Mode: models.ModeLocal, Scope: conn.address}
}

func (s *ChatService) registerOpen(conn *connection, nickname, userID string) *Registration {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = s.opts.NewID()
	}

	conn.mode = models.ModeOpen
	s.sessions[conn.id] = &models.Session{
		ConnectionID: conn.id,
		UserID:       userID,
		Nickname:     nickname,
	}

	logger.Info("User %s (%s) entered the lobby", nickname, userID)
	return &Registration{Mode: models.ModeOpen, Scope: DirectiveLobby, UserID: userID, Directive: DirectiveLobby}
}

// releaseLocal frees the connection's nickname in its scope. announce controls the
// "left" system message, which only a real departure produces.
func (s *ChatService) releaseLocal(conn *connection, announce bool) {
	scope, ok := s.scopes[conn.address]
	nickname := conn.localNickname
	conn.mode = ""
	conn.localNickname = ""
	if !ok {
		return
	}

	if scope.active[nickname] == conn.id {
		delete(scope.active, nickname)
	}
	delete(scope.members, conn.id)

	if !announce || nickname == "" {
		return
	}
	msg := models.SystemMessage(fmt.Sprintf("%q left the chat.", nickname))
	s.appendHistory(&scope.history, msg)
	for member := range scope.members {
		s.notify(member, models.EventChatMessage, msg)
	}
	logger.Info("User %s left local scope %s", nickname, conn.address)
}

// dropSession leaves the session's room, if any, and removes the session.
func (s *ChatService) dropSession(ctx context.Context, connID string) {
	sess, ok := s.sessions[connID]
	if !ok {
		return
	}
	if sess.InRoom() {
		s.leaveRoom(ctx, sess)
	}
	delete(s.sessions, connID)
	if conn, ok := s.conns[connID]; ok {
		conn.mode = ""
	}
}
