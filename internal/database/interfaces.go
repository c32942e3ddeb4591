package database

import (
	"context"

	"lanchat/internal/models"
)

// RoomStore persists the whole open-mode room map. Save rewrites everything.
type RoomStore interface {
	LoadRooms(ctx context.Context) (map[string]*models.Room, error)
	SaveRooms(ctx context.Context, rooms map[string]*models.Room) error
}

// NicknameStore persists the local-mode used nicknames, keyed by network address.
type NicknameStore interface {
	LoadNicknames(ctx context.Context) (map[string][]string, error)
	SaveNicknames(ctx context.Context, nicknames map[string][]string) error
}

type Store interface {
	RoomStore
	NicknameStore
	Close() error
}
