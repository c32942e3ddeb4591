package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"testing"
	"time"

	"lanchat/internal/database"
	"lanchat/internal/models"

	"github.com/stretchr/testify/require"
)

type notification struct {
	conn    string
	event   string
	payload any
}

type recorder struct {
	events []notification
}

func (r *recorder) Notify(conn, event string, payload any) {
	r.events = append(r.events, notification{conn: conn, event: event, payload: payload})
}

func (r *recorder) to(conn string) []notification {
	var out []notification
	for _, n := range r.events {
		if n.conn == conn {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) named(conn, event string) []notification {
	var out []notification
	for _, n := range r.to(conn) {
		if n.event == event {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) eventNames(conn string) []string {
	var out []string
	for _, n := range r.to(conn) {
		out = append(out, n.event)
	}
	return out
}

func (r *recorder) reset() {
	r.events = nil
}

type memStore struct {
	rooms         map[string]*models.Room
	nicknames     map[string][]string
	roomSaves     int
	nicknameSaves int
	saveErr       error
	loadErr       error
}

var (
	_ database.RoomStore     = (*memStore)(nil)
	_ database.NicknameStore = (*memStore)(nil)
)

func (m *memStore) LoadRooms(_ context.Context) (map[string]*models.Room, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]*models.Room, len(m.rooms))
	for id, r := range m.rooms {
		out[id] = r.Clone()
	}
	return out, nil
}

func (m *memStore) SaveRooms(_ context.Context, rooms map[string]*models.Room) error {
	m.roomSaves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rooms = make(map[string]*models.Room, len(rooms))
	for id, r := range rooms {
		m.rooms[id] = r.Clone()
	}
	return nil
}

func (m *memStore) LoadNicknames(_ context.Context) (map[string][]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return maps.Clone(m.nicknames), nil
}

func (m *memStore) SaveNicknames(_ context.Context, nicknames map[string][]string) error {
	m.nicknameSaves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.nicknames = make(map[string][]string, len(nicknames))
	for k, v := range nicknames {
		m.nicknames[k] = slices.Clone(v)
	}
	return nil
}

var errDisk = errors.New("disk full")

type fixture struct {
	t     *testing.T
	ctx   context.Context
	svc   *ChatService
	rec   *recorder
	store *memStore
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		rec:   &recorder{},
		store: &memStore{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	seq := 0
	f.svc = NewChatService(f.rec, f.store, f.store, Options{
		Now: func() time.Time { return f.now },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	return f
}

// open connects connID and registers it in open mode.
func (f *fixture) open(connID, userID, nickname string) {
	f.t.Helper()
	f.svc.Connect(connID, "10.0.0.1")
	_, err := f.svc.RegisterIdentity(f.ctx, connID, models.ModeOpen, nickname, userID)
	require.NoError(f.t, err)
}

func (f *fixture) local(connID, address, nickname string) error {
	f.t.Helper()
	f.svc.Connect(connID, address)
	_, err := f.svc.RegisterIdentity(f.ctx, connID, models.ModeLocal, nickname, "")
	return err
}

func (f *fixture) createRoom(connID, name string) string {
	f.t.Helper()
	id, err := f.svc.CreateRoom(f.ctx, connID, name)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) join(connID, roomID string) *models.JoinRoomSuccess {
	f.t.Helper()
	res, err := f.svc.JoinRoom(f.ctx, connID, roomID)
	require.NoError(f.t, err)
	return res
}

func userIDs(users []models.RoomUser) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func messageTexts(history []models.Message) []string {
	out := make([]string, 0, len(history))
	for _, m := range history {
		out = append(out, m.Text)
	}
	return out
}
