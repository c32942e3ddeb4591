package services

import (
	"testing"

	"lanchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	f.svc.Connect("anon", "addr")

	_, err := f.svc.CreateRoom(f.ctx, "anon", "Test")
	require.ErrorIs(t, err, ErrIdentityRequired)
	assert.Equal(t, 0, f.store.roomSaves)
}

func TestCreateRoom_PersistsAndBroadcastsToEveryConnection(t *testing.T) {
	f := newFixture(t)
	f.open("owner", "u1", "Owner")
	f.svc.Connect("anon", "addr")
	f.rec.reset()

	id := f.createRoom("owner", "  Test  ")

	require.Equal(t, 1, f.store.roomSaves)
	stored := f.store.rooms[id]
	require.NotNil(t, stored)
	assert.Equal(t, "Test", stored.Name)
	assert.Equal(t, "u1", stored.OwnerID)
	assert.Empty(t, stored.History)
	assert.Empty(t, stored.BannedUserIDs)
	assert.Nil(t, stored.DeletedAt)

	for _, conn := range []string{"owner", "anon"} {
		lists := f.rec.named(conn, models.EventRoomsList)
		require.Len(t, lists, 1, conn)
		listing := lists[0].payload.(map[string]models.RoomListing)
		require.Contains(t, listing, id)
		assert.Equal(t, conn == "owner", listing[id].IsOwner)
	}

	_, err := f.svc.CreateRoom(f.ctx, "owner", " ")
	require.ErrorIs(t, err, ErrRoomNameRequired)
}

func TestJoinRoom_PreconditionOrder(t *testing.T) {
	f := newFixture(t)
	f.open("owner", "u1", "Owner")
	f.open("guest", "u2", "Guest")
	room := f.createRoom("owner", "Test")

	_, err := f.svc.JoinRoom(f.ctx, "guest", "missing")
	require.ErrorIs(t, err, ErrRoomNotFound)

	_, err = f.svc.BanUser(f.ctx, "owner", "u2", room)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteRoom(f.ctx, "owner", room))

	// Banned wins over deleted.
	_, err = f.svc.JoinRoom(f.ctx, "guest", room)
	require.ErrorIs(t, err, ErrBanned)

	f.open("other", "u3", "Other")
	_, err = f.svc.JoinRoom(f.ctx, "other", room)
	require.ErrorIs(t, err, ErrRoomDeleted)

	// The owner can still enter a soft-deleted room.
	res := f.join("owner", room)
	assert.True(t, res.IsOwner)
	assert.NotNil(t, res.Room.DeletedAt)

	f.svc.Connect("anon", "addr")
	_, err = f.svc.JoinRoom(f.ctx, "anon", room)
	require.ErrorIs(t, err, ErrIdentityRequired)
}

func TestJoinRoom_NotificationsAndOrdering(t *testing.T) {
	f := newFixture(t)
	f.open("owner", "u1", "Owner")
	f.open("guest", "u2", "Guest")
	room := f.createRoom("owner", "Test")
	f.join("owner", room)
	f.svc.SendMessage(f.ctx, "owner", "hi", room)
	f.rec.reset()

	res := f.join("guest", room)

	assert.False(t, res.IsOwner)
	assert.Equal(t, "Test", res.Room.Name)
	assert.Equal(t, []string{`"Owner" joined the room.`, "hi"}, messageTexts(res.History))

	// Joiner: success first, then the user list; never its own join message.
	assert.Equal(t, []string{models.EventJoinRoomSuccess, models.EventRoomUserList}, f.rec.eventNames("guest"))

	// Other occupants: join message, then the user list.
	assert.Equal(t, []string{models.EventChatMessage, models.EventRoomUserList}, f.rec.eventNames("owner"))
	joined := f.rec.named("owner", models.EventChatMessage)[0].payload.(models.Message)
	assert.Equal(t, models.MessageTypeSystem, joined.Type)
	assert.Equal(t, `"Guest" joined the room.`, joined.Text)

	users := f.rec.named("guest", models.EventRoomUserList)[0].payload.([]models.RoomUser)
	assert.Equal(t, []models.RoomUser{{ID: "u2", Nickname: "Guest"}, {ID: "u1", Nickname: "Owner"}}, users)

	stored, _ := f.svc.Room(room)
	assert.Len(t, stored.History, 3)
}

func TestJoinRoom_SwitchingRoomsMovesTheUser(t *testing.T) {
	f := newFixture(t)
	f.open("a", "ua", "A")
	f.open("b", "ub", "B")
	f.open("mover", "um", "Mover")
	roomA := f.createRoom("a", "Room A")
	roomB := f.createRoom("b", "Room B")
	f.join("a", roomA)
	f.join("b", roomB)
	f.join("mover", roomA)
	require.Len(t, f.svc.RoomUsers(roomA), 2)
	require.Len(t, f.svc.RoomUsers(roomB), 1)
	f.rec.reset()

	f.join("mover", roomB)

	assert.Equal(t, []string{"ua"}, userIDs(f.svc.RoomUsers(roomA)))
	assert.ElementsMatch(t, []string{"ub", "um"}, userIDs(f.svc.RoomUsers(roomB)))

	sess, _ := f.svc.Session("mover")
	assert.Equal(t, roomB, sess.CurrentRoomID)

	// Room A hears about the departure before anything is emitted for room B.
	var leftIdx, joinIdx = -1, -1
	for i, n := range f.rec.events {
		if n.conn == "a" && n.event == models.EventRoomUserList && leftIdx < 0 {
			leftIdx = i
		}
		if n.conn == "mover" && n.event == models.EventJoinRoomSuccess {
			joinIdx = i
		}
	}
	require.GreaterOrEqual(t, leftIdx, 0)
	require.GreaterOrEqual(t, joinIdx, 0)
	assert.Less(t, leftIdx, joinIdx)

	usersA := f.rec.named("a", models.EventRoomUserList)[0].payload.([]models.RoomUser)
	assert.Equal(t, []string{"ua"}, userIDs(usersA))
	leftMsg := f.rec.named("a", models.EventChatMessage)[0].payload.(models.Message)
	assert.Equal(t, `"Mover" left the room.`, leftMsg.Text)

	// The mover receives nothing for room A after leaving it.
	for _, n := range f.rec.to("mover") {
		if n.event == models.EventRoomUserList {
			users := n.payload.([]models.RoomUser)
			assert.NotContains(t, userIDs(users), "ua")
		}
	}
}

func TestJoinRoom_RejoinSameRoomIsQuiet(t *testing.T) {
	f := newFixture(t)
	f.open("owner", "u1", "Owner")
	room := f.createRoom("owner", "Test")
	f.join("owner", room)
	f.rec.reset()

	res := f.join("owner", room)

	assert.Len(t, res.History, 1)
	assert.Equal(t, []string{models.EventJoinRoomSuccess}, f.rec.eventNames("owner"))
	stored, _ := f.svc.Room(room)
	assert.Len(t, stored.History, 1)
}

func TestLeaveRoom(t *testing.T) {
	f := newFixture(t)
	f.open("owner", "u1", "Owner")
	f.open("guest", "u2", "Guest")
	room := f.createRoom("owner", "Test")
	f.join("owner", room)

	err := f.svc.LeaveRoom(f.ctx, "guest", room)
	require.ErrorIs(t, err, ErrNotInRoom)

	f.join("guest", room)
	f.rec.reset()

	require.NoError(t, f.svc.LeaveRoom(f.ctx, "guest", room))
	assert.Equal(t, []string{models.EventLeaveRoomSuccess}, f.rec.eventNames("guest"))
	assert.Equal(t, []string{"u1"}, userIDs(f.svc.RoomUsers(room)))
	assert.Equal(t, []string{models.EventChatMessage, models.EventRoomUserList}, f.rec.eventNames("owner"))
}

func TestDisconnect_LeavesRoomAndDropsSession(t *testing.T) {
	f := newFixture(t)
	f.open("owner", "u1", "Owner")
	f.open("guest", "u2", "Guest")
	room := f.createRoom("owner", "Test")
	f.join("owner", room)
	f.join("guest", room)
	f.rec.reset()

	f.svc.Disconnect(f.ctx, "guest")

	_, ok := f.svc.Session("guest")
	assert.False(t, ok)
	assert.Equal(t, []string{"u1"}, userIDs(f.svc.RoomUsers(room)))
	assert.Equal(t, []string{models.EventChatMessage, models.EventRoomUserList}, f.rec.eventNames("owner"))
	assert.Empty(t, f.rec.to("guest"))

	// Unknown connections are ignored.
	f.svc.Disconnect(f.ctx, "guest")
}

func TestListRooms_SoftDeletedVisibleOnlyToOwner(t *testing.T) {
	f := newFixture(t)
	f.open("owner", "u1", "Owner")
	f.open("guest", "u2", "Guest")
	live := f.createRoom("owner", "Live")
	gone := f.createRoom("owner", "Test")
	require.NoError(t, f.svc.DeleteRoom(f.ctx, "owner", gone))

	guestView := f.svc.ListRooms("u2")
	assert.Contains(t, guestView, live)
	assert.NotContains(t, guestView, gone)

	anonView := f.svc.ListRooms("")
	assert.NotContains(t, anonView, gone)

	ownerView := f.svc.ListRooms("u1")
	require.Contains(t, ownerView, gone)
	assert.True(t, ownerView[gone].IsOwner)
	require.NotNil(t, ownerView[gone].DeletedAt)
	assert.Equal(t, f.now, *ownerView[gone].DeletedAt)

	f.now = f.now.Add(DefaultRestoreWindow)
	require.NoError(t, f.svc.RestoreRoom(f.ctx, "owner", gone))
	assert.Contains(t, f.svc.ListRooms("u2"), gone)
	assert.False(t, f.svc.ListRoomsFor("guest")[gone].IsOwner)
}

func TestLoad_RestoresRoomsAndTrimsHistory(t *testing.T) {
	f := newFixture(t)
	history := make([]models.Message, 0, 120)
	for i := 0; i < 120; i++ {
		history = append(history, models.SystemMessage("m"))
	}
	f.store.rooms = map[string]*models.Room{
		"r1": {Name: "Persisted", OwnerID: "u1", History: history},
	}

	f.svc.Load(f.ctx)

	room, ok := f.svc.Room("r1")
	require.True(t, ok)
	assert.Equal(t, "r1", room.ID)
	assert.Len(t, room.History, DefaultHistoryLimit)
}

func TestLoad_ErrorsStartEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.loadErr = errDisk

	f.svc.Load(f.ctx)

	assert.Empty(t, f.svc.ListRooms(""))
}
