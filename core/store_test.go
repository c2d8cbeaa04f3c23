package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(testLogger())
}

func newTestUser(uid, username string) *User {
	u := NewUser(uid, username, UserProps{Role: "Member", EmailHash: "hash-" + uid})
	u.Attach(NewMockConn())
	return u
}

func TestJoinLeaveRoomConsistency(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	alice := newTestUser("1", "Alice")
	bob := newTestUser("2", "Bob")
	st.AddUser(alice)
	st.AddUser(bob)

	require.True(t, st.JoinRoom(room, alice))
	assert.True(t, room.HasMember(alice.UID))
	assert.True(t, alice.InRoom(room.Name))

	require.True(t, st.JoinRoom(room, bob))
	assert.Equal(t, 2, room.MemberCount())

	st.LeaveRoom(room, alice)
	assert.False(t, room.HasMember(alice.UID))
	assert.False(t, alice.InRoom(room.Name))
	assert.True(t, room.HasMember(bob.UID))

	// joining again after a leave works
	require.True(t, st.JoinRoom(room, alice))
	assert.True(t, room.HasMember(alice.UID))
	assert.True(t, alice.InRoom(room.Name))
}

func TestJoinRoomRefused(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, PrivateRoomName("bob"), RoomPrivate)
	st.AddRoom(room)
	carol := newTestUser("3", "Carol")
	st.AddUser(carol)

	conn := carol.connection().(*MockConn)
	before := len(conn.Sent())

	assert.False(t, st.JoinRoom(room, carol))
	assert.False(t, room.HasMember(carol.UID))
	assert.False(t, carol.InRoom(room.Name))
	// refusal is silent: no notification beyond the return value
	assert.Len(t, conn.Sent(), before)
}

func TestPrivateRoomLifecycle(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, PrivateRoomName("bob"), RoomPrivate)
	st.AddRoom(room)
	bob := newTestUser("2", "Bob")
	st.AddUser(bob)

	require.True(t, st.JoinRoom(room, bob))
	require.True(t, st.HasRoom(room.Name))

	st.LeaveRoom(room, bob)
	assert.False(t, st.HasRoom(room.Name), "empty private room should be deleted")

	// a deleted room cannot be found, so later joins fail upstream
	_, ok := st.Room(room.Name)
	assert.False(t, ok)
}

func TestPublicRoomSurvivesEmptiness(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	alice := newTestUser("1", "Alice")
	st.AddUser(alice)

	require.True(t, st.JoinRoom(room, alice))
	st.LeaveRoom(room, alice)
	assert.True(t, st.HasRoom("lobby"))
}

func TestAddRemoveUser(t *testing.T) {
	st := newTestStore()
	alice := newTestUser("1", "Alice")

	st.AddUser(alice)
	got, ok := st.User("1")
	require.True(t, ok)
	assert.Equal(t, alice, got)

	st.RemoveUser(alice)
	_, ok = st.User("1")
	assert.False(t, ok)
}

func TestUserByUsernameCaseInsensitive(t *testing.T) {
	st := newTestStore()
	alice := newTestUser("1", "Alice")
	st.AddUser(alice)

	got, ok := st.UserByUsername("aLiCe")
	require.True(t, ok)
	assert.Equal(t, "1", got.UID)

	_, ok = st.UserByUsername("nobody")
	assert.False(t, ok)
}

func TestDuplicateMutationRegistration(t *testing.T) {
	st := newTestStore()
	st.Register(MutationRoomAdd, func(s *State, p any) {
		t.Fatal("duplicate handler must not replace the original")
	})

	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	assert.True(t, st.HasRoom("lobby"))
}

func TestUnknownMutationIsNoOp(t *testing.T) {
	st := newTestStore()
	assert.NotPanics(t, func() {
		st.Dispatch("room.vaporize", nil)
	})
}
