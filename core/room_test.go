package core

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePayload[T any](t *testing.T, e *Event) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(e.Payload, &v))
	return v
}

func historyBodies(r *Room) []string {
	var bodies []string
	for _, m := range r.History() {
		bodies = append(bodies, m.Body)
	}
	return bodies
}

func TestHistoryBound(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	alice := newTestUser("1", "Alice")
	st.AddUser(alice)
	require.True(t, st.JoinRoom(room, alice))

	for i := 1; i <= 4; i++ {
		room.Send(NewMessage(alice, fmt.Sprintf("m%d", i), room.Name))
	}

	assert.Equal(t, []string{"m2", "m3", "m4"}, historyBodies(room))
}

func TestCanJoin(t *testing.T) {
	st := newTestStore()
	bob := newTestUser("2", "Bob")
	carol := newTestUser("3", "Carol")

	tests := []struct {
		name string
		room *Room
		user *User
		want bool
	}{
		{"public open to all", NewRoom(st, "lobby", RoomPublic), carol, true},
		{"private invitee", NewRoom(st, "private-bob", RoomPrivate), bob, true},
		{"private invitee is case-insensitive", NewRoom(st, PrivateRoomName("BOB"), RoomPrivate), bob, true},
		{"private outsider", NewRoom(st, "private-bob", RoomPrivate), carol, false},
		{"private multi-invitee", NewRoom(st, PrivateRoomName("bob", "carol"), RoomPrivate), carol, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.room.CanJoin(tc.user))
		})
	}
}

func TestScrollback(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	alice := newTestUser("1", "Alice")
	st.AddUser(alice)
	require.True(t, st.JoinRoom(room, alice))

	room.Send(NewMessage(alice, "first", room.Name))
	room.Send(NewMessage(alice, "second", room.Name))

	bob := newTestUser("2", "Bob")
	st.AddUser(bob)
	require.True(t, st.JoinRoom(room, bob))

	conn := bob.connection().(*MockConn)
	scrollbacks := conn.eventsOfType(EventScrollback)
	require.Len(t, scrollbacks, 1)

	payload := decodePayload[ScrollbackPayload](t, scrollbacks[0])
	assert.Equal(t, room.Name, payload.RoomID)
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "first", payload.Messages[0].Message)
	assert.Equal(t, "second", payload.Messages[1].Message)
}

func TestNotifyJoin(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	alice := newTestUser("1", "Alice")
	st.AddUser(alice)
	require.True(t, st.JoinRoom(room, alice))

	bob := newTestUser("2", "Bob")
	st.AddUser(bob)
	require.True(t, st.JoinRoom(room, bob))

	// the joiner learns who is here
	bobConn := bob.connection().(*MockConn)
	joined := bobConn.eventsOfType(EventRoomJoined)
	require.Len(t, joined, 1)
	payload := decodePayload[RoomJoinedPayload](t, joined[0])
	assert.Equal(t, room.Name, payload.RoomID)
	assert.Len(t, payload.Users, 2)

	// the rest of the room learns about the arrival; the joiner does not
	aliceConn := alice.connection().(*MockConn)
	arrivals := aliceConn.eventsOfType(EventUserJoined)
	require.Len(t, arrivals, 1)
	arrival := decodePayload[UserJoinedPayload](t, arrivals[0])
	assert.Equal(t, "Bob", arrival.User.Username)
	assert.Empty(t, bobConn.eventsOfType(EventUserJoined))
}

func TestSendSkipsDisconnectedMember(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	alice := newTestUser("1", "Alice")
	bob := newTestUser("2", "Bob")
	st.AddUser(alice)
	st.AddUser(bob)
	require.True(t, st.JoinRoom(room, alice))
	require.True(t, st.JoinRoom(room, bob))

	bob.Detach()

	assert.NotPanics(t, func() {
		room.Send(NewMessage(alice, "hello", room.Name))
	})

	conn := alice.connection().(*MockConn)
	assert.Equal(t, 1, conn.countType(EventChatMessage))
}

func TestMessageEncode(t *testing.T) {
	alice := newTestUser("1", "Alice")
	m := NewMessage(alice, "hello", "lobby")

	payload := m.Encode()
	assert.Equal(t, m.ID(), payload.MsgID)
	assert.Equal(t, "hello", payload.Message)
	assert.Equal(t, "lobby", payload.RoomID)
	assert.Equal(t, m.SentAt, payload.Timestamp)
	assert.Equal(t, "Alice", payload.User)
	assert.Equal(t, "Member", payload.Rank)
	assert.Equal(t, "hash-1", payload.Gravatar)
}

func TestMessageFingerprint(t *testing.T) {
	alice := newTestUser("1", "Alice")
	m := NewMessage(alice, "hello", "lobby")

	// deterministic over content
	assert.Equal(t, m.fingerprint(), m.ID())

	// a transformed body carries a new fingerprint
	next := m.WithBody("bye")
	assert.NotEqual(t, m.ID(), next.ID())
	assert.Equal(t, m.SentAt, next.SentAt)
}

func TestPrune(t *testing.T) {
	st := newTestStore()
	room := NewRoom(st, "lobby", RoomPublic)
	st.AddRoom(room)
	alice := newTestUser("1", "Alice")
	st.AddUser(alice)
	require.True(t, st.JoinRoom(room, alice))

	room.Send(NewMessage(alice, "hello", room.Name))
	require.NotEmpty(t, room.History())

	room.Prune()
	assert.Empty(t, room.History())

	conn := alice.connection().(*MockConn)
	assert.Equal(t, 1, conn.countType(EventPrune))
}
