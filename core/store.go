package core

import (
	"log/slog"
	"strings"
	"sync"
)

// Mutation names.
const (
	MutationRoomAdd    = "room.add"
	MutationRoomDelete = "room.delete"
	MutationRoomJoin   = "room.join"
	MutationRoomLeave  = "room.leave"
	MutationUserAdd    = "user.add"
	MutationUserRemove = "user.remove"
)

// State is the canonical room/user collection pair. Mutation handlers receive
// it mutable; everything else reads it through the store's accessors.
type State struct {
	rooms map[string]*Room
	users map[string]*User
}

// MutationFunc applies one named change to the state. Handlers run under the
// store lock: they must be idempotent and must not call Dispatch themselves.
type MutationFunc func(s *State, payload any)

type roomPayload struct{ room *Room }
type userPayload struct{ user *User }
type membershipPayload struct {
	room *Room
	user *User
}

// Store is the single authority over the room and user collections. All
// writes go through Dispatch; readers never observe a partially-applied
// mutation.
type Store struct {
	mu        sync.RWMutex
	state     *State
	mutations map[string]MutationFunc
	logger    *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	st := &Store{
		state: &State{
			rooms: make(map[string]*Room),
			users: make(map[string]*User),
		},
		mutations: make(map[string]MutationFunc),
		logger:    logger.With(slog.String("component", "store")),
	}
	st.registerChatMutations()
	return st
}

// Register adds a named mutation handler. A second registration under an
// existing name logs and no-ops so a misconfigured extension degrades instead
// of crashing the hub.
func (st *Store) Register(name string, m MutationFunc) {
	if _, ok := st.mutations[name]; ok {
		st.logger.Warn("duplicate mutation", slog.String("name", name))
		return
	}
	st.mutations[name] = m
}

// Dispatch applies the named mutation under the store lock. Unknown names log
// and no-op.
func (st *Store) Dispatch(name string, payload any) {
	m, ok := st.mutations[name]
	if !ok {
		st.logger.Warn("unknown mutation", slog.String("name", name))
		return
	}
	st.mu.Lock()
	m(st.state, payload)
	st.mu.Unlock()
}

func (st *Store) registerChatMutations() {
	st.Register(MutationRoomAdd, func(s *State, p any) {
		if rp, ok := p.(roomPayload); ok {
			s.rooms[rp.room.Name] = rp.room
		}
	})
	st.Register(MutationRoomDelete, func(s *State, p any) {
		if rp, ok := p.(roomPayload); ok {
			delete(s.rooms, rp.room.Name)
		}
	})
	st.Register(MutationRoomJoin, func(s *State, p any) {
		if mp, ok := p.(membershipPayload); ok {
			mp.room.addMember(mp.user.UID)
			mp.user.addRoom(mp.room.Name)
		}
	})
	st.Register(MutationRoomLeave, func(s *State, p any) {
		if mp, ok := p.(membershipPayload); ok {
			mp.room.removeMember(mp.user.UID)
			mp.user.removeRoom(mp.room.Name)
		}
	})
	st.Register(MutationUserAdd, func(s *State, p any) {
		if up, ok := p.(userPayload); ok {
			s.users[up.user.UID] = up.user
		}
	})
	st.Register(MutationUserRemove, func(s *State, p any) {
		if up, ok := p.(userPayload); ok {
			delete(s.users, up.user.UID)
		}
	})
}

// AddRoom registers a room with the store.
func (st *Store) AddRoom(room *Room) {
	st.Dispatch(MutationRoomAdd, roomPayload{room})
}

// DeleteRoom removes a room from the store.
func (st *Store) DeleteRoom(room *Room) {
	st.Dispatch(MutationRoomDelete, roomPayload{room})
}

// JoinRoom adds the user to the room and keeps both membership sides
// consistent. It refuses without mutation or notification when the room's
// join policy rejects the user. Notifications happen after the mutation,
// outside the store lock.
func (st *Store) JoinRoom(room *Room, user *User) bool {
	if room == nil || !room.CanJoin(user) {
		return false
	}
	st.Dispatch(MutationRoomJoin, membershipPayload{room: room, user: user})
	room.NotifyJoin(user)
	return true
}

// LeaveRoom is the symmetric removal. Private rooms exist only for their
// invitees: once the last member is gone the room itself goes.
func (st *Store) LeaveRoom(room *Room, user *User) {
	st.Dispatch(MutationRoomLeave, membershipPayload{room: room, user: user})
	room.NotifyLeave(user)
	if room.Type == RoomPrivate && room.MemberCount() == 0 {
		st.DeleteRoom(room)
	}
}

// AddUser records an authenticated user.
func (st *Store) AddUser(user *User) {
	st.Dispatch(MutationUserAdd, userPayload{user})
}

// RemoveUser forgets a user on disconnect.
func (st *Store) RemoveUser(user *User) {
	st.Dispatch(MutationUserRemove, userPayload{user})
}

func (st *Store) Room(name string) (*Room, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	room, ok := st.state.rooms[name]
	return room, ok
}

func (st *Store) HasRoom(name string) bool {
	_, ok := st.Room(name)
	return ok
}

func (st *Store) User(uid string) (*User, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	user, ok := st.state.users[uid]
	return user, ok
}

// UserByUsername looks a user up under case-insensitive comparison.
func (st *Store) UserByUsername(username string) (*User, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	want := strings.ToLower(username)
	for _, u := range st.state.users {
		if strings.ToLower(u.Username) == want {
			return u, true
		}
	}
	return nil, false
}

// Rooms returns a copy of the current room collection.
func (st *Store) Rooms() []*Room {
	st.mu.RLock()
	defer st.mu.RUnlock()
	rooms := make([]*Room, 0, len(st.state.rooms))
	for _, r := range st.state.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Users returns a copy of the current user collection.
func (st *Store) Users() []*User {
	st.mu.RLock()
	defer st.mu.RUnlock()
	users := make([]*User, 0, len(st.state.users))
	for _, u := range st.state.users {
		users = append(users, u)
	}
	return users
}
