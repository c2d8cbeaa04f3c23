package core

import (
	"sync"
	"time"
)

// RoleBanned marks a user that must never pass the handshake.
const RoleBanned = "Banned"

// UserProps is the display metadata attached to a verified identity.
type UserProps struct {
	Role      string `json:"role"`
	EmailHash string `json:"email_hash"`
}

// Profile is the user as other clients see them.
type Profile struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Gravatar string `json:"gravatar"`
	Rank     string `json:"rank"`
}

// User is an authenticated chat participant. The store owns the record for
// its entire lifetime; the user owns its connection handle. UID and Username
// are immutable after creation.
type User struct {
	UID      string
	Username string
	Props    UserProps

	mu       sync.RWMutex
	roomList map[string]struct{}
	conn     Conn
}

func NewUser(uid, username string, props UserProps) *User {
	return &User{
		UID:      uid,
		Username: username,
		Props:    props,
		roomList: make(map[string]struct{}),
	}
}

func (u *User) Role() string { return u.Props.Role }

func (u *User) EmailHash() string { return u.Props.EmailHash }

func (u *User) IsBanned() bool { return u.Props.Role == RoleBanned }

func (u *User) Profile() Profile {
	return Profile{
		UID:      u.UID,
		Username: u.Username,
		Gravatar: u.EmailHash(),
		Rank:     u.Role(),
	}
}

// Attach binds the active transport handle. Done once, after the handshake
// succeeds; until then no fan-out path can reach the connection.
func (u *User) Attach(c Conn) {
	u.mu.Lock()
	u.conn = c
	u.mu.Unlock()
}

// Detach clears the handle on disconnect.
func (u *User) Detach() {
	u.mu.Lock()
	u.conn = nil
	u.mu.Unlock()
}

func (u *User) connection() Conn {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.conn
}

// send delivers an event to the user's connection. A user with no live
// connection is silently skipped.
func (u *User) send(e *Event) {
	if c := u.connection(); c != nil {
		c.Send(e)
	}
}

// Notify emits a private chat.event notice, used for pipeline rejection
// feedback. Never broadcast.
func (u *User) Notify(message string) {
	u.send(NewEvent(EventChatEvent, NoticePayload{
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}))
}

func (u *User) InRoom(name string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.roomList[name]
	return ok
}

// RoomNames returns a copy of the set of rooms the user currently occupies.
func (u *User) RoomNames() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	names := make([]string, 0, len(u.roomList))
	for name := range u.roomList {
		names = append(names, name)
	}
	return names
}

func (u *User) addRoom(name string) {
	u.mu.Lock()
	u.roomList[name] = struct{}{}
	u.mu.Unlock()
}

func (u *User) removeRoom(name string) {
	u.mu.Lock()
	delete(u.roomList, name)
	u.mu.Unlock()
}
