package core

import (
	"strings"
	"sync"
)

// maxHistory bounds each room's scrollback.
const maxHistory = 3

type RoomType int

const (
	RoomPublic RoomType = iota
	RoomPrivate
)

// PrivateRoomName encodes the invited usernames into a room name. Only users
// named in the encoding pass CanJoin.
func PrivateRoomName(usernames ...string) string {
	parts := make([]string, 0, len(usernames)+1)
	parts = append(parts, "private")
	for _, u := range usernames {
		parts = append(parts, strings.ToLower(u))
	}
	return strings.Join(parts, "-")
}

// Room is a named group of users sharing a bounded message history and a join
// policy. The store owns the record; members are referenced by uid only.
type Room struct {
	Name string
	Type RoomType

	store *Store

	mu      sync.RWMutex
	members map[string]struct{}
	history []*Message
}

func NewRoom(store *Store, name string, typ RoomType) *Room {
	return &Room{
		Name:    name,
		Type:    typ,
		store:   store,
		members: make(map[string]struct{}),
	}
}

// CanJoin reports whether the user may enter the room. Private room names
// encode their invitees: "private-<username>[-<username>...]"; the comparison
// is case-insensitive on the user's side.
func (r *Room) CanJoin(user *User) bool {
	if r.Type == RoomPrivate {
		want := strings.ToLower(user.Username)
		for _, part := range strings.Split(r.Name, "-")[1:] {
			if part == want {
				return true
			}
		}
		return false
	}
	return r.Type == RoomPublic
}

func (r *Room) HasMember(uid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[uid]
	return ok
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) memberUIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uids := make([]string, 0, len(r.members))
	for uid := range r.members {
		uids = append(uids, uid)
	}
	return uids
}

func (r *Room) addMember(uid string) {
	r.mu.Lock()
	r.members[uid] = struct{}{}
	r.mu.Unlock()
}

func (r *Room) removeMember(uid string) {
	r.mu.Lock()
	delete(r.members, uid)
	r.mu.Unlock()
}

// Users resolves the current members against the store's user collection.
// The member set is copied before resolution so no entity lock is held while
// touching the store.
func (r *Room) Users() []*User {
	uids := r.memberUIDs()
	users := make([]*User, 0, len(uids))
	for _, uid := range uids {
		if u, ok := r.store.User(uid); ok {
			users = append(users, u)
		}
	}
	return users
}

func (r *Room) Profiles() []Profile {
	users := r.Users()
	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles
}

// Announce pushes an event to every currently connected member. Members whose
// connection has dropped are skipped, never an error.
func (r *Room) Announce(e *Event) {
	for _, u := range r.Users() {
		u.send(e)
	}
}

// History returns a chronological copy of the room's scrollback, oldest
// first.
func (r *Room) History() []*Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := make([]*Message, len(r.history))
	copy(history, r.history)
	return history
}

// Send appends the message to the bounded history, evicting the oldest entry
// once the cap is reached, then fans the encoded message out to the room.
// The evict-then-append is atomic relative to other sends on the same room.
func (r *Room) Send(m *Message) {
	r.mu.Lock()
	if len(r.history) >= maxHistory {
		r.history = r.history[1:]
	}
	r.history = append(r.history, m)
	r.mu.Unlock()
	r.Announce(NewEvent(EventChatMessage, m.Encode()))
}

// Scrollback delivers the current history to one user, used once on join.
func (r *Room) Scrollback(user *User) {
	msgs := r.History()
	payload := ScrollbackPayload{
		RoomID:   r.Name,
		Messages: make([]MessagePayload, 0, len(msgs)),
	}
	for _, m := range msgs {
		payload.Messages = append(payload.Messages, m.Encode())
	}
	user.send(NewEvent(EventScrollback, payload))
}

// Prune clears the history and tells the room.
func (r *Room) Prune() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
	r.Announce(NewEvent(EventPrune, PrunePayload{RoomID: r.Name}))
}

// NotifyJoin tells the joiner who is here, replays the scrollback, then
// announces the arrival to the rest of the room.
func (r *Room) NotifyJoin(user *User) {
	user.send(NewEvent(EventRoomJoined, RoomJoinedPayload{
		RoomID: r.Name,
		Users:  r.Profiles(),
	}))
	r.Scrollback(user)
	arrival := NewEvent(EventUserJoined, UserJoinedPayload{
		RoomID: r.Name,
		User:   user.Profile(),
	})
	for _, u := range r.Users() {
		if u.UID == user.UID {
			continue
		}
		u.send(arrival)
	}
}

// NotifyLeave announces the departure to the remaining members.
func (r *Room) NotifyLeave(user *User) {
	r.Announce(NewEvent(EventUserLeft, UserLeftPayload{
		RoomID: r.Name,
		UID:    user.UID,
	}))
}
