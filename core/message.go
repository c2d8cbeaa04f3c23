package core

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Message is a single chat message authored by an authenticated user. It is
// immutable after creation and lives only inside a room's bounded history.
type Message struct {
	Sender *User
	Body   string
	RoomID string
	// SentAt is a unix-millisecond timestamp taken at creation.
	SentAt int64

	id string
}

func NewMessage(sender *User, body, roomID string) *Message {
	m := &Message{
		Sender: sender,
		Body:   body,
		RoomID: roomID,
		SentAt: time.Now().UnixMilli(),
	}
	m.id = m.fingerprint()
	return m
}

// WithBody returns a copy of the message carrying a transformed body, used by
// transforming pipeline stages. The fingerprint is recomputed so clients
// dedup on the body they actually received.
func (m *Message) WithBody(body string) *Message {
	next := &Message{
		Sender: m.Sender,
		Body:   body,
		RoomID: m.RoomID,
		SentAt: m.SentAt,
	}
	next.id = next.fingerprint()
	return next
}

// ID is a content-derived fingerprint over roomID, body and timestamp. It is
// meant for client-side dedup, not uniqueness; collisions are acceptable.
func (m *Message) ID() string {
	return m.id
}

func (m *Message) fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%s:%d", m.RoomID, m.Body, m.SentAt)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Encode renders the message as its wire payload.
func (m *Message) Encode() MessagePayload {
	return MessagePayload{
		MsgID:     m.id,
		Message:   m.Body,
		RoomID:    m.RoomID,
		Timestamp: m.SentAt,
		Rank:      m.Sender.Role(),
		User:      m.Sender.Username,
		Gravatar:  m.Sender.EmailHash(),
	}
}
