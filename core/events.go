package core

import (
	"encoding/json"
	"fmt"
	"io"
)

// Wire event types exchanged with clients.
const (
	EventAuthRequire = "auth.require"
	EventAuthAttempt = "auth.attempt"
	EventAuthSuccess = "auth.success"
	EventAuthFailure = "auth.failure"
	EventChatMessage = "chat.message"
	EventRoomJoined  = "chat.room.joined"
	EventUserJoined  = "chat.user.joined"
	EventUserLeft    = "chat.user.left"
	EventScrollback  = "chat.room.scrollback"
	EventPrune       = "chat.prune"
	EventChatEvent   = "chat.event"
)

// Event is the envelope for every frame exchanged with a client.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Payload.Size: %d}", e.Type, len(e.Payload))
}

// NewEvent wraps a payload into an envelope. Payloads are local structs, so
// marshalling cannot fail at runtime.
func NewEvent(t string, payload any) *Event {
	var b json.RawMessage
	if payload != nil {
		b, _ = json.Marshal(payload)
	}
	return &Event{Type: t, Payload: b}
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

// AuthAttemptPayload carries the client's bearer token and a client-chosen
// fingerprint that is echoed back on the terminal signal.
type AuthAttemptPayload struct {
	Token       string `json:"token"`
	Fingerprint string `json:"fingerprint"`
}

type AuthSuccessPayload struct {
	Fingerprint string `json:"fingerprint,omitempty"`
}

type AuthFailurePayload struct {
	Error       string `json:"error"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// InboundMessagePayload is a client's chat.message.
type InboundMessagePayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// MessagePayload is the fan-out rendering of a message. Only the sender's
// display metadata crosses the wire.
type MessagePayload struct {
	MsgID     string `json:"msgId"`
	Message   string `json:"message"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
	Rank      string `json:"rank"`
	User      string `json:"user"`
	Gravatar  string `json:"gravatar"`
}

type RoomJoinedPayload struct {
	RoomID string    `json:"roomId"`
	Users  []Profile `json:"users"`
}

type UserJoinedPayload struct {
	RoomID string  `json:"roomId"`
	User   Profile `json:"user"`
}

type UserLeftPayload struct {
	RoomID string `json:"roomId"`
	UID    string `json:"uid"`
}

type ScrollbackPayload struct {
	RoomID   string           `json:"roomId"`
	Messages []MessagePayload `json:"messages"`
}

type PrunePayload struct {
	RoomID string `json:"roomId"`
}

// NoticePayload is a generic chat.event notification, also used for pipeline
// rejection feedback.
type NoticePayload struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
