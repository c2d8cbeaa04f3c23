package core

import (
	"log/slog"
	"time"
)

// DefaultRoom is the room every authenticated user joins on arrival.
const DefaultRoom = "lobby"

// Extension registers pluggable behavior (filters, commands, rooms) with the
// server. Anything callable with this shape can be loaded with Use.
type Extension func(*Server)

// Server ties the store and pipeline together and exposes the registration
// surface that extensions program against.
type Server struct {
	store    *Store
	pipeline *Pipeline
	logger   *slog.Logger
}

func NewServer(store *Store, pipeline *Pipeline, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		pipeline: pipeline,
		logger:   logger.With(slog.String("component", "server")),
	}
}

func (s *Server) Store() *Store { return s.store }

func (s *Server) Pipeline() *Pipeline { return s.pipeline }

// Use loads an extension.
func (s *Server) Use(ext Extension) {
	ext(s)
}

// AddMessageMiddleware appends a stage to the message pipeline.
func (s *Server) AddMessageMiddleware(m Middleware) {
	s.pipeline.Use(m)
}

// CreateRoom adds a room to the store and joins the given users into it.
func (s *Server) CreateRoom(name string, typ RoomType, users ...*User) *Room {
	room := NewRoom(s.store, name, typ)
	s.store.AddRoom(room)
	for _, u := range users {
		s.store.JoinRoom(room, u)
	}
	return room
}

// UserByUsername resolves a user under case-insensitive comparison.
func (s *Server) UserByUsername(username string) (*User, bool) {
	return s.store.UserByUsername(username)
}

// Announce pushes an event to every authenticated user.
func (s *Server) Announce(e *Event) {
	for _, u := range s.store.Users() {
		u.send(e)
	}
}

// Notify broadcasts a generic chat.event notice to everyone.
func (s *Server) Notify(message string) {
	s.Announce(NewEvent(EventChatEvent, NoticePayload{
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}))
}
