package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/net/context"
)

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub accepts websocket connections, drives the admission handshake, and runs
// one event loop per authenticated connection. A connection is attached to
// its user only after the handshake succeeds, so unauthenticated connections
// can never receive broadcast traffic.
type Hub struct {
	server        *Server
	authenticator *Authenticator
	defaultRoom   string
	upgrader      websocket.Upgrader
	context       context.Context
	connWg        *sync.WaitGroup
	logger        *slog.Logger
}

type HubOption func(*Hub)

func WithCheckOrigin(f func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = f
	}
}

func WithDefaultRoom(name string) HubOption {
	return func(h *Hub) {
		h.defaultRoom = name
	}
}

func NewHub(ctx context.Context, wg *sync.WaitGroup, server *Server, authenticator *Authenticator, logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		server:        server,
		authenticator: authenticator,
		defaultRoom:   DefaultRoom,
		upgrader:      defaultUpgrader,
		context:       ctx,
		connWg:        wg,
		logger:        logger.With(slog.String("component", "hub")),
	}
	for _, opt := range opts {
		opt(h)
	}
	// The default room always exists.
	if !server.store.HasRoom(h.defaultRoom) {
		server.CreateRoom(h.defaultRoom, RoomPublic)
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := newWSConn(ws, h.logger)
	h.connWg.Add(1)
	go func() {
		defer h.connWg.Done()
		conn.readLoop()
	}()
	h.connWg.Add(1)
	go func() {
		defer h.connWg.Done()
		conn.writeLoop()
	}()
	h.connWg.Add(1)
	go func() {
		defer h.connWg.Done()
		h.serve(conn)
	}()
}

// serve runs one connection from handshake to disconnect.
func (h *Hub) serve(conn Conn) {
	user, err := h.authenticator.Authorize(h.context, conn)
	if err != nil {
		// Authorize already signalled and closed the connection.
		return
	}

	h.register(user, conn)
	defer h.unregister(user)

	h.logger.Info("user authenticated",
		slog.String("uid", user.UID),
		slog.String("username", user.Username))

	for {
		select {
		case <-h.context.Done():
			conn.Close()
			return
		case <-conn.Done():
			return
		case e, ok := <-conn.Receive():
			if !ok {
				return
			}
			h.handleEvent(user, e)
		}
	}
}

// register attaches the connection (admitting the user to broadcast), records
// the user with the store, and joins them into the default room.
func (h *Hub) register(user *User, conn Conn) {
	user.Attach(conn)
	h.server.store.AddUser(user)
	if room, ok := h.server.store.Room(h.defaultRoom); ok {
		h.server.store.JoinRoom(room, user)
	}
}

// unregister tears membership down exactly once: leave every occupied room,
// then forget the user and clear the connection handle.
func (h *Hub) unregister(user *User) {
	for _, name := range user.RoomNames() {
		if room, ok := h.server.store.Room(name); ok {
			h.server.store.LeaveRoom(room, user)
		}
	}
	h.server.store.RemoveUser(user)
	user.Detach()
	h.logger.Info("user disconnected", slog.String("uid", user.UID))
}

func (h *Hub) handleEvent(user *User, e *Event) {
	switch e.Type {
	case EventChatMessage:
		var payload InboundMessagePayload
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			h.logger.Error(fmt.Sprintf("decode chat.message: %v", err))
			return
		}
		h.server.pipeline.Route(NewMessage(user, payload.Message, payload.RoomID))
	default:
		h.logger.Debug("unhandled event", slog.String("type", e.Type))
	}
}
