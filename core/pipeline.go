package core

import (
	"fmt"
	"log/slog"
)

// Middleware is one stage in the message pipeline. A stage may transform the
// message (return a replacement), consume it (return nil, nil — a slash
// command does this), or reject it with a reason.
type Middleware interface {
	Handle(m *Message) (*Message, error)
}

// MiddlewareFunc adapts a plain function to the Middleware contract.
type MiddlewareFunc func(m *Message) (*Message, error)

func (f MiddlewareFunc) Handle(m *Message) (*Message, error) { return f(m) }

// Pipeline gates every inbound message. Stages run in registration order
// after the built-in room-existence check; the first rejection short-circuits
// the rest and notifies the sender alone. The surviving message is handed to
// the room's fan-out.
type Pipeline struct {
	store  *Store
	stages []Middleware
	logger *slog.Logger
}

func NewPipeline(store *Store, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		store:  store,
		logger: logger.With(slog.String("component", "pipeline")),
	}
	p.Use(MiddlewareFunc(p.roomExists))
	return p
}

// Use appends a stage to the chain.
func (p *Pipeline) Use(m Middleware) {
	p.stages = append(p.stages, m)
}

func (p *Pipeline) roomExists(m *Message) (*Message, error) {
	if !p.store.HasRoom(m.RoomID) {
		return nil, fmt.Errorf("room [%s] does not exist", m.RoomID)
	}
	return m, nil
}

// Route folds the message through the chain, then delivers it. Outcomes are
// visible only as side effects: fan-out on success, a private chat.event to
// the sender on rejection, silence when a stage consumes the message.
func (p *Pipeline) Route(msg *Message) {
	m := msg
	for _, stage := range p.stages {
		next, err := stage.Handle(m)
		if err != nil {
			p.logger.Debug("message rejected",
				slog.String("room", msg.RoomID),
				slog.String("sender", msg.Sender.Username),
				slog.String("reason", err.Error()))
			msg.Sender.Notify("Middleware Failed! " + err.Error())
			return
		}
		if next == nil {
			return
		}
		m = next
	}
	if room, ok := p.store.Room(m.RoomID); ok {
		room.Send(m)
	}
}
