package chathub

import (
	"fmt"
	"sort"
	"strings"

	"github.com/putto11262002/chathub/core"
)

const commandPrefix = "/"

// Command performs a slash command's side effect. The triggering message is
// consumed and never reaches fan-out.
type Command func(s *core.Server, m *core.Message) error

// CommandHandler is the pipeline stage that intercepts slash commands.
// Bodies that name no registered command pass through as plain chat.
type CommandHandler struct {
	server   *core.Server
	commands map[string]Command
}

func NewCommandHandler(s *core.Server) *CommandHandler {
	h := &CommandHandler{
		server:   s,
		commands: make(map[string]Command),
	}
	h.Register("prune", PruneCommand)
	h.Register("rooms", RoomsCommand)
	return h
}

func (h *CommandHandler) Register(name string, cmd Command) {
	h.commands[strings.ToLower(name)] = cmd
}

func (h *CommandHandler) Handle(m *core.Message) (*core.Message, error) {
	if !strings.HasPrefix(m.Body, commandPrefix) {
		return m, nil
	}
	fields := strings.Fields(strings.TrimPrefix(m.Body, commandPrefix))
	if len(fields) == 0 {
		return m, nil
	}
	cmd, ok := h.commands[strings.ToLower(fields[0])]
	if !ok {
		return m, nil
	}
	if err := cmd(h.server, m); err != nil {
		return nil, err
	}
	return nil, nil
}

// PruneCommand clears the room's history and announces the prune.
func PruneCommand(s *core.Server, m *core.Message) error {
	room, ok := s.Store().Room(m.RoomID)
	if !ok {
		return fmt.Errorf("room [%s] does not exist", m.RoomID)
	}
	room.Prune()
	return nil
}

// RoomsCommand lists the public rooms to the requesting sender. Private rooms
// stay invisible to non-invitees.
func RoomsCommand(s *core.Server, m *core.Message) error {
	var names []string
	for _, r := range s.Store().Rooms() {
		if r.Type == core.RoomPublic {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	m.Sender.Notify("Rooms: " + strings.Join(names, ", "))
	return nil
}

// Commands wires the command stage as a server extension.
func Commands() core.Extension {
	return func(s *core.Server) {
		s.AddMessageMiddleware(NewCommandHandler(s))
	}
}
