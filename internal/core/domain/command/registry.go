package command

import (
	"errors"
	"fmt"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

type Registry struct {
	mu       sync.RWMutex
	commands map[string]port.Command
}

func (r *Registry) Register(handler port.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commands == nil {
		r.commands = make(map[string]port.Command)
	}

	log.Info().Str("handler", handler.GetCommand()).Msg("adding command handler to registry")
	r.commands[handler.GetCommand()] = handler
}

func (r *Registry) Get(command string) (port.Command, error) {
	log.Debug().Str("command", command).Msg("fetching command handler from registry")

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.commands == nil {
		return nil, errors.New("can't fetch command, registry not initialized")
	}

	handler, ok := r.commands[command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCommand, command)
	}

	return handler, nil
}

// ListCommands returns the registered commands in lexical order.
func (r *Registry) ListCommands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.commands))
	for k := range r.commands {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}

func ParseCommandArgs(args string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	return strings.TrimSpace(rest)
}

// ParseCommand returns the lowercased first word of args without a trailing
// @botname mention.
func ParseCommand(args string) string {
	command, _, _ := strings.Cut(strings.TrimSpace(args), " ")
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command)
}
