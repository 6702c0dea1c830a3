// Package commands is the transport-agnostic command surface. The gateway in
// front of the workspace platform translates slash commands, button presses,
// and modal submissions into Dispatch calls; handlers return reply text.
package commands

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownCommand = errors.New("commands: unknown command")
	ErrAccessDenied   = errors.New("commands: access denied")
)

// Invocation carries one command's identity and arguments.
type Invocation struct {
	OrgID     string
	OrgName   string
	ChannelID string
	UserID    string
	Args      map[string]string
}

// Arg returns a named argument, or the fallback when absent.
func (inv Invocation) Arg(name, fallback string) string {
	if v, ok := inv.Args[name]; ok && v != "" {
		return v
	}
	return fallback
}

type Handler func(ctx context.Context, inv Invocation) (string, error)

type entry struct {
	handler   Handler
	adminOnly bool
}

// Registry maps command names to handlers. Admin-only commands are gated on
// the configured owner user id.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	ownerID string
	log     *logrus.Logger
}

func NewRegistry(ownerID string, log *logrus.Logger) *Registry {
	return &Registry{entries: make(map[string]entry), ownerID: ownerID, log: log}
}

func (r *Registry) Register(name string, adminOnly bool, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		r.log.WithField("command", name).Warn("commands: replacing existing handler")
	}
	r.entries[name] = entry{handler: h, adminOnly: adminOnly}
}

// Names lists the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Dispatch(ctx context.Context, name string, inv Invocation) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", ErrUnknownCommand
	}
	if e.adminOnly && inv.UserID != r.ownerID {
		r.log.WithFields(logrus.Fields{
			"command": name,
			"user_id": inv.UserID,
		}).Warn("commands: denied admin command")
		return "", ErrAccessDenied
	}
	return e.handler(ctx, inv)
}
