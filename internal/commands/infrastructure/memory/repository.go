// Package memory provides an in-memory command store for standalone
// deployments and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	commands "gse-control/internal/commands/domain"
)

// Repository is an in-memory commands.Repository.
type Repository struct {
	mu   sync.RWMutex
	byID map[string]commands.Command
}

// NewRepository constructs an empty store.
func NewRepository() *Repository {
	return &Repository{byID: make(map[string]commands.Command)}
}

// Create inserts a new command.
func (r *Repository) Create(_ context.Context, cmd *commands.Command) error {
	if cmd == nil || cmd.CommandID == "" {
		return errors.New("commands: invalid command")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[cmd.CommandID]; exists {
		return errors.New("commands: duplicate command id")
	}
	r.byID[cmd.CommandID] = *cmd
	return nil
}

// Update replaces a stored command by id.
func (r *Repository) Update(_ context.Context, cmd *commands.Command) error {
	if cmd == nil || cmd.CommandID == "" {
		return errors.New("commands: invalid command")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[cmd.CommandID]; !exists {
		return commands.ErrNotFound
	}
	r.byID[cmd.CommandID] = *cmd
	return nil
}

// GetByID returns the command or ErrNotFound.
func (r *Repository) GetByID(_ context.Context, commandID string) (*commands.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byID[commandID]
	if !ok {
		return nil, commands.ErrNotFound
	}
	out := cmd
	return &out, nil
}

// FindByIdempotencyKey returns the newest matching command created at or
// after the cutoff, or nil when none matches.
func (r *Repository) FindByIdempotencyKey(_ context.Context, key string, notBefore time.Time) (*commands.Command, error) {
	if key == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var match *commands.Command
	for id := range r.byID {
		cmd := r.byID[id]
		if cmd.IdempotencyKey != key || cmd.CreatedAt.Before(notBefore) {
			continue
		}
		if match == nil || cmd.CreatedAt.After(match.CreatedAt) {
			copied := cmd
			match = &copied
		}
	}
	return match, nil
}

// ListByDevice returns a device's commands, newest first. An empty device
// id selects all devices.
func (r *Repository) ListByDevice(_ context.Context, deviceID string) ([]commands.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]commands.Command, 0, len(r.byID))
	for _, cmd := range r.byID {
		if deviceID != "" && cmd.DeviceID != deviceID {
			continue
		}
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CommandID < out[j].CommandID
	})
	return out, nil
}
