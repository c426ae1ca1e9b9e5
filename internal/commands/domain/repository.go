package commands

import (
	"context"
	"time"
)

// Repository stores commands and their admission outcomes.
type Repository interface {
	// Create inserts a new command.
	Create(ctx context.Context, cmd *Command) error
	// Update replaces a stored command by id.
	Update(ctx context.Context, cmd *Command) error
	// GetByID returns the command or ErrNotFound.
	GetByID(ctx context.Context, commandID string) (*Command, error)
	// FindByIdempotencyKey returns the most recent command with the key
	// created at or after the cutoff, or nil when none matches.
	FindByIdempotencyKey(ctx context.Context, key string, notBefore time.Time) (*Command, error)
	// ListByDevice returns a device's commands, newest first. An empty
	// device id selects all devices.
	ListByDevice(ctx context.Context, deviceID string) ([]Command, error)
}
