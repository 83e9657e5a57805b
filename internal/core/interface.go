package core

import (
	"context"
	"errors"

	"github.com/fixitrock/rockdl/internal/engine/types"
)

var (
	// ErrInvalidItem is returned when an item lacks an id or a name.
	ErrInvalidItem = errors.New("item needs an id and a name")
	// ErrNotFound is returned for ids the registry does not know.
	ErrNotFound = errors.New("download not found")
)

// DownloadService defines the interface for interacting with the download engine.
// This abstraction allows the TUI and CLI to switch between a local embedded
// backend and a remote daemon connection.
type DownloadService interface {
	// List returns every record in the registry.
	List() ([]types.DownloadRecord, error)

	// GetStatus returns the record of a single download by id.
	GetStatus(id string) (*types.DownloadRecord, error)

	// DownloadFile registers item and starts transferring it. Adding an id
	// that is already registered is a no-op.
	DownloadFile(item types.Item) (string, error)

	// Pause pauses an active download.
	Pause(id string) error

	// Resume restarts a paused or failed download.
	Resume(id string) error

	// Delete cancels a download and removes its record.
	Delete(id string) error

	// ClearCompleted removes completed and failed records.
	ClearCompleted() error

	// StreamEvents returns a channel that receives real-time download events.
	// For local mode, this is a direct channel.
	// For remote mode, this is sourced from SSE.
	StreamEvents(ctx context.Context) (<-chan any, func(), error)

	// Publish emits an event into the service's event stream.
	Publish(msg any) error

	// Shutdown handles graceful shutdown of the service
	Shutdown() error
}
