package store

import (
	"context"
	"errors"

	"taskmanager/models"
)

// ErrNotFound is returned when a referenced task or subtask does not exist.
var ErrNotFound = errors.New("not found")

// Persister owns the durable image of the task collections. The full image
// is read once at startup; after every mutation the owning user's sequence
// is rewritten in full before the mutation returns.
type Persister interface {
	// Load reads the full username -> tasks mapping.
	Load(ctx context.Context) (map[string][]*models.Task, error)

	// SaveUser rewrites one user's task sequence. A failed save must leave
	// the previous durable image intact.
	SaveUser(ctx context.Context, username string, tasks []*models.Task) error

	// Lifecycle
	Close() error
}
