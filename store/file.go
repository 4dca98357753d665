package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"taskmanager/models"
)

// FilePersister implements the Persister interface with a single JSON file
// holding the full username -> tasks mapping, rewritten after every
// mutation.
type FilePersister struct {
	path  string
	image map[string][]*models.Task
}

// NewFilePersister creates a file persister backed by the given path. The
// file is created on the first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{
		path:  path,
		image: make(map[string][]*models.Task),
	}
}

// Load reads the full mapping from disk. A missing file is an empty store.
func (p *FilePersister) Load(_ context.Context) (map[string][]*models.Task, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string][]*models.Task), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	image := make(map[string][]*models.Task)
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}

	p.image = make(map[string][]*models.Task, len(image))
	for username, tasks := range image {
		p.image[username] = cloneTasks(tasks)
	}

	return image, nil
}

// SaveUser replaces one user's sequence in the cached image and rewrites
// the file, going through a temp file so a failed write never corrupts the
// previous image.
func (p *FilePersister) SaveUser(_ context.Context, username string, tasks []*models.Task) error {
	p.image[username] = cloneTasks(tasks)

	data, err := json.MarshalIndent(p.image, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode task file: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to replace task file: %w", err)
	}

	return nil
}

// Close is a no-op; every save already leaves the file complete.
func (p *FilePersister) Close() error {
	return nil
}
