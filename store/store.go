package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"taskmanager/models"
	"taskmanager/query"
)

// Store is the single source of truth for each user's task collection. It
// holds the collections in memory and writes the owning user's sequence
// through to its Persister on every mutation. It assumes a single
// goroutine drives it, mirroring one active session per process.
type Store struct {
	persister Persister
	log       zerolog.Logger
	tasks     map[string][]*models.Task
	lastID    int64
}

// Draft holds the caller-supplied fields for a new task. Zero-valued
// Priority and Category fall back to medium and personal.
type Draft struct {
	Text        string
	Description string
	Priority    models.Priority
	Category    models.Category
	DueDate     *models.Date
}

// Patch describes a partial update. Nil fields are left unchanged;
// ClearDueDate removes the due date regardless of the DueDate field.
type Patch struct {
	Text         *string
	Description  *string
	Priority     *models.Priority
	Category     *models.Category
	DueDate      *models.Date
	ClearDueDate bool
}

// New loads the durable image through p and returns a ready Store.
func New(ctx context.Context, p Persister, logger zerolog.Logger) (*Store, error) {
	tasks, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if tasks == nil {
		tasks = make(map[string][]*models.Task)
	}

	s := &Store{persister: p, log: logger, tasks: tasks}
	for _, list := range tasks {
		for _, t := range list {
			if t.ID > s.lastID {
				s.lastID = t.ID
			}
		}
	}

	return s, nil
}

// Close closes the underlying persister.
func (s *Store) Close() error {
	return s.persister.Close()
}

// Tasks returns a copy of the user's task sequence, most recent first by
// default ordering.
func (s *Store) Tasks(username string) []*models.Task {
	return cloneTasks(s.tasks[username])
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(username string, id int64) (*models.Task, error) {
	task, err := s.find(username, id)
	if err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

// Create validates the draft, assigns a fresh id and prepends the new task
// to the front of the user's sequence.
func (s *Store) Create(ctx context.Context, username string, draft Draft) (*models.Task, error) {
	text := strings.TrimSpace(draft.Text)
	if text == "" {
		return nil, &models.ValidationError{Field: "text", Reason: "is required"}
	}

	priority := draft.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	category := draft.Category
	if category == "" {
		category = models.CategoryPersonal
	}

	now := time.Now()
	task := &models.Task{
		ID:          s.nextID(now),
		Text:        text,
		Description: strings.TrimSpace(draft.Description),
		Priority:    priority,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
		Subtasks:    []models.Subtask{},
	}
	if draft.DueDate != nil {
		d := *draft.DueDate
		task.DueDate = &d
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	prev := s.tasks[username]
	s.tasks[username] = append([]*models.Task{task}, prev...)
	if err := s.persist(ctx, username, prev); err != nil {
		return nil, err
	}

	s.log.Debug().Str("username", username).Int64("task_id", task.ID).Msg("task created")
	return task.Clone(), nil
}

// Update applies the patch to the task with the given id and refreshes its
// UpdatedAt timestamp.
func (s *Store) Update(ctx context.Context, username string, id int64, patch Patch) (*models.Task, error) {
	task, err := s.find(username, id)
	if err != nil {
		return nil, err
	}

	prev := cloneTasks(s.tasks[username])

	if patch.Text != nil {
		task.Text = strings.TrimSpace(*patch.Text)
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Category != nil {
		task.Category = *patch.Category
	}
	if patch.DueDate != nil {
		d := *patch.DueDate
		task.DueDate = &d
	}
	if patch.ClearDueDate {
		task.DueDate = nil
	}
	task.UpdatedAt = time.Now()

	if err := task.Validate(); err != nil {
		s.tasks[username] = prev
		return nil, err
	}

	if err := s.persist(ctx, username, prev); err != nil {
		return nil, err
	}

	s.log.Debug().Str("username", username).Int64("task_id", task.ID).Msg("task updated")
	return task.Clone(), nil
}

// Delete removes the task with the given id. Deleting an absent id is a
// no-op.
func (s *Store) Delete(ctx context.Context, username string, id int64) error {
	list := s.tasks[username]
	idx := -1
	for i, t := range list {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	prev := cloneTasks(list)
	s.tasks[username] = append(list[:idx:idx], list[idx+1:]...)
	if err := s.persist(ctx, username, prev); err != nil {
		return err
	}

	s.log.Debug().Str("username", username).Int64("task_id", id).Msg("task deleted")
	return nil
}

// ToggleComplete flips the task's completed flag. The flip is unguarded:
// completing and reopening are the same operation.
func (s *Store) ToggleComplete(ctx context.Context, username string, id int64) (*models.Task, error) {
	task, err := s.find(username, id)
	if err != nil {
		return nil, err
	}

	prev := cloneTasks(s.tasks[username])
	task.Completed = !task.Completed
	task.UpdatedAt = time.Now()

	if err := s.persist(ctx, username, prev); err != nil {
		return nil, err
	}

	s.log.Debug().Str("username", username).Int64("task_id", task.ID).Bool("completed", task.Completed).Msg("task toggled")
	return task.Clone(), nil
}

// AddSubtask appends a new subtask with a fresh stable id and refreshes the
// parent's UpdatedAt timestamp.
func (s *Store) AddSubtask(ctx context.Context, username string, id int64, text string) (*models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &models.ValidationError{Field: "subtask text", Reason: "is required"}
	}

	task, err := s.find(username, id)
	if err != nil {
		return nil, err
	}

	prev := cloneTasks(s.tasks[username])

	nextID := 0
	for _, st := range task.Subtasks {
		if st.ID > nextID {
			nextID = st.ID
		}
	}
	task.Subtasks = append(task.Subtasks, models.Subtask{ID: nextID + 1, Text: text})
	task.UpdatedAt = time.Now()

	if err := s.persist(ctx, username, prev); err != nil {
		return nil, err
	}

	s.log.Debug().Str("username", username).Int64("task_id", task.ID).Int("subtask_id", nextID+1).Msg("subtask added")
	return task.Clone(), nil
}

// ToggleSubtask flips the completed flag of the subtask with the given
// stable id and refreshes the parent's UpdatedAt timestamp.
func (s *Store) ToggleSubtask(ctx context.Context, username string, taskID int64, subtaskID int) (*models.Task, error) {
	task, err := s.find(username, taskID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, st := range task.Subtasks {
		if st.ID == subtaskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("subtask %d: %w", subtaskID, ErrNotFound)
	}

	prev := cloneTasks(s.tasks[username])
	task.Subtasks[idx].Completed = !task.Subtasks[idx].Completed
	task.UpdatedAt = time.Now()

	if err := s.persist(ctx, username, prev); err != nil {
		return nil, err
	}

	s.log.Debug().Str("username", username).Int64("task_id", task.ID).Int("subtask_id", subtaskID).Msg("subtask toggled")
	return task.Clone(), nil
}

// SortTasks reorders the user's stored sequence by the given key and
// persists the new order. Unlike search and filtering, sorting is not a
// view transform.
func (s *Store) SortTasks(ctx context.Context, username string, key query.SortKey) error {
	prev := s.tasks[username]
	s.tasks[username] = query.Sort(prev, key)
	if err := s.persist(ctx, username, prev); err != nil {
		return err
	}

	s.log.Debug().Str("username", username).Str("key", string(key)).Msg("tasks sorted")
	return nil
}

// ReplaceAll wholesale replaces the user's collection, validating every
// record first. On any error the existing collection is left untouched.
// Callers importing an untrusted payload should go through codec.Import,
// which owns format-level rejection; an invalid record reaching this point
// surfaces as a models.ValidationError naming the offending index.
func (s *Store) ReplaceAll(ctx context.Context, username string, tasks []*models.Task) error {
	clones := make([]*models.Task, len(tasks))
	for i, t := range tasks {
		if t == nil {
			return &models.ValidationError{Field: fmt.Sprintf("tasks[%d]", i), Reason: "is required"}
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
		clones[i] = t.Clone()
	}

	prev := s.tasks[username]
	s.tasks[username] = clones
	if err := s.persist(ctx, username, prev); err != nil {
		return err
	}

	for _, t := range clones {
		if t.ID > s.lastID {
			s.lastID = t.ID
		}
	}

	s.log.Debug().Str("username", username).Int("count", len(clones)).Msg("tasks replaced")
	return nil
}

func (s *Store) find(username string, id int64) (*models.Task, error) {
	for _, t := range s.tasks[username] {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
}

// nextID derives ids from the wall clock, bumping past the last issued id
// so ids stay strictly increasing even within one millisecond.
func (s *Store) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// persist writes the user's current sequence through and restores the
// previous in-memory state if the write fails, so the two images never
// diverge.
func (s *Store) persist(ctx context.Context, username string, prev []*models.Task) error {
	if err := s.persister.SaveUser(ctx, username, s.tasks[username]); err != nil {
		s.tasks[username] = prev
		s.log.Error().Err(err).Str("username", username).Msg("failed to persist tasks")
		return fmt.Errorf("failed to persist tasks: %w", err)
	}
	return nil
}

func cloneTasks(tasks []*models.Task) []*models.Task {
	out := make([]*models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
