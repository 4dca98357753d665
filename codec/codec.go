// Package codec serializes one user's task collection to and from the
// portable export format: a pretty-printed JSON array of tasks with nested
// subtasks.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"taskmanager/models"
)

// ErrInvalidFormat is returned when an imported payload is not a JSON
// array.
var ErrInvalidFormat = errors.New("invalid format")

// Export serializes the task sequence with two-space indentation. An empty
// or nil sequence exports as an empty array.
func Export(tasks []*models.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []*models.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tasks: %w", err)
	}
	return data, nil
}

// Import parses an exported payload. The top level must be a JSON array;
// each record is decoded strictly (unknown fields rejected) and validated,
// and per-record errors are collected rather than aborting on the first.
// Any error means no tasks are returned, so a partial batch can never reach
// the store.
func Import(data []byte) ([]*models.Task, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, err)
	}

	tasks := make([]*models.Task, 0, len(raw))
	var errs []error
	for i, rec := range raw {
		task := &models.Task{}

		dec := json.NewDecoder(bytes.NewReader(rec))
		dec.DisallowUnknownFields()
		if err := dec.Decode(task); err != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", i, err))
			continue
		}

		if task.Subtasks == nil {
			task.Subtasks = []models.Subtask{}
		}
		normalizeSubtaskIDs(task)

		if err := task.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", i, err))
			continue
		}

		tasks = append(tasks, task)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return tasks, nil
}

// normalizeSubtaskIDs renumbers subtasks when the payload predates stable
// subtask ids (all zero) or carries duplicates.
func normalizeSubtaskIDs(task *models.Task) {
	seen := make(map[int]bool, len(task.Subtasks))
	for _, st := range task.Subtasks {
		if st.ID <= 0 || seen[st.ID] {
			for i := range task.Subtasks {
				task.Subtasks[i].ID = i + 1
			}
			return
		}
		seen[st.ID] = true
	}
}
