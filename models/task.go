package models

import (
	"fmt"
	"strings"
	"time"
)

// Priority is a task's urgency level.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank returns a numeric value for sorting by priority.
// Lower numbers indicate higher priority.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 99
	}
}

// Category is a user-visible task label.
type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryShopping Category = "shopping"
	CategoryHealth   Category = "health"
	CategoryOther    Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPersonal, CategoryWork, CategoryShopping, CategoryHealth, CategoryOther:
		return true
	}
	return false
}

// Subtask is a checklist item belonging to exactly one task. Its ID is
// stable within the parent task and never reused by a later append.
type Subtask struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Task is a user-owned unit of work.
type Task struct {
	ID          int64     `json:"id"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Category    Category  `json:"category"`
	DueDate     *Date     `json:"dueDate,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Subtasks    []Subtask `json:"subtasks"`
}

// ValidationError reports a field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return &ValidationError{Field: "text", Reason: "is required"}
	}

	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be 'high', 'medium', or 'low'"}
	}

	if !t.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "must be 'personal', 'work', 'shopping', 'health', or 'other'"}
	}

	for i, st := range t.Subtasks {
		if strings.TrimSpace(st.Text) == "" {
			return &ValidationError{Field: fmt.Sprintf("subtasks[%d].text", i), Reason: "is required"}
		}
	}

	return nil
}

// IsOverdue reports whether the task's due day is strictly before the day
// now falls on. Completed tasks and tasks without a due date are never
// overdue; a task due today is not overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Completed || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(DateOf(now))
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	c.Subtasks = make([]Subtask, len(t.Subtasks))
	copy(c.Subtasks, t.Subtasks)
	return &c
}
