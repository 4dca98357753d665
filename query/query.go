// Package query derives views and aggregates from a task sequence. Every
// function is pure: inputs are never mutated and no state is kept between
// calls. When producing a rendered view the fixed order of application is
// search, then filter, then sort.
package query

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"taskmanager/models"
)

// Filter selects a subset of a task sequence by completion state.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
	FilterOverdue   Filter = "overdue"
)

// SortKey names an ordering of a task sequence.
type SortKey string

const (
	SortByDate     SortKey = "date"
	SortByName     SortKey = "name"
	SortByPriority SortKey = "priority"
)

// Stats aggregates completion counts over a task sequence.
type Stats struct {
	Total     int
	Completed int
	Pending   int
	Overdue   int
}

// Search returns the tasks whose title or description contains the query,
// case-insensitively. An empty query returns the input unchanged.
func Search(tasks []*models.Task, q string) []*models.Task {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return tasks
	}

	out := []*models.Task{}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Text), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByType returns the tasks matching the given filter. Overdue is
// evaluated against the day now falls on.
func FilterByType(tasks []*models.Task, kind Filter, now time.Time) []*models.Task {
	var keep func(*models.Task) bool
	switch kind {
	case FilterCompleted:
		keep = func(t *models.Task) bool { return t.Completed }
	case FilterPending:
		keep = func(t *models.Task) bool { return !t.Completed }
	case FilterOverdue:
		keep = func(t *models.Task) bool { return !t.Completed && t.IsOverdue(now) }
	default:
		return tasks
	}

	out := []*models.Task{}
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// Sort returns a new slice ordered by key; the input is left untouched.
// date orders newest first, name uses locale-aware ascending comparison,
// priority orders high before medium before low. All orderings are stable.
func Sort(tasks []*models.Task, key SortKey) []*models.Task {
	out := make([]*models.Task, len(tasks))
	copy(out, tasks)

	switch key {
	case SortByName:
		c := collate.New(language.Und)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Text, out[j].Text) < 0
		})
	case SortByPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		})
	default: // SortByDate
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}

	return out
}

// Summarize computes completion counts, evaluating overdue against the day
// now falls on.
func Summarize(tasks []*models.Task, now time.Time) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
		if !t.Completed && t.IsOverdue(now) {
			s.Overdue++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}

// ProgressPercent returns the share of completed tasks rounded to a whole
// percentage, and 0 for an empty sequence.
func ProgressPercent(tasks []*models.Task) int {
	if len(tasks) == 0 {
		return 0
	}

	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(tasks)) * 100))
}

// HasOverdue reports whether any task is overdue as of now.
func HasOverdue(tasks []*models.Task, now time.Time) bool {
	for _, t := range tasks {
		if !t.Completed && t.IsOverdue(now) {
			return true
		}
	}
	return false
}

// AllCompleted reports whether the sequence is non-empty and every task is
// completed.
func AllCompleted(tasks []*models.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Completed {
			return false
		}
	}
	return true
}
