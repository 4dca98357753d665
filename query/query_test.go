package query

import (
	"testing"
	"time"

	"taskmanager/models"
)

var testNow = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func datePtr(d models.Date) *models.Date { return &d }

func TestSearch(t *testing.T) {
	tasks := []*models.Task{
		{ID: 1, Text: "Buy milk", Description: "two liters"},
		{ID: 2, Text: "Call dentist", Description: "about the MILK tooth"},
		{ID: 3, Text: "Water plants", Description: ""},
	}

	tests := []struct {
		name     string
		query    string
		expected []int64
	}{
		{
			name:     "matches title case-insensitively",
			query:    "BUY",
			expected: []int64{1},
		},
		{
			name:     "matches description",
			query:    "milk",
			expected: []int64{1, 2},
		},
		{
			name:     "no match returns empty",
			query:    "groceries",
			expected: []int64{},
		},
		{
			name:     "empty query returns all",
			query:    "",
			expected: []int64{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Search(tasks, tt.query)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d tasks, got %d", len(tt.expected), len(got))
			}
			for i, id := range tt.expected {
				if got[i].ID != id {
					t.Errorf("position %d: expected id %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestFilterByType(t *testing.T) {
	yesterday := models.NewDate(2025, 6, 14)
	tasks := []*models.Task{
		{ID: 1, Text: "Done", Completed: true},
		{ID: 2, Text: "Open"},
		{ID: 3, Text: "Late", DueDate: &yesterday},
		{ID: 4, Text: "Late but done", DueDate: &yesterday, Completed: true},
	}

	tests := []struct {
		name     string
		kind     Filter
		expected []int64
	}{
		{
			name:     "all is identity",
			kind:     FilterAll,
			expected: []int64{1, 2, 3, 4},
		},
		{
			name:     "completed",
			kind:     FilterCompleted,
			expected: []int64{1, 4},
		},
		{
			name:     "pending",
			kind:     FilterPending,
			expected: []int64{2, 3},
		},
		{
			name:     "overdue excludes completed",
			kind:     FilterOverdue,
			expected: []int64{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByType(tasks, tt.kind, testNow)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d tasks, got %d", len(tt.expected), len(got))
			}
			for i, id := range tt.expected {
				if got[i].ID != id {
					t.Errorf("position %d: expected id %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestSort_Priority(t *testing.T) {
	tasks := []*models.Task{
		{Text: "M", Priority: models.PriorityMedium},
		{Text: "H", Priority: models.PriorityHigh},
		{Text: "L", Priority: models.PriorityLow},
	}

	got := Sort(tasks, SortByPriority)

	expectedOrder := []string{"H", "M", "L"}
	for i, text := range expectedOrder {
		if got[i].Text != text {
			t.Errorf("position %d: expected %q, got %q", i, text, got[i].Text)
		}
	}
}

func TestSort_Date_NewestFirst(t *testing.T) {
	base := testNow
	tasks := []*models.Task{
		{Text: "Oldest", CreatedAt: base.Add(-2 * time.Hour)},
		{Text: "Newest", CreatedAt: base},
		{Text: "Middle", CreatedAt: base.Add(-time.Hour)},
	}

	got := Sort(tasks, SortByDate)

	expectedOrder := []string{"Newest", "Middle", "Oldest"}
	for i, text := range expectedOrder {
		if got[i].Text != text {
			t.Errorf("position %d: expected %q, got %q", i, text, got[i].Text)
		}
	}
}

func TestSort_Name_LocaleAscending(t *testing.T) {
	tasks := []*models.Task{
		{Text: "cherry"},
		{Text: "Apple"},
		{Text: "banana"},
	}

	got := Sort(tasks, SortByName)

	expectedOrder := []string{"Apple", "banana", "cherry"}
	for i, text := range expectedOrder {
		if got[i].Text != text {
			t.Errorf("position %d: expected %q, got %q", i, text, got[i].Text)
		}
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	tasks := []*models.Task{
		{Text: "B", Priority: models.PriorityLow},
		{Text: "A", Priority: models.PriorityHigh},
	}

	Sort(tasks, SortByPriority)

	if tasks[0].Text != "B" || tasks[1].Text != "A" {
		t.Error("expected the input slice to be left untouched")
	}
}

func TestSort_Stable(t *testing.T) {
	tasks := []*models.Task{
		{ID: 1, Text: "first high", Priority: models.PriorityHigh},
		{ID: 2, Text: "low", Priority: models.PriorityLow},
		{ID: 3, Text: "second high", Priority: models.PriorityHigh},
	}

	got := Sort(tasks, SortByPriority)

	if got[0].ID != 1 || got[1].ID != 3 {
		t.Error("expected equal-rank tasks to keep their relative order")
	}
}

func TestSummarize(t *testing.T) {
	yesterday := models.NewDate(2025, 6, 14)

	tests := []struct {
		name     string
		tasks    []*models.Task
		expected Stats
	}{
		{
			name:     "empty collection",
			tasks:    []*models.Task{},
			expected: Stats{},
		},
		{
			name: "single pending task",
			tasks: []*models.Task{
				{Text: "Buy milk", Priority: models.PriorityLow},
			},
			expected: Stats{Total: 1, Pending: 1},
		},
		{
			name: "overdue counts only incomplete past-due tasks",
			tasks: []*models.Task{
				{Text: "Late", DueDate: &yesterday},
				{Text: "Late but done", DueDate: &yesterday, Completed: true},
				{Text: "Open"},
			},
			expected: Stats{Total: 3, Completed: 1, Pending: 2, Overdue: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.tasks, testNow)
			if got != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		tasks    []*models.Task
		expected int
	}{
		{
			name:     "empty collection is 0",
			tasks:    []*models.Task{},
			expected: 0,
		},
		{
			name: "one of two completed is 50",
			tasks: []*models.Task{
				{Completed: true},
				{},
			},
			expected: 50,
		},
		{
			name: "one of three completed rounds to 33",
			tasks: []*models.Task{
				{Completed: true},
				{},
				{},
			},
			expected: 33,
		},
		{
			name: "two of three completed rounds to 67",
			tasks: []*models.Task{
				{Completed: true},
				{Completed: true},
				{},
			},
			expected: 67,
		},
		{
			name: "all completed is 100",
			tasks: []*models.Task{
				{Completed: true},
			},
			expected: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProgressPercent(tt.tasks)
			if got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestHasOverdue(t *testing.T) {
	yesterday := models.NewDate(2025, 6, 14)

	if HasOverdue([]*models.Task{{Text: "Open"}}, testNow) {
		t.Error("expected no overdue tasks")
	}
	if !HasOverdue([]*models.Task{{Text: "Late", DueDate: &yesterday}}, testNow) {
		t.Error("expected an overdue task to be detected")
	}
	if HasOverdue([]*models.Task{{Text: "Late but done", DueDate: &yesterday, Completed: true}}, testNow) {
		t.Error("expected a completed task to never count as overdue")
	}
}

func TestAllCompleted(t *testing.T) {
	if AllCompleted(nil) {
		t.Error("expected false for an empty collection")
	}
	if AllCompleted([]*models.Task{{Completed: true}, {}}) {
		t.Error("expected false when any task is pending")
	}
	if !AllCompleted([]*models.Task{{Completed: true}, {Completed: true}}) {
		t.Error("expected true when every task is completed")
	}
}

func TestViewPipeline_SearchFilterSort(t *testing.T) {
	yesterday := models.NewDate(2025, 6, 14)
	tasks := []*models.Task{
		{ID: 1, Text: "Pay rent", Priority: models.PriorityLow, DueDate: &yesterday},
		{ID: 2, Text: "Pay insurance", Priority: models.PriorityHigh, DueDate: &yesterday},
		{ID: 3, Text: "Pay off loan", Priority: models.PriorityMedium, Completed: true},
		{ID: 4, Text: "Walk dog", Priority: models.PriorityHigh, DueDate: datePtr(models.NewDate(2025, 6, 10))},
	}

	view := Sort(FilterByType(Search(tasks, "pay"), FilterOverdue, testNow), SortByPriority)

	if len(view) != 2 {
		t.Fatalf("expected 2 tasks in the view, got %d", len(view))
	}
	if view[0].ID != 2 || view[1].ID != 1 {
		t.Errorf("expected ids [2 1], got [%d %d]", view[0].ID, view[1].ID)
	}
}
