package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"taskmanager/models"
)

// SQLitePersister implements the Persister interface using SQLite.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister creates a new SQLite persister with the given database
// path.
func NewSQLitePersister(dbPath string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the store is single-writer, and :memory: databases
	// exist per connection.
	db.SetMaxOpenConns(1)

	p := &SQLitePersister{db: db}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return p, nil
}

func (p *SQLitePersister) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		username TEXT NOT NULL,
		id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		description TEXT DEFAULT '',
		priority TEXT NOT NULL CHECK(priority IN ('high', 'medium', 'low')),
		category TEXT NOT NULL CHECK(category IN ('personal', 'work', 'shopping', 'health', 'other')),
		due_date DATE,
		completed BOOLEAN DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (username, id)
	);

	CREATE TABLE IF NOT EXISTS subtasks (
		username TEXT NOT NULL,
		task_id INTEGER NOT NULL,
		id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		completed BOOLEAN DEFAULT FALSE,
		PRIMARY KEY (username, task_id, id),
		FOREIGN KEY (username, task_id) REFERENCES tasks(username, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks(username, position);
	CREATE INDEX IF NOT EXISTS idx_subtasks_position ON subtasks(username, task_id, position);
	`

	_, err := p.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

// Load reads every user's task sequence, ordered by stored position.
func (p *SQLitePersister) Load(ctx context.Context) (map[string][]*models.Task, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT username, id, text, description, priority, category, due_date, completed, created_at, updated_at
		FROM tasks ORDER BY username, position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	type taskKey struct {
		username string
		id       int64
	}

	image := make(map[string][]*models.Task)
	index := make(map[taskKey]*models.Task)

	for rows.Next() {
		var (
			username string
			task     models.Task
			dueDate  sql.NullTime
		)

		err := rows.Scan(
			&username,
			&task.ID,
			&task.Text,
			&task.Description,
			&task.Priority,
			&task.Category,
			&dueDate,
			&task.Completed,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if dueDate.Valid {
			// The driver converts the DATE column to time.Time while scanning.
			d := models.DateOf(dueDate.Time)
			task.DueDate = &d
		}
		task.Subtasks = []models.Subtask{}

		image[username] = append(image[username], &task)
		index[taskKey{username, task.ID}] = &task
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating tasks: %w", err)
	}

	subRows, err := p.db.QueryContext(ctx, `
		SELECT username, task_id, id, text, completed
		FROM subtasks ORDER BY username, task_id, position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		var (
			username string
			taskID   int64
			subtask  models.Subtask
		)
		if err := subRows.Scan(&username, &taskID, &subtask.ID, &subtask.Text, &subtask.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}

		task, ok := index[taskKey{username, taskID}]
		if !ok {
			return nil, fmt.Errorf("subtask %d references unknown task %d", subtask.ID, taskID)
		}
		task.Subtasks = append(task.Subtasks, subtask)
	}
	if err := subRows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating subtasks: %w", err)
	}

	return image, nil
}

// SaveUser rewrites one user's task sequence inside a single transaction,
// so a failed write leaves the previous image intact.
func (p *SQLitePersister) SaveUser(ctx context.Context, username string, tasks []*models.Task) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to clear subtasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}

	taskStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (username, id, position, text, description, priority, category, due_date, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare task insert: %w", err)
	}
	defer taskStmt.Close()

	subtaskStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO subtasks (username, task_id, id, position, text, completed)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare subtask insert: %w", err)
	}
	defer subtaskStmt.Close()

	for i, task := range tasks {
		var dueDate interface{}
		if task.DueDate != nil {
			dueDate = task.DueDate.String()
		}

		_, err := taskStmt.ExecContext(ctx,
			username, task.ID, i+1, task.Text, task.Description,
			string(task.Priority), string(task.Category), dueDate,
			task.Completed, task.CreatedAt, task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert task %d: %w", task.ID, err)
		}

		for j, st := range task.Subtasks {
			if _, err := subtaskStmt.ExecContext(ctx, username, task.ID, st.ID, j+1, st.Text, st.Completed); err != nil {
				return fmt.Errorf("failed to insert subtask %d of task %d: %w", st.ID, task.ID, err)
			}
		}
	}

	return tx.Commit()
}
