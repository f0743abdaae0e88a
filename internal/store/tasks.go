package store

import (
	"context"
	"fmt"
)

// Task is an earning task shown to users.
type Task struct {
	ID          string `db:"id" yaml:"id"`
	Name        string `db:"name" yaml:"name"`
	MessageText string `db:"message_text" yaml:"message_text"`
	MediaURL    string `db:"media_url" yaml:"media_url"`
}

// TaskField names an editable task column.
type TaskField string

const (
	TaskName     TaskField = "name"
	TaskMessage  TaskField = "message_text"
	TaskMediaURL TaskField = "media_url"
)

// Label is the user-facing field name.
func (f TaskField) Label() string {
	switch f {
	case TaskName:
		return "Name"
	case TaskMessage:
		return "MessageText"
	case TaskMediaURL:
		return "MediaURL"
	}
	return string(f)
}

func (f TaskField) valid() bool {
	return f == TaskName || f == TaskMessage || f == TaskMediaURL
}

// FindTask returns the task or ErrNotFound.
func (s *Store) FindTask(ctx context.Context, id string) (Task, error) {
	var t Task
	if err := s.get(ctx, &t, `SELECT id, name, message_text, media_url FROM tasks WHERE id = ?`, id); err != nil {
		return Task{}, fmt.Errorf("store: find task %q: %w", id, err)
	}
	return t, nil
}

// Tasks lists tasks by id.
func (s *Store) Tasks(ctx context.Context) ([]Task, error) {
	var out []Task
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name, message_text, media_url FROM tasks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	return out, nil
}

// UpdateTaskField sets one column of a task. Updating a missing task is not
// an error; callers re-read the task to detect it.
func (s *Store) UpdateTaskField(ctx context.Context, id string, field TaskField, value string) error {
	if !field.valid() {
		return fmt.Errorf("store: unknown task field %q", field)
	}
	_, err := s.exec(ctx, "update_task_"+string(field),
		`UPDATE tasks SET `+string(field)+` = ? WHERE id = ?`, value, id)
	return err
}

// UpsertTask creates or replaces a task.
func (s *Store) UpsertTask(ctx context.Context, t Task) error {
	_, err := s.exec(ctx, "upsert_task", `
		INSERT INTO tasks (id, name, message_text, media_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name, message_text = excluded.message_text, media_url = excluded.media_url`,
		t.ID, t.Name, t.MessageText, t.MediaURL)
	return err
}
