package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

const taskColumns = `id, creator_id, executor_id, text, due_at, status, remind_stage,
	reminders_sent, next_remind_at, created_at, updated_at, executor_chat_id, executor_message_id`

func scanTask(row interface{ Scan(...any) error }) (storage.Task, error) {
	var task storage.Task
	var dueAt sql.NullInt64
	var nextRemindAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&task.ID,
		&task.CreatorID,
		&task.ExecutorID,
		&task.Text,
		&dueAt,
		&task.Status,
		&task.RemindStage,
		&task.RemindersSent,
		&nextRemindAt,
		&createdAt,
		&updatedAt,
		&task.ExecutorChatID,
		&task.ExecutorMessageID,
	)
	if err != nil {
		return storage.Task{}, err
	}
	task.DueAt = fromNullMillis(dueAt)
	task.NextRemindAt = fromNullMillis(nextRemindAt)
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)
	return task, nil
}

// CreateTask inserts one delegated task.
func (s *Store) CreateTask(ctx context.Context, task storage.Task) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if task.CreatorID == 0 || task.ExecutorID == 0 {
		return 0, fmt.Errorf("task requires creator and executor ids")
	}
	if strings.TrimSpace(task.Text) == "" {
		return 0, fmt.Errorf("task text is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO tasks (creator_id, executor_id, text, due_at, status, remind_stage,
		   reminders_sent, next_remind_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.CreatorID,
		task.ExecutorID,
		task.Text,
		toNullMillis(task.DueAt),
		task.Status,
		task.RemindStage,
		task.RemindersSent,
		toNullMillis(task.NextRemindAt),
		toMillis(task.CreatedAt),
		toMillis(task.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create task id: %w", err)
	}
	return id, nil
}

// GetTask returns one task by id.
func (s *Store) GetTask(ctx context.Context, taskID int64) (storage.Task, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Task{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Task{}, storage.ErrNotFound
		}
		return storage.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ListTasksByCreator returns the creator's newest tasks in the given statuses.
func (s *Store) ListTasksByCreator(ctx context.Context, creatorID int64, statuses []string, limit int) ([]storage.Task, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(statuses)+2)
	args = append(args, creatorID)
	for _, status := range statuses {
		args = append(args, status)
	}
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE creator_id = ? AND status IN (`+placeholders+`)
		 ORDER BY updated_at DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by creator: %w", err)
	}
	defer rows.Close()

	var tasks []storage.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// SetTaskStatus updates one task's lifecycle status. Terminal statuses clear
// the pending reminder.
func (s *Store) SetTaskStatus(ctx context.Context, taskID int64, status string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	query := `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`
	if status == storage.TaskStatusCompleted || status == storage.TaskStatusCanceled || status == storage.TaskStatusRejected {
		query = `UPDATE tasks SET status = ?, updated_at = ?, next_remind_at = NULL WHERE id = ?`
	}
	if _, err := s.sqlDB.ExecContext(ctx, query, status, toMillis(updatedAt), taskID); err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// SetTaskDue updates one task's deadline.
func (s *Store) SetTaskDue(ctx context.Context, taskID int64, dueAt *time.Time, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE tasks SET due_at = ?, updated_at = ? WHERE id = ?`,
		toNullMillis(dueAt),
		toMillis(updatedAt),
		taskID,
	); err != nil {
		return fmt.Errorf("set task due: %w", err)
	}
	return nil
}

// SetTaskSchedule rewrites one task's reminder stage and next fire time,
// resetting the audit counter.
func (s *Store) SetTaskSchedule(ctx context.Context, taskID int64, stage int, nextRemindAt *time.Time, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE tasks SET remind_stage = ?, reminders_sent = 0, next_remind_at = ?, updated_at = ? WHERE id = ?`,
		stage,
		toNullMillis(nextRemindAt),
		toMillis(updatedAt),
		taskID,
	); err != nil {
		return fmt.Errorf("set task schedule: %w", err)
	}
	return nil
}

// AdvanceTaskReminder moves one task to the next reminder stage and counts
// the sent reminder.
func (s *Store) AdvanceTaskReminder(ctx context.Context, taskID int64, stage int, nextRemindAt *time.Time, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE tasks
		 SET remind_stage = ?, reminders_sent = reminders_sent + 1, next_remind_at = ?, updated_at = ?
		 WHERE id = ?`,
		stage,
		toNullMillis(nextRemindAt),
		toMillis(updatedAt),
		taskID,
	); err != nil {
		return fmt.Errorf("advance task reminder: %w", err)
	}
	return nil
}

// DueReminders selects active due-dated tasks whose next reminder time has
// passed and whose stage is still within the schedule.
func (s *Store) DueReminders(ctx context.Context, now time.Time, maxStage int) ([]storage.Task, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = ?
		   AND due_at IS NOT NULL
		   AND next_remind_at IS NOT NULL
		   AND next_remind_at <= ?
		   AND remind_stage <= ?
		 ORDER BY next_remind_at`,
		storage.TaskStatusActive,
		toMillis(now),
		maxStage,
	)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()

	var tasks []storage.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due reminders: %w", err)
	}
	return tasks, nil
}

// SetTaskMessageRef records the transport address of the executor's latest
// tracked notification for later in-place edits.
func (s *Store) SetTaskMessageRef(ctx context.Context, taskID int64, chatID int64, messageID int, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE tasks SET executor_chat_id = ?, executor_message_id = ?, updated_at = ? WHERE id = ?`,
		chatID,
		messageID,
		toMillis(updatedAt),
		taskID,
	); err != nil {
		return fmt.Errorf("set task message ref: %w", err)
	}
	return nil
}
