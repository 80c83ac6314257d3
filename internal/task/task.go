// Package task manages delegated tasks: creation, executor accept or
// reject, completion and the staged reminder schedule around a deadline.
package task

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

var (
	// ErrTaskNotFound indicates no task matches the given id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrForbidden indicates the actor is not a party to the task.
	ErrForbidden = errors.New("actor is not a party to this task")
	// ErrInvalidState indicates the task is not in a state accepting the
	// operation.
	ErrInvalidState = errors.New("task state does not allow this operation")
	// ErrInvalidTime indicates the clock text did not parse as HH:MM.
	ErrInvalidTime = errors.New("time must be HH:MM")
	// ErrPastDeadline indicates the requested deadline is already in the past.
	ErrPastDeadline = errors.New("deadline is in the past")
	// ErrEmptyText indicates the task description was blank.
	ErrEmptyText = errors.New("task text is required")
)

// MaxRemindStage is the last reminder stage. Stage 0 fires before the
// deadline, stage 1 at the deadline, stages 2 through 4 are overdue nags.
const MaxRemindStage = 4

// Deadline day choices offered when creating a task.
const (
	DayToday    = "today"
	DayTomorrow = "tomorrow"
)

// Reschedule options offered on an overdue reminder.
const (
	ReschedulePlus1      = "plus1"
	ReschedulePlus3      = "plus3"
	RescheduleTomorrow10 = "tomorrow10"
)

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ParseClock parses an HH:MM string into its hour and minute.
func ParseClock(text string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, ErrInvalidTime
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// BuildDueAt combines a day choice and a wall-clock time into a deadline.
// A today deadline that already passed is rejected.
func BuildDueAt(now time.Time, day string, hour, minute int) (time.Time, error) {
	base := now
	if day == DayTomorrow {
		base = now.AddDate(0, 0, 1)
	}
	due := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, now.Location())
	if !due.After(now) {
		return time.Time{}, ErrPastDeadline
	}
	return due, nil
}

// NextReminderAt returns when the reminder for the given stage fires, or
// nil past the final stage. Stage 0 fires one hour before the deadline,
// stage 1 at the deadline, later stages every six hours after it.
func NextReminderAt(dueAt time.Time, stage int) *time.Time {
	if stage > MaxRemindStage {
		return nil
	}
	var at time.Time
	switch {
	case stage == 0:
		at = dueAt.Add(-time.Hour)
	case stage == 1:
		at = dueAt
	default:
		at = dueAt.Add(time.Duration(stage-1) * 6 * time.Hour)
	}
	return &at
}

// InitialSchedule computes the first pending stage for a deadline,
// skipping stages whose fire time already passed. A task accepted late
// starts straight at the deadline or overdue stage it is in.
func InitialSchedule(dueAt time.Time, now time.Time) (stage int, nextRemindAt *time.Time) {
	stage = 0
	for stage <= MaxRemindStage {
		at := NextReminderAt(dueAt, stage)
		if at == nil || at.After(now) {
			return stage, at
		}
		stage++
	}
	return stage, nil
}

// Service orchestrates the delegated task lifecycle.
type Service struct {
	store storage.TaskStore
	clock func() time.Time
}

// NewService constructs the task service.
func NewService(store storage.TaskStore, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, clock: clock}
}

// Create records a new pending task delegated to the executor. The
// executor id is a snapshot of the pairing at creation time; the task
// survives a later unlink. dueAt may be nil for a task with no deadline.
func (s *Service) Create(ctx context.Context, creatorID, executorID int64, text string, dueAt *time.Time) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	if text == "" {
		return storage.Task{}, ErrEmptyText
	}
	now := s.clock().UTC()
	if dueAt != nil {
		utc := dueAt.UTC()
		dueAt = &utc
		if !utc.After(now) {
			return storage.Task{}, ErrPastDeadline
		}
	}
	task := storage.Task{
		CreatorID:  creatorID,
		ExecutorID: executorID,
		Text:       text,
		DueAt:      dueAt,
		Status:     storage.TaskStatusPendingAccept,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	taskID, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return storage.Task{}, err
	}
	task.ID = taskID
	return task, nil
}

// Respond records the executor's accept or reject of a pending task. An
// accept activates the task and arms its reminder schedule; stages whose
// fire time already passed are skipped.
func (s *Service) Respond(ctx context.Context, executorID, taskID int64, accept bool) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	if task.ExecutorID != executorID {
		return storage.Task{}, ErrForbidden
	}
	if task.Status != storage.TaskStatusPendingAccept {
		return storage.Task{}, ErrInvalidState
	}

	now := s.clock().UTC()
	if !accept {
		if err := s.store.SetTaskStatus(ctx, taskID, storage.TaskStatusRejected, now); err != nil {
			return storage.Task{}, err
		}
		task.Status = storage.TaskStatusRejected
		return task, nil
	}

	if err := s.store.SetTaskStatus(ctx, taskID, storage.TaskStatusActive, now); err != nil {
		return storage.Task{}, err
	}
	task.Status = storage.TaskStatusActive
	if task.DueAt != nil {
		stage, nextAt := InitialSchedule(*task.DueAt, now)
		if err := s.store.SetTaskSchedule(ctx, taskID, stage, nextAt, now); err != nil {
			return storage.Task{}, err
		}
		task.RemindStage = stage
		task.NextRemindAt = nextAt
	}
	return task, nil
}

// Complete lets the executor mark an active task done.
func (s *Service) Complete(ctx context.Context, executorID, taskID int64) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	if task.ExecutorID != executorID {
		return storage.Task{}, ErrForbidden
	}
	if task.Status != storage.TaskStatusActive {
		return storage.Task{}, ErrInvalidState
	}
	now := s.clock().UTC()
	if err := s.store.SetTaskStatus(ctx, taskID, storage.TaskStatusCompleted, now); err != nil {
		return storage.Task{}, err
	}
	task.Status = storage.TaskStatusCompleted
	return task, nil
}

// Decline lets the executor bail out of an active task, typically from an
// overdue reminder. An accepted task that is abandoned counts as canceled;
// rejected is reserved for turning down the initial offer.
func (s *Service) Decline(ctx context.Context, executorID, taskID int64) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	if task.ExecutorID != executorID {
		return storage.Task{}, ErrForbidden
	}
	if task.Status != storage.TaskStatusActive {
		return storage.Task{}, ErrInvalidState
	}
	now := s.clock().UTC()
	if err := s.store.SetTaskStatus(ctx, taskID, storage.TaskStatusCanceled, now); err != nil {
		return storage.Task{}, err
	}
	task.Status = storage.TaskStatusCanceled
	return task, nil
}

// Cancel lets the creator withdraw a pending or active task.
func (s *Service) Cancel(ctx context.Context, creatorID, taskID int64) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	if task.CreatorID != creatorID {
		return storage.Task{}, ErrForbidden
	}
	if task.Status != storage.TaskStatusPendingAccept && task.Status != storage.TaskStatusActive {
		return storage.Task{}, ErrInvalidState
	}
	now := s.clock().UTC()
	if err := s.store.SetTaskStatus(ctx, taskID, storage.TaskStatusCanceled, now); err != nil {
		return storage.Task{}, err
	}
	task.Status = storage.TaskStatusCanceled
	return task, nil
}

// Reschedule replaces an active task's deadline and rearms the reminder
// schedule from the first stage that has not yet passed. Executor only.
func (s *Service) Reschedule(ctx context.Context, executorID, taskID int64, dueAt time.Time) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	if task.ExecutorID != executorID {
		return storage.Task{}, ErrForbidden
	}
	if task.Status != storage.TaskStatusActive {
		return storage.Task{}, ErrInvalidState
	}

	now := s.clock().UTC()
	dueAt = dueAt.UTC()
	if !dueAt.After(now) {
		return storage.Task{}, ErrPastDeadline
	}

	if err := s.store.SetTaskDue(ctx, taskID, &dueAt, now); err != nil {
		return storage.Task{}, err
	}
	stage, nextAt := InitialSchedule(dueAt, now)
	if err := s.store.SetTaskSchedule(ctx, taskID, stage, nextAt, now); err != nil {
		return storage.Task{}, err
	}
	task.DueAt = &dueAt
	task.RemindStage = stage
	task.NextRemindAt = nextAt
	return task, nil
}

// RescheduleOffset applies one of the quick reschedule options offered on
// an overdue reminder. Hour offsets extend from the current deadline while
// it is still ahead, otherwise from now.
func (s *Service) RescheduleOffset(ctx context.Context, executorID, taskID int64, option string) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	now := s.clock().UTC()
	base := now
	if task.DueAt != nil && task.DueAt.After(now) {
		base = task.DueAt.UTC()
	}
	var dueAt time.Time
	switch option {
	case ReschedulePlus1:
		dueAt = base.Add(time.Hour)
	case ReschedulePlus3:
		dueAt = base.Add(3 * time.Hour)
	case RescheduleTomorrow10:
		tomorrow := now.AddDate(0, 0, 1)
		dueAt = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, time.UTC)
	default:
		return storage.Task{}, fmt.Errorf("unknown reschedule option %q", option)
	}
	return s.Reschedule(ctx, executorID, taskID, dueAt)
}

// RescheduleClock applies a manual HH:MM reschedule. A wall-clock time
// that already passed today rolls over to tomorrow.
func (s *Service) RescheduleClock(ctx context.Context, executorID, taskID int64, text string) (storage.Task, error) {
	hour, minute, err := ParseClock(text)
	if err != nil {
		return storage.Task{}, err
	}
	now := s.clock().UTC()
	dueAt := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !dueAt.After(now) {
		dueAt = dueAt.AddDate(0, 0, 1)
	}
	return s.Reschedule(ctx, executorID, taskID, dueAt)
}

// Get returns one task checked against membership.
func (s *Service) Get(ctx context.Context, actorID, taskID int64) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("task store is not configured")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	if task.CreatorID != actorID && task.ExecutorID != actorID {
		return storage.Task{}, ErrForbidden
	}
	return task, nil
}

// ListFor returns the creator's recent pending and active tasks.
func (s *Service) ListFor(ctx context.Context, creatorID int64, limit int) ([]storage.Task, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("task store is not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	statuses := []string{storage.TaskStatusPendingAccept, storage.TaskStatusActive}
	return s.store.ListTasksByCreator(ctx, creatorID, statuses, limit)
}

// HistoryFor returns the creator's recently finished tasks.
func (s *Service) HistoryFor(ctx context.Context, creatorID int64, limit int) ([]storage.Task, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("task store is not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	statuses := []string{storage.TaskStatusCompleted, storage.TaskStatusRejected, storage.TaskStatusCanceled}
	return s.store.ListTasksByCreator(ctx, creatorID, statuses, limit)
}

// RecordMessageRef remembers where the executor's rendering of the task
// lives so later reminders can reference it.
func (s *Service) RecordMessageRef(ctx context.Context, taskID int64, chatID int64, messageID int) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("task store is not configured")
	}
	return s.store.SetTaskMessageRef(ctx, taskID, chatID, messageID, s.clock().UTC())
}

func (s *Service) getTask(ctx context.Context, taskID int64) (storage.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Task{}, ErrTaskNotFound
		}
		return storage.Task{}, err
	}
	return task, nil
}
