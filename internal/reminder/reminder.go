// Package reminder drives the staged reminder schedule for delegated
// tasks with a periodic sweep over due rows.
package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tandembot/tandem/internal/action"
	"github.com/tandembot/tandem/internal/render"
	"github.com/tandembot/tandem/internal/storage"
	"github.com/tandembot/tandem/internal/task"
	"github.com/tandembot/tandem/internal/transport"
)

// DefaultTick is the sweep interval.
const DefaultTick = time.Minute

// Scheduler sweeps for due reminders and delivers them.
type Scheduler struct {
	store  storage.TaskStore
	sender transport.Sender
	render *render.Renderer
	clock  func() time.Time
	tick   time.Duration
}

// NewScheduler constructs the reminder sweep.
func NewScheduler(store storage.TaskStore, sender transport.Sender, renderer *render.Renderer, tick time.Duration, clock func() time.Time) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{store: store, sender: sender, render: renderer, clock: clock, tick: tick}
}

// Run sweeps on the configured interval until context cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("reminder scheduler is not configured")
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				log.Printf("reminder sweep: %v", err)
			}
		}
	}
}

// Tick delivers every due reminder once and advances each task to its next
// stage. The stage advances even when delivery fails so a persistently
// unreachable chat cannot wedge the sweep on one task.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("reminder scheduler is not configured")
	}
	ctx, span := otel.Tracer("reminder").Start(ctx, "reminder.Tick")
	defer span.End()

	now := s.clock().UTC()
	due, err := s.store.DueReminders(ctx, now, task.MaxRemindStage)
	if err != nil {
		return fmt.Errorf("select due reminders: %w", err)
	}
	span.SetAttributes(attribute.Int("reminders.due", len(due)))

	for _, t := range due {
		if err := s.deliver(ctx, t); err != nil {
			log.Printf("deliver reminder for task %d: %v", t.ID, err)
		}
		if err := s.advance(ctx, t, now); err != nil {
			log.Printf("advance reminder for task %d: %v", t.ID, err)
		}
	}
	return nil
}

func (s *Scheduler) deliver(ctx context.Context, t storage.Task) error {
	controls := [][]transport.Control{
		transport.Row(transport.Control{Label: "✅ Done", ActionID: action.TaskDone(t.ID)}),
		transport.Row(
			transport.Control{Label: "⏰ Reschedule", ActionID: action.TaskReschedule(t.ID)},
			transport.Control{Label: "❌ Decline", ActionID: action.TaskDecline(t.ID)},
		),
	}
	ref, err := s.sender.Send(ctx, t.ExecutorID, s.render.ReminderExecutor(t), controls)
	if err != nil {
		return fmt.Errorf("notify executor: %w", err)
	}
	if err := s.store.SetTaskMessageRef(ctx, t.ID, ref.ChatID, ref.MessageID, s.clock().UTC()); err != nil {
		log.Printf("record reminder message for task %d: %v", t.ID, err)
	}
	if _, err := s.sender.Send(ctx, t.CreatorID, s.render.ReminderCreator(t.ID), nil); err != nil {
		log.Printf("notify creator for task %d: %v", t.ID, err)
	}
	return nil
}

func (s *Scheduler) advance(ctx context.Context, t storage.Task, now time.Time) error {
	nextStage := t.RemindStage + 1
	var nextAt *time.Time
	if t.DueAt != nil {
		nextAt = task.NextReminderAt(*t.DueAt, nextStage)
	}
	return s.store.AdvanceTaskReminder(ctx, t.ID, nextStage, nextAt, now)
}
