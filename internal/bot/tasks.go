package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tandembot/tandem/internal/action"
	"github.com/tandembot/tandem/internal/capture"
	"github.com/tandembot/tandem/internal/storage"
	"github.com/tandembot/tandem/internal/task"
	"github.com/tandembot/tandem/internal/transport"
)

const taskListLimit = 10

func (b *Bot) showTasksMenu(ctx context.Context, accountID int64) error {
	_, linked, err := b.partner(ctx, accountID)
	if err != nil {
		return err
	}
	if !linked {
		b.say(ctx, accountID, b.render.NeedLinkFirst())
		return nil
	}
	controls := [][]transport.Control{
		transport.Row(transport.Control{Label: "➕ New task", ActionID: action.TaskNew}),
		transport.Row(
			transport.Control{Label: "📄 My tasks", ActionID: action.TaskList},
			transport.Control{Label: "🗂 History", ActionID: action.TaskHistory},
		),
	}
	_, err = b.tell(ctx, accountID, menuTasks, controls)
	return err
}

func (b *Bot) handleTaskAction(ctx context.Context, event transport.Event, parts []string) error {
	switch event.ActionID {
	case action.TaskNew:
		if err := b.captures.Set(ctx, event.AccountID, capture.TagTaskText, nil); err != nil {
			return err
		}
		b.say(ctx, event.AccountID, b.render.TaskTextPrompt())
		return nil
	case action.TaskList:
		tasks, err := b.tasks.ListFor(ctx, event.AccountID, taskListLimit)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			b.say(ctx, event.AccountID, b.render.TaskListEmpty(false))
			return nil
		}
		b.say(ctx, event.AccountID, b.render.TaskList(tasks))
		return nil
	case action.TaskHistory:
		tasks, err := b.tasks.HistoryFor(ctx, event.AccountID, taskListLimit)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			b.say(ctx, event.AccountID, b.render.TaskListEmpty(true))
			return nil
		}
		b.say(ctx, event.AccountID, b.render.TaskList(tasks))
		return nil
	case action.TaskDayToday, action.TaskDayTomorrow, action.TaskDayNone:
		return b.chooseTaskDay(ctx, event)
	}

	if len(parts) < 3 {
		b.say(ctx, event.AccountID, b.render.UnknownInput())
		return nil
	}
	taskID, ok := action.ParseID(parts[2])
	if !ok {
		return fmt.Errorf("malformed task id %q", parts[2])
	}

	switch parts[1] {
	case "resp":
		if len(parts) == 4 {
			return b.respondTask(ctx, event, taskID, parts[3] == "accept")
		}
	case "done":
		return b.completeTask(ctx, event, taskID)
	case "decline":
		return b.declineTask(ctx, event, taskID)
	case "remind":
		b.rewrite(ctx, event.Ref, b.render.TaskReschedulePrompt(), rescheduleControls(taskID))
		return nil
	case "resopt":
		if len(parts) == 4 {
			return b.rescheduleTask(ctx, event, taskID, parts[3])
		}
	}
	b.say(ctx, event.AccountID, b.render.UnknownInput())
	return nil
}

func (b *Bot) consumeTaskText(ctx context.Context, event transport.Event) error {
	text := event.Text
	if text == "" {
		b.say(ctx, event.AccountID, b.render.TaskTextPrompt())
		return nil
	}
	// Park the text until a deadline day is chosen.
	if err := b.captures.Set(ctx, event.AccountID, capture.TagTaskTime, capture.TaskTimePayload{Text: text}); err != nil {
		return err
	}
	controls := [][]transport.Control{
		transport.Row(
			transport.Control{Label: "Today", ActionID: action.TaskDayToday},
			transport.Control{Label: "Tomorrow", ActionID: action.TaskDayTomorrow},
		),
		transport.Row(transport.Control{Label: "No deadline", ActionID: action.TaskDayNone}),
	}
	_, err := b.tell(ctx, event.AccountID, b.render.TaskDeadlinePrompt(), controls)
	return err
}

func (b *Bot) chooseTaskDay(ctx context.Context, event transport.Event) error {
	tag, payload, ok, err := b.captures.Get(ctx, event.AccountID)
	if err != nil {
		return err
	}
	if !ok || tag != capture.TagTaskTime {
		b.say(ctx, event.AccountID, b.render.TaskUnavailable())
		return nil
	}
	var slot capture.TaskTimePayload
	if err := capture.Decode(payload, &slot); err != nil {
		return err
	}

	if event.ActionID == action.TaskDayNone {
		if err := b.captures.Clear(ctx, event.AccountID); err != nil {
			return err
		}
		return b.createTask(ctx, event.AccountID, slot.Text, nil)
	}

	slot.Day = task.DayToday
	if event.ActionID == action.TaskDayTomorrow {
		slot.Day = task.DayTomorrow
	}
	if err := b.captures.Set(ctx, event.AccountID, capture.TagTaskTime, slot); err != nil {
		return err
	}
	b.say(ctx, event.AccountID, b.render.TaskTimePrompt())
	return nil
}

func (b *Bot) consumeTaskTime(ctx context.Context, event transport.Event, payload []byte) error {
	var slot capture.TaskTimePayload
	if err := capture.Decode(payload, &slot); err != nil {
		return err
	}
	if slot.Day == "" {
		// The day buttons were never pressed; nudge towards them.
		b.say(ctx, event.AccountID, b.render.TaskDeadlinePrompt())
		return nil
	}

	hour, minute, err := task.ParseClock(event.Text)
	if err != nil {
		b.say(ctx, event.AccountID, b.render.TaskInvalidTime())
		return nil
	}
	dueAt, err := task.BuildDueAt(b.clock().UTC(), slot.Day, hour, minute)
	if err != nil {
		b.say(ctx, event.AccountID, b.render.TaskPastDeadline())
		return nil
	}

	if err := b.captures.Clear(ctx, event.AccountID); err != nil {
		return err
	}
	return b.createTask(ctx, event.AccountID, slot.Text, &dueAt)
}

func (b *Bot) createTask(ctx context.Context, creatorID int64, text string, dueAt *time.Time) error {
	executorID, linked, err := b.partner(ctx, creatorID)
	if err != nil {
		return err
	}
	if !linked {
		b.say(ctx, creatorID, b.render.NeedLinkFirst())
		return nil
	}

	created, err := b.tasks.Create(ctx, creatorID, executorID, text, dueAt)
	switch {
	case errors.Is(err, task.ErrPastDeadline):
		b.say(ctx, creatorID, b.render.TaskPastDeadline())
		return nil
	case err != nil:
		return err
	}

	b.say(ctx, creatorID, b.render.TaskCreated(created.ID, created.DueAt))

	controls := [][]transport.Control{transport.Row(
		transport.Control{Label: "✅ Accept", ActionID: action.TaskRespond(created.ID, true)},
		transport.Control{Label: "❌ Reject", ActionID: action.TaskRespond(created.ID, false)},
	)}
	ref, err := b.tell(ctx, executorID, b.render.TaskIncoming(created.ID, created.Text, created.DueAt), controls)
	if err != nil {
		return fmt.Errorf("offer task to executor: %w", err)
	}
	return b.tasks.RecordMessageRef(ctx, created.ID, ref.ChatID, ref.MessageID)
}

func (b *Bot) respondTask(ctx context.Context, event transport.Event, taskID int64, accept bool) error {
	updated, err := b.tasks.Respond(ctx, event.AccountID, taskID, accept)
	if handled := b.taskFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}

	if accept {
		b.rewrite(ctx, event.Ref, b.render.TaskAccepted(taskID), taskControls(taskID))
		b.say(ctx, updated.CreatorID, b.render.TaskAcceptedCreator(taskID))
		return nil
	}
	b.rewrite(ctx, event.Ref, b.render.TaskRejectedExecutor(taskID), nil)
	b.say(ctx, updated.CreatorID, b.render.TaskRejectedCreator(taskID))
	return nil
}

func (b *Bot) completeTask(ctx context.Context, event transport.Event, taskID int64) error {
	updated, err := b.tasks.Complete(ctx, event.AccountID, taskID)
	if handled := b.taskFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}
	b.rewrite(ctx, event.Ref, b.render.TaskCompletedExecutor(taskID), nil)
	b.say(ctx, counterpart(updated, event.AccountID), b.render.TaskCompletedCreator(taskID))
	return nil
}

func (b *Bot) declineTask(ctx context.Context, event transport.Event, taskID int64) error {
	updated, err := b.tasks.Decline(ctx, event.AccountID, taskID)
	if handled := b.taskFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}
	b.rewrite(ctx, event.Ref, b.render.TaskDeclinedExecutor(taskID), nil)
	b.say(ctx, updated.CreatorID, b.render.TaskDeclinedCreator(taskID))
	return nil
}

func (b *Bot) rescheduleTask(ctx context.Context, event transport.Event, taskID int64, option string) error {
	if option == "manual" {
		if err := b.captures.Set(ctx, event.AccountID, capture.TagTaskRescheduleTime, capture.TaskReschedulePayload{TaskID: taskID}); err != nil {
			return err
		}
		b.say(ctx, event.AccountID, b.render.TaskTimePrompt())
		return nil
	}

	updated, err := b.tasks.RescheduleOffset(ctx, event.AccountID, taskID, option)
	if handled := b.taskFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}
	b.rewrite(ctx, event.Ref, b.render.TaskRescheduled(taskID, *updated.DueAt), taskControls(taskID))
	b.say(ctx, counterpart(updated, event.AccountID), b.render.TaskRescheduledCreator(taskID, *updated.DueAt))
	return nil
}

func (b *Bot) consumeRescheduleTime(ctx context.Context, event transport.Event, payload []byte) error {
	var slot capture.TaskReschedulePayload
	if err := capture.Decode(payload, &slot); err != nil {
		return err
	}

	updated, err := b.tasks.RescheduleClock(ctx, event.AccountID, slot.TaskID, event.Text)
	if errors.Is(err, task.ErrInvalidTime) {
		b.say(ctx, event.AccountID, b.render.TaskInvalidTime())
		return nil
	}
	if err := b.captures.Clear(ctx, event.AccountID); err != nil {
		return err
	}
	if handled := b.taskFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}

	b.say(ctx, event.AccountID, b.render.TaskRescheduled(slot.TaskID, *updated.DueAt))
	b.say(ctx, counterpart(updated, event.AccountID), b.render.TaskRescheduledCreator(slot.TaskID, *updated.DueAt))
	return nil
}

// taskFailure answers the user for expected task errors and reports whether
// it did.
func (b *Bot) taskFailure(ctx context.Context, accountID int64, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, task.ErrForbidden),
		errors.Is(err, task.ErrInvalidState):
		b.say(ctx, accountID, b.render.TaskUnavailable())
		return true
	case errors.Is(err, task.ErrPastDeadline):
		b.say(ctx, accountID, b.render.TaskPastDeadline())
		return true
	case errors.Is(err, task.ErrInvalidTime):
		b.say(ctx, accountID, b.render.TaskInvalidTime())
		return true
	}
	return false
}

func counterpart(t storage.Task, actorID int64) int64 {
	if actorID == t.ExecutorID {
		return t.CreatorID
	}
	return t.ExecutorID
}

func taskControls(taskID int64) [][]transport.Control {
	return [][]transport.Control{
		transport.Row(transport.Control{Label: "✅ Done", ActionID: action.TaskDone(taskID)}),
		transport.Row(
			transport.Control{Label: "⏰ Reschedule", ActionID: action.TaskReschedule(taskID)},
			transport.Control{Label: "❌ Decline", ActionID: action.TaskDecline(taskID)},
		),
	}
}

func rescheduleControls(taskID int64) [][]transport.Control {
	return [][]transport.Control{
		transport.Row(
			transport.Control{Label: "+1 hour", ActionID: action.TaskRescheduleOption(taskID, task.ReschedulePlus1)},
			transport.Control{Label: "+3 hours", ActionID: action.TaskRescheduleOption(taskID, task.ReschedulePlus3)},
		),
		transport.Row(
			transport.Control{Label: "Tomorrow 10:00", ActionID: action.TaskRescheduleOption(taskID, task.RescheduleTomorrow10)},
			transport.Control{Label: "Other time", ActionID: action.TaskRescheduleOption(taskID, "manual")},
		),
	}
}
