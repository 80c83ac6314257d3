// Package render produces all user-facing copy for outbound notifications.
package render

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tandembot/tandem/internal/storage"
)

const timeLayout = "Mon, 02 Jan 15:04"

// Renderer formats notification copy through one locale-aware printer.
type Renderer struct {
	printer *message.Printer
}

// New returns a renderer for the default locale.
func New() *Renderer {
	return &Renderer{printer: message.NewPrinter(language.English)}
}

func (r *Renderer) sprintf(format string, args ...any) string {
	return r.printer.Sprintf(format, args...)
}

// Welcome greets a first contact and introduces the sections.
func (r *Renderer) Welcome() string {
	return r.sprintf("Hi! I mediate two-person workflows: pairing, a shared checklist, delegated tasks, games and a coin toss.")
}

// Help describes the available sections.
func (r *Renderer) Help() string {
	return strings.Join([]string{
		r.sprintf("Sections:"),
		r.sprintf("👥 Pairing — link up with a one-time code and confirmation."),
		r.sprintf("🛒 Checklist — a shared list from creator to executor."),
		r.sprintf("📋 Tasks — delegated tasks with deadlines and reminders."),
		r.sprintf("🎮 Games — Alias by difficulty level."),
		r.sprintf("🪙 Coin — heads or tails, single or series."),
		r.sprintf("⚙️ Settings — break the pairing."),
	}, "\n")
}

// GenericFailure is the copy for unexpected internal failures.
func (r *Renderer) GenericFailure() string {
	return r.sprintf("Something went wrong on our side. Please try again.")
}

// UnknownInput hints at the menu when free text matches nothing.
func (r *Renderer) UnknownInput() string {
	return r.sprintf("I did not catch that. Pick a section from the menu below.")
}

// --- pairing ---

// InviteCreated announces a fresh invite code with its lifetime and an
// optional deep link.
func (r *Renderer) InviteCreated(code string, ttl time.Duration, deepLink string) string {
	text := r.sprintf("Your code: %s\nValid for %d minutes.", code, int(ttl.Minutes()))
	if deepLink != "" {
		text += r.sprintf("\nLink: %s", deepLink)
	}
	return text
}

// EnterCodePrompt asks for an invite code.
func (r *Renderer) EnterCodePrompt() string {
	return r.sprintf("Enter the invite code (for example: A1B2C3).")
}

// CodePrefilled confirms a deep-linked code was picked up.
func (r *Renderer) CodePrefilled(code string) string {
	return r.sprintf("Got invite code %s. Send any text to confirm entering it.", code)
}

// RedeemSent tells the redeemer the request went out.
func (r *Renderer) RedeemSent() string {
	return r.sprintf("Request sent. Waiting for confirmation.")
}

// ConfirmPrompt asks the invite creator to accept or reject a redeemer.
func (r *Renderer) ConfirmPrompt(redeemerName string) string {
	return r.sprintf("Pair up with %s?", redeemerName)
}

// PairingConfirmedCreator is the creator-side confirmation edit.
func (r *Renderer) PairingConfirmedCreator() string {
	return r.sprintf("Pairing confirmed ✅")
}

// PairingConfirmedRedeemer notifies the redeemer the link is active.
func (r *Renderer) PairingConfirmedRedeemer() string {
	return r.sprintf("Your pairing is now active ✅")
}

// PairingRejectedCreator is the creator-side rejection edit.
func (r *Renderer) PairingRejectedCreator() string {
	return r.sprintf("You rejected the pairing request.")
}

// PairingRejectedRedeemer notifies the redeemer of the rejection.
func (r *Renderer) PairingRejectedRedeemer() string {
	return r.sprintf("Your pairing request was rejected.")
}

// PairingConflict explains a confirmation lost to a concurrent pairing.
func (r *Renderer) PairingConflict() string {
	return r.sprintf("Request closed: one of you already has an active pairing.")
}

// LinkStatus describes the current pairing partner.
func (r *Renderer) LinkStatus(partnerName string) string {
	return r.sprintf("You are paired with %s.", partnerName)
}

// NoLink states that no active pairing exists.
func (r *Renderer) NoLink() string {
	return r.sprintf("No active pairing right now.")
}

// UnlinkConfirmPrompt double-checks a pairing teardown.
func (r *Renderer) UnlinkConfirmPrompt() string {
	return r.sprintf("Break the pairing? Open checklists and tasks keep their participants.")
}

// UnlinkCanceled confirms an aborted teardown.
func (r *Renderer) UnlinkCanceled() string {
	return r.sprintf("Pairing kept.")
}

// Unlinked confirms a pairing teardown to either party.
func (r *Renderer) Unlinked() string {
	return r.sprintf("The pairing has been broken.")
}

// --- pairing errors ---

// AlreadyLinked explains the exclusivity rule.
func (r *Renderer) AlreadyLinked() string {
	return r.sprintf("You already have an active pairing. Break it first in ⚙️ Settings.")
}

// CodeCollision asks the creator to retry after a code clash.
func (r *Renderer) CodeCollision() string {
	return r.sprintf("That code clashed with an existing one. Please create the invite again.")
}

// InviteNotFound reports an unknown code.
func (r *Renderer) InviteNotFound() string {
	return r.sprintf("Code not found. Check it and try again.")
}

// SelfRedeem rejects using one's own code.
func (r *Renderer) SelfRedeem() string {
	return r.sprintf("You cannot use your own code.")
}

// InviteNotOpen reports an already used or closed code.
func (r *Renderer) InviteNotOpen() string {
	return r.sprintf("This code was already used or closed.")
}

// InviteExpired reports an expired code.
func (r *Renderer) InviteExpired() string {
	return r.sprintf("This code has expired.")
}

// NotYourRequest rejects confirming someone else's invite.
func (r *Renderer) NotYourRequest() string {
	return r.sprintf("This request is not yours to answer.")
}

// AlreadyResolved reports a double confirmation attempt.
func (r *Renderer) AlreadyResolved() string {
	return r.sprintf("This request was already handled.")
}

// NeedLinkFirst points to the pairing section.
func (r *Renderer) NeedLinkFirst() string {
	return r.sprintf("Pair up with a partner first in 👥 Pairing.")
}

// --- checklist ---

// ChecklistItemsPrompt asks for the list body.
func (r *Renderer) ChecklistItemsPrompt() string {
	return r.sprintf("Send the checklist in one message, one item per line.")
}

// ChecklistEditPrompt asks for a replacement list body.
func (r *Renderer) ChecklistEditPrompt() string {
	return r.sprintf("Send the updated checklist in a new message.")
}

// ChecklistEmpty reports that no items could be parsed.
func (r *Renderer) ChecklistEmpty() string {
	return r.sprintf("Could not read the checklist. Send at least one item.")
}

// Checkmark symbols for item states.
const (
	markDone = "✅"
	markTodo = "⬜️"
)

// ChecklistBody renders the item lines of a list.
func (r *Renderer) ChecklistBody(items []storage.ListItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		mark := markTodo
		if item.Status == storage.ItemStatusDone {
			mark = markDone
		}
		line := mark + " " + item.Text
		if item.Quantity != "" {
			line += " (" + item.Quantity + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ChecklistPreview shows the draft with a send prompt.
func (r *Renderer) ChecklistPreview(items []storage.ListItem) string {
	return r.sprintf("Checklist preview:\n%s\n\nSend it to your partner?", r.ChecklistBody(items))
}

// ChecklistIncoming announces a new pending list to the executor.
func (r *Renderer) ChecklistIncoming(creatorName string, items []storage.ListItem) string {
	return r.sprintf("New checklist from %s:\n%s", creatorName, r.ChecklistBody(items))
}

// ChecklistSent confirms dispatch to the creator.
func (r *Renderer) ChecklistSent() string {
	return r.sprintf("Checklist sent to your partner. Waiting for their answer.")
}

// ChecklistCanceled confirms a draft cancellation.
func (r *Renderer) ChecklistCanceled() string {
	return r.sprintf("Checklist creation canceled.")
}

// ChecklistAccepted is the executor-side acceptance header.
func (r *Renderer) ChecklistAccepted(listID int64) string {
	return r.sprintf("Checklist #%d is active. Tick items with the buttons below.", listID)
}

// ChecklistAcceptedCreator notifies the creator of acceptance.
func (r *Renderer) ChecklistAcceptedCreator(listID int64) string {
	return r.sprintf("Checklist #%d was accepted by your partner ✅", listID)
}

// ChecklistRejectedExecutor is the executor-side rejection edit.
func (r *Renderer) ChecklistRejectedExecutor() string {
	return r.sprintf("You rejected the checklist.")
}

// ChecklistRejectedCreator notifies the creator of rejection.
func (r *Renderer) ChecklistRejectedCreator(listID int64) string {
	return r.sprintf("Your checklist #%d was rejected.", listID)
}

// ChecklistProgress shows the live list to the executor.
func (r *Renderer) ChecklistProgress(listID int64, items []storage.ListItem) string {
	return r.sprintf("Checklist #%d:\n%s", listID, r.ChecklistBody(items))
}

// ChecklistItemDelta notifies the creator of one toggled item.
func (r *Renderer) ChecklistItemDelta(itemText string, done bool) string {
	if done {
		return r.sprintf("Checked off: %s", itemText)
	}
	return r.sprintf("Put back: %s", itemText)
}

// ChecklistCompleted announces full completion.
func (r *Renderer) ChecklistCompleted(listID int64, items []storage.ListItem) string {
	return r.sprintf("Checklist #%d is done ✅\n%s", listID, r.ChecklistBody(items))
}

// ChecklistCompletedNote is the short completion note for the creator.
func (r *Renderer) ChecklistCompletedNote(listID int64) string {
	return r.sprintf("Checklist #%d is done ✅", listID)
}

// ChecklistStatus shows a list with its status header.
func (r *Renderer) ChecklistStatus(list storage.List, items []storage.ListItem) string {
	return r.sprintf("Checklist #%d (%s)\n%s", list.ID, list.Status, r.ChecklistBody(items))
}

// NoOpenChecklist states that no pending or active list exists.
func (r *Renderer) NoOpenChecklist() string {
	return r.sprintf("No open checklists.")
}

// ChecklistAlreadyActive explains the one-open-list rule.
func (r *Renderer) ChecklistAlreadyActive() string {
	return r.sprintf("You already have an open checklist. Close it before creating a new one.")
}

// ChecklistUnavailable reports a stale draft or foreign list action.
func (r *Renderer) ChecklistUnavailable() string {
	return r.sprintf("This checklist is not available for that action.")
}

// ItemUnchanged reports a toggle that would not change anything.
func (r *Renderer) ItemUnchanged() string {
	return r.sprintf("That item is already marked this way.")
}

// --- tasks ---

// DueLabel formats an optional deadline.
func (r *Renderer) DueLabel(dueAt *time.Time) string {
	if dueAt == nil {
		return r.sprintf("no deadline")
	}
	return dueAt.Format(timeLayout)
}

// TaskTextPrompt asks for the task body.
func (r *Renderer) TaskTextPrompt() string {
	return r.sprintf("Describe the task in one message.")
}

// TaskDeadlinePrompt asks for the deadline day choice.
func (r *Renderer) TaskDeadlinePrompt() string {
	return r.sprintf("Pick a deadline:")
}

// TaskTimePrompt asks for a clock time.
func (r *Renderer) TaskTimePrompt() string {
	return r.sprintf("Enter the time as HH:MM.")
}

// TaskInvalidTime reports a malformed clock time.
func (r *Renderer) TaskInvalidTime() string {
	return r.sprintf("Wrong format. Use HH:MM, for example 19:30.")
}

// TaskPastDeadline reports a deadline already in the past.
func (r *Renderer) TaskPastDeadline() string {
	return r.sprintf("That time has already passed. Pick a future time.")
}

// TaskCreated confirms a delegation request to the creator.
func (r *Renderer) TaskCreated(taskID int64, dueAt *time.Time) string {
	return r.sprintf("Task #%d created and sent for approval.\nDeadline: %s", taskID, r.DueLabel(dueAt))
}

// TaskIncoming announces a new pending task to the executor.
func (r *Renderer) TaskIncoming(taskID int64, text string, dueAt *time.Time) string {
	return r.sprintf("📋 New task #%d:\n%s\nDeadline: %s", taskID, text, r.DueLabel(dueAt))
}

// TaskAccepted is the executor-side acceptance edit.
func (r *Renderer) TaskAccepted(taskID int64) string {
	return r.sprintf("Task #%d accepted.", taskID)
}

// TaskAcceptedCreator notifies the creator of acceptance.
func (r *Renderer) TaskAcceptedCreator(taskID int64) string {
	return r.sprintf("✅ Task #%d was accepted by your partner.", taskID)
}

// TaskRejectedExecutor is the executor-side rejection edit.
func (r *Renderer) TaskRejectedExecutor(taskID int64) string {
	return r.sprintf("You rejected task #%d.", taskID)
}

// TaskRejectedCreator notifies the creator of rejection.
func (r *Renderer) TaskRejectedCreator(taskID int64) string {
	return r.sprintf("❌ Your task #%d was rejected.", taskID)
}

// TaskCompletedExecutor is the executor-side completion edit.
func (r *Renderer) TaskCompletedExecutor(taskID int64) string {
	return r.sprintf("✅ Task #%d marked as done.", taskID)
}

// TaskCompletedCreator notifies the creator of completion.
func (r *Renderer) TaskCompletedCreator(taskID int64) string {
	return r.sprintf("✅ Task #%d is done.", taskID)
}

// TaskDeclinedExecutor is the executor-side decline edit.
func (r *Renderer) TaskDeclinedExecutor(taskID int64) string {
	return r.sprintf("❌ You declined task #%d.", taskID)
}

// TaskDeclinedCreator notifies the creator of a decline.
func (r *Renderer) TaskDeclinedCreator(taskID int64) string {
	return r.sprintf("❌ Your partner declined task #%d.", taskID)
}

// TaskReschedulePrompt offers the reschedule options.
func (r *Renderer) TaskReschedulePrompt() string {
	return r.sprintf("Pick a new deadline:")
}

// TaskRescheduled confirms a moved deadline to the executor.
func (r *Renderer) TaskRescheduled(taskID int64, dueAt time.Time) string {
	return r.sprintf("⏰ Task #%d deadline moved to %s.", taskID, dueAt.Format(timeLayout))
}

// TaskRescheduledCreator notifies the creator of a moved deadline.
func (r *Renderer) TaskRescheduledCreator(taskID int64, dueAt time.Time) string {
	return r.sprintf("⏰ Your partner moved task #%d to %s.", taskID, dueAt.Format(timeLayout))
}

// TaskUnavailable reports a stale or foreign task action.
func (r *Renderer) TaskUnavailable() string {
	return r.sprintf("This task is not available for that action.")
}

// TaskSummary formats one task for listings.
func (r *Renderer) TaskSummary(task storage.Task) string {
	return r.sprintf("#%d • %s\nStatus: %s\nDeadline: %s", task.ID, task.Text, task.Status, r.DueLabel(task.DueAt))
}

// TaskListEmpty reports an empty listing.
func (r *Renderer) TaskListEmpty(history bool) string {
	if history {
		return r.sprintf("Task history is empty.")
	}
	return r.sprintf("No active tasks yet.")
}

// TaskList joins task summaries.
func (r *Renderer) TaskList(tasks []storage.Task) string {
	lines := make([]string, 0, len(tasks))
	for _, task := range tasks {
		lines = append(lines, r.TaskSummary(task))
	}
	return strings.Join(lines, "\n\n")
}

// --- reminders ---

// ReminderExecutor composes the stage-specific reminder for the executor.
func (r *Renderer) ReminderExecutor(task storage.Task) string {
	switch {
	case task.RemindStage == 0:
		return r.sprintf("⏰ Reminder: 1 hour left before the deadline of task #%d.\n%s", task.ID, task.Text)
	case task.RemindStage == 1:
		return r.sprintf("🚨 The deadline of task #%d has arrived.\n%s", task.ID, task.Text)
	default:
		return r.sprintf("🔁 Overdue task #%d is still not done (reminder %d/3).\n%s", task.ID, task.RemindStage-1, task.Text)
	}
}

// ReminderCreator is the lighter status note sent to the creator.
func (r *Renderer) ReminderCreator(taskID int64) string {
	return r.sprintf("📋 Task #%d update: a reminder was sent to your partner.", taskID)
}

// --- games ---

// AliasRules explains scoring.
func (r *Renderer) AliasRules() string {
	return r.sprintf("Rules: +1 point per guessed word, skipping is free.")
}

// AliasWord shows the current round word.
func (r *Renderer) AliasWord(word string) string {
	return r.sprintf("Word: %s", word)
}

// AliasScore shows the final score with a replay hint.
func (r *Renderer) AliasScore(score int) string {
	return r.sprintf("Final score: %d points. Play again?", score)
}

// AliasNoSession reports a missing game session.
func (r *Renderer) AliasNoSession() string {
	return r.sprintf("No game in progress.")
}

// CoinResult shows a single toss.
func (r *Renderer) CoinResult(face string) string {
	return r.sprintf("Result: %s", face)
}

// CoinSeries shows a toss series.
func (r *Renderer) CoinSeries(faces []string) string {
	return r.sprintf("Series (%d): %s", len(faces), strings.Join(faces, " • "))
}
