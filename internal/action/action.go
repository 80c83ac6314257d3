// Package action defines the callback action-id vocabulary shared by the
// dispatcher and the reminder scheduler. Ids are colon-joined segments so
// a handler can route on the prefix and parse the rest.
package action

import (
	"strconv"
	"strings"
)

// Separator joins action-id segments.
const Separator = ":"

// Stable action ids without parameters.
const (
	PairNew    = "pair:new"
	PairEnter  = "pair:enter"
	PairStatus = "pair:status"

	SettingsUnlink        = "settings:unlink"
	SettingsUnlinkConfirm = "settings:unlink:yes"
	SettingsUnlinkCancel  = "settings:unlink:no"

	ListNew  = "list:new"
	ListOpen = "list:open"

	TaskNew         = "task:new"
	TaskList        = "task:list"
	TaskHistory     = "task:list:history"
	TaskDayToday    = "task:day:today"
	TaskDayTomorrow = "task:day:tomorrow"
	TaskDayNone     = "task:day:none"

	AliasEasy   = "alias:start:easy"
	AliasMedium = "alias:start:medium"
	AliasHard   = "alias:start:hard"
	AliasGuess  = "alias:guess"
	AliasSkip   = "alias:skip"
	AliasStop   = "alias:stop"

	CoinOne     = "coin:one"
	CoinSeries3 = "coin:series:3"
	CoinSeries5 = "coin:series:5"
)

// Join builds an action id from segments.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Split breaks an action id into segments.
func Split(id string) []string {
	return strings.Split(id, Separator)
}

// ID formats an int64 entity id segment.
func ID(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ParseID parses an int64 entity id segment.
func ParseID(segment string) (int64, bool) {
	v, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// LinkConfirm addresses one pairing confirmation decision.
func LinkConfirm(inviteID int64, accept bool) string {
	return Join("link", "confirm", ID(inviteID), decision(accept))
}

// ListSend sends one draft checklist.
func ListSend(listID int64) string { return Join("list", "send", ID(listID)) }

// ListEdit re-opens one draft checklist for editing.
func ListEdit(listID int64) string { return Join("list", "edit", ID(listID)) }

// ListCancel withdraws one draft checklist.
func ListCancel(listID int64) string { return Join("list", "cancel", ID(listID)) }

// ListRespond answers one pending checklist.
func ListRespond(listID int64, accept bool) string {
	return Join("list", "resp", ID(listID), decision(accept))
}

// ListItemToggle flips one checklist item.
func ListItemToggle(listID, itemID int64, done bool) string {
	state := "todo"
	if done {
		state = "done"
	}
	return Join("list", "item", ID(listID), ID(itemID), state)
}

// TaskRespond answers one pending task.
func TaskRespond(taskID int64, accept bool) string {
	return Join("task", "resp", ID(taskID), decision(accept))
}

// TaskDone completes one task.
func TaskDone(taskID int64) string { return Join("task", "done", ID(taskID)) }

// TaskDecline bails out of one active task.
func TaskDecline(taskID int64) string { return Join("task", "decline", ID(taskID)) }

// TaskReschedule opens the reschedule options for one task.
func TaskReschedule(taskID int64) string { return Join("task", "remind", ID(taskID)) }

// TaskRescheduleOption applies one quick reschedule choice.
func TaskRescheduleOption(taskID int64, option string) string {
	return Join("task", "resopt", ID(taskID), option)
}

func decision(accept bool) string {
	if accept {
		return "accept"
	}
	return "reject"
}
