// Package storage defines persistence contracts for tandem service state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateCode indicates an invite code collided with an existing one.
var ErrDuplicateCode = errors.New("invite code already exists")

// Account stores one chat identity observed on an inbound event.
type Account struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// AccountStore persists chat identities. Accounts are upserted on every
// inbound event and never deleted.
type AccountStore interface {
	UpsertAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, accountID int64) (Account, error)
}

// Capture stores the single pending input slot for one account.
type Capture struct {
	AccountID int64
	Tag       string
	Payload   []byte
	UpdatedAt time.Time
}

// CaptureStore persists at most one pending capture slot per account.
type CaptureStore interface {
	SetCapture(ctx context.Context, capture Capture) error
	GetCapture(ctx context.Context, accountID int64) (Capture, error)
	ClearCapture(ctx context.Context, accountID int64) error
}

// Invite lifecycle statuses.
const (
	InviteStatusOpen            = "open"
	InviteStatusAwaitingCreator = "awaiting_creator"
	InviteStatusAccepted        = "accepted"
	InviteStatusRejected        = "rejected"
	InviteStatusExpired         = "expired"
)

// Invite stores one single-use pairing code.
type Invite struct {
	ID          int64
	CreatorID   int64
	Code        string
	Status      string
	UsedBy      int64
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// Link lifecycle statuses.
const (
	LinkStatusActive = "active"
	LinkStatusEnded  = "ended"
)

// Link stores one confirmed pairing between two accounts.
type Link struct {
	ID        int64
	UserA     int64
	UserB     int64
	Status    string
	CreatedAt time.Time
	EndedAt   *time.Time
}

// PairingStore persists invites and links. AcceptInvite applies the invite
// status change and the link insert in one transaction.
type PairingStore interface {
	CreateInvite(ctx context.Context, invite Invite) (int64, error)
	GetInvite(ctx context.Context, inviteID int64) (Invite, error)
	GetInviteByCode(ctx context.Context, code string) (Invite, error)
	ExpireStaleInvites(ctx context.Context, creatorID int64, now time.Time) error
	MarkInviteExpired(ctx context.Context, inviteID int64) error
	MarkInviteRedeemed(ctx context.Context, inviteID int64, redeemerID int64) error
	MarkInviteResolved(ctx context.Context, inviteID int64, status string, respondedAt time.Time) error
	AcceptInvite(ctx context.Context, inviteID int64, link Link, respondedAt time.Time) (int64, error)
	GetActiveLink(ctx context.Context, accountID int64) (Link, error)
	EndLink(ctx context.Context, linkID int64, endedAt time.Time) error
}

// Shared list lifecycle statuses.
const (
	ListStatusDraft         = "draft"
	ListStatusPendingAccept = "pending_accept"
	ListStatusActive        = "active"
	ListStatusCompleted     = "completed"
	ListStatusCanceled      = "canceled"
)

// List item statuses.
const (
	ItemStatusTodo = "todo"
	ItemStatusDone = "done"
)

// List stores one creator→executor checklist. The creator and executor are a
// snapshot of the pairing at creation time, not a live link reference. The
// message fields address previously sent notifications for in-place edits.
type List struct {
	ID                int64
	CreatorID         int64
	ExecutorID        int64
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CreatorChatID     int64
	CreatorMessageID  int
	ExecutorChatID    int64
	ExecutorMessageID int
}

// ListItem stores one ordered checklist entry.
type ListItem struct {
	ID       int64
	ListID   int64
	Order    int
	Text     string
	Quantity string
	Status   string
}

// MessageSide selects which party's tracked notification a ref update targets.
type MessageSide string

const (
	// MessageSideCreator addresses the creator's tracked notification.
	MessageSideCreator MessageSide = "creator"
	// MessageSideExecutor addresses the executor's tracked notification.
	MessageSideExecutor MessageSide = "executor"
)

// ChecklistStore persists shared lists and their items. CreateList and
// ReplaceListItems apply the list row and its items in one transaction.
type ChecklistStore interface {
	CreateList(ctx context.Context, list List, items []ListItem) (int64, error)
	GetList(ctx context.Context, listID int64) (List, error)
	GetOpenListByCreator(ctx context.Context, creatorID int64) (List, error)
	GetOpenListByMember(ctx context.Context, accountID int64) (List, error)
	ReplaceListItems(ctx context.Context, listID int64, items []ListItem, updatedAt time.Time) error
	ListItems(ctx context.Context, listID int64) ([]ListItem, error)
	GetListItem(ctx context.Context, listID int64, itemID int64) (ListItem, error)
	SetListStatus(ctx context.Context, listID int64, status string, updatedAt time.Time) error
	SetListItemStatus(ctx context.Context, itemID int64, status string) error
	CountOpenItems(ctx context.Context, listID int64) (int, error)
	SetListMessageRef(ctx context.Context, listID int64, side MessageSide, chatID int64, messageID int, updatedAt time.Time) error
}

// Task lifecycle statuses.
const (
	TaskStatusPendingAccept = "pending_accept"
	TaskStatusActive        = "active"
	TaskStatusCompleted     = "completed"
	TaskStatusRejected      = "rejected"
	TaskStatusCanceled      = "canceled"
)

// Task stores one delegated task with its staged reminder schedule.
type Task struct {
	ID                int64
	CreatorID         int64
	ExecutorID        int64
	Text              string
	DueAt             *time.Time
	Status            string
	RemindStage       int
	RemindersSent     int
	NextRemindAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExecutorChatID    int64
	ExecutorMessageID int
}

// TaskStore persists delegated tasks and their reminder bookkeeping.
type TaskStore interface {
	CreateTask(ctx context.Context, task Task) (int64, error)
	GetTask(ctx context.Context, taskID int64) (Task, error)
	ListTasksByCreator(ctx context.Context, creatorID int64, statuses []string, limit int) ([]Task, error)
	SetTaskStatus(ctx context.Context, taskID int64, status string, updatedAt time.Time) error
	SetTaskDue(ctx context.Context, taskID int64, dueAt *time.Time, updatedAt time.Time) error
	SetTaskSchedule(ctx context.Context, taskID int64, stage int, nextRemindAt *time.Time, updatedAt time.Time) error
	AdvanceTaskReminder(ctx context.Context, taskID int64, stage int, nextRemindAt *time.Time, updatedAt time.Time) error
	DueReminders(ctx context.Context, now time.Time, maxStage int) ([]Task, error)
	SetTaskMessageRef(ctx context.Context, taskID int64, chatID int64, messageID int, updatedAt time.Time) error
}

// Alias session statuses.
const (
	AliasStatusActive  = "active"
	AliasStatusStopped = "stopped"
)

// AliasSession stores one per-account word game session.
type AliasSession struct {
	AccountID   int64
	Difficulty  string
	Score       int
	Status      string
	CurrentWord string
	LastWord    string
	UsedWords   []string
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

// AliasStore persists word game sessions, one row per account.
type AliasStore interface {
	UpsertAliasSession(ctx context.Context, session AliasSession) error
	GetActiveAliasSession(ctx context.Context, accountID int64) (AliasSession, error)
	SetAliasRound(ctx context.Context, accountID int64, currentWord string, usedWords []string, updatedAt time.Time) error
	AddAliasScore(ctx context.Context, accountID int64, delta int, updatedAt time.Time) error
	StopAliasSession(ctx context.Context, accountID int64, updatedAt time.Time) error
}

// Store aggregates all persistence contracts backed by one store of record.
type Store interface {
	AccountStore
	CaptureStore
	PairingStore
	ChecklistStore
	TaskStore
	AliasStore
	Close() error
}
