// Package transport defines the chat transport boundary consumed by the bot
// core: outbound sends with inline controls, in-place edits of previously
// sent notifications, and inbound events normalized from the chat provider.
package transport

import "context"

// Control is one labeled action button offered with a notification.
type Control struct {
	Label    string
	ActionID string
}

// MessageRef addresses one previously sent notification for in-place edits.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Zero reports whether the ref does not address any message.
func (r MessageRef) Zero() bool {
	return r.ChatID == 0 || r.MessageID == 0
}

// EventKind distinguishes free text from control activations.
type EventKind string

const (
	// KindText carries a command phrase or free-form input.
	KindText EventKind = "text"
	// KindAction carries an opaque control action identifier.
	KindAction EventKind = "action"
)

// Event is one normalized inbound chat event.
type Event struct {
	AccountID int64
	Username  string
	FirstName string
	LastName  string
	Kind      EventKind
	Text      string
	ActionID  string
	// Ref addresses the message the event originated from. For control
	// activations this is the message carrying the control.
	Ref MessageRef
}

// Sender delivers outbound notifications to one account.
type Sender interface {
	Send(ctx context.Context, accountID int64, text string, rows [][]Control) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string, rows [][]Control) error
}

// MenuSender optionally offers a persistent reply menu alongside a message.
type MenuSender interface {
	SendMenu(ctx context.Context, accountID int64, text string, menuRows [][]string) error
}

// Row builds one control row.
func Row(controls ...Control) []Control {
	return controls
}
