package bot

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/tandembot/tandem/internal/capture"
	"github.com/tandembot/tandem/internal/checklist"
	"github.com/tandembot/tandem/internal/directory"
	"github.com/tandembot/tandem/internal/games/alias"
	"github.com/tandembot/tandem/internal/pairing"
	"github.com/tandembot/tandem/internal/render"
	"github.com/tandembot/tandem/internal/storage/sqlite"
	"github.com/tandembot/tandem/internal/task"
	"github.com/tandembot/tandem/internal/transport"
)

type sentMessage struct {
	to       int64
	text     string
	controls [][]transport.Control
}

type editedMessage struct {
	ref      transport.MessageRef
	text     string
	controls [][]transport.Control
}

type fakeTransport struct {
	next  int
	sent  []sentMessage
	edits []editedMessage
	menus []sentMessage
}

func (f *fakeTransport) Send(_ context.Context, accountID int64, text string, controls [][]transport.Control) (transport.MessageRef, error) {
	f.next++
	f.sent = append(f.sent, sentMessage{to: accountID, text: text, controls: controls})
	return transport.MessageRef{ChatID: accountID, MessageID: f.next}, nil
}

func (f *fakeTransport) Edit(_ context.Context, ref transport.MessageRef, text string, controls [][]transport.Control) error {
	f.edits = append(f.edits, editedMessage{ref: ref, text: text, controls: controls})
	return nil
}

func (f *fakeTransport) SendMenu(_ context.Context, accountID int64, text string, _ [][]string) error {
	f.menus = append(f.menus, sentMessage{to: accountID, text: text})
	return nil
}

func (f *fakeTransport) lastTo(t *testing.T, accountID int64) sentMessage {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].to == accountID {
			return f.sent[i]
		}
	}
	t.Fatalf("no message sent to %d", accountID)
	return sentMessage{}
}

// findAction returns the newest control action id with the given prefix
// shown to the account, across fresh messages and in-place edits.
func (f *fakeTransport) findAction(t *testing.T, accountID int64, prefix string) string {
	t.Helper()
	match := func(controls [][]transport.Control) (string, bool) {
		for _, row := range controls {
			for _, control := range row {
				if strings.HasPrefix(control.ActionID, prefix) {
					return control.ActionID, true
				}
			}
		}
		return "", false
	}
	for i := len(f.edits) - 1; i >= 0; i-- {
		if f.edits[i].ref.ChatID != accountID {
			continue
		}
		if id, ok := match(f.edits[i].controls); ok {
			return id
		}
	}
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].to != accountID {
			continue
		}
		if id, ok := match(f.sent[i].controls); ok {
			return id
		}
	}
	t.Fatalf("no control with prefix %q shown to %d", prefix, accountID)
	return ""
}

func newTestBot(t *testing.T) (*Bot, *fakeTransport) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tandem.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	clock := func() time.Time { return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC) }
	aliasGame, err := alias.NewService(store, clock)
	if err != nil {
		t.Fatalf("load decks: %v", err)
	}

	fake := &fakeTransport{}
	b := New(Config{
		Sender:      fake,
		Menu:        fake,
		BotUsername: "tandem_test_bot",
		Renderer:    render.New(),
		Directory:   directory.NewService(store, clock),
		Captures:    capture.NewService(store, clock),
		Pairing:     pairing.NewService(store, 10*time.Minute, clock),
		Checklists:  checklist.NewService(store, clock),
		Tasks:       task.NewService(store, clock),
		Alias:       aliasGame,
		Clock:       clock,
	})
	return b, fake
}

func textEvent(accountID int64, text string) transport.Event {
	return transport.Event{
		AccountID: accountID,
		FirstName: "User",
		Kind:      transport.KindText,
		Text:      text,
		Ref:       transport.MessageRef{ChatID: accountID, MessageID: 1},
	}
}

func actionEvent(accountID int64, actionID string) transport.Event {
	return transport.Event{
		AccountID: accountID,
		FirstName: "User",
		Kind:      transport.KindAction,
		ActionID:  actionID,
		Ref:       transport.MessageRef{ChatID: accountID, MessageID: 1},
	}
}

var invitePattern = regexp.MustCompile(`Your code: ([A-Z0-9]{6})`)

// pairAccounts walks two accounts through the handshake via events.
func pairAccounts(t *testing.T, b *Bot, fake *fakeTransport, creatorID, redeemerID int64) {
	t.Helper()
	ctx := context.Background()

	b.Handle(ctx, actionEvent(creatorID, "pair:new"))
	m := invitePattern.FindStringSubmatch(fake.lastTo(t, creatorID).text)
	if m == nil {
		t.Fatalf("no invite code in %q", fake.lastTo(t, creatorID).text)
	}

	b.Handle(ctx, actionEvent(redeemerID, "pair:enter"))
	b.Handle(ctx, textEvent(redeemerID, m[1]))

	confirm := fake.findAction(t, creatorID, "link:confirm:")
	b.Handle(ctx, actionEvent(creatorID, confirm))
}

func TestPairingHandshake(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	pairAccounts(t, b, fake, 1, 2)

	redeemerNote := fake.lastTo(t, 2)
	if !strings.Contains(redeemerNote.text, "active") {
		t.Fatalf("redeemer note = %q", redeemerNote.text)
	}

	b.Handle(ctx, actionEvent(1, "pair:status"))
	status := fake.lastTo(t, 1)
	if !strings.Contains(status.text, "paired with") {
		t.Fatalf("status = %q", status.text)
	}

	// Exclusivity holds through the dispatcher too.
	b.Handle(ctx, actionEvent(1, "pair:new"))
	if !strings.Contains(fake.lastTo(t, 1).text, "already have an active pairing") {
		t.Fatalf("second invite reply = %q", fake.lastTo(t, 1).text)
	}
}

func TestDeepLinkPrefill(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.Handle(ctx, actionEvent(1, "pair:new"))
	m := invitePattern.FindStringSubmatch(fake.lastTo(t, 1).text)
	if m == nil {
		t.Fatalf("no invite code in %q", fake.lastTo(t, 1).text)
	}

	b.Handle(ctx, textEvent(2, "/start invite_"+m[1]))
	if !strings.Contains(fake.lastTo(t, 2).text, m[1]) {
		t.Fatalf("prefill note = %q", fake.lastTo(t, 2).text)
	}
	if len(fake.menus) == 0 {
		t.Fatal("expected a menu on /start")
	}

	// Any follow-up text consumes the prefilled code.
	b.Handle(ctx, textEvent(2, "ok"))
	if !strings.Contains(fake.lastTo(t, 2).text, "Waiting for confirmation") {
		t.Fatalf("redeem reply = %q", fake.lastTo(t, 2).text)
	}
}

func TestChecklistFlow(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()
	pairAccounts(t, b, fake, 1, 2)

	b.Handle(ctx, textEvent(1, menuChecklist))
	if !strings.Contains(fake.lastTo(t, 1).text, "one item per line") {
		t.Fatalf("prompt = %q", fake.lastTo(t, 1).text)
	}

	b.Handle(ctx, textEvent(1, "Milk 2L\nBread"))
	sendAction := fake.findAction(t, 1, "list:send:")

	b.Handle(ctx, actionEvent(1, sendAction))
	incoming := fake.lastTo(t, 2)
	if !strings.Contains(incoming.text, "Milk") {
		t.Fatalf("incoming = %q", incoming.text)
	}
	acceptAction := fake.findAction(t, 2, "list:resp:")

	b.Handle(ctx, actionEvent(2, acceptAction))
	if !strings.Contains(fake.lastTo(t, 1).text, "accepted") {
		t.Fatalf("creator note = %q", fake.lastTo(t, 1).text)
	}

	// The executor's message is edited in place with item toggles.
	if len(fake.edits) == 0 {
		t.Fatal("expected an edit after acceptance")
	}
	lastEdit := fake.edits[len(fake.edits)-1]
	var toggles []string
	for _, row := range lastEdit.controls {
		for _, control := range row {
			if strings.HasPrefix(control.ActionID, "list:item:") {
				toggles = append(toggles, control.ActionID)
			}
		}
	}
	if len(toggles) != 2 {
		t.Fatalf("toggles = %v, want 2", toggles)
	}

	b.Handle(ctx, actionEvent(2, toggles[0]))
	if !strings.Contains(fake.lastTo(t, 1).text, "Checked off") {
		t.Fatalf("delta note = %q", fake.lastTo(t, 1).text)
	}

	b.Handle(ctx, actionEvent(2, toggles[1]))
	if !strings.Contains(fake.lastTo(t, 1).text, "done ✅") {
		t.Fatalf("completion note = %q", fake.lastTo(t, 1).text)
	}

	// The completed list no longer accepts toggles.
	b.Handle(ctx, actionEvent(2, toggles[1]))
	if !strings.Contains(fake.lastTo(t, 2).text, "not available") {
		t.Fatalf("stale toggle reply = %q", fake.lastTo(t, 2).text)
	}
}

func TestTaskFlowWithoutDeadline(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()
	pairAccounts(t, b, fake, 1, 2)

	b.Handle(ctx, actionEvent(1, "task:new"))
	b.Handle(ctx, textEvent(1, "walk the dog"))
	b.Handle(ctx, actionEvent(1, "task:day:none"))

	if !strings.Contains(fake.lastTo(t, 1).text, "sent for approval") {
		t.Fatalf("creator reply = %q", fake.lastTo(t, 1).text)
	}
	incoming := fake.lastTo(t, 2)
	if !strings.Contains(incoming.text, "walk the dog") {
		t.Fatalf("incoming = %q", incoming.text)
	}

	acceptAction := fake.findAction(t, 2, "task:resp:")
	b.Handle(ctx, actionEvent(2, acceptAction))
	if !strings.Contains(fake.lastTo(t, 1).text, "accepted") {
		t.Fatalf("creator note = %q", fake.lastTo(t, 1).text)
	}

	doneAction := fake.findAction(t, 2, "task:done:")
	b.Handle(ctx, actionEvent(2, doneAction))
	if !strings.Contains(fake.lastTo(t, 1).text, "done") {
		t.Fatalf("completion note = %q", fake.lastTo(t, 1).text)
	}
}

func TestTaskFlowWithDeadline(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()
	pairAccounts(t, b, fake, 1, 2)

	b.Handle(ctx, actionEvent(1, "task:new"))
	b.Handle(ctx, textEvent(1, "water the plants"))
	b.Handle(ctx, actionEvent(1, "task:day:today"))
	if !strings.Contains(fake.lastTo(t, 1).text, "HH:MM") {
		t.Fatalf("time prompt = %q", fake.lastTo(t, 1).text)
	}

	// The fixed clock reads 09:30, so 08:00 today has already passed.
	b.Handle(ctx, textEvent(1, "08:00"))
	if !strings.Contains(fake.lastTo(t, 1).text, "already passed") {
		t.Fatalf("past time reply = %q", fake.lastTo(t, 1).text)
	}

	b.Handle(ctx, textEvent(1, "19:00"))
	created := fake.lastTo(t, 1)
	if !strings.Contains(created.text, "sent for approval") || !strings.Contains(created.text, "19:00") {
		t.Fatalf("creator reply = %q", created.text)
	}
	if !strings.Contains(fake.lastTo(t, 2).text, "19:00") {
		t.Fatalf("incoming = %q", fake.lastTo(t, 2).text)
	}
}

func TestTaskHistoryListing(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()
	pairAccounts(t, b, fake, 1, 2)

	b.Handle(ctx, actionEvent(1, "task:list:history"))
	if !strings.Contains(fake.lastTo(t, 1).text, "history is empty") {
		t.Fatalf("empty history = %q", fake.lastTo(t, 1).text)
	}

	b.Handle(ctx, actionEvent(1, "task:new"))
	b.Handle(ctx, textEvent(1, "walk the dog"))
	b.Handle(ctx, actionEvent(1, "task:day:none"))
	acceptAction := fake.findAction(t, 2, "task:resp:")
	b.Handle(ctx, actionEvent(2, acceptAction))
	doneAction := fake.findAction(t, 2, "task:done:")
	b.Handle(ctx, actionEvent(2, doneAction))

	b.Handle(ctx, actionEvent(1, "task:list:history"))
	history := fake.lastTo(t, 1)
	if !strings.Contains(history.text, "walk the dog") || !strings.Contains(history.text, "completed") {
		t.Fatalf("history = %q", history.text)
	}

	// The finished task no longer shows among active ones.
	b.Handle(ctx, actionEvent(1, "task:list"))
	if !strings.Contains(fake.lastTo(t, 1).text, "No active tasks") {
		t.Fatalf("active listing = %q", fake.lastTo(t, 1).text)
	}
}

func TestChecklistRequiresLink(t *testing.T) {
	b, fake := newTestBot(t)

	b.Handle(context.Background(), textEvent(9, menuChecklist))
	if !strings.Contains(fake.lastTo(t, 9).text, "Pair up with a partner first") {
		t.Fatalf("reply = %q", fake.lastTo(t, 9).text)
	}
}

func TestCoinSeriesLengths(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()

	b.Handle(ctx, textEvent(9, menuCoin))
	short := fake.findAction(t, 9, "coin:series:3")
	long := fake.findAction(t, 9, "coin:series:5")

	b.Handle(ctx, actionEvent(9, short))
	if !strings.Contains(fake.lastTo(t, 9).text, "Series (3)") {
		t.Fatalf("short series = %q", fake.lastTo(t, 9).text)
	}
	b.Handle(ctx, actionEvent(9, long))
	if !strings.Contains(fake.lastTo(t, 9).text, "Series (5)") {
		t.Fatalf("long series = %q", fake.lastTo(t, 9).text)
	}
}

func TestUnknownTextShowsHint(t *testing.T) {
	b, fake := newTestBot(t)

	b.Handle(context.Background(), textEvent(9, "what"))
	if !strings.Contains(fake.lastTo(t, 9).text, "menu") {
		t.Fatalf("reply = %q", fake.lastTo(t, 9).text)
	}
}

func TestUnlinkFlow(t *testing.T) {
	b, fake := newTestBot(t)
	ctx := context.Background()
	pairAccounts(t, b, fake, 1, 2)

	b.Handle(ctx, textEvent(1, menuSettings))
	unlinkAction := fake.findAction(t, 1, "settings:unlink")
	b.Handle(ctx, actionEvent(1, unlinkAction))
	b.Handle(ctx, actionEvent(1, "settings:unlink:yes"))

	if !strings.Contains(fake.lastTo(t, 2).text, "broken") {
		t.Fatalf("partner note = %q", fake.lastTo(t, 2).text)
	}
	b.Handle(ctx, actionEvent(1, "pair:status"))
	if !strings.Contains(fake.lastTo(t, 1).text, "No active pairing") {
		t.Fatalf("status = %q", fake.lastTo(t, 1).text)
	}
}
