// Package bot routes normalized transport events to the domain services
// and renders every outbound notification.
package bot

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tandembot/tandem/internal/action"
	"github.com/tandembot/tandem/internal/capture"
	"github.com/tandembot/tandem/internal/checklist"
	"github.com/tandembot/tandem/internal/directory"
	"github.com/tandembot/tandem/internal/games/alias"
	"github.com/tandembot/tandem/internal/pairing"
	"github.com/tandembot/tandem/internal/render"
	"github.com/tandembot/tandem/internal/task"
	"github.com/tandembot/tandem/internal/transport"
)

// Main menu labels. These double as the text commands the reply keyboard
// sends back.
const (
	menuPairing   = "👥 Pairing"
	menuChecklist = "🛒 Checklist"
	menuTasks     = "📋 Tasks"
	menuGames     = "🎮 Games"
	menuCoin      = "🪙 Coin"
	menuSettings  = "⚙️ Settings"
	menuHelp      = "❓ Help"
)

func menuRows() [][]string {
	return [][]string{
		{menuPairing, menuChecklist},
		{menuTasks, menuGames},
		{menuCoin, menuSettings},
		{menuHelp},
	}
}

// deepLinkPrefix marks a /start payload carrying an invite code.
const deepLinkPrefix = "invite_"

// Bot wires the domain services behind one event handler.
type Bot struct {
	sender      transport.Sender
	menu        transport.MenuSender
	botUsername string

	render    *render.Renderer
	directory *directory.Service
	captures  *capture.Service
	pairing   *pairing.Service
	lists     *checklist.Service
	tasks     *task.Service
	alias     *alias.Service
	clock     func() time.Time
}

// Config carries the bot's collaborators.
type Config struct {
	Sender      transport.Sender
	Menu        transport.MenuSender
	BotUsername string
	Renderer    *render.Renderer
	Directory   *directory.Service
	Captures    *capture.Service
	Pairing     *pairing.Service
	Checklists  *checklist.Service
	Tasks       *task.Service
	Alias       *alias.Service
	Clock       func() time.Time
}

// New constructs the dispatcher.
func New(cfg Config) *Bot {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Bot{
		sender:      cfg.Sender,
		menu:        cfg.Menu,
		botUsername: cfg.BotUsername,
		render:      cfg.Renderer,
		directory:   cfg.Directory,
		captures:    cfg.Captures,
		pairing:     cfg.Pairing,
		lists:       cfg.Checklists,
		tasks:       cfg.Tasks,
		alias:       cfg.Alias,
		clock:       clock,
	}
}

// Handle processes one inbound event. Failures are answered with a generic
// notice so the conversation never goes silent.
func (b *Bot) Handle(ctx context.Context, event transport.Event) {
	ctx, span := otel.Tracer("bot").Start(ctx, "bot.Handle")
	span.SetAttributes(attribute.String("event.kind", string(event.Kind)))
	defer span.End()

	if err := b.directory.Observe(ctx, directory.Identity{
		ID:        event.AccountID,
		Username:  event.Username,
		FirstName: event.FirstName,
		LastName:  event.LastName,
	}); err != nil {
		log.Printf("observe account %d: %v", event.AccountID, err)
	}

	var err error
	switch event.Kind {
	case transport.KindAction:
		err = b.handleAction(ctx, event)
	default:
		err = b.handleText(ctx, event)
	}
	if err != nil {
		log.Printf("handle event from %d: %v", event.AccountID, err)
		b.say(ctx, event.AccountID, b.render.GenericFailure())
	}
}

func (b *Bot) handleText(ctx context.Context, event transport.Event) error {
	text := strings.TrimSpace(event.Text)

	if payload, ok := startPayload(text); ok {
		return b.handleStart(ctx, event.AccountID, payload)
	}

	switch text {
	case "/help", menuHelp:
		b.say(ctx, event.AccountID, b.render.Help())
		return nil
	case menuPairing:
		return b.showPairingMenu(ctx, event.AccountID)
	case menuChecklist:
		return b.showChecklistMenu(ctx, event.AccountID)
	case menuTasks:
		return b.showTasksMenu(ctx, event.AccountID)
	case menuGames:
		return b.showGamesMenu(ctx, event.AccountID)
	case menuCoin:
		return b.showCoinMenu(ctx, event.AccountID)
	case menuSettings:
		return b.showSettingsMenu(ctx, event.AccountID)
	}

	tag, payload, ok, err := b.captures.Get(ctx, event.AccountID)
	if err != nil {
		return err
	}
	if ok {
		return b.consumeCapture(ctx, event, tag, payload)
	}

	b.say(ctx, event.AccountID, b.render.UnknownInput())
	return nil
}

func (b *Bot) handleStart(ctx context.Context, accountID int64, payload string) error {
	if code, ok := strings.CutPrefix(payload, deepLinkPrefix); ok && code != "" {
		code = strings.ToUpper(code)
		if err := b.captures.Set(ctx, accountID, capture.TagInviteCode, capture.InviteCodePayload{Prefill: code}); err != nil {
			return err
		}
		b.say(ctx, accountID, b.render.CodePrefilled(code))
	}
	if b.menu != nil {
		return b.menu.SendMenu(ctx, accountID, b.render.Welcome(), menuRows())
	}
	b.say(ctx, accountID, b.render.Welcome())
	return nil
}

func (b *Bot) consumeCapture(ctx context.Context, event transport.Event, tag capture.Tag, payload []byte) error {
	switch tag {
	case capture.TagInviteCode:
		return b.consumeInviteCode(ctx, event, payload)
	case capture.TagChecklistItems:
		return b.consumeChecklistItems(ctx, event, payload)
	case capture.TagTaskText:
		return b.consumeTaskText(ctx, event)
	case capture.TagTaskTime:
		return b.consumeTaskTime(ctx, event, payload)
	case capture.TagTaskRescheduleTime:
		return b.consumeRescheduleTime(ctx, event, payload)
	}
	if err := b.captures.Clear(ctx, event.AccountID); err != nil {
		return err
	}
	b.say(ctx, event.AccountID, b.render.UnknownInput())
	return nil
}

func (b *Bot) handleAction(ctx context.Context, event transport.Event) error {
	parts := action.Split(event.ActionID)
	if len(parts) == 0 {
		return nil
	}
	switch parts[0] {
	case "pair", "link", "settings":
		return b.handlePairingAction(ctx, event, parts)
	case "list":
		return b.handleChecklistAction(ctx, event, parts)
	case "task":
		return b.handleTaskAction(ctx, event, parts)
	case "alias", "coin":
		return b.handleGameAction(ctx, event, parts)
	}
	b.say(ctx, event.AccountID, b.render.UnknownInput())
	return nil
}

// say delivers a plain notice, swallowing delivery errors into the log.
func (b *Bot) say(ctx context.Context, accountID int64, text string) {
	if _, err := b.sender.Send(ctx, accountID, text, nil); err != nil {
		log.Printf("send notice to %d: %v", accountID, err)
	}
}

// tell delivers a notice with inline controls.
func (b *Bot) tell(ctx context.Context, accountID int64, text string, controls [][]transport.Control) (transport.MessageRef, error) {
	return b.sender.Send(ctx, accountID, text, controls)
}

// rewrite edits the message the actor interacted with.
func (b *Bot) rewrite(ctx context.Context, ref transport.MessageRef, text string, controls [][]transport.Control) {
	if ref.Zero() {
		return
	}
	if err := b.sender.Edit(ctx, ref, text, controls); err != nil {
		log.Printf("edit message %d/%d: %v", ref.ChatID, ref.MessageID, err)
	}
}

// partner resolves the actor's active pairing partner.
func (b *Bot) partner(ctx context.Context, accountID int64) (int64, bool, error) {
	link, ok, err := b.pairing.ActiveLink(ctx, accountID)
	if err != nil || !ok {
		return 0, false, err
	}
	return pairing.PartnerOf(link, accountID), true, nil
}

func startPayload(text string) (string, bool) {
	if text == "/start" {
		return "", true
	}
	if payload, ok := strings.CutPrefix(text, "/start "); ok {
		return strings.TrimSpace(payload), true
	}
	return "", false
}
