package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/tandembot/tandem/internal/action"
	"github.com/tandembot/tandem/internal/capture"
	"github.com/tandembot/tandem/internal/checklist"
	"github.com/tandembot/tandem/internal/storage"
	"github.com/tandembot/tandem/internal/transport"
)

func (b *Bot) showChecklistMenu(ctx context.Context, accountID int64) error {
	list, items, ok, err := b.lists.OpenListFor(ctx, accountID)
	if err != nil {
		return err
	}
	if ok {
		return b.showList(ctx, accountID, list, items)
	}
	return b.startChecklistDraft(ctx, accountID, 0)
}

func (b *Bot) showList(ctx context.Context, accountID int64, list storage.List, items []storage.ListItem) error {
	var controls [][]transport.Control
	switch {
	case list.Status == storage.ListStatusDraft && list.CreatorID == accountID:
		controls = draftControls(list.ID)
	case list.Status == storage.ListStatusPendingAccept && list.ExecutorID == accountID:
		controls = respondControls(list.ID)
	case list.Status == storage.ListStatusActive && list.ExecutorID == accountID:
		controls = itemControls(list.ID, items)
	}
	_, err := b.tell(ctx, accountID, b.render.ChecklistStatus(list, items), controls)
	return err
}

func (b *Bot) startChecklistDraft(ctx context.Context, accountID int64, editListID int64) error {
	_, linked, err := b.partner(ctx, accountID)
	if err != nil {
		return err
	}
	if !linked {
		b.say(ctx, accountID, b.render.NeedLinkFirst())
		return nil
	}
	if err := b.captures.Set(ctx, accountID, capture.TagChecklistItems, capture.ChecklistItemsPayload{EditListID: editListID}); err != nil {
		return err
	}
	if editListID != 0 {
		b.say(ctx, accountID, b.render.ChecklistEditPrompt())
	} else {
		b.say(ctx, accountID, b.render.ChecklistItemsPrompt())
	}
	return nil
}

func (b *Bot) consumeChecklistItems(ctx context.Context, event transport.Event, payload []byte) error {
	var slot capture.ChecklistItemsPayload
	if err := capture.Decode(payload, &slot); err != nil {
		return err
	}

	if len(checklist.ParseItems(event.Text)) == 0 {
		// Keep the slot so the next message can try again.
		b.say(ctx, event.AccountID, b.render.ChecklistEmpty())
		return nil
	}
	if err := b.captures.Clear(ctx, event.AccountID); err != nil {
		return err
	}

	var (
		list  storage.List
		items []storage.ListItem
		err   error
	)
	if slot.EditListID != 0 {
		list, items, err = b.lists.EditDraft(ctx, event.AccountID, slot.EditListID, event.Text)
	} else {
		executorID, linked, perr := b.partner(ctx, event.AccountID)
		if perr != nil {
			return perr
		}
		if !linked {
			b.say(ctx, event.AccountID, b.render.NeedLinkFirst())
			return nil
		}
		list, items, err = b.lists.CreateDraft(ctx, event.AccountID, executorID, event.Text)
	}
	switch {
	case errors.Is(err, checklist.ErrListAlreadyOpen):
		b.say(ctx, event.AccountID, b.render.ChecklistAlreadyActive())
		return nil
	case errors.Is(err, checklist.ErrForbidden), errors.Is(err, checklist.ErrInvalidState), errors.Is(err, checklist.ErrListNotFound):
		b.say(ctx, event.AccountID, b.render.ChecklistUnavailable())
		return nil
	case err != nil:
		return err
	}

	_, err = b.tell(ctx, event.AccountID, b.render.ChecklistPreview(items), draftControls(list.ID))
	return err
}

func (b *Bot) handleChecklistAction(ctx context.Context, event transport.Event, parts []string) error {
	switch event.ActionID {
	case action.ListNew:
		return b.startChecklistDraft(ctx, event.AccountID, 0)
	case action.ListOpen:
		list, items, ok, err := b.lists.OpenListFor(ctx, event.AccountID)
		if err != nil {
			return err
		}
		if !ok {
			b.say(ctx, event.AccountID, b.render.NoOpenChecklist())
			return nil
		}
		return b.showList(ctx, event.AccountID, list, items)
	}

	if len(parts) < 3 {
		b.say(ctx, event.AccountID, b.render.UnknownInput())
		return nil
	}
	listID, ok := action.ParseID(parts[2])
	if !ok {
		return fmt.Errorf("malformed list id %q", parts[2])
	}

	switch parts[1] {
	case "send":
		return b.sendList(ctx, event, listID)
	case "edit":
		return b.startChecklistDraft(ctx, event.AccountID, listID)
	case "cancel":
		return b.cancelDraft(ctx, event, listID)
	case "resp":
		if len(parts) == 4 {
			return b.respondList(ctx, event, listID, parts[3] == "accept")
		}
	case "item":
		if len(parts) == 5 {
			itemID, ok := action.ParseID(parts[3])
			if !ok {
				return fmt.Errorf("malformed item id %q", parts[3])
			}
			return b.toggleItem(ctx, event, listID, itemID, parts[4] == "done")
		}
	}
	b.say(ctx, event.AccountID, b.render.UnknownInput())
	return nil
}

func (b *Bot) sendList(ctx context.Context, event transport.Event, listID int64) error {
	list, items, err := b.lists.Send(ctx, event.AccountID, listID)
	if handled := b.checklistFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}

	b.rewrite(ctx, event.Ref, b.render.ChecklistSent(), nil)

	creatorName := b.directory.DisplayName(ctx, list.CreatorID)
	ref, err := b.tell(ctx, list.ExecutorID, b.render.ChecklistIncoming(creatorName, items), respondControls(list.ID))
	if err != nil {
		return fmt.Errorf("offer checklist to executor: %w", err)
	}
	if err := b.lists.RecordMessageRef(ctx, list.ID, storage.MessageSideExecutor, ref.ChatID, ref.MessageID); err != nil {
		return err
	}
	return nil
}

func (b *Bot) cancelDraft(ctx context.Context, event transport.Event, listID int64) error {
	err := b.lists.CancelDraft(ctx, event.AccountID, listID)
	if handled := b.checklistFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}
	b.rewrite(ctx, event.Ref, b.render.ChecklistCanceled(), nil)
	return nil
}

func (b *Bot) respondList(ctx context.Context, event transport.Event, listID int64, accept bool) error {
	list, items, err := b.lists.Respond(ctx, event.AccountID, listID, accept)
	if handled := b.checklistFailure(ctx, event.AccountID, err); handled || err != nil {
		return errUnlessHandled(handled, err)
	}

	if !accept {
		b.rewrite(ctx, event.Ref, b.render.ChecklistRejectedExecutor(), nil)
		b.say(ctx, list.CreatorID, b.render.ChecklistRejectedCreator(list.ID))
		return nil
	}

	b.rewrite(ctx, event.Ref, b.render.ChecklistAccepted(list.ID)+"\n"+b.render.ChecklistBody(items), itemControls(list.ID, items))
	if !event.Ref.Zero() {
		if err := b.lists.RecordMessageRef(ctx, list.ID, storage.MessageSideExecutor, event.Ref.ChatID, event.Ref.MessageID); err != nil {
			return err
		}
	}
	b.say(ctx, list.CreatorID, b.render.ChecklistAcceptedCreator(list.ID))
	return nil
}

func (b *Bot) toggleItem(ctx context.Context, event transport.Event, listID, itemID int64, done bool) error {
	result, err := b.lists.ToggleItem(ctx, event.AccountID, listID, itemID, done)
	switch {
	case errors.Is(err, checklist.ErrNoChange):
		b.say(ctx, event.AccountID, b.render.ItemUnchanged())
		return nil
	case err != nil:
		if handled := b.checklistFailure(ctx, event.AccountID, err); handled {
			return nil
		}
		return err
	}

	_, items, err := b.lists.Items(ctx, event.AccountID, listID)
	if err != nil {
		return err
	}

	other := result.List.ExecutorID
	if event.AccountID == result.List.ExecutorID {
		other = result.List.CreatorID
	}

	if result.Completed {
		b.rewrite(ctx, event.Ref, b.render.ChecklistCompleted(listID, items), nil)
		b.say(ctx, other, b.render.ChecklistCompletedNote(listID))
		return nil
	}

	b.rewrite(ctx, event.Ref, b.render.ChecklistProgress(listID, items), itemControls(listID, items))
	b.say(ctx, other, b.render.ChecklistItemDelta(result.Item.Text, done))
	return nil
}

// checklistFailure answers the user for expected checklist errors and
// reports whether it did.
func (b *Bot) checklistFailure(ctx context.Context, accountID int64, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, checklist.ErrListNotFound),
		errors.Is(err, checklist.ErrForbidden),
		errors.Is(err, checklist.ErrInvalidState):
		b.say(ctx, accountID, b.render.ChecklistUnavailable())
		return true
	case errors.Is(err, checklist.ErrListAlreadyOpen):
		b.say(ctx, accountID, b.render.ChecklistAlreadyActive())
		return true
	}
	return false
}

func errUnlessHandled(handled bool, err error) error {
	if handled {
		return nil
	}
	return err
}

func draftControls(listID int64) [][]transport.Control {
	return [][]transport.Control{
		transport.Row(transport.Control{Label: "📤 Send", ActionID: action.ListSend(listID)}),
		transport.Row(
			transport.Control{Label: "✏️ Edit", ActionID: action.ListEdit(listID)},
			transport.Control{Label: "🚫 Cancel", ActionID: action.ListCancel(listID)},
		),
	}
}

func respondControls(listID int64) [][]transport.Control {
	return [][]transport.Control{transport.Row(
		transport.Control{Label: "✅ Accept", ActionID: action.ListRespond(listID, true)},
		transport.Control{Label: "❌ Reject", ActionID: action.ListRespond(listID, false)},
	)}
}

// itemControls builds one toggle button per item, flipping to the opposite
// state of what the item holds now.
func itemControls(listID int64, items []storage.ListItem) [][]transport.Control {
	var rows [][]transport.Control
	for _, item := range items {
		done := item.Status != storage.ItemStatusDone
		label := "⬜️ " + item.Text
		if !done {
			label = "✅ " + item.Text
		}
		rows = append(rows, transport.Row(transport.Control{
			Label:    label,
			ActionID: action.ListItemToggle(listID, item.ID, done),
		}))
	}
	return rows
}
