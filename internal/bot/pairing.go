package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tandembot/tandem/internal/action"
	"github.com/tandembot/tandem/internal/capture"
	"github.com/tandembot/tandem/internal/pairing"
	"github.com/tandembot/tandem/internal/transport"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func (b *Bot) showPairingMenu(ctx context.Context, accountID int64) error {
	controls := [][]transport.Control{
		transport.Row(transport.Control{Label: "🔑 Create code", ActionID: action.PairNew}),
		transport.Row(transport.Control{Label: "⌨️ Enter code", ActionID: action.PairEnter}),
		transport.Row(transport.Control{Label: "ℹ️ Status", ActionID: action.PairStatus}),
	}
	_, err := b.tell(ctx, accountID, menuPairing, controls)
	return err
}

func (b *Bot) handlePairingAction(ctx context.Context, event transport.Event, parts []string) error {
	switch event.ActionID {
	case action.PairNew:
		return b.createInvite(ctx, event.AccountID)
	case action.PairEnter:
		if err := b.captures.Set(ctx, event.AccountID, capture.TagInviteCode, capture.InviteCodePayload{}); err != nil {
			return err
		}
		b.say(ctx, event.AccountID, b.render.EnterCodePrompt())
		return nil
	case action.PairStatus:
		return b.showLinkStatus(ctx, event.AccountID)
	case action.SettingsUnlink:
		controls := [][]transport.Control{transport.Row(
			transport.Control{Label: "Yes, break it", ActionID: action.SettingsUnlinkConfirm},
			transport.Control{Label: "Keep it", ActionID: action.SettingsUnlinkCancel},
		)}
		b.rewrite(ctx, event.Ref, b.render.UnlinkConfirmPrompt(), controls)
		return nil
	case action.SettingsUnlinkConfirm:
		return b.unlink(ctx, event)
	case action.SettingsUnlinkCancel:
		b.rewrite(ctx, event.Ref, b.render.UnlinkCanceled(), nil)
		return nil
	}

	if len(parts) == 4 && parts[0] == "link" && parts[1] == "confirm" {
		inviteID, ok := action.ParseID(parts[2])
		if !ok {
			return fmt.Errorf("malformed invite id %q", parts[2])
		}
		return b.confirmInvite(ctx, event, inviteID, parts[3] == "accept")
	}
	b.say(ctx, event.AccountID, b.render.UnknownInput())
	return nil
}

func (b *Bot) createInvite(ctx context.Context, accountID int64) error {
	invite, err := b.pairing.CreateInvite(ctx, accountID)
	switch {
	case errors.Is(err, pairing.ErrAlreadyLinked):
		b.say(ctx, accountID, b.render.AlreadyLinked())
		return nil
	case errors.Is(err, pairing.ErrCodeCollision):
		b.say(ctx, accountID, b.render.CodeCollision())
		return nil
	case err != nil:
		return err
	}

	var deepLink string
	if b.botUsername != "" {
		deepLink = "https://t.me/" + b.botUsername + "?start=" + deepLinkPrefix + invite.Code
	}
	ttl := invite.ExpiresAt.Sub(invite.CreatedAt)
	b.say(ctx, accountID, b.render.InviteCreated(invite.Code, ttl, deepLink))
	return nil
}

func (b *Bot) consumeInviteCode(ctx context.Context, event transport.Event, payload []byte) error {
	var slot capture.InviteCodePayload
	if err := capture.Decode(payload, &slot); err != nil {
		return err
	}
	if err := b.captures.Clear(ctx, event.AccountID); err != nil {
		return err
	}

	code := strings.ToUpper(strings.TrimSpace(event.Text))
	if !codePattern.MatchString(code) && slot.Prefill != "" {
		code = slot.Prefill
	}

	invite, err := b.pairing.Redeem(ctx, event.AccountID, code)
	switch {
	case errors.Is(err, pairing.ErrAlreadyLinked):
		b.say(ctx, event.AccountID, b.render.AlreadyLinked())
		return nil
	case errors.Is(err, pairing.ErrInviteNotFound):
		// Let them retry without reopening the menu.
		if err := b.captures.Set(ctx, event.AccountID, capture.TagInviteCode, capture.InviteCodePayload{}); err != nil {
			return err
		}
		b.say(ctx, event.AccountID, b.render.InviteNotFound())
		return nil
	case errors.Is(err, pairing.ErrSelfRedeem):
		b.say(ctx, event.AccountID, b.render.SelfRedeem())
		return nil
	case errors.Is(err, pairing.ErrInviteNotOpen):
		b.say(ctx, event.AccountID, b.render.InviteNotOpen())
		return nil
	case errors.Is(err, pairing.ErrInviteExpired):
		b.say(ctx, event.AccountID, b.render.InviteExpired())
		return nil
	case err != nil:
		return err
	}

	b.say(ctx, event.AccountID, b.render.RedeemSent())

	redeemerName := b.directory.DisplayName(ctx, event.AccountID)
	controls := [][]transport.Control{transport.Row(
		transport.Control{Label: "✅ Accept", ActionID: action.LinkConfirm(invite.ID, true)},
		transport.Control{Label: "❌ Reject", ActionID: action.LinkConfirm(invite.ID, false)},
	)}
	if _, err := b.tell(ctx, invite.CreatorID, b.render.ConfirmPrompt(redeemerName), controls); err != nil {
		return fmt.Errorf("prompt invite creator: %w", err)
	}
	return nil
}

func (b *Bot) confirmInvite(ctx context.Context, event transport.Event, inviteID int64, accept bool) error {
	decision := pairing.DecisionReject
	if accept {
		decision = pairing.DecisionAccept
	}
	result, err := b.pairing.Confirm(ctx, event.AccountID, inviteID, decision)
	switch {
	case errors.Is(err, pairing.ErrInviteNotFound):
		b.say(ctx, event.AccountID, b.render.InviteNotFound())
		return nil
	case errors.Is(err, pairing.ErrNotOwner):
		b.say(ctx, event.AccountID, b.render.NotYourRequest())
		return nil
	case errors.Is(err, pairing.ErrAlreadyResolved):
		b.say(ctx, event.AccountID, b.render.AlreadyResolved())
		return nil
	case errors.Is(err, pairing.ErrPartyLinked):
		b.rewrite(ctx, event.Ref, b.render.PairingConflict(), nil)
		if result.Invite.UsedBy != 0 {
			b.say(ctx, result.Invite.UsedBy, b.render.PairingConflict())
		}
		return nil
	case err != nil:
		return err
	}

	if result.Accepted {
		b.rewrite(ctx, event.Ref, b.render.PairingConfirmedCreator(), nil)
		b.say(ctx, result.Invite.UsedBy, b.render.PairingConfirmedRedeemer())
		return nil
	}
	b.rewrite(ctx, event.Ref, b.render.PairingRejectedCreator(), nil)
	b.say(ctx, result.Invite.UsedBy, b.render.PairingRejectedRedeemer())
	return nil
}

func (b *Bot) showLinkStatus(ctx context.Context, accountID int64) error {
	link, ok, err := b.pairing.ActiveLink(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		b.say(ctx, accountID, b.render.NoLink())
		return nil
	}
	partnerName := b.directory.DisplayName(ctx, pairing.PartnerOf(link, accountID))
	b.say(ctx, accountID, b.render.LinkStatus(partnerName))
	return nil
}

func (b *Bot) showSettingsMenu(ctx context.Context, accountID int64) error {
	_, ok, err := b.pairing.ActiveLink(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		b.say(ctx, accountID, b.render.NoLink())
		return nil
	}
	controls := [][]transport.Control{transport.Row(
		transport.Control{Label: "💔 Break pairing", ActionID: action.SettingsUnlink},
	)}
	_, err = b.tell(ctx, accountID, menuSettings, controls)
	return err
}

func (b *Bot) unlink(ctx context.Context, event transport.Event) error {
	link, err := b.pairing.Unlink(ctx, event.AccountID)
	if errors.Is(err, pairing.ErrNoActiveLink) {
		b.rewrite(ctx, event.Ref, b.render.NoLink(), nil)
		return nil
	}
	if err != nil {
		return err
	}
	b.rewrite(ctx, event.Ref, b.render.Unlinked(), nil)
	b.say(ctx, pairing.PartnerOf(link, event.AccountID), b.render.Unlinked())
	return nil
}
