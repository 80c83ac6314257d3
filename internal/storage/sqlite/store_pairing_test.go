package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

func newInvite(creatorID int64, code string) storage.Invite {
	return storage.Invite{
		CreatorID: creatorID,
		Code:      code,
		Status:    storage.InviteStatusOpen,
		ExpiresAt: testTime().Add(10 * time.Minute),
		CreatedAt: testTime(),
	}
}

func TestInviteRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateInvite(ctx, newInvite(1, "ABC234"))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	byID, err := store.GetInvite(ctx, id)
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if byID.Code != "ABC234" || byID.Status != storage.InviteStatusOpen {
		t.Fatalf("unexpected invite: %+v", byID)
	}

	byCode, err := store.GetInviteByCode(ctx, "ABC234")
	if err != nil {
		t.Fatalf("get invite by code: %v", err)
	}
	if byCode.ID != id {
		t.Fatalf("id = %d, want %d", byCode.ID, id)
	}
}

func TestCreateInviteDuplicateCode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateInvite(ctx, newInvite(1, "SAME22")); err != nil {
		t.Fatalf("create first invite: %v", err)
	}
	_, err := store.CreateInvite(ctx, newInvite(2, "SAME22"))
	if !errors.Is(err, storage.ErrDuplicateCode) {
		t.Fatalf("err = %v, want ErrDuplicateCode", err)
	}
}

func TestExpireStaleInvites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateInvite(ctx, newInvite(1, "OLD222"))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if err := store.ExpireStaleInvites(ctx, 1, testTime().Add(time.Hour)); err != nil {
		t.Fatalf("expire stale invites: %v", err)
	}
	invite, err := store.GetInvite(ctx, id)
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if invite.Status != storage.InviteStatusExpired {
		t.Fatalf("status = %q, want expired", invite.Status)
	}
}

func TestAcceptInviteCreatesLinkAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateInvite(ctx, newInvite(1, "PAIR22"))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if err := store.MarkInviteRedeemed(ctx, id, 2); err != nil {
		t.Fatalf("mark redeemed: %v", err)
	}

	link := storage.Link{UserA: 1, UserB: 2, Status: storage.LinkStatusActive, CreatedAt: testTime()}
	linkID, err := store.AcceptInvite(ctx, id, link, testTime())
	if err != nil {
		t.Fatalf("accept invite: %v", err)
	}
	if linkID == 0 {
		t.Fatal("expected non-zero link id")
	}

	invite, err := store.GetInvite(ctx, id)
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if invite.Status != storage.InviteStatusAccepted {
		t.Fatalf("invite status = %q, want accepted", invite.Status)
	}
	if invite.UsedBy != 2 {
		t.Fatalf("used by = %d, want 2", invite.UsedBy)
	}

	for _, accountID := range []int64{1, 2} {
		got, err := store.GetActiveLink(ctx, accountID)
		if err != nil {
			t.Fatalf("get active link for %d: %v", accountID, err)
		}
		if got.ID != linkID {
			t.Fatalf("link id = %d, want %d", got.ID, linkID)
		}
	}
}

func TestEndLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateInvite(ctx, newInvite(1, "ENDS22"))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if err := store.MarkInviteRedeemed(ctx, id, 2); err != nil {
		t.Fatalf("mark redeemed: %v", err)
	}
	link := storage.Link{UserA: 1, UserB: 2, Status: storage.LinkStatusActive, CreatedAt: testTime()}
	linkID, err := store.AcceptInvite(ctx, id, link, testTime())
	if err != nil {
		t.Fatalf("accept invite: %v", err)
	}

	if err := store.EndLink(ctx, linkID, testTime().Add(time.Hour)); err != nil {
		t.Fatalf("end link: %v", err)
	}
	if _, err := store.GetActiveLink(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// A second end is a no-op rather than an error.
	if err := store.EndLink(ctx, linkID, testTime().Add(2*time.Hour)); err != nil {
		t.Fatalf("re-end link: %v", err)
	}
}

func TestMarkInviteResolved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateInvite(ctx, newInvite(1, "RJCT22"))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if err := store.MarkInviteResolved(ctx, id, storage.InviteStatusRejected, testTime()); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	invite, err := store.GetInvite(ctx, id)
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if invite.Status != storage.InviteStatusRejected {
		t.Fatalf("status = %q, want rejected", invite.Status)
	}
	if invite.RespondedAt == nil || !invite.RespondedAt.Equal(testTime()) {
		t.Fatalf("responded at = %v, want %v", invite.RespondedAt, testTime())
	}
}
