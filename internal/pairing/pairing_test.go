package pairing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tandembot/tandem/internal/storage"
	"github.com/tandembot/tandem/internal/storage/sqlite"
)

func baseTime() time.Time {
	return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
}

// newTestService wires the manager to a throwaway sqlite store, a mutable
// clock and a deterministic code generator.
func newTestService(t *testing.T, ttl time.Duration) (*Service, *time.Time) {
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

	now := baseTime()
	svc := NewService(store, ttl, func() time.Time { return now })

	codes := []string{"AAAAAA", "BBBBBB", "CCCCCC", "DDDDDD"}
	next := 0
	svc.newCode = func() (string, error) {
		code := codes[next%len(codes)]
		next++
		return code, nil
	}
	return svc, &now
}

// pairUp walks two accounts through the full handshake.
func pairUp(t *testing.T, svc *Service, creatorID, redeemerID int64) storage.Link {
	t.Helper()
	ctx := context.Background()
	invite, err := svc.CreateInvite(ctx, creatorID)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := svc.Redeem(ctx, redeemerID, invite.Code); err != nil {
		t.Fatalf("redeem invite: %v", err)
	}
	result, err := svc.Confirm(ctx, creatorID, invite.ID, DecisionAccept)
	if err != nil {
		t.Fatalf("confirm invite: %v", err)
	}
	return result.Link
}

func TestNewCodeFormat(t *testing.T) {
	code, err := NewCode()
	if err != nil {
		t.Fatalf("new code: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("code length = %d, want %d", len(code), codeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", code, r)
		}
	}
}

func TestCreateInvite(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if invite.Status != storage.InviteStatusOpen {
		t.Fatalf("status = %q, want open", invite.Status)
	}
	if !invite.ExpiresAt.Equal(baseTime().Add(10 * time.Minute)) {
		t.Fatalf("expires at = %v", invite.ExpiresAt)
	}
	if invite.ID == 0 {
		t.Fatal("expected non-zero invite id")
	}
}

func TestCreateInviteRejectsLinkedCreator(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	pairUp(t, svc, 1, 2)

	if _, err := svc.CreateInvite(context.Background(), 1); !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("err = %v, want ErrAlreadyLinked", err)
	}
}

func TestCreateInviteCodeCollision(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	svc.newCode = func() (string, error) { return "SAMEEE", nil }
	if _, err := svc.CreateInvite(ctx, 1); err != nil {
		t.Fatalf("create first invite: %v", err)
	}
	if _, err := svc.CreateInvite(ctx, 2); !errors.Is(err, ErrCodeCollision) {
		t.Fatalf("err = %v, want ErrCodeCollision", err)
	}
}

func TestCreateInviteExpiresStaleOnes(t *testing.T) {
	svc, now := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	first, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create first invite: %v", err)
	}

	*now = now.Add(11 * time.Minute)
	if _, err := svc.CreateInvite(ctx, 1); err != nil {
		t.Fatalf("create second invite: %v", err)
	}

	// The stale first invite no longer redeems.
	if _, err := svc.Redeem(ctx, 2, first.Code); !errors.Is(err, ErrInviteNotOpen) {
		t.Fatalf("err = %v, want ErrInviteNotOpen", err)
	}
}

func TestRedeem(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	redeemed, err := svc.Redeem(ctx, 2, invite.Code)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.Status != storage.InviteStatusAwaitingCreator || redeemed.UsedBy != 2 {
		t.Fatalf("unexpected invite: %+v", redeemed)
	}

	// A second redemption finds the invite no longer open.
	if _, err := svc.Redeem(ctx, 3, invite.Code); !errors.Is(err, ErrInviteNotOpen) {
		t.Fatalf("err = %v, want ErrInviteNotOpen", err)
	}
}

func TestRedeemErrors(t *testing.T) {
	svc, now := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if _, err := svc.Redeem(ctx, 2, "NOSUCH"); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("unknown code err = %v, want ErrInviteNotFound", err)
	}
	if _, err := svc.Redeem(ctx, 1, invite.Code); !errors.Is(err, ErrSelfRedeem) {
		t.Fatalf("self redeem err = %v, want ErrSelfRedeem", err)
	}

	*now = now.Add(11 * time.Minute)
	if _, err := svc.Redeem(ctx, 2, invite.Code); !errors.Is(err, ErrInviteExpired) {
		t.Fatalf("expired err = %v, want ErrInviteExpired", err)
	}
	// Lazy expiry is persisted, so the next attempt sees a closed invite.
	if _, err := svc.Redeem(ctx, 2, invite.Code); !errors.Is(err, ErrInviteNotOpen) {
		t.Fatalf("second expired err = %v, want ErrInviteNotOpen", err)
	}
}

func TestRedeemRejectsLinkedRedeemer(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()
	pairUp(t, svc, 1, 2)

	invite, err := svc.CreateInvite(ctx, 3)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := svc.Redeem(ctx, 2, invite.Code); !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("err = %v, want ErrAlreadyLinked", err)
	}
}

func TestConfirmAccept(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := svc.Redeem(ctx, 2, invite.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	result, err := svc.Confirm(ctx, 1, invite.ID, DecisionAccept)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !result.Accepted || result.Link.ID == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	for _, accountID := range []int64{1, 2} {
		link, ok, err := svc.ActiveLink(ctx, accountID)
		if err != nil {
			t.Fatalf("active link for %d: %v", accountID, err)
		}
		if !ok || link.ID != result.Link.ID {
			t.Fatalf("active link for %d = %+v, ok=%v", accountID, link, ok)
		}
	}

	if _, err := svc.Confirm(ctx, 1, invite.ID, DecisionAccept); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("double confirm err = %v, want ErrAlreadyResolved", err)
	}
}

func TestConfirmReject(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := svc.Redeem(ctx, 2, invite.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	result, err := svc.Confirm(ctx, 1, invite.ID, DecisionReject)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Accepted {
		t.Fatal("expected rejected result")
	}
	if _, ok, _ := svc.ActiveLink(ctx, 1); ok {
		t.Fatal("no link should exist after rejection")
	}
}

func TestConfirmNotOwner(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := svc.Redeem(ctx, 2, invite.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := svc.Confirm(ctx, 2, invite.ID, DecisionAccept); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestConfirmClosesOnConcurrentPairing(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()

	invite, err := svc.CreateInvite(ctx, 1)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := svc.Redeem(ctx, 2, invite.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// The redeemer pairs with a third account before the creator answers.
	pairUp(t, svc, 3, 2)

	result, err := svc.Confirm(ctx, 1, invite.ID, DecisionAccept)
	if !errors.Is(err, ErrPartyLinked) {
		t.Fatalf("err = %v, want ErrPartyLinked", err)
	}
	if result.Invite.UsedBy != 2 {
		t.Fatalf("unexpected invite in result: %+v", result.Invite)
	}
	if _, ok, _ := svc.ActiveLink(ctx, 1); ok {
		t.Fatal("creator should stay unlinked")
	}
	if _, err := svc.Confirm(ctx, 1, invite.ID, DecisionAccept); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second confirm err = %v, want ErrAlreadyResolved", err)
	}
}

func TestUnlink(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Minute)
	ctx := context.Background()
	link := pairUp(t, svc, 1, 2)

	got, err := svc.Unlink(ctx, 2)
	if err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if got.ID != link.ID {
		t.Fatalf("link id = %d, want %d", got.ID, link.ID)
	}
	if _, ok, _ := svc.ActiveLink(ctx, 1); ok {
		t.Fatal("link should be gone for the partner too")
	}
	if _, err := svc.Unlink(ctx, 1); !errors.Is(err, ErrNoActiveLink) {
		t.Fatalf("err = %v, want ErrNoActiveLink", err)
	}
}

func TestPartnerOf(t *testing.T) {
	link := storage.Link{UserA: 1, UserB: 2}
	if got := PartnerOf(link, 1); got != 2 {
		t.Fatalf("partner of 1 = %d, want 2", got)
	}
	if got := PartnerOf(link, 2); got != 1 {
		t.Fatalf("partner of 2 = %d, want 1", got)
	}
}
