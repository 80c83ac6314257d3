// Package pairing manages the invite handshake and the 1:1 link between
// two accounts. For any account at most one active link may exist; the
// invariant is enforced at invite creation, at redemption, and re-checked
// at confirmation to close the race in between.
package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

var (
	// ErrAlreadyLinked indicates the account already holds an active link.
	ErrAlreadyLinked = errors.New("account already has an active link")
	// ErrCodeCollision indicates the generated code clashed with an existing invite.
	ErrCodeCollision = errors.New("invite code collision")
	// ErrInviteNotFound indicates no invite matches the given code or id.
	ErrInviteNotFound = errors.New("invite not found")
	// ErrSelfRedeem indicates the redeemer created the invite themselves.
	ErrSelfRedeem = errors.New("cannot redeem own invite")
	// ErrInviteNotOpen indicates the invite was already used or closed.
	ErrInviteNotOpen = errors.New("invite is not open")
	// ErrInviteExpired indicates the invite's lifetime has passed.
	ErrInviteExpired = errors.New("invite has expired")
	// ErrNotOwner indicates the confirming account did not create the invite.
	ErrNotOwner = errors.New("invite belongs to another account")
	// ErrAlreadyResolved indicates the invite is past awaiting_creator.
	ErrAlreadyResolved = errors.New("invite already resolved")
	// ErrPartyLinked indicates a party acquired a link between redemption and
	// confirmation; the invite is closed as rejected.
	ErrPartyLinked = errors.New("a party already has an active link")
	// ErrNoActiveLink indicates there is no link to tear down.
	ErrNoActiveLink = errors.New("no active link")
)

// DefaultInviteTTL bounds an open invite's lifetime.
const DefaultInviteTTL = 10 * time.Minute

const codeLength = 6

// codeAlphabet holds 32 unambiguous characters so a random byte maps
// uniformly onto it.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewCode draws random bytes and encodes them as a fixed-length uppercase
// alphanumeric invite code.
func NewCode() (string, error) {
	var raw [codeLength]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	code := make([]byte, codeLength)
	for i, b := range raw {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}

// Decision is the creator's answer to a redeemed invite.
type Decision string

const (
	// DecisionAccept confirms the pairing.
	DecisionAccept Decision = "accept"
	// DecisionReject declines the pairing.
	DecisionReject Decision = "reject"
)

// ConfirmResult reports the outcome of a confirmation.
type ConfirmResult struct {
	Invite   storage.Invite
	Link     storage.Link
	Accepted bool
}

// Service orchestrates the pairing handshake lifecycle.
type Service struct {
	store   storage.PairingStore
	clock   func() time.Time
	ttl     time.Duration
	newCode func() (string, error)
}

// NewService constructs the pairing manager.
func NewService(store storage.PairingStore, ttl time.Duration, clock func() time.Time) *Service {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, clock: clock, ttl: ttl, newCode: NewCode}
}

// CreateInvite issues a fresh open invite for the creator. Stale open
// invites of the same creator are lazily expired first. A unique-code clash
// surfaces as ErrCodeCollision and the caller may simply retry.
func (s *Service) CreateInvite(ctx context.Context, creatorID int64) (storage.Invite, error) {
	if s == nil || s.store == nil {
		return storage.Invite{}, fmt.Errorf("pairing store is not configured")
	}
	now := s.clock().UTC()

	if _, err := s.store.GetActiveLink(ctx, creatorID); err == nil {
		return storage.Invite{}, ErrAlreadyLinked
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Invite{}, fmt.Errorf("check creator link: %w", err)
	}

	if err := s.store.ExpireStaleInvites(ctx, creatorID, now); err != nil {
		return storage.Invite{}, err
	}

	code, err := s.newCode()
	if err != nil {
		return storage.Invite{}, err
	}
	invite := storage.Invite{
		CreatorID: creatorID,
		Code:      code,
		Status:    storage.InviteStatusOpen,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	inviteID, err := s.store.CreateInvite(ctx, invite)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateCode) {
			return storage.Invite{}, ErrCodeCollision
		}
		return storage.Invite{}, err
	}
	invite.ID = inviteID
	return invite, nil
}

// Redeem consumes an invite code on behalf of the redeemer and moves the
// invite to awaiting_creator. The caller prompts the creator to confirm.
func (s *Service) Redeem(ctx context.Context, redeemerID int64, code string) (storage.Invite, error) {
	if s == nil || s.store == nil {
		return storage.Invite{}, fmt.Errorf("pairing store is not configured")
	}
	now := s.clock().UTC()

	if _, err := s.store.GetActiveLink(ctx, redeemerID); err == nil {
		return storage.Invite{}, ErrAlreadyLinked
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Invite{}, fmt.Errorf("check redeemer link: %w", err)
	}

	invite, err := s.store.GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Invite{}, ErrInviteNotFound
		}
		return storage.Invite{}, err
	}
	if invite.CreatorID == redeemerID {
		return storage.Invite{}, ErrSelfRedeem
	}
	if invite.Status != storage.InviteStatusOpen {
		return storage.Invite{}, ErrInviteNotOpen
	}
	if invite.ExpiresAt.Before(now) {
		if err := s.store.MarkInviteExpired(ctx, invite.ID); err != nil {
			return storage.Invite{}, err
		}
		return storage.Invite{}, ErrInviteExpired
	}

	if err := s.store.MarkInviteRedeemed(ctx, invite.ID, redeemerID); err != nil {
		return storage.Invite{}, err
	}
	invite.Status = storage.InviteStatusAwaitingCreator
	invite.UsedBy = redeemerID
	return invite, nil
}

// Confirm resolves a redeemed invite. Before honoring an accept it
// re-validates that neither party holds an active link; on conflict the
// invite is closed as rejected and ErrPartyLinked is returned with the
// invite so both parties can be informed. An accept applies the invite
// update and the link insert atomically.
func (s *Service) Confirm(ctx context.Context, creatorID int64, inviteID int64, decision Decision) (ConfirmResult, error) {
	if s == nil || s.store == nil {
		return ConfirmResult{}, fmt.Errorf("pairing store is not configured")
	}
	now := s.clock().UTC()

	invite, err := s.store.GetInvite(ctx, inviteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ConfirmResult{}, ErrInviteNotFound
		}
		return ConfirmResult{}, err
	}
	if invite.CreatorID != creatorID {
		return ConfirmResult{}, ErrNotOwner
	}
	if invite.Status != storage.InviteStatusAwaitingCreator {
		return ConfirmResult{}, ErrAlreadyResolved
	}

	creatorBusy, err := s.hasActiveLink(ctx, invite.CreatorID)
	if err != nil {
		return ConfirmResult{}, err
	}
	redeemerBusy, err := s.hasActiveLink(ctx, invite.UsedBy)
	if err != nil {
		return ConfirmResult{}, err
	}
	if creatorBusy || redeemerBusy {
		if err := s.store.MarkInviteResolved(ctx, invite.ID, storage.InviteStatusRejected, now); err != nil {
			return ConfirmResult{}, err
		}
		return ConfirmResult{Invite: invite}, ErrPartyLinked
	}

	if decision == DecisionReject {
		if err := s.store.MarkInviteResolved(ctx, invite.ID, storage.InviteStatusRejected, now); err != nil {
			return ConfirmResult{}, err
		}
		invite.Status = storage.InviteStatusRejected
		return ConfirmResult{Invite: invite, Accepted: false}, nil
	}

	link := storage.Link{
		UserA:     invite.CreatorID,
		UserB:     invite.UsedBy,
		Status:    storage.LinkStatusActive,
		CreatedAt: now,
	}
	linkID, err := s.store.AcceptInvite(ctx, invite.ID, link, now)
	if err != nil {
		return ConfirmResult{}, err
	}
	link.ID = linkID
	invite.Status = storage.InviteStatusAccepted
	return ConfirmResult{Invite: invite, Link: link, Accepted: true}, nil
}

// Unlink ends the actor's active link and returns it so both parties can be
// informed.
func (s *Service) Unlink(ctx context.Context, actorID int64) (storage.Link, error) {
	if s == nil || s.store == nil {
		return storage.Link{}, fmt.Errorf("pairing store is not configured")
	}
	link, err := s.store.GetActiveLink(ctx, actorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Link{}, ErrNoActiveLink
		}
		return storage.Link{}, err
	}
	if err := s.store.EndLink(ctx, link.ID, s.clock().UTC()); err != nil {
		return storage.Link{}, err
	}
	return link, nil
}

// ActiveLink returns the account's active link, if any.
func (s *Service) ActiveLink(ctx context.Context, accountID int64) (storage.Link, bool, error) {
	if s == nil || s.store == nil {
		return storage.Link{}, false, fmt.Errorf("pairing store is not configured")
	}
	link, err := s.store.GetActiveLink(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Link{}, false, nil
		}
		return storage.Link{}, false, err
	}
	return link, true, nil
}

func (s *Service) hasActiveLink(ctx context.Context, accountID int64) (bool, error) {
	if accountID == 0 {
		return false, nil
	}
	_, err := s.store.GetActiveLink(ctx, accountID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check active link: %w", err)
}

// PartnerOf returns the other side of a link.
func PartnerOf(link storage.Link, accountID int64) int64 {
	if link.UserA == accountID {
		return link.UserB
	}
	return link.UserA
}
