package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

const inviteColumns = `id, creator_id, code, status, used_by, expires_at, created_at, responded_at`

func scanInvite(row interface{ Scan(...any) error }) (storage.Invite, error) {
	var invite storage.Invite
	var expiresAt int64
	var createdAt int64
	var respondedAt sql.NullInt64
	err := row.Scan(
		&invite.ID,
		&invite.CreatorID,
		&invite.Code,
		&invite.Status,
		&invite.UsedBy,
		&expiresAt,
		&createdAt,
		&respondedAt,
	)
	if err != nil {
		return storage.Invite{}, err
	}
	invite.ExpiresAt = fromMillis(expiresAt)
	invite.CreatedAt = fromMillis(createdAt)
	invite.RespondedAt = fromNullMillis(respondedAt)
	return invite, nil
}

// CreateInvite inserts one open invite. A code collision with the unique
// index surfaces as storage.ErrDuplicateCode.
func (s *Store) CreateInvite(ctx context.Context, invite storage.Invite) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if invite.CreatorID == 0 {
		return 0, fmt.Errorf("creator id is required")
	}
	if strings.TrimSpace(invite.Code) == "" {
		return 0, fmt.Errorf("invite code is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO invites (creator_id, code, status, used_by, expires_at, created_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		invite.CreatorID,
		invite.Code,
		invite.Status,
		toMillis(invite.ExpiresAt),
		toMillis(invite.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, storage.ErrDuplicateCode
		}
		return 0, fmt.Errorf("create invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create invite id: %w", err)
	}
	return id, nil
}

// GetInvite returns one invite by id.
func (s *Store) GetInvite(ctx context.Context, inviteID int64) (storage.Invite, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Invite{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE id = ?`,
		inviteID,
	)
	invite, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Invite{}, storage.ErrNotFound
		}
		return storage.Invite{}, fmt.Errorf("get invite: %w", err)
	}
	return invite, nil
}

// GetInviteByCode returns one invite by its unique code.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (storage.Invite, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Invite{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return storage.Invite{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE code = ?`,
		code,
	)
	invite, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Invite{}, storage.ErrNotFound
		}
		return storage.Invite{}, fmt.Errorf("get invite by code: %w", err)
	}
	return invite, nil
}

// ExpireStaleInvites lazily marks the creator's open invites past their
// deadline as expired.
func (s *Store) ExpireStaleInvites(ctx context.Context, creatorID int64, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE invites SET status = ? WHERE creator_id = ? AND status = ? AND expires_at < ?`,
		storage.InviteStatusExpired,
		creatorID,
		storage.InviteStatusOpen,
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("expire stale invites: %w", err)
	}
	return nil
}

// MarkInviteExpired flips one invite to expired.
func (s *Store) MarkInviteExpired(ctx context.Context, inviteID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE invites SET status = ? WHERE id = ?`,
		storage.InviteStatusExpired,
		inviteID,
	)
	if err != nil {
		return fmt.Errorf("mark invite expired: %w", err)
	}
	return nil
}

// MarkInviteRedeemed transitions one invite to awaiting_creator and records
// the redeemer.
func (s *Store) MarkInviteRedeemed(ctx context.Context, inviteID int64, redeemerID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if redeemerID == 0 {
		return fmt.Errorf("redeemer id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE invites SET status = ?, used_by = ? WHERE id = ?`,
		storage.InviteStatusAwaitingCreator,
		redeemerID,
		inviteID,
	)
	if err != nil {
		return fmt.Errorf("mark invite redeemed: %w", err)
	}
	return nil
}

// MarkInviteResolved records a terminal invite status with its response time.
func (s *Store) MarkInviteResolved(ctx context.Context, inviteID int64, status string, respondedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE invites SET status = ?, responded_at = ? WHERE id = ?`,
		status,
		toMillis(respondedAt),
		inviteID,
	)
	if err != nil {
		return fmt.Errorf("mark invite resolved: %w", err)
	}
	return nil
}

// AcceptInvite marks the invite accepted and inserts the new active link in
// one transaction so a partial confirmation can never be observed.
func (s *Store) AcceptInvite(ctx context.Context, inviteID int64, link storage.Link, respondedAt time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if link.UserA == 0 || link.UserB == 0 {
		return 0, fmt.Errorf("link requires both user ids")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin invite accept: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback invite accept: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE invites SET status = ?, responded_at = ? WHERE id = ?`,
		storage.InviteStatusAccepted,
		toMillis(respondedAt),
		inviteID,
	); err != nil {
		return 0, rollbackWith(fmt.Errorf("accept invite update: %w", err))
	}

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO links (user_a, user_b, status, created_at) VALUES (?, ?, ?, ?)`,
		link.UserA,
		link.UserB,
		storage.LinkStatusActive,
		toMillis(link.CreatedAt),
	)
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("accept invite link insert: %w", err))
	}
	linkID, err := result.LastInsertId()
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("accept invite link id: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit invite accept: %w", err)
	}
	return linkID, nil
}

// GetActiveLink returns the active link containing the account, if any.
func (s *Store) GetActiveLink(ctx context.Context, accountID int64) (storage.Link, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Link{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, user_a, user_b, status, created_at, ended_at
		 FROM links
		 WHERE status = ? AND (user_a = ? OR user_b = ?)
		 LIMIT 1`,
		storage.LinkStatusActive,
		accountID,
		accountID,
	)
	var link storage.Link
	var createdAt int64
	var endedAt sql.NullInt64
	err := row.Scan(&link.ID, &link.UserA, &link.UserB, &link.Status, &createdAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Link{}, storage.ErrNotFound
		}
		return storage.Link{}, fmt.Errorf("get active link: %w", err)
	}
	link.CreatedAt = fromMillis(createdAt)
	link.EndedAt = fromNullMillis(endedAt)
	return link, nil
}

// EndLink marks one active link as ended.
func (s *Store) EndLink(ctx context.Context, linkID int64, endedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE links SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		storage.LinkStatusEnded,
		toMillis(endedAt),
		linkID,
		storage.LinkStatusActive,
	)
	if err != nil {
		return fmt.Errorf("end link: %w", err)
	}
	return nil
}
