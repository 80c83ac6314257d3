// Package sqlite provides a SQLite-backed tandem storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tandembot/tandem/internal/platform/storage/sqlitemigrate"
	"github.com/tandembot/tandem/internal/storage"
	"github.com/tandembot/tandem/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists tandem state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	converted := fromMillis(value.Int64)
	return &converted
}

// Open opens a SQLite tandem store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// UpsertAccount inserts or refreshes one chat identity record.
func (s *Store) UpsertAccount(ctx context.Context, account storage.Account) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if account.ID == 0 {
		return fmt.Errorf("account id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO accounts (id, username, first_name, last_name, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   username = excluded.username,
		   first_name = excluded.first_name,
		   last_name = excluded.last_name`,
		account.ID,
		account.Username,
		account.FirstName,
		account.LastName,
		toMillis(account.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// GetAccount returns one chat identity record.
func (s *Store) GetAccount(ctx context.Context, accountID int64) (storage.Account, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Account{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, username, first_name, last_name, created_at
		 FROM accounts WHERE id = ?`,
		accountID,
	)
	var account storage.Account
	var createdAt int64
	err := row.Scan(&account.ID, &account.Username, &account.FirstName, &account.LastName, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, fmt.Errorf("get account: %w", err)
	}
	account.CreatedAt = fromMillis(createdAt)
	return account, nil
}

// SetCapture overwrites the pending capture slot for one account.
func (s *Store) SetCapture(ctx context.Context, capture storage.Capture) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if capture.AccountID == 0 {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(capture.Tag) == "" {
		return fmt.Errorf("capture tag is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO captures (account_id, tag, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET
		   tag = excluded.tag,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		capture.AccountID,
		capture.Tag,
		capture.Payload,
		toMillis(capture.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("set capture: %w", err)
	}
	return nil
}

// GetCapture returns the pending capture slot for one account.
func (s *Store) GetCapture(ctx context.Context, accountID int64) (storage.Capture, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Capture{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT account_id, tag, payload, updated_at FROM captures WHERE account_id = ?`,
		accountID,
	)
	var capture storage.Capture
	var updatedAt int64
	err := row.Scan(&capture.AccountID, &capture.Tag, &capture.Payload, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Capture{}, storage.ErrNotFound
		}
		return storage.Capture{}, fmt.Errorf("get capture: %w", err)
	}
	capture.UpdatedAt = fromMillis(updatedAt)
	return capture, nil
}

// ClearCapture deletes the pending capture slot for one account.
func (s *Store) ClearCapture(ctx context.Context, accountID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM captures WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear capture: %w", err)
	}
	return nil
}
