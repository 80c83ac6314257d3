package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

func encodeWords(words []string) (string, error) {
	if words == nil {
		words = []string{}
	}
	encoded, err := json.Marshal(words)
	if err != nil {
		return "", fmt.Errorf("encode used words: %w", err)
	}
	return string(encoded), nil
}

func decodeWords(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var words []string
	if err := json.Unmarshal([]byte(encoded), &words); err != nil {
		return nil, fmt.Errorf("decode used words: %w", err)
	}
	return words, nil
}

// UpsertAliasSession resets or creates the per-account word game session.
func (s *Store) UpsertAliasSession(ctx context.Context, session storage.AliasSession) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if session.AccountID == 0 {
		return fmt.Errorf("account id is required")
	}
	usedWords, err := encodeWords(session.UsedWords)
	if err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO alias_sessions
		   (account_id, difficulty, score, status, current_word, last_word, used_words, updated_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET
		   difficulty = excluded.difficulty,
		   score = excluded.score,
		   status = excluded.status,
		   current_word = excluded.current_word,
		   last_word = excluded.last_word,
		   used_words = excluded.used_words,
		   updated_at = excluded.updated_at`,
		session.AccountID,
		session.Difficulty,
		session.Score,
		session.Status,
		session.CurrentWord,
		session.LastWord,
		usedWords,
		toMillis(session.UpdatedAt),
		toMillis(session.CreatedAt),
	); err != nil {
		return fmt.Errorf("upsert alias session: %w", err)
	}
	return nil
}

// GetActiveAliasSession returns the account's running word game session.
func (s *Store) GetActiveAliasSession(ctx context.Context, accountID int64) (storage.AliasSession, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AliasSession{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT account_id, difficulty, score, status, current_word, last_word, used_words, updated_at, created_at
		 FROM alias_sessions WHERE account_id = ? AND status = ?`,
		accountID,
		storage.AliasStatusActive,
	)
	var session storage.AliasSession
	var usedWords string
	var updatedAt int64
	var createdAt int64
	err := row.Scan(
		&session.AccountID,
		&session.Difficulty,
		&session.Score,
		&session.Status,
		&session.CurrentWord,
		&session.LastWord,
		&usedWords,
		&updatedAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AliasSession{}, storage.ErrNotFound
		}
		return storage.AliasSession{}, fmt.Errorf("get alias session: %w", err)
	}
	session.UsedWords, err = decodeWords(usedWords)
	if err != nil {
		return storage.AliasSession{}, err
	}
	session.UpdatedAt = fromMillis(updatedAt)
	session.CreatedAt = fromMillis(createdAt)
	return session, nil
}

// SetAliasRound records the current round word and the rotation history.
func (s *Store) SetAliasRound(ctx context.Context, accountID int64, currentWord string, usedWords []string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	encoded, err := encodeWords(usedWords)
	if err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE alias_sessions
		 SET current_word = ?, last_word = ?, used_words = ?, updated_at = ?
		 WHERE account_id = ?`,
		currentWord,
		currentWord,
		encoded,
		toMillis(updatedAt),
		accountID,
	); err != nil {
		return fmt.Errorf("set alias round: %w", err)
	}
	return nil
}

// AddAliasScore adds delta to the session score.
func (s *Store) AddAliasScore(ctx context.Context, accountID int64, delta int, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE alias_sessions SET score = score + ?, updated_at = ? WHERE account_id = ?`,
		delta,
		toMillis(updatedAt),
		accountID,
	); err != nil {
		return fmt.Errorf("add alias score: %w", err)
	}
	return nil
}

// StopAliasSession marks the account's session as stopped.
func (s *Store) StopAliasSession(ctx context.Context, accountID int64, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE alias_sessions SET status = ?, updated_at = ? WHERE account_id = ?`,
		storage.AliasStatusStopped,
		toMillis(updatedAt),
		accountID,
	); err != nil {
		return fmt.Errorf("stop alias session: %w", err)
	}
	return nil
}
