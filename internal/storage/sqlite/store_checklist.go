package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

const listColumns = `id, creator_id, executor_id, status, created_at, updated_at,
	creator_chat_id, creator_message_id, executor_chat_id, executor_message_id`

func scanList(row interface{ Scan(...any) error }) (storage.List, error) {
	var list storage.List
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&list.ID,
		&list.CreatorID,
		&list.ExecutorID,
		&list.Status,
		&createdAt,
		&updatedAt,
		&list.CreatorChatID,
		&list.CreatorMessageID,
		&list.ExecutorChatID,
		&list.ExecutorMessageID,
	)
	if err != nil {
		return storage.List{}, err
	}
	list.CreatedAt = fromMillis(createdAt)
	list.UpdatedAt = fromMillis(updatedAt)
	return list, nil
}

func insertListItems(ctx context.Context, tx *sql.Tx, listID int64, items []storage.ListItem) error {
	for _, item := range items {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO list_items (list_id, item_order, text, quantity, status)
			 VALUES (?, ?, ?, ?, ?)`,
			listID,
			item.Order,
			item.Text,
			item.Quantity,
			item.Status,
		); err != nil {
			return fmt.Errorf("insert list item %d: %w", item.Order, err)
		}
	}
	return nil
}

// CreateList inserts one list row and its items in one transaction.
func (s *Store) CreateList(ctx context.Context, list storage.List, items []storage.ListItem) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if list.CreatorID == 0 || list.ExecutorID == 0 {
		return 0, fmt.Errorf("list requires creator and executor ids")
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("list requires at least one item")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin list create: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback list create: %v", cause, rollbackErr)
		}
		return cause
	}

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO lists (creator_id, executor_id, status, created_at, updated_at, creator_chat_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		list.CreatorID,
		list.ExecutorID,
		list.Status,
		toMillis(list.CreatedAt),
		toMillis(list.UpdatedAt),
		list.CreatorChatID,
	)
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("insert list: %w", err))
	}
	listID, err := result.LastInsertId()
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("list id: %w", err))
	}
	if err := insertListItems(ctx, tx, listID, items); err != nil {
		return 0, rollbackWith(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit list create: %w", err)
	}
	return listID, nil
}

// GetList returns one list by id.
func (s *Store) GetList(ctx context.Context, listID int64) (storage.List, error) {
	if err := s.ready(ctx); err != nil {
		return storage.List{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id = ?`, listID)
	list, err := scanList(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.List{}, storage.ErrNotFound
		}
		return storage.List{}, fmt.Errorf("get list: %w", err)
	}
	return list, nil
}

// GetOpenListByCreator returns the creator's non-terminal list, if any.
func (s *Store) GetOpenListByCreator(ctx context.Context, creatorID int64) (storage.List, error) {
	if err := s.ready(ctx); err != nil {
		return storage.List{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+listColumns+` FROM lists
		 WHERE creator_id = ? AND status IN (?, ?, ?)
		 ORDER BY id DESC LIMIT 1`,
		creatorID,
		storage.ListStatusDraft,
		storage.ListStatusPendingAccept,
		storage.ListStatusActive,
	)
	list, err := scanList(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.List{}, storage.ErrNotFound
		}
		return storage.List{}, fmt.Errorf("get open list by creator: %w", err)
	}
	return list, nil
}

// GetOpenListByMember returns the newest pending or active list the account
// participates in on either side.
func (s *Store) GetOpenListByMember(ctx context.Context, accountID int64) (storage.List, error) {
	if err := s.ready(ctx); err != nil {
		return storage.List{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+listColumns+` FROM lists
		 WHERE (creator_id = ? OR executor_id = ?) AND status IN (?, ?)
		 ORDER BY id DESC LIMIT 1`,
		accountID,
		accountID,
		storage.ListStatusPendingAccept,
		storage.ListStatusActive,
	)
	list, err := scanList(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.List{}, storage.ErrNotFound
		}
		return storage.List{}, fmt.Errorf("get open list by member: %w", err)
	}
	return list, nil
}

// ReplaceListItems swaps all items of one list in one transaction.
func (s *Store) ReplaceListItems(ctx context.Context, listID int64, items []storage.ListItem, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("list requires at least one item")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin list items replace: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback list items replace: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_items WHERE list_id = ?`, listID); err != nil {
		return rollbackWith(fmt.Errorf("delete list items: %w", err))
	}
	if err := insertListItems(ctx, tx, listID, items); err != nil {
		return rollbackWith(err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE lists SET updated_at = ? WHERE id = ?`,
		toMillis(updatedAt),
		listID,
	); err != nil {
		return rollbackWith(fmt.Errorf("touch list: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit list items replace: %w", err)
	}
	return nil
}

// ListItems returns all items of one list in order.
func (s *Store) ListItems(ctx context.Context, listID int64) ([]storage.ListItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, list_id, item_order, text, quantity, status
		 FROM list_items WHERE list_id = ? ORDER BY item_order`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []storage.ListItem
	for rows.Next() {
		var item storage.ListItem
		if err := rows.Scan(&item.ID, &item.ListID, &item.Order, &item.Text, &item.Quantity, &item.Status); err != nil {
			return nil, fmt.Errorf("scan list item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list items: %w", err)
	}
	return items, nil
}

// GetListItem returns one item scoped to its list.
func (s *Store) GetListItem(ctx context.Context, listID int64, itemID int64) (storage.ListItem, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListItem{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, list_id, item_order, text, quantity, status
		 FROM list_items WHERE id = ? AND list_id = ?`,
		itemID,
		listID,
	)
	var item storage.ListItem
	err := row.Scan(&item.ID, &item.ListID, &item.Order, &item.Text, &item.Quantity, &item.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ListItem{}, storage.ErrNotFound
		}
		return storage.ListItem{}, fmt.Errorf("get list item: %w", err)
	}
	return item, nil
}

// SetListStatus updates one list's lifecycle status.
func (s *Store) SetListStatus(ctx context.Context, listID int64, status string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE lists SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		toMillis(updatedAt),
		listID,
	)
	if err != nil {
		return fmt.Errorf("set list status: %w", err)
	}
	return nil
}

// SetListItemStatus updates one item's done/todo status.
func (s *Store) SetListItemStatus(ctx context.Context, itemID int64, status string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE list_items SET status = ? WHERE id = ?`,
		status,
		itemID,
	); err != nil {
		return fmt.Errorf("set list item status: %w", err)
	}
	return nil
}

// CountOpenItems returns how many items of one list are not done yet.
func (s *Store) CountOpenItems(ctx context.Context, listID int64) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM list_items WHERE list_id = ? AND status != ?`,
		listID,
		storage.ItemStatusDone,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count open items: %w", err)
	}
	return count, nil
}

// SetListMessageRef records the transport address of one party's tracked
// notification for later in-place edits.
func (s *Store) SetListMessageRef(ctx context.Context, listID int64, side storage.MessageSide, chatID int64, messageID int, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	var query string
	switch side {
	case storage.MessageSideCreator:
		query = `UPDATE lists SET creator_chat_id = ?, creator_message_id = ?, updated_at = ? WHERE id = ?`
	case storage.MessageSideExecutor:
		query = `UPDATE lists SET executor_chat_id = ?, executor_message_id = ?, updated_at = ? WHERE id = ?`
	default:
		return fmt.Errorf("unknown message side %q", side)
	}

	if _, err := s.sqlDB.ExecContext(ctx, query, chatID, messageID, toMillis(updatedAt), listID); err != nil {
		return fmt.Errorf("set list message ref: %w", err)
	}
	return nil
}
