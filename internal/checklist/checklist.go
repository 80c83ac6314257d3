// Package checklist manages the shared list lifecycle between linked
// accounts: draft, send, accept or reject, item toggling, completion.
package checklist

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

var (
	// ErrListNotFound indicates no list matches the given id.
	ErrListNotFound = errors.New("list not found")
	// ErrListAlreadyOpen indicates the creator already has an open list.
	ErrListAlreadyOpen = errors.New("an open list already exists")
	// ErrNoItems indicates the parsed body contained no usable lines.
	ErrNoItems = errors.New("no items parsed")
	// ErrForbidden indicates the actor is not a party to the list.
	ErrForbidden = errors.New("actor is not a party to this list")
	// ErrInvalidState indicates the list is not in a state accepting the
	// operation.
	ErrInvalidState = errors.New("list state does not allow this operation")
	// ErrNoChange indicates the toggle would not change the item.
	ErrNoChange = errors.New("item already in requested state")
	// ErrItemNotFound indicates the item does not belong to the list.
	ErrItemNotFound = errors.New("item not found")
)

// quantityPattern matches a trailing token that starts with a digit, such
// as "2L", "12pcs" or "500g". The remainder of the line is the item title.
var quantityPattern = regexp.MustCompile(`^(.*?)\s+(\d\S*)$`)

// Item is one parsed checklist line.
type Item struct {
	Title    string
	Quantity string
}

// ParseItems splits a message body into items, one per line. A trailing
// digit-led token becomes the quantity. Blank lines are dropped.
func ParseItems(body string) []Item {
	var items []Item
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := quantityPattern.FindStringSubmatch(line); m != nil {
			items = append(items, Item{Title: strings.TrimSpace(m[1]), Quantity: m[2]})
			continue
		}
		items = append(items, Item{Title: line})
	}
	return items
}

// Progress summarizes item completion for one list.
type Progress struct {
	Done  int
	Total int
}

// ToggleResult reports a toggle outcome, including whether the flip
// completed the whole list.
type ToggleResult struct {
	List      storage.List
	Item      storage.ListItem
	Progress  Progress
	Completed bool
}

// Service orchestrates the checklist lifecycle.
type Service struct {
	store storage.ChecklistStore
	clock func() time.Time
}

// NewService constructs the checklist service.
func NewService(store storage.ChecklistStore, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, clock: clock}
}

// CreateDraft parses the body into items and stores a new draft list. A
// creator holds at most one open list at a time.
func (s *Service) CreateDraft(ctx context.Context, creatorID, executorID int64, body string) (storage.List, []storage.ListItem, error) {
	if s == nil || s.store == nil {
		return storage.List{}, nil, fmt.Errorf("checklist store is not configured")
	}
	parsed := ParseItems(body)
	if len(parsed) == 0 {
		return storage.List{}, nil, ErrNoItems
	}

	if _, err := s.store.GetOpenListByCreator(ctx, creatorID); err == nil {
		return storage.List{}, nil, ErrListAlreadyOpen
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.List{}, nil, fmt.Errorf("check open list: %w", err)
	}

	now := s.clock().UTC()
	list := storage.List{
		CreatorID:  creatorID,
		ExecutorID: executorID,
		Status:     storage.ListStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	records := toRecords(parsed)
	listID, err := s.store.CreateList(ctx, list, records)
	if err != nil {
		return storage.List{}, nil, err
	}
	list.ID = listID

	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	return list, items, nil
}

// EditDraft replaces the items of the creator's draft with a freshly parsed
// body. Item statuses reset since the draft was never sent.
func (s *Service) EditDraft(ctx context.Context, creatorID, listID int64, body string) (storage.List, []storage.ListItem, error) {
	if s == nil || s.store == nil {
		return storage.List{}, nil, fmt.Errorf("checklist store is not configured")
	}
	parsed := ParseItems(body)
	if len(parsed) == 0 {
		return storage.List{}, nil, ErrNoItems
	}

	list, err := s.getOwnedList(ctx, creatorID, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	if list.Status != storage.ListStatusDraft {
		return storage.List{}, nil, ErrInvalidState
	}
	if err := s.store.ReplaceListItems(ctx, listID, toRecords(parsed), s.clock().UTC()); err != nil {
		return storage.List{}, nil, err
	}
	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	return list, items, nil
}

// CancelDraft withdraws the creator's draft before it was sent.
func (s *Service) CancelDraft(ctx context.Context, creatorID, listID int64) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("checklist store is not configured")
	}
	list, err := s.getOwnedList(ctx, creatorID, listID)
	if err != nil {
		return err
	}
	if list.Status != storage.ListStatusDraft {
		return ErrInvalidState
	}
	return s.store.SetListStatus(ctx, listID, storage.ListStatusCanceled, s.clock().UTC())
}

// Send moves the creator's draft to pending_accept so the executor can
// respond. Items are returned for the outgoing offer message.
func (s *Service) Send(ctx context.Context, creatorID, listID int64) (storage.List, []storage.ListItem, error) {
	if s == nil || s.store == nil {
		return storage.List{}, nil, fmt.Errorf("checklist store is not configured")
	}
	list, err := s.getOwnedList(ctx, creatorID, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	if list.Status != storage.ListStatusDraft {
		return storage.List{}, nil, ErrInvalidState
	}
	if err := s.store.SetListStatus(ctx, listID, storage.ListStatusPendingAccept, s.clock().UTC()); err != nil {
		return storage.List{}, nil, err
	}
	list.Status = storage.ListStatusPendingAccept
	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	return list, items, nil
}

// Respond records the executor's accept or reject of a pending list.
func (s *Service) Respond(ctx context.Context, executorID, listID int64, accept bool) (storage.List, []storage.ListItem, error) {
	if s == nil || s.store == nil {
		return storage.List{}, nil, fmt.Errorf("checklist store is not configured")
	}
	list, err := s.getList(ctx, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	if list.ExecutorID != executorID {
		return storage.List{}, nil, ErrForbidden
	}
	if list.Status != storage.ListStatusPendingAccept {
		return storage.List{}, nil, ErrInvalidState
	}

	status := storage.ListStatusActive
	if !accept {
		status = storage.ListStatusCanceled
	}
	if err := s.store.SetListStatus(ctx, listID, status, s.clock().UTC()); err != nil {
		return storage.List{}, nil, err
	}
	list.Status = status
	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	return list, items, nil
}

// ToggleItem flips one item of an active list. Only the executor toggles;
// the creator follows along through delta notes. Requesting the state the
// item already holds returns ErrNoChange so a stale double tap has no
// effect. When the last item flips to done the list completes.
func (s *Service) ToggleItem(ctx context.Context, executorID, listID, itemID int64, done bool) (ToggleResult, error) {
	if s == nil || s.store == nil {
		return ToggleResult{}, fmt.Errorf("checklist store is not configured")
	}
	list, err := s.getList(ctx, listID)
	if err != nil {
		return ToggleResult{}, err
	}
	if list.ExecutorID != executorID {
		return ToggleResult{}, ErrForbidden
	}
	if list.Status != storage.ListStatusActive {
		return ToggleResult{}, ErrInvalidState
	}

	item, err := s.store.GetListItem(ctx, listID, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ToggleResult{}, ErrItemNotFound
		}
		return ToggleResult{}, err
	}

	want := storage.ItemStatusTodo
	if done {
		want = storage.ItemStatusDone
	}
	if item.Status == want {
		return ToggleResult{}, ErrNoChange
	}

	now := s.clock().UTC()
	if err := s.store.SetListItemStatus(ctx, itemID, want); err != nil {
		return ToggleResult{}, err
	}
	item.Status = want

	open, err := s.store.CountOpenItems(ctx, listID)
	if err != nil {
		return ToggleResult{}, err
	}
	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return ToggleResult{}, err
	}

	result := ToggleResult{
		List:     list,
		Item:     item,
		Progress: Progress{Done: len(items) - open, Total: len(items)},
	}
	if open == 0 {
		if err := s.store.SetListStatus(ctx, listID, storage.ListStatusCompleted, now); err != nil {
			return ToggleResult{}, err
		}
		result.List.Status = storage.ListStatusCompleted
		result.Completed = true
	}
	return result, nil
}

// OpenListFor returns the list the account participates in that is still
// pending or active, if any.
func (s *Service) OpenListFor(ctx context.Context, accountID int64) (storage.List, []storage.ListItem, bool, error) {
	if s == nil || s.store == nil {
		return storage.List{}, nil, false, fmt.Errorf("checklist store is not configured")
	}
	list, err := s.store.GetOpenListByMember(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.List{}, nil, false, nil
		}
		return storage.List{}, nil, false, err
	}
	items, err := s.store.ListItems(ctx, list.ID)
	if err != nil {
		return storage.List{}, nil, false, err
	}
	return list, items, true, nil
}

// DraftFor returns the creator's open draft, if any.
func (s *Service) DraftFor(ctx context.Context, creatorID int64) (storage.List, []storage.ListItem, bool, error) {
	if s == nil || s.store == nil {
		return storage.List{}, nil, false, fmt.Errorf("checklist store is not configured")
	}
	list, err := s.store.GetOpenListByCreator(ctx, creatorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.List{}, nil, false, nil
		}
		return storage.List{}, nil, false, err
	}
	if list.Status != storage.ListStatusDraft {
		return storage.List{}, nil, false, nil
	}
	items, err := s.store.ListItems(ctx, list.ID)
	if err != nil {
		return storage.List{}, nil, false, err
	}
	return list, items, true, nil
}

// Items returns the items of one list, checked against membership.
func (s *Service) Items(ctx context.Context, actorID, listID int64) (storage.List, []storage.ListItem, error) {
	if s == nil || s.store == nil {
		return storage.List{}, nil, fmt.Errorf("checklist store is not configured")
	}
	list, err := s.getList(ctx, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	if list.CreatorID != actorID && list.ExecutorID != actorID {
		return storage.List{}, nil, ErrForbidden
	}
	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return storage.List{}, nil, err
	}
	return list, items, nil
}

// RecordMessageRef remembers where one side's rendering of the list lives
// so later toggles can edit it in place.
func (s *Service) RecordMessageRef(ctx context.Context, listID int64, side storage.MessageSide, chatID int64, messageID int) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("checklist store is not configured")
	}
	return s.store.SetListMessageRef(ctx, listID, side, chatID, messageID, s.clock().UTC())
}

func (s *Service) getList(ctx context.Context, listID int64) (storage.List, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.List{}, ErrListNotFound
		}
		return storage.List{}, err
	}
	return list, nil
}

func (s *Service) getOwnedList(ctx context.Context, creatorID, listID int64) (storage.List, error) {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return storage.List{}, err
	}
	if list.CreatorID != creatorID {
		return storage.List{}, ErrForbidden
	}
	return list, nil
}

func toRecords(parsed []Item) []storage.ListItem {
	records := make([]storage.ListItem, 0, len(parsed))
	// Order is a 1-based sequence.
	for i, item := range parsed {
		records = append(records, storage.ListItem{
			Order:    i + 1,
			Text:     item.Title,
			Quantity: item.Quantity,
			Status:   storage.ItemStatusTodo,
		})
	}
	return records
}
