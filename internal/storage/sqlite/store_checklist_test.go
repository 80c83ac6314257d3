package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

func newList(creatorID, executorID int64) storage.List {
	return storage.List{
		CreatorID:  creatorID,
		ExecutorID: executorID,
		Status:     storage.ListStatusDraft,
		CreatedAt:  testTime(),
		UpdatedAt:  testTime(),
	}
}

func newItems(texts ...string) []storage.ListItem {
	items := make([]storage.ListItem, 0, len(texts))
	for i, text := range texts {
		items = append(items, storage.ListItem{Order: i, Text: text, Status: storage.ItemStatusTodo})
	}
	return items
}

func TestCreateListWithItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	listID, err := store.CreateList(ctx, newList(1, 2), newItems("Milk", "Bread"))
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	list, err := store.GetList(ctx, listID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if list.Status != storage.ListStatusDraft || list.ExecutorID != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	items, err := store.ListItems(ctx, listID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("item count = %d, want 2", len(items))
	}
	if items[0].Text != "Milk" || items[1].Text != "Bread" {
		t.Fatalf("unexpected item order: %+v", items)
	}
}

func TestCreateListRequiresItems(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateList(context.Background(), newList(1, 2), nil); err == nil {
		t.Fatal("expected error for empty items")
	}
}

func TestGetOpenListByCreator(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	listID, err := store.CreateList(ctx, newList(1, 2), newItems("Milk"))
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	open, err := store.GetOpenListByCreator(ctx, 1)
	if err != nil {
		t.Fatalf("get open list: %v", err)
	}
	if open.ID != listID {
		t.Fatalf("open list id = %d, want %d", open.ID, listID)
	}

	if err := store.SetListStatus(ctx, listID, storage.ListStatusCanceled, testTime()); err != nil {
		t.Fatalf("cancel list: %v", err)
	}
	if _, err := store.GetOpenListByCreator(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err after cancel = %v, want ErrNotFound", err)
	}
}

func TestGetOpenListByMemberSkipsDrafts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	listID, err := store.CreateList(ctx, newList(1, 2), newItems("Milk"))
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	// Drafts are private to the creator.
	if _, err := store.GetOpenListByMember(ctx, 2); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err for draft = %v, want ErrNotFound", err)
	}

	if err := store.SetListStatus(ctx, listID, storage.ListStatusPendingAccept, testTime()); err != nil {
		t.Fatalf("send list: %v", err)
	}
	open, err := store.GetOpenListByMember(ctx, 2)
	if err != nil {
		t.Fatalf("get open list by member: %v", err)
	}
	if open.ID != listID {
		t.Fatalf("open list id = %d, want %d", open.ID, listID)
	}
}

func TestReplaceListItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	listID, err := store.CreateList(ctx, newList(1, 2), newItems("Milk"))
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	replacement := newItems("Eggs", "Butter", "Bread")
	if err := store.ReplaceListItems(ctx, listID, replacement, testTime().Add(time.Minute)); err != nil {
		t.Fatalf("replace items: %v", err)
	}

	items, err := store.ListItems(ctx, listID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 3 || items[0].Text != "Eggs" {
		t.Fatalf("unexpected items: %+v", items)
	}

	list, err := store.GetList(ctx, listID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if !list.UpdatedAt.Equal(testTime().Add(time.Minute)) {
		t.Fatalf("updated at = %v", list.UpdatedAt)
	}
}

func TestItemStatusAndOpenCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	listID, err := store.CreateList(ctx, newList(1, 2), newItems("Milk", "Bread"))
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	items, err := store.ListItems(ctx, listID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}

	if err := store.SetListItemStatus(ctx, items[0].ID, storage.ItemStatusDone); err != nil {
		t.Fatalf("set item status: %v", err)
	}
	open, err := store.CountOpenItems(ctx, listID)
	if err != nil {
		t.Fatalf("count open items: %v", err)
	}
	if open != 1 {
		t.Fatalf("open items = %d, want 1", open)
	}

	item, err := store.GetListItem(ctx, listID, items[0].ID)
	if err != nil {
		t.Fatalf("get list item: %v", err)
	}
	if item.Status != storage.ItemStatusDone {
		t.Fatalf("item status = %q, want done", item.Status)
	}

	// Items are scoped to their list.
	if _, err := store.GetListItem(ctx, listID+1, items[0].ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetListMessageRef(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	listID, err := store.CreateList(ctx, newList(1, 2), newItems("Milk"))
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	if err := store.SetListMessageRef(ctx, listID, storage.MessageSideExecutor, 2, 77, testTime()); err != nil {
		t.Fatalf("set executor ref: %v", err)
	}
	list, err := store.GetList(ctx, listID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if list.ExecutorChatID != 2 || list.ExecutorMessageID != 77 {
		t.Fatalf("unexpected executor ref: %+v", list)
	}

	if err := store.SetListMessageRef(ctx, listID, "bogus", 1, 1, testTime()); err == nil {
		t.Fatal("expected error for unknown side")
	}
}
