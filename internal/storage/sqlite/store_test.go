package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tandem.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testTime() time.Time {
	return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestAccountRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := storage.Account{
		ID:        42,
		Username:  "ada",
		FirstName: "Ada",
		LastName:  "Lovelace",
		CreatedAt: testTime(),
	}
	if err := store.UpsertAccount(ctx, account); err != nil {
		t.Fatalf("upsert account: %v", err)
	}

	got, err := store.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Username != "ada" || got.FirstName != "Ada" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if !got.CreatedAt.Equal(testTime()) {
		t.Fatalf("created at = %v, want %v", got.CreatedAt, testTime())
	}

	account.Username = "ada2"
	if err := store.UpsertAccount(ctx, account); err != nil {
		t.Fatalf("re-upsert account: %v", err)
	}
	got, err = store.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("get account after update: %v", err)
	}
	if got.Username != "ada2" {
		t.Fatalf("username = %q, want ada2", got.Username)
	}
}

func TestGetAccountMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetAccount(context.Background(), 999)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCaptureOverwriteAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := storage.Capture{AccountID: 7, Tag: "invite_code", Payload: []byte(`{}`), UpdatedAt: testTime()}
	if err := store.SetCapture(ctx, first); err != nil {
		t.Fatalf("set capture: %v", err)
	}

	second := storage.Capture{AccountID: 7, Tag: "task_text", UpdatedAt: testTime().Add(time.Minute)}
	if err := store.SetCapture(ctx, second); err != nil {
		t.Fatalf("overwrite capture: %v", err)
	}

	got, err := store.GetCapture(ctx, 7)
	if err != nil {
		t.Fatalf("get capture: %v", err)
	}
	if got.Tag != "task_text" {
		t.Fatalf("tag = %q, want task_text", got.Tag)
	}

	if err := store.ClearCapture(ctx, 7); err != nil {
		t.Fatalf("clear capture: %v", err)
	}
	if _, err := store.GetCapture(ctx, 7); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err after clear = %v, want ErrNotFound", err)
	}
}

func TestCaptureRequiresTag(t *testing.T) {
	store := newTestStore(t)

	err := store.SetCapture(context.Background(), storage.Capture{AccountID: 7, UpdatedAt: testTime()})
	if err == nil {
		t.Fatal("expected error for blank tag")
	}
}
