package capture

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tandembot/tandem/internal/storage/sqlite"
)

func newTestService(t *testing.T) *Service {
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
	clock := func() time.Time { return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC) }
	return NewService(store, clock)
}

func TestSetOverwritesPriorSlot(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, 7, TagInviteCode, InviteCodePayload{Prefill: "ABC234"}); err != nil {
		t.Fatalf("set invite slot: %v", err)
	}
	// Starting a different flow abandons the invite slot.
	if err := svc.Set(ctx, 7, TagTaskTime, TaskTimePayload{Text: "walk the dog", Day: "today"}); err != nil {
		t.Fatalf("overwrite slot: %v", err)
	}

	tag, payload, ok, err := svc.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if !ok || tag != TagTaskTime {
		t.Fatalf("slot = %q ok=%v, want task time", tag, ok)
	}

	var slot TaskTimePayload
	if err := Decode(payload, &slot); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if slot.Text != "walk the dog" || slot.Day != "today" {
		t.Fatalf("unexpected payload: %+v", slot)
	}
}

func TestGetMissingSlot(t *testing.T) {
	svc := newTestService(t)

	_, _, ok, err := svc.Get(context.Background(), 99)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if ok {
		t.Fatal("expected no slot")
	}
}

func TestClear(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, 7, TagChecklistItems, nil); err != nil {
		t.Fatalf("set slot: %v", err)
	}
	if err := svc.Clear(ctx, 7); err != nil {
		t.Fatalf("clear slot: %v", err)
	}
	if _, _, ok, _ := svc.Get(ctx, 7); ok {
		t.Fatal("slot should be gone")
	}
	// Clearing an empty slot is a no-op.
	if err := svc.Clear(ctx, 7); err != nil {
		t.Fatalf("re-clear slot: %v", err)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	var slot InviteCodePayload
	if err := Decode(nil, &slot); err != nil {
		t.Fatalf("decode empty payload: %v", err)
	}
	if slot.Prefill != "" {
		t.Fatalf("unexpected payload: %+v", slot)
	}
}
