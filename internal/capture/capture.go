// Package capture holds the single pending "awaiting input" slot per
// account. Starting a new capture overwrites any prior one, which
// deliberately abandons the earlier flow.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

// Tag identifies which flow step a pending slot awaits.
type Tag string

const (
	// TagInviteCode awaits a pairing invite code.
	TagInviteCode Tag = "invite_code"
	// TagChecklistItems awaits the checklist body, one item per line.
	TagChecklistItems Tag = "checklist_items"
	// TagTaskText awaits the task description.
	TagTaskText Tag = "task_text"
	// TagTaskTime awaits the HH:MM deadline time.
	TagTaskTime Tag = "task_time"
	// TagTaskRescheduleTime awaits a manual HH:MM reschedule time.
	TagTaskRescheduleTime Tag = "task_reschedule_time"
)

// InviteCodePayload optionally prefills a deep-linked code.
type InviteCodePayload struct {
	Prefill string `json:"prefill,omitempty"`
}

// ChecklistItemsPayload points at a draft being edited, when any.
type ChecklistItemsPayload struct {
	EditListID int64 `json:"edit_list_id,omitempty"`
}

// TaskTimePayload carries the task text and chosen day across the time step.
type TaskTimePayload struct {
	Text string `json:"text"`
	Day  string `json:"day"`
}

// TaskReschedulePayload identifies the task being rescheduled manually.
type TaskReschedulePayload struct {
	TaskID int64 `json:"task_id"`
}

// Service manages capture slots in the store of record.
type Service struct {
	store storage.CaptureStore
	clock func() time.Time
}

// NewService constructs the capture slot service.
func NewService(store storage.CaptureStore, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, clock: clock}
}

// Set overwrites the account's pending slot with the given tag and payload.
func (s *Service) Set(ctx context.Context, accountID int64, tag Tag, payload any) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("capture store is not configured")
	}
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode capture payload: %w", err)
		}
	}
	return s.store.SetCapture(ctx, storage.Capture{
		AccountID: accountID,
		Tag:       string(tag),
		Payload:   encoded,
		UpdatedAt: s.clock().UTC(),
	})
}

// Get returns the account's pending slot. ok is false when none exists.
func (s *Service) Get(ctx context.Context, accountID int64) (tag Tag, payload []byte, ok bool, err error) {
	if s == nil || s.store == nil {
		return "", nil, false, fmt.Errorf("capture store is not configured")
	}
	slot, err := s.store.GetCapture(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, false, nil
		}
		return "", nil, false, err
	}
	return Tag(slot.Tag), slot.Payload, true, nil
}

// Clear deletes the account's pending slot. Handlers that consume a slot
// must clear or overwrite it before their terminal effect so stale slots
// cannot hijack later input.
func (s *Service) Clear(ctx context.Context, accountID int64) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("capture store is not configured")
	}
	return s.store.ClearCapture(ctx, accountID)
}

// Decode unmarshals a slot payload into target, tolerating empty payloads.
func Decode(payload []byte, target any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode capture payload: %w", err)
	}
	return nil
}
