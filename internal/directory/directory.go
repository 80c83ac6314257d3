// Package directory maintains the account record for every chat identity
// observed on an inbound event.
package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tandembot/tandem/internal/storage"
)

// Identity is the chat-provider view of one account.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Service upserts account records. It carries no business logic.
type Service struct {
	store storage.AccountStore
	clock func() time.Time
}

// NewService constructs the account directory.
func NewService(store storage.AccountStore, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, clock: clock}
}

// Observe records or refreshes the account behind an inbound event.
func (s *Service) Observe(ctx context.Context, identity Identity) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("account store is not configured")
	}
	if identity.ID == 0 {
		return fmt.Errorf("account id is required")
	}
	return s.store.UpsertAccount(ctx, storage.Account{
		ID:        identity.ID,
		Username:  identity.Username,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		CreatedAt: s.clock().UTC(),
	})
}

// DisplayName returns a human-readable name for an account, falling back to
// the numeric id when the account is unknown or nameless.
func (s *Service) DisplayName(ctx context.Context, accountID int64) string {
	fallback := "ID " + strconv.FormatInt(accountID, 10)
	if s == nil || s.store == nil {
		return fallback
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return fallback
	}
	name := strings.TrimSpace(account.FirstName)
	if name == "" && account.Username != "" {
		name = "@" + account.Username
	}
	if name == "" {
		return fallback
	}
	return name
}
