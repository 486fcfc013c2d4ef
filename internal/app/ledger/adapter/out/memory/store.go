package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
)

// accountSlot pairs an account with its own mutex so that the
// compare-and-commit of AdjustBalance is indivisible per account without
// any lock spanning two accounts.
type accountSlot struct {
	mu   sync.Mutex
	acct domain.Account
}

// Store is the in-memory AccountStore, used by tests and the standalone
// mode. Concurrent adjustments to the same account are linearized by the
// per-account mutex; the map itself only needs protection on Open.
type Store struct {
	mu     sync.RWMutex
	slots  map[string]*accountSlot
	owners map[string]string // owner id -> account number
}

func NewStore() *Store {
	return &Store{
		slots:  make(map[string]*accountSlot),
		owners: make(map[string]string),
	}
}

func (s *Store) slot(number string) (*accountSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[number]
	return slot, ok
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	slot, ok := s.slot(number)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	acct := slot.acct
	return &acct, nil
}

func (s *Store) GetByOwner(ctx context.Context, ownerID string) (*domain.Account, error) {
	s.mu.RLock()
	number, ok := s.owners[ownerID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return s.GetByNumber(ctx, number)
}

// AdjustBalance applies delta conditionally on expectedVersion. The read,
// the checks and the commit happen under the account's own lock, so two
// concurrent adjustments can never interleave their read-modify-write
// windows.
func (s *Store) AdjustBalance(ctx context.Context, number string, delta int64, expectedVersion int64) (*domain.Account, error) {
	slot, ok := s.slot(number)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.acct.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if delta < 0 && slot.acct.Balance+delta < 0 {
		return nil, domain.ErrInsufficientBalance
	}

	slot.acct.Balance += delta
	slot.acct.Version++
	slot.acct.UpdatedAt = time.Now()

	acct := slot.acct
	return &acct, nil
}

func (s *Store) Open(ctx context.Context, ownerID, externalID string) (*domain.Account, error) {
	number, err := domain.DeriveAccountNumber(externalID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[number]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	if _, ok := s.owners[ownerID]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	slot := &accountSlot{
		acct: domain.Account{
			Number:    number,
			OwnerID:   ownerID,
			Version:   1,
			UpdatedAt: time.Now(),
		},
	}
	s.slots[number] = slot
	s.owners[ownerID] = number
	acct := slot.acct
	return &acct, nil
}

var _ usecase.AccountStore = (*Store)(nil)
