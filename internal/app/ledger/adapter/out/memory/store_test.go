package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
)

func openAccount(t *testing.T, s *Store, owner, external string) *domain.Account {
	t.Helper()
	acct, err := s.Open(context.Background(), owner, external)
	require.NoError(t, err)
	return acct
}

func TestStoreOpen(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	acct := openAccount(t, s, "owner-1", "+886911111111")
	assert.Equal(t, "886911111111", acct.Number)
	assert.Equal(t, int64(0), acct.Balance)
	assert.Equal(t, int64(1), acct.Version)

	_, err := s.Open(ctx, "owner-2", "+886911111111")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	// One account per owner.
	_, err = s.Open(ctx, "owner-1", "+886922222222")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
}

func TestStoreGetByOwner(t *testing.T) {
	s := NewStore()
	acct := openAccount(t, s, "owner-1", "+886911111111")

	got, err := s.GetByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, acct.Number, got.Number)

	_, err = s.GetByOwner(context.Background(), "owner-unknown")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAdjustBalanceVersionConflict(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	acct := openAccount(t, s, "owner-1", "+886911111111")

	updated, err := s.AdjustBalance(ctx, acct.Number, 1000, acct.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), updated.Balance)
	assert.Equal(t, acct.Version+1, updated.Version)

	// Same expected version again: the write must be refused, not applied.
	_, err = s.AdjustBalance(ctx, acct.Number, 1000, acct.Version)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	current, err := s.GetByNumber(ctx, acct.Number)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), current.Balance)
}

func TestAdjustBalanceOverdraft(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	acct := openAccount(t, s, "owner-1", "+886911111111")

	updated, err := s.AdjustBalance(ctx, acct.Number, 500, acct.Version)
	require.NoError(t, err)

	_, err = s.AdjustBalance(ctx, acct.Number, -501, updated.Version)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	current, err := s.GetByNumber(ctx, acct.Number)
	require.NoError(t, err)
	assert.Equal(t, int64(500), current.Balance)
	assert.Equal(t, updated.Version, current.Version)
}

func TestAdjustBalanceUnknownAccount(t *testing.T) {
	s := NewStore()
	_, err := s.AdjustBalance(context.Background(), "000", 100, 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

// Concurrent read-adjust loops against one account must linearize: every
// increment lands exactly once.
func TestAdjustBalanceConcurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	acct := openAccount(t, s, "owner-1", "+886911111111")

	const workers = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				current, err := s.GetByNumber(ctx, acct.Number)
				if err != nil {
					t.Error(err)
					return
				}
				_, err = s.AdjustBalance(ctx, acct.Number, 1, current.Version)
				if err == nil {
					return
				}
				if !errors.Is(err, domain.ErrVersionConflict) {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	current, err := s.GetByNumber(ctx, acct.Number)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), current.Balance)
	assert.Equal(t, int64(1+workers), current.Version)
}
