package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func TestLogAppendAndStatus(t *testing.T) {
	l, err := NewLog(nil)
	require.NoError(t, err)
	ctx := context.Background()

	rec := &domain.TransferRecord{
		From:   "111",
		To:     "222",
		Amount: 3050,
		Status: domain.StatusPending,
	}
	require.NoError(t, l.Append(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	require.NoError(t, l.MarkCommitted(ctx, rec.ID))

	recs := l.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusCommitted, recs[0].Status)

	// Committed records are immutable apart from the idempotent re-apply.
	require.NoError(t, l.MarkCommitted(ctx, rec.ID))
	assert.Error(t, l.MarkReversed(ctx, rec.ID))
}

func TestLogMarkReversedIdempotent(t *testing.T) {
	l, err := NewLog(nil)
	require.NoError(t, err)
	ctx := context.Background()

	rec := &domain.TransferRecord{From: "111", To: "222", Amount: 100, Status: domain.StatusPending}
	require.NoError(t, l.Append(ctx, rec))

	require.NoError(t, l.MarkReversed(ctx, rec.ID))
	require.NoError(t, l.MarkReversed(ctx, rec.ID))
	assert.Equal(t, domain.StatusReversed, l.Records()[0].Status)
}

func TestLogIdempotencyKey(t *testing.T) {
	l, err := NewLog(nil)
	require.NoError(t, err)
	ctx := context.Background()

	rec := &domain.TransferRecord{From: "111", To: "222", Amount: 100, IdempotencyKey: "key-1", Status: domain.StatusPending}
	require.NoError(t, l.Append(ctx, rec))

	found, err := l.FindByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rec.ID, found.ID)

	missing, err := l.FindByIdempotencyKey(ctx, "key-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := &domain.TransferRecord{From: "333", To: "444", Amount: 5, IdempotencyKey: "key-1", Status: domain.StatusPending}
	assert.Error(t, l.Append(ctx, dup))
}

func TestLogIdempotencyKeyFreedByReversal(t *testing.T) {
	l, err := NewLog(nil)
	require.NoError(t, err)
	ctx := context.Background()

	first := &domain.TransferRecord{From: "111", To: "222", Amount: 100, IdempotencyKey: "key-1", Status: domain.StatusPending}
	require.NoError(t, l.Append(ctx, first))
	require.NoError(t, l.MarkReversed(ctx, first.ID))

	// The reversed attempt never moved funds, so the key must be free for
	// the retry, and lookups must resolve to the retry's record.
	retry := &domain.TransferRecord{From: "111", To: "222", Amount: 100, IdempotencyKey: "key-1", Status: domain.StatusPending}
	require.NoError(t, l.Append(ctx, retry))
	require.NoError(t, l.MarkCommitted(ctx, retry.ID))

	found, err := l.FindByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, retry.ID, found.ID)
	assert.Equal(t, domain.StatusCommitted, found.Status)

	// Once the key has a committed holder again it is reserved.
	dup := &domain.TransferRecord{From: "333", To: "444", Amount: 5, IdempotencyKey: "key-1", Status: domain.StatusPending}
	assert.Error(t, l.Append(ctx, dup))
	assert.Len(t, l.Records(), 2)
}

func TestLogWALReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.log")

	w, err := wal.NewWAL(path)
	require.NoError(t, err)
	l, err := NewLog(w)
	require.NoError(t, err)

	committed := &domain.TransferRecord{From: "111", To: "222", Amount: 3050, Status: domain.StatusPending}
	require.NoError(t, l.Append(ctx, committed))
	require.NoError(t, l.MarkCommitted(ctx, committed.ID))

	reversed := &domain.TransferRecord{From: "222", To: "111", Amount: 777, Status: domain.StatusPending}
	require.NoError(t, l.Append(ctx, reversed))
	require.NoError(t, l.MarkReversed(ctx, reversed.ID))
	require.NoError(t, w.Close())

	// Reopen: the audit trail must come back with final statuses.
	w2, err := wal.NewWAL(path)
	require.NoError(t, err)
	defer w2.Close()
	restored, err := NewLog(w2)
	require.NoError(t, err)

	recs := restored.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, committed.ID, recs[0].ID)
	assert.Equal(t, domain.StatusCommitted, recs[0].Status)
	assert.Equal(t, int64(3050), recs[0].Amount)
	assert.Equal(t, reversed.ID, recs[1].ID)
	assert.Equal(t, domain.StatusReversed, recs[1].Status)
}
