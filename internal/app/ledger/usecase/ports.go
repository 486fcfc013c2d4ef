package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
)

// AccountStore is the repository port over account records. AdjustBalance
// is the only mutation entry point for balances.
type AccountStore interface {
	// GetByNumber returns the account or domain.ErrAccountNotFound.
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)

	// GetByOwner returns the account opened for the given owner reference,
	// or domain.ErrAccountNotFound. One account per owner.
	GetByOwner(ctx context.Context, ownerID string) (*domain.Account, error)

	// AdjustBalance applies delta to the account balance in a single
	// indivisible step, conditional on expectedVersion. It fails with
	// domain.ErrVersionConflict on a stale version and
	// domain.ErrInsufficientBalance when a negative delta would drive the
	// balance below zero. On success the version is bumped and the updated
	// account is returned.
	AdjustBalance(ctx context.Context, number string, delta int64, expectedVersion int64) (*domain.Account, error)

	// Open creates the account for ownerID, deriving the account number
	// from externalID. Returns domain.ErrAccountAlreadyExists on duplicates.
	Open(ctx context.Context, ownerID, externalID string) (*domain.Account, error)
}

// TransactionLog is the append-only audit record of transfers. Amount,
// sender and receiver of an appended record are never updated; only the
// status transitions.
type TransactionLog interface {
	// Append persists the record, assigning ID and CreatedAt when zero.
	Append(ctx context.Context, rec *domain.TransferRecord) error

	// MarkCommitted / MarkReversed / MarkStuck move the record to its
	// terminal status. MarkReversed is idempotent.
	MarkCommitted(ctx context.Context, id uuid.UUID) error
	MarkReversed(ctx context.Context, id uuid.UUID) error
	MarkStuck(ctx context.Context, id uuid.UUID) error

	// FindByIdempotencyKey returns the record previously appended with the
	// given caller-supplied key, or (nil, nil) when there is none.
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error)
}

// Alerter is the operational alerting path. It receives the conditions
// that must never be silently discarded: stuck transfers and audit gaps.
type Alerter interface {
	Alert(ctx context.Context, event string, fields map[string]any)
}
