package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExternalSource is the sender sentinel on credit records: funds entering
// the ledger from outside (a deposit) rather than from another account.
const ExternalSource = "external"

// TransferStatus is the lifecycle state of a TransferRecord.
type TransferStatus string

const (
	// StatusPending exists only during the coordinator's synchronous run.
	StatusPending TransferStatus = "pending"
	// StatusCommitted means both adjustments landed.
	StatusCommitted TransferStatus = "committed"
	// StatusReversed means the transfer was aborted and any sender debit
	// was compensated back.
	StatusReversed TransferStatus = "reversed"
	// StatusStuck means the sender was debited, the receiver credit failed
	// and the compensation failed too. Needs manual reconciliation.
	StatusStuck TransferStatus = "stuck"
)

// Terminal reports whether no further transition is allowed.
func (s TransferStatus) Terminal() bool {
	return s == StatusCommitted || s == StatusReversed || s == StatusStuck
}

// TransferRecord is one append-only audit entry. Amount, sender and
// receiver are immutable after creation; only Status moves.
type TransferRecord struct {
	ID             uuid.UUID
	From           string
	To             string
	Amount         int64
	Remark         string
	IdempotencyKey string
	CreatedAt      time.Time
	Status         TransferStatus
}

// LockNumbers returns the account numbers this record touches, in the
// global lock order, so that any store acquiring per-account locks does so
// consistently and two opposite transfers between the same pair cannot
// deadlock.
func (r *TransferRecord) LockNumbers() []string {
	if r.From == ExternalSource {
		return []string{r.To}
	}
	a, b := LockOrder(r.From, r.To)
	return []string{a, b}
}

// LockOrder returns the two account numbers in the total order used for
// per-account lock acquisition (lexicographic, independent of
// sender/receiver role).
func LockOrder(x, y string) (first, second string) {
	if x < y {
		return x, y
	}
	return y, x
}
