package domain

import "errors"

var (
	// ErrInvalidAmount rejects zero, negative, over-precision or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance rejects a debit that would drive the balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountNotFound means the account number resolves to nothing.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists means an account with that number was opened before.
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrSameAccount rejects transfers where sender and receiver are the same account.
	ErrSameAccount = errors.New("cannot transfer to the same account")

	// ErrVersionConflict means the optimistic version check failed at write time.
	// Callers inside the coordinator retry it; it never reaches the API surface.
	ErrVersionConflict = errors.New("account version conflict")

	// ErrTransient means a bounded retry or timeout budget was exhausted.
	// Safe for the caller to retry, ideally with an idempotency key.
	ErrTransient = errors.New("transient failure, retry later")

	// ErrCompensationFailed is the one fatal condition: a sender debit committed,
	// the receiver credit failed, and the reversal of the debit failed too.
	// The transfer record is left in StatusStuck for manual reconciliation.
	ErrCompensationFailed = errors.New("compensation failed, transfer stuck")

	// ErrInvalidExternalID rejects owner identifiers an account number
	// cannot be derived from.
	ErrInvalidExternalID = errors.New("invalid external identifier")
)
