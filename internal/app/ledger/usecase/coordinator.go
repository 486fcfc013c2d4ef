package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
)

// Alert event names consumed by the operational alerting path.
const (
	EventTransferStuck = "ledger.transfer_stuck"
	EventAuditGap      = "ledger.audit_gap"
)

const (
	defaultMaxRetries = 5
	defaultRetryBase  = 5 * time.Millisecond
	defaultOpTimeout  = 5 * time.Second
)

// TransferCoordinator orchestrates validation, ordering, atomic
// multi-account mutation and compensation on partial failure. It is the
// only component with cross-account logic and is safe under unbounded
// concurrent invocation: all cross-account safety comes from the store's
// conditional updates, no lock is held across a whole operation.
type TransferCoordinator struct {
	accounts AccountStore
	log      TransactionLog
	alerter  Alerter
	logger   *zap.Logger

	maxRetries int
	retryBase  time.Duration
	opTimeout  time.Duration
}

// Option configures a TransferCoordinator.
type Option func(*TransferCoordinator)

// WithRetryBudget sets the bounded number of version-conflict retries per
// adjustment and the base delay of the exponential backoff between them.
func WithRetryBudget(attempts int, base time.Duration) Option {
	return func(c *TransferCoordinator) {
		c.maxRetries = attempts
		c.retryBase = base
	}
}

// WithTimeout bounds each Credit/Transfer call. Exceeding it surfaces
// domain.ErrTransient instead of blocking forever.
func WithTimeout(d time.Duration) Option {
	return func(c *TransferCoordinator) {
		c.opTimeout = d
	}
}

func NewTransferCoordinator(accounts AccountStore, log TransactionLog, alerter Alerter, logger *zap.Logger, opts ...Option) *TransferCoordinator {
	c := &TransferCoordinator{
		accounts:   accounts,
		log:        log,
		alerter:    alerter,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
		opTimeout:  defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenAccount creates the balance record for a new owner. The account
// number is derived deterministically from the external identifier.
func (c *TransferCoordinator) OpenAccount(ctx context.Context, ownerID, externalID string) (*domain.Account, error) {
	return c.accounts.Open(ctx, ownerID, externalID)
}

// GetBalance reads the authoritative balance of an account.
func (c *TransferCoordinator) GetBalance(ctx context.Context, number string) (*domain.Account, error) {
	return c.accounts.GetByNumber(ctx, number)
}

// Credit deposits an externally sourced amount into a single account.
//
// The credit is considered committed once the balance write succeeds. A
// failure to append the audit record afterwards does not roll the balance
// back; it is reported through the Alerter as an audit gap, balance
// correctness takes precedence over audit completeness.
func (c *TransferCoordinator) Credit(ctx context.Context, number, amount string) (*domain.Account, error) {
	minor, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	acct, err := c.adjustWithRetry(ctx, number, minor)
	if err != nil {
		return nil, err
	}

	rec := &domain.TransferRecord{
		From:   domain.ExternalSource,
		To:     number,
		Amount: minor,
		Status: domain.StatusCommitted,
	}
	if err := c.log.Append(ctx, rec); err != nil {
		c.logger.Error("credit committed but audit append failed",
			zap.String("account", number),
			zap.Int64("amount", minor),
			zap.Error(err))
		c.alerter.Alert(ctx, EventAuditGap, map[string]any{
			"account": number,
			"amount":  domain.FormatAmount(minor),
			"error":   err.Error(),
		})
	}
	return acct, nil
}

// Transfer moves amount from one account to another with all-or-nothing
// semantics. On a receiver-credit failure the sender debit is compensated
// back exactly; if that compensation itself fails the record is marked
// stuck, the Alerter is paged and domain.ErrCompensationFailed is
// returned.
//
// An optional caller-supplied idempotency key makes a retried request
// recognizable as a duplicate instead of being reapplied.
func (c *TransferCoordinator) Transfer(ctx context.Context, from, to, amount, remark, idempotencyKey string) (*domain.TransferRecord, error) {
	if idempotencyKey != "" {
		prev, err := c.log.FindByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("%w: idempotency lookup: %v", domain.ErrTransient, err)
		}
		if prev != nil {
			switch prev.Status {
			case domain.StatusCommitted:
				return prev, nil
			case domain.StatusStuck:
				return prev, domain.ErrCompensationFailed
			case domain.StatusPending:
				return prev, domain.ErrTransient
			}
			// A reversed prior attempt never moved funds, so the retry
			// runs as a fresh transfer.
		}
	}

	if from == to {
		return nil, domain.ErrSameAccount
	}
	minor, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	// Authoritative reads, in the global lock order so a store that locks
	// its reads acquires row locks consistently for any pair of accounts.
	first, second := domain.LockOrder(from, to)
	acctFirst, err := c.accounts.GetByNumber(ctx, first)
	if err != nil {
		return nil, err
	}
	acctSecond, err := c.accounts.GetByNumber(ctx, second)
	if err != nil {
		return nil, err
	}
	sender := acctFirst
	if acctSecond.Number == from {
		sender = acctSecond
	}
	if sender.Balance < minor {
		return nil, domain.ErrInsufficientBalance
	}

	rec := &domain.TransferRecord{
		From:           from,
		To:             to,
		Amount:         minor,
		Remark:         remark,
		IdempotencyKey: idempotencyKey,
		Status:         domain.StatusPending,
	}
	if err := c.log.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: audit append: %v", domain.ErrTransient, err)
	}

	// Debit the sender. Insufficient funds can still surface here: the
	// check above was a read, the conditional update is the authority.
	if _, err := c.adjustWithRetry(ctx, from, -minor); err != nil {
		c.reverse(ctx, rec)
		return rec, err
	}

	// Once the debit has committed the transfer must reach a terminal
	// state; caller cancellation is ignored from here on.
	dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
	defer dcancel()

	if _, err := c.adjustWithRetry(dctx, to, minor); err != nil {
		if _, compErr := c.adjustWithRetry(dctx, from, minor); compErr != nil {
			rec.Status = domain.StatusStuck
			if markErr := c.log.MarkStuck(dctx, rec.ID); markErr != nil {
				c.logger.Error("failed to mark stuck transfer", zap.String("record", rec.ID.String()), zap.Error(markErr))
			}
			c.logger.Error("transfer stuck: debit committed, credit and compensation failed",
				zap.String("record", rec.ID.String()),
				zap.String("from", from),
				zap.String("to", to),
				zap.Int64("amount", minor),
				zap.NamedError("credit_error", err),
				zap.NamedError("compensation_error", compErr))
			c.alerter.Alert(dctx, EventTransferStuck, map[string]any{
				"record": rec.ID.String(),
				"from":   from,
				"to":     to,
				"amount": domain.FormatAmount(minor),
			})
			return rec, fmt.Errorf("%w: record %s", domain.ErrCompensationFailed, rec.ID)
		}
		c.reverse(dctx, rec)
		return rec, err
	}

	if err := c.log.MarkCommitted(dctx, rec.ID); err != nil {
		c.logger.Error("transfer committed but audit update failed", zap.String("record", rec.ID.String()), zap.Error(err))
		c.alerter.Alert(dctx, EventAuditGap, map[string]any{
			"record": rec.ID.String(),
			"error":  err.Error(),
		})
	}
	rec.Status = domain.StatusCommitted
	return rec, nil
}

// reverse marks the record reversed, best effort. The balances are
// already consistent when it is called.
func (c *TransferCoordinator) reverse(ctx context.Context, rec *domain.TransferRecord) {
	rec.Status = domain.StatusReversed
	if err := c.log.MarkReversed(ctx, rec.ID); err != nil {
		c.logger.Error("failed to mark reversed transfer", zap.String("record", rec.ID.String()), zap.Error(err))
	}
}

// adjustWithRetry performs one balance adjustment under optimistic
// concurrency: read the current version, attempt the conditional update,
// and on a version conflict back off and retry with a fresh read, a
// bounded number of times. Exhaustion surfaces domain.ErrTransient.
func (c *TransferCoordinator) adjustWithRetry(ctx context.Context, number string, delta int64) (*domain.Account, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		acct, err := c.accounts.GetByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		if delta < 0 && acct.Balance+delta < 0 {
			return nil, domain.ErrInsufficientBalance
		}
		updated, err := c.accounts.AdjustBalance(ctx, number, delta, acct.Version)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		if err := backoff.SleepWithContext(ctx, backoff.ExponentialWithJitter(c.retryBase, attempt)); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
		}
	}
	return nil, fmt.Errorf("%w: version conflict retries exhausted for account %s", domain.ErrTransient, number)
}
