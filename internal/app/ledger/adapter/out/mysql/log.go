package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// sqlTransfer maps to the transfers table. Amount, sender and receiver
// are written once on append and never updated; the only mutable column
// is status. The nullable unique idempotency key lets records without a
// key coexist; a reversal clears the key so a retry can reuse it.
type sqlTransfer struct {
	ID             string  `gorm:"primaryKey;type:char(36)"`
	FromAccount    string  `gorm:"column:from_account;size:32;index"`
	ToAccount      string  `gorm:"column:to_account;size:32;index"`
	Amount         int64
	Remark         string    `gorm:"size:255"`
	IdempotencyKey *string   `gorm:"column:idempotency_key;size:64;uniqueIndex"`
	Status         string    `gorm:"size:16"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (*sqlTransfer) TableName() string {
	return "transfers"
}

func (t *sqlTransfer) toDomain() (*domain.TransferRecord, error) {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt transfer id %q: %w", t.ID, err)
	}
	rec := &domain.TransferRecord{
		ID:        id,
		From:      t.FromAccount,
		To:        t.ToAccount,
		Amount:    t.Amount,
		Remark:    t.Remark,
		CreatedAt: t.CreatedAt,
		Status:    domain.TransferStatus(t.Status),
	}
	if t.IdempotencyKey != nil {
		rec.IdempotencyKey = *t.IdempotencyKey
	}
	return rec, nil
}

// Log is the MySQL TransactionLog.
type Log struct {
	client *mysql.Client
}

func NewLog(client *mysql.Client) *Log {
	return &Log{client: client}
}

func (l *Log) Append(ctx context.Context, rec *domain.TransferRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	row := sqlTransfer{
		ID:          rec.ID.String(),
		FromAccount: rec.From,
		ToAccount:   rec.To,
		Amount:      rec.Amount,
		Remark:      rec.Remark,
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt,
	}
	if rec.IdempotencyKey != "" {
		key := rec.IdempotencyKey
		row.IdempotencyKey = &key
	}

	err := l.client.DB().WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("idempotency key already used: %s", rec.IdempotencyKey)
	}
	if err != nil {
		return fmt.Errorf("append transfer record: %w", err)
	}
	return nil
}

func (l *Log) MarkCommitted(ctx context.Context, id uuid.UUID) error {
	return l.setStatus(ctx, id, domain.StatusCommitted)
}

func (l *Log) MarkReversed(ctx context.Context, id uuid.UUID) error {
	return l.setStatus(ctx, id, domain.StatusReversed)
}

func (l *Log) MarkStuck(ctx context.Context, id uuid.UUID) error {
	return l.setStatus(ctx, id, domain.StatusStuck)
}

// setStatus moves a record out of pending with a guarded UPDATE. MySQL
// reports zero affected rows both for a missing record and for a value
// that did not change, so a readback settles which case it was; repeating
// an already-applied transition is a no-op.
func (l *Log) setStatus(ctx context.Context, id uuid.UUID, status domain.TransferStatus) error {
	db := l.client.DB().WithContext(ctx)

	updates := map[string]any{"status": string(status)}
	if status == domain.StatusReversed {
		// A reversal never moved funds; releasing the key lets the
		// caller's retry append a fresh record under it.
		updates["idempotency_key"] = nil
	}
	res := db.Model(&sqlTransfer{}).
		Where("id = ? AND status = ?", id.String(), string(domain.StatusPending)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update transfer status: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var row sqlTransfer
	err := db.Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("transfer record not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("transfer status readback: %w", err)
	}
	if row.Status == string(status) {
		return nil
	}
	return fmt.Errorf("transfer record %s is %s, refusing transition to %s", id, row.Status, status)
}

func (l *Log) FindByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	var row sqlTransfer
	err := l.client.DB().WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select transfer by idempotency key: %w", err)
	}
	return row.toDomain()
}

var _ usecase.TransactionLog = (*Log)(nil)
