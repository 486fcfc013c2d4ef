package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// walEntry is the on-disk shape of one audit mutation. Appends carry the
// whole record, status transitions only the id and the new status.
type walEntry struct {
	Op     string                 `json:"op"`
	Record *domain.TransferRecord `json:"record,omitempty"`
	ID     uuid.UUID              `json:"id,omitempty"`
	Status domain.TransferStatus  `json:"status,omitempty"`
}

const (
	walOpAppend = "append"
	walOpStatus = "status"
)

// Log is the in-memory TransactionLog. When a WAL is attached every
// append and status transition is also written through to it, and the log
// is rebuilt from the WAL at startup, so the audit trail survives
// restarts of the standalone mode.
type Log struct {
	mu      sync.Mutex
	records []*domain.TransferRecord
	byID    map[uuid.UUID]*domain.TransferRecord
	byKey   map[string]*domain.TransferRecord
	wal     *wal.WAL
}

// NewLog creates the log, replaying w when it is non-nil. A nil WAL gives
// a purely in-memory log for tests.
func NewLog(w *wal.WAL) (*Log, error) {
	l := &Log{
		byID:  make(map[uuid.UUID]*domain.TransferRecord),
		byKey: make(map[string]*domain.TransferRecord),
		wal:   w,
	}
	if w != nil {
		if err := l.replay(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Log) replay() error {
	return l.wal.ReadAll(func(raw []byte) error {
		var entry walEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		switch entry.Op {
		case walOpAppend:
			l.insert(entry.Record)
		case walOpStatus:
			if rec, ok := l.byID[entry.ID]; ok {
				rec.Status = entry.Status
			}
		}
		return nil
	})
}

func (l *Log) insert(rec *domain.TransferRecord) {
	l.records = append(l.records, rec)
	l.byID[rec.ID] = rec
	if rec.IdempotencyKey != "" {
		l.byKey[rec.IdempotencyKey] = rec
	}
}

func (l *Log) Append(ctx context.Context, rec *domain.TransferRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	// A reversed holder never moved funds, so its key is free for the
	// retry; any other holder keeps the key reserved.
	if rec.IdempotencyKey != "" {
		if prev, ok := l.byKey[rec.IdempotencyKey]; ok && prev.Status != domain.StatusReversed {
			return fmt.Errorf("idempotency key already used: %s", rec.IdempotencyKey)
		}
	}

	if l.wal != nil {
		if err := l.wal.Write(walEntry{Op: walOpAppend, Record: rec}); err != nil {
			return err
		}
	}

	stored := *rec
	l.insert(&stored)
	return nil
}

func (l *Log) MarkCommitted(ctx context.Context, id uuid.UUID) error {
	return l.setStatus(id, domain.StatusCommitted)
}

func (l *Log) MarkReversed(ctx context.Context, id uuid.UUID) error {
	return l.setStatus(id, domain.StatusReversed)
}

func (l *Log) MarkStuck(ctx context.Context, id uuid.UUID) error {
	return l.setStatus(id, domain.StatusStuck)
}

// setStatus moves a record out of pending. Re-applying the same terminal
// status is a no-op, so MarkReversed stays idempotent; any other rewrite
// of a terminal record is refused, the log is append-only.
func (l *Log) setStatus(id uuid.UUID, status domain.TransferStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("transfer record not found: %s", id)
	}
	if rec.Status == status {
		return nil
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("transfer record %s is %s, refusing transition to %s", id, rec.Status, status)
	}

	if l.wal != nil {
		if err := l.wal.Write(walEntry{Op: walOpStatus, ID: id, Status: status}); err != nil {
			return err
		}
	}
	rec.Status = status
	return nil
}

func (l *Log) FindByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Records returns a snapshot of all audit entries in append order.
func (l *Log) Records() []domain.TransferRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.TransferRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	return out
}

var _ usecase.TransactionLog = (*Log)(nil)
