package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// sqlAccount maps to the accounts table.
type sqlAccount struct {
	Number    string `gorm:"primaryKey;size:32"`
	OwnerID   string `gorm:"column:owner_id;size:64;uniqueIndex"`
	Balance   int64
	Version   int64
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		Number:    a.Number,
		OwnerID:   a.OwnerID,
		Balance:   a.Balance,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt,
	}
}

// Store is the MySQL AccountStore.
type Store struct {
	client *mysql.Client
}

func NewStore(client *mysql.Client) *Store {
	return &Store{client: client}
}

// Migrate creates or updates the ledger tables.
func Migrate(client *mysql.Client) error {
	return client.DB().AutoMigrate(&sqlAccount{}, &sqlTransfer{})
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("number = ?", number).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetByOwner(ctx context.Context, ownerID string) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("owner_id = ?", ownerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account by owner: %w", err)
	}
	return row.toDomain(), nil
}

// AdjustBalance is a single conditional UPDATE: the version check and the
// non-negative balance guard live in the WHERE clause, so the database
// linearizes concurrent adjustments to the same account without any
// read-then-write window.
func (s *Store) AdjustBalance(ctx context.Context, number string, delta int64, expectedVersion int64) (*domain.Account, error) {
	db := s.client.DB().WithContext(ctx)

	res := db.Model(&sqlAccount{}).
		Where("number = ? AND version = ? AND balance + ? >= 0", number, expectedVersion, delta).
		Updates(map[string]any{
			"balance": gorm.Expr("balance + ?", delta),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("adjust balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Disambiguate which guard refused the write.
		var row sqlAccount
		err := db.Where("number = ?", number).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("adjust balance readback: %w", err)
		}
		if row.Version != expectedVersion {
			return nil, domain.ErrVersionConflict
		}
		return nil, domain.ErrInsufficientBalance
	}

	var row sqlAccount
	if err := db.Where("number = ?", number).First(&row).Error; err != nil {
		return nil, fmt.Errorf("adjust balance readback: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) Open(ctx context.Context, ownerID, externalID string) (*domain.Account, error) {
	number, err := domain.DeriveAccountNumber(externalID)
	if err != nil {
		return nil, err
	}

	row := sqlAccount{
		Number:  number,
		OwnerID: ownerID,
		Balance: 0,
		Version: 1,
	}
	err = s.client.DB().WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, domain.ErrAccountAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return row.toDomain(), nil
}

var _ usecase.AccountStore = (*Store)(nil)
