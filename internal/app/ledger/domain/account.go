package domain

import (
	"strings"
	"time"
)

// Account is a single balance record. Balance is int64 minor units and is
// never negative at any observable point. It changes only through
// AccountStore.AdjustBalance; Version backs the optimistic concurrency
// check on every adjustment.
type Account struct {
	Number    string
	OwnerID   string
	Balance   int64
	Version   int64
	UpdatedAt time.Time
}

// DeriveAccountNumber maps an external identifier (a phone-style number)
// to the account number, deterministically: the leading international or
// trunk prefix marker is dropped and the remaining digits become the
// account number. The same identifier always yields the same account.
func DeriveAccountNumber(externalID string) (string, error) {
	id := strings.TrimSpace(externalID)
	if len(id) < 7 {
		return "", ErrInvalidExternalID
	}
	if id[0] == '+' || id[0] == '0' {
		id = id[1:]
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return "", ErrInvalidExternalID
		}
	}
	return id, nil
}
