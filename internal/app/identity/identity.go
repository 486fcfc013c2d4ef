// Package identity is the boundary to the external identity layer. The
// ledger core never derives identity from a raw token; callers arrive
// here already authenticated and this package only maps them to their
// account and consults the token revocation list. Token issuance and
// verification live outside this system entirely.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/kvcache"
)

// ErrTokenRevoked means the presented token is on the revocation list.
var ErrTokenRevoked = errors.New("token revoked")

// revocationPrefix matches the upstream identity service's key scheme.
const revocationPrefix = "BL_"

// RevocationList tracks revoked access tokens per subject in an external
// TTL cache. Entries expire with the token lifetime.
type RevocationList struct {
	cache kvcache.Cache
}

func NewRevocationList(cache kvcache.Cache) *RevocationList {
	return &RevocationList{cache: cache}
}

// Revoke blacklists the subject's current token for ttl.
func (r *RevocationList) Revoke(ctx context.Context, subject, token string, ttl time.Duration) error {
	return r.cache.Set(ctx, revocationPrefix+subject, token, ttl)
}

// Revoked reports whether the presented token is blacklisted for subject.
func (r *RevocationList) Revoked(ctx context.Context, subject, token string) (bool, error) {
	value, err := r.cache.Get(ctx, revocationPrefix+subject)
	if errors.Is(err, kvcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == token, nil
}

// Resolver maps an authenticated caller (subject plus the token it
// presented) to the caller's account number.
type Resolver struct {
	revocations *RevocationList
	accounts    usecase.AccountStore
}

func NewResolver(revocations *RevocationList, accounts usecase.AccountStore) *Resolver {
	return &Resolver{revocations: revocations, accounts: accounts}
}

func (r *Resolver) Resolve(ctx context.Context, subject, token string) (string, error) {
	revoked, err := r.revocations.Revoked(ctx, subject, token)
	if err != nil {
		return "", fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return "", ErrTokenRevoked
	}

	acct, err := r.accounts.GetByOwner(ctx, subject)
	if err != nil {
		return "", err
	}
	return acct.Number, nil
}
