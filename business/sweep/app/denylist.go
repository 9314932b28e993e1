package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/logger"
)

// Denylist is the append-only set of tokens excluded from sweeps. The
// in-memory set is authoritative; the optional store is written through.
type Denylist struct {
	mu     sync.RWMutex
	set    map[common.Address]struct{}
	order  []common.Address
	store  DenylistStore
	logger logger.LoggerInterface
}

// NewDenylist creates an empty denylist. store may be nil.
func NewDenylist(store DenylistStore, log logger.LoggerInterface) *Denylist {
	return &Denylist{
		set:    make(map[common.Address]struct{}),
		store:  store,
		logger: log,
	}
}

// Load merges persisted entries into the set.
func (d *Denylist) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	tokens, err := d.store.Load(ctx)
	if err != nil {
		return apperror.New(apperror.CodeDenylistLoad, apperror.WithCause(err))
	}

	d.mu.Lock()
	for _, t := range tokens {
		d.insertLocked(t)
	}
	n := len(d.order)
	d.mu.Unlock()

	d.logger.Info(ctx, "denylist loaded", "entries", n)
	return nil
}

// Contains reports whether token is denylisted.
func (d *Denylist) Contains(token common.Address) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.set[token]
	return ok
}

// Add inserts token. Repeated adds are no-ops. It reports whether the token
// was new; a store failure is returned but the token stays denylisted.
func (d *Denylist) Add(ctx context.Context, token common.Address) (bool, error) {
	d.mu.Lock()
	added := d.insertLocked(token)
	d.mu.Unlock()

	if !added {
		return false, nil
	}

	d.logger.Info(ctx, "token denylisted", "token", token.Hex())

	if d.store != nil {
		if err := d.store.Append(ctx, token); err != nil {
			return true, apperror.New(apperror.CodeDenylistPersist,
				apperror.WithCause(err),
				apperror.WithContext(token.Hex()))
		}
	}
	return true, nil
}

// List returns the entries in insertion order.
func (d *Denylist) List() []common.Address {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]common.Address, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of entries.
func (d *Denylist) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

func (d *Denylist) insertLocked(token common.Address) bool {
	if _, ok := d.set[token]; ok {
		return false
	}
	d.set[token] = struct{}{}
	d.order = append(d.order, token)
	return true
}
