// Package memory provides in-process repository implementations used in dev mode and tests.
package memory

import (
	"context"
	"sync"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// Store holds all rows behind one lock so cross-entity reads stay consistent.
type Store struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	users         map[string]domain.User
	tickets       map[string]domain.Ticket
	history       []domain.SLAHistory
	notifications []domain.Notification
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]domain.User),
		tickets: make(map[string]domain.Ticket),
	}
}

type txKey struct{}

// Transactor serializes transactions on one store. Nested calls join the outer transaction.
// Writes made before fn fails are not rolled back.
type Transactor struct {
	store *Store
}

// NewTransactor builds a transactor over store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// WithinTx runs fn while holding the store's transaction lock.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == t.store {
		return fn(ctx)
	}
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, t.store))
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
