package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional update observed different state than expected.
	ErrConflict = errors.New("conflicting state")
)

// Transactor runs fn atomically. Repositories called with the ctx passed to fn join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
