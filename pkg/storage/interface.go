// Package storage declares the persistence contracts of the decision service:
// the audit trail, the job outbox and the transaction handles around them.
// pkg/storage/postgres is the only backend.
//
//go:generate mockgen -package mockstorage -source=interface.go -destination=mock/mockstorage.go *
package storage

import (
	"context"
	"errors"

	"github.com/riverqueue/river"
)

var (
	// ErrAlreadyInTx is returned by Begin on a handle that is already transactional.
	ErrAlreadyInTx = errors.New("storage: already in a transaction")
	// ErrNotInTx is returned by Commit and Rollback outside a transaction.
	ErrNotInTx = errors.New("storage: not in a transaction")
)

// JobStorage enqueues background jobs. On a transactional handle the job
// becomes visible only when the transaction commits. The returned bool is
// false when a unique job with the same arguments already exists.
type JobStorage interface {
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}

// AllStorage is every capability available on both plain and transactional handles.
type AllStorage interface {
	AuditStorage
	JobStorage
}

// TxStorage is a handle bound to one open transaction. It must not be used
// after Commit or Rollback.
type TxStorage interface {
	AllStorage

	Commit() error
	Rollback() error
}

// Storage is the long-lived handle owned by the process.
type Storage interface {
	AllStorage

	// Close releases the connection pool.
	Close() error

	// Begin opens a transaction.
	Begin(ctx context.Context) (TxStorage, error)
	// WithTx runs cb inside a transaction, committing when cb returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, cb func(storage AllStorage) error) error
}
