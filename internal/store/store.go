// Package store persists the Case aggregate behind an opaque key-value
// contract with version-conditional writes, which is what the turn
// transaction's optimistic concurrency rides on. Backends are swappable.
package store

import (
	"context"
	"errors"

	"github.com/agenthands/sleuth/internal/core/model"
)

var (
	ErrNotFound = errors.New("case not found")
	// ErrVersionMismatch signals that the aggregate changed since it was
	// read; the caller retries its whole turn from the read step.
	ErrVersionMismatch = errors.New("case version mismatch")
)

type CaseStore interface {
	// Get returns a copy of the stored aggregate; mutations to it do not
	// leak back into the store.
	Get(ctx context.Context, id string) (*model.Case, error)
	// Put writes c only if the stored version equals expectedVersion.
	// expectedVersion 0 creates the case and fails if it already exists.
	Put(ctx context.Context, c *model.Case, expectedVersion uint64) error
	Close() error
}
