package service

import (
	"context"

	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/repository"
)

// Tx is a store transaction that also collects what must happen only once the
// transaction has committed: publishing the activity entries written through it
// and recording metrics for the transitions it applied.
type Tx struct {
	repository.Store
	recorded []models.ActivityLog
	onCommit []func()
}

func (tx *Tx) afterCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

// atomically runs fn in one transaction. Entries recorded through tx are
// published only after a successful commit.
func atomically(ctx context.Context, store repository.Store, activity ActivityRecorder, fn func(tx *Tx) error) error {
	var committed *Tx
	err := store.Atomic(ctx, func(inner repository.Store) error {
		tx := &Tx{Store: inner}
		if err := fn(tx); err != nil {
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		return err
	}

	for _, hook := range committed.onCommit {
		hook()
	}
	if activity != nil && len(committed.recorded) > 0 {
		activity.Publish(ctx, committed.recorded...)
	}
	return nil
}
