package state

import (
	"context"
	"errors"
	"fmt"
)

// CreateAll creates every entry or none of them.
//
// Stores implementing Batcher do this atomically. For other stores the
// entries are created in order and, if one fails, the ones already created
// are deleted again. A reader may briefly observe a prefix of the batch on
// such stores, so callers order entries so that any prefix is harmless.
func CreateAll(ctx context.Context, store StateStore, entries []Entry) error {
	if b, ok := store.(Batcher); ok {
		return b.CreateBatch(ctx, entries)
	}

	for i, e := range entries {
		if _, err := store.Create(ctx, e.Key, e.Value); err != nil {
			if rbErr := rollback(store, entries[:i]); rbErr != nil {
				return errors.Join(err, rbErr)
			}
			return err
		}
	}
	return nil
}

// rollback deletes created entries in reverse order. It runs detached from
// the caller's context so a canceled request still cleans up.
func rollback(store StateStore, created []Entry) error {
	ctx := context.Background()
	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		if err := store.Delete(ctx, created[i].Key); err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", created[i].Key, err))
		}
	}
	return errors.Join(errs...)
}
