package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/bops-digital/bops/pkg/composables"
)

// inTx runs fn inside one transaction scoped to the tenant. Guard checks and
// the mutations they protect always share this transaction, so a transition
// either fully commits (status change + audit rows) or leaves nothing behind.
func inTx[T any](ctx context.Context, tenantID uuid.UUID, fn func(txCtx context.Context) (T, error)) (T, error) {
	var zero T

	// Joining an ambient transaction defers commit and rollback to its owner.
	if composables.InTx(ctx) {
		return fn(composables.WithTenantID(ctx, tenantID))
	}

	pool, err := composables.UsePool(ctx)
	if err != nil {
		return zero, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return zero, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx := composables.WithTx(ctx, tx)
	txCtx = composables.WithTenantID(txCtx, tenantID)
	if err := composables.ApplyTenantRLS(txCtx, tx); err != nil {
		return zero, err
	}

	out, err := fn(txCtx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, err
	}
	return out, nil
}
