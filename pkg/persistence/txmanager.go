package persistence

import "context"

// TxManager runs fn inside a database transaction. Repositories called with
// txCtx join the transaction; nested calls reuse the outer one.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) (any, error)) (any, error)
}

// InTx runs fn through tm and returns its typed result.
func InTx[T any](ctx context.Context, tm TxManager, fn func(txCtx context.Context) (T, error)) (T, error) {
	res, err := tm.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return fn(txCtx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
