package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// CounterRepository allocates named monotonic sequences.
type CounterRepository struct {
	db *sqlx.DB
}

// NewCounterRepository creates a new CounterRepository.
func NewCounterRepository(db *sqlx.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Next increments the counter at key and returns the new value in one
// statement. The first call for a key creates it with seq 1. Pass a *sqlx.Tx
// to tie the allocation to an enclosing transaction.
func (r *CounterRepository) Next(ctx context.Context, q sqlx.QueryerContext, key string) (int64, error) {
	if q == nil {
		q = r.db
	}
	const query = `
		INSERT INTO counters (key, seq, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (key) DO UPDATE SET
			seq = counters.seq + 1,
			updated_at = NOW()
		RETURNING seq`

	var seq int64
	if err := sqlx.GetContext(ctx, q, &seq, query, key); err != nil {
		return 0, err
	}
	return seq, nil
}

// Prune deletes counters not touched since before.
func (r *CounterRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM counters WHERE updated_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
