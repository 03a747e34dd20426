package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterNextUpsertsAndReturnsSeq(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCounterRepository(db)

	mock.ExpectQuery(sqlText(`INSERT INTO counters (key, seq, updated_at) VALUES ($1, 1, NOW())
		ON CONFLICT (key) DO UPDATE SET seq = counters.seq + 1`)).
		WithArgs("order-20260101").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))

	seq, err := repo.Next(context.Background(), nil, "order-20260101")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestCounterNextPropagatesErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCounterRepository(db)

	mock.ExpectQuery(sqlText(`INSERT INTO counters`)).WillReturnError(errors.New("conn reset"))

	seq, err := repo.Next(context.Background(), nil, "order-20260101")
	assert.EqualError(t, err, "conn reset")
	assert.Zero(t, seq)
}

func TestCounterPrune(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCounterRepository(db)
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(sqlText(`DELETE FROM counters WHERE updated_at < $1`)).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.Prune(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
