package repository

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockDB returns a sqlx handle backed by sqlmock. Every expectation must
// be consumed by the end of the test.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

// sqlText matches a literal SQL fragment. sqlmock collapses whitespace on both
// sides before matching.
func sqlText(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "track_inventory", "allow_backorder", "status", "total_stock"})
}

func variantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "product_id", "sku", "color", "stock", "is_available", "position"})
}
