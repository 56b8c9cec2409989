package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/artshare/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("find entitlement: %w", pgx.ErrNoRows)
	assert.True(t, pg.IsNotFoundError(wrapped))
	assert.False(t, pg.IsNotFoundError(nil))
	assert.False(t, pg.IsNotFoundError(errors.New("boom")))

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsForeignKeyViolationError(dup))

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, pg.IsForeignKeyViolationError(fk))
	assert.False(t, pg.IsDuplicateKeyError(nil))
}
