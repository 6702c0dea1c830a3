package testkit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agencyhq/warroom/pkg/composables"
)

var errNoDatabase = errors.New("testkit: no database behind this context")

// stubTx satisfies the composables query surface so InTx joins it instead of
// demanding a pool. In-memory repositories never touch it.
type stubTx struct{}

func (stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errNoDatabase
}

func (stubTx) QueryRow(context.Context, string, ...any) pgx.Row {
	return stubRow{}
}

func (stubTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoDatabase
}

type stubRow struct{}

func (stubRow) Scan(...any) error { return errNoDatabase }

// Context returns a context services can run transactions against without a
// live database.
func Context() context.Context {
	return composables.WithTx(context.Background(), stubTx{})
}
