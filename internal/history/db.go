// Package history persists scan results to a sqlite database so finding and
// score trends can be queried across runs, mirroring the teacher's
// repository package's connection/migration/query-builder layering.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/aalsanie/shamash-sub001/pkg/shamashlog"
)

var (
	connOnce     sync.Once
	connInstance *DB
	connErr      error
)

// DB wraps the sqlx handle this package's stores read and write through.
type DB struct {
	Conn *sqlx.DB
}

// Connect opens (and, on first call, migrates) the sqlite database at path.
// Subsequent calls return the same connection; sqlite does not benefit from
// more than one open connection since it serializes writers internally.
func Connect(path string) (*DB, error) {
	connOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryHooks{}))
		handle, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
		if err != nil {
			connErr = err
			return
		}
		handle.SetMaxOpenConns(1)
		connInstance = &DB{Conn: handle}
		connErr = migrateUp(path)
	})
	return connInstance, connErr
}

// queryHooks satisfies sqlhooks.Hooks, logging query text and elapsed time.
type queryHooks struct{}

type beginKey struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	shamashlog.Debugf("sql query %s %v", query, args)
	return context.WithValue(ctx, beginKey{}, time.Now()), nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(beginKey{}).(time.Time); ok {
		shamashlog.Debugf("took %s", time.Since(begin))
	}
	return ctx, nil
}
