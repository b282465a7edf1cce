package localstore

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Postgres SQLSTATEs raised when the server has no room for the write.
var pgQuotaCodes = map[string]struct{}{
	"53100": {}, // disk_full
	"53200": {}, // out_of_memory
	"54000": {}, // program_limit_exceeded
}

// isDatabaseFull reports whether a SQL backend rejected a write for lack of
// space, which the store treats like an exhausted quota.
func isDatabaseFull(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := pgQuotaCodes[pgErr.Code]
		return ok
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrFull
	}
	return false
}
