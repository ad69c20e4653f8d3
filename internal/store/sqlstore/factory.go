package sqlstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/basepair/resourcereg/internal/store"
)

// ConnString assembles a driver DSN for target (a "database.table" path
// entry, e.g. "pygr.resources") from environment variables, honoring the
// same override pattern as beads' SQLiteConnString: a per-dialect user/
// password/host/port env var with sane defaults when unset.
func ConnString(dialect Dialect, target string) (dsn, table string, err error) {
	db, tbl, ok := strings.Cut(target, ".")
	if !ok {
		return "", "", fmt.Errorf("sqlstore: target %q must be database.table", target)
	}

	switch dialect {
	case DialectMySQL:
		user := envOr("PYGR_MYSQL_USER", "pygr")
		pass := os.Getenv("PYGR_MYSQL_PASSWORD")
		host := envOr("PYGR_MYSQL_HOST", "127.0.0.1")
		port := envOr("PYGR_MYSQL_PORT", "3306")
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, pass, host, port, db)
	case DialectPostgres:
		user := envOr("PYGR_POSTGRES_USER", "pygr")
		pass := os.Getenv("PYGR_POSTGRES_PASSWORD")
		host := envOr("PYGR_POSTGRES_HOST", "127.0.0.1")
		port := envOr("PYGR_POSTGRES_PORT", "5432")
		sslmode := envOr("PYGR_POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	default:
		return "", "", fmt.Errorf("sqlstore: unknown dialect %q", dialect)
	}
	return dsn, tbl, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// NewBackendFactory returns a store.BackendFactory for dialect, to be
// registered under the "mysql" or "postgres" scheme.
func NewBackendFactory(dialect Dialect) store.BackendFactory {
	return func(ctx context.Context, entry store.Entry, opts store.Options) (store.Store, error) {
		dsn, table, err := ConnString(dialect, entry.Target)
		if err != nil {
			return nil, err
		}
		s, err := Open(ctx, dialect, dsn, table, entry.DefaultLayer, opts.ReadOnly)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open entry %q: %w", entry.Raw, err)
		}
		return s, nil
	}
}
