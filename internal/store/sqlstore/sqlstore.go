// Package sqlstore implements the SQL Store variant: one database/sql-backed
// implementation that serves both the "mysql:" and "postgres:" path schemes,
// switching only the dialect-specific DDL and placeholder syntax.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/types"
)

// Dialect distinguishes the two database/sql drivers this Store can speak
// through, each with its own placeholder syntax and upsert statement.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// Store is a database/sql-backed SQL Store. Target identifies the
// database.table pair resources are kept in, matching the "mysql:db.tbl" /
// "postgres:db.tbl" path-entry convention.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	table    string
	layer    string
	readOnly bool
}

// Open connects to dsn using the driver implied by dialect and ensures the
// resource, doc, schema, and meta tables exist.
func Open(ctx context.Context, dialect Dialect, dsn, table, layer string, readOnly bool) (*Store, error) {
	driverName := "mysql"
	if dialect == DialectPostgres {
		driverName = "pgx"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlstore: open %s: %v", types.ErrStoreIO, dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlstore: ping %s: %v", types.ErrStoreIO, dialect, err)
	}

	s := &Store{db: db, dialect: dialect, table: table, layer: layer, readOnly: readOnly}
	if !readOnly {
		if err := s.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) names() (resources, docs, schemaTbl, metaTbl string) {
	base := s.table
	return base + "_resources", base + "_docs", base + "_schema", base + "_meta"
}

func (s *Store) migrate(ctx context.Context) error {
	resources, docs, schemaTbl, metaTbl := s.names()

	var textType, blobType string
	switch s.dialect {
	case DialectPostgres:
		textType, blobType = "TEXT", "BYTEA"
	default:
		textType, blobType = "VARCHAR(767)", "LONGBLOB"
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id           %[5]s NOT NULL,
    location_key %[5]s NOT NULL DEFAULT '',
    payload      %[6]s NOT NULL,
    PRIMARY KEY (id, location_key)
);

CREATE TABLE IF NOT EXISTS %[2]s (
    id            %[5]s NOT NULL,
    location_key  %[5]s NOT NULL DEFAULT '',
    doc           TEXT NOT NULL DEFAULT '',
    created_by    %[5]s NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL,
    payload_size  INT NOT NULL DEFAULT 0,
    PRIMARY KEY (id, location_key)
);

CREATE TABLE IF NOT EXISTS %[3]s (
    id    %[5]s NOT NULL PRIMARY KEY,
    entry TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS %[4]s (
    k TEXT NOT NULL PRIMARY KEY,
    v TEXT NOT NULL
);
`, resources, docs, schemaTbl, metaTbl, textType, blobType)

	for _, stmt := range strings.Split(ddl, ";\n\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: sqlstore: migrate: %v", types.ErrStoreIO, err)
		}
	}

	if err := s.ensureVersion(ctx, metaTbl); err != nil {
		return err
	}
	return nil
}

func (s *Store) ensureVersion(ctx context.Context, metaTbl string) error {
	row := s.db.QueryRowContext(ctx, s.ph(fmt.Sprintf("SELECT v FROM %s WHERE k = ?", metaTbl)), types.VersionKey)
	var v string
	if err := row.Scan(&v); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: sqlstore: read version: %v", types.ErrStoreIO, err)
	}
	vb, _ := json.Marshal(types.CurrentVersion)
	_, err := s.db.ExecContext(ctx, s.upsertMeta(metaTbl), types.VersionKey, string(vb))
	if err != nil {
		return fmt.Errorf("%w: sqlstore: stamp version: %v", types.ErrStoreIO, err)
	}
	return nil
}

// ph rewrites "?" placeholders into "$1", "$2", ... for Postgres.
func (s *Store) ph(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) upsertMeta(metaTbl string) string {
	if s.dialect == DialectPostgres {
		return s.ph(fmt.Sprintf(
			"INSERT INTO %s (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v", metaTbl))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)", metaTbl)
}

func (s *Store) upsertResource(resources string) string {
	if s.dialect == DialectPostgres {
		return s.ph(fmt.Sprintf(
			"INSERT INTO %s (id, location_key, payload) VALUES (?, ?, ?) "+
				"ON CONFLICT (id, location_key) DO UPDATE SET payload = EXCLUDED.payload", resources))
	}
	return s.ph(fmt.Sprintf(
		"INSERT INTO %s (id, location_key, payload) VALUES (?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE payload = VALUES(payload)", resources))
}

func (s *Store) upsertDoc(docs string) string {
	if s.dialect == DialectPostgres {
		return s.ph(fmt.Sprintf(
			"INSERT INTO %s (id, location_key, doc, created_by, created_at, payload_size) VALUES (?, ?, ?, ?, ?, ?) "+
				"ON CONFLICT (id, location_key) DO UPDATE SET doc = EXCLUDED.doc, created_by = EXCLUDED.created_by, "+
				"created_at = EXCLUDED.created_at, payload_size = EXCLUDED.payload_size", docs))
	}
	return s.ph(fmt.Sprintf(
		"INSERT INTO %s (id, location_key, doc, created_by, created_at, payload_size) VALUES (?, ?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE doc = VALUES(doc), created_by = VALUES(created_by), "+
			"created_at = VALUES(created_at), payload_size = VALUES(payload_size)", docs))
}

// Get returns the first matching row for id ordered by location_key.
func (s *Store) Get(ctx context.Context, id string) (store.Record, bool, error) {
	resources, docs, _, _ := s.names()
	row := s.db.QueryRowContext(ctx, s.ph(fmt.Sprintf(
		"SELECT r.payload, d.doc, d.created_by, d.created_at, r.location_key "+
			"FROM %s r LEFT JOIN %s d ON r.id = d.id AND r.location_key = d.location_key "+
			"WHERE r.id = ? ORDER BY r.location_key LIMIT 1", resources, docs)), id)

	var rec store.Record
	var doc, createdBy, locKey sql.NullString
	var createdAt sql.NullTime
	if err := row.Scan(&rec.Payload, &doc, &createdBy, &createdAt, &locKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, false, nil
		}
		return store.Record{}, false, fmt.Errorf("%w: sqlstore get %s: %v", types.ErrStoreIO, id, err)
	}
	rec.Meta = types.Meta{
		Doc:         doc.String,
		CreatedBy:   createdBy.String,
		CreatedAt:   createdAt.Time,
		LocationKey: locKey.String,
		PayloadSize: len(rec.Payload),
	}
	return rec, true, nil
}

// Put upserts the (id, locationKey) row in a single transaction spanning
// both the resource and doc tables.
func (s *Store) Put(ctx context.Context, id string, payload []byte, m types.Meta) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	resources, docs, _, _ := s.names()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: sqlstore put %s: %v", types.ErrStoreIO, id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.upsertResource(resources), id, m.LocationKey, payload); err != nil {
		return fmt.Errorf("%w: sqlstore put %s: %v", types.ErrStoreIO, id, err)
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, s.upsertDoc(docs),
		id, m.LocationKey, m.Doc, m.CreatedBy, createdAt, len(payload)); err != nil {
		return fmt.Errorf("%w: sqlstore put %s: %v", types.ErrStoreIO, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: sqlstore put %s: %v", types.ErrStoreIO, id, err)
	}
	return nil
}

// Delete removes every row for id across both tables.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if s.readOnly {
		return false, types.ErrImmutableStore
	}
	resources, docs, _, _ := s.names()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: sqlstore delete %s: %v", types.ErrStoreIO, id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.ph(fmt.Sprintf("DELETE FROM %s WHERE id = ?", resources)), id)
	if err != nil {
		return false, fmt.Errorf("%w: sqlstore delete %s: %v", types.ErrStoreIO, id, err)
	}
	if _, err := tx.ExecContext(ctx, s.ph(fmt.Sprintf("DELETE FROM %s WHERE id = ?", docs)), id); err != nil {
		return false, fmt.Errorf("%w: sqlstore delete %s: %v", types.ErrStoreIO, id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: sqlstore delete %s: %v", types.ErrStoreIO, id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListPrefix lists distinct ids whose id column begins with prefix.
func (s *Store) ListPrefix(ctx context.Context, prefix string, withMeta bool) ([]string, []types.Meta, error) {
	resources, docs, _, _ := s.names()
	like := escapeLike(prefix) + "%"

	var rows *sql.Rows
	var err error
	if withMeta {
		rows, err = s.db.QueryContext(ctx, s.ph(fmt.Sprintf(
			"SELECT r.id, d.doc, d.created_by, d.created_at FROM %s r "+
				"LEFT JOIN %s d ON r.id = d.id AND r.location_key = d.location_key "+
				"WHERE r.id LIKE ? ESCAPE '\\' GROUP BY r.id, d.doc, d.created_by, d.created_at ORDER BY r.id",
			resources, docs)), like)
	} else {
		rows, err = s.db.QueryContext(ctx, s.ph(fmt.Sprintf(
			"SELECT DISTINCT id FROM %s WHERE id LIKE ? ESCAPE '\\' ORDER BY id", resources)), like)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sqlstore listprefix %s: %v", types.ErrStoreIO, prefix, err)
	}
	defer rows.Close()

	var ids []string
	var metas []types.Meta
	for rows.Next() {
		var id string
		if withMeta {
			var doc, createdBy sql.NullString
			var createdAt sql.NullTime
			if err := rows.Scan(&id, &doc, &createdBy, &createdAt); err != nil {
				return nil, nil, fmt.Errorf("%w: sqlstore listprefix scan: %v", types.ErrStoreIO, err)
			}
			metas = append(metas, types.Meta{Doc: doc.String, CreatedBy: createdBy.String, CreatedAt: createdAt.Time})
		} else if err := rows.Scan(&id); err != nil {
			return nil, nil, fmt.Errorf("%w: sqlstore listprefix scan: %v", types.ErrStoreIO, err)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, metas, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GetSchema reads and decodes the JSON entry blob for id.
func (s *Store) GetSchema(ctx context.Context, id string) (types.SchemaEntry, bool, error) {
	_, _, schemaTbl, _ := s.names()
	row := s.db.QueryRowContext(ctx, s.ph(fmt.Sprintf("SELECT entry FROM %s WHERE id = ?", schemaTbl)), id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: sqlstore getschema %s: %v", types.ErrStoreIO, id, err)
	}
	var entry types.SchemaEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, fmt.Errorf("sqlstore: decode schema for %s: %w", id, err)
	}
	return entry, true, nil
}

// PutSchema reads-modifies-writes id's schema entry in one transaction.
func (s *Store) PutSchema(ctx context.Context, id, attr string, descriptor types.RawDescriptor) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	_, _, schemaTbl, _ := s.names()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: sqlstore putschema %s: %v", types.ErrStoreIO, id, err)
	}
	defer tx.Rollback()

	entry := types.SchemaEntry{}
	row := tx.QueryRowContext(ctx, s.ph(fmt.Sprintf("SELECT entry FROM %s WHERE id = ?", schemaTbl)), id)
	var raw string
	switch err := row.Scan(&raw); {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return fmt.Errorf("sqlstore: decode schema for %s: %w", id, err)
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("%w: sqlstore putschema %s: %v", types.ErrStoreIO, id, err)
	}
	entry[attr] = descriptor

	nb, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("sqlstore: encode schema for %s: %w", id, err)
	}

	upsert := fmt.Sprintf("INSERT INTO %s (id, entry) VALUES (?, ?) ", schemaTbl)
	if s.dialect == DialectPostgres {
		upsert = s.ph(upsert + "ON CONFLICT (id) DO UPDATE SET entry = EXCLUDED.entry")
	} else {
		upsert = s.ph(upsert + "ON DUPLICATE KEY UPDATE entry = VALUES(entry)")
	}
	if _, err := tx.ExecContext(ctx, upsert, id, string(nb)); err != nil {
		return fmt.Errorf("%w: sqlstore putschema %s: %v", types.ErrStoreIO, id, err)
	}
	return tx.Commit()
}

// DelSchema removes a single attribute, deleting the row entirely once
// empty.
func (s *Store) DelSchema(ctx context.Context, id, attr string) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	_, _, schemaTbl, _ := s.names()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: sqlstore delschema %s: %v", types.ErrStoreIO, id, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, s.ph(fmt.Sprintf("SELECT entry FROM %s WHERE id = ?", schemaTbl)), id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("%w: sqlstore delschema %s: %v", types.ErrStoreIO, id, err)
	}
	entry := types.SchemaEntry{}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return fmt.Errorf("sqlstore: decode schema for %s: %w", id, err)
	}
	delete(entry, attr)

	if len(entry) == 0 {
		if _, err := tx.ExecContext(ctx, s.ph(fmt.Sprintf("DELETE FROM %s WHERE id = ?", schemaTbl)), id); err != nil {
			return fmt.Errorf("%w: sqlstore delschema %s: %v", types.ErrStoreIO, id, err)
		}
		return tx.Commit()
	}
	nb, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("sqlstore: encode schema for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, s.ph(fmt.Sprintf("UPDATE %s SET entry = ? WHERE id = ?", schemaTbl)), string(nb), id); err != nil {
		return fmt.Errorf("%w: sqlstore delschema %s: %v", types.ErrStoreIO, id, err)
	}
	return tx.Commit()
}

// RegisterServices bulk-upserts services under locationKey, one Put call
// per service within the caller's context.
func (s *Store) RegisterServices(ctx context.Context, locationKey string, services map[string]store.Record) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	for id, rec := range services {
		rec.Meta.LocationKey = locationKey
		if err := s.Put(ctx, id, rec.Payload, rec.Meta); err != nil {
			return err
		}
	}
	return nil
}

// Roots returns the distinct set of top-level id prefixes (the portion
// before the first ".") seen in the resources table.
func (s *Store) Roots(ctx context.Context) ([]string, error) {
	resources, _, _, _ := s.names()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT id FROM %s", resources))
	if err != nil {
		return nil, fmt.Errorf("%w: sqlstore roots: %v", types.ErrStoreIO, err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var roots []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: sqlstore roots scan: %v", types.ErrStoreIO, err)
		}
		root := types.Root(id)
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	sort.Strings(roots)
	return roots, rows.Err()
}

// LayerName returns the layer this Store would like to be auto-registered
// under ("MySQL" or "Postgres").
func (s *Store) LayerName() string { return s.layer }

// ReadOnly reports whether mutating calls on this Store always fail.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Version returns the version stamped into the meta table on creation.
func (s *Store) Version(ctx context.Context) (types.Version, error) {
	_, _, _, metaTbl := s.names()
	row := s.db.QueryRowContext(ctx, s.ph(fmt.Sprintf("SELECT v FROM %s WHERE k = ?", metaTbl)), types.VersionKey)
	var raw string
	if err := row.Scan(&raw); err != nil {
		return types.Version{}, fmt.Errorf("%w: sqlstore version: %v", types.ErrStoreIO, err)
	}
	var v types.Version
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return types.Version{}, fmt.Errorf("sqlstore: decode version: %w", err)
	}
	return v, nil
}

// Close closes the underlying *sql.DB connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
