package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-vfs/pkg/simplevfs"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements simplevfs.Store using PostgreSQL.
//
// All records live in one append-only table; a flush batch is a single
// multi-row INSERT, which Postgres applies atomically. Equal timestamps are
// tie-broken by insertion order (seq).
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL attribute store
func New(db DBTX) simplevfs.Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL attribute store with a connection pool
func NewWithPool(pool *pgxpool.Pool) simplevfs.Store {
	return &Store{db: pool}
}

// DDL is the schema required by the store.
const DDL = `
CREATE TABLE IF NOT EXISTS vfs_attribute (
    seq   BIGINT GENERATED ALWAYS AS IDENTITY,
    urn   TEXT        NOT NULL,
    name  TEXT        NOT NULL,
    ts    TIMESTAMPTZ NOT NULL,
    value BYTEA       NOT NULL,
    PRIMARY KEY (urn, name, ts, seq)
);
CREATE INDEX IF NOT EXISTS vfs_attribute_urn_idx ON vfs_attribute (urn);
`

// EnsureSchema creates the attribute table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, DDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// storeErr wraps backend failures so callers can match ErrStoreUnavailable.
func storeErr(urn simplevfs.URN, op string, err error) error {
	return &simplevfs.StoreError{
		URN: urn,
		Op:  op,
		Err: fmt.Errorf("%w: %v", simplevfs.ErrStoreUnavailable, err),
	}
}

func (s *Store) WriteBatch(ctx context.Context, urn simplevfs.URN, ts time.Time, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	// One multi-row INSERT keeps the batch atomic without an explicit
	// transaction.
	var sb strings.Builder
	sb.WriteString("INSERT INTO vfs_attribute (urn, name, ts, value) VALUES ")
	args := make([]interface{}, 0, 2+2*len(names))
	args = append(args, string(urn), ts)
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($1, $%d, $2, $%d)", len(args)+1, len(args)+2)
		args = append(args, name, values[name])
	}

	if _, err := s.db.Exec(ctx, sb.String(), args...); err != nil {
		return storeErr(urn, "write_batch", err)
	}
	return nil
}

func (s *Store) ReadLatest(ctx context.Context, urn simplevfs.URN, name string, asOf time.Time) (*simplevfs.AttributeRecord, error) {
	query := `
        SELECT name, ts, value FROM vfs_attribute
        WHERE urn = $1 AND name = $2 AND ts <= $3
        ORDER BY ts DESC, seq DESC LIMIT 1`

	rec := simplevfs.AttributeRecord{URN: urn}
	err := s.db.QueryRow(ctx, query, string(urn), name, asOf).Scan(&rec.Name, &rec.Timestamp, &rec.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplevfs.ErrAttributeNotSet
		}
		return nil, storeErr(urn, "read_latest", err)
	}
	return &rec, nil
}

func (s *Store) ReadAll(ctx context.Context, urn simplevfs.URN, name string) ([]simplevfs.AttributeRecord, error) {
	query := `
        SELECT name, ts, value FROM vfs_attribute
        WHERE urn = $1 AND name = $2
        ORDER BY ts ASC, seq ASC`

	rows, err := s.db.Query(ctx, query, string(urn), name)
	if err != nil {
		return nil, storeErr(urn, "read_all", err)
	}
	defer rows.Close()

	var result []simplevfs.AttributeRecord
	for rows.Next() {
		rec := simplevfs.AttributeRecord{URN: urn}
		if err := rows.Scan(&rec.Name, &rec.Timestamp, &rec.Value); err != nil {
			return nil, storeErr(urn, "read_all", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(urn, "read_all", err)
	}
	return result, nil
}

func (s *Store) ReadSnapshot(ctx context.Context, urn simplevfs.URN, asOf time.Time) (map[string]simplevfs.AttributeRecord, error) {
	query := `
        SELECT DISTINCT ON (name) name, ts, value FROM vfs_attribute
        WHERE urn = $1 AND ts <= $2
        ORDER BY name, ts DESC, seq DESC`

	rows, err := s.db.Query(ctx, query, string(urn), asOf)
	if err != nil {
		return nil, storeErr(urn, "read_snapshot", err)
	}
	defer rows.Close()

	snapshot := make(map[string]simplevfs.AttributeRecord)
	for rows.Next() {
		rec := simplevfs.AttributeRecord{URN: urn}
		if err := rows.Scan(&rec.Name, &rec.Timestamp, &rec.Value); err != nil {
			return nil, storeErr(urn, "read_snapshot", err)
		}
		snapshot[rec.Name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(urn, "read_snapshot", err)
	}
	return snapshot, nil
}

func (s *Store) Exists(ctx context.Context, urn simplevfs.URN) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM vfs_attribute WHERE urn = $1)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, string(urn)).Scan(&exists); err != nil {
		return false, storeErr(urn, "exists", err)
	}
	return exists, nil
}
