// Package sqlite stores read models as JSON documents in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/plaenen/eventcore/pkg/codec"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/readmodel"
)

const schema = `
CREATE TABLE IF NOT EXISTS read_model_records (
	model TEXT NOT NULL,
	key   TEXT NOT NULL,
	doc   TEXT NOT NULL,
	PRIMARY KEY (model, key)
)`

// dbConfig holds configuration for Open.
type dbConfig struct {
	dsn          string
	maxOpenConns int
}

// Option configures the database opened by Open.
type Option func(*dbConfig)

// WithDSN sets the data source name (file path or ":memory:" for in-memory).
func WithDSN(dsn string) Option {
	return func(c *dbConfig) {
		c.dsn = dsn
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
// Ignored for ":memory:" databases.
func WithMaxOpenConns(n int) Option {
	return func(c *dbConfig) {
		c.maxOpenConns = n
	}
}

// Open opens a SQLite database for read models. The default is an in-memory database.
func Open(opts ...Option) (*sql.DB, error) {
	cfg := dbConfig{dsn: ":memory:", maxOpenConns: 4}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" gets its own isolated database.
	if cfg.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// ReadModel is a readmodel.ReadModel persisted in a SQLite table. Several read
// models can share one database. Numbers are returned as float64.
type ReadModel struct {
	db   *sql.DB
	name string
}

// New creates a read model backed by db. db must have been opened with Open
// or contain the read_model_records table.
func New(db *sql.DB, name string) *ReadModel {
	return &ReadModel{db: db, name: name}
}

var _ readmodel.ReadModel = (*ReadModel)(nil)

func (r *ReadModel) Name() string { return r.name }

func (r *ReadModel) Get(ctx context.Context, key string) (readmodel.Record, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM read_model_records WHERE model = ? AND key = ?`, r.name, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, r.name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", r.name, key, err)
	}
	return decode(doc)
}

func (r *ReadModel) Put(ctx context.Context, key string, record readmodel.Record) error {
	doc, err := codec.JSON.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", r.name, key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO read_model_records (model, key, doc) VALUES (?, ?, ?)
		ON CONFLICT (model, key) DO UPDATE SET doc = excluded.doc`,
		r.name, key, string(doc))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", r.name, key, err)
	}
	return nil
}

func (r *ReadModel) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM read_model_records WHERE model = ? AND key = ?`, r.name, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", r.name, key, err)
	}
	return nil
}

// Query pushes scalar filters down to json_extract and re-checks every
// candidate with readmodel.Matches.
func (r *ReadModel) Query(ctx context.Context, filter map[string]any) ([]readmodel.Record, error) {
	var (
		sb   strings.Builder
		args = []any{r.name}
	)
	sb.WriteString(`SELECT doc FROM read_model_records WHERE model = ?`)
	for _, field := range readmodel.SortedKeys(filter) {
		value, ok := sqlScalar(filter[field])
		if !ok {
			continue
		}
		sb.WriteString(` AND json_extract(doc, ?) = ?`)
		args = append(args, jsonPath(field), value)
	}
	sb.WriteString(` ORDER BY key`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.name, err)
	}
	defer rows.Close()

	out := make([]readmodel.Record, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("query %s: %w", r.name, err)
		}
		rec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		if readmodel.Matches(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

func (r *ReadModel) All(ctx context.Context) ([]readmodel.Record, error) {
	return r.Query(ctx, nil)
}

func (r *ReadModel) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM read_model_records WHERE model = ?`, r.name); err != nil {
		return fmt.Errorf("clear %s: %w", r.name, err)
	}
	return nil
}

func decode(doc string) (readmodel.Record, error) {
	var rec readmodel.Record
	if err := codec.JSON.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// sqlScalar converts a filter value to something json_extract can be compared
// with. JSON booleans extract as 0/1.
func sqlScalar(v any) (any, bool) {
	switch x := v.(type) {
	case string, int, int8, int16, int32, int64, uint8, uint16, uint32, float32, float64:
		return x, true
	case bool:
		if x {
			return int64(1), true
		}
		return int64(0), true
	default:
		return nil, false
	}
}
