// Package sql adapts a database/sql result set to the engine's record
// source. The driver stays pluggable; callers own the query and its sort
// order (ORDER BY must match the report's group keys, outer level first).
package sql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
	"github.com/rs/zerolog"
)

// Source streams query rows as records, one column per record key.
type Source struct {
	rows *sql.Rows
	cols []string
	cur  store.Record
	err  error
}

// NewSource runs the query and returns a source over its rows.
func NewSource(ctx context.Context, db *sql.DB, query string, args ...any) (*Source, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("record query failed: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		closeRows(ctx, rows)
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	return &Source{rows: rows, cols: cols}, nil
}

func (s *Source) Next() bool {
	if s.err != nil || !s.rows.Next() {
		return false
	}

	values := make([]any, len(s.cols))
	ptrs := make([]any, len(s.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.err = err
		return false
	}

	rec := make(store.Record, len(s.cols))
	for i, col := range s.cols {
		rec[col] = normalize(values[i])
	}
	s.cur = rec
	return true
}

func (s *Source) Record() store.Record {
	return s.cur
}

func (s *Source) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Err()
}

func (s *Source) Close() error {
	return s.rows.Close()
}

// normalize maps driver byte slices to strings so field comparisons and
// concatenation behave the same across drivers.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to close record query rows")
	}
}
