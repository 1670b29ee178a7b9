// Package records defines the record-source boundary of the engine: an
// ordered stream of rows, pre-sorted by the caller according to the
// report's group definitions.
package records

import "github.com/accountex-org/ash-reports-sub007/pkg/models/store"

// Source yields records in arrival order, rows-style. The engine consumes
// a source from a single goroutine and calls Close exactly once.
type Source interface {
	// Next advances to the next record, returning false at end of stream
	// or on error.
	Next() bool
	// Record returns the current record. Valid only after Next returned
	// true; the engine does not retain it across calls.
	Record() store.Record
	// Err returns the error that terminated iteration, if any.
	Err() error
	Close() error
}

// SliceSource serves an in-memory slice of records. Used by tests and by
// callers that already hold their data.
type SliceSource struct {
	recs []store.Record
	idx  int
}

func NewSliceSource(recs []store.Record) *SliceSource {
	return &SliceSource{recs: recs, idx: -1}
}

func (s *SliceSource) Next() bool {
	if s.idx+1 >= len(s.recs) {
		return false
	}
	s.idx++
	return true
}

func (s *SliceSource) Record() store.Record {
	return s.recs[s.idx]
}

func (s *SliceSource) Err() error { return nil }

func (s *SliceSource) Close() error { return nil }
