// Package groups detects group-key changes across consecutive records and
// tracks per-level group metadata. One Processor exists per report run and
// is driven by the single pipeline consumer.
package groups

import (
	"errors"
	"fmt"

	"github.com/accountex-org/ash-reports-sub007/pkg/expr"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
)

// BreakEvent marks a group boundary. Entering=false closes the group at
// Level (footer side), Entering=true opens it (header side).
type BreakEvent struct {
	Level    int
	Entering bool
}

// Metadata accumulates between the enter and exit events of a level.
type Metadata struct {
	Name        string
	Level       int
	Key         any
	KeyText     string
	RecordCount int64
	First       store.Record
	Last        store.Record
}

// Processor computes break events for a stream of records. Records must
// arrive sorted by group keys, outer level first; out-of-order input is not
// detected and produces incorrect boundaries.
type Processor struct {
	defs []domain.Group // index 0 = level 1
	meta []*Metadata
}

// NewProcessor assumes the report passed definition validation (contiguous
// levels starting at 1).
func NewProcessor(report *domain.Report) *Processor {
	defs := make([]domain.Group, len(report.Groups))
	meta := make([]*Metadata, len(report.Groups))
	for _, g := range report.Groups {
		defs[g.Level-1] = g
		meta[g.Level-1] = &Metadata{Name: g.Name, Level: g.Level}
	}
	return &Processor{defs: defs, meta: meta}
}

// Levels returns the number of nesting levels.
func (p *Processor) Levels() int {
	return len(p.defs)
}

// Metadata returns the live metadata for a level (1-based).
func (p *Processor) Metadata(level int) *Metadata {
	return p.meta[level-1]
}

// Start emits the synthetic enter-all event list for the first record and
// initialises every level's metadata. No footers are produced.
func (p *Processor) Start(first store.Record) ([]BreakEvent, error) {
	events := make([]BreakEvent, 0, len(p.defs))
	for i := range p.defs {
		if err := p.enter(i, first); err != nil {
			return nil, err
		}
		events = append(events, BreakEvent{Level: i + 1, Entering: true})
	}
	return events, nil
}

// Advance compares group keys of two adjacent records. The first level whose
// key differs breaks, together with every deeper level: group scopes nest
// lexicographically, so an outer change invalidates all inner groups even
// when their keys happen to coincide. Footer events come first, innermost
// level first; header events follow, outermost first.
func (p *Processor) Advance(prev, next store.Record) ([]BreakEvent, error) {
	broken := 0 // first breaking level, 0 = none
	for i, def := range p.defs {
		prevKey, err := p.key(def, prev)
		if err != nil {
			return nil, err
		}
		nextKey, err := p.key(def, next)
		if err != nil {
			return nil, err
		}
		if prevKey != nextKey {
			broken = i + 1
			break
		}
	}
	if broken == 0 {
		return nil, nil
	}

	events := make([]BreakEvent, 0, 2*(len(p.defs)-broken+1))
	for level := len(p.defs); level >= broken; level-- {
		events = append(events, BreakEvent{Level: level, Entering: false})
	}
	for level := broken; level <= len(p.defs); level++ {
		if err := p.enter(level-1, next); err != nil {
			return nil, err
		}
		events = append(events, BreakEvent{Level: level, Entering: true})
	}
	return events, nil
}

// Finish emits the synthetic exit-all event list at stream end, innermost
// first, so the outermost footer and the report summary can account for the
// final partial group.
func (p *Processor) Finish() []BreakEvent {
	events := make([]BreakEvent, 0, len(p.defs))
	for level := len(p.defs); level >= 1; level-- {
		events = append(events, BreakEvent{Level: level, Entering: false})
	}
	return events
}

// Observe accumulates the record into every level's metadata. Called once
// per record, after enter events have been applied.
func (p *Processor) Observe(rec store.Record) {
	for _, m := range p.meta {
		m.RecordCount++
		if m.First == nil {
			m.First = rec
		}
		m.Last = rec
	}
}

func (p *Processor) enter(idx int, rec store.Record) error {
	def := p.defs[idx]
	keyText, err := p.key(def, rec)
	if err != nil {
		return err
	}
	key, _ := expr.Eval(def.Key, expr.Env{Record: rec})
	p.meta[idx] = &Metadata{
		Name:    def.Name,
		Level:   def.Level,
		Key:     key,
		KeyText: keyText,
	}
	return nil
}

// key canonicalises the group key value to its text form for comparison.
// A missing key field collapses to the empty key: records without the field
// form their own contiguous run instead of corrupting break detection.
func (p *Processor) key(def domain.Group, rec store.Record) (string, error) {
	v, err := expr.Eval(def.Key, expr.Env{Record: rec})
	if err != nil {
		var fe *expr.FieldError
		if errors.As(err, &fe) {
			return "", nil
		}
		return "", fmt.Errorf("group %q (level %d): %w", def.Name, def.Level, err)
	}
	return fmt.Sprintf("%v", v), nil
}
