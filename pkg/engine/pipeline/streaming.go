package pipeline

import (
	"context"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/bands"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
	"github.com/accountex-org/ash-reports-sub007/pkg/store/records"
	"golang.org/x/sync/errgroup"
)

// stream drives the producer/consumer pair for one run. The producer reads
// the source into a bounded queue; the single consumer owns all mutable run
// state (variables, groups, diagnostics) and turns records into content
// nodes, emitting a batch per ChunkSize records. Cancellation is observed
// at chunk boundaries only, so an in-flight record always completes.
func (p *Pipeline) stream(ctx context.Context, src records.Source, emit func(domain.Batch) error) error {
	recCh := make(chan store.Record, p.cfg.ChunkSize*2)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(recCh)
		var index int64 = -1
		for src.Next() {
			index++
			select {
			case recCh <- src.Record():
			case <-gctx.Done():
				// Shutdown requested: stop reading, let the consumer
				// report the cancellation.
				return nil
			}
		}
		if err := src.Err(); err != nil {
			return &SourceError{RecordIndex: index, Err: err}
		}
		return nil
	})

	g.Go(func() error {
		return p.consume(gctx, recCh, emit)
	})

	return g.Wait()
}

// batchBuffer accumulates content nodes until a chunk boundary.
type batchBuffer struct {
	nodes   []domain.ContentNode
	records int
	seq     int
	approx  int64
	total   int
}

func (p *Pipeline) consume(ctx context.Context, in <-chan store.Record, emit func(domain.Batch) error) error {
	var (
		buf     batchBuffer
		prev    store.Record
		index   int64 = -1
		started bool
	)

	push := func(nodes []domain.ContentNode, err error) error {
		if err != nil {
			return err
		}
		for _, n := range nodes {
			buf.approx += estimateNodeSize(n)
		}
		buf.nodes = append(buf.nodes, nodes...)
		buf.total += len(nodes)
		if p.cfg.MaxMemoryBytes > 0 && buf.approx > p.cfg.MaxMemoryBytes && !p.diag.memWarned {
			p.diag.memWarned = true
			p.diag.warn(domain.Warning{
				RecordIndex: index,
				Reason:      "in-flight content buffer exceeded the configured soft memory limit",
			})
		}
		return nil
	}

	flush := func() error {
		if len(buf.nodes) == 0 && buf.records == 0 {
			return nil
		}
		batch := domain.Batch{Seq: buf.seq, Records: buf.records, Nodes: buf.nodes}
		buf.seq++
		buf.nodes = nil
		buf.records = 0
		buf.approx = 0
		p.diag.batches++
		return emit(batch)
	}

	if err := ctx.Err(); err != nil {
		return &CancelledError{State: StateDataProcessing, Err: err}
	}

	// Plain receive: the producer always closes the channel, including on
	// cancellation, so termination comes from the close rather than from a
	// racy select against ctx.Done. Cancellation is only ever honored at
	// the flush boundaries below, never mid-record.
	for rec := range in {
		index++

		rc := p.bandContext(rec, index)

		if !started {
			started = true
			if err := p.openDocument(rc, push); err != nil {
				return err
			}
		} else {
			if err := p.advanceBoundaries(rc, prev, index, push); err != nil {
				return err
			}
		}

		if p.cfg.PageSignal != nil && index > 0 && p.cfg.PageSignal(index, buf.total) {
			if err := p.pageBreak(rc, prev, index, push); err != nil {
				return err
			}
		}

		// Two-phase boundary ordering: footers above rendered with the old
		// values, scope resets applied, and only now does the new record
		// accumulate.
		p.vars.Reset(domain.ResetDetail, 0)
		p.groups.Observe(rec)
		if err := p.updateVariables(rec, index); err != nil {
			return err
		}

		if err := push(p.walker.Emit(rc, domain.BandDetail)); err != nil {
			return err
		}

		prev = rec
		buf.records++
		p.diag.recordCount++

		if buf.records >= p.cfg.ChunkSize {
			if err := flush(); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return &CancelledError{State: StateDataProcessing, Err: err}
			}
		}
	}

	// End of stream is a boundary too: a cancelled run must not emit the
	// closing bands as if it had drained the source.
	if err := ctx.Err(); err != nil {
		return &CancelledError{State: StateDataProcessing, Err: err}
	}

	if err := p.closeDocument(prev, index, started, push); err != nil {
		return err
	}
	return flush()
}

// openDocument emits the synthetic start-of-stream bands for the first
// record: title, page/column headers, all group headers outermost first,
// then the detail header of the innermost group.
func (p *Pipeline) openDocument(rc *bands.Context, push func([]domain.ContentNode, error) error) error {
	for _, t := range []domain.BandType{domain.BandTitle, domain.BandPageHeader, domain.BandColumnHeader} {
		if err := push(p.walker.Emit(rc, t)); err != nil {
			return err
		}
	}

	events, err := p.groups.Start(rc.Record)
	if err != nil {
		return &RecordError{RecordIndex: rc.RecordIndex, Err: err}
	}
	for _, ev := range events {
		if err := push(p.walker.EmitGroup(rc, domain.BandGroupHeader, ev.Level)); err != nil {
			return err
		}
	}

	return push(p.walker.Emit(rc, domain.BandDetailHeader))
}

// advanceBoundaries handles group breaks between prev and the current
// record: detail footer and group footers render against the closing
// group's last record with pre-reset variable values, then group-scoped
// resets fire per broken level, then the new group's headers and detail
// header render against the incoming record.
func (p *Pipeline) advanceBoundaries(rc *bands.Context, prev store.Record, index int64, push func([]domain.ContentNode, error) error) error {
	events, err := p.groups.Advance(prev, rc.Record)
	if err != nil {
		return &RecordError{RecordIndex: index, Err: err}
	}
	if len(events) == 0 {
		return nil
	}

	fc := p.bandContext(prev, index-1)
	if err := push(p.walker.Emit(fc, domain.BandDetailFooter)); err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Entering {
			continue
		}
		if err := push(p.walker.EmitGroup(fc, domain.BandGroupFooter, ev.Level)); err != nil {
			return err
		}
	}
	for _, ev := range events {
		if !ev.Entering {
			continue
		}
		p.vars.Reset(domain.ResetGroup, ev.Level)
	}
	for _, ev := range events {
		if !ev.Entering {
			continue
		}
		if err := push(p.walker.EmitGroup(rc, domain.BandGroupHeader, ev.Level)); err != nil {
			return err
		}
	}
	return push(p.walker.Emit(rc, domain.BandDetailHeader))
}

// pageBreak closes the current page against prev and opens a new one for
// the incoming record.
func (p *Pipeline) pageBreak(rc *bands.Context, prev store.Record, index int64, push func([]domain.ContentNode, error) error) error {
	fc := p.bandContext(prev, index-1)
	if err := push(p.walker.Emit(fc, domain.BandColumnFooter)); err != nil {
		return err
	}
	if err := push(p.walker.Emit(fc, domain.BandPageFooter)); err != nil {
		return err
	}
	p.vars.Reset(domain.ResetPage, 0)
	if err := push(p.walker.Emit(rc, domain.BandPageHeader)); err != nil {
		return err
	}
	return push(p.walker.Emit(rc, domain.BandColumnHeader))
}

// closeDocument emits the synthetic end-of-stream bands. An empty stream
// produces title and summary only.
func (p *Pipeline) closeDocument(prev store.Record, index int64, started bool, push func([]domain.ContentNode, error) error) error {
	if !started {
		rc := p.bandContext(nil, -1)
		if err := push(p.walker.Emit(rc, domain.BandTitle)); err != nil {
			return err
		}
		return push(p.walker.Emit(rc, domain.BandSummary))
	}

	fc := p.bandContext(prev, index)
	if err := push(p.walker.Emit(fc, domain.BandDetailFooter)); err != nil {
		return err
	}
	for _, ev := range p.groups.Finish() {
		if err := push(p.walker.EmitGroup(fc, domain.BandGroupFooter, ev.Level)); err != nil {
			return err
		}
	}
	if err := push(p.walker.Emit(fc, domain.BandColumnFooter)); err != nil {
		return err
	}
	if err := push(p.walker.Emit(fc, domain.BandPageFooter)); err != nil {
		return err
	}
	// Report-scoped variables are never reset, so the summary sees the
	// full-stream totals.
	return push(p.walker.Emit(fc, domain.BandSummary))
}

// updateVariables folds the record into every variable, honoring the error
// strategy for per-variable evaluation failures.
func (p *Pipeline) updateVariables(rec store.Record, index int64) error {
	for _, name := range p.vars.Names() {
		if _, err := p.vars.Update(name, rec); err != nil {
			if p.cfg.Strategy == domain.FailFast {
				return &RecordError{RecordIndex: index, Err: err}
			}
			p.diag.warn(domain.Warning{
				RecordIndex: index,
				Ref:         name,
				Reason:      err.Error(),
			})
		}
	}
	return nil
}

func (p *Pipeline) bandContext(rec store.Record, index int64) *bands.Context {
	return &bands.Context{
		Record:      rec,
		RecordIndex: index,
		Vars:        p.vars,
		Groups:      p.groups,
		Warn:        p.diag.warn,
	}
}
