package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/bands"
	"github.com/accountex-org/ash-reports-sub007/pkg/engine/variables"
	"github.com/accountex-org/ash-reports-sub007/pkg/expr"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
	"github.com/accountex-org/ash-reports-sub007/pkg/store/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// salesReport groups records by region with a per-group subtotal and a
// grand total.
func salesReport() *domain.Report {
	return &domain.Report{
		Name: "sales",
		Bands: []domain.Band{
			{Name: "head", Type: domain.BandTitle, Elements: []domain.Element{
				{Type: domain.ElementLabel, Text: "Sales by Region"},
			}},
			{Name: "region_head", Type: domain.BandGroupHeader, GroupLevel: 1, Elements: []domain.Element{
				{Type: domain.ElementField, Source: "region"},
			}},
			{Name: "row", Type: domain.BandDetail, Elements: []domain.Element{
				{Type: domain.ElementField, Source: "amount"},
			}},
			{Name: "region_foot", Type: domain.BandGroupFooter, GroupLevel: 1, Elements: []domain.Element{
				{Type: domain.ElementAggregate, Variable: "region_total"},
			}},
			{Name: "grand", Type: domain.BandSummary, Elements: []domain.Element{
				{Type: domain.ElementAggregate, Variable: "grand_total"},
			}},
		},
		Variables: []domain.Variable{
			{Name: "region_total", Type: domain.VariableSum, Expr: expr.Field{Path: "amount"}, ResetOn: domain.ResetGroup, ResetGroup: 1},
			{Name: "grand_total", Type: domain.VariableSum, Expr: expr.Field{Path: "amount"}, ResetOn: domain.ResetReport},
		},
		Groups: []domain.Group{
			{Name: "by_region", Level: 1, Key: expr.Field{Path: "region"}},
		},
	}
}

func salesRecords() []store.Record {
	return []store.Record{
		{"region": "west", "amount": 10.0},
		{"region": "west", "amount": 20.0},
		{"region": "east", "amount": 5.0},
	}
}

func bandSequence(nodes []domain.ContentNode) []domain.BandType {
	out := make([]domain.BandType, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.BandType)
	}
	return out
}

func TestRenderAll_GroupedReport(t *testing.T) {
	res, err := RenderAll(context.Background(), salesReport(), records.NewSliceSource(salesRecords()), Config{})
	require.NoError(t, err)

	assert.Equal(t, []domain.BandType{
		domain.BandTitle,
		domain.BandGroupHeader,
		domain.BandDetail,
		domain.BandDetail,
		domain.BandGroupFooter,
		domain.BandGroupHeader,
		domain.BandDetail,
		domain.BandGroupFooter,
		domain.BandSummary,
	}, bandSequence(res.Document))

	// Group headers carry the entering record's key.
	assert.Equal(t, "west", res.Document[1].Elements[0].Value)
	assert.Equal(t, "east", res.Document[5].Elements[0].Value)

	// Footers see the subtotal before the group reset fires.
	assert.Equal(t, 30.0, res.Document[4].Elements[0].Value)
	assert.Equal(t, 5.0, res.Document[7].Elements[0].Value)

	// The summary sees the full-stream total.
	assert.Equal(t, 35.0, res.Document[8].Elements[0].Value)

	assert.Equal(t, int64(3), res.Diagnostics.RecordCount)
	assert.Empty(t, res.Diagnostics.Warnings)
	assert.NotEmpty(t, res.Diagnostics.RunID)
}

func TestRenderAll_OuterBreakForcesInnerBreak(t *testing.T) {
	report := &domain.Report{
		Name: "nested",
		Bands: []domain.Band{
			{Name: "row", Type: domain.BandDetail},
			{Name: "h1", Type: domain.BandGroupHeader, GroupLevel: 1},
			{Name: "h2", Type: domain.BandGroupHeader, GroupLevel: 2},
			{Name: "f1", Type: domain.BandGroupFooter, GroupLevel: 1},
			{Name: "f2", Type: domain.BandGroupFooter, GroupLevel: 2},
		},
		Groups: []domain.Group{
			{Name: "by_region", Level: 1, Key: expr.Field{Path: "region"}},
			{Name: "by_customer", Level: 2, Key: expr.Field{Path: "customer"}},
		},
	}
	recs := []store.Record{
		{"region": "west", "customer": "acme"},
		// Same customer key, different region: both groups must break.
		{"region": "east", "customer": "acme"},
	}

	res, err := RenderAll(context.Background(), report, records.NewSliceSource(recs), Config{})
	require.NoError(t, err)

	assert.Equal(t, []domain.BandType{
		domain.BandGroupHeader, // level 1
		domain.BandGroupHeader, // level 2
		domain.BandDetail,
		domain.BandGroupFooter, // level 2, innermost first
		domain.BandGroupFooter, // level 1
		domain.BandGroupHeader, // level 1
		domain.BandGroupHeader, // level 2
		domain.BandDetail,
		domain.BandGroupFooter, // level 2
		domain.BandGroupFooter, // level 1
	}, bandSequence(res.Document))

	// Footer order within a break: inner closes before outer.
	assert.Equal(t, 2, res.Document[3].GroupLevel)
	assert.Equal(t, 1, res.Document[4].GroupLevel)
}

func TestRenderAll_EmptyStream(t *testing.T) {
	res, err := RenderAll(context.Background(), salesReport(), records.NewSliceSource(nil), Config{})
	require.NoError(t, err)

	assert.Equal(t, []domain.BandType{domain.BandTitle, domain.BandSummary}, bandSequence(res.Document))
	// No detail, group or page bands; the grand total is the sum identity.
	assert.Equal(t, 0.0, res.Document[1].Elements[0].Value)
	assert.Equal(t, int64(0), res.Diagnostics.RecordCount)
}

func detailOnlyReport() *domain.Report {
	return &domain.Report{
		Name: "rows",
		Bands: []domain.Band{
			{Name: "row", Type: domain.BandDetail, Elements: []domain.Element{
				{Type: domain.ElementField, Source: "n"},
			}},
			{Name: "grand", Type: domain.BandSummary, Elements: []domain.Element{
				{Type: domain.ElementAggregate, Variable: "total"},
			}},
		},
		Variables: []domain.Variable{
			{Name: "total", Type: domain.VariableSum, Expr: expr.Field{Path: "n"}, ResetOn: domain.ResetReport},
		},
	}
}

func numberedRecords(n int) []store.Record {
	recs := make([]store.Record, n)
	for i := range recs {
		recs[i] = store.Record{"n": float64(i + 1)}
	}
	return recs
}

func TestRenderAll_ChunkedBatching(t *testing.T) {
	res, err := RenderAll(context.Background(), detailOnlyReport(),
		records.NewSliceSource(numberedRecords(5)), Config{ChunkSize: 2})
	require.NoError(t, err)

	require.Len(t, res.Batches, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{res.Batches[0].Seq, res.Batches[1].Seq, res.Batches[2].Seq})
	assert.Equal(t, 2, res.Batches[0].Records)
	assert.Equal(t, 2, res.Batches[1].Records)
	// End-of-stream bands ride in the final batch rather than a fourth one.
	assert.Equal(t, 1, res.Batches[2].Records)
	assert.Equal(t, []domain.BandType{domain.BandDetail, domain.BandSummary}, bandSequence(res.Batches[2].Nodes))

	assert.Equal(t, 3, res.Diagnostics.Batches)
	assert.Equal(t, 15.0, res.Batches[2].Nodes[1].Elements[0].Value)
}

func TestRenderAll_DocumentMatchesBatches(t *testing.T) {
	res, err := RenderAll(context.Background(), salesReport(),
		records.NewSliceSource(salesRecords()), Config{ChunkSize: 1})
	require.NoError(t, err)

	var concatenated []domain.ContentNode
	for _, b := range res.Batches {
		concatenated = append(concatenated, b.Nodes...)
	}
	assert.Equal(t, res.Document, concatenated)
}

func TestRenderAll_IsDeterministic(t *testing.T) {
	first, err := RenderAll(context.Background(), salesReport(), records.NewSliceSource(salesRecords()), Config{})
	require.NoError(t, err)
	second, err := RenderAll(context.Background(), salesReport(), records.NewSliceSource(salesRecords()), Config{})
	require.NoError(t, err)

	assert.Equal(t, first.Document, second.Document)
}

func brokenFieldReport() *domain.Report {
	return &domain.Report{
		Name: "rows",
		Bands: []domain.Band{
			{Name: "row", Type: domain.BandDetail, Elements: []domain.Element{
				{Type: domain.ElementField, Source: "missing"},
				{Type: domain.ElementField, Source: "n"},
			}},
		},
	}
}

func TestRenderAll_ErrorStrategies(t *testing.T) {
	recs := numberedRecords(2)

	t.Run("fail_fast", func(t *testing.T) {
		p := New(brokenFieldReport(), Config{Strategy: domain.FailFast})
		res, err := p.RenderAll(context.Background(), records.NewSliceSource(recs))

		var elErr *bands.ElementError
		require.ErrorAs(t, err, &elErr)
		assert.Equal(t, "missing", elErr.Ref)
		assert.Equal(t, StateFailed, p.State())
		// Partial output up to the failure point is still returned.
		require.NotNil(t, res)
	})

	t.Run("continue_on_error", func(t *testing.T) {
		res, err := RenderAll(context.Background(), brokenFieldReport(),
			records.NewSliceSource(recs), Config{Strategy: domain.ContinueOnError})
		require.NoError(t, err)

		require.Len(t, res.Document, 2)
		for i, node := range res.Document {
			require.Len(t, node.Elements, 2)
			ev, ok := node.Elements[0].Value.(domain.ErrorValue)
			require.True(t, ok)
			assert.Equal(t, "missing", ev.Ref)
			assert.Equal(t, float64(i+1), node.Elements[1].Value)
		}
		require.Len(t, res.Diagnostics.Warnings, 2)
		assert.Equal(t, int64(0), res.Diagnostics.Warnings[0].RecordIndex)
		assert.Equal(t, int64(1), res.Diagnostics.Warnings[1].RecordIndex)
	})

	t.Run("skip_invalid", func(t *testing.T) {
		res, err := RenderAll(context.Background(), brokenFieldReport(),
			records.NewSliceSource(recs), Config{Strategy: domain.SkipInvalid})
		require.NoError(t, err)

		for _, node := range res.Document {
			require.Len(t, node.Elements, 1)
		}
		assert.Len(t, res.Diagnostics.Warnings, 2)
	})
}

func TestRenderAll_SourceError(t *testing.T) {
	src := &failingSource{failAfter: 2}
	res, err := RenderAll(context.Background(), detailOnlyReport(), src, Config{ChunkSize: 1})

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	require.NotNil(t, res)
	// Batches emitted before the failure remain consumable.
	assert.NotEmpty(t, res.Batches)
	assert.True(t, src.closed)
}

type failingSource struct {
	failAfter int
	served    int
	closed    bool
}

func (s *failingSource) Next() bool {
	if s.served >= s.failAfter {
		return false
	}
	s.served++
	return true
}

func (s *failingSource) Record() store.Record {
	return store.Record{"n": float64(s.served)}
}

func (s *failingSource) Err() error { return errors.New("connection reset") }

func (s *failingSource) Close() error {
	s.closed = true
	return nil
}

// cancellingSource cancels the run context after serving a fixed number of
// records, then keeps serving so only the engine's own check can stop it.
type cancellingSource struct {
	cancel      context.CancelFunc
	cancelAfter int
	served      int
	total       int
}

func (s *cancellingSource) Next() bool {
	if s.served >= s.total {
		return false
	}
	s.served++
	if s.served == s.cancelAfter {
		s.cancel()
	}
	return true
}

func (s *cancellingSource) Record() store.Record {
	return store.Record{"n": float64(s.served)}
}

func (s *cancellingSource) Err() error   { return nil }
func (s *cancellingSource) Close() error { return nil }

func TestRenderAll_Cancellation(t *testing.T) {
	t.Run("pre-cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := New(detailOnlyReport(), Config{})
		_, err := p.RenderAll(ctx, records.NewSliceSource(numberedRecords(10)))

		var cErr *CancelledError
		require.ErrorAs(t, err, &cErr)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateFailed, p.State())
	})

	t.Run("cancelled mid-stream", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		src := &cancellingSource{cancel: cancel, cancelAfter: 3, total: 1000}

		res, err := RenderAll(ctx, detailOnlyReport(), src, Config{ChunkSize: 2})

		var cErr *CancelledError
		require.ErrorAs(t, err, &cErr)
		assert.ErrorIs(t, err, context.Canceled)
		// Cancellation is observed at a chunk boundary, so complete batches
		// emitted before the cancel survive.
		require.NotNil(t, res)
	})
}

func TestRenderStream(t *testing.T) {
	p := New(detailOnlyReport(), Config{ChunkSize: 2})
	stream, err := p.RenderStream(context.Background(), records.NewSliceSource(numberedRecords(5)))
	require.NoError(t, err)

	var batches []domain.Batch
	for b := range stream.Batches() {
		batches = append(batches, b)
	}
	diag, err := stream.Wait()
	require.NoError(t, err)

	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, i, b.Seq)
	}
	assert.Equal(t, int64(5), diag.RecordCount)
	assert.Equal(t, StateFinalized, p.State())
}

func TestRenderStream_DefinitionErrorIsSynchronous(t *testing.T) {
	report := &domain.Report{
		Name:  "bad",
		Bands: []domain.Band{{Name: "x", Type: "banner"}},
	}
	_, err := RenderStream(context.Background(), report, records.NewSliceSource(nil), Config{})

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
}

func TestPipeline_PageSignal(t *testing.T) {
	report := &domain.Report{
		Name: "paged",
		Bands: []domain.Band{
			{Name: "ph", Type: domain.BandPageHeader},
			{Name: "row", Type: domain.BandDetail},
			{Name: "pf", Type: domain.BandPageFooter, Elements: []domain.Element{
				{Type: domain.ElementAggregate, Variable: "page_rows"},
			}},
		},
		Variables: []domain.Variable{
			{Name: "page_rows", Type: domain.VariableCount, ResetOn: domain.ResetPage},
		},
	}
	cfg := Config{
		PageSignal: func(recordsProcessed int64, _ int) bool {
			return recordsProcessed%2 == 0
		},
	}

	res, err := RenderAll(context.Background(), report, records.NewSliceSource(numberedRecords(4)), cfg)
	require.NoError(t, err)

	assert.Equal(t, []domain.BandType{
		domain.BandPageHeader,
		domain.BandDetail,
		domain.BandDetail,
		domain.BandPageFooter,
		domain.BandPageHeader,
		domain.BandDetail,
		domain.BandDetail,
		domain.BandPageFooter,
	}, bandSequence(res.Document))

	// Each page footer reflects the rows of its own page: values read before
	// the page reset fires.
	assert.Equal(t, int64(2), res.Document[3].Elements[0].Value)
	assert.Equal(t, int64(2), res.Document[7].Elements[0].Value)
}

func TestPipeline_States(t *testing.T) {
	p := New(detailOnlyReport(), Config{})
	assert.Equal(t, StateNew, p.State())

	_, err := p.RenderAll(context.Background(), records.NewSliceSource(numberedRecords(1)))
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, p.State())

	// A pipeline runs once.
	_, err = p.RenderAll(context.Background(), records.NewSliceSource(nil))
	require.Error(t, err)
}

func TestValidateReport(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *domain.Report)
		problem string
	}{
		{
			name: "unknown band type",
			mutate: func(r *domain.Report) {
				r.Bands = append(r.Bands, domain.Band{Name: "x", Type: "banner"})
			},
			problem: "unknown type",
		},
		{
			name: "two titles",
			mutate: func(r *domain.Report) {
				r.Bands = append(r.Bands, domain.Band{Name: "t2", Type: domain.BandTitle})
			},
			problem: "at most one title",
		},
		{
			name: "group band out of range",
			mutate: func(r *domain.Report) {
				r.Bands = append(r.Bands, domain.Band{Name: "h9", Type: domain.BandGroupHeader, GroupLevel: 9})
			},
			problem: "group level 9",
		},
		{
			name: "non-contiguous group levels",
			mutate: func(r *domain.Report) {
				r.Groups = append(r.Groups, domain.Group{Name: "g3", Level: 3, Key: expr.Field{Path: "x"}})
			},
			problem: "contiguous",
		},
		{
			name: "group without key",
			mutate: func(r *domain.Report) {
				r.Groups[0].Key = nil
			},
			problem: "no key expression",
		},
		{
			name: "field element without source",
			mutate: func(r *domain.Report) {
				r.Bands[2].Elements = append(r.Bands[2].Elements, domain.Element{Type: domain.ElementField})
			},
			problem: "without source path",
		},
		{
			name: "variable references variable",
			mutate: func(r *domain.Report) {
				r.Variables[0].Expr = expr.Binary{
					Op:    expr.OpAdd,
					Left:  expr.Field{Path: "amount"},
					Right: expr.Var{Name: "grand_total"},
				}
			},
			problem: "record fields only",
		},
		{
			name: "unknown combinator",
			mutate: func(r *domain.Report) {
				r.Variables = append(r.Variables, domain.Variable{
					Name: "c", Type: domain.VariableCustom, Combinator: "nope", ResetOn: domain.ResetReport,
				})
			},
			problem: "unknown combinator",
		},
		{
			name: "group reset out of range",
			mutate: func(r *domain.Report) {
				r.Variables[0].ResetGroup = 5
			},
			problem: "defined levels are 1..1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := salesReport()
			tc.mutate(report)

			err := Validate(report, nil)
			var defErr *DefinitionError
			require.ErrorAs(t, err, &defErr)
			assert.Contains(t, defErr.Error(), tc.problem)
		})
	}
}

func TestValidateReport_UnknownAggregateVariableIsNotFatal(t *testing.T) {
	report := detailOnlyReport()
	report.Bands[1].Elements[0].Variable = "no_such_var"
	require.NoError(t, Validate(report, nil))

	// At render time the dangling reference degrades per the strategy.
	res, err := RenderAll(context.Background(), report,
		records.NewSliceSource(numberedRecords(1)), Config{Strategy: domain.ContinueOnError})
	require.NoError(t, err)
	summary := res.Document[len(res.Document)-1]
	_, isErrValue := summary.Elements[0].Value.(domain.ErrorValue)
	assert.True(t, isErrValue)
}

func TestPipeline_CustomCombinator(t *testing.T) {
	report := &domain.Report{
		Name: "names",
		Bands: []domain.Band{
			{Name: "row", Type: domain.BandDetail},
			{Name: "grand", Type: domain.BandSummary, Elements: []domain.Element{
				{Type: domain.ElementAggregate, Variable: "joined"},
			}},
		},
		Variables: []domain.Variable{
			{Name: "joined", Type: domain.VariableCustom, Expr: expr.Field{Path: "name"}, ResetOn: domain.ResetReport, Combinator: "join"},
		},
	}
	cfg := Config{
		Combinators: map[string]variables.Combinator{
			"join": func(current, contribution any) any {
				if current == nil {
					return contribution
				}
				return current.(string) + "," + contribution.(string)
			},
		},
	}

	recs := []store.Record{{"name": "a"}, {"name": "b"}, {"name": "c"}}
	res, err := RenderAll(context.Background(), report, records.NewSliceSource(recs), cfg)
	require.NoError(t, err)

	summary := res.Document[len(res.Document)-1]
	assert.Equal(t, "a,b,c", summary.Elements[0].Value)
}
