package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/expr"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/store/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *domain.Report {
	return &domain.Report{
		Name: "orders",
		Bands: []domain.Band{
			{Name: "row", Type: domain.BandDetail, Elements: []domain.Element{
				{Type: domain.ElementField, Source: "amount"},
			}},
			{Name: "grand", Type: domain.BandSummary, Elements: []domain.Element{
				{Type: domain.ElementAggregate, Variable: "total"},
			}},
		},
		Variables: []domain.Variable{
			{Name: "total", Type: domain.VariableSum, Expr: expr.Field{Path: "amount"}, ResetOn: domain.ResetReport},
		},
	}
}

func TestService_RenderInlineRecords(t *testing.T) {
	svc := NewService(Options{})

	res, err := svc.Render(context.Background(), testReport(), SourceRef{
		Records: []map[string]any{{"amount": 1.0}, {"amount": 2.0}},
	}, pipeline.Config{})
	require.NoError(t, err)

	require.Len(t, res.Document, 3)
	assert.Equal(t, 3.0, res.Document[2].Elements[0].Value)
}

func TestService_RenderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"amount": 4}
{"amount": 6}
`), 0o600))

	svc := NewService(Options{})
	res, err := svc.Render(context.Background(), testReport(), SourceRef{Path: path}, pipeline.Config{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Document[2].Elements[0].Value)
}

func TestService_RenderStream(t *testing.T) {
	svc := NewService(Options{Defaults: pipeline.Config{ChunkSize: 1}})

	stream, err := svc.RenderStream(context.Background(), testReport(), SourceRef{
		Records: []map[string]any{{"amount": 1.0}, {"amount": 2.0}},
	}, pipeline.Config{})
	require.NoError(t, err)

	var batches int
	for range stream.Batches() {
		batches++
	}
	diag, err := stream.Wait()
	require.NoError(t, err)
	// Configured default chunk size applies when the call does not override.
	assert.Equal(t, 2, batches)
	assert.Equal(t, int64(2), diag.RecordCount)
}

func TestService_SourceResolution(t *testing.T) {
	svc := NewService(Options{})

	t.Run("no source", func(t *testing.T) {
		_, err := svc.Render(context.Background(), testReport(), SourceRef{}, pipeline.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no record source")
	})

	t.Run("profile without registry", func(t *testing.T) {
		_, err := svc.Render(context.Background(), testReport(),
			SourceRef{Profile: "sales", Query: "SELECT 1"}, pipeline.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no source registry")
	})

	t.Run("profile without query", func(t *testing.T) {
		svc := NewService(Options{Registry: stubRegistry{}})
		_, err := svc.Render(context.Background(), testReport(),
			SourceRef{Profile: "sales"}, pipeline.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "needs a query")
	})
}

type stubRegistry struct{}

func (stubRegistry) GetProfiles(context.Context) ([]domain.SourceProfile, error) {
	return nil, nil
}

func (stubRegistry) OpenSource(context.Context, string, string, ...any) (records.Source, error) {
	return nil, nil
}
