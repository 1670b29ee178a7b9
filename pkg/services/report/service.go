// Package report is the delivery-facing facade over the engine: it resolves
// record sources, applies configured defaults and runs the pipeline.
package report

import (
	"context"
	"fmt"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/engine/variables"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/config"
	"github.com/accountex-org/ash-reports-sub007/pkg/store/jsonl"
	"github.com/accountex-org/ash-reports-sub007/pkg/store/records"
)

// SourceRef names where a run's records come from. Exactly one of the
// fields below must be set.
type SourceRef struct {
	// Records are inline, already sorted by the report's group keys.
	Records []map[string]any
	// Path points at a JSON Lines file.
	Path string
	// Profile plus Query select rows from a configured connection.
	Profile string
	Query   string
}

type Service interface {
	Validate(ctx context.Context, def *domain.Report) error
	Render(ctx context.Context, def *domain.Report, ref SourceRef, cfg pipeline.Config) (*pipeline.Result, error)
	RenderStream(ctx context.Context, def *domain.Report, ref SourceRef, cfg pipeline.Config) (*pipeline.Stream, error)
}

type reportService struct {
	registry    config.Registry
	defaults    pipeline.Config
	combinators map[string]variables.Combinator
}

// Options configure the facade. Registry may be nil when profile sources
// are not needed (inline and file sources still work).
type Options struct {
	Registry    config.Registry
	Defaults    pipeline.Config
	Combinators map[string]variables.Combinator
}

func NewService(opts Options) Service {
	return &reportService{
		registry:    opts.Registry,
		defaults:    opts.Defaults,
		combinators: opts.Combinators,
	}
}

func (s *reportService) Validate(_ context.Context, def *domain.Report) error {
	return pipeline.Validate(def, s.combinators)
}

func (s *reportService) Render(ctx context.Context, def *domain.Report, ref SourceRef, cfg pipeline.Config) (*pipeline.Result, error) {
	src, err := s.openSource(ctx, ref)
	if err != nil {
		return nil, err
	}
	return pipeline.RenderAll(ctx, def, src, s.merge(cfg))
}

func (s *reportService) RenderStream(ctx context.Context, def *domain.Report, ref SourceRef, cfg pipeline.Config) (*pipeline.Stream, error) {
	src, err := s.openSource(ctx, ref)
	if err != nil {
		return nil, err
	}
	stream, err := pipeline.RenderStream(ctx, def, src, s.merge(cfg))
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return stream, nil
}

// merge layers per-call options over the configured defaults. Zero values
// defer to the default.
func (s *reportService) merge(cfg pipeline.Config) pipeline.Config {
	out := s.defaults
	if cfg.ChunkSize > 0 {
		out.ChunkSize = cfg.ChunkSize
	}
	if cfg.Strategy != "" {
		out.Strategy = cfg.Strategy
	}
	if cfg.MaxMemoryBytes > 0 {
		out.MaxMemoryBytes = cfg.MaxMemoryBytes
	}
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	if cfg.PageSignal != nil {
		out.PageSignal = cfg.PageSignal
	}
	if cfg.Layout != nil {
		out.Layout = cfg.Layout
	}
	if out.Combinators == nil {
		out.Combinators = s.combinators
	}
	return out
}

func (s *reportService) openSource(ctx context.Context, ref SourceRef) (records.Source, error) {
	switch {
	case ref.Records != nil:
		recs := make([]map[string]any, len(ref.Records))
		copy(recs, ref.Records)
		return records.NewSliceSource(recs), nil
	case ref.Path != "":
		return jsonl.Open(ref.Path)
	case ref.Profile != "":
		if s.registry == nil {
			return nil, fmt.Errorf("no source registry configured; profile %q cannot be resolved", ref.Profile)
		}
		if ref.Query == "" {
			return nil, fmt.Errorf("profile source %q needs a query", ref.Profile)
		}
		return s.registry.OpenSource(ctx, ref.Profile, ref.Query)
	default:
		return nil, fmt.Errorf("no record source given: set records, path or profile")
	}
}
