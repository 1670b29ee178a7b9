// Package pipeline orchestrates a report run: definition validation, layout
// hand-off, the streaming record walk, assembly and finalization. One
// Pipeline serves exactly one execution; the immutable report definition
// may be shared across any number of concurrent pipelines.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/bands"
	"github.com/accountex-org/ash-reports-sub007/pkg/engine/groups"
	"github.com/accountex-org/ash-reports-sub007/pkg/engine/variables"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/store/records"
	"github.com/rs/zerolog"
)

// Pipeline owns the run state of a single report execution. All mutation
// happens on the consumer side of the stream; callers may poll State from
// other goroutines.
type Pipeline struct {
	report *domain.Report
	cfg    Config

	state atomic.Value // State

	walker *bands.Walker
	vars   *variables.StateMachine
	groups *groups.Processor
	diag   *diagnostics
	ran    bool
}

// Result is the outcome of a run. On failure Batches still holds everything
// emitted before the error; Document is only set by RenderAll on success.
type Result struct {
	Document    []domain.ContentNode
	Batches     []domain.Batch
	Diagnostics domain.Diagnostics
}

func New(report *domain.Report, cfg Config) *Pipeline {
	p := &Pipeline{report: report, cfg: cfg.withDefaults()}
	p.state.Store(StateNew)
	return p
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return p.state.Load().(State)
}

func (p *Pipeline) setState(s State) {
	p.state.Store(s)
}

// prepare validates the definition, builds the run state and invokes the
// layout collaborator. Covers the Initialized and LayoutCalculated states.
func (p *Pipeline) prepare(ctx context.Context) error {
	if p.ran {
		return fmt.Errorf("pipeline already ran; create a new one per execution")
	}
	p.ran = true

	if err := validateReport(p.report, p.cfg.Combinators); err != nil {
		p.setState(StateFailed)
		return err
	}
	sm, err := variables.NewStateMachine(p.report, p.cfg.Combinators)
	if err != nil {
		p.setState(StateFailed)
		return &DefinitionError{Report: p.report.Name, Problems: []string{err.Error()}}
	}
	p.vars = sm
	p.groups = groups.NewProcessor(p.report)
	p.walker = bands.NewWalker(p.report, p.cfg.Strategy)
	p.diag = newDiagnostics(p.report.Name)
	p.setState(StateInitialized)

	if err := p.cfg.Layout.Calculate(ctx, p.report); err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("layout calculation failed: %w", err)
	}
	p.setState(StateLayoutCalculated)
	return nil
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, p.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// RenderAll runs the full lifecycle and returns the assembled document.
// Recoverable element problems surface as diagnostics warnings, never as an
// error, except under fail_fast.
func (p *Pipeline) RenderAll(ctx context.Context, src records.Source) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if err := p.prepare(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	p.setState(StateDataProcessing)
	var batches []domain.Batch
	err := p.stream(ctx, src, func(b domain.Batch) error {
		batches = append(batches, b)
		return nil
	})
	if cerr := src.Close(); cerr != nil {
		logger.Warn().Err(cerr).Str("report", p.report.Name).Msg("failed to close record source")
	}
	if err != nil {
		p.setState(StateFailed)
		return &Result{Batches: batches, Diagnostics: p.diag.snapshot()}, err
	}

	p.setState(StateAssembling)
	doc := assemble(batches)

	p.setState(StateFinalized)
	res := &Result{Document: doc, Batches: batches, Diagnostics: p.diag.snapshot()}
	logger.Debug().
		Str("report", p.report.Name).
		Str("run_id", res.Diagnostics.RunID).
		Int64("records", res.Diagnostics.RecordCount).
		Int("batches", res.Diagnostics.Batches).
		Int("warnings", len(res.Diagnostics.Warnings)).
		Dur("elapsed", res.Diagnostics.Elapsed).
		Msg("report rendered")
	return res, nil
}

// Stream is the hand-off for RenderStream: a bounded channel of batches and
// a Wait that reports the final diagnostics and error once the channel is
// drained or the run stops.
type Stream struct {
	batches chan domain.Batch
	done    chan struct{}
	p       *Pipeline
	err     error
}

// Batches yields batches in emission order. The channel closes when the
// run finishes or fails; batches received before a failure remain valid.
func (s *Stream) Batches() <-chan domain.Batch {
	return s.batches
}

// Wait blocks until the run finishes and returns the final diagnostics.
func (s *Stream) Wait() (domain.Diagnostics, error) {
	<-s.done
	return s.p.diag.snapshot(), s.err
}

// RenderStream runs the lifecycle with lazy, backpressured output: the
// caller consumes batches at its own pace and the bounded hand-off queue
// throttles the engine. Definition and layout errors return synchronously.
func (p *Pipeline) RenderStream(ctx context.Context, src records.Source) (*Stream, error) {
	logger := zerolog.Ctx(ctx)

	if err := p.prepare(ctx); err != nil {
		return nil, err
	}
	runCtx, cancel := p.withTimeout(ctx)

	s := &Stream{
		batches: make(chan domain.Batch, streamBuffer),
		done:    make(chan struct{}),
		p:       p,
	}
	go func() {
		defer cancel()
		defer close(s.done)
		defer close(s.batches)

		p.setState(StateDataProcessing)
		err := p.stream(runCtx, src, func(b domain.Batch) error {
			select {
			case s.batches <- b:
				return nil
			case <-runCtx.Done():
				return &CancelledError{State: StateAssembling, Err: runCtx.Err()}
			}
		})
		if cerr := src.Close(); cerr != nil {
			logger.Warn().Err(cerr).Str("report", p.report.Name).Msg("failed to close record source")
		}
		if err != nil {
			s.err = err
			p.setState(StateFailed)
			return
		}
		p.setState(StateFinalized)
	}()
	return s, nil
}

// RenderAll is the batch entry point: one call, full document model.
func RenderAll(ctx context.Context, report *domain.Report, src records.Source, cfg Config) (*Result, error) {
	return New(report, cfg).RenderAll(ctx, src)
}

// RenderStream is the streaming entry point.
func RenderStream(ctx context.Context, report *domain.Report, src records.Source, cfg Config) (*Stream, error) {
	return New(report, cfg).RenderStream(ctx, src)
}

// assemble concatenates batches in emission order. Order is the correctness
// contract of the whole engine; nothing here may reorder.
func assemble(batches []domain.Batch) []domain.ContentNode {
	total := 0
	for _, b := range batches {
		total += len(b.Nodes)
	}
	doc := make([]domain.ContentNode, 0, total)
	for _, b := range batches {
		doc = append(doc, b.Nodes...)
	}
	return doc
}

// Validate checks a definition without running it. Exposed for the
// validate surfaces (CLI, HTTP).
func Validate(report *domain.Report, combinators map[string]variables.Combinator) error {
	return validateReport(report, combinators)
}
