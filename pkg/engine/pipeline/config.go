package pipeline

import (
	"context"
	"time"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/variables"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
)

// DefaultChunkSize controls the batching granularity and the memory/latency
// tradeoff when the caller does not set one.
const DefaultChunkSize = 1000

// streamBuffer bounds the batch hand-off queue between the consumer stage
// and the caller, so output can be processed lazily without buffering the
// whole document.
const streamBuffer = 2

// PageSignalFunc lets the caller drive page boundaries, which are a
// rendering-time concern this engine does not compute. It is consulted
// between records; returning true closes the current page (column_footer,
// page_footer, page-scoped resets) and opens a new one.
type PageSignalFunc func(recordsProcessed int64, nodesEmitted int) bool

// LayoutEngine resolves element positional hints into absolute coordinates.
// It is an external collaborator; the pipeline only guarantees it runs
// before data processing starts.
type LayoutEngine interface {
	Calculate(ctx context.Context, report *domain.Report) error
}

type noopLayout struct{}

// Calculate treats all positions as already absolute.
func (noopLayout) Calculate(context.Context, *domain.Report) error { return nil }

// Config carries the recognized engine options.
type Config struct {
	// ChunkSize is the number of driving records per emitted batch.
	ChunkSize int
	// Strategy controls per-element error propagation.
	Strategy domain.ErrorStrategy
	// MaxMemoryBytes is a soft limit on the in-flight batch buffer; when
	// the estimate crosses it a warning is recorded, the run continues.
	MaxMemoryBytes int64
	// Timeout, when positive, cancels the run at the deadline.
	Timeout time.Duration
	// PageSignal is optional; nil means a single page bracketing the
	// whole record stream.
	PageSignal PageSignalFunc
	// Combinators are the caller-supplied combining functions for custom
	// variables, keyed by the name variables reference.
	Combinators map[string]variables.Combinator
	// Layout defaults to a pass-through when nil.
	Layout LayoutEngine
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Strategy == "" {
		c.Strategy = domain.FailFast
	}
	if c.Layout == nil {
		c.Layout = noopLayout{}
	}
	return c
}
