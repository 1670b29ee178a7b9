package pipeline

import (
	"fmt"
	"strings"
)

// DefinitionError is fatal: the report definition failed cross-reference
// validation and the pipeline never started.
type DefinitionError struct {
	Report   string
	Problems []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid report definition %q: %s", e.Report, strings.Join(e.Problems, "; "))
}

// SourceError is fatal: the record source failed mid-read. Batches emitted
// before the failure remain valid and consumable.
type SourceError struct {
	RecordIndex int64
	Err         error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("record source failed after record %d: %v", e.RecordIndex, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// RecordError is fatal under fail_fast: a record could not be processed
// (variable update or group key evaluation failure).
type RecordError struct {
	RecordIndex int64
	Err         error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.RecordIndex, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// CancelledError reports that the caller stopped the run, either explicitly
// or through the configured timeout. It unwraps to the context error so
// errors.Is(err, context.Canceled) and context.DeadlineExceeded both work.
type CancelledError struct {
	State State
	Err   error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("render cancelled during %s: %v", e.State, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
