package domain

import "time"

// Warning is a recoverable problem recorded during a run. Warnings are never
// silently dropped; every one is retrievable from the final diagnostics.
type Warning struct {
	RecordIndex int64 // -1 when not tied to a record
	Band        BandType
	Ref         string // element source, variable name or expression text
	Reason      string
}

// Diagnostics summarises a finished (or failed) report run.
type Diagnostics struct {
	RunID       string
	Report      string
	RecordCount int64
	Batches     int
	Elapsed     time.Duration
	Warnings    []Warning
}
