package pipeline

import (
	"time"

	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/google/uuid"
)

// diagnostics is the run's metadata bag. It is mutated only by the single
// consumer goroutine and read after the run finishes.
type diagnostics struct {
	runID       string
	report      string
	start       time.Time
	recordCount int64
	batches     int
	warnings    []domain.Warning
	memWarned   bool
}

func newDiagnostics(report string) *diagnostics {
	return &diagnostics{
		runID:  uuid.NewString(),
		report: report,
		start:  time.Now(),
	}
}

func (d *diagnostics) warn(w domain.Warning) {
	d.warnings = append(d.warnings, w)
}

func (d *diagnostics) snapshot() domain.Diagnostics {
	return domain.Diagnostics{
		RunID:       d.runID,
		Report:      d.report,
		RecordCount: d.recordCount,
		Batches:     d.batches,
		Elapsed:     time.Since(d.start),
		Warnings:    append([]domain.Warning(nil), d.warnings...),
	}
}

// estimateNodeSize is a rough per-node heap cost used for the soft memory
// limit. Exact accounting is not worth the walk; the limit only exists to
// surface runaway buffering.
func estimateNodeSize(n domain.ContentNode) int64 {
	size := int64(96)
	for _, el := range n.Elements {
		size += 64
		if s, ok := el.Value.(string); ok {
			size += int64(len(s))
		}
		for k, v := range el.Style {
			size += int64(len(k) + len(v))
		}
	}
	return size
}
