package domain

// ContentNode is the resolved output of one emitted band, ready for a
// format-specific encoder.
type ContentNode struct {
	BandType   BandType
	BandName   string
	GroupLevel int // 0 unless the band is group scoped
	Depth      int // nesting depth within the band tree, 0 for top-level bands
	Elements   []ResolvedElement
}

// ResolvedElement is one element bound to its data.
type ResolvedElement struct {
	Type     ElementType
	Value    any
	Position Position
	Style    map[string]string
}

// ErrorValue is the placeholder substituted for an element that failed to
// resolve under the continue_on_error strategy.
type ErrorValue struct {
	Ref    string // the field path, variable name or expression that failed
	Reason string
}

func (e ErrorValue) String() string {
	return "!ERROR[" + e.Ref + ": " + e.Reason + "]"
}

// Batch is a bounded slice of content nodes emitted by the streaming
// pipeline. Batches are strictly ordered; Seq starts at 0.
type Batch struct {
	Seq     int
	Records int // driving records covered by this batch
	Nodes   []ContentNode
}
