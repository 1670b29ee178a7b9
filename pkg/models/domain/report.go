package domain

import "github.com/accountex-org/ash-reports-sub007/pkg/expr"

// Report is the immutable, already-parsed report definition. It is safe to
// share read-only across concurrent executions.
type Report struct {
	Name       string
	Bands      []Band
	Variables  []Variable
	Groups     []Group // ordered by level, level 1 = outermost
	DataSource string  // opaque driving-data descriptor, not interpreted here
}

// BandType identifies a structural section of the report.
type BandType string

const (
	BandTitle        BandType = "title"
	BandPageHeader   BandType = "page_header"
	BandColumnHeader BandType = "column_header"
	BandGroupHeader  BandType = "group_header"
	BandDetailHeader BandType = "detail_header"
	BandDetail       BandType = "detail"
	BandDetailFooter BandType = "detail_footer"
	BandGroupFooter  BandType = "group_footer"
	BandColumnFooter BandType = "column_footer"
	BandPageFooter   BandType = "page_footer"
	BandSummary      BandType = "summary"
)

// Band is a named, typed node in the band tree. Child bands are walked
// depth-first and inherit the parent's record and group context.
type Band struct {
	Name       string
	Type       BandType
	GroupLevel int // required for group_header/group_footer
	Elements   []Element
	Children   []Band
}

// ElementType identifies what a band element renders.
type ElementType string

const (
	ElementField      ElementType = "field"
	ElementLabel      ElementType = "label"
	ElementExpression ElementType = "expression"
	ElementAggregate  ElementType = "aggregate"
	ElementLine       ElementType = "line"
	ElementBox        ElementType = "box"
	ElementImage      ElementType = "image"
)

// Element is a leaf content descriptor. Elements carry no mutable state;
// they are resolved against a record/variable snapshot at render time.
type Element struct {
	Type      ElementType
	Source    string    // field path (field) or image reference (image)
	Text      string    // literal text (label)
	Expr      expr.Node // expression AST (expression)
	Variable  string    // variable name (aggregate)
	Position  Position
	Style     map[string]string
	Condition expr.Node // optional; falsy skips the element
}

// Position is a purely positional layout hint, opaque to the engine.
type Position struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// VariableType identifies how per-record contributions are combined.
type VariableType string

const (
	VariableSum     VariableType = "sum"
	VariableCount   VariableType = "count"
	VariableAverage VariableType = "average"
	VariableMin     VariableType = "min"
	VariableMax     VariableType = "max"
	VariableCustom  VariableType = "custom"
)

// ResetScope is the boundary at which a variable returns to its identity
// value.
type ResetScope string

const (
	ResetDetail ResetScope = "detail"
	ResetGroup  ResetScope = "group"
	ResetPage   ResetScope = "page"
	ResetReport ResetScope = "report"
)

// Variable is a named accumulator definition. The live value is owned by
// the run's state machine, never by the definition.
type Variable struct {
	Name       string
	Type       VariableType
	Expr       expr.Node // per-record contribution; for count, an optional filter
	ResetOn    ResetScope
	ResetGroup int    // group level, only when ResetOn == ResetGroup
	Combinator string // combining function name, only for VariableCustom
}

// Group partitions the record stream by a key expression. The incoming
// stream must already be sorted by group keys, outer level first.
type Group struct {
	Name  string
	Level int // 1..N, contiguous, 1 = outermost
	Key   expr.Node
}

// ErrorStrategy controls how per-element resolution problems propagate.
type ErrorStrategy string

const (
	// FailFast promotes the first element resolution error to a pipeline
	// failure.
	FailFast ErrorStrategy = "fail_fast"
	// ContinueOnError substitutes an ErrorValue placeholder and records a
	// warning.
	ContinueOnError ErrorStrategy = "continue_on_error"
	// SkipInvalid omits the element from its band's output and records a
	// warning.
	SkipInvalid ErrorStrategy = "skip_invalid"
)
