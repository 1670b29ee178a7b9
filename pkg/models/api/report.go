package api

// Expression is the wire form of an expression tree node. Type selects the
// variant: "field", "literal", "variable", "binary", "concat" or "not".
type Expression struct {
	Type  string       `json:"type"`
	Path  string       `json:"path,omitempty"`
	Value any          `json:"value,omitempty"`
	Name  string       `json:"name,omitempty"`
	Op    string       `json:"op,omitempty"`
	Left  *Expression  `json:"left,omitempty"`
	Right *Expression  `json:"right,omitempty"`
	Parts []Expression `json:"parts,omitempty"`
	Expr  *Expression  `json:"expr,omitempty"`
}

type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Element struct {
	Type      string            `json:"type"`
	Source    string            `json:"source,omitempty"`
	Text      string            `json:"text,omitempty"`
	Expr      *Expression       `json:"expr,omitempty"`
	Variable  string            `json:"variable,omitempty"`
	Position  Position          `json:"position"`
	Style     map[string]string `json:"style,omitempty"`
	Condition *Expression       `json:"condition,omitempty"`
}

type Band struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	GroupLevel int       `json:"group_level,omitempty"`
	Elements   []Element `json:"elements,omitempty"`
	Children   []Band    `json:"children,omitempty"`
}

type Variable struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Expr       *Expression `json:"expr,omitempty"`
	ResetOn    string      `json:"reset_on"`
	ResetGroup int         `json:"reset_group,omitempty"`
	Combinator string      `json:"combinator,omitempty"`
}

type Group struct {
	Name  string     `json:"name"`
	Level int        `json:"level"`
	Key   Expression `json:"key"`
}

type ReportDefinition struct {
	Name       string     `json:"name"`
	DataSource string     `json:"data_source,omitempty"`
	Bands      []Band     `json:"bands"`
	Variables  []Variable `json:"variables,omitempty"`
	Groups     []Group    `json:"groups,omitempty"`
}

// SourceRef selects the record source for a run. Exactly one of the three
// variants must be set: inline records, a server-side JSONL path, or a
// configured profile plus query.
type SourceRef struct {
	Records []map[string]any `json:"records,omitempty"`
	Path    string           `json:"path,omitempty"`
	Profile string           `json:"profile,omitempty"`
	Query   string           `json:"query,omitempty"`
}

type RenderOptions struct {
	ChunkSize      int    `json:"chunk_size,omitempty"`
	ErrorStrategy  string `json:"error_strategy,omitempty"`
	MaxMemoryBytes int64  `json:"max_memory_bytes,omitempty"`
	TimeoutMs      int64  `json:"timeout_ms,omitempty"`
}

type RenderRequest struct {
	Report  ReportDefinition `json:"report"`
	Source  SourceRef        `json:"source"`
	Options RenderOptions    `json:"options,omitempty"`
}

type ValidateRequest struct {
	Report ReportDefinition `json:"report"`
}

type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

type SourceProfile struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
}
