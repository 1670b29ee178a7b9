package store

// Record is one raw data record as produced by a record source. Nested
// structures decode to nested map[string]any values; field paths traverse
// them with dots.
type Record = map[string]any

// SourceSettings describe how to open a record source from configuration.
type SourceSettings struct {
	Driver string
	DSN    string
	Query  string
}
