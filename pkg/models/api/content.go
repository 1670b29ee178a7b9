package api

type ResolvedElement struct {
	Type     string            `json:"type"`
	Value    any               `json:"value"`
	Position Position          `json:"position"`
	Style    map[string]string `json:"style,omitempty"`
}

type ContentNode struct {
	BandType   string            `json:"band_type"`
	BandName   string            `json:"band_name"`
	GroupLevel int               `json:"group_level,omitempty"`
	Depth      int               `json:"depth"`
	Elements   []ResolvedElement `json:"elements"`
}

type Batch struct {
	Seq     int           `json:"seq"`
	Records int           `json:"records"`
	Nodes   []ContentNode `json:"nodes"`
}

type Warning struct {
	RecordIndex int64  `json:"record_index"`
	Band        string `json:"band,omitempty"`
	Ref         string `json:"ref,omitempty"`
	Reason      string `json:"reason"`
}

type Diagnostics struct {
	RunID       string    `json:"run_id"`
	Report      string    `json:"report"`
	RecordCount int64     `json:"record_count"`
	Batches     int       `json:"batches"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

type RenderResponse struct {
	Document    []ContentNode `json:"document"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}
