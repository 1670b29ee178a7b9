package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/accountex-org/ash-reports-sub007/pkg/adapters"
	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/api"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type TableConfig struct {
	BandWidth  int
	NameWidth  int
	ValueWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		BandWidth:  14,
		NameWidth:  24,
		ValueWidth: 72,
	}
}

type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

// Handle writes the rendered document in the requested format.
func (c *Reporter) Handle(result *pipeline.Result, format Format) error {
	if format == FormatJSON {
		return c.handleJSON(result)
	}
	return c.handleText(result)
}

func (c *Reporter) handleJSON(result *pipeline.Result) error {
	response := api.RenderResponse{
		Document:    make([]api.ContentNode, 0, len(result.Document)),
		Diagnostics: adapters.MapDiagnosticsDomainToApi(result.Diagnostics),
	}
	for _, n := range result.Document {
		response.Document = append(response.Document, adapters.MapContentNodeDomainToApi(n))
	}
	enc := json.NewEncoder(c.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}

func (c *Reporter) handleText(result *pipeline.Result) error {
	funcMap := template.FuncMap{
		"formatRow": func(band string, name string, value string) string {
			return fmt.Sprintf("| %-*s | %-*s | %-*s |",
				c.config.BandWidth, band,
				c.config.NameWidth, name,
				c.config.ValueWidth, value)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+",
				strings.Repeat("-", c.config.BandWidth+2),
				strings.Repeat("-", c.config.NameWidth+2),
				strings.Repeat("-", c.config.ValueWidth+2))
		},
		"values": func(n domain.ContentNode) string {
			parts := make([]string, 0, len(n.Elements))
			for _, e := range n.Elements {
				if e.Value == nil {
					continue
				}
				parts = append(parts, fmt.Sprintf("%v", e.Value))
			}
			return strings.Join(parts, "  ")
		},
		"indent": func(n domain.ContentNode) string {
			return strings.Repeat("  ", n.Depth) + string(n.BandType)
		},
	}

	tmpl := `
{{.Diagnostics.Report}} (run {{.Diagnostics.RunID}})

Records: {{.Diagnostics.RecordCount}}  Batches: {{.Diagnostics.Batches}}  Elapsed: {{.Diagnostics.Elapsed}}

{{separator}}
{{formatRow "Band" "Name" "Content"}}
{{separator}}
{{range .Document}}{{formatRow (indent .) .BandName (values .)}}
{{end}}{{separator}}
{{if .Diagnostics.Warnings}}
Warnings:
{{range .Diagnostics.Warnings}}- record {{.RecordIndex}}{{if .Ref}} [{{.Ref}}]{{end}}: {{.Reason}}
{{end}}{{end}}`

	t, err := template.New("report").Funcs(funcMap).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, result)
}
