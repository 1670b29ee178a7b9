package commands

import (
	"fmt"
	"time"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/runtime/terminal/export"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/report"
	"github.com/spf13/cobra"
)

type RenderCmd struct {
	definitionPath string
	dataPath       string
	profile        string
	query          string
	chunkSize      int
	errorStrategy  string
	timeout        time.Duration
	format         string
	svc            report.Service
	reporter       *export.Reporter
}

func NewRenderCmd(svc report.Service, reporter *export.Reporter) *cobra.Command {
	rc := &RenderCmd{svc: svc, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Run a report definition against a record source",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.definitionPath, "definition", "", "Path to the report definition (JSON)")
	cmd.Flags().StringVar(&rc.dataPath, "data", "", "Path to a JSON Lines record file")
	cmd.Flags().StringVar(&rc.profile, "profile", "", "Source profile to read records from")
	cmd.Flags().StringVar(&rc.query, "query", "", "Query to run against the profile source")
	cmd.Flags().IntVar(&rc.chunkSize, "chunk_size", 0, "Records per output batch (0 uses the configured default)")
	cmd.Flags().StringVar(&rc.errorStrategy, "error_strategy", "", "fail_fast, continue_on_error or skip_invalid")
	cmd.Flags().DurationVar(&rc.timeout, "timeout", 0, "Overall run deadline (0 disables)")
	cmd.Flags().StringVar(&rc.format, "format", "text", "Output format: text or json")

	_ = cmd.MarkFlagRequired("definition")

	return cmd
}

func (rc *RenderCmd) run(cmd *cobra.Command, _ []string) error {
	def, err := loadDefinition(rc.definitionPath)
	if err != nil {
		return err
	}

	if rc.dataPath == "" && rc.profile == "" {
		return fmt.Errorf("either --data or --profile is required")
	}
	ref := report.SourceRef{
		Path:    rc.dataPath,
		Profile: rc.profile,
		Query:   rc.query,
	}

	cfg := pipeline.Config{
		ChunkSize: rc.chunkSize,
		Strategy:  domain.ErrorStrategy(rc.errorStrategy),
		Timeout:   rc.timeout,
	}

	result, err := rc.svc.Render(cmd.Context(), def, ref, cfg)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	return rc.reporter.Handle(result, export.Format(rc.format))
}
