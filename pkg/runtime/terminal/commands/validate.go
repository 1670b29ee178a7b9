package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/report"
	"github.com/spf13/cobra"
)

type ValidateCmd struct {
	definitionPath string
	svc            report.Service
	out            io.Writer
}

func NewValidateCmd(svc report.Service, out io.Writer) *cobra.Command {
	vc := &ValidateCmd{svc: svc, out: out}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a report definition without running it",
		RunE:  vc.run,
	}

	cmd.Flags().StringVar(&vc.definitionPath, "definition", "", "Path to the report definition (JSON)")
	_ = cmd.MarkFlagRequired("definition")

	return cmd
}

func (vc *ValidateCmd) run(cmd *cobra.Command, _ []string) error {
	def, err := loadDefinition(vc.definitionPath)
	if err != nil {
		return err
	}

	if err := vc.svc.Validate(cmd.Context(), def); err != nil {
		var defErr *pipeline.DefinitionError
		if errors.As(err, &defErr) {
			fmt.Fprintf(vc.out, "%s: %d problem(s)\n", def.Name, len(defErr.Problems))
			for _, p := range defErr.Problems {
				fmt.Fprintf(vc.out, "  - %s\n", p)
			}
			return fmt.Errorf("definition is invalid")
		}
		return err
	}

	fmt.Fprintf(vc.out, "%s: ok\n", def.Name)
	return nil
}
