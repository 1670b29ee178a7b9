package terminal

import (
	"io"
	"os"

	"github.com/accountex-org/ash-reports-sub007/pkg/runtime/terminal/commands"
	"github.com/accountex-org/ash-reports-sub007/pkg/runtime/terminal/export"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/config"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/report"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	svc      report.Service
	registry config.Registry
	reporter *export.Reporter
	output   io.Writer
	rootCmd  *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Service  report.Service
	Registry config.Registry
	Output   io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cli := &CLI{
		svc:      opts.Service,
		registry: opts.Registry,
		reporter: export.NewReporter(opts.Output),
		output:   opts.Output,
	}

	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ashreports",
		Short: "Band-oriented report rendering tool",
	}

	cmd.AddCommand(commands.NewRenderCmd(cli.svc, cli.reporter))
	cmd.AddCommand(commands.NewValidateCmd(cli.svc, cli.output))
	cmd.AddCommand(commands.NewProfilesCmd(cli.registry, cli.output))

	return cmd
}
