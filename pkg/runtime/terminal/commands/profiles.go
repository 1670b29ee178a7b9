package commands

import (
	"fmt"
	"io"

	"github.com/accountex-org/ash-reports-sub007/pkg/services/config"
	"github.com/spf13/cobra"
)

type ProfilesCmd struct {
	registry config.Registry
	out      io.Writer
}

func NewProfilesCmd(registry config.Registry, out io.Writer) *cobra.Command {
	pc := &ProfilesCmd{registry: registry, out: out}
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the configured record-source profiles",
		RunE:  pc.run,
	}
	return cmd
}

func (pc *ProfilesCmd) run(cmd *cobra.Command, _ []string) error {
	if pc.registry == nil {
		return fmt.Errorf("no profile file configured")
	}
	profiles, err := pc.registry.GetProfiles(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	for _, p := range profiles {
		fmt.Fprintf(pc.out, "%s\n", p)
	}
	return nil
}
