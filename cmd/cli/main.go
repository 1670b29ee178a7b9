package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/accountex-org/ash-reports-sub007/pkg/runtime/terminal"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/config"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/report"
)

func main() {
	settings, err := config.LoadSettings(os.Getenv("ASH_REPORTS_SETTINGS"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var registry config.Registry
	if path := profilesPath(); path != "" {
		if registry, err = config.NewRegistry(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	cli := terminal.NewCLI(terminal.Options{
		Service: report.NewService(report.Options{
			Registry: registry,
			Defaults: settings.PipelineConfig(),
		}),
		Registry: registry,
		Output:   os.Stdout,
	})

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// profilesPath resolves the profile file: the env override first, then the
// conventional home location if it exists.
func profilesPath() string {
	if path := os.Getenv("ASH_REPORTS_PROFILES"); path != "" {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return ""
	}
	path := fmt.Sprintf("%s/.ashreportscfg", usr.HomeDir)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
