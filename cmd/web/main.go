package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/user"

	"github.com/accountex-org/ash-reports-sub007/pkg/server"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/config"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/report"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	profilesPath string
	settingsPath string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the report rendering web server",
		RunE:  runServer,
	}

	usr, _ := user.Current()
	defaultPath := fmt.Sprintf("%s/.ashreportscfg", usr.HomeDir)

	rootCmd.Flags().StringVarP(&profilesPath, "profiles", "p", defaultPath,
		"Path to the source profile file (default is $HOME/.ashreportscfg)")
	rootCmd.Flags().StringVarP(&settingsPath, "settings", "s", "",
		"Path to the engine settings file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	var registry config.Registry
	if _, statErr := os.Stat(profilesPath); statErr == nil {
		registry, err = config.NewRegistry(profilesPath)
		if err != nil {
			return fmt.Errorf("failed to create profile registry: %w", err)
		}
		logger.Info().Msgf("Profiles found at `%s` successfully loaded.", profilesPath)
		profiles, _ := registry.GetProfiles(ctx)
		for _, profile := range profiles {
			logger.Info().Msgf("Name: `%s`, Driver: `%s`", profile.Name, profile.Driver)
		}
	} else {
		logger.Info().Msgf("No profile file at `%s`, profile sources disabled.", profilesPath)
	}

	svc := report.NewService(report.Options{
		Registry: registry,
		Defaults: settings.PipelineConfig(),
	})

	mux := server.ConfigureRouter(server.Config{
		Dependencies: server.Dependencies{
			Reports:  svc,
			Registry: registry,
			Logger:   logger,
		},
	})

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")

	if host == "" || port == "" {
		logger.Error().Msgf("Missing server configuration from .env file")
		os.Exit(1)
	}

	addr := net.JoinHostPort(host, port)
	logger.Info().Msgf("starting server on %s", addr)

	return http.ListenAndServe(addr, mux)
}
