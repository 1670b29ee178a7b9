package config

import (
	"fmt"
	"time"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/spf13/viper"
)

// Settings are the recognized engine options, loadable from a settings
// file (any format viper reads) with sane defaults.
type Settings struct {
	ChunkSize      int           `mapstructure:"chunk_size"`
	ErrorStrategy  string        `mapstructure:"error_strategy"`
	MaxMemoryBytes int64         `mapstructure:"max_memory_bytes"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// DefaultSettings mirror the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:     pipeline.DefaultChunkSize,
		ErrorStrategy: string(domain.FailFast),
	}
}

// LoadSettings reads the settings file at path; an empty path returns the
// defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("chunk_size", settings.ChunkSize)
	v.SetDefault("error_strategy", settings.ErrorStrategy)

	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	if _, err := parseStrategy(settings.ErrorStrategy); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// PipelineConfig converts settings to an engine config.
func (s Settings) PipelineConfig() pipeline.Config {
	strategy, _ := parseStrategy(s.ErrorStrategy)
	return pipeline.Config{
		ChunkSize:      s.ChunkSize,
		Strategy:       strategy,
		MaxMemoryBytes: s.MaxMemoryBytes,
		Timeout:        s.Timeout,
	}
}

func parseStrategy(s string) (domain.ErrorStrategy, error) {
	switch domain.ErrorStrategy(s) {
	case domain.FailFast, domain.ContinueOnError, domain.SkipInvalid:
		return domain.ErrorStrategy(s), nil
	case "":
		return domain.FailFast, nil
	default:
		return "", fmt.Errorf("unknown error_strategy %q", s)
	}
}
