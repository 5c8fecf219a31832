package config

import (
	"strings"

	"github.com/rs/zerolog"
)

// SettingsPrefix is the environment prefix of the tooling settings.
const SettingsPrefix = "INJECTOR"

// Settings configures the injector tooling (providergen), from INJECTOR_* variables.
type Settings struct {
	LogLevel string `mapstructure:"log_level"`
	DryRun   bool   `mapstructure:"dry_run"`
}

func (s *Settings) ApplyDefault() {
	if s.LogLevel == "" {
		s.LogLevel = zerolog.LevelInfoValue
	}
}

// Level parses LogLevel, falling back to info.
func (s *Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// LoadSettings reads the settings from the environment, and the .env file when present.
func LoadSettings() (*Settings, error) {
	return Load[Settings](WithEnvPrefix(SettingsPrefix), WithDotEnv())
}
