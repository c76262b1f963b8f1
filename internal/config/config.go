// Package config loads khiopsctl settings from defaults, an optional YAML file,
// KHIOPS_* environment variables and command-line overrides, in that order of
// precedence.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Engine EngineConfig `koanf:"engine"`
	Temp   TempConfig   `koanf:"temp"`
	Log    LogConfig    `koanf:"log"`
}

// EngineConfig locates the engine tools.
type EngineConfig struct {
	// Bin is the main engine executable.
	Bin string `koanf:"bin" validate:"required"`
	// CoclusteringBin runs coclustering tasks.
	CoclusteringBin string `koanf:"coclustering_bin" validate:"required"`
	// Version pins the installed engine version. Empty means detect it.
	Version string        `koanf:"version" validate:"omitempty,semver_like"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
	DryRun  bool          `koanf:"dry_run"`
}

// TempConfig controls where temporary artifacts go and when they are removed.
type TempConfig struct {
	Dir     string `koanf:"dir"`
	Cleanup string `koanf:"cleanup" validate:"oneof=keep-on-failure always never"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Bin:             "MODL",
			CoclusteringBin: "MODL_Coclustering",
			Timeout:         0,
		},
		Temp: TempConfig{
			Cleanup: "keep-on-failure",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
