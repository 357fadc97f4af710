// Package appconfig loads the agentrec YAML configuration.
package appconfig

import (
	"os"
	"path/filepath"
	"runtime"

	"pkt.systems/agentrec/schema"
)

// Config is the on-disk configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Player        PlayerConfig    `mapstructure:"player" yaml:"player"`
	Transform     TransformConfig `mapstructure:"transform" yaml:"transform"`
}

// CurrentConfigVersion is the config schema version this build reads.
const CurrentConfigVersion = 1

// PlayerConfig tunes native playback.
type PlayerConfig struct {
	Speed              float64 `mapstructure:"speed" yaml:"speed"`
	SpeedStep          float64 `mapstructure:"speed_step" yaml:"speed_step"`
	SeekStepSeconds    float64 `mapstructure:"seek_step_seconds" yaml:"seek_step_seconds"`
	CheckpointInterval int     `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
	MaxCheckpoints     int     `mapstructure:"max_checkpoints" yaml:"max_checkpoints"`
	MaxTickMillis      int     `mapstructure:"max_tick_millis" yaml:"max_tick_millis"`
}

// TransformConfig tunes offline transforms.
type TransformConfig struct {
	DefaultThreshold float64 `mapstructure:"default_threshold_seconds" yaml:"default_threshold_seconds"`
	Workers          int     `mapstructure:"workers" yaml:"workers"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Player: PlayerConfig{
			Speed:              1,
			SpeedStep:          schema.DefaultSpeedStep,
			SeekStepSeconds:    schema.DefaultSeekStep,
			CheckpointInterval: schema.DefaultCheckpointInterval,
			MaxCheckpoints:     schema.DefaultMaxCheckpoints,
			MaxTickMillis:      schema.DefaultMaxTickMillis,
		},
		Transform: TransformConfig{
			DefaultThreshold: schema.DefaultSilenceThreshold,
			Workers:          runtime.NumCPU(),
		},
	}
}

// ServiceConfig converts the file settings to the core service config.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		DefaultThreshold: c.Transform.DefaultThreshold,
		TransformWorkers: c.Transform.Workers,
		Player: schema.PlayerConfig{
			Speed:              c.Player.Speed,
			SpeedStep:          c.Player.SpeedStep,
			SeekStep:           c.Player.SeekStepSeconds,
			CheckpointInterval: c.Player.CheckpointInterval,
			MaxCheckpoints:     c.Player.MaxCheckpoints,
			MaxTickMillis:      c.Player.MaxTickMillis,
		},
	}
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".agentrec", "config.yaml"), nil
}
