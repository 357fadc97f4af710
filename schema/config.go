package schema

import (
	"errors"
	"math"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	// DefaultThreshold is the silence cap used when neither the caller nor
	// the header supplies one.
	DefaultThreshold float64
	// TransformWorkers splits element-wise transforms across goroutines when > 1.
	TransformWorkers int
	Player           PlayerConfig
}

// PlayerConfig tunes the native player.
type PlayerConfig struct {
	Speed     float64
	SpeedStep float64
	SeekStep  float64
	// CheckpointInterval is the number of events between seek checkpoints;
	// negative disables checkpointing.
	CheckpointInterval int
	// MaxCheckpoints bounds the checkpoint table; when it fills, every other
	// checkpoint is dropped and the interval doubles.
	MaxCheckpoints int
	MaxTickMillis  int
}

const (
	// DefaultSilenceThreshold caps idle gaps when nothing else is configured.
	DefaultSilenceThreshold = 2.0
	// DefaultSpeedStep is the multiplicative speed change per keypress.
	DefaultSpeedStep = 1.25
	// DefaultSeekStep is the arrow-key seek distance in seconds.
	DefaultSeekStep = 5.0
	// DefaultCheckpointInterval is the number of events between seek checkpoints.
	DefaultCheckpointInterval = 1000
	// DefaultMaxCheckpoints bounds how many emulator snapshots a player keeps.
	DefaultMaxCheckpoints = 256
	// DefaultMaxTickMillis bounds how long the player sleeps between repaints.
	DefaultMaxTickMillis = 50
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.DefaultThreshold == 0 {
		cfg.DefaultThreshold = DefaultSilenceThreshold
	}
	if !positiveFinite(cfg.DefaultThreshold) {
		return ServiceConfig{}, errors.New("default silence threshold must be a positive finite number of seconds")
	}
	if cfg.TransformWorkers < 0 {
		return ServiceConfig{}, errors.New("transform workers must not be negative")
	}
	if cfg.Player.Speed == 0 {
		cfg.Player.Speed = 1
	}
	if !positiveFinite(cfg.Player.Speed) {
		return ServiceConfig{}, errors.New("player speed must be a positive finite multiplier")
	}
	if cfg.Player.SpeedStep == 0 {
		cfg.Player.SpeedStep = DefaultSpeedStep
	}
	if !positiveFinite(cfg.Player.SpeedStep) || cfg.Player.SpeedStep <= 1 {
		return ServiceConfig{}, errors.New("player speed step must be greater than 1")
	}
	if cfg.Player.SeekStep == 0 {
		cfg.Player.SeekStep = DefaultSeekStep
	}
	if !positiveFinite(cfg.Player.SeekStep) {
		return ServiceConfig{}, errors.New("player seek step must be a positive number of seconds")
	}
	if cfg.Player.CheckpointInterval == 0 {
		cfg.Player.CheckpointInterval = DefaultCheckpointInterval
	}
	if cfg.Player.MaxCheckpoints < 0 {
		return ServiceConfig{}, errors.New("player max checkpoints must not be negative")
	}
	if cfg.Player.MaxCheckpoints == 0 {
		cfg.Player.MaxCheckpoints = DefaultMaxCheckpoints
	}
	if cfg.Player.MaxTickMillis <= 0 {
		cfg.Player.MaxTickMillis = DefaultMaxTickMillis
	}
	return cfg, nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
