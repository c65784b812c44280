package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every knob the pipeline accepts. Values come from the
// environment with sensible defaults; the CLI overrides individual fields
// from flags before validation.
type Config struct {
	// MaxKeyframes is the per-scene keyframe budget (K).
	MaxKeyframes int `env:"SAGEVISION_MAX_KEYFRAMES" envDefault:"5"`

	// MinSceneLen is the minimum number of frames per scene. Boundaries
	// closer together than this are suppressed to avoid flapping.
	MinSceneLen int `env:"SAGEVISION_MIN_SCENE_LEN" envDefault:"5"`

	// ThresholdSigma is how many standard deviations above the running
	// mean a frame-difference score must be to open a new scene.
	ThresholdSigma float64 `env:"SAGEVISION_THRESHOLD_SIGMA" envDefault:"2.5"`

	// MaxEmbedFrames caps embedding calls per scene. Longer scenes are
	// uniformly sub-sampled down to this many candidates before selection.
	MaxEmbedFrames int `env:"SAGEVISION_MAX_EMBED_FRAMES" envDefault:"64"`

	// Workers bounds the scene worker pool (keyframe selection + captioning).
	Workers int `env:"SAGEVISION_WORKERS" envDefault:"4"`

	// ExtractFPS is the frame extraction rate. Zero lets the source pick
	// an adaptive rate based on video duration.
	ExtractFPS float64 `env:"SAGEVISION_EXTRACT_FPS" envDefault:"0"`

	// Captioner, Embedder and Summarizer are comma-separated provider
	// chains, tried in order at initialisation.
	Captioner  string `env:"SAGEVISION_CAPTIONER" envDefault:"gemini"`
	Embedder   string `env:"SAGEVISION_EMBEDDER" envDefault:"clip,histogram"`
	Summarizer string `env:"SAGEVISION_SUMMARIZER" envDefault:"gemini"`

	// CLIPModelPath locates the ONNX CLIP image encoder for the local
	// embedder provider.
	CLIPModelPath string `env:"SAGEVISION_CLIP_MODEL" envDefault:""`

	// DBPath enables the SQLite diagnostics store when non-empty.
	DBPath string `env:"SAGEVISION_DB" envDefault:""`
}

// ConfigError reports an invalid configuration value. Validation runs
// before any pipeline stage starts, so a ConfigError never comes with
// partial results.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that could not produce a meaningful run.
func (c *Config) Validate() error {
	if c.MaxKeyframes < 1 {
		return &ConfigError{Field: "MaxKeyframes", Reason: "must be at least 1"}
	}
	if c.MinSceneLen < 1 {
		return &ConfigError{Field: "MinSceneLen", Reason: "must be at least 1"}
	}
	if c.ThresholdSigma <= 0 {
		return &ConfigError{Field: "ThresholdSigma", Reason: "must be positive"}
	}
	if c.MaxEmbedFrames < c.MaxKeyframes {
		return &ConfigError{Field: "MaxEmbedFrames", Reason: "must be at least MaxKeyframes"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "Workers", Reason: "must be at least 1"}
	}
	if c.ExtractFPS < 0 {
		return &ConfigError{Field: "ExtractFPS", Reason: "must not be negative"}
	}
	if c.Captioner == "" {
		return &ConfigError{Field: "Captioner", Reason: "provider chain must not be empty"}
	}
	if c.Embedder == "" {
		return &ConfigError{Field: "Embedder", Reason: "provider chain must not be empty"}
	}
	if c.Summarizer == "" {
		return &ConfigError{Field: "Summarizer", Reason: "provider chain must not be empty"}
	}
	return nil
}
