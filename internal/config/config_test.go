package config

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	return &Config{
		MaxKeyframes:   5,
		MinSceneLen:    5,
		ThresholdSigma: 2.5,
		MaxEmbedFrames: 64,
		Workers:        4,
		Captioner:      "gemini",
		Embedder:       "clip,histogram",
		Summarizer:     "gemini",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MaxKeyframes != 5 {
		t.Errorf("MaxKeyframes = %d, want 5", cfg.MaxKeyframes)
	}
	if cfg.ThresholdSigma != 2.5 {
		t.Errorf("ThresholdSigma = %v, want 2.5", cfg.ThresholdSigma)
	}
	if cfg.Embedder != "clip,histogram" {
		t.Errorf("Embedder = %q, want clip,histogram", cfg.Embedder)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration invalid: %v", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SAGEVISION_MAX_KEYFRAMES", "3")
	t.Setenv("SAGEVISION_WORKERS", "2")
	t.Setenv("SAGEVISION_CAPTIONER", "gemini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxKeyframes != 3 {
		t.Errorf("MaxKeyframes = %d, want 3", cfg.MaxKeyframes)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:      "zero keyframes",
			mutate:    func(c *Config) { c.MaxKeyframes = 0 },
			wantField: "MaxKeyframes",
		},
		{
			name:      "zero min scene length",
			mutate:    func(c *Config) { c.MinSceneLen = 0 },
			wantField: "MinSceneLen",
		},
		{
			name:      "negative sigma",
			mutate:    func(c *Config) { c.ThresholdSigma = -1 },
			wantField: "ThresholdSigma",
		},
		{
			name:      "embed budget below keyframe budget",
			mutate:    func(c *Config) { c.MaxEmbedFrames = 2 },
			wantField: "MaxEmbedFrames",
		},
		{
			name:      "zero workers",
			mutate:    func(c *Config) { c.Workers = 0 },
			wantField: "Workers",
		},
		{
			name:      "negative fps",
			mutate:    func(c *Config) { c.ExtractFPS = -1 },
			wantField: "ExtractFPS",
		},
		{
			name:      "empty captioner chain",
			mutate:    func(c *Config) { c.Captioner = "" },
			wantField: "Captioner",
		},
		{
			name:      "empty embedder chain",
			mutate:    func(c *Config) { c.Embedder = "" },
			wantField: "Embedder",
		},
		{
			name:      "empty summarizer chain",
			mutate:    func(c *Config) { c.Summarizer = "" },
			wantField: "Summarizer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}
