package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero fps", func(c *Config) { c.Video.FPS = 0 }, "fps"},
		{"negative fps", func(c *Config) { c.Video.FPS = -5 }, "fps"},
		{"short codec", func(c *Config) { c.Video.Codec = "MJ" }, "codec"},
		{"bad playback", func(c *Config) { c.Video.Playback = "backward" }, "playback"},
		{"zero clip limit", func(c *Config) { c.Contrast.ClipLimit = 0 }, "clip limit"},
		{"zero tile grid", func(c *Config) { c.Contrast.TileGridSize = 0 }, "tile grid"},
		{"inverted range", func(c *Config) { c.Discard.Range = []int{5, 2} }, "discard range"},
		{"equal range", func(c *Config) { c.Discard.Range = []int{3, 3} }, "discard range"},
		{"negative range", func(c *Config) { c.Discard.Range = []int{-1, 3} }, "discard range"},
		{"percent out of bounds", func(c *Config) { c.Discard.Percent = []float64{0.1, 1.0} }, "percent"},
		{"both discard modes", func(c *Config) {
			c.Discard.Range = []int{0, 5}
			c.Discard.Percent = []float64{0.1, 0.1}
		}, "mutually exclusive"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateAcceptsSingleDiscardMode(t *testing.T) {
	cfg := Default()
	cfg.Discard.Range = []int{2, 5}
	if err := cfg.Validate(); err != nil {
		t.Errorf("index range alone should validate: %v", err)
	}

	cfg = Default()
	cfg.Discard.Percent = []float64{0.1, 0.1}
	if err := cfg.Validate(); err != nil {
		t.Errorf("percent range alone should validate: %v", err)
	}
}

func TestApplyPreset(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyPreset("tiltseries"); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}
	if cfg.Video.FPS != 8.0 {
		t.Errorf("fps = %g, want 8", cfg.Video.FPS)
	}
	if cfg.Contrast.ClipLimit != 100.0 {
		t.Errorf("clip limit = %g, want 100", cfg.Contrast.ClipLimit)
	}
	if cfg.Video.OutputSize != 1024 {
		t.Errorf("output size = %d, want 1024", cfg.Video.OutputSize)
	}

	if err := cfg.ApplyPreset("nope"); err == nil {
		t.Error("unknown preset should fail")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
video:
  fps: 12.5
  codec: mp4v
contrast:
  clipLimit: 40
  adaptive: true
discard:
  percent: [0.05, 0.05]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.FPS != 12.5 {
		t.Errorf("fps = %g, want 12.5", cfg.Video.FPS)
	}
	if cfg.Video.Codec != "mp4v" {
		t.Errorf("codec = %q, want mp4v", cfg.Video.Codec)
	}
	if !cfg.Contrast.Adaptive {
		t.Error("adaptive should be true")
	}
	// Untouched fields keep defaults.
	if cfg.Video.Playback != PlaybackForwardBackward {
		t.Errorf("playback = %q, want default", cfg.Video.Playback)
	}
	if cfg.Contrast.TileGridSize != 8 {
		t.Errorf("tile grid size = %d, want default 8", cfg.Contrast.TileGridSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
