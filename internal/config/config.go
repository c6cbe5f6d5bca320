// Package config holds the processing options consumed by the pipeline
// and supports loading them from a YAML file with CLI overrides applied
// on top.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Playback mode identifiers accepted by the encoder.
const (
	PlaybackForward         = "forward"
	PlaybackForwardBackward = "forward-backward"
)

const maxPNGWorkers = 32

// Config is the full configuration surface of a batch run. All fields
// the core honors are here; the CLI merely fills them in.
type Config struct {
	Video struct {
		// FPS is the output frame rate. Built tomograms play well at
		// 30; tilt series are usually better around 1-5.
		FPS float64 `yaml:"fps"`

		// Codec is the 4-character fourcc tag handed to the encoder.
		Codec string `yaml:"codec"`

		// Playback is "forward" or "forward-backward".
		Playback string `yaml:"playback"`

		// OutputSize bounds the longest output dimension. Zero keeps
		// native resolution. Frames are never upscaled.
		OutputSize int `yaml:"outputSize"`
	} `yaml:"video"`

	Contrast struct {
		// ClipLimit is the CLAHE clip strength. Try 30-1000 for raw
		// tilt series, their SNR is very low.
		ClipLimit float64 `yaml:"clipLimit"`

		// TileGridSize partitions each slice into an NxN grid of
		// independently equalized tiles.
		TileGridSize int `yaml:"tileGridSize"`

		// Adaptive scales ClipLimit from the observed dynamic range
		// of each volume.
		Adaptive bool `yaml:"adaptive"`
	} `yaml:"contrast"`

	Discard struct {
		// Range keeps slices [start, end) by absolute index. Either
		// empty or exactly two non-negative integers with start < end.
		Range []int `yaml:"range"`

		// Percent trims a fraction off each end. Either empty or
		// exactly two floats in [0, 1). Mutually exclusive with Range.
		Percent []float64 `yaml:"percent"`
	} `yaml:"discard"`

	Output struct {
		// SavePNG also emits a numbered PNG sequence per volume.
		SavePNG bool `yaml:"savePng"`

		// PNGWorkers bounds the PNG writer pool.
		PNGWorkers int `yaml:"pngWorkers"`
	} `yaml:"output"`

	Processing struct {
		// Jobs bounds the slice worker pool. Zero means one worker
		// per available core.
		Jobs int `yaml:"jobs"`

		// FileConcurrency is how many volumes are processed at once.
		FileConcurrency int `yaml:"fileConcurrency"`

		// MemoryWarnGiB is the estimated processing footprint above
		// which the reader logs a capacity warning.
		MemoryWarnGiB float64 `yaml:"memoryWarnGiB"`
	} `yaml:"processing"`
}

// Default returns the configuration used when no file or flags override it.
func Default() *Config {
	cfg := &Config{}

	cfg.Video.FPS = 30.0
	cfg.Video.Codec = "MJPG"
	cfg.Video.Playback = PlaybackForwardBackward
	cfg.Video.OutputSize = 1024

	cfg.Contrast.ClipLimit = 2.0
	cfg.Contrast.TileGridSize = 8

	cfg.Output.PNGWorkers = defaultPNGWorkers()

	cfg.Processing.Jobs = 0
	cfg.Processing.FileConcurrency = 2
	cfg.Processing.MemoryWarnGiB = 2.0

	return cfg
}

func defaultPNGWorkers() int {
	w := 4 * runtime.NumCPU()
	if w > maxPNGWorkers {
		w = maxPNGWorkers
	}
	return w
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Preset bundles the parameters tuned for a common data type.
type Preset struct {
	FPS        float64
	ClipLimit  float64
	OutputSize int
}

var presets = map[string]Preset{
	"tomogram":    {FPS: 30.0, ClipLimit: 2.0, OutputSize: 1024},
	"tomo":        {FPS: 30.0, ClipLimit: 2.0, OutputSize: 1024},
	"tiltseries":  {FPS: 8.0, ClipLimit: 100.0, OutputSize: 1024},
	"ts":          {FPS: 8.0, ClipLimit: 100.0, OutputSize: 1024},
	"quick":       {FPS: 15.0, ClipLimit: 2.0, OutputSize: 512},
	"max_quality": {FPS: 30.0, ClipLimit: 5.0, OutputSize: 2048},
}

// ApplyPreset overwrites the tunable fields with a named preset.
func (c *Config) ApplyPreset(name string) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	c.Video.FPS = p.FPS
	c.Contrast.ClipLimit = p.ClipLimit
	c.Video.OutputSize = p.OutputSize
	return nil
}

// Validate rejects configurations the pipeline cannot honor. Supplying
// both discard modes is an error here rather than resolved by precedence.
func (c *Config) Validate() error {
	if c.Video.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", c.Video.FPS)
	}
	if len(c.Video.Codec) != 4 {
		return fmt.Errorf("codec must be a 4-character fourcc tag, got %q", c.Video.Codec)
	}
	if c.Video.Playback != PlaybackForward && c.Video.Playback != PlaybackForwardBackward {
		return fmt.Errorf("playback must be %q or %q, got %q",
			PlaybackForward, PlaybackForwardBackward, c.Video.Playback)
	}
	if c.Video.OutputSize < 0 {
		return fmt.Errorf("output size must be positive or zero, got %d", c.Video.OutputSize)
	}
	if c.Contrast.ClipLimit <= 0 {
		return fmt.Errorf("clip limit must be positive, got %g", c.Contrast.ClipLimit)
	}
	if c.Contrast.TileGridSize < 1 {
		return fmt.Errorf("tile grid size must be a positive integer, got %d", c.Contrast.TileGridSize)
	}
	if err := c.validateDiscard(); err != nil {
		return err
	}
	if c.Processing.Jobs < 0 {
		return fmt.Errorf("jobs must be positive or zero, got %d", c.Processing.Jobs)
	}
	if c.Processing.FileConcurrency < 1 {
		return fmt.Errorf("file concurrency must be at least 1, got %d", c.Processing.FileConcurrency)
	}
	return nil
}

func (c *Config) validateDiscard() error {
	hasRange := len(c.Discard.Range) > 0
	hasPercent := len(c.Discard.Percent) > 0

	if hasRange && hasPercent {
		return fmt.Errorf("discard range and discard percent are mutually exclusive")
	}
	if hasRange {
		if len(c.Discard.Range) != 2 {
			return fmt.Errorf("discard range needs exactly two values, got %d", len(c.Discard.Range))
		}
		start, end := c.Discard.Range[0], c.Discard.Range[1]
		if start < 0 || end < 0 || start >= end {
			return fmt.Errorf("invalid discard range [%d, %d)", start, end)
		}
	}
	if hasPercent {
		if len(c.Discard.Percent) != 2 {
			return fmt.Errorf("discard percent needs exactly two values, got %d", len(c.Discard.Percent))
		}
		for _, f := range c.Discard.Percent {
			if f < 0 || f >= 1 {
				return fmt.Errorf("discard percent values must lie in [0, 1), got %g", f)
			}
		}
	}
	return nil
}
