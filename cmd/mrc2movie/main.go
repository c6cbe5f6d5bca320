// Command mrc2movie converts directories of MRC tomograms into
// contrast-enhanced AVI previews and optional PNG slice sequences.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mrc2movie/internal/config"
	"mrc2movie/internal/logger"
	"mrc2movie/internal/orchestrator"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mrc2movie", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: mrc2movie [flags] <input-dir> <output-dir>")
		fmt.Fprintln(fs.Output(), "       mrc2movie -estimate-memory <input-dir>")
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
	}

	defaults := config.Default()

	configPath := fs.String("config", "", "YAML configuration file")
	preset := fs.String("preset", "", "parameter preset: tomogram, tiltseries, quick, max_quality")
	fps := fs.Float64("fps", defaults.Video.FPS, "output frame rate")
	codec := fs.String("codec", defaults.Video.Codec, "fourcc video codec tag")
	playback := fs.String("playback", defaults.Video.Playback, "frame order: forward or forward-backward")
	outputSize := fs.Int("output-size", defaults.Video.OutputSize, "longest output dimension, 0 keeps native size")
	clipLimit := fs.Float64("clip-limit", defaults.Contrast.ClipLimit, "CLAHE clip limit")
	tileGrid := fs.Int("tile-grid-size", defaults.Contrast.TileGridSize, "CLAHE tile grid size")
	adaptive := fs.Bool("adaptive-contrast", false, "scale the clip limit from each volume's dynamic range")
	discardRange := fs.String("discard-range", "", "keep slices [A,B) by index, as A,B")
	discardPercent := fs.String("discard-percent", "", "trim fractions off each end, as A,B in [0,1)")
	savePNG := fs.Bool("png", false, "also write a numbered PNG per slice")
	jobs := fs.Int("jobs", 0, "slice workers per volume, 0 means one per core")
	fileConcurrency := fs.Int("file-concurrency", defaults.Processing.FileConcurrency, "volumes processed at once")
	estimate := fs.Bool("estimate-memory", false, "report per-file memory estimates and exit")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logger.NewConsole(logger.ParseLevel(*logLevel))

	cfg := defaults
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("cli", err, nil)
			return 2
		}
		cfg = loaded
	}
	if *preset != "" {
		if err := cfg.ApplyPreset(*preset); err != nil {
			log.Error("cli", err, nil)
			return 2
		}
	}

	// Explicitly set flags beat the config file and the preset.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps":
			cfg.Video.FPS = *fps
		case "codec":
			cfg.Video.Codec = *codec
		case "playback":
			cfg.Video.Playback = *playback
		case "output-size":
			cfg.Video.OutputSize = *outputSize
		case "clip-limit":
			cfg.Contrast.ClipLimit = *clipLimit
		case "tile-grid-size":
			cfg.Contrast.TileGridSize = *tileGrid
		case "adaptive-contrast":
			cfg.Contrast.Adaptive = *adaptive
		case "discard-range":
			pair, err := parseIntPair(*discardRange)
			if err != nil {
				flagErr = fmt.Errorf("-discard-range: %w", err)
				return
			}
			cfg.Discard.Range = pair
		case "discard-percent":
			pair, err := parseFloatPair(*discardPercent)
			if err != nil {
				flagErr = fmt.Errorf("-discard-percent: %w", err)
				return
			}
			cfg.Discard.Percent = pair
		case "png":
			cfg.Output.SavePNG = *savePNG
		case "jobs":
			cfg.Processing.Jobs = *jobs
		case "file-concurrency":
			cfg.Processing.FileConcurrency = *fileConcurrency
		}
	})
	if flagErr != nil {
		log.Error("cli", flagErr, nil)
		return 2
	}

	if *estimate {
		if fs.NArg() != 1 {
			fs.Usage()
			return 2
		}
		return estimateMemory(fs.Arg(0), log)
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}

	if err := cfg.Validate(); err != nil {
		log.Error("cli", err, nil)
		return 2
	}

	if _, err := orchestrator.New(cfg, log).Run(fs.Arg(0), fs.Arg(1)); err != nil {
		log.Error("cli", err, nil)
		return 1
	}
	return 0
}

func estimateMemory(dir string, log logger.Logger) int {
	infos, err := orchestrator.EstimateMemory(dir)
	if err != nil {
		log.Error("cli", err, nil)
		return 1
	}

	var total int64
	for _, info := range infos {
		total += info.ProcessingBytes
		fmt.Printf("%-40s %4d x %4d x %4d %-8s data %7.1f MiB, processing ~%7.1f MiB\n",
			info.Path, info.Width, info.Height, info.Depth, info.DType,
			float64(info.DataBytes)/(1<<20), float64(info.ProcessingBytes)/(1<<20))
	}
	fmt.Printf("total processing estimate across %d files: %.1f GiB\n",
		len(infos), float64(total)/(1<<30))
	return 0
}

// parseIntPair splits "A,B" into two non-negative integers.
func parseIntPair(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected two comma-separated values, got %q", s)
	}
	out := make([]int, 2)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseFloatPair splits "A,B" into two floats.
func parseFloatPair(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected two comma-separated values, got %q", s)
	}
	out := make([]float64, 2)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
