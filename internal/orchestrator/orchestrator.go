// Package orchestrator drives batch runs: it discovers tomogram files
// in a directory, processes a bounded number of them concurrently, and
// reports per-file outcomes without letting one bad file sink the batch.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mrc2movie/internal/config"
	"mrc2movie/internal/encode"
	"mrc2movie/internal/logger"
	"mrc2movie/internal/mrc"
	"mrc2movie/internal/processing"
	"mrc2movie/internal/volume"
)

// volumeExtensions are the file suffixes treated as MRC-family volumes.
var volumeExtensions = map[string]bool{
	".mrc":  true,
	".mrcs": true,
	".rec":  true,
	".st":   true,
	".map":  true,
}

// Result is the outcome of one input file. Err is nil when at least one
// output artifact (video or PNG sequence) was produced.
type Result struct {
	Path     string
	Video    string
	PNGDir   string
	Frames   int
	Duration time.Duration
	Err      error
}

// Orchestrator runs the full pipeline over a directory of volumes with
// one shared, validated configuration.
type Orchestrator struct {
	cfg *config.Config
	log logger.Logger
}

func New(cfg *config.Config, log logger.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, log: log}
}

// Discover lists the volume files directly under dir, sorted by name.
// Subdirectories are not descended into.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if volumeExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes every volume under inputDir and writes outputs into
// outputDir. Files are processed concurrently up to the configured file
// concurrency; results come back in discovery order. Run fails only
// when no file could be processed at all.
func (o *Orchestrator) Run(inputDir, outputDir string) ([]Result, error) {
	paths, err := Discover(inputDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no volume files found in %s", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	o.log.Info("orchestrator", "batch started", map[string]interface{}{
		"files":       len(paths),
		"concurrency": o.cfg.Processing.FileConcurrency,
		"output":      outputDir,
	})

	results := make([]Result, len(paths))
	sem := make(chan struct{}, o.cfg.Processing.FileConcurrency)
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.processFile(path, outputDir)
		}(i, path)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		} else {
			o.log.Error("orchestrator", r.Err, map[string]interface{}{"path": r.Path})
		}
	}

	o.log.Info("orchestrator", "batch finished", map[string]interface{}{
		"succeeded": succeeded,
		"failed":    len(paths) - succeeded,
	})

	if succeeded == 0 {
		return results, fmt.Errorf("all %d volume files failed", len(paths))
	}
	return results, nil
}

// ProcessAsync starts Run in the background and streams each file's
// Result as it completes. The channel closes when the batch is done.
func (o *Orchestrator) ProcessAsync(inputDir, outputDir string) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		results, err := o.Run(inputDir, outputDir)
		if results == nil && err != nil {
			out <- Result{Path: inputDir, Err: err}
			return
		}
		for _, r := range results {
			out <- r
		}
	}()
	return out
}

func (o *Orchestrator) processFile(path, outputDir string) Result {
	start := time.Now()
	res := Result{Path: path}

	warnBytes := int64(o.cfg.Processing.MemoryWarnGiB * float64(int64(1)<<30))
	vol, err := mrc.Open(path, mrc.ReadOptions{WarnBytes: warnBytes}, o.log)
	if err != nil {
		res.Err = err
		return res
	}

	vol, err = o.selectSlices(vol)
	if err != nil {
		res.Err = err
		return res
	}

	stats := vol.ComputeStats()
	mean, stddev := vol.SampleSummary(100_000)
	o.log.Info("orchestrator", "volume statistics", map[string]interface{}{
		"path":   path,
		"slices": vol.Depth,
		"min":    stats.Min,
		"max":    stats.Max,
		"mean":   mean,
		"stddev": stddev,
	})

	clipLimit := o.cfg.Contrast.ClipLimit
	if o.cfg.Contrast.Adaptive {
		clipLimit = processing.AdaptiveClipLimit(clipLimit, stats.Range())
		o.log.Info("orchestrator", "adaptive clip limit selected", map[string]interface{}{
			"path":       path,
			"clip_limit": clipLimit,
			"range":      stats.Range(),
		})
	}
	params := processing.EnhancementParams{
		ClipLimit:    clipLimit,
		TileGridSize: o.cfg.Contrast.TileGridSize,
	}

	frames, err := processing.ProcessVolume(vol, stats, params, o.cfg.Processing.Jobs, o.log)
	if err != nil {
		res.Err = err
		return res
	}
	defer processing.CloseFrames(frames)
	res.Frames = len(frames)

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	// PNG export runs before the video so a broken video writer cannot
	// block the stills. Its failure is logged but not fatal while the
	// video can still be produced.
	var pngErr error
	if o.cfg.Output.SavePNG {
		pngErr = encode.WritePNGSequence(outputDir, base, frames, o.cfg.Video.OutputSize, o.cfg.Output.PNGWorkers, o.log)
		if pngErr != nil {
			o.log.Error("orchestrator", pngErr, map[string]interface{}{"path": path})
		} else if len(frames) > 1 {
			res.PNGDir = filepath.Join(outputDir, base+encode.SliceDirSuffix)
		} else {
			res.PNGDir = outputDir
		}
	}

	videoPath := filepath.Join(outputDir, base+".avi")
	spec := encode.OutputSpec{
		FPS:          o.cfg.Video.FPS,
		Codec:        o.cfg.Video.Codec,
		Playback:     encode.PlaybackMode(o.cfg.Video.Playback),
		MaxDimension: o.cfg.Video.OutputSize,
	}
	if err := encode.WriteVideo(videoPath, frames, spec, o.log); err != nil {
		if o.cfg.Output.SavePNG && pngErr == nil {
			// The PNG sequence made it out, so the file still counts.
			o.log.Error("orchestrator", err, map[string]interface{}{"path": path})
		} else {
			res.Err = err
			return res
		}
	} else {
		res.Video = videoPath
	}

	res.Duration = time.Since(start)
	o.log.Info("orchestrator", "volume converted", map[string]interface{}{
		"path":       path,
		"frames":     res.Frames,
		"elapsed_ms": res.Duration.Milliseconds(),
	})
	return res
}

func (o *Orchestrator) selectSlices(vol *volume.Volume) (*volume.Volume, error) {
	var (
		idx  *volume.IndexRange
		frac *volume.FractionRange
	)
	if r := o.cfg.Discard.Range; len(r) == 2 {
		idx = &volume.IndexRange{Start: r[0], End: r[1]}
	}
	if p := o.cfg.Discard.Percent; len(p) == 2 {
		frac = &volume.FractionRange{Start: p[0], End: p[1]}
	}
	return volume.Select(vol, idx, frac)
}

// EstimateMemory reports the expected processing footprint of every
// volume under dir from headers alone, without loading sample data.
func EstimateMemory(dir string) ([]*mrc.Info, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no volume files found in %s", dir)
	}

	infos := make([]*mrc.Info, 0, len(paths))
	for _, path := range paths {
		info, err := mrc.Stat(path)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
