package processing

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"mrc2movie/internal/logger"
	"mrc2movie/internal/volume"
)

// SliceError reports a worker failure on one slice. Any slice failure
// fails the whole volume run; partial frame sets are never returned, so
// frame counts always match video duration and PNG numbering.
type SliceError struct {
	Index int
	Err   error
}

func (e *SliceError) Error() string {
	return fmt.Sprintf("processing slice %d: %v", e.Index, e.Err)
}

func (e *SliceError) Unwrap() error { return e.Err }

// sliceFunc is the per-slice work a pool worker runs.
type sliceFunc func(vol *volume.Volume, index int, stats volume.GlobalStats, params EnhancementParams, enhancer *Enhancer, src gocv.Mat, floatBuf []float32) (gocv.Mat, error)

// ProcessVolume normalizes and enhances every slice of vol on a bounded
// worker pool and returns one 8-bit grayscale frame per slice, in slice
// order regardless of scheduling. The caller owns the returned Mats.
//
// workers <= 0 selects one worker per available core; the pool is always
// bounded by the slice count. Workers share only the read-only stats and
// params.
func ProcessVolume(vol *volume.Volume, stats volume.GlobalStats, params EnhancementParams, workers int, log logger.Logger) ([]gocv.Mat, error) {
	return processVolume(vol, stats, params, workers, log, processSlice)
}

func processVolume(vol *volume.Volume, stats volume.GlobalStats, params EnhancementParams, workers int, log logger.Logger, process sliceFunc) ([]gocv.Mat, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	depth := vol.Depth
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > depth {
		workers = depth
	}

	log.Debug("pipeline", "processing volume", map[string]interface{}{
		"slices":     depth,
		"workers":    workers,
		"clip_limit": params.ClipLimit,
		"tile_grid":  params.TileGridSize,
	})

	frames := make([]gocv.Mat, depth)
	written := make([]bool, depth)
	jobs := make(chan int)
	pool := NewMatPool()
	defer pool.Close()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr *SliceError
		failed   atomic.Bool
	)

	reportErr := func(index int, err error) {
		failed.Store(true)
		errMu.Lock()
		if firstErr == nil || index < firstErr.Index {
			firstErr = &SliceError{Index: index, Err: err}
		}
		errMu.Unlock()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			enhancer := NewEnhancer()
			defer enhancer.Close()

			src := pool.Get(vol.Height, vol.Width, gocv.MatTypeCV8UC1)
			defer pool.Put(src)

			floatBuf := make([]float32, vol.Height*vol.Width)

			for index := range jobs {
				if failed.Load() {
					continue
				}
				frame, err := process(vol, index, stats, params, enhancer, src, floatBuf)
				if err != nil {
					reportErr(index, err)
					continue
				}
				frames[index] = frame
				written[index] = true
			}
		}()
	}

	for i := 0; i < depth; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		for i := range frames {
			if written[i] {
				frames[i].Close()
			}
		}
		return nil, firstErr
	}
	return frames, nil
}

// processSlice runs normalize+enhance for one slice, reusing the
// worker-owned src Mat and float buffer. OpenCV faults surface as panics
// from cgo, so they are converted into ordinary errors here.
func processSlice(vol *volume.Volume, index int, stats volume.GlobalStats, params EnhancementParams, enhancer *Enhancer, src gocv.Mat, floatBuf []float32) (frame gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enhancement failed: %v", r)
		}
	}()

	samples := vol.DecodeSlice(index, floatBuf)

	dst, err := src.DataPtrUint8()
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("accessing frame buffer: %w", err)
	}
	Normalize(samples, stats, dst)

	out := gocv.NewMat()
	if err := enhancer.Enhance(src, &out, params); err != nil {
		out.Close()
		return gocv.Mat{}, err
	}
	return out, nil
}

// CloseFrames releases a frame sequence produced by ProcessVolume.
func CloseFrames(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}
