package encode

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"mrc2movie/internal/logger"
)

const (
	pngCompression = 6
	maxPNGWorkers  = 32

	// SliceDirSuffix names the per-volume PNG subdirectory.
	SliceDirSuffix = "_slices"
)

// WritePNGSequence writes one numbered PNG per frame under
// <dir>/<baseName>_slices, 4-digit zero-padded. A single-frame sequence
// is written as one <dir>/<baseName>.png instead. Writes are spread over
// a bounded I/O pool; individual frame failures are logged per index and
// do not abort the remaining writes. An error comes back only when not a
// single frame made it to disk.
func WritePNGSequence(dir, baseName string, frames []gocv.Mat, maxDim, workers int, log logger.Logger) error {
	if len(frames) == 0 {
		return &EncodeError{Path: dir, Stage: "png sequence", Err: fmt.Errorf("no frames to write")}
	}

	if len(frames) == 1 {
		path := filepath.Join(dir, baseName+".png")
		if err := writePNG(path, frames[0], maxDim); err != nil {
			return err
		}
		log.Info("encode", "single-slice image written", map[string]interface{}{"path": path})
		return nil
	}

	pngDir := filepath.Join(dir, baseName+SliceDirSuffix)
	if err := os.MkdirAll(pngDir, 0o755); err != nil {
		return &EncodeError{Path: pngDir, Stage: "creating slice directory", Err: err}
	}

	if workers <= 0 {
		workers = 4 * runtime.NumCPU()
	}
	if workers > maxPNGWorkers {
		workers = maxPNGWorkers
	}
	if workers > len(frames) {
		workers = len(frames)
	}

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		failures atomic.Int64
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := filepath.Join(pngDir, fmt.Sprintf("%s_%04d.png", baseName, i))
				if err := writePNG(path, frames[i], maxDim); err != nil {
					failures.Add(1)
					log.Error("encode", err, map[string]interface{}{"slice": i})
				}
			}
		}()
	}

	for i := range frames {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	written := int64(len(frames)) - failures.Load()
	if written == 0 {
		return &EncodeError{
			Path:  pngDir,
			Stage: "png sequence",
			Err:   fmt.Errorf("all %d frame writes failed", len(frames)),
		}
	}

	fields := map[string]interface{}{
		"dir":    pngDir,
		"frames": written,
	}
	if n := failures.Load(); n > 0 {
		fields["failed"] = n
		log.Warning("encode", "png sequence written with failures", fields)
	} else {
		log.Info("encode", "png sequence written", fields)
	}
	return nil
}

// writePNG resizes one frame per the output policy and writes it with
// balanced compression. Each caller resizes into its own scratch Mat, so
// shared frames are only ever read.
func writePNG(path string, frame gocv.Mat, maxDim int) error {
	targetW, targetH := TargetSize(frame.Cols(), frame.Rows(), maxDim)

	img := frame
	if targetW != frame.Cols() || targetH != frame.Rows() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(frame, &resized, image.Pt(targetW, targetH), 0, 0, gocv.InterpolationArea)
		img = resized
	}

	if ok := gocv.IMWriteWithParams(path, img, []int{gocv.IMWritePngCompression, pngCompression}); !ok {
		return &EncodeError{Path: path, Stage: "writing png", Err: fmt.Errorf("image encoder refused the frame")}
	}
	return nil
}
