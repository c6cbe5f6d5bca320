// Package encode turns a processed frame sequence into a video file
// and/or a numbered PNG sequence, with a shared never-upscale resize
// policy.
package encode

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"mrc2movie/internal/logger"
)

// PlaybackMode selects the frame emission order.
type PlaybackMode string

const (
	PlaybackForward         PlaybackMode = "forward"
	PlaybackForwardBackward PlaybackMode = "forward-backward"
)

// OutputSpec configures one volume's encoded outputs.
type OutputSpec struct {
	FPS   float64
	Codec string
	// Playback defaults to forward for unrecognized values.
	Playback PlaybackMode
	// MaxDimension bounds the longest output side; zero keeps native
	// resolution. Frames are never upscaled.
	MaxDimension int
}

// EncodeError marks a failure to open or write an output artifact.
// Fatal for that artifact only; sibling outputs and files continue.
type EncodeError struct {
	Path  string
	Stage string
	Err   error
}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encode %s: %s: %v", e.Path, e.Stage, e.Err)
	}
	return fmt.Sprintf("encode %s: %s", e.Path, e.Stage)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// TargetSize applies the resize policy: scale both sides by
// min(maxDim/longest, 1), preserving aspect ratio and never upscaling.
// Each side is clamped to at least 1 pixel so extreme aspect ratios
// still produce a size the encoder accepts.
func TargetSize(width, height, maxDim int) (int, int) {
	if maxDim <= 0 {
		return width, height
	}
	longest := width
	if height > longest {
		longest = height
	}
	scale := math.Min(float64(maxDim)/float64(longest), 1.0)
	w := int(float64(width) * scale)
	h := int(float64(height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Sequence returns frame indices in playback order. Forward-backward
// appends the reverse pass without repeating the last or first frame, so
// the loop is seamless: 4 frames emit indices 0 1 2 3 2 1. A single
// frame emits once regardless of mode.
func Sequence(depth int, mode PlaybackMode) []int {
	indices := make([]int, 0, 2*depth)
	for i := 0; i < depth; i++ {
		indices = append(indices, i)
	}
	if mode == PlaybackForwardBackward {
		for i := depth - 2; i >= 1; i-- {
			indices = append(indices, i)
		}
	}
	return indices
}

// WriteVideo encodes frames into a single grayscale video file. All
// frames are resized identically per the spec's max dimension. Failure
// to open the writer or to write any frame is fatal for this video.
func WriteVideo(path string, frames []gocv.Mat, spec OutputSpec, log logger.Logger) error {
	if len(frames) == 0 {
		return &EncodeError{Path: path, Stage: "open", Err: fmt.Errorf("no frames to encode")}
	}

	width, height := frames[0].Cols(), frames[0].Rows()
	targetW, targetH := TargetSize(width, height, spec.MaxDimension)

	writer, err := gocv.VideoWriterFile(path, spec.Codec, spec.FPS, targetW, targetH, false)
	if err != nil {
		return &EncodeError{Path: path, Stage: "open", Err: err}
	}
	defer writer.Close()
	if !writer.IsOpened() {
		return &EncodeError{Path: path, Stage: "open", Err: fmt.Errorf("video writer rejected codec %q", spec.Codec)}
	}

	resize := targetW != width || targetH != height
	var buf gocv.Mat
	if resize {
		buf = gocv.NewMat()
		defer buf.Close()
	}

	sequence := Sequence(len(frames), spec.Playback)
	for _, i := range sequence {
		frame := frames[i]
		if resize {
			gocv.Resize(frame, &buf, image.Pt(targetW, targetH), 0, 0, gocv.InterpolationArea)
			frame = buf
		}
		if err := writer.Write(frame); err != nil {
			return &EncodeError{Path: path, Stage: fmt.Sprintf("writing frame %d", i), Err: err}
		}
	}

	log.Info("encode", "video written", map[string]interface{}{
		"path":     path,
		"frames":   len(sequence),
		"fps":      spec.FPS,
		"codec":    spec.Codec,
		"playback": string(spec.Playback),
		"size":     fmt.Sprintf("%dx%d", targetW, targetH),
	})
	return nil
}
