// Package processing turns raw tomogram slices into display-ready 8-bit
// frames: global-statistics normalization followed by CLAHE contrast
// enhancement, fanned out over a bounded worker pool.
package processing

import "mrc2movie/internal/volume"

// Normalize maps samples into [0, 255] using the run-global minimum and
// maximum, writing into dst (which must be len(samples) long). Per-slice
// statistics are deliberately not an option here: they would break
// relative brightness between frames.
//
// When the global range is empty every output is 0.
func Normalize(samples []float32, stats volume.GlobalStats, dst []uint8) {
	if stats.Max <= stats.Min {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	min := float32(stats.Min)
	scale := float32(255.0 / (stats.Max - stats.Min))
	for i, s := range samples {
		f := (s - min) * scale
		switch {
		case f <= 0:
			dst[i] = 0
		case f >= 255:
			dst[i] = 255
		default:
			dst[i] = uint8(f + 0.5)
		}
	}
}
