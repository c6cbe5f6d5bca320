package processing

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// EnhancementParams configure CLAHE for one pipeline run. Immutable once
// computed; shared by value with every worker.
type EnhancementParams struct {
	// ClipLimit bounds local histogram amplification.
	ClipLimit float64

	// TileGridSize partitions each slice into an NxN grid of
	// independently equalized tiles.
	TileGridSize int
}

func (p EnhancementParams) validate() error {
	if p.ClipLimit <= 0 {
		return fmt.Errorf("clip limit must be positive, got %g", p.ClipLimit)
	}
	if p.TileGridSize < 1 {
		return fmt.Errorf("tile grid size must be at least 1, got %d", p.TileGridSize)
	}
	return nil
}

// AdaptiveClipLimit scales a base clip limit to the observed dynamic
// range of a volume. Built tomograms have a narrow range and need gentle
// clipping; raw tilt series span tens of thousands of counts and need a
// far stronger limit to pull structure out of the noise.
func AdaptiveClipLimit(base, dataRange float64) float64 {
	switch {
	case dataRange < 1000:
		return clamp(base, 1, 5)
	case dataRange < 10000:
		return clamp(base*2, 5, 50)
	default:
		return clamp(base*10, 30, 1000)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Enhancer applies CLAHE, keeping one configured instance per parameter
// set so workers do not rebuild it for every slice. Instances are not
// safe for concurrent use; each worker owns its own Enhancer.
type Enhancer struct {
	cache map[EnhancementParams]gocv.CLAHE
}

func NewEnhancer() *Enhancer {
	return &Enhancer{cache: make(map[EnhancementParams]gocv.CLAHE)}
}

// Enhance equalizes src tile-by-tile into dst. Identical inputs produce
// identical output.
func (e *Enhancer) Enhance(src gocv.Mat, dst *gocv.Mat, p EnhancementParams) error {
	if err := p.validate(); err != nil {
		return err
	}
	cl, ok := e.cache[p]
	if !ok {
		cl = gocv.NewCLAHEWithParams(p.ClipLimit, image.Pt(p.TileGridSize, p.TileGridSize))
		e.cache[p] = cl
	}
	cl.Apply(src, dst)
	return nil
}

// Close releases every cached CLAHE instance.
func (e *Enhancer) Close() {
	for p, cl := range e.cache {
		cl.Close()
		delete(e.cache, p)
	}
}
