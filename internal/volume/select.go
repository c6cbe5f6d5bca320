package volume

import "fmt"

// RangeError reports discard bounds that cannot be applied to a volume.
// Bounds are never silently clamped.
type RangeError struct {
	Depth  int
	Detail string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid slice range for depth-%d volume: %s", e.Depth, e.Detail)
}

// IndexRange keeps slices [Start, End) by absolute index.
type IndexRange struct {
	Start int
	End   int
}

// FractionRange trims floor(depth*Start) slices from the front and
// floor(depth*End) from the back.
type FractionRange struct {
	Start float64
	End   float64
}

// Select trims a contiguous run of slices from either end of the volume.
// With neither range the volume passes through unchanged. When both are
// supplied the index range wins; configuration validation is expected to
// reject that combination before it reaches here.
func Select(v *Volume, idx *IndexRange, frac *FractionRange) (*Volume, error) {
	switch {
	case idx != nil:
		if idx.Start < 0 || idx.End > v.Depth || idx.Start >= idx.End {
			return nil, &RangeError{
				Depth:  v.Depth,
				Detail: fmt.Sprintf("index range [%d, %d)", idx.Start, idx.End),
			}
		}
		return v.window(idx.Start, idx.End), nil

	case frac != nil:
		if frac.Start < 0 || frac.Start >= 1 || frac.End < 0 || frac.End >= 1 {
			return nil, &RangeError{
				Depth:  v.Depth,
				Detail: fmt.Sprintf("fractions (%g, %g) must lie in [0, 1)", frac.Start, frac.End),
			}
		}
		start := int(float64(v.Depth) * frac.Start)
		end := v.Depth - int(float64(v.Depth)*frac.End)
		if start >= end {
			return nil, &RangeError{
				Depth:  v.Depth,
				Detail: fmt.Sprintf("fractions (%g, %g) leave no slices", frac.Start, frac.End),
			}
		}
		return v.window(start, end), nil
	}

	return v, nil
}
