package volume

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// GlobalStats are the volume-wide minimum and maximum sample values,
// computed once per run and shared read-only by every slice worker.
// Min == Max is legal and degenerates normalization to a constant frame.
type GlobalStats struct {
	Min float64
	Max float64
}

// Range is the dynamic range of the volume.
func (s GlobalStats) Range() float64 {
	return s.Max - s.Min
}

// ComputeStats scans every sample once. NaN samples (possible in
// float32 volumes) are ignored; an all-NaN volume yields Min == Max == 0.
func (v *Volume) ComputeStats() GlobalStats {
	min := math.Inf(1)
	max := math.Inf(-1)

	buf := make([]float32, v.Height*v.Width)
	for i := 0; i < v.Depth; i++ {
		for _, s := range v.DecodeSlice(i, buf) {
			f := float64(s)
			if math.IsNaN(f) {
				continue
			}
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
		}
	}

	if min > max {
		return GlobalStats{}
	}
	return GlobalStats{Min: min, Max: max}
}

// SampleSummary estimates the mean and standard deviation from an evenly
// strided subsample of at most maxSamples values. It exists for read-time
// reporting, not for normalization.
func (v *Volume) SampleSummary(maxSamples int) (mean, stddev float64) {
	total := v.NumSamples()
	if maxSamples < 1 {
		maxSamples = 1
	}
	stride := total / maxSamples
	if stride < 1 {
		stride = 1
	}

	xs := make([]float64, 0, total/stride+1)
	perSlice := v.Height * v.Width
	buf := make([]float32, perSlice)
	next := 0
	for i := 0; i < v.Depth; i++ {
		samples := v.DecodeSlice(i, buf)
		base := i * perSlice
		for ; next < base+perSlice; next += stride {
			f := float64(samples[next-base])
			if !math.IsNaN(f) {
				xs = append(xs, f)
			}
		}
	}
	if len(xs) == 0 {
		return 0, 0
	}
	return stat.Mean(xs, nil), stat.StdDev(xs, nil)
}
