package volume

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// gradientVolume builds a depth×4×4 int16 volume where every sample of
// slice i has value base+i, so slices are easy to tell apart.
func gradientVolume(t *testing.T, depth int, base int16) *Volume {
	t.Helper()
	raw := make([]byte, depth*4*4*2)
	for i := 0; i < depth; i++ {
		for j := 0; j < 16; j++ {
			binary.LittleEndian.PutUint16(raw[(i*16+j)*2:], uint16(base+int16(i)))
		}
	}
	v, err := New(depth, 4, 4, Int16, binary.LittleEndian, raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func sliceValue(t *testing.T, v *Volume, i int) float32 {
	t.Helper()
	samples := v.DecodeSlice(i, nil)
	for _, s := range samples {
		if s != samples[0] {
			t.Fatalf("slice %d is not uniform", i)
		}
	}
	return samples[0]
}

func TestNewRejectsBadGeometry(t *testing.T) {
	if _, err := New(0, 4, 4, Int8, binary.LittleEndian, nil); err == nil {
		t.Error("zero depth should fail")
	}
	if _, err := New(2, 4, 4, Int8, binary.LittleEndian, make([]byte, 31)); err == nil {
		t.Error("mismatched raw length should fail")
	}
}

func TestDecodeSliceDTypes(t *testing.T) {
	cases := []struct {
		dtype DType
		raw   []byte
		want  []float32
	}{
		{Int8, []byte{0x80, 0xFF, 0x00, 0x7F}, []float32{-128, -1, 0, 127}},
		{Int16, []byte{0x00, 0x80, 0xFF, 0xFF, 0x00, 0x00, 0xFF, 0x7F},
			[]float32{-32768, -1, 0, 32767}},
		{Uint16, []byte{0x00, 0x00, 0x01, 0x00, 0xFF, 0xFF, 0x00, 0x01},
			[]float32{0, 1, 65535, 256}},
	}
	for _, tc := range cases {
		t.Run(tc.dtype.String(), func(t *testing.T) {
			v, err := New(1, 2, 2, tc.dtype, binary.LittleEndian, tc.raw)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			got := v.DecodeSlice(0, nil)
			for j := range tc.want {
				if got[j] != tc.want[j] {
					t.Errorf("sample %d = %g, want %g", j, got[j], tc.want[j])
				}
			}
		})
	}
}

func TestDecodeSliceFloat32BigEndian(t *testing.T) {
	raw := make([]byte, 4*4)
	vals := []float32{-1.5, 0, 2.25, 1e6}
	for j, f := range vals {
		binary.BigEndian.PutUint32(raw[4*j:], math.Float32bits(f))
	}
	v, err := New(1, 2, 2, Float32, binary.BigEndian, raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := v.DecodeSlice(0, nil)
	for j := range vals {
		if got[j] != vals[j] {
			t.Errorf("sample %d = %g, want %g", j, got[j], vals[j])
		}
	}
}

func TestSelectIndexRange(t *testing.T) {
	v := gradientVolume(t, 10, 0)

	got, err := Select(v, &IndexRange{Start: 2, End: 5}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Depth != 3 {
		t.Fatalf("depth = %d, want 3", got.Depth)
	}
	for i, want := range []float32{2, 3, 4} {
		if val := sliceValue(t, got, i); val != want {
			t.Errorf("slice %d value = %g, want %g", i, val, want)
		}
	}
}

func TestSelectFullRangeIsIdentity(t *testing.T) {
	v := gradientVolume(t, 10, 0)
	got, err := Select(v, &IndexRange{Start: 0, End: 10}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Depth != 10 || sliceValue(t, got, 0) != 0 || sliceValue(t, got, 9) != 9 {
		t.Error("full range should return the unmodified volume")
	}
}

func TestSelectInvalidIndexRange(t *testing.T) {
	v := gradientVolume(t, 10, 0)
	cases := []IndexRange{
		{Start: 5, End: 5},
		{Start: 6, End: 5},
		{Start: -1, End: 5},
		{Start: 0, End: 11},
	}
	for _, r := range cases {
		_, err := Select(v, &r, nil)
		var rangeErr *RangeError
		if !errors.As(err, &rangeErr) {
			t.Errorf("range [%d,%d): got %v, want RangeError", r.Start, r.End, err)
		}
	}
}

func TestSelectFractionRange(t *testing.T) {
	v := gradientVolume(t, 10, 0)

	got, err := Select(v, nil, &FractionRange{Start: 0.1, End: 0.1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Depth != 8 {
		t.Fatalf("depth = %d, want 8", got.Depth)
	}
	if first := sliceValue(t, got, 0); first != 1 {
		t.Errorf("first kept slice = %g, want 1", first)
	}
	if last := sliceValue(t, got, 7); last != 8 {
		t.Errorf("last kept slice = %g, want 8", last)
	}
}

func TestSelectInvalidFractions(t *testing.T) {
	v := gradientVolume(t, 10, 0)
	cases := []FractionRange{
		{Start: -0.1, End: 0.1},
		{Start: 0.1, End: 1.0},
		{Start: 0.6, End: 0.6},
	}
	for _, r := range cases {
		_, err := Select(v, nil, &r)
		var rangeErr *RangeError
		if !errors.As(err, &rangeErr) {
			t.Errorf("fractions (%g,%g): got %v, want RangeError", r.Start, r.End, err)
		}
	}
}

func TestSelectNoRangesPassesThrough(t *testing.T) {
	v := gradientVolume(t, 4, 0)
	got, err := Select(v, nil, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != v {
		t.Error("volume should pass through unchanged")
	}
}

func TestSelectIndexRangeWins(t *testing.T) {
	v := gradientVolume(t, 10, 0)
	got, err := Select(v, &IndexRange{Start: 0, End: 4}, &FractionRange{Start: 0.4, End: 0.4})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Depth != 4 || sliceValue(t, got, 0) != 0 {
		t.Error("index range must take precedence over fractions")
	}
}

func TestComputeStats(t *testing.T) {
	v := gradientVolume(t, 10, -3)
	stats := v.ComputeStats()
	if stats.Min != -3 || stats.Max != 6 {
		t.Errorf("stats = (%g, %g), want (-3, 6)", stats.Min, stats.Max)
	}
	if stats.Range() != 9 {
		t.Errorf("range = %g, want 9", stats.Range())
	}
}

func TestComputeStatsConstantVolume(t *testing.T) {
	raw := make([]byte, 3*2*2)
	for i := range raw {
		raw[i] = 42
	}
	v, err := New(3, 2, 2, Int8, binary.LittleEndian, raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stats := v.ComputeStats()
	if stats.Min != 42 || stats.Max != 42 {
		t.Errorf("stats = (%g, %g), want (42, 42)", stats.Min, stats.Max)
	}
}

func TestComputeStatsSkipsNaN(t *testing.T) {
	raw := make([]byte, 4*4)
	vals := []float32{1, float32(math.NaN()), 3, 2}
	for j, f := range vals {
		binary.LittleEndian.PutUint32(raw[4*j:], math.Float32bits(f))
	}
	v, err := New(1, 2, 2, Float32, binary.LittleEndian, raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stats := v.ComputeStats()
	if stats.Min != 1 || stats.Max != 3 {
		t.Errorf("stats = (%g, %g), want (1, 3)", stats.Min, stats.Max)
	}
}

func TestSampleSummary(t *testing.T) {
	// All samples equal: mean is the value, spread is zero.
	raw := make([]byte, 5*4*4)
	for i := range raw {
		raw[i] = 7
	}
	v, err := New(5, 4, 4, Int8, binary.LittleEndian, raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mean, stddev := v.SampleSummary(16)
	if mean != 7 {
		t.Errorf("mean = %g, want 7", mean)
	}
	if stddev != 0 {
		t.Errorf("stddev = %g, want 0", stddev)
	}
}
