// Package volume holds the in-memory representation of a tomogram: a
// stack of equally sized 2-D slices with one sample type, plus the
// trimming and statistics operations the pipeline performs on it.
package volume

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType identifies the sample type of a volume.
type DType uint8

const (
	Int8 DType = iota
	Int16
	Uint16
	Float32
)

// Size returns the on-disk byte width of one sample.
func (d DType) Size() int {
	switch d {
	case Int8:
		return 1
	case Int16, Uint16:
		return 2
	case Float32:
		return 4
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Volume is a depth×height×width stack of samples. Raw holds the sample
// bytes in file byte order; trimmed volumes share the backing array of
// their parent.
type Volume struct {
	Depth  int
	Height int
	Width  int
	DType  DType
	Order  binary.ByteOrder
	Raw    []byte
}

// New validates the geometry against the raw byte length. A 2-D array is
// represented as depth 1.
func New(depth, height, width int, dtype DType, order binary.ByteOrder, raw []byte) (*Volume, error) {
	if depth < 1 || height < 1 || width < 1 {
		return nil, fmt.Errorf("invalid volume shape (%d, %d, %d)", depth, height, width)
	}
	want := depth * height * width * dtype.Size()
	if len(raw) != want {
		return nil, fmt.Errorf("volume data is %d bytes, shape (%d, %d, %d) %s needs %d",
			len(raw), depth, height, width, dtype, want)
	}
	return &Volume{
		Depth:  depth,
		Height: height,
		Width:  width,
		DType:  dtype,
		Order:  order,
		Raw:    raw,
	}, nil
}

// NumSamples is the total sample count.
func (v *Volume) NumSamples() int {
	return v.Depth * v.Height * v.Width
}

func (v *Volume) sliceBytesLen() int {
	return v.Height * v.Width * v.DType.Size()
}

// SliceBytes returns the raw bytes of slice i without copying.
func (v *Volume) SliceBytes(i int) []byte {
	n := v.sliceBytesLen()
	return v.Raw[i*n : (i+1)*n]
}

// DecodeSlice decodes slice i into float32 samples, reusing dst when it
// has sufficient capacity.
func (v *Volume) DecodeSlice(i int, dst []float32) []float32 {
	n := v.Height * v.Width
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]

	b := v.SliceBytes(i)
	switch v.DType {
	case Int8:
		for j := 0; j < n; j++ {
			dst[j] = float32(int8(b[j]))
		}
	case Int16:
		for j := 0; j < n; j++ {
			dst[j] = float32(int16(v.Order.Uint16(b[2*j:])))
		}
	case Uint16:
		for j := 0; j < n; j++ {
			dst[j] = float32(v.Order.Uint16(b[2*j:]))
		}
	case Float32:
		for j := 0; j < n; j++ {
			dst[j] = math.Float32frombits(v.Order.Uint32(b[4*j:]))
		}
	}
	return dst
}

// window returns the half-open slice interval [start, end) as a volume
// sharing this volume's backing array.
func (v *Volume) window(start, end int) *Volume {
	n := v.sliceBytesLen()
	return &Volume{
		Depth:  end - start,
		Height: v.Height,
		Width:  v.Width,
		DType:  v.DType,
		Order:  v.Order,
		Raw:    v.Raw[start*n : end*n],
	}
}
