package mrc

import (
	"encoding/binary"
	"fmt"
	"math"

	"mrc2movie/internal/volume"
)

// HeaderSize is the fixed MRC2014 main header length. Sample data starts
// at HeaderSize plus the extended header length (NSYMBT).
const HeaderSize = 1024

const (
	magicOffset = 208
	stampOffset = 212

	// Dimensions beyond this are taken as evidence of a misparsed or
	// non-MRC file rather than a real acquisition.
	maxReasonableDim = 1 << 20
)

// Mode is the MRC sample type field (word 4 of the header).
type Mode int32

const (
	ModeInt8           Mode = 0
	ModeInt16          Mode = 1
	ModeFloat32        Mode = 2
	ModeComplexInt16   Mode = 3
	ModeComplexFloat32 Mode = 4
	ModeUint16         Mode = 6
)

// DType maps a mode onto the in-memory sample type, rejecting complex
// and unknown modes.
func (m Mode) DType() (volume.DType, error) {
	switch m {
	case ModeInt8:
		return volume.Int8, nil
	case ModeInt16:
		return volume.Int16, nil
	case ModeFloat32:
		return volume.Float32, nil
	case ModeUint16:
		return volume.Uint16, nil
	case ModeComplexInt16, ModeComplexFloat32:
		return 0, fmt.Errorf("complex sample data (mode %d) is not supported", m)
	}
	return 0, fmt.Errorf("unsupported MRC mode %d", m)
}

// Header carries the subset of the MRC2014 main header the pipeline
// consumes. NX is the fastest axis (width), NZ the section count.
type Header struct {
	NX, NY, NZ int32
	Mode       Mode
	NSymbt     int32
	DMin       float32
	DMax       float32
	DMean      float32

	// HasMapMagic reports whether the "MAP " identifier was present.
	// Legacy pre-2014 files frequently omit it.
	HasMapMagic bool
	Order       binary.ByteOrder
}

// DataOffset is the byte position of the first sample.
func (h *Header) DataOffset() int64 {
	return HeaderSize + int64(h.NSymbt)
}

// detectByteOrder inspects the machine stamp and falls back to a
// dimension plausibility check for files with a zeroed stamp.
func detectByteOrder(buf []byte) binary.ByteOrder {
	switch buf[stampOffset] {
	case 0x44:
		return binary.LittleEndian
	case 0x11:
		return binary.BigEndian
	}
	nx := binary.LittleEndian.Uint32(buf[0:4])
	if nx > 0 && nx <= maxReasonableDim {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func parseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("file shorter than the %d-byte MRC header", HeaderSize)
	}

	order := detectByteOrder(buf)
	h := &Header{
		NX:     int32(order.Uint32(buf[0:])),
		NY:     int32(order.Uint32(buf[4:])),
		NZ:     int32(order.Uint32(buf[8:])),
		Mode:   Mode(order.Uint32(buf[12:])),
		DMin:   math.Float32frombits(order.Uint32(buf[76:])),
		DMax:   math.Float32frombits(order.Uint32(buf[80:])),
		DMean:  math.Float32frombits(order.Uint32(buf[84:])),
		NSymbt: int32(order.Uint32(buf[92:])),
		Order:  order,
	}
	h.HasMapMagic = string(buf[magicOffset:magicOffset+4]) == "MAP "

	if h.NX < 1 || h.NY < 1 || h.NZ < 1 ||
		h.NX > maxReasonableDim || h.NY > maxReasonableDim || h.NZ > maxReasonableDim {
		return nil, fmt.Errorf("implausible dimensions (%d, %d, %d): not an MRC file?", h.NX, h.NY, h.NZ)
	}
	if h.NSymbt < 0 {
		return nil, fmt.Errorf("negative extended header size %d", h.NSymbt)
	}
	// A missing MAP magic alone is tolerated (legacy pre-2014 file, the
	// caller logs a warning); an unrecognized mode is not.
	if _, err := h.Mode.DType(); err != nil {
		return nil, err
	}
	return h, nil
}
