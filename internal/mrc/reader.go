// Package mrc reads tomogram volumes from MRC2014 files (and the
// extension family .mrc/.mrcs/.rec/.st/.map) through memory-mapped
// access, so header checks and capacity pre-flight happen before any
// sample data is faulted in.
package mrc

import (
	"fmt"

	"golang.org/x/exp/mmap"

	"mrc2movie/internal/logger"
	"mrc2movie/internal/volume"
)

// ReadError marks an input file as unreadable, corrupt, or of an
// unsupported layout. Fatal for that file only.
type ReadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("read %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("read %s: %s", e.Path, e.Reason)
}

func (e *ReadError) Unwrap() error { return e.Err }

const (
	defaultWarnBytes = 2 << 30
	criticalBytes    = 8 << 30

	// Processing holds float32 and uint8 copies next to the raw
	// samples, roughly 2.5x the on-disk data.
	footprintOverhead = 2.5
)

// ReadOptions tunes reader side effects, not its contract.
type ReadOptions struct {
	// WarnBytes is the estimated processing footprint above which Open
	// logs a capacity warning. Zero applies the 2 GiB default.
	WarnBytes int64
}

// Info summarizes a file's geometry without touching sample data.
type Info struct {
	Path            string
	Depth           int
	Height          int
	Width           int
	DType           volume.DType
	DataBytes       int64
	ProcessingBytes int64
}

// Stat parses only the header of an MRC file.
func Stat(path string) (*Info, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Reason: "open", Err: err}
	}
	defer r.Close()

	hdr, err := readHeader(path, r)
	if err != nil {
		return nil, err
	}
	return infoFromHeader(path, hdr), nil
}

func infoFromHeader(path string, hdr *Header) *Info {
	dtype, _ := hdr.Mode.DType()
	dataBytes := int64(hdr.NX) * int64(hdr.NY) * int64(hdr.NZ) * int64(dtype.Size())
	return &Info{
		Path:            path,
		Depth:           int(hdr.NZ),
		Height:          int(hdr.NY),
		Width:           int(hdr.NX),
		DType:           dtype,
		DataBytes:       dataBytes,
		ProcessingBytes: int64(float64(dataBytes) * footprintOverhead),
	}
}

func readHeader(path string, r *mmap.ReaderAt) (*Header, error) {
	if r.Len() < HeaderSize {
		return nil, &ReadError{Path: path, Reason: fmt.Sprintf("file is %d bytes, smaller than the MRC header", r.Len())}
	}
	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, &ReadError{Path: path, Reason: "reading header", Err: err}
	}
	hdr, err := parseHeader(buf)
	if err != nil {
		return nil, &ReadError{Path: path, Reason: "parsing header", Err: err}
	}
	return hdr, nil
}

// Open reads a whole volume into memory. A 2-D image (NZ == 1) comes
// back as a depth-1 volume. The mapping is released before returning;
// the caller owns a private copy of the samples.
func Open(path string, opts ReadOptions, log logger.Logger) (*volume.Volume, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Reason: "open", Err: err}
	}
	defer r.Close()

	hdr, err := readHeader(path, r)
	if err != nil {
		return nil, err
	}
	if !hdr.HasMapMagic {
		log.Warning("reader", "missing MAP magic, assuming legacy MRC layout", map[string]interface{}{
			"path": path,
		})
	}

	info := infoFromHeader(path, hdr)
	if end := hdr.DataOffset() + info.DataBytes; int64(r.Len()) < end {
		return nil, &ReadError{
			Path:   path,
			Reason: fmt.Sprintf("truncated data section: need %d bytes, file has %d", end, r.Len()),
		}
	}

	warnAt := opts.WarnBytes
	if warnAt <= 0 {
		warnAt = defaultWarnBytes
	}
	switch {
	case info.ProcessingBytes > criticalBytes:
		log.Warning("reader", "very large volume, processing may exceed available RAM", map[string]interface{}{
			"path":          path,
			"footprint_gib": float64(info.ProcessingBytes) / (1 << 30),
		})
	case info.ProcessingBytes > warnAt:
		log.Warning("reader", "large volume detected", map[string]interface{}{
			"path":          path,
			"footprint_gib": float64(info.ProcessingBytes) / (1 << 30),
		})
	}

	raw := make([]byte, info.DataBytes)
	if _, err := r.ReadAt(raw, hdr.DataOffset()); err != nil {
		return nil, &ReadError{Path: path, Reason: "reading sample data", Err: err}
	}

	vol, err := volume.New(info.Depth, info.Height, info.Width, info.DType, hdr.Order, raw)
	if err != nil {
		return nil, &ReadError{Path: path, Reason: "assembling volume", Err: err}
	}

	log.Info("reader", "volume loaded", map[string]interface{}{
		"path":    path,
		"shape":   fmt.Sprintf("(%d, %d, %d)", vol.Depth, vol.Height, vol.Width),
		"dtype":   vol.DType.String(),
		"data_mb": float64(info.DataBytes) / (1 << 20),
		"dmin":    hdr.DMin,
		"dmax":    hdr.DMax,
		"dmean":   hdr.DMean,
	})
	return vol, nil
}
