// Package pbp reads PBP bundle containers.
//
// A PBP file is a flat container with a fixed table of eight sub-entries
// (PARAM.SFO, ICON0.PNG, ICON1.PMF, PIC0.PNG, PIC1.PNG, SND0.AT3, DATA.PSP,
// DATA.PSAR). The header stores the start offset of each entry; an entry's
// size is the distance to the next offset, and a zero-size entry is absent.
package pbp

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Sub-entry indices, in header order.
const (
	EntryParamSFO = iota
	EntryIcon0
	EntryIcon1
	EntryPic0
	EntryPic1
	EntrySnd0
	EntryDataPSP
	EntryDataPSAR

	entryCount = 8
)

// EntryNames maps sub-entry indices to their conventional file names.
var EntryNames = [entryCount]string{
	"PARAM.SFO", "ICON0.PNG", "ICON1.PMF", "PIC0.PNG",
	"PIC1.PNG", "SND0.AT3", "DATA.PSP", "DATA.PSAR",
}

const headerSize = 8 + entryCount*4

var magic = []byte{0x00, 'P', 'B', 'P'}

// Reader provides random access to the sub-entries of one PBP container.
// It is safe for concurrent use.
type Reader struct {
	ra      io.ReaderAt
	closer  io.Closer
	offsets [entryCount + 1]int64 // offsets[entryCount] is the container size
}

// Open opens the container at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r, err := NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader validates the header and returns a reader over ra.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	var header [headerSize]byte
	if _, err := ra.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("pbp: reading header: %w", err)
	}

	for i, b := range magic {
		if header[i] != b {
			return nil, fmt.Errorf("pbp: bad magic %q", header[0:4])
		}
	}

	r := &Reader{ra: ra}
	for i := 0; i < entryCount; i++ {
		r.offsets[i] = int64(binary.LittleEndian.Uint32(header[8+i*4:]))
	}
	r.offsets[entryCount] = size

	prev := int64(headerSize)
	for i := 0; i <= entryCount; i++ {
		if r.offsets[i] < prev || r.offsets[i] > size {
			return nil, fmt.Errorf("pbp: entry %d offset %d out of order", i, r.offsets[i])
		}
		prev = r.offsets[i]
	}

	return r, nil
}

// SubFileSize returns the size in bytes of sub-entry i, 0 when absent.
func (r *Reader) SubFileSize(i int) int64 {
	if i < 0 || i >= entryCount {
		return 0
	}
	return r.offsets[i+1] - r.offsets[i]
}

// ReadSubFile reads the whole sub-entry i.
// Absent entries return os.ErrNotExist.
func (r *Reader) ReadSubFile(i int) ([]byte, error) {
	size := r.SubFileSize(i)
	if size == 0 {
		return nil, os.ErrNotExist
	}

	buf := make([]byte, size)
	if _, err := r.ra.ReadAt(buf, r.offsets[i]); err != nil {
		return nil, fmt.Errorf("pbp: reading %s: %w", EntryNames[i], err)
	}
	return buf, nil
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
