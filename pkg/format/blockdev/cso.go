package blockdev

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const csoMagic = "CISO"

// csoHeader is the 24-byte on-disk header of a CSO v1 container.
//
//	0x00  magic        "CISO"
//	0x04  header size  uint32 (unreliable in the wild, ignored)
//	0x08  total bytes  uint64 (uncompressed image size)
//	0x10  block size   uint32 (usually 2048)
//	0x14  version      uint8
//	0x15  align        uint8  (index entries are shifted left by this)
//	0x16  reserved     uint16
type csoHeader struct {
	Magic      [4]byte
	HeaderSize uint32
	TotalBytes uint64
	BlockSize  uint32
	Version    uint8
	Align      uint8
	_          uint16
}

// csoDevice decompresses a CSO container block by block on demand.
//
// Each index entry holds the file position of its block shifted right by
// align; bit 31 marks a block stored raw (the compressor left it alone
// because deflate would have grown it). Blocks compress independently with
// raw deflate, so random access never inflates more than one block.
type csoDevice struct {
	f         *os.File
	totalSize int64
	blockSize int64
	align     uint8
	index     []uint32
}

const csoPlainBlock = 0x80000000

func newCSODevice(f *os.File) (*csoDevice, error) {
	var hdr csoHeader
	sr := io.NewSectionReader(f, 0, 24)
	if err := binary.Read(sr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("blockdev: cso header: %w", err)
	}

	if hdr.BlockSize == 0 || hdr.TotalBytes == 0 {
		return nil, fmt.Errorf("blockdev: cso header: zero block or total size")
	}
	if hdr.Version > 1 {
		return nil, fmt.Errorf("blockdev: unsupported cso version %d", hdr.Version)
	}

	blocks := (hdr.TotalBytes + uint64(hdr.BlockSize) - 1) / uint64(hdr.BlockSize)
	index := make([]uint32, blocks+1)
	ir := io.NewSectionReader(f, 24, int64(len(index))*4)
	if err := binary.Read(ir, binary.LittleEndian, index); err != nil {
		return nil, fmt.Errorf("blockdev: cso index: %w", err)
	}

	return &csoDevice{
		f:         f,
		totalSize: int64(hdr.TotalBytes),
		blockSize: int64(hdr.BlockSize),
		align:     hdr.Align,
		index:     index,
	}, nil
}

func (d *csoDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blockdev: negative offset %d", off)
	}
	if off >= d.totalSize {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < d.totalSize {
		blockIdx := off / d.blockSize
		blockOff := off % d.blockSize

		block, err := d.readBlock(blockIdx)
		if err != nil {
			return n, err
		}

		c := copy(p[n:], block[blockOff:])
		n += c
		off += int64(c)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// readBlock inflates (or copies) one block of the image.
func (d *csoDevice) readBlock(i int64) ([]byte, error) {
	if i < 0 || i >= int64(len(d.index))-1 {
		return nil, io.EOF
	}

	start := int64(d.index[i]&^uint32(csoPlainBlock)) << d.align
	end := int64(d.index[i+1]&^uint32(csoPlainBlock)) << d.align
	if end <= start {
		return nil, fmt.Errorf("blockdev: cso block %d spans nothing", i)
	}

	// The final block of an unaligned image is short.
	want := d.blockSize
	if rem := d.totalSize - i*d.blockSize; rem < want {
		want = rem
	}

	raw := make([]byte, end-start)
	if _, err := d.f.ReadAt(raw, start); err != nil {
		return nil, fmt.Errorf("blockdev: cso block %d: %w", i, err)
	}

	if d.index[i]&csoPlainBlock != 0 {
		if int64(len(raw)) < want {
			return nil, fmt.Errorf("blockdev: cso plain block %d truncated", i)
		}
		return raw[:want], nil
	}

	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()

	out := make([]byte, want)
	if _, err := io.ReadFull(fr, out); err != nil {
		return nil, fmt.Errorf("blockdev: cso block %d inflate: %w", i, err)
	}
	return out, nil
}

func (d *csoDevice) Size() int64 {
	return d.totalSize
}

func (d *csoDevice) Close() error {
	return d.f.Close()
}
