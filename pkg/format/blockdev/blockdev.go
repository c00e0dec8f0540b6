// Package blockdev provides a read-only block-device view over disc image
// files.
//
// Optical images come in two shapes: plain ISO dumps, and CSO images that
// compress the ISO block by block. Open sniffs the container and returns a
// Device exposing the uncompressed sector view either way, so the filesystem
// layer above never knows which it got.
package blockdev

import (
	"fmt"
	"io"
	"os"
)

// Device is a random-access view over the uncompressed disc image.
type Device interface {
	io.ReaderAt

	// Size returns the uncompressed image size in bytes.
	Size() int64

	// Close releases the underlying file.
	Close() error
}

// Open constructs a Device over the image at path.
//
// CSO containers are detected by magic; anything else is served as a plain
// image. Open fails only when the file cannot be opened or a detected CSO
// container is malformed.
func Open(path string) (Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var head [4]byte
	n, err := f.ReadAt(head[:], 0)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("blockdev: reading %s: %w", path, err)
	}

	if n == 4 && string(head[:]) == csoMagic {
		dev, err := newCSODevice(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return dev, nil
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &fileDevice{f: f, size: fi.Size()}, nil
}

// fileDevice serves a plain, uncompressed image.
type fileDevice struct {
	f    *os.File
	size int64
}

func (d *fileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

func (d *fileDevice) Size() int64 {
	return d.size
}

func (d *fileDevice) Close() error {
	return d.f.Close()
}
