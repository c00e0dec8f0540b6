// Package format wires the concrete game-image formats into the cache's
// collaborator contracts.
//
// The gameinfo core only knows capability interfaces (Bundle, Volume,
// MetadataCodec); this package provides the production implementations:
// PBP containers, PARAM.SFO metadata, and ISO9660 volumes mounted over
// plain or CSO-compressed block devices.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kdomanski/iso9660"

	"github.com/gameshelf/gameshelf/pkg/format/blockdev"
	"github.com/gameshelf/gameshelf/pkg/format/pbp"
	"github.com/gameshelf/gameshelf/pkg/format/sfo"
	"github.com/gameshelf/gameshelf/pkg/gameinfo"
)

// Opener is the production gameinfo.Opener.
type Opener struct{}

// NewOpener returns the production format opener.
func NewOpener() Opener {
	return Opener{}
}

// OpenBundle opens a PBP container.
func (Opener) OpenBundle(path string) (gameinfo.Bundle, error) {
	r, err := pbp.Open(path)
	if err != nil {
		return nil, err
	}
	return &bundleReader{r: r}, nil
}

// OpenVolume constructs a block device over the image and mounts a
// read-only ISO9660 filesystem on it.
func (Opener) OpenVolume(path string) (gameinfo.Volume, error) {
	dev, err := blockdev.Open(path)
	if err != nil {
		return nil, err
	}

	img, err := iso9660.OpenImage(dev)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("mounting %s: %w", path, err)
	}

	return &isoVolume{dev: dev, img: img}, nil
}

// bundleReader adapts pbp.Reader to the named sub-entry contract.
type bundleReader struct {
	r *pbp.Reader
}

func (b *bundleReader) ReadSubFile(name string) ([]byte, error) {
	for i, entryName := range pbp.EntryNames {
		if strings.EqualFold(entryName, name) {
			return b.r.ReadSubFile(i)
		}
	}
	return nil, fmt.Errorf("entry %s: %w", name, os.ErrNotExist)
}

func (b *bundleReader) Close() error {
	return b.r.Close()
}

// isoVolume serves whole-file reads from a mounted ISO9660 image.
type isoVolume struct {
	dev blockdev.Device
	img *iso9660.Image
}

// ReadFile walks the directory tree to path and reads the full file.
// ISO9660 identifiers are matched case-insensitively and without the ";1"
// version suffix some mastering tools emit.
func (v *isoVolume) ReadFile(path string) ([]byte, error) {
	cur, err := v.img.RootDir()
	if err != nil {
		return nil, fmt.Errorf("reading volume root: %w", err)
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	for depth, part := range parts {
		if !cur.IsDir() {
			return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}

		children, err := cur.GetChildren()
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", strings.Join(parts[:depth], "/"), err)
		}

		var next *iso9660.File
		for _, child := range children {
			if strings.EqualFold(identifier(child.Name()), part) {
				next = child
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		cur = next
	}

	if cur.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	data, err := io.ReadAll(cur.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (v *isoVolume) Close() error {
	return v.dev.Close()
}

// identifier strips the ISO9660 file version suffix.
func identifier(name string) string {
	if i := strings.IndexByte(name, ';'); i >= 0 {
		return name[:i]
	}
	return name
}

// Codec is the production gameinfo.MetadataCodec over PARAM.SFO.
type Codec struct{}

// NewCodec returns the production metadata codec.
func NewCodec() Codec {
	return Codec{}
}

// Parse flattens a PARAM.SFO blob into string attributes.
func (Codec) Parse(data []byte) (map[string]string, error) {
	table, err := sfo.Parse(data)
	if err != nil {
		return nil, err
	}
	return table.Map(), nil
}
