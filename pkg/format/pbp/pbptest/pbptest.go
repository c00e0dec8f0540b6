// Package pbptest builds synthetic PBP containers for tests.
package pbptest

import (
	"encoding/binary"
	"os"
	"testing"
)

// Build encodes up to eight sub-entries into a PBP container.
// Nil or empty entries are encoded as absent (zero size).
func Build(entries ...[]byte) []byte {
	const entryCount = 8
	const headerSize = 8 + entryCount*4

	if len(entries) > entryCount {
		panic("pbptest: too many entries")
	}

	out := make([]byte, headerSize)
	copy(out, []byte{0x00, 'P', 'B', 'P'})
	binary.LittleEndian.PutUint32(out[4:8], 0x00010000)

	offset := uint32(headerSize)
	for i := 0; i < entryCount; i++ {
		binary.LittleEndian.PutUint32(out[8+i*4:], offset)
		if i < len(entries) {
			out = append(out, entries[i]...)
			offset += uint32(len(entries[i]))
		}
	}

	return out
}

// WriteFile builds a container and writes it to path.
func WriteFile(t *testing.T, path string, entries ...[]byte) {
	t.Helper()
	if err := os.WriteFile(path, Build(entries...), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
