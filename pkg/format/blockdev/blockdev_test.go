package blockdev

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCSO compresses image into a CSO v1 container with the given block
// size. Blocks listed in plainBlocks are stored raw.
func buildCSO(t *testing.T, image []byte, blockSize uint32, plainBlocks map[int]bool) []byte {
	t.Helper()

	blocks := (len(image) + int(blockSize) - 1) / int(blockSize)
	index := make([]uint32, blocks+1)

	var body bytes.Buffer
	headerLen := 24 + len(index)*4

	for i := 0; i < blocks; i++ {
		pos := uint32(headerLen + body.Len())
		start := i * int(blockSize)
		end := start + int(blockSize)
		if end > len(image) {
			end = len(image)
		}
		block := image[start:end]

		if plainBlocks[i] {
			index[i] = pos | 0x80000000
			body.Write(block)
		} else {
			index[i] = pos
			fw, err := flate.NewWriter(&body, flate.DefaultCompression)
			require.NoError(t, err)
			_, err = fw.Write(block)
			require.NoError(t, err)
			require.NoError(t, fw.Close())
		}
	}
	index[blocks] = uint32(headerLen + body.Len())

	var out bytes.Buffer
	out.WriteString("CISO")
	_ = binary.Write(&out, binary.LittleEndian, uint32(0x18))
	_ = binary.Write(&out, binary.LittleEndian, uint64(len(image)))
	_ = binary.Write(&out, binary.LittleEndian, blockSize)
	out.WriteByte(1) // version
	out.WriteByte(0) // align
	out.WriteByte(0)
	out.WriteByte(0)
	_ = binary.Write(&out, binary.LittleEndian, index)
	out.Write(body.Bytes())

	return out.Bytes()
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// randomImage produces compressible but non-trivial image content.
func randomImage(t *testing.T, size int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(rng.Intn(16)) // low entropy so deflate shrinks it
	}
	return img
}

func TestOpen_PlainImage(t *testing.T) {
	t.Parallel()

	image := randomImage(t, 6000)
	path := writeTemp(t, "game.iso", image)

	dev, err := Open(path)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, int64(len(image)), dev.Size())

	buf := make([]byte, 512)
	n, err := dev.ReadAt(buf, 1024)
	require.NoError(t, err)
	assert.Equal(t, image[1024:1024+n], buf[:n])
}

func TestOpen_CSOImage(t *testing.T) {
	t.Parallel()

	const blockSize = 2048
	image := randomImage(t, blockSize*3+100) // unaligned tail block

	t.Run("compressed blocks", func(t *testing.T) {
		t.Parallel()
		path := writeTemp(t, "game.cso", buildCSO(t, image, blockSize, nil))

		dev, err := Open(path)
		require.NoError(t, err)
		defer dev.Close()

		require.Equal(t, int64(len(image)), dev.Size())

		got := make([]byte, len(image))
		n, err := dev.ReadAt(got, 0)
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
		}
		require.Equal(t, len(image), n)
		assert.Equal(t, image, got)
	})

	t.Run("plain block flag", func(t *testing.T) {
		t.Parallel()
		cso := buildCSO(t, image, blockSize, map[int]bool{1: true})
		path := writeTemp(t, "game.cso", cso)

		dev, err := Open(path)
		require.NoError(t, err)
		defer dev.Close()

		buf := make([]byte, blockSize)
		_, err = dev.ReadAt(buf, blockSize) // exactly the plain block
		require.NoError(t, err)
		assert.Equal(t, image[blockSize:2*blockSize], buf)
	})

	t.Run("read straddling blocks", func(t *testing.T) {
		t.Parallel()
		path := writeTemp(t, "game.cso", buildCSO(t, image, blockSize, nil))

		dev, err := Open(path)
		require.NoError(t, err)
		defer dev.Close()

		buf := make([]byte, blockSize)
		_, err = dev.ReadAt(buf, blockSize/2)
		require.NoError(t, err)
		assert.Equal(t, image[blockSize/2:blockSize/2+blockSize], buf)
	})

	t.Run("read past end", func(t *testing.T) {
		t.Parallel()
		path := writeTemp(t, "game.cso", buildCSO(t, image, blockSize, nil))

		dev, err := Open(path)
		require.NoError(t, err)
		defer dev.Close()

		buf := make([]byte, 64)
		_, err = dev.ReadAt(buf, dev.Size())
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestOpen_MalformedCSO(t *testing.T) {
	t.Parallel()

	t.Run("zero block size", func(t *testing.T) {
		t.Parallel()
		image := randomImage(t, 4096)
		cso := buildCSO(t, image, 2048, nil)
		binary.LittleEndian.PutUint32(cso[16:20], 0)
		path := writeTemp(t, "bad.cso", cso)

		_, err := Open(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Open(filepath.Join(t.TempDir(), "nope.iso"))
		assert.Error(t, err)
	})
}
