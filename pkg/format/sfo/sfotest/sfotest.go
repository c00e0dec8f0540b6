// Package sfotest builds synthetic PARAM.SFO blobs for tests.
package sfotest

import (
	"bytes"
	"encoding/binary"
)

// Entry is one key/value pair to encode. Exactly one of Str or Num is used,
// selected by IsNum.
type Entry struct {
	Key   string
	Str   string
	Num   uint32
	IsNum bool
}

// String returns a string entry.
func String(key, val string) Entry {
	return Entry{Key: key, Str: val}
}

// Uint32 returns an integer entry.
func Uint32(key string, val uint32) Entry {
	return Entry{Key: key, Num: val, IsNum: true}
}

// Build encodes entries into a well-formed PSF blob.
func Build(entries ...Entry) []byte {
	const headerSize = 20
	const indexSize = 16

	var keyTable bytes.Buffer
	var dataTable bytes.Buffer
	index := make([]byte, 0, len(entries)*indexSize)

	for _, e := range entries {
		keyOffset := uint16(keyTable.Len())
		dataOffset := uint32(dataTable.Len())

		keyTable.WriteString(e.Key)
		keyTable.WriteByte(0)

		var dataFmt uint16
		var dataLen, dataMax uint32
		if e.IsNum {
			dataFmt = 0x0404
			dataLen, dataMax = 4, 4
			var raw [4]byte
			binary.LittleEndian.PutUint32(raw[:], e.Num)
			dataTable.Write(raw[:])
		} else {
			dataFmt = 0x0204
			dataLen = uint32(len(e.Str) + 1)
			dataMax = dataLen
			dataTable.WriteString(e.Str)
			dataTable.WriteByte(0)
		}

		var idx [indexSize]byte
		binary.LittleEndian.PutUint16(idx[0:2], keyOffset)
		binary.LittleEndian.PutUint16(idx[2:4], dataFmt)
		binary.LittleEndian.PutUint32(idx[4:8], dataLen)
		binary.LittleEndian.PutUint32(idx[8:12], dataMax)
		binary.LittleEndian.PutUint32(idx[12:16], dataOffset)
		index = append(index, idx[:]...)
	}

	keyTableStart := uint32(headerSize + len(index))

	// The data table is 4-byte aligned in real images.
	keyBytes := keyTable.Bytes()
	align := (4 - len(keyBytes)%4) % 4
	keyBytes = append(keyBytes, make([]byte, align)...)
	dataTableStart := keyTableStart + uint32(len(keyBytes))

	var out bytes.Buffer
	out.Write([]byte{0x00, 'P', 'S', 'F'})
	_ = binary.Write(&out, binary.LittleEndian, uint32(0x0101))
	_ = binary.Write(&out, binary.LittleEndian, keyTableStart)
	_ = binary.Write(&out, binary.LittleEndian, dataTableStart)
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(entries)))
	out.Write(index)
	out.Write(keyBytes)
	out.Write(dataTable.Bytes())

	return out.Bytes()
}
