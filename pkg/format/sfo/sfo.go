// Package sfo parses PARAM.SFO metadata blobs.
//
// PARAM.SFO is the PSF key/value table carried by PSP game images. It holds
// flat metadata such as TITLE, DISC_ID and PARENTAL_LEVEL. Only the two
// value encodings that actually occur in game images are supported:
// null-terminated UTF-8 strings and unsigned 32-bit integers.
package sfo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

// PSF wire constants.
const (
	headerSize = 20
	indexSize  = 16

	// FormatString is a null-terminated UTF-8 value.
	FormatString uint16 = 0x0204
	// FormatUint32 is an unsigned 32-bit integer value.
	FormatUint32 uint16 = 0x0404
)

var magic = []byte{0x00, 'P', 'S', 'F'}

// value is one parsed table entry.
type value struct {
	str string
	num uint32
	fmt uint16
}

// Table is a parsed PARAM.SFO key/value table.
type Table struct {
	values map[string]value
	keys   []string
}

// Parse decodes a PARAM.SFO blob.
//
// Truncated or malformed blobs return an error; unknown value formats are
// skipped rather than rejected, matching how real images mix entry types.
func Parse(data []byte) (*Table, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("sfo: blob too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], magic) {
		return nil, fmt.Errorf("sfo: bad magic %q", data[0:4])
	}

	keyTableStart := binary.LittleEndian.Uint32(data[8:12])
	dataTableStart := binary.LittleEndian.Uint32(data[12:16])
	entries := binary.LittleEndian.Uint32(data[16:20])

	indexEnd := headerSize + int(entries)*indexSize
	if indexEnd > len(data) || int(keyTableStart) > len(data) || int(dataTableStart) > len(data) {
		return nil, fmt.Errorf("sfo: truncated table (%d entries, %d bytes)", entries, len(data))
	}

	t := &Table{values: make(map[string]value, entries)}

	for i := 0; i < int(entries); i++ {
		idx := data[headerSize+i*indexSize:]
		keyOffset := binary.LittleEndian.Uint16(idx[0:2])
		dataFmt := binary.LittleEndian.Uint16(idx[2:4])
		dataLen := binary.LittleEndian.Uint32(idx[4:8])
		dataOffset := binary.LittleEndian.Uint32(idx[12:16])

		keyStart := int(keyTableStart) + int(keyOffset)
		if keyStart >= len(data) {
			return nil, fmt.Errorf("sfo: entry %d key offset out of range", i)
		}
		keyEnd := bytes.IndexByte(data[keyStart:], 0)
		if keyEnd < 0 {
			return nil, fmt.Errorf("sfo: entry %d key not terminated", i)
		}
		key := string(data[keyStart : keyStart+keyEnd])

		valStart := int(dataTableStart) + int(dataOffset)
		valEnd := valStart + int(dataLen)
		if valStart > len(data) || valEnd > len(data) {
			return nil, fmt.Errorf("sfo: entry %d (%s) value out of range", i, key)
		}

		var v value
		v.fmt = dataFmt
		switch dataFmt {
		case FormatString:
			raw := data[valStart:valEnd]
			// dataLen includes the terminator for well-formed entries.
			if n := bytes.IndexByte(raw, 0); n >= 0 {
				raw = raw[:n]
			}
			v.str = string(raw)
		case FormatUint32:
			if dataLen < 4 {
				return nil, fmt.Errorf("sfo: entry %d (%s) short integer", i, key)
			}
			v.num = binary.LittleEndian.Uint32(data[valStart : valStart+4])
		default:
			continue
		}

		if _, dup := t.values[key]; !dup {
			t.keys = append(t.keys, key)
		}
		t.values[key] = v
	}

	return t, nil
}

// GetString returns the string value for key, or "" when the key is absent.
// Integer values are formatted in decimal.
func (t *Table) GetString(key string) string {
	v, ok := t.values[key]
	if !ok {
		return ""
	}
	if v.fmt == FormatUint32 {
		return strconv.FormatUint(uint64(v.num), 10)
	}
	return v.str
}

// GetInt returns the integer value for key.
// The second result reports whether the key exists with an integer value.
func (t *Table) GetInt(key string) (uint32, bool) {
	v, ok := t.values[key]
	if !ok || v.fmt != FormatUint32 {
		return 0, false
	}
	return v.num, true
}

// Len returns the number of parsed entries.
func (t *Table) Len() int {
	return len(t.keys)
}

// Map flattens the table into string keys and values, in no defined order.
func (t *Table) Map() map[string]string {
	out := make(map[string]string, len(t.keys))
	for _, k := range t.keys {
		out[k] = t.GetString(k)
	}
	return out
}
