package reads

import (
	"encoding/binary"
	"math"
)

// auxSize returns the encoded size in bytes of a scalar aux value, or -1 for
// a type code that has no fixed size.
func auxSize(typ byte) int {
	switch typ {
	case 'A', 'c', 'C':
		return 1
	case 's', 'S':
		return 2
	case 'f', 'i', 'I':
		return 4
	default:
		return -1
	}
}

// decodeAuxFields decodes the optional-field byte region of one record into
// tag/value entries, in stream order.
//
// Each entry is TAG (2 bytes), TYPE (1 byte), then a type-dependent value:
// 'A' one character, 'cCsSiI' little-endian integers (lowercase signed),
// 'f' a little-endian IEEE-754 float, 'Z'/'H' NUL-terminated strings, and
// 'B' a typed array. 'H' values are consumed but discarded, and 'B' array
// contents are skipped rather than decoded. Decoding stops at the first
// malformed entry: the entries decoded so far are returned together with the
// error, so callers can keep the partial result.
func decodeAuxFields(data []byte, fields []AuxField) ([]AuxField, error) {
	for len(data) >= 4 {
		tag := string(data[:2])
		typ := data[2]
		data = data[3:]
		switch typ {
		case 'A':
			// Single printable character.
			fields = append(fields, AuxField{Tag: tag, Value: string(data[:1])})
			data = data[1:]
		case 'c', 'C', 's', 'S', 'i', 'I':
			size := auxSize(typ)
			if len(data) < size {
				return fields, dataLossf("malformed tag %s", tag)
			}
			fields = append(fields, AuxField{Tag: tag, Value: auxInt(typ, data)})
			data = data[size:]
		case 'f':
			if len(data) < 4 {
				return fields, dataLossf("malformed tag %s", tag)
			}
			bits := binary.LittleEndian.Uint32(data)
			fields = append(fields, AuxField{Tag: tag, Value: float64(math.Float32frombits(bits))})
			data = data[4:]
		case 'Z', 'H':
			end := 0
			for end < len(data) && data[end] != 0 {
				end++
			}
			if end >= len(data) {
				return fields, dataLossf("malformed tag %s", tag)
			}
			// The H hex array type is deprecated and intentionally dropped.
			if typ == 'Z' {
				fields = append(fields, AuxField{Tag: tag, Value: string(data[:end])})
			}
			data = data[end+1:]
		case 'B':
			if len(data) < 5 {
				return fields, dataLossf("data too short for tag %s", tag)
			}
			elemSize := auxSize(data[0])
			if elemSize < 0 {
				return fields, dataLossf("bad array element type for tag %s", tag)
			}
			n := int(binary.LittleEndian.Uint32(data[1:]))
			if n == 0 {
				return fields, dataLossf("empty array for tag %s", tag)
			}
			// Array contents are skipped, not decoded.
			skip := 5 + n*elemSize
			if skip > len(data) {
				return fields, dataLossf("truncated array for tag %s", tag)
			}
			data = data[skip:]
		default:
			return fields, dataLossf("unknown type %q for tag %s", typ, tag)
		}
	}
	// A trailing fragment shorter than one tag header is ignored.
	return fields, nil
}

func auxInt(typ byte, data []byte) int {
	le := binary.LittleEndian
	switch typ {
	case 'c':
		return int(int8(data[0]))
	case 'C':
		return int(data[0])
	case 's':
		return int(int16(le.Uint16(data)))
	case 'S':
		return int(le.Uint16(data))
	case 'i':
		return int(int32(le.Uint32(data)))
	default: // 'I'
		return int(le.Uint32(data))
	}
}
