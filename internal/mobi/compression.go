package mobi

import "fmt"

// PalmDocDecompress decompresses one PalmDoc-compressed text record.
// When the input is malformed (a back reference before the start of the
// output, or a literal run or reference cut off by the end of input) it stops
// and returns the bytes produced so far together with an error wrapping
// ErrTruncatedData.
func PalmDocDecompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, len(data)*2)
	i := 0

	for i < len(data) {
		b := data[i]
		i++

		switch {
		case b == 0x00:
			// Literal NULL byte
			out = append(out, 0x00)

		case b >= 0x01 && b <= 0x08:
			// Uncompressed block: next N bytes are literal
			count := int(b)
			if i+count > len(data) {
				return out, fmt.Errorf("%w: palmDoc literal run of %d bytes overflows input at offset %d", ErrTruncatedData, count, i-1)
			}
			out = append(out, data[i:i+count]...)
			i += count

		case b >= 0x09 && b <= 0x7F:
			// Literal byte
			out = append(out, b)

		case b >= 0x80 && b <= 0xBF:
			// Back reference (2 bytes)
			if i >= len(data) {
				return out, fmt.Errorf("%w: palmDoc back reference missing second byte at offset %d", ErrTruncatedData, i-1)
			}
			v := int(b)<<8 | int(data[i])
			i++

			distance := (v >> 3) & 0x7FF
			length := (v & 0x07) + 3

			if distance == 0 || distance > len(out) {
				return out, fmt.Errorf("%w: palmDoc back reference distance %d at output offset %d", ErrTruncatedData, distance, len(out))
			}

			// Byte by byte so overlapping references repeat freshly written output.
			start := len(out) - distance
			for j := range length {
				out = append(out, out[start+j])
			}

		default:
			// Space + literal char
			out = append(out, 0x20, b^0x80)
		}
	}

	return out, nil
}
