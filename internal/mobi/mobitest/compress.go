package mobitest

// PalmDocCompress applies PalmDoc (LZ77-based) compression to data.
// It is the reference encoder used to produce test containers.
func PalmDocCompress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	out := make([]byte, 0, len(data))
	i := 0

	for i < len(data) {
		// Try back reference (need at least 3 bytes match, look back up to 2047 bytes)
		if bestLen, bestDist := findMatch(data, i); bestLen >= 3 {
			// High byte: 0x80 | top bits of distance
			// Low byte: ((distance & 0x1F) << 3) | (length - 3)
			high := byte(0x80 | (bestDist >> 5))
			low := byte(((bestDist & 0x1F) << 3) | (bestLen - 3))
			out = append(out, high, low)
			i += bestLen
			continue
		}

		// Space + printable char
		if data[i] == 0x20 && i+1 < len(data) && data[i+1] >= 0x40 && data[i+1] <= 0x7F {
			out = append(out, data[i+1]^0x80)
			i += 2
			continue
		}

		b := data[i]
		if b == 0x00 || (b >= 0x09 && b <= 0x7F) {
			out = append(out, b)
			i++
			continue
		}

		// Bytes 0x01-0x08 and 0x80-0xFF go into a length-prefixed literal run.
		start := i
		for i < len(data) && (i-start) < 8 {
			b := data[i]
			if b == 0x00 || (b >= 0x09 && b <= 0x7F) {
				break
			}
			if matchLen, _ := findMatch(data, i); matchLen >= 3 {
				break
			}
			i++
		}
		out = append(out, byte(i-start))
		out = append(out, data[start:i]...)
	}

	return out
}

// findMatch searches for the longest match in the sliding window.
// Returns (length, distance) where length >= 3 and distance <= 2047, or (0, 0) if no match.
func findMatch(data []byte, pos int) (int, int) {
	if pos+3 > len(data) {
		return 0, 0
	}

	maxDist := min(2047, pos)
	if maxDist == 0 {
		return 0, 0
	}

	bestLen, bestDist := 0, 0
	maxLen := min(10, len(data)-pos)

	for dist := 1; dist <= maxDist; dist++ {
		start := pos - dist
		matchLen := 0
		for matchLen < maxLen && data[start+matchLen] == data[pos+matchLen] {
			matchLen++
		}
		if matchLen >= 3 && matchLen > bestLen {
			bestLen, bestDist = matchLen, dist
			if bestLen == maxLen {
				break
			}
		}
	}

	return bestLen, bestDist
}
