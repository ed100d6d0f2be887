package mobi

import (
	"context"
	"fmt"
	"log/slog"
)

// trailingEntriesSize returns how many bytes at the end of a text record are
// trailing entries rather than compressed text, as described by the extra
// record data flags of the MOBI header.
func trailingEntriesSize(record []byte, flags uint16) int {
	size := len(record)
	n := 0

	for f := flags >> 1; f != 0; f >>= 1 {
		if f&1 != 0 {
			n += backwardVarint(record[:size-n])
			if n >= size {
				return size
			}
		}
	}

	// Bit 0: multibyte character overlap, length in the low two bits.
	if flags&1 != 0 && n < size {
		n += int(record[size-n-1]&0x03) + 1
	}

	return min(n, size)
}

// backwardVarint decodes the size of one trailing entry, stored as a
// variable-width integer read backwards from the end of data.
func backwardVarint(data []byte) int {
	value, shift := 0, 0
	for pos := len(data) - 1; pos >= 0; pos-- {
		b := data[pos]
		value |= int(b&0x7F) << shift
		shift += 7
		if b&0x80 != 0 || shift >= 28 {
			break
		}
	}
	return value
}

// maxPalmDocExpansion is the largest output a single PalmDoc input byte can
// produce: a two-byte back-reference copies at most 10 bytes.
const maxPalmDocExpansion = 5

// textCapacity returns the initial buffer size for the decoded text: the
// declared text length, capped by what the text records can actually expand to.
func textCapacity(pdb *PDB, h *PrimaryHeader) int {
	factor := int64(1)
	if h.Compression == CompressionPalmDoc {
		factor = maxPalmDocExpansion
	}

	var limit int64
	for i := 1; i <= h.TextRecordCount; i++ {
		n, err := pdb.RecordLength(i)
		if err != nil {
			break
		}
		limit += int64(n) * factor
	}
	return int(min(int64(h.TextLength), limit))
}

// decodeTextRecords decompresses text records 1..TextRecordCount in order and
// concatenates them. Truncation inside a record is logged and the partial
// output is kept; a mismatch with the declared text length is logged and the
// output is cut to that length when longer.
func decodeTextRecords(ctx context.Context, pdb *PDB, h *PrimaryHeader, logger *slog.Logger) ([]byte, error) {
	if h.Encrypted() {
		return nil, fmt.Errorf("%w: encryption type %d", ErrEncrypted, h.EncryptionType)
	}
	if !h.Compression.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, h.Compression)
	}

	out := make([]byte, 0, textCapacity(pdb, h))
	for i := 1; i <= h.TextRecordCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := pdb.ReadRecord(i)
		if err != nil {
			return nil, err
		}
		if h.ExtraDataFlags != 0 {
			record = record[:len(record)-trailingEntriesSize(record, h.ExtraDataFlags)]
		}

		if h.Compression == CompressionNone {
			out = append(out, record...)
			continue
		}

		text, err := PalmDocDecompress(record)
		if err != nil {
			logger.Warn("text record truncated", "record", i, "error", err)
		}
		out = append(out, text...)
	}

	if got := len(out); int64(got) != int64(h.TextLength) {
		logger.Warn("decompressed text length mismatch", "want", h.TextLength, "got", got, "error", ErrTruncatedData)
		if int64(got) > int64(h.TextLength) {
			out = out[:h.TextLength]
		}
	}

	return out, nil
}
