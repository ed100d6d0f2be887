package mobi

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Compression is the text compression type declared in the PalmDOC header.
type Compression uint16

const (
	// CompressionNone indicates no compression.
	CompressionNone Compression = 1
	// CompressionPalmDoc indicates PalmDoc compression.
	CompressionPalmDoc Compression = 2
	// CompressionHuffCDIC indicates HUFF/CDIC compression, which is not decoded.
	CompressionHuffCDIC Compression = 17480
)

// Supported reports whether text records with this compression can be decoded.
func (c Compression) Supported() bool {
	return c == CompressionNone || c == CompressionPalmDoc
}

// String returns a readable compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionPalmDoc:
		return "palmdoc"
	case CompressionHuffCDIC:
		return "huff/cdic"
	default:
		return "unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

const (
	// PalmDOCHeaderSize is the size of the PalmDOC header in bytes.
	PalmDOCHeaderSize = 16

	// EXTHFlagPresent indicates that an EXTH block follows the MOBI header.
	EXTHFlagPresent uint32 = 0x40

	// noImageIndex marks an absent first image record.
	noImageIndex uint32 = 0xFFFFFFFF

	// extraDataMinHeaderLength is the MOBI header length from which the
	// extra record data flags are present.
	extraDataMinHeaderLength = 0xE4
)

// Offsets of MOBI header fields, relative to the start of Record 0.
const (
	offMOBIMagic      = 16
	offHeaderLength   = 20
	offMOBIType       = 24
	offTextEncoding   = 28
	offUniqueID       = 32
	offFileVersion    = 36
	offFullNameOffset = 84
	offFullNameLength = 88
	offLocale         = 92
	offFirstImage     = 108
	offEXTHFlags      = 128
	offExtraDataFlags = 242
)

// PrimaryHeader holds the decoded PalmDOC and MOBI headers of Record 0.
type PrimaryHeader struct {
	// PalmDOC header
	Compression     Compression
	TextLength      uint32
	TextRecordCount int
	MaxRecordSize   uint16
	EncryptionType  uint16

	// MOBI header
	HeaderLength   uint32
	MOBIType       uint32
	Codepage       Codepage
	UniqueID       uint32
	FileVersion    uint32
	FullNameOffset uint32
	FullNameLength uint32
	LanguageCode   uint32
	// FirstImageRecord is the absolute index of the first non-text record,
	// or -1 when the header declares none.
	FirstImageRecord int
	// RawFirstImage is the first image field as stored, kept for diagnostics.
	RawFirstImage  uint32
	HasEXTH        bool
	ExtraDataFlags uint16
}

// Encrypted reports whether the text records are encrypted.
func (h *PrimaryHeader) Encrypted() bool {
	return h.EncryptionType != 0
}

// Language returns the BCP 47 tag for the header's locale, or "" if unknown.
func (h *PrimaryHeader) Language() string {
	return LanguageTag(h.LanguageCode)
}

// FirstImage returns the first image record index and whether one is declared.
func (h *PrimaryHeader) FirstImage() (int, bool) {
	return h.FirstImageRecord, h.FirstImageRecord >= 0
}

// headerEnd returns the offset in Record 0 just past the MOBI header.
func (h *PrimaryHeader) headerEnd() int {
	return PalmDOCHeaderSize + int(h.HeaderLength)
}

// ParsePrimaryHeader decodes the PalmDOC header and the MOBI header from Record 0.
// recordCount is the number of records in the container; a first image index
// that is not past the text records and inside the container is dropped.
func ParsePrimaryHeader(record0 []byte, recordCount int) (*PrimaryHeader, error) {
	if len(record0) < offHeaderLength+4 {
		return nil, fmt.Errorf("%w: record 0 is %d bytes, too short for a MOBI header", ErrContainerFormat, len(record0))
	}
	if string(record0[offMOBIMagic:offMOBIMagic+4]) != "MOBI" {
		return nil, fmt.Errorf("%w: record 0 has no MOBI identifier", ErrContainerFormat)
	}

	h := &PrimaryHeader{
		Compression:      Compression(binary.BigEndian.Uint16(record0[0:2])),
		TextLength:       binary.BigEndian.Uint32(record0[4:8]),
		TextRecordCount:  int(binary.BigEndian.Uint16(record0[8:10])),
		MaxRecordSize:    binary.BigEndian.Uint16(record0[10:12]),
		EncryptionType:   binary.BigEndian.Uint16(record0[12:14]),
		HeaderLength:     binary.BigEndian.Uint32(record0[offHeaderLength : offHeaderLength+4]),
		Codepage:         CodepageCP1252,
		FirstImageRecord: -1,
		RawFirstImage:    noImageIndex,
	}

	// Fields are only trusted when they fall inside both the record and the
	// declared header length.
	limit := min(len(record0), h.headerEnd())
	field := func(off int) (uint32, bool) {
		if off+4 > limit {
			return 0, false
		}
		return binary.BigEndian.Uint32(record0[off : off+4]), true
	}

	h.MOBIType, _ = field(offMOBIType)
	if v, ok := field(offTextEncoding); ok {
		h.Codepage = Codepage(v)
	}
	h.UniqueID, _ = field(offUniqueID)
	h.FileVersion, _ = field(offFileVersion)
	h.FullNameOffset, _ = field(offFullNameOffset)
	h.FullNameLength, _ = field(offFullNameLength)
	h.LanguageCode, _ = field(offLocale)
	if v, ok := field(offFirstImage); ok {
		h.RawFirstImage = v
		if v != noImageIndex && int64(v) > int64(h.TextRecordCount) && int64(v) < int64(recordCount) {
			h.FirstImageRecord = int(v)
		}
	}
	if v, ok := field(offEXTHFlags); ok {
		h.HasEXTH = v&EXTHFlagPresent != 0
	}
	if h.HeaderLength >= extraDataMinHeaderLength && offExtraDataFlags+2 <= limit {
		h.ExtraDataFlags = binary.BigEndian.Uint16(record0[offExtraDataFlags : offExtraDataFlags+2])
	}

	return h, nil
}

// FullName returns the raw full-name bytes referenced by the MOBI header,
// or nil when the slice is empty or outside Record 0.
func (h *PrimaryHeader) FullName(record0 []byte) []byte {
	start := int64(h.FullNameOffset)
	end := start + int64(h.FullNameLength)
	if h.FullNameLength == 0 || end > int64(len(record0)) {
		return nil
	}
	return record0[start:end]
}
