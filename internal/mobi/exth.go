package mobi

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// EXTH record types decoded into Metadata fields.
const (
	EXTHAuthor          uint32 = 100
	EXTHPublisher       uint32 = 101
	EXTHDescription     uint32 = 103
	EXTHISBN            uint32 = 104
	EXTHSubject         uint32 = 105
	EXTHPublishDate     uint32 = 106
	EXTHContributor     uint32 = 108
	EXTHRights          uint32 = 109
	EXTHSource          uint32 = 112
	EXTHASIN            uint32 = 113
	EXTHCoverOffset     uint32 = 201
	EXTHThumbnailOffset uint32 = 202
	EXTHCDEContentASIN  uint32 = 504
	EXTHLanguage        uint32 = 524
)

// exthHeaderSize is the size of "EXTH" + header length + record count.
const exthHeaderSize = 12

// EXTHRecord represents a single EXTH metadata record.
type EXTHRecord struct {
	Type uint32
	Data []byte
}

// Metadata is the bibliographic metadata of a document.
// Absent fields are empty; CoverOffset and ThumbnailOffset are nil when the
// EXTH block does not declare them.
type Metadata struct {
	Title         string
	Authors       []string
	Description   string
	Publisher     string
	Language      string
	PublishDate   string
	Identifier    string
	Subjects      []string
	Rights        string
	Contributors  []string
	ASIN          string
	ISBN          string
	FormatVersion uint32

	// CoverOffset and ThumbnailOffset are relative to the first image record.
	CoverOffset     *uint32
	ThumbnailOffset *uint32

	// Extra holds records without a dedicated field, keyed by decimal type.
	Extra map[string]string
}

// clone returns a deep copy so callers cannot mutate a document's metadata.
func (m Metadata) clone() Metadata {
	out := m
	out.Authors = slices.Clone(m.Authors)
	out.Subjects = slices.Clone(m.Subjects)
	out.Contributors = slices.Clone(m.Contributors)
	out.Extra = maps.Clone(m.Extra)
	if m.CoverOffset != nil {
		v := *m.CoverOffset
		out.CoverOffset = &v
	}
	if m.ThumbnailOffset != nil {
		v := *m.ThumbnailOffset
		out.ThumbnailOffset = &v
	}
	return out
}

// ParseEXTH decodes an EXTH block starting at the beginning of data.
// On a malformed record the records decoded so far are returned with an error.
func ParseEXTH(data []byte) ([]EXTHRecord, error) {
	if len(data) < exthHeaderSize || string(data[0:4]) != "EXTH" {
		return nil, fmt.Errorf("EXTH identifier not found")
	}

	headerLength := int64(binary.BigEndian.Uint32(data[4:8]))
	count := binary.BigEndian.Uint32(data[8:12])
	if headerLength < exthHeaderSize {
		return nil, fmt.Errorf("EXTH header length %d is too small", headerLength)
	}
	if headerLength < int64(len(data)) {
		data = data[:headerLength]
	}

	var records []EXTHRecord
	pos := exthHeaderSize
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(data) {
			return records, fmt.Errorf("EXTH record %d header overflows block at offset %d", i, pos)
		}
		recType := binary.BigEndian.Uint32(data[pos : pos+4])
		recLen := int64(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		if recLen < 8 || int64(pos)+recLen > int64(len(data)) {
			return records, fmt.Errorf("EXTH record %d (type %d) has invalid length %d", i, recType, recLen)
		}
		records = append(records, EXTHRecord{
			Type: recType,
			Data: data[pos+8 : pos+int(recLen)],
		})
		pos += int(recLen)
	}

	return records, nil
}

// exthTextFields maps string-valued record types to the field they fill.
// Repeatable types append; singular types keep the first occurrence.
var exthTextFields = map[uint32]func(m *Metadata, value string){
	EXTHAuthor:         func(m *Metadata, v string) { m.Authors = appendSplit(m.Authors, v, " & ") },
	EXTHSubject:        func(m *Metadata, v string) { m.Subjects = appendSplit(m.Subjects, v, ";") },
	EXTHContributor:    func(m *Metadata, v string) { m.Contributors = appendSplit(m.Contributors, v, " & ") },
	EXTHPublisher:      func(m *Metadata, v string) { setFirst(&m.Publisher, v) },
	EXTHDescription:    func(m *Metadata, v string) { setFirst(&m.Description, v) },
	EXTHISBN:           func(m *Metadata, v string) { setFirst(&m.ISBN, v) },
	EXTHPublishDate:    func(m *Metadata, v string) { setFirst(&m.PublishDate, v) },
	EXTHRights:         func(m *Metadata, v string) { setFirst(&m.Rights, v) },
	EXTHSource:         func(m *Metadata, v string) { setFirst(&m.Identifier, v) },
	EXTHASIN:           func(m *Metadata, v string) { setFirst(&m.ASIN, v) },
	EXTHCDEContentASIN: func(m *Metadata, v string) { setFirst(&m.ASIN, v) },
	EXTHLanguage:       func(m *Metadata, v string) { setFirst(&m.Language, v) },
}

// exthNumericTypes lists known integer-valued record types kept in Extra as decimal.
var exthNumericTypes = map[uint32]bool{
	115: true, // sample
	116: true, // start reading offset
	121: true, // KF8 boundary offset
	125: true, // resource count
	131: true,
	203: true, // has fake cover
	204: true, // creator software
	205: true, // creator major version
	206: true, // creator minor version
	207: true, // creator build number
	401: true, // clipping limit
	402: true, // publisher limit
	404: true, // text-to-speech disabled
	406: true, // rental
}

// DecodeMetadata folds EXTH records into Metadata using the document codepage.
// Unrecognised records are kept in Extra; a record whose text cannot be
// decoded is stored as an empty string.
func DecodeMetadata(records []EXTHRecord, cp Codepage) Metadata {
	m := Metadata{Extra: make(map[string]string)}

	for _, rec := range records {
		switch rec.Type {
		case EXTHCoverOffset:
			if v, ok := uint32Value(rec.Data); ok && m.CoverOffset == nil {
				m.CoverOffset = &v
			}
			continue
		case EXTHThumbnailOffset:
			if v, ok := uint32Value(rec.Data); ok && m.ThumbnailOffset == nil {
				m.ThumbnailOffset = &v
			}
			continue
		}

		if apply, ok := exthTextFields[rec.Type]; ok {
			text, _ := cp.Decode(trimNUL(rec.Data))
			if text = strings.TrimSpace(text); text != "" {
				apply(&m, text)
			}
			continue
		}

		key := strconv.FormatUint(uint64(rec.Type), 10)
		if _, seen := m.Extra[key]; seen {
			continue
		}
		if exthNumericTypes[rec.Type] {
			if v, ok := uintValue(rec.Data); ok {
				m.Extra[key] = strconv.FormatUint(v, 10)
				continue
			}
		}
		text, ok := cp.Decode(trimNUL(rec.Data))
		if !ok {
			text = ""
		}
		m.Extra[key] = text
	}

	return m
}

// appendSplit splits a joined value (e.g. "A & B") and appends the non-empty parts.
func appendSplit(list []string, value, sep string) []string {
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}

func setFirst(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func trimNUL(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}

func uint32Value(b []byte) (uint32, bool) {
	if len(b) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

// uintValue decodes a 1, 2, 4 or 8 byte big-endian integer.
func uintValue(b []byte) (uint64, bool) {
	switch len(b) {
	case 1:
		return uint64(b[0]), true
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), true
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), true
	case 8:
		return binary.BigEndian.Uint64(b), true
	}
	return 0, false
}
