// Package mobitest builds in-memory MOBI containers for tests.
package mobitest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	pdbHeaderSize   = 78
	mobiHeaderLen   = 232
	recordSize      = 4096
	noIndex         = 0xFFFFFFFF
	exthFlagPresent = 0x40

	CompressionNone     uint16 = 1
	CompressionPalmDoc  uint16 = 2
	CompressionHuffCDIC uint16 = 17480

	EncodingCP1252 uint32 = 1252
	EncodingUTF8   uint32 = 65001
)

// EXTHRecord is one metadata record written into the EXTH block.
type EXTHRecord struct {
	Type uint32
	Data []byte
}

// StringRecord returns an EXTH record holding s.
func StringRecord(recordType uint32, s string) EXTHRecord {
	return EXTHRecord{Type: recordType, Data: []byte(s)}
}

// Uint32Record returns an EXTH record holding a 4-byte big-endian value.
func Uint32Record(recordType, value uint32) EXTHRecord {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, value)
	return EXTHRecord{Type: recordType, Data: data}
}

// Builder describes a MOBI container to encode. The zero value builds a
// UTF-8, uncompressed book with no text, no metadata and no resources.
type Builder struct {
	Name        string // PDB database name
	FullName    string // MOBI full name; empty writes a zero-length slice
	Compression uint16 // defaults to CompressionNone
	Encoding    uint32 // defaults to EncodingUTF8
	Locale      uint32
	Encryption  uint16
	FileVersion uint32 // defaults to 6

	Text []byte
	// TextLength overrides the declared text length when non-nil.
	TextLength *uint32

	// EXTH is written when non-nil, even if empty.
	EXTH []EXTHRecord

	// Resources are written after the text records; the first one is
	// declared as the first image record.
	Resources [][]byte
	// FirstImage overrides the declared first image index when non-nil.
	FirstImage *uint32

	// Trailer appends FLIS, FCIS and EOF records after the resources.
	Trailer bool

	// ExtraDataFlags is written to the MOBI header; TrailingEntries is
	// appended to every text record.
	ExtraDataFlags  uint16
	TrailingEntries []byte

	// RawRecord0 replaces the generated Record 0 when non-nil.
	RawRecord0 []byte
}

// Build encodes the container.
func (b Builder) Build() []byte {
	textRecords := b.textRecords()

	records := [][]byte{nil}
	records = append(records, textRecords...)

	firstImage := uint32(noIndex)
	if len(b.Resources) > 0 {
		firstImage = uint32(len(records))
	}
	if b.FirstImage != nil {
		firstImage = *b.FirstImage
	}
	records = append(records, b.Resources...)

	if b.Trailer {
		records = append(records, FLISRecord(), FCISRecord(uint32(len(b.Text))), EOFRecord())
	}

	if b.RawRecord0 != nil {
		records[0] = b.RawRecord0
	} else {
		records[0] = b.record0(len(textRecords), firstImage)
	}

	return EncodePDB(b.Name, records)
}

func (b Builder) textRecords() [][]byte {
	var records [][]byte
	for offset := 0; offset < len(b.Text); offset += recordSize {
		chunk := b.Text[offset:min(offset+recordSize, len(b.Text))]
		var rec []byte
		if b.Compression == CompressionPalmDoc {
			rec = PalmDocCompress(chunk)
		} else {
			rec = append([]byte(nil), chunk...)
		}
		rec = append(rec, b.TrailingEntries...)
		records = append(records, rec)
	}
	return records
}

func (b Builder) record0(textRecordCount int, firstImage uint32) []byte {
	compression := b.Compression
	if compression == 0 {
		compression = CompressionNone
	}
	encoding := b.Encoding
	if encoding == 0 {
		encoding = EncodingUTF8
	}
	version := b.FileVersion
	if version == 0 {
		version = 6
	}
	textLength := uint32(len(b.Text))
	if b.TextLength != nil {
		textLength = *b.TextLength
	}

	var exth []byte
	if b.EXTH != nil {
		exth = EncodeEXTH(b.EXTH)
	}

	rec := make([]byte, 16+mobiHeaderLen)
	be := binary.BigEndian

	// PalmDOC header
	be.PutUint16(rec[0:], compression)
	be.PutUint32(rec[4:], textLength)
	be.PutUint16(rec[8:], uint16(textRecordCount))
	be.PutUint16(rec[10:], recordSize)
	be.PutUint16(rec[12:], b.Encryption)

	// MOBI header
	copy(rec[16:], "MOBI")
	be.PutUint32(rec[20:], mobiHeaderLen)
	be.PutUint32(rec[24:], 2) // MOBI book
	be.PutUint32(rec[28:], encoding)
	be.PutUint32(rec[32:], 0x12345678)
	be.PutUint32(rec[36:], version)
	for off := 40; off < 80; off += 4 {
		be.PutUint32(rec[off:], noIndex)
	}
	be.PutUint32(rec[80:], uint32(textRecordCount+1))
	be.PutUint32(rec[84:], uint32(len(rec)+len(exth)))
	be.PutUint32(rec[88:], uint32(len(b.FullName)))
	be.PutUint32(rec[92:], b.Locale)
	be.PutUint32(rec[104:], version)
	be.PutUint32(rec[108:], firstImage)
	if exth != nil {
		be.PutUint32(rec[128:], exthFlagPresent)
	}
	be.PutUint16(rec[242:], b.ExtraDataFlags)

	rec = append(rec, exth...)
	rec = append(rec, b.FullName...)
	// Two NUL bytes after the full name, then pad to 4 bytes.
	rec = append(rec, 0, 0)
	for len(rec)%4 != 0 {
		rec = append(rec, 0)
	}
	return rec
}

// EncodeEXTH serializes records into an EXTH block padded to 4 bytes.
func EncodeEXTH(records []EXTHRecord) []byte {
	size := 12
	for _, r := range records {
		size += 8 + len(r.Data)
	}
	padded := size + (4-size%4)%4

	buf := bytes.NewBuffer(make([]byte, 0, padded))
	buf.WriteString("EXTH")
	binary.Write(buf, binary.BigEndian, uint32(padded))
	binary.Write(buf, binary.BigEndian, uint32(len(records)))
	for _, r := range records {
		binary.Write(buf, binary.BigEndian, r.Type)
		binary.Write(buf, binary.BigEndian, uint32(8+len(r.Data)))
		buf.Write(r.Data)
	}
	for buf.Len() < padded {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// EncodePDB writes a Palm Database header, record list and records.
// Offsets follow the PalmDB rule:
//
//	first offset = 78 + (8 * record count) + 2
//	next offset = previous offset + previous record size
func EncodePDB(name string, records [][]byte) []byte {
	var nameField [32]byte
	copy(nameField[:31], name)

	buf := &bytes.Buffer{}
	fields := []any{
		nameField,
		uint16(0),                   // attributes
		uint16(0),                   // version
		uint32(0xE0000000),          // creation date
		uint32(0xE0000000),          // modification date
		uint32(0),                   // backup date
		uint32(0),                   // modification number
		uint32(0),                   // app info offset
		uint32(0),                   // sort info offset
		[4]byte{'B', 'O', 'O', 'K'}, // type
		[4]byte{'M', 'O', 'B', 'I'}, // creator
		uint32(0),                   // unique seed
		uint32(0),                   // next record list
		uint16(len(records)),
	}
	for _, f := range fields {
		binary.Write(buf, binary.BigEndian, f)
	}

	offset := uint32(pdbHeaderSize + len(records)*8 + 2)
	for i, rec := range records {
		binary.Write(buf, binary.BigEndian, offset)
		buf.WriteByte(0)
		buf.Write([]byte{byte(i >> 16), byte(i >> 8), byte(i)})
		offset += uint32(len(rec))
	}
	buf.Write([]byte{0, 0})

	for _, rec := range records {
		buf.Write(rec)
	}
	return buf.Bytes()
}

// FLISRecord returns the fixed 36-byte FLIS record.
func FLISRecord() []byte {
	buf := &bytes.Buffer{}
	fields := []any{
		[4]byte{'F', 'L', 'I', 'S'},
		uint32(0x00000008), uint16(0x0041), uint16(0x0000),
		uint32(0x00000000), uint32(0xFFFFFFFF), uint16(0x0001),
		uint16(0x0003), uint32(0x00000003), uint32(0x00000001),
		uint32(0xFFFFFFFF),
	}
	for _, f := range fields {
		binary.Write(buf, binary.BigEndian, f)
	}
	return buf.Bytes()
}

// FCISRecord returns a 44-byte FCIS record declaring textLength.
func FCISRecord(textLength uint32) []byte {
	buf := &bytes.Buffer{}
	fields := []any{
		[4]byte{'F', 'C', 'I', 'S'},
		uint32(0x00000014), uint32(0x00000010), uint32(0x00000001),
		uint32(0x00000000), textLength, uint32(0x00000000),
		uint32(0x00000020), uint32(0x00000008), uint16(0x0001),
		uint16(0x0001), uint32(0x00000000),
	}
	for _, f := range fields {
		binary.Write(buf, binary.BigEndian, f)
	}
	return buf.Bytes()
}

// EOFRecord returns the 4-byte end-of-file record.
func EOFRecord() []byte {
	return []byte{0xE9, 0x8E, 0x0D, 0x0A}
}

// JPEG returns an encoded w×h JPEG image.
func JPEG(w, h int) []byte {
	return encodeImage(w, h, imaging.JPEG)
}

// PNG returns an encoded w×h PNG image.
func PNG(w, h int) []byte {
	return encodeImage(w, h, imaging.PNG)
}

// GIF returns an encoded w×h GIF image.
func GIF(w, h int) []byte {
	return encodeImage(w, h, imaging.GIF)
}

func encodeImage(w, h int, format imaging.Format) []byte {
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, image.Image(img), format); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
