package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// PDBHeaderSize is the size of the fixed Palm Database header.
	PDBHeaderSize = 78

	// recordEntrySize is the size of one record list entry.
	recordEntrySize = 8
)

// PDBHeader represents the fixed 78-byte Palm Database header.
// All fields are encoded in big-endian order.
type PDBHeader struct {
	Name               [32]byte // Database name (NULL padded)
	Attributes         uint16
	Version            uint16
	CreationDate       uint32
	ModificationDate   uint32
	BackupDate         uint32
	ModificationNumber uint32
	AppInfoOffset      uint32
	SortInfoOffset     uint32
	Type               [4]byte // "BOOK"
	Creator            [4]byte // "MOBI"
	UniqueSeed         uint32
	NextRecordList     uint32
	NumRecords         uint16
}

// RecordEntry represents a single record entry in the Palm Database record list.
type RecordEntry struct {
	Offset     uint32
	Attributes uint8
	UniqueID   uint32 // 24-bit
}

// PDB is a parsed Palm Database record directory over a positional byte source.
// Reads never share a cursor, so a PDB is safe for concurrent use.
type PDB struct {
	Header  PDBHeader
	Records []RecordEntry

	src  io.ReaderAt
	size int64
}

// ReadPDB parses the PDB header and record list from src.
// size is the total length of the source in bytes.
func ReadPDB(src io.ReaderAt, size int64) (*PDB, error) {
	if size < PDBHeaderSize {
		return nil, fmt.Errorf("%w: source is %d bytes, shorter than the %d-byte header", ErrContainerFormat, size, PDBHeaderSize)
	}

	var header PDBHeader
	if err := binary.Read(io.NewSectionReader(src, 0, PDBHeaderSize), binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read PDB header: %w", err)
	}

	count := int(header.NumRecords)
	if count == 0 {
		return nil, fmt.Errorf("%w: record directory is empty", ErrContainerFormat)
	}

	dirEnd := int64(PDBHeaderSize + count*recordEntrySize)
	if dirEnd > size {
		return nil, fmt.Errorf("%w: record directory for %d records needs %d bytes, source has %d", ErrContainerFormat, count, dirEnd, size)
	}

	list := make([]byte, count*recordEntrySize)
	if _, err := src.ReadAt(list, PDBHeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read record list: %w", err)
	}

	records := make([]RecordEntry, count)
	for i := range records {
		entry := list[i*recordEntrySize : (i+1)*recordEntrySize]
		records[i] = RecordEntry{
			Offset:     binary.BigEndian.Uint32(entry[0:4]),
			Attributes: entry[4],
			UniqueID:   uint32(entry[5])<<16 | uint32(entry[6])<<8 | uint32(entry[7]),
		}
	}

	if err := validateOffsets(records, dirEnd, size); err != nil {
		return nil, err
	}

	return &PDB{
		Header:  header,
		Records: records,
		src:     src,
		size:    size,
	}, nil
}

// validateOffsets checks that record offsets start after the directory,
// increase strictly and stay inside the source.
func validateOffsets(records []RecordEntry, dirEnd, size int64) error {
	prev := int64(-1)
	for i, rec := range records {
		off := int64(rec.Offset)
		if i == 0 && off < dirEnd {
			return fmt.Errorf("%w: record 0 offset %d overlaps the record directory (ends at %d)", ErrContainerFormat, off, dirEnd)
		}
		if off <= prev {
			return fmt.Errorf("%w: record %d offset %d is not after record %d offset %d", ErrContainerFormat, i, off, i-1, prev)
		}
		if off > size {
			return fmt.Errorf("%w: record %d offset %d is past end of source (%d bytes)", ErrContainerFormat, i, off, size)
		}
		prev = off
	}
	return nil
}

// Name returns the database name with its NULL padding removed.
func (p *PDB) Name() []byte {
	name := p.Header.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return name
}

// RecordCount returns the number of records in the directory.
func (p *PDB) RecordCount() int {
	return len(p.Records)
}

// RecordLength returns the byte length of record i, computed from the next
// record's offset (or the end of the source for the last record).
func (p *PDB) RecordLength(i int) (int, error) {
	start, end, err := p.bounds(i)
	if err != nil {
		return 0, err
	}
	return int(end - start), nil
}

// ReadRecord reads record i with a single bounded positional read.
func (p *PDB) ReadRecord(i int) ([]byte, error) {
	start, end, err := p.bounds(i)
	if err != nil {
		return nil, err
	}
	return p.readAt(i, start, int(end-start))
}

// ReadRecordPrefix reads at most n leading bytes of record i.
func (p *PDB) ReadRecordPrefix(i, n int) ([]byte, error) {
	start, end, err := p.bounds(i)
	if err != nil {
		return nil, err
	}
	return p.readAt(i, start, int(min(int64(n), end-start)))
}

func (p *PDB) readAt(i int, start int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := p.src.ReadAt(buf, start)
	if read == n {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("failed to read record %d: %w", i, err)
}

func (p *PDB) bounds(i int) (int64, int64, error) {
	if i < 0 || i >= len(p.Records) {
		return 0, 0, fmt.Errorf("%w: record %d (table has %d)", ErrRecordRange, i, len(p.Records))
	}
	start := int64(p.Records[i].Offset)
	end := p.size
	if i+1 < len(p.Records) {
		end = int64(p.Records[i+1].Offset)
	}
	return start, end, nil
}
