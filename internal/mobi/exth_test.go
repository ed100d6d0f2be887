package mobi

import (
	"encoding/binary"
	"slices"
	"testing"

	"github.com/yuanying/mobiread/internal/mobi/mobitest"
)

func TestParseEXTH_Records(t *testing.T) {
	block := mobitest.EncodeEXTH([]mobitest.EXTHRecord{
		mobitest.StringRecord(100, "Author"),
		mobitest.Uint32Record(201, 2),
	})

	records, err := ParseEXTH(block)
	if err != nil {
		t.Fatalf("ParseEXTH() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Type != 100 || string(records[0].Data) != "Author" {
		t.Fatalf("records[0] = {%d, %q}, want {100, \"Author\"}", records[0].Type, records[0].Data)
	}
	if records[1].Type != 201 || binary.BigEndian.Uint32(records[1].Data) != 2 {
		t.Fatalf("records[1] = {%d, %v}, want {201, 2}", records[1].Type, records[1].Data)
	}
}

func TestParseEXTH_Malformed(t *testing.T) {
	valid := mobitest.EncodeEXTH([]mobitest.EXTHRecord{
		mobitest.StringRecord(100, "First"),
		mobitest.StringRecord(101, "Second"),
	})

	badSecondLength := slices.Clone(valid)
	// Second record header follows the 12-byte block header and the first record (8+5).
	binary.BigEndian.PutUint32(badSecondLength[12+13+4:], 4000)

	tooManyRecords := slices.Clone(valid)
	binary.BigEndian.PutUint32(tooManyRecords[8:12], 9)

	tests := []struct {
		name      string
		data      []byte
		wantCount int
	}{
		{"no identifier", []byte("ABCD\x00\x00\x00\x0c\x00\x00\x00\x00"), 0},
		{"short", []byte("EXTH"), 0},
		{"record length overflows block", badSecondLength, 1},
		{"record count overflows block", tooManyRecords, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseEXTH(tt.data)
			if err == nil {
				t.Fatal("ParseEXTH() error = nil, want error")
			}
			if len(records) != tt.wantCount {
				t.Fatalf("len(records) = %d, want %d", len(records), tt.wantCount)
			}
		})
	}
}

func TestDecodeMetadata(t *testing.T) {
	records := []EXTHRecord{
		{Type: EXTHAuthor, Data: []byte("Jane Doe & John Roe")},
		{Type: EXTHAuthor, Data: []byte("AT&T Research")},
		{Type: EXTHPublisher, Data: []byte("Acme Press")},
		{Type: EXTHPublisher, Data: []byte("Ignored Press")},
		{Type: EXTHDescription, Data: []byte("  A story.  ")},
		{Type: EXTHISBN, Data: []byte("9780000000000")},
		{Type: EXTHSubject, Data: []byte("Fiction; Adventure")},
		{Type: EXTHPublishDate, Data: []byte("2020-01-02")},
		{Type: EXTHContributor, Data: []byte("calibre (5.0)")},
		{Type: EXTHRights, Data: []byte("CC BY")},
		{Type: EXTHSource, Data: []byte("urn:uuid:1234")},
		{Type: EXTHASIN, Data: []byte("B000000001")},
		{Type: EXTHCDEContentASIN, Data: []byte("B000000002")},
		{Type: EXTHLanguage, Data: []byte("fr\x00")},
		{Type: EXTHCoverOffset, Data: []byte{0, 0, 0, 1}},
		{Type: EXTHThumbnailOffset, Data: []byte{0, 0, 0, 2}},
		{Type: 125, Data: []byte{0, 0, 0, 7}},
		{Type: 501, Data: []byte("EBOK")},
		{Type: 501, Data: []byte("PDOC")},
	}

	m := DecodeMetadata(records, CodepageUTF8)

	if want := []string{"Jane Doe", "John Roe", "AT&T Research"}; !slices.Equal(m.Authors, want) {
		t.Fatalf("Authors = %q, want %q", m.Authors, want)
	}
	if want := []string{"Fiction", "Adventure"}; !slices.Equal(m.Subjects, want) {
		t.Fatalf("Subjects = %q, want %q", m.Subjects, want)
	}
	if want := []string{"calibre (5.0)"}; !slices.Equal(m.Contributors, want) {
		t.Fatalf("Contributors = %q, want %q", m.Contributors, want)
	}

	stringFields := []struct {
		name, got, want string
	}{
		{"Publisher", m.Publisher, "Acme Press"},
		{"Description", m.Description, "A story."},
		{"ISBN", m.ISBN, "9780000000000"},
		{"PublishDate", m.PublishDate, "2020-01-02"},
		{"Rights", m.Rights, "CC BY"},
		{"Identifier", m.Identifier, "urn:uuid:1234"},
		{"ASIN", m.ASIN, "B000000001"},
		{"Language", m.Language, "fr"},
		{"Extra[125]", m.Extra["125"], "7"},
		{"Extra[501]", m.Extra["501"], "EBOK"},
	}
	for _, f := range stringFields {
		if f.got != f.want {
			t.Fatalf("%s = %q, want %q", f.name, f.got, f.want)
		}
	}

	if m.CoverOffset == nil || *m.CoverOffset != 1 {
		t.Fatalf("CoverOffset = %v, want 1", m.CoverOffset)
	}
	if m.ThumbnailOffset == nil || *m.ThumbnailOffset != 2 {
		t.Fatalf("ThumbnailOffset = %v, want 2", m.ThumbnailOffset)
	}
}

func TestDecodeMetadata_Codepage(t *testing.T) {
	records := []EXTHRecord{
		{Type: EXTHAuthor, Data: []byte("Ren\xe9 Dupr\xe9")},
		{Type: 508, Data: []byte("caf\xe9")},
	}

	m := DecodeMetadata(records, CodepageCP1252)
	if want := []string{"René Dupré"}; !slices.Equal(m.Authors, want) {
		t.Fatalf("Authors = %q, want %q", m.Authors, want)
	}
	if m.Extra["508"] != "café" {
		t.Fatalf("Extra[508] = %q, want %q", m.Extra["508"], "café")
	}

	// Invalid UTF-8 keeps a best-effort value for known fields and an empty
	// string for unrecognised records.
	m = DecodeMetadata(records, CodepageUTF8)
	if len(m.Authors) != 1 || m.Authors[0] == "" {
		t.Fatalf("Authors = %q, want one best-effort entry", m.Authors)
	}
	if v, ok := m.Extra["508"]; !ok || v != "" {
		t.Fatalf("Extra[508] = %q, %v, want \"\", true", v, ok)
	}
}

func TestDecodeMetadata_Empty(t *testing.T) {
	m := DecodeMetadata(nil, CodepageUTF8)
	if m.Title != "" || len(m.Authors) != 0 || m.CoverOffset != nil {
		t.Fatalf("DecodeMetadata(nil) = %+v, want empty metadata", m)
	}
	if m.Extra == nil {
		t.Fatal("Extra = nil, want empty map")
	}
}

func TestMetadata_CloneIsDeep(t *testing.T) {
	offset := uint32(3)
	m := Metadata{
		Authors:     []string{"A"},
		Extra:       map[string]string{"501": "EBOK"},
		CoverOffset: &offset,
	}
	c := m.clone()
	c.Authors[0] = "B"
	c.Extra["501"] = "PDOC"
	*c.CoverOffset = 9

	if m.Authors[0] != "A" || m.Extra["501"] != "EBOK" || *m.CoverOffset != 3 {
		t.Fatalf("clone shares state with original: %+v", m)
	}
}
