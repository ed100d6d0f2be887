package mobi

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Codepage is the text encoding identifier declared in the MOBI header.
type Codepage uint32

const (
	// CodepageCP1252 is Windows-1252 (Latin-1), the MOBI default.
	CodepageCP1252 Codepage = 1252
	// CodepageUTF8 is UTF-8.
	CodepageUTF8 Codepage = 65001
)

// codepageDecoders lists the non-default codepages that can be decoded.
var codepageDecoders = map[Codepage]encoding.Encoding{
	437:  charmap.CodePage437,
	850:  charmap.CodePage850,
	866:  charmap.CodePage866,
	874:  charmap.Windows874,
	932:  japanese.ShiftJIS,
	936:  simplifiedchinese.GBK,
	949:  korean.EUCKR,
	950:  traditionalchinese.Big5,
	1250: charmap.Windows1250,
	1251: charmap.Windows1251,
	1252: charmap.Windows1252,
	1253: charmap.Windows1253,
	1254: charmap.Windows1254,
	1255: charmap.Windows1255,
	1256: charmap.Windows1256,
	1257: charmap.Windows1257,
	1258: charmap.Windows1258,
}

// String returns a readable codepage name.
func (c Codepage) String() string {
	switch c {
	case CodepageCP1252:
		return "cp1252"
	case CodepageUTF8:
		return "utf-8"
	default:
		return "cp" + strconv.FormatUint(uint64(c), 10)
	}
}

// Decode converts raw bytes in this codepage to a UTF-8 string.
// Unknown codepages fall back to Windows-1252. The boolean is false when the
// input could not be decoded cleanly; invalid UTF-8 is still returned with
// replacement characters so callers can choose to keep it.
func (c Codepage) Decode(b []byte) (string, bool) {
	if c == CodepageUTF8 {
		if utf8.Valid(b) {
			return string(b), true
		}
		return strings.ToValidUTF8(string(b), "�"), false
	}

	enc, ok := codepageDecoders[c]
	if !ok {
		enc = charmap.Windows1252
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
