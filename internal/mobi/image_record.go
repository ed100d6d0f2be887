package mobi

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"

	// Decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// sniffLength is the number of leading bytes read to classify a record.
const sniffLength = 12

// ImageDescriptor describes an image record without holding its payload.
// RecordIndex is absolute into the record table.
type ImageDescriptor struct {
	RecordIndex int
	MediaType   string
	Size        int
}

// imageSignature matches the leading bytes of one image format.
type imageSignature struct {
	mediaType string
	match     func(prefix []byte) bool
}

var imageSignatures = []imageSignature{
	{"image/jpeg", func(p []byte) bool { return bytes.HasPrefix(p, []byte{0xFF, 0xD8, 0xFF}) }},
	{"image/png", func(p []byte) bool { return bytes.HasPrefix(p, []byte("\x89PNG\r\n\x1a\n")) }},
	{"image/gif", func(p []byte) bool {
		return bytes.HasPrefix(p, []byte("GIF87a")) || bytes.HasPrefix(p, []byte("GIF89a"))
	}},
	{"image/bmp", func(p []byte) bool {
		// "BM", file size, then four reserved zero bytes.
		return len(p) >= 10 && bytes.HasPrefix(p, []byte("BM")) && bytes.Equal(p[6:10], []byte{0, 0, 0, 0})
	}},
	{"image/webp", func(p []byte) bool {
		return len(p) >= 12 && bytes.Equal(p[0:4], []byte("RIFF")) && bytes.Equal(p[8:12], []byte("WEBP"))
	}},
}

// SniffImage returns the media type of an image whose leading bytes are prefix.
func SniffImage(prefix []byte) (string, bool) {
	for _, sig := range imageSignatures {
		if sig.match(prefix) {
			return sig.mediaType, true
		}
	}
	return "", false
}

// errNotImage marks a record that is skipped by the image scanner.
var errNotImage = errors.New("not an image record")

// classifyRecord sniffs record i. It returns errNotImage for records that
// do not carry a known image signature.
func classifyRecord(pdb *PDB, i int) (ImageDescriptor, error) {
	size, err := pdb.RecordLength(i)
	if err != nil {
		return ImageDescriptor{}, err
	}
	prefix, err := pdb.ReadRecordPrefix(i, sniffLength)
	if err != nil {
		return ImageDescriptor{}, err
	}
	mediaType, ok := SniffImage(prefix)
	if !ok {
		return ImageDescriptor{}, errNotImage
	}
	return ImageDescriptor{RecordIndex: i, MediaType: mediaType, Size: size}, nil
}

// scanImages classifies every record from first to the last record.
// Non-image records and unreadable records are skipped; scanning never stops
// early except on context cancellation.
func scanImages(ctx context.Context, pdb *PDB, first int, logger *slog.Logger) ([]ImageDescriptor, error) {
	var images []ImageDescriptor
	for i := first; i < pdb.RecordCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		desc, err := classifyRecord(pdb, i)
		switch {
		case err == nil:
			images = append(images, desc)
		case errors.Is(err, errNotImage):
			// fonts, RESC, FLIS/FCIS, EOF and other resources
		default:
			logger.Warn("skipping unreadable record", "record", i, "error", err)
		}
	}
	return images, nil
}

// decodeImageConfig reads dimensions and format from an image payload.
func decodeImageConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}
