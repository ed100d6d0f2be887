package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/yuanying/mobiread/internal/mobi"
)

const (
	defaultCoverJPEGQuality = 90
	defaultConcurrency      = 4
	imagesDirName           = "images"
)

// imageExtensions maps sniffed media types to file extensions.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/webp": ".webp",
}

// imageFileName returns the file name an image record is exported under,
// relative to the output directory.
func imageFileName(desc mobi.ImageDescriptor) string {
	ext, ok := imageExtensions[desc.MediaType]
	if !ok {
		ext = ".bin"
	}
	return filepath.ToSlash(filepath.Join(imagesDirName, fmt.Sprintf("%05d%s", desc.RecordIndex, ext)))
}

// imageSource is the subset of *mobi.Document used to read image payloads.
type imageSource interface {
	ReadImageContent(ctx context.Context, desc mobi.ImageDescriptor) ([]byte, error)
}

// writeImages copies every image record into dir/images, at most limit at a
// time. Reads go through the document's positional source, so workers do not
// coordinate beyond the errgroup.
func writeImages(ctx context.Context, src imageSource, dir string, images []mobi.ImageDescriptor, limit int) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Join(dir, imagesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	names := make([]string, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, desc := range images {
		g.Go(func() error {
			data, err := src.ReadImageContent(ctx, desc)
			if err != nil {
				return fmt.Errorf("failed to read image record %d: %w", desc.RecordIndex, err)
			}
			name := imageFileName(desc)
			if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}
			names[i] = name
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// CoverImage re-encodes a cover payload as JPEG. When maxWidth is positive and
// the image is wider, it is downscaled with Lanczos resampling keeping the
// aspect ratio.
func CoverImage(data []byte, maxWidth int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("cover decode failed: %w", err)
	}

	processed := src
	if maxWidth > 0 && src.Bounds().Dx() > maxWidth {
		processed = imaging.Resize(src, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, imaging.JPEG, imaging.JPEGQuality(defaultCoverJPEGQuality)); err != nil {
		return nil, fmt.Errorf("cover encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
