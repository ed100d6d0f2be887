package mobi

import "context"

// CoverSource records which rule selected the cover image.
type CoverSource string

const (
	// CoverFromOffset means the EXTH cover offset pointed at the image.
	CoverFromOffset CoverSource = "cover-offset"
	// CoverFromThumbnail means the EXTH thumbnail offset pointed at the image.
	CoverFromThumbnail CoverSource = "thumbnail-offset"
	// CoverFromFirst means the first scanned image was used.
	CoverFromFirst CoverSource = "first-image"
)

// Cover is the resolved cover image of a document. Its payload is loaded on
// demand through the owning document.
type Cover struct {
	Image  ImageDescriptor
	Source CoverSource

	doc *Document
}

// Load reads the cover image payload.
func (c *Cover) Load(ctx context.Context) ([]byte, error) {
	return c.doc.ReadImageContent(ctx, c.Image)
}

// resolveCover picks the cover image using prioritized rules:
//  1. EXTH cover offset (relative to the first image record)
//  2. EXTH thumbnail offset
//  3. the first scanned image
//
// An offset that does not land on a scanned image falls through to the next rule.
func resolveCover(meta Metadata, firstImage int, images []ImageDescriptor) (ImageDescriptor, CoverSource, bool) {
	if desc, ok := imageAtOffset(meta.CoverOffset, firstImage, images); ok {
		return desc, CoverFromOffset, true
	}
	if desc, ok := imageAtOffset(meta.ThumbnailOffset, firstImage, images); ok {
		return desc, CoverFromThumbnail, true
	}
	if len(images) > 0 {
		return images[0], CoverFromFirst, true
	}
	return ImageDescriptor{}, "", false
}

func imageAtOffset(offset *uint32, firstImage int, images []ImageDescriptor) (ImageDescriptor, bool) {
	if offset == nil || firstImage < 0 {
		return ImageDescriptor{}, false
	}
	return findImage(images, int64(firstImage)+int64(*offset))
}

// findImage looks up a descriptor by absolute record index.
func findImage(images []ImageDescriptor, index int64) (ImageDescriptor, bool) {
	for _, img := range images {
		if int64(img.RecordIndex) == index {
			return img, true
		}
	}
	return ImageDescriptor{}, false
}
