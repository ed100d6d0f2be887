package mobi

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
)

// Options configures how a document is opened.
type Options struct {
	// Logger receives warnings about recoverable damage. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Document is an opened MOBI book. Metadata, cover, images and navigation are
// computed once by Open; image payloads are read on demand.
//
// The backing source is accessed with positional reads only, so a Document is
// safe for concurrent use by multiple goroutines.
type Document struct {
	pdb    *PDB
	closer io.Closer
	logger *slog.Logger

	header     PrimaryHeader
	metadata   Metadata
	text       string
	images     []ImageDescriptor
	cover      *Cover
	navigation []NavNode
	guide      []GuideReference

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens the MOBI file at path.
// The caller must call Close when done reading from the document.
func Open(ctx context.Context, path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mobi: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mobi: stat %s: %w", path, err)
	}

	doc, err := NewReader(ctx, f, info.Size(), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	doc.closer = f
	return doc, nil
}

// NewReader parses a MOBI document from src, whose total length is size.
// Closing the returned document does not close src.
func NewReader(ctx context.Context, src io.ReaderAt, size int64, opts Options) (*Document, error) {
	logger := opts.logger()

	pdb, err := ReadPDB(src, size)
	if err != nil {
		return nil, err
	}

	record0, err := pdb.ReadRecord(0)
	if err != nil {
		return nil, err
	}

	header, err := ParsePrimaryHeader(record0, pdb.RecordCount())
	if err != nil {
		return nil, err
	}
	if maxText := pdb.RecordCount() - 1; header.TextRecordCount > maxText {
		logger.Warn("text record count exceeds container", "declared", header.TextRecordCount, "records", pdb.RecordCount())
		header.TextRecordCount = maxText
	}
	if header.RawFirstImage != noImageIndex && header.FirstImageRecord < 0 {
		logger.Warn("ignoring invalid first image index", "index", header.RawFirstImage, "textRecords", header.TextRecordCount)
	}

	doc := &Document{
		pdb:    pdb,
		logger: logger,
		header: *header,
	}

	doc.metadata = decodeDocumentMetadata(pdb, header, record0, logger)

	if first, ok := header.FirstImage(); ok {
		doc.images, err = scanImages(ctx, pdb, first, logger)
		if err != nil {
			return nil, err
		}
	}

	if desc, source, ok := resolveCover(doc.metadata, header.FirstImageRecord, doc.images); ok {
		doc.cover = &Cover{
			Image:  desc,
			Source: source,
			doc:    doc,
		}
	}

	raw, err := decodeTextRecords(ctx, pdb, header, logger)
	switch {
	case err == nil:
		doc.text, _ = header.Codepage.Decode(raw)
		doc.navigation = BuildNavigation(ExtractHeadings(doc.text))
		doc.guide = ParseGuide(doc.text)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logger.Warn("document body unavailable", "compression", header.Compression, "error", err)
	}

	return doc, nil
}

// decodeDocumentMetadata builds Metadata from the EXTH block, the full name
// and the header. Damage to the EXTH block is logged and tolerated.
func decodeDocumentMetadata(pdb *PDB, h *PrimaryHeader, record0 []byte, logger *slog.Logger) Metadata {
	var records []EXTHRecord
	if h.HasEXTH {
		if end := h.headerEnd(); end < len(record0) {
			var err error
			records, err = ParseEXTH(record0[end:])
			if err != nil {
				logger.Warn("EXTH block damaged", "records", len(records), "error", err)
			}
		} else {
			logger.Warn("EXTH flag set but MOBI header fills record 0", "headerLength", h.HeaderLength)
		}
	}

	meta := DecodeMetadata(records, h.Codepage)

	if name := h.FullName(record0); len(name) > 0 {
		meta.Title, _ = h.Codepage.Decode(name)
	}
	if meta.Title == "" {
		meta.Title, _ = h.Codepage.Decode(pdb.Name())
	}
	meta.Title = collapseSpace(meta.Title)

	if meta.Language == "" {
		meta.Language = h.Language()
	}
	meta.FormatVersion = h.FileVersion

	return meta
}

// Close releases the backing file. It is safe to call more than once; the
// file is closed exactly once.
func (d *Document) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		if d.closer != nil {
			d.closeErr = d.closer.Close()
		}
	})
	return d.closeErr
}

func (d *Document) ensureOpen() error {
	if d.closed.Load() {
		return ErrClosedDocument
	}
	return nil
}

// Header returns a copy of the decoded Record 0 headers.
func (d *Document) Header() (PrimaryHeader, error) {
	if err := d.ensureOpen(); err != nil {
		return PrimaryHeader{}, err
	}
	return d.header, nil
}

// Metadata returns a copy of the document metadata.
func (d *Document) Metadata() (Metadata, error) {
	if err := d.ensureOpen(); err != nil {
		return Metadata{}, err
	}
	return d.metadata.clone(), nil
}

// Images returns descriptors of the image records in ascending record order.
func (d *Document) Images() ([]ImageDescriptor, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return slices.Clone(d.images), nil
}

// Cover returns the resolved cover, or ErrNoCover when the document has no images.
func (d *Document) Cover() (*Cover, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	if d.cover == nil {
		return nil, ErrNoCover
	}
	c := *d.cover
	return &c, nil
}

// Navigation returns the heading-derived table of contents.
// It is empty when the body could not be decoded or has no headings.
func (d *Document) Navigation() ([]NavNode, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return cloneNav(d.navigation), nil
}

// Guide returns the guide references declared in the markup.
func (d *Document) Guide() ([]GuideReference, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return slices.Clone(d.guide), nil
}

// Text returns the decoded document markup. It is empty when the body uses an
// unsupported compression or is encrypted.
func (d *Document) Text() (string, error) {
	if err := d.ensureOpen(); err != nil {
		return "", err
	}
	return d.text, nil
}

// ReadImageContent reads the payload of an image record of this document.
func (d *Document) ReadImageContent(ctx context.Context, desc ImageDescriptor) ([]byte, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	known, ok := findImage(d.images, int64(desc.RecordIndex))
	if !ok || known != desc {
		return nil, fmt.Errorf("%w: record %d is not an image of this document", ErrRecordRange, desc.RecordIndex)
	}

	data, err := d.pdb.ReadRecord(desc.RecordIndex)
	if err != nil {
		if d.closed.Load() {
			return nil, ErrClosedDocument
		}
		return nil, err
	}
	return data, nil
}

// ImageConfig decodes the dimensions and format of an image record.
func (d *Document) ImageConfig(ctx context.Context, desc ImageDescriptor) (image.Config, string, error) {
	data, err := d.ReadImageContent(ctx, desc)
	if err != nil {
		return image.Config{}, "", err
	}
	cfg, format, err := decodeImageConfig(data)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to decode image record %d: %w", desc.RecordIndex, err)
	}
	return cfg, format, nil
}

func cloneNav(nodes []NavNode) []NavNode {
	if nodes == nil {
		return nil
	}
	out := make([]NavNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Children = cloneNav(n.Children)
	}
	return out
}
