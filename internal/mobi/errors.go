package mobi

import "errors"

// Sentinel errors returned by the mobi package.
var (
	// ErrContainerFormat indicates the source is not a readable MOBI
	// container (short file, garbled record directory, missing MOBI magic).
	ErrContainerFormat = errors.New("mobi: invalid container format")

	// ErrUnsupportedCompression indicates the body uses a compression type
	// this package cannot decode (e.g. HUFF/CDIC).
	ErrUnsupportedCompression = errors.New("mobi: unsupported compression")

	// ErrEncrypted indicates the body text is DRM encrypted.
	ErrEncrypted = errors.New("mobi: text is encrypted")

	// ErrTruncatedData indicates decompressed output ran short of its input
	// or of the declared text length. It is logged, never returned by Open.
	ErrTruncatedData = errors.New("mobi: truncated data")

	// ErrRecordRange indicates a record index outside the record table, or
	// an image descriptor that does not belong to this document.
	ErrRecordRange = errors.New("mobi: record index out of range")

	// ErrClosedDocument indicates the document has already been closed.
	ErrClosedDocument = errors.New("mobi: document is closed")

	// ErrNoCover indicates no cover image could be resolved.
	ErrNoCover = errors.New("mobi: no cover image found")
)
