package export

import (
	"errors"

	"github.com/yuanying/mobiread/internal/mobi"
)

// Summary is the metadata record written to metadata.json and printed by
// the info command.
type Summary struct {
	Title         string            `json:"title"`
	Authors       []string          `json:"authors,omitempty"`
	Publisher     string            `json:"publisher,omitempty"`
	Description   string            `json:"description,omitempty"`
	Language      string            `json:"language,omitempty"`
	PublishDate   string            `json:"publishDate,omitempty"`
	Identifier    string            `json:"identifier,omitempty"`
	Subjects      []string          `json:"subjects,omitempty"`
	Rights        string            `json:"rights,omitempty"`
	Contributors  []string          `json:"contributors,omitempty"`
	ASIN          string            `json:"asin,omitempty"`
	ISBN          string            `json:"isbn,omitempty"`
	FormatVersion uint32            `json:"formatVersion"`
	Extra         map[string]string `json:"extra,omitempty"`

	Compression string      `json:"compression"`
	Encoding    string      `json:"encoding"`
	Encrypted   bool        `json:"encrypted,omitempty"`
	TextRecords int         `json:"textRecords"`
	Images      int         `json:"images"`
	Cover       *CoverEntry `json:"cover,omitempty"`
	CoverFile   string      `json:"coverFile,omitempty"`
}

// CoverEntry identifies the cover image record.
type CoverEntry struct {
	Record    int    `json:"record"`
	MediaType string `json:"mediaType"`
	Source    string `json:"source"`
}

// Summarize collects the metadata and container facts of a document.
func Summarize(doc *mobi.Document) (Summary, error) {
	meta, err := doc.Metadata()
	if err != nil {
		return Summary{}, err
	}
	header, err := doc.Header()
	if err != nil {
		return Summary{}, err
	}
	images, err := doc.Images()
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Title:         meta.Title,
		Authors:       meta.Authors,
		Publisher:     meta.Publisher,
		Description:   meta.Description,
		Language:      meta.Language,
		PublishDate:   meta.PublishDate,
		Identifier:    meta.Identifier,
		Subjects:      meta.Subjects,
		Rights:        meta.Rights,
		Contributors:  meta.Contributors,
		ASIN:          meta.ASIN,
		ISBN:          meta.ISBN,
		FormatVersion: meta.FormatVersion,
		Extra:         meta.Extra,
		Compression:   header.Compression.String(),
		Encoding:      header.Codepage.String(),
		Encrypted:     header.Encrypted(),
		TextRecords:   header.TextRecordCount,
		Images:        len(images),
	}

	cover, err := doc.Cover()
	switch {
	case err == nil:
		s.Cover = &CoverEntry{
			Record:    cover.Image.RecordIndex,
			MediaType: cover.Image.MediaType,
			Source:    string(cover.Source),
		}
	case !errors.Is(err, mobi.ErrNoCover):
		return Summary{}, err
	}

	return s, nil
}
