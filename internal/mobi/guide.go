package mobi

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GuideReference is one <reference> entry of the MOBI7 <guide> block.
// FilePos is the byte offset it points to, or -1 when the reference has none.
type GuideReference struct {
	Type    string
	Title   string
	FilePos int
}

// ParseGuide extracts guide references from the head of the markup.
// Markup without a guide yields nil.
func ParseGuide(markup string) []GuideReference {
	lower := asciiLower(markup)
	start := strings.Index(lower, "<guide")
	if start < 0 {
		return nil
	}
	end := strings.Index(lower[start:], "</guide>")
	if end < 0 {
		end = len(markup) - start
	} else {
		end += len("</guide>")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup[start : start+end]))
	if err != nil {
		return nil
	}

	var refs []GuideReference
	doc.Find("guide reference").Each(func(i int, s *goquery.Selection) {
		ref := GuideReference{
			Type:    strings.TrimSpace(s.AttrOr("type", "")),
			Title:   strings.TrimSpace(s.AttrOr("title", "")),
			FilePos: -1,
		}
		if fp, ok := s.Attr("filepos"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(fp)); err == nil && n >= 0 {
				ref.FilePos = n
			}
		}
		if ref.Type == "" {
			return
		}
		refs = append(refs, ref)
	})

	return refs
}

// asciiLower lowercases ASCII letters only, keeping byte offsets aligned with s.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
