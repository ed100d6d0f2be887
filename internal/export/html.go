package export

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fileposRe matches filepos attributes as written by MOBI generators, which
// are usually unquoted and zero padded (filepos=0000012345).
var fileposRe = regexp.MustCompile(`(?i)\bfilepos\s*=\s*["']?0*(\d+)`)

// tagConversions maps MOBI-specific elements to HTML replacements.
var tagConversions = map[string]string{
	"mbp:pagebreak": "div",
	"mbp:nu":        "span",
	"mbp:section":   "div",
}

// bookRewrite describes how the MOBI markup is turned into standalone HTML.
type bookRewrite struct {
	// firstImage is the absolute record index recindex values count from;
	// -1 when the document declares no images.
	firstImage int
	// imageNames maps absolute record indices to exported file names.
	imageNames map[int]string
	// positions are extra byte offsets that receive an anchor.
	positions map[int]bool
}

// BuildBook rewrites MOBI markup into a standalone HTML document: anchors are
// inserted at every filepos target, filepos links become fragment links, and
// recindex image references point at the exported image files.
func (r bookRewrite) BuildBook(markup string) (string, error) {
	targets := make(map[int]bool, len(r.positions))
	for pos := range r.positions {
		targets[pos] = true
	}
	for _, m := range fileposRe.FindAllStringSubmatch(markup, -1) {
		if pos, err := strconv.Atoi(m[1]); err == nil {
			targets[pos] = true
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(insertAnchors(markup, targets)))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	doc.Find("a[filepos]").Each(func(i int, s *goquery.Selection) {
		fp, _ := s.Attr("filepos")
		if pos, err := strconv.Atoi(strings.Trim(fp, `"' `)); err == nil {
			s.SetAttr("href", "#"+positionID(pos))
		}
		s.RemoveAttr("filepos")
	})

	doc.Find("img[recindex]").Each(func(i int, s *goquery.Selection) {
		idx, _ := s.Attr("recindex")
		s.RemoveAttr("recindex")
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || r.firstImage < 0 {
			return
		}
		if name, ok := r.imageNames[r.firstImage+n-1]; ok {
			s.SetAttr("src", name)
		}
	})

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		node := s.Get(0)
		if newTag, ok := tagConversions[node.Data]; ok {
			s.SetAttr("class", strings.ReplaceAll(node.Data, ":", "-"))
			node.Data = newTag
		}
	})
	doc.Find("guide").Remove()

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}

// insertAnchors inserts an empty <a id="fileposN"> at each target offset.
// Offsets that fall inside a tag are moved to the start of that tag; offsets
// past the end of the markup are dropped.
func insertAnchors(markup string, targets map[int]bool) string {
	type insertion struct {
		at, pos int
	}

	var inserts []insertion
	for pos := range targets {
		if pos < 0 || pos > len(markup) {
			continue
		}
		at := pos
		open := strings.LastIndexByte(markup[:pos], '<')
		if open >= 0 && open > strings.LastIndexByte(markup[:pos], '>') {
			at = open
		}
		inserts = append(inserts, insertion{at: at, pos: pos})
	}

	// Insert back to front so earlier offsets stay valid.
	slices.SortFunc(inserts, func(a, b insertion) int {
		if a.at != b.at {
			return b.at - a.at
		}
		return b.pos - a.pos
	})

	var b strings.Builder
	b.Grow(len(markup) + len(inserts)*32)
	end := len(markup)
	var tail []string
	for _, ins := range inserts {
		tail = append(tail, markup[ins.at:end], `<a id="`+positionID(ins.pos)+`"></a>`)
		end = ins.at
	}
	b.WriteString(markup[:end])
	for i := len(tail) - 1; i >= 0; i-- {
		b.WriteString(tail[i])
	}
	return b.String()
}
