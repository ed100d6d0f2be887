package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/yuanying/mobiread/internal/mobi"
)

const bookFileName = "book.html"

// positionID is the id given to anchors inserted at a byte offset of the body.
func positionID(pos int) string {
	return fmt.Sprintf("filepos%d", pos)
}

// navHref links a navigation node into the exported book. Nodes without an
// anchor of their own point at the anchor inserted at their position.
func navHref(n mobi.NavNode) string {
	if n.Anchor != "" {
		return bookFileName + "#" + n.Anchor
	}
	return bookFileName + "#" + positionID(n.Position)
}

// GenerateTOC renders the navigation tree as a standalone HTML page.
// Returns an empty string if there are no entries.
func GenerateTOC(title string, nav []mobi.NavNode) string {
	if len(nav) == 0 {
		return ""
	}
	if title == "" {
		title = "Table of Contents"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"/>")
	fmt.Fprintf(&b, "<title>%s</title></head><body>", html.EscapeString(title))
	b.WriteString(`<div id="toc">`)
	fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(title))
	writeTOCEntries(&b, nav)
	b.WriteString("</div></body></html>\n")

	return b.String()
}

// writeTOCEntries recursively writes nodes as nested <ul>/<li> with links.
func writeTOCEntries(b *strings.Builder, nodes []mobi.NavNode) {
	b.WriteString("<ul>")
	for _, n := range nodes {
		b.WriteString("<li>")
		fmt.Fprintf(b, `<a href="%s">%s</a>`, html.EscapeString(navHref(n)), html.EscapeString(n.Title))
		if len(n.Children) > 0 {
			writeTOCEntries(b, n.Children)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
}

// positionTargets collects the offsets of nodes that need an inserted anchor.
func positionTargets(nodes []mobi.NavNode, out map[int]bool) {
	for _, n := range nodes {
		if n.Anchor == "" {
			out[n.Position] = true
		}
		positionTargets(n.Children, out)
	}
}
