package mobi

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NavNode is one table-of-contents entry derived from a heading.
// Position is the byte offset of the heading tag in the decoded markup.
// Anchor is the heading's id (or a nearby anchor name), empty if none.
type NavNode struct {
	Title    string
	Anchor   string
	Position int
	Children []NavNode
}

// Heading is one heading occurrence found in markup.
type Heading struct {
	Level    int
	Title    string
	Anchor   string
	Position int
}

// headingLevels maps heading elements to their structural depth.
var headingLevels = map[atom.Atom]int{
	atom.H1: 1,
	atom.H2: 2,
	atom.H3: 3,
	atom.H4: 4,
	atom.H5: 5,
	atom.H6: 6,
}

// ExtractHeadings scans markup for h1-h6 elements in document order.
// Headings whose text is empty are dropped. An <a id> or <a name> directly
// before a heading, with no text in between, becomes its anchor when the
// heading has none of its own.
func ExtractHeadings(markup string) []Heading {
	z := html.NewTokenizer(strings.NewReader(markup))

	var (
		headings []Heading
		current  *Heading
		level    atom.Atom
		title    strings.Builder
		pending  string // anchor seen since the last text outside headings
		offset   int
	)

	finish := func() {
		if t := collapseSpace(title.String()); t != "" {
			current.Title = t
			if current.Anchor == "" {
				current.Anchor = pending
			}
			headings = append(headings, *current)
			pending = ""
		}
		current = nil
		title.Reset()
	}

	for {
		tt := z.Next()
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.ErrorToken:
			if current != nil {
				finish()
			}
			return headings

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			anchor := ""
			if hasAttr {
				anchor = anchorAttr(z)
			}

			if lvl, ok := headingLevels[a]; ok && current == nil && tt == html.StartTagToken {
				current = &Heading{Level: lvl, Anchor: anchor, Position: start}
				level = a
				continue
			}

			switch {
			case current != nil:
				if current.Anchor == "" && anchor != "" {
					current.Anchor = anchor
				}
				if a == atom.Br {
					title.WriteByte(' ')
				}
			case a == atom.A && anchor != "":
				pending = anchor
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if current != nil && atom.Lookup(name) == level {
				finish()
			}

		case html.TextToken:
			if current != nil {
				title.Write(z.Text())
			} else if strings.TrimSpace(string(z.Text())) != "" {
				pending = ""
			}
		}
	}
}

// anchorAttr returns the id or name attribute of the current tag.
func anchorAttr(z *html.Tokenizer) string {
	var id, name string
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "id":
			id = string(val)
		case "name":
			name = string(val)
		}
		if !more {
			break
		}
	}
	if id != "" {
		return id
	}
	return name
}

// BuildNavigation nests headings into a tree with a depth stack: each heading
// becomes a child of the nearest preceding heading with a smaller level, or a
// root when there is none.
func BuildNavigation(headings []Heading) []NavNode {
	type item struct {
		level    int
		node     NavNode
		children []*item
	}

	var roots []*item
	var stack []*item

	for _, h := range headings {
		for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		it := &item{
			level: h.Level,
			node:  NavNode{Title: h.Title, Anchor: h.Anchor, Position: h.Position},
		}
		if len(stack) == 0 {
			roots = append(roots, it)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, it)
		}
		stack = append(stack, it)
	}

	var convert func(items []*item) []NavNode
	convert = func(items []*item) []NavNode {
		if len(items) == 0 {
			return nil
		}
		nodes := make([]NavNode, len(items))
		for i, it := range items {
			nodes[i] = it.node
			nodes[i].Children = convert(it.children)
		}
		return nodes
	}

	return convert(roots)
}

// collapseSpace trims s and collapses internal whitespace runs to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
