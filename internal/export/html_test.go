package export

import (
	"fmt"
	"strings"
	"testing"
)

func TestInsertAnchors(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		targets []int
		want    string
	}{
		{"no targets", "<p>abc</p>", nil, "<p>abc</p>"},
		{"between tags", "<p>a</p><p>b</p>", []int{8}, `<p>a</p><a id="filepos8"></a><p>b</p>`},
		{"inside text", "<p>abc</p>", []int{4}, `<p>a<a id="filepos4"></a>bc</p>`},
		{"inside a tag moves to its start", `<p class="x">a</p>`, []int{5}, `<a id="filepos5"></a><p class="x">a</p>`},
		{"at the end", "ab", []int{2}, `ab<a id="filepos2"></a>`},
		{"past the end is dropped", "ab", []int{3}, "ab"},
		{
			name:    "two targets in one tag",
			markup:  `x<p class="y">`,
			targets: []int{3, 5},
			want:    `x<a id="filepos3"></a><a id="filepos5"></a><p class="y">`,
		},
		{
			name:    "several targets",
			markup:  "<p>a</p><p>b</p><p>c</p>",
			targets: []int{0, 8, 16},
			want:    `<a id="filepos0"></a><p>a</p><a id="filepos8"></a><p>b</p><a id="filepos16"></a><p>c</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets := make(map[int]bool)
			for _, pos := range tt.targets {
				targets[pos] = true
			}
			if got := insertAnchors(tt.markup, targets); got != tt.want {
				t.Fatalf("insertAnchors() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildBook(t *testing.T) {
	// Fixed-width filepos values keep the prefix length independent of the target.
	prefix := `<html><head><guide><reference type="toc" filepos=%010d /></guide></head><body>` +
		`<p><a filepos=%010d>Go to chapter</a></p>` +
		`<mbp:pagebreak/>`
	target := len(fmt.Sprintf(prefix, 0, 0))
	markup := fmt.Sprintf(prefix, target, target) +
		`<h1>Chapter</h1><p><img recindex="00002" /><img recindex="00009" /></p>` +
		`</body></html>`

	r := bookRewrite{
		firstImage: 4,
		imageNames: map[int]string{5: "images/00005.png"},
	}
	got, err := r.BuildBook(markup)
	if err != nil {
		t.Fatalf("BuildBook() error: %v", err)
	}

	checks := []struct {
		name string
		want string
	}{
		{"filepos link", fmt.Sprintf(`href="#filepos%d"`, target)},
		{"anchor before heading", fmt.Sprintf(`<a id="filepos%d"></a><h1>`, target)},
		{"image reference", `src="images/00005.png"`},
		{"page break", `class="mbp-pagebreak"`},
	}
	for _, c := range checks {
		if !strings.Contains(got, c.want) {
			t.Fatalf("BuildBook() missing %s (%s):\n%s", c.name, c.want, got)
		}
	}

	for _, unwanted := range []string{"filepos=", "recindex", "<guide", "mbp:pagebreak"} {
		if strings.Contains(got, unwanted) {
			t.Fatalf("BuildBook() still contains %q:\n%s", unwanted, got)
		}
	}
}

func TestBuildBook_NoImages(t *testing.T) {
	r := bookRewrite{firstImage: -1}
	got, err := r.BuildBook(`<p><img recindex="00001"/></p>`)
	if err != nil {
		t.Fatalf("BuildBook() error: %v", err)
	}
	if strings.Contains(got, "src=") || strings.Contains(got, "recindex") {
		t.Fatalf("BuildBook() = %q, want img without src or recindex", got)
	}
}
