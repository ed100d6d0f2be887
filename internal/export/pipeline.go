package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuanying/mobiread/internal/mobi"
)

const (
	metadataFileName = "metadata.json"
	tocFileName      = "toc.html"
	coverFileName    = "cover.jpg"
)

// Options holds options for the export pipeline.
type Options struct {
	InputPath string
	// OutputDir defaults to the input path without its extension.
	OutputDir string
	// CoverMaxWidth downsizes the cover when positive.
	CoverMaxWidth int
	// Concurrency bounds parallel image writes.
	Concurrency int
	SkipImages  bool
	Logger      *slog.Logger
}

// Result lists the files written by an export, relative to the output directory.
type Result struct {
	OutputDir string
	Metadata  string
	TOC       string
	Book      string
	Cover     string
	Images    []string
}

// Pipeline opens a MOBI document and writes its assets to a directory.
type Pipeline struct {
	Options Options
}

// NewPipeline creates a new export pipeline with defaults applied.
func NewPipeline(opts Options) *Pipeline {
	if opts.OutputDir == "" && opts.InputPath != "" {
		opts.OutputDir = strings.TrimSuffix(opts.InputPath, filepath.Ext(opts.InputPath))
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.CoverMaxWidth < 0 {
		opts.CoverMaxWidth = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{Options: opts}
}

// Run opens the input document and exports it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	doc, err := mobi.Open(ctx, p.Options.InputPath, mobi.Options{Logger: p.Options.Logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open MOBI: %w", err)
	}
	defer doc.Close()

	return p.Export(ctx, doc)
}

// Export writes the assets of an already opened document.
func (p *Pipeline) Export(ctx context.Context, doc *mobi.Document) (*Result, error) {
	logger := p.Options.Logger
	dir := p.Options.OutputDir
	if dir == "" {
		return nil, errors.New("output directory is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary, err := Summarize(doc)
	if err != nil {
		return nil, err
	}
	header, err := doc.Header()
	if err != nil {
		return nil, err
	}
	images, err := doc.Images()
	if err != nil {
		return nil, err
	}
	nav, err := doc.Navigation()
	if err != nil {
		return nil, err
	}
	text, err := doc.Text()
	if err != nil {
		return nil, err
	}

	res := &Result{OutputDir: dir}

	imageNames := make(map[int]string)
	if !p.Options.SkipImages {
		names, err := writeImages(ctx, doc, dir, images, p.Options.Concurrency)
		if err != nil {
			return nil, err
		}
		for i, desc := range images {
			imageNames[desc.RecordIndex] = names[i]
		}
		res.Images = names
	}

	cover, err := p.writeCover(ctx, doc, dir)
	if err != nil {
		return nil, err
	}
	res.Cover = cover
	summary.CoverFile = cover

	if toc := GenerateTOC(summary.Title, nav); toc != "" {
		if err := os.WriteFile(filepath.Join(dir, tocFileName), []byte(toc), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write TOC: %w", err)
		}
		res.TOC = tocFileName
	}

	if text != "" {
		positions := make(map[int]bool)
		positionTargets(nav, positions)
		book, err := bookRewrite{
			firstImage: header.FirstImageRecord,
			imageNames: imageNames,
			positions:  positions,
		}.BuildBook(text)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(dir, bookFileName), []byte(book), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write book: %w", err)
		}
		res.Book = bookFileName
	} else {
		logger.Warn("document body unavailable, skipping book.html", "compression", header.Compression)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFileName), append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	res.Metadata = metadataFileName

	logger.Info("export complete", "dir", dir, "images", len(res.Images), "cover", res.Cover != "")
	return res, nil
}

// writeCover writes the cover as JPEG, or as its original payload when it
// cannot be decoded. It returns "" when the document has no cover.
func (p *Pipeline) writeCover(ctx context.Context, doc *mobi.Document, dir string) (string, error) {
	cover, err := doc.Cover()
	if errors.Is(err, mobi.ErrNoCover) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	data, err := cover.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read cover: %w", err)
	}

	name := coverFileName
	out, err := CoverImage(data, p.Options.CoverMaxWidth)
	if err != nil {
		p.Options.Logger.Warn("cover kept as-is", "record", cover.Image.RecordIndex, "error", err)
		out = data
		name = "cover" + filepath.Ext(imageFileName(cover.Image))
	}

	if err := os.WriteFile(filepath.Join(dir, name), out, 0o644); err != nil {
		return "", fmt.Errorf("failed to write cover: %w", err)
	}
	return name, nil
}
