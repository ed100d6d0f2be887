package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yuanying/mobiread/internal/export"
	"github.com/yuanying/mobiread/internal/mobi"
	"github.com/yuanying/mobiread/internal/mobi/mobitest"
)

func writeSampleBook(t *testing.T) string {
	t.Helper()
	data := mobitest.Builder{
		Name:        "CLI_Book",
		FullName:    "CLI Book",
		Compression: mobitest.CompressionPalmDoc,
		Text:        []byte("<h1>One</h1><h2>One.A</h2><h1>Two</h1>"),
		EXTH: []mobitest.EXTHRecord{
			mobitest.StringRecord(mobi.EXTHAuthor, "Jane Doe"),
		},
		Resources: [][]byte{mobitest.JPEG(40, 80)},
	}.Build()

	path := filepath.Join(t.TempDir(), "book.mobi")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute(%v) error = %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String()
}

func TestReadCLIOptions_Defaults(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"export"})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	opts, err := readCLIOptions(cmd, []string{"./input/book.mobi"})
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.InputPath != "./input/book.mobi" {
		t.Fatalf("InputPath = %q", opts.InputPath)
	}
	if opts.OutputPath != "" {
		t.Fatalf("OutputPath = %q, want empty", opts.OutputPath)
	}
	if opts.Jobs != defaultJobs {
		t.Fatalf("Jobs = %d, want %d", opts.Jobs, defaultJobs)
	}
	if opts.CoverWidth != defaultCoverWidth {
		t.Fatalf("CoverWidth = %d, want %d", opts.CoverWidth, defaultCoverWidth)
	}
	if opts.Logger == nil {
		t.Fatal("Logger is nil, want non-nil")
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
}

func TestReadCLIOptions_CustomFlags(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"export"})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if err := cmd.ParseFlags([]string{
		"--output", "./out/book",
		"--cover-width", "300",
		"--jobs", "8",
		"--no-images",
		"--log-level", "warn",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	opts, err := readCLIOptions(cmd, []string{"./input/book.mobi"})
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.OutputPath != "./out/book" {
		t.Fatalf("OutputPath = %q", opts.OutputPath)
	}
	if opts.CoverWidth != 300 {
		t.Fatalf("CoverWidth = %d", opts.CoverWidth)
	}
	if opts.Jobs != 8 {
		t.Fatalf("Jobs = %d", opts.Jobs)
	}
	if !opts.SkipImages {
		t.Fatal("SkipImages = false, want true")
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should not be enabled at INFO level with --log-level warn")
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("Logger should be enabled at WARN level")
	}
}

func TestReadCLIOptions_Verbose(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"info"})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if err := cmd.ParseFlags([]string{"--log-level", "error", "--verbose", "--json"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	opts, err := readCLIOptions(cmd, []string{"book.mobi"})
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("--verbose should enable DEBUG logging")
	}
	if !opts.JSON {
		t.Fatal("JSON = false, want true")
	}
}

func TestReadCLIOptions_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative cover width", []string{"--cover-width", "-1"}},
		{"zero jobs", []string{"--jobs", "0"}},
		{"unknown log level", []string{"--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			cmd, _, err := root.Find([]string{"export"})
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}
			if _, err := readCLIOptions(cmd, []string{"book.mobi"}); err == nil {
				t.Fatal("readCLIOptions() error = nil, want error")
			}
		})
	}
}

func TestInfoCommand(t *testing.T) {
	path := writeSampleBook(t)

	out := run(t, "info", path)
	for _, want := range []string{"CLI Book", "Jane Doe", "palmdoc", "record 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("info output missing %q:\n%s", want, out)
		}
	}

	var summary export.Summary
	if err := json.Unmarshal([]byte(run(t, "info", "--json", path)), &summary); err != nil {
		t.Fatalf("info --json output is not JSON: %v", err)
	}
	if summary.Title != "CLI Book" || summary.Images != 1 {
		t.Fatalf("summary = %+v, want title and one image", summary)
	}
}

func TestTOCCommand(t *testing.T) {
	out := run(t, "toc", writeSampleBook(t))
	want := "One\n  One.A\nTwo\n"
	if out != want {
		t.Fatalf("toc output = %q, want %q", out, want)
	}
}

func TestImagesCommand(t *testing.T) {
	out := run(t, "images", writeSampleBook(t))
	if !strings.Contains(out, "image/jpeg") || !strings.Contains(out, "40x80") {
		t.Fatalf("images output = %q, want a 40x80 jpeg", out)
	}
}

func TestCoverCommand(t *testing.T) {
	path := writeSampleBook(t)
	dest := filepath.Join(t.TempDir(), "cover.jpg")

	run(t, "cover", "-o", dest, "--cover-width", "20", path)

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(data) < 3 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("cover is not a JPEG")
	}
}

func TestExportCommand(t *testing.T) {
	path := writeSampleBook(t)
	dest := filepath.Join(t.TempDir(), "out")

	out := run(t, "export", "-o", dest, "--jobs", "2", path)
	if strings.TrimSpace(out) != dest {
		t.Fatalf("export output = %q, want %q", out, dest)
	}
	for _, name := range []string{"metadata.json", "toc.html", "book.html", "cover.jpg", "images/00002.jpg"} {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(name))); err != nil {
			t.Fatalf("Stat(%s) error: %v", name, err)
		}
	}
}
