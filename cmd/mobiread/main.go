package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/mobiread/internal/export"
	"github.com/yuanying/mobiread/internal/mobi"
)

const (
	defaultCoverWidth = 0
	defaultJobs       = 4
)

// cliOptions holds the flag values shared by the subcommands.
type cliOptions struct {
	InputPath  string
	OutputPath string
	CoverWidth int
	Jobs       int
	SkipImages bool
	JSON       bool
	Logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mobiread",
		Short: "Inspect and unpack MOBI (Mobipocket/PalmDOC) e-books",
		Long: `mobiread reads MOBI e-book containers: it prints metadata, the
heading-derived table of contents and the embedded images, extracts
the cover, and exports the whole book to a directory.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging (same as --log-level debug)")

	root.AddCommand(
		newInfoCmd(),
		newTOCCmd(),
		newImagesCmd(),
		newCoverCmd(),
		newExportCmd(),
	)
	return root
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <book.mobi>",
		Short: "Print metadata and container facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			return withDocument(cmd.Context(), opts, func(doc *mobi.Document) error {
				summary, err := export.Summarize(doc)
				if err != nil {
					return err
				}
				if opts.JSON {
					return writeJSON(cmd.OutOrStdout(), summary)
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func newTOCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toc <book.mobi>",
		Short: "Print the table of contents built from headings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			return withDocument(cmd.Context(), opts, func(doc *mobi.Document) error {
				nav, err := doc.Navigation()
				if err != nil {
					return err
				}
				if opts.JSON {
					return writeJSON(cmd.OutOrStdout(), nav)
				}
				printNav(cmd.OutOrStdout(), nav, 0)
				return nil
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func newImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images <book.mobi>",
		Short: "List image records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			return withDocument(cmd.Context(), opts, func(doc *mobi.Document) error {
				images, err := doc.Images()
				if err != nil {
					return err
				}
				if opts.JSON {
					return writeJSON(cmd.OutOrStdout(), images)
				}
				w := cmd.OutOrStdout()
				for _, img := range images {
					dims := "?"
					if cfg, _, err := doc.ImageConfig(cmd.Context(), img); err == nil {
						dims = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
					} else {
						opts.Logger.Debug("image dimensions unavailable", "record", img.RecordIndex, "error", err)
					}
					fmt.Fprintf(w, "%5d  %-10s  %8d  %s\n", img.RecordIndex, img.MediaType, img.Size, dims)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func newCoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover <book.mobi>",
		Short: "Extract the cover image as JPEG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			if opts.OutputPath == "" {
				opts.OutputPath = strings.TrimSuffix(opts.InputPath, filepath.Ext(opts.InputPath)) + ".cover.jpg"
			}
			return withDocument(cmd.Context(), opts, func(doc *mobi.Document) error {
				cover, err := doc.Cover()
				if err != nil {
					return err
				}
				data, err := cover.Load(cmd.Context())
				if err != nil {
					return err
				}
				out, err := export.CoverImage(data, opts.CoverWidth)
				if err != nil {
					return err
				}
				if err := os.WriteFile(opts.OutputPath, out, 0o644); err != nil {
					return fmt.Errorf("failed to write cover: %w", err)
				}
				opts.Logger.Info("cover written", "path", opts.OutputPath, "record", cover.Image.RecordIndex, "source", cover.Source)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: input with .cover.jpg extension)")
	cmd.Flags().Int("cover-width", defaultCoverWidth, "Maximum cover width in pixels (0 keeps the original size)")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <book.mobi>",
		Short: "Export metadata, table of contents, images, cover and HTML to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}

			opts.Logger.Info("exporting", "input", opts.InputPath, "output", opts.OutputPath)

			p := export.NewPipeline(export.Options{
				InputPath:     opts.InputPath,
				OutputDir:     opts.OutputPath,
				CoverMaxWidth: opts.CoverWidth,
				Concurrency:   opts.Jobs,
				SkipImages:    opts.SkipImages,
				Logger:        opts.Logger,
			})
			res, err := p.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.OutputDir)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output directory (default: input without extension)")
	cmd.Flags().Int("cover-width", defaultCoverWidth, "Maximum cover width in pixels (0 keeps the original size)")
	cmd.Flags().IntP("jobs", "j", defaultJobs, "Number of images written in parallel")
	cmd.Flags().Bool("no-images", false, "Skip writing image records")
	return cmd
}

// readCLIOptions collects flag values. Flags a subcommand does not define
// keep their defaults.
func readCLIOptions(cmd *cobra.Command, args []string) (cliOptions, error) {
	opts := cliOptions{
		InputPath:  args[0],
		CoverWidth: defaultCoverWidth,
		Jobs:       defaultJobs,
	}

	flags := cmd.Flags()
	if flags.Lookup("output") != nil {
		opts.OutputPath, _ = flags.GetString("output")
	}
	if flags.Lookup("cover-width") != nil {
		opts.CoverWidth, _ = flags.GetInt("cover-width")
		if opts.CoverWidth < 0 {
			return cliOptions{}, fmt.Errorf("--cover-width must be >= 0, got %d", opts.CoverWidth)
		}
	}
	if flags.Lookup("jobs") != nil {
		opts.Jobs, _ = flags.GetInt("jobs")
		if opts.Jobs < 1 {
			return cliOptions{}, fmt.Errorf("--jobs must be >= 1, got %d", opts.Jobs)
		}
	}
	if flags.Lookup("no-images") != nil {
		opts.SkipImages, _ = flags.GetBool("no-images")
	}
	if flags.Lookup("json") != nil {
		opts.JSON, _ = flags.GetBool("json")
	}

	levelName, _ := flags.GetString("log-level")
	verbose, _ := flags.GetBool("verbose")
	level, err := parseLogLevel(levelName)
	if err != nil {
		return cliOptions{}, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return opts, nil
}

func parseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid --log-level %q (want debug, info, warn or error)", name)
}

// withDocument opens the input, runs fn and closes the document.
func withDocument(ctx context.Context, opts cliOptions, fn func(doc *mobi.Document) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, err := mobi.Open(ctx, opts.InputPath, mobi.Options{Logger: opts.Logger})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, doc.Close())
	}()
	return fn(doc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, s export.Summary) {
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-13s %s\n", name+":", value)
		}
	}
	field("Title", s.Title)
	field("Authors", strings.Join(s.Authors, ", "))
	field("Publisher", s.Publisher)
	field("Language", s.Language)
	field("Published", s.PublishDate)
	field("Identifier", s.Identifier)
	field("ISBN", s.ISBN)
	field("ASIN", s.ASIN)
	field("Subjects", strings.Join(s.Subjects, ", "))
	field("Contributors", strings.Join(s.Contributors, ", "))
	field("Rights", s.Rights)
	field("Description", s.Description)
	field("Compression", s.Compression)
	field("Encoding", s.Encoding)
	if s.Encrypted {
		field("Encrypted", "yes")
	}
	field("Version", fmt.Sprint(s.FormatVersion))
	field("Text records", fmt.Sprint(s.TextRecords))
	field("Images", fmt.Sprint(s.Images))
	if s.Cover != nil {
		field("Cover", fmt.Sprintf("record %d (%s, %s)", s.Cover.Record, s.Cover.MediaType, s.Cover.Source))
	}
}

func printNav(w io.Writer, nodes []mobi.NavNode, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), n.Title)
		printNav(w, n.Children, depth+1)
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
