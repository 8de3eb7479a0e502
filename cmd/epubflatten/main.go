// Command epubflatten converts an EPUB file into a self-contained output:
// plain text, a single HTML document, a ZIP package, or a paginated PDF.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	converter "github.com/albertbuchard/one-more-epub-converter"
	"github.com/albertbuchard/one-more-epub-converter/progress"
)

var outputExtensions = map[string]string{
	"txt":  ".txt",
	"html": ".html",
	"zip":  ".zip",
	"pdf":  ".pdf",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	var epubFile string

	return &cli.Command{
		Name:  "epubflatten",
		Usage: "convert an EPUB file into plain text, HTML, a ZIP package, or a PDF",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "html",
				Usage:   "output format: txt, html, zip, or pdf",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output file path; defaults to the input name with the format's extension",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "override the document title from the book metadata",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "print conversion progress to stderr",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "input",
				UsageText:   "<epub-file>",
				Destination: &epubFile,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, epubFile)
		},
	}
}

func run(ctx context.Context, cmd *cli.Command, epubFile string) error {
	if epubFile == "" {
		return fmt.Errorf("no input file given (expected: epubflatten [flags] <epub-file>)")
	}

	outFormat := strings.ToLower(cmd.String("format"))
	ext, ok := outputExtensions[outFormat]
	if !ok {
		return fmt.Errorf("unknown output format %q (expected txt, html, zip, or pdf)", outFormat)
	}

	outPath := cmd.String("output")
	if outPath == "" {
		base := strings.TrimSuffix(epubFile, filepath.Ext(epubFile))
		outPath = base + ext
	}

	log, err := newLogger(cmd.Bool("verbose"))
	if err != nil {
		return err
	}
	defer log.Sync()

	conv := converter.Open(epubFile).WithLogger(log)
	if title := cmd.String("title"); title != "" {
		conv = conv.WithTitle(title)
	}
	if cmd.Bool("progress") {
		conv = conv.WithProgress(printProgress)
	}

	var out []byte
	switch outFormat {
	case "txt":
		text, err := conv.Text(ctx)
		if err != nil {
			return err
		}
		out = []byte(text)
	case "html":
		html, err := conv.HTML(ctx)
		if err != nil {
			return err
		}
		out = []byte(html)
	case "zip":
		out, err = conv.Package(ctx)
		if err != nil {
			return err
		}
	case "pdf":
		out, err = conv.PDF(ctx)
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	log.Info("conversion finished",
		zap.String("format", outFormat), zap.String("output", outPath))
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func printProgress(ev progress.Event) {
	switch ev.Phase {
	case progress.PhaseDone:
		fmt.Fprintf(os.Stderr, "\r100%% done\n")
	case progress.PhaseError:
		fmt.Fprintf(os.Stderr, "\rfailed: %s\n", ev.Detail)
	default:
		if ev.Unit != nil {
			fmt.Fprintf(os.Stderr, "\r%3d%% %s (%s %d/%d)",
				ev.Percent, ev.Stage, ev.Unit.Label, ev.Unit.Current, ev.Unit.Total)
			return
		}
		fmt.Fprintf(os.Stderr, "\r%3d%% %s", ev.Percent, ev.Stage)
	}
}
