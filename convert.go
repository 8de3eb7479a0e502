package converter

import (
	"context"
	"fmt"

	"github.com/albertbuchard/one-more-epub-converter/assemble"
	"github.com/albertbuchard/one-more-epub-converter/assets"
	"github.com/albertbuchard/one-more-epub-converter/epubdoc"
	"github.com/albertbuchard/one-more-epub-converter/pdf"
	"github.com/albertbuchard/one-more-epub-converter/progress"
	"github.com/albertbuchard/one-more-epub-converter/rewrite"
	"github.com/albertbuchard/one-more-epub-converter/sanitize"
	"github.com/albertbuchard/one-more-epub-converter/text"
)

// docScale weights the phases of the text, HTML and package pipelines.
func docScale() *progress.Scale {
	return progress.NewScale([]progress.PhaseWeight{
		{Phase: progress.PhaseOpen, Weight: 1},
		{Phase: progress.PhaseChapters, Weight: 7},
		{Phase: progress.PhaseAssemble, Weight: 2},
	})
}

// pdfScale covers the whole PDF pipeline, document phases and render
// phases on one scale, so percentages never jump between legs.
func pdfScale() *progress.Scale {
	return progress.NewScale([]progress.PhaseWeight{
		{Phase: progress.PhaseOpen, Weight: 1},
		{Phase: progress.PhaseChapters, Weight: 3},
		{Phase: progress.PhaseAssemble, Weight: 1},
		{Phase: progress.PhasePrepare, Weight: 1},
		{Phase: progress.PhaseMeasure, Weight: 1},
		{Phase: progress.PhaseCapture, Weight: 6},
		{Phase: progress.PhaseFinalize, Weight: 1},
	})
}

// job carries the per-conversion state: every cache and sink lives for one
// terminal operation and is discarded afterwards.
type job struct {
	conv  *Converter
	book  *epubdoc.Book
	pub   *progress.Publisher
	scale *progress.Scale
}

func (c *Converter) startJob(scale *progress.Scale) (*job, error) {
	pub := progress.NewPublisher(c.options.onProgress)
	pub.Publish(progress.Event{
		Running: true, Phase: progress.PhaseOpen,
		Percent: scale.PercentFor(progress.PhaseOpen, 0), Stage: "opening",
	})

	book, err := c.ensureBook()
	if err != nil {
		pub.Publish(progress.Event{
			Phase: progress.PhaseError, Stage: "opening", Detail: err.Error(),
		})
		pub.Flush()
		return nil, err
	}
	return &job{conv: c, book: book, pub: pub, scale: scale}, nil
}

func (j *job) fail(stage string, err error) error {
	j.pub.Publish(progress.Event{
		Phase:   progress.PhaseError,
		Percent: j.pub.Snapshot().Percent,
		Stage:   stage,
		Detail:  err.Error(),
	})
	j.pub.Flush()
	return err
}

func (j *job) done() {
	j.pub.Publish(progress.Event{Phase: progress.PhaseDone, Percent: 100, Stage: "done"})
	j.pub.Flush()
}

func (j *job) chapterProgress(done, total int) {
	j.pub.Publish(progress.Event{
		Running: true, Phase: progress.PhaseChapters,
		Percent: j.scale.PercentFor(progress.PhaseChapters, float64(done)/float64(total)),
		Stage:   "converting chapters",
		Unit:    &progress.Unit{Label: "chapters", Current: done, Total: total},
	})
}

// Text converts the publication to plain text: chapters in spine order,
// sanitized, flattened and joined by blank lines. Assets are not touched.
func (c *Converter) Text(ctx context.Context) (string, error) {
	j, err := c.startJob(docScale())
	if err != nil {
		return "", err
	}

	policy := sanitize.NewPolicy()
	chapters := j.book.Chapters()
	extracted := make([]string, 0, len(chapters))
	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return "", j.fail("converting chapters", err)
		}
		extracted = append(extracted, text.Extract(policy.Sanitize(ch.RawHTML)))
		j.chapterProgress(i+1, len(chapters))
	}

	j.pub.Publish(progress.Event{
		Running: true, Phase: progress.PhaseAssemble,
		Percent: j.scale.PercentFor(progress.PhaseAssemble, 0.5), Stage: "assembling",
	})
	out := text.JoinChapters(extracted)

	j.done()
	return out, nil
}

// assembleDocument runs the shared HTML pipeline for one job. In package
// mode a Sink must be supplied; inline mode embeds every asset as a data
// URI.
func (j *job) assembleDocument(ctx context.Context, mode rewrite.Mode, sink *assets.Sink) (assemble.Result, error) {
	if err := ctx.Err(); err != nil {
		return assemble.Result{}, j.fail("converting chapters", err)
	}

	log := j.conv.options.log()
	policy := sanitize.NewPolicy()
	fetcher := assets.NewFetcher(j.book, log)
	rw := rewrite.New(rewrite.Config{
		Index:     j.book,
		OPFDir:    j.book.OPFDir(),
		Fetcher:   fetcher,
		Sink:      sink,
		Sanitizer: policy,
		Mode:      mode,
		Logger:    log,
	})

	res, err := assemble.Document(ctx, j.book.Chapters(), assemble.Options{
		Title:     j.conv.title(j.book),
		Rewriter:  rw,
		Sanitizer: policy,
		Logger:    log,
		Sink:      sink,
		OnChapter: j.chapterProgress,
	})
	if err != nil {
		return assemble.Result{}, j.fail("converting chapters", err)
	}

	if err := ctx.Err(); err != nil {
		return assemble.Result{}, j.fail("assembling", err)
	}
	j.pub.Publish(progress.Event{
		Running: true, Phase: progress.PhaseAssemble,
		Percent: j.scale.PercentFor(progress.PhaseAssemble, 0.5), Stage: "assembling",
	})
	return res, nil
}

// HTML converts the publication to one self-contained HTML document with
// every reachable asset inlined as a data URI.
func (c *Converter) HTML(ctx context.Context) (string, error) {
	j, err := c.startJob(docScale())
	if err != nil {
		return "", err
	}

	res, err := j.assembleDocument(ctx, rewrite.ModeInline, nil)
	if err != nil {
		return "", err
	}

	j.done()
	return res.HTML, nil
}

// Package converts the publication to a ZIP archive holding index.html and
// an assets directory with every reachable asset as a file.
func (c *Converter) Package(ctx context.Context) ([]byte, error) {
	j, err := c.startJob(docScale())
	if err != nil {
		return nil, err
	}

	res, err := j.assembleDocument(ctx, rewrite.ModePackage, assets.NewSink())
	if err != nil {
		return nil, err
	}

	out, err := assemble.BuildArchive(res, assemble.NewZipWriter())
	if err != nil {
		return nil, j.fail("assembling", fmt.Errorf("building archive: %w", err))
	}

	j.done()
	return out, nil
}

// PDF converts the publication to a paginated PDF: the inlined HTML
// document is rasterized and sliced into A4 pages.
func (c *Converter) PDF(ctx context.Context) ([]byte, error) {
	scale := pdfScale()
	j, err := c.startJob(scale)
	if err != nil {
		return nil, err
	}

	res, err := j.assembleDocument(ctx, rewrite.ModeInline, nil)
	if err != nil {
		return nil, err
	}

	// Render publishes the remaining phases, including the terminal
	// event, on the shared publisher and scale.
	return pdf.Render(ctx, res.HTML, pdf.Options{
		Logger:    c.options.log(),
		Publisher: j.pub,
		Scale:     scale,
	})
}
