package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/albertbuchard/one-more-epub-converter/progress"
)

// A4 page geometry in millimeters.
const (
	pageWidthMM  = 210.0
	pageHeightMM = 297.0
	pageMarginMM = 15.0
)

const (
	contentWidthMM  = pageWidthMM - 2*pageMarginMM
	contentHeightMM = pageHeightMM - 2*pageMarginMM
)

// jpegQuality balances page image size against text legibility.
const jpegQuality = 85

// Options configures a render run.
type Options struct {
	Logger    *zap.Logger
	Publisher *progress.Publisher

	// Scale maps render phases to overall percentages. When the render is
	// one leg of a larger job, pass the job's scale so percentages line up
	// across the whole run; nil uses a standalone scale.
	Scale *progress.Scale
}

// phaseScale weights the paginator's phases: capture dominates since it
// scales with page count.
func phaseScale() *progress.Scale {
	return progress.NewScale([]progress.PhaseWeight{
		{Phase: progress.PhasePrepare, Weight: 1},
		{Phase: progress.PhaseMeasure, Weight: 1},
		{Phase: progress.PhaseCapture, Weight: 6},
		{Phase: progress.PhaseAssemble, Weight: 1},
		{Phase: progress.PhaseFinalize, Weight: 1},
	})
}

// Render rasterizes an assembled HTML document into PDF bytes. The run
// moves through prepare, measure, capture, assemble and finalize phases,
// publishing progress per phase and per captured page; any failure
// publishes the error phase and returns.
func Render(ctx context.Context, assembledHTML string, opts Options) ([]byte, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = progress.NewPublisher(nil)
	}
	scale := opts.Scale
	if scale == nil {
		scale = phaseScale()
	}

	fail := func(err error) ([]byte, error) {
		pub.Publish(progress.Event{
			Phase:   progress.PhaseError,
			Percent: pub.Snapshot().Percent,
			Stage:   "pdf",
			Detail:  err.Error(),
		})
		pub.Flush()
		return nil, err
	}

	// prepare: flatten the document into drawable blocks.
	pub.Publish(progress.Event{
		Running: true, Phase: progress.PhasePrepare,
		Percent: scale.PercentFor(progress.PhasePrepare, 0), Stage: "preparing",
	})
	blocks, err := parseBlocks(assembledHTML, log)
	if err != nil {
		return fail(fmt.Errorf("pdf: parsing document: %w", err))
	}

	// measure: lay out and derive the page count.
	pub.Publish(progress.Event{
		Running: true, Phase: progress.PhaseMeasure,
		Percent: scale.PercentFor(progress.PhaseMeasure, 0), Stage: "measuring",
	})
	lines, totalHeight := layout(blocks)
	pages := pageCount(totalHeight, viewportHeightPx)
	log.Debug("document measured",
		zap.Int("height_px", totalHeight), zap.Int("pages", pages))

	surface := renderSurface(lines, totalHeight)

	// capture: slice the surface and append one page per slice.
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(true)

	for i, slice := range sliceRects(totalHeight, viewportHeightPx) {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		var jpg bytes.Buffer
		if err := jpeg.Encode(&jpg, surface.SubImage(slice), &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fail(fmt.Errorf("pdf: encoding page %d: %w", i+1, err))
		}

		name := fmt.Sprintf("page-%d", i+1)
		imgOpts := gofpdf.ImageOptions{ImageType: "JPG"}
		doc.RegisterImageOptionsReader(name, imgOpts, &jpg)

		// A partial last slice occupies proportionally less of the
		// printable area; it is never stretched to a full page.
		sliceH := slice.Dy()
		heightMM := float64(sliceH) / float64(viewportHeightPx) * contentHeightMM

		doc.AddPage()
		doc.ImageOptions(name, pageMarginMM, pageMarginMM, contentWidthMM, heightMM, false, imgOpts, 0, "")

		pub.Publish(progress.Event{
			Running: true, Phase: progress.PhaseCapture,
			Percent: scale.PercentFor(progress.PhaseCapture, float64(i+1)/float64(pages)),
			Stage:   "capturing",
			Unit:    &progress.Unit{Label: "pages", Current: i + 1, Total: pages},
		})
	}

	// assemble/finalize: encode the document.
	pub.Publish(progress.Event{
		Running: true, Phase: progress.PhaseAssemble,
		Percent: scale.PercentFor(progress.PhaseAssemble, 0.5), Stage: "assembling",
	})

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return fail(fmt.Errorf("pdf: encoding document: %w", err))
	}

	pub.Publish(progress.Event{
		Running: true, Phase: progress.PhaseFinalize,
		Percent: scale.PercentFor(progress.PhaseFinalize, 1), Stage: "finalizing",
	})
	pub.Publish(progress.Event{
		Phase: progress.PhaseDone, Percent: 100, Stage: "done",
	})
	pub.Flush()
	return out.Bytes(), nil
}

// pageCount is ceil(total/viewport), with a one-page minimum.
func pageCount(totalPx, viewportPx int) int {
	if totalPx <= 0 {
		return 1
	}
	n := (totalPx + viewportPx - 1) / viewportPx
	if n < 1 {
		n = 1
	}
	return n
}

// sliceRects returns the viewport-height slices covering the surface, in
// page order. The last slice may be shorter.
func sliceRects(totalPx, viewportPx int) []image.Rectangle {
	n := pageCount(totalPx, viewportPx)
	rects := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		top := i * viewportPx
		bottom := top + viewportPx
		if bottom > totalPx {
			bottom = totalPx
		}
		if bottom <= top {
			bottom = top + 1
		}
		rects = append(rects, image.Rect(0, top, viewportWidthPx, bottom))
	}
	return rects
}
