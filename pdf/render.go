package pdf

import (
	"image"
	"image/color"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Render surface geometry, in pixels. The viewport matches A4 content
// proportions so page slices map onto the printable area without
// distortion.
const (
	viewportWidthPx  = 794
	viewportHeightPx = 1178
	surfaceMarginPx  = 48

	lineHeightPx    = 18
	headingGapPx    = 12
	paragraphGapPx  = 10
	imageGapPx      = 12
	charAdvancePx   = 7 // basicfont.Face7x13 advance
	baselineOffsetY = 13
)

const contentWidthPx = viewportWidthPx - 2*surfaceMarginPx

// line is one laid-out row of the surface.
type line struct {
	text    string
	heading bool
	img     image.Image
	y       int // top of the row
	h       int // row height
}

// layout wraps blocks into rows and returns them with the total surface
// height.
func layout(blocks []block) ([]line, int) {
	var lines []line
	y := surfaceMarginPx

	for _, b := range blocks {
		if b.img != nil {
			_, h := fitImage(b.img)
			lines = append(lines, line{img: b.img, y: y, h: h})
			y += h + imageGapPx
			continue
		}

		if b.heading {
			y += headingGapPx
		}
		for _, row := range wrap(b.text, contentWidthPx/charAdvancePx) {
			lines = append(lines, line{text: row, heading: b.heading, y: y, h: lineHeightPx})
			y += lineHeightPx
		}
		y += paragraphGapPx
	}

	return lines, y + surfaceMarginPx
}

// fitImage scales image dimensions to the content width, preserving aspect
// ratio. Images narrower than the content width keep their size.
func fitImage(img image.Image) (w, h int) {
	bounds := img.Bounds()
	w, h = bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w > contentWidthPx {
		h = h * contentWidthPx / w
		w = contentWidthPx
	}
	return w, h
}

// wrap greedily breaks text into rows of at most cols characters. A single
// word longer than a row is hard-split rather than overflowed.
func wrap(text string, cols int) []string {
	if cols < 1 {
		cols = 1
	}
	var rows []string
	var row strings.Builder

	for _, word := range strings.Fields(text) {
		for len(word) > cols {
			if row.Len() > 0 {
				rows = append(rows, row.String())
				row.Reset()
			}
			rows = append(rows, word[:cols])
			word = word[cols:]
		}
		switch {
		case row.Len() == 0:
			row.WriteString(word)
		case row.Len()+1+len(word) <= cols:
			row.WriteByte(' ')
			row.WriteString(word)
		default:
			rows = append(rows, row.String())
			row.Reset()
			row.WriteString(word)
		}
	}
	if row.Len() > 0 {
		rows = append(rows, row.String())
	}
	if len(rows) == 0 {
		rows = []string{""}
	}
	return rows
}

// renderSurface draws all rows onto a white RGBA surface of the given
// height.
func renderSurface(lines []line, totalHeight int) *image.RGBA {
	surface := image.NewRGBA(image.Rect(0, 0, viewportWidthPx, totalHeight))
	xdraw.Draw(surface, surface.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	drawer := &font.Drawer{
		Dst:  surface,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}

	for _, ln := range lines {
		if ln.img != nil {
			w, h := fitImage(ln.img)
			dst := image.Rect(surfaceMarginPx, ln.y, surfaceMarginPx+w, ln.y+h)
			xdraw.ApproxBiLinear.Scale(surface, dst, ln.img, ln.img.Bounds(), xdraw.Over, nil)
			continue
		}
		if ln.text == "" {
			continue
		}
		drawer.Dot = fixed.P(surfaceMarginPx, ln.y+baselineOffsetY)
		drawer.DrawString(ln.text)
		if ln.heading {
			// Fake bold: redraw one pixel to the right.
			drawer.Dot = fixed.P(surfaceMarginPx+1, ln.y+baselineOffsetY)
			drawer.DrawString(ln.text)
		}
	}

	return surface
}
