package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/satsuralala/face-detection/internal/domain"
)

var (
	matchColor   = color.RGBA{R: 0x22, G: 0xc5, B: 0x5e, A: 0xff} // green
	noMatchColor = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff} // red
)

const (
	strokeWidth = 3
	labelHeight = 30
	labelPadX   = 5
)

// Renderer paints match verdicts onto a transparent canvas sized to the
// display surface. One verdict owns the whole canvas: every Render starts
// from a cleared canvas, so rendering the same verdict twice produces the
// same pixels.
type Renderer struct {
	canvas *image.RGBA
}

// NewRenderer allocates a canvas at the display resolution, which may differ
// from the capture resolution.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{canvas: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Canvas exposes the current pixels for compositing or encoding.
func (r *Renderer) Canvas() *image.RGBA { return r.canvas }

// Clear wipes the canvas to full transparency.
func (r *Renderer) Clear() {
	draw.Draw(r.canvas, r.canvas.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Render paints one verdict. A verdict without a box clears any previous
// drawing and leaves the canvas empty.
func (r *Renderer) Render(res domain.MatchResult) {
	r.Clear()
	if res.BBox == nil {
		return
	}

	box := r.scaleBox(*res.BBox)
	tint := noMatchColor
	label := "No match"
	if res.Matched {
		tint = matchColor
		label = fmt.Sprintf("%s (%.1f%%)", res.Name, res.ConfidencePercent())
	}

	r.strokeRect(box, tint)
	r.fillRect(box, color.RGBA{R: tint.R, G: tint.G, B: tint.B, A: 0x33})
	r.drawLabel(box, label, tint)
}

// scaleBox maps a capture-resolution box onto the canvas, scaling each axis
// independently.
func (r *Renderer) scaleBox(b domain.BBox) image.Rectangle {
	bounds := r.canvas.Bounds()
	sx := float64(bounds.Dx()) / float64(domain.CaptureWidth)
	sy := float64(bounds.Dy()) / float64(domain.CaptureHeight)
	return image.Rect(
		int(math.Round(b.X*sx)),
		int(math.Round(b.Y*sy)),
		int(math.Round((b.X+b.W)*sx)),
		int(math.Round((b.Y+b.H)*sy)),
	)
}

func (r *Renderer) strokeRect(box image.Rectangle, c color.RGBA) {
	src := image.NewUniform(c)
	top := image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+strokeWidth)
	bottom := image.Rect(box.Min.X, box.Max.Y-strokeWidth, box.Max.X, box.Max.Y)
	left := image.Rect(box.Min.X, box.Min.Y, box.Min.X+strokeWidth, box.Max.Y)
	right := image.Rect(box.Max.X-strokeWidth, box.Min.Y, box.Max.X, box.Max.Y)
	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(r.canvas, edge.Intersect(r.canvas.Bounds()), src, image.Point{}, draw.Src)
	}
}

func (r *Renderer) fillRect(box image.Rectangle, c color.RGBA) {
	inner := box.Inset(strokeWidth).Intersect(r.canvas.Bounds())
	draw.Draw(r.canvas, inner, image.NewUniform(c), image.Point{}, draw.Over)
}

// drawLabel places the text above the box, or below it when the box touches
// the top edge and the label would be clipped.
func (r *Renderer) drawLabel(box image.Rectangle, text string, c color.RGBA) {
	y := box.Min.Y - 5
	if box.Min.Y <= labelHeight {
		y = box.Max.Y + labelHeight
	}
	d := &font.Drawer{
		Dst:  r.canvas,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(box.Min.X+labelPadX, y),
	}
	d.DrawString(text)
}
