// Package render rasterizes annotations onto a copy of their image.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/types"
)

var fallback = color.NRGBA{R: 255, A: 255}

// Overlay returns a copy of img with every annotation filled at the style's
// fill opacity, outlined at its stroke width and labelled above its top-left
// corner.
func Overlay(img image.Image, annotations []types.Annotation, st style.LabelStyle) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()
	face := basicfont.Face7x13

	for _, a := range annotations {
		c := strokeColor(a, st)
		r := pixelRect(a.Box).Intersect(bounds)
		if r.Empty() {
			continue
		}

		if st.FillOpacity > 0 {
			patch := imaging.New(r.Dx(), r.Dy(), c)
			out = imaging.Overlay(out, patch, r.Min, st.FillOpacity)
		}

		stroke := int(math.Max(1, math.Round(st.StrokeWidth)))
		drawRect(out, r, c, stroke)

		if a.Label != "" {
			baseline := r.Min.Y - int(math.Round(st.TextGap))
			if baseline-face.Ascent < 0 {
				baseline = r.Min.Y + face.Ascent + stroke
			}
			drawLabel(out, a.Label, r.Min.X, baseline, c, face)
		}
	}
	return out
}

func strokeColor(a types.Annotation, st style.LabelStyle) color.NRGBA {
	s := a.Color()
	if s == "" {
		s = st.Color
	}
	c, err := style.ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}

// pixelRect converts a canonical box to an integer pixel rectangle
func pixelRect(b types.Box) image.Rectangle {
	b = b.Normalize().Round()
	return image.Rect(int(b[0]), int(b[1]), int(b[2]), int(b[3]))
}

func drawLabel(img *image.NRGBA, text string, x, baseline int, c color.NRGBA, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(baseline)},
	}
	d.DrawString(text)
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0, x1 = max(x0, b.Min.X), min(x1, b.Max.X)
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0, y1 = max(y0, b.Min.Y), min(y1, b.Max.Y)
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
