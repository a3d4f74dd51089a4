package export

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// AspectRatio is a named crop shape
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Ratio returns width over height
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Instagram  = AspectRatio{4, 5, "instagram"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns the named aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// ParseAspect accepts a preset name, "W:H" or a decimal ratio. Empty means free (0).
func ParseAspect(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "free" {
		return 0, nil
	}
	for _, a := range CommonAspectRatios() {
		if a.Name == s {
			return a.Ratio(), nil
		}
	}
	if w, h, ok := strings.Cut(s, ":"); ok {
		wf, err1 := strconv.ParseFloat(w, 64)
		hf, err2 := strconv.ParseFloat(h, 64)
		if err1 != nil || err2 != nil || wf <= 0 || hf <= 0 {
			return 0, fmt.Errorf("invalid aspect ratio %q", s)
		}
		return wf / hf, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r <= 0 {
		return 0, fmt.Errorf("invalid aspect ratio %q", s)
	}
	return r, nil
}

// fitAspect grows r to the given width/height ratio around its center,
// shrinking to fit bounds when needed, and shifts it inside bounds.
func fitAspect(r image.Rectangle, ratio float64, bounds image.Rectangle) image.Rectangle {
	if ratio <= 0 || r.Empty() {
		return r
	}

	w, h := float64(r.Dx()), float64(r.Dy())
	if w/h < ratio {
		w = h * ratio
	} else {
		h = w / ratio
	}
	if bw := float64(bounds.Dx()); w > bw {
		w, h = bw, bw/ratio
	}
	if bh := float64(bounds.Dy()); h > bh {
		w, h = bh*ratio, bh
	}

	iw, ih := int(math.Round(w)), int(math.Round(h))
	cx := float64(r.Min.X+r.Max.X) / 2
	cy := float64(r.Min.Y+r.Max.Y) / 2
	x0 := clampInt(int(math.Round(cx-w/2)), bounds.Min.X, bounds.Max.X-iw)
	y0 := clampInt(int(math.Round(cy-h/2)), bounds.Min.Y, bounds.Max.Y-ih)
	return image.Rect(x0, y0, x0+iw, y0+ih)
}

func clampInt(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
