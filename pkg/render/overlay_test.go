package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/types"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestOverlayStrokeAndFill(t *testing.T) {
	src := whiteImage(100, 100)
	anns := []types.Annotation{{ID: "a", Box: types.Box{20, 30, 60, 80}}}

	out := Overlay(src, anns, style.Default())

	if got := out.NRGBAAt(20, 50); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("Expected red stroke on left edge, got %v", got)
	}
	if got := out.NRGBAAt(59, 50); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("Expected red stroke on right edge, got %v", got)
	}

	inside := out.NRGBAAt(40, 55)
	if inside.R != 255 || inside.G == 255 || inside.G < 180 {
		t.Errorf("Expected translucent red fill, got %v", inside)
	}
	if got := out.NRGBAAt(90, 90); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("Pixels outside annotations changed: %v", got)
	}
	if got := src.RGBAAt(40, 55); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Error("Source image was modified")
	}
}

func TestOverlayUsesAnnotationColor(t *testing.T) {
	anns := []types.Annotation{{
		ID:       "a",
		Box:      types.Box{10, 10, 50, 50},
		Metadata: types.Metadata{"color": "#0000ff"},
	}}
	out := Overlay(whiteImage(64, 64), anns, style.Default())

	if got := out.NRGBAAt(10, 30); got != (color.NRGBA{B: 255, A: 255}) {
		t.Errorf("Expected blue stroke, got %v", got)
	}
}

func TestOverlayDrawsLabel(t *testing.T) {
	st := style.Default()
	st.FillOpacity = 0
	anns := []types.Annotation{{ID: "a", Label: "MMM", Box: types.Box{10, 40, 90, 90}}}
	out := Overlay(whiteImage(100, 100), anns, st)

	found := false
	for y := 0; y < 40 && !found; y++ {
		for x := 10; x < 40; x++ {
			if c := out.NRGBAAt(x, y); c.G < 128 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("Expected label pixels above the box")
	}
}

func TestOverlaySkipsOutOfBounds(t *testing.T) {
	anns := []types.Annotation{{ID: "a", Box: types.Box{200, 200, 300, 300}}}
	out := Overlay(whiteImage(50, 50), anns, style.Default())
	if out.Bounds().Dx() != 50 {
		t.Errorf("Unexpected bounds %v", out.Bounds())
	}
}
