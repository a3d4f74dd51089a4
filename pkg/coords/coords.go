// Package coords converts between canonical image-pixel space and display space.
package coords

import (
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/types"
)

// ZoomRatio returns the fit-to-container scale for an image. The image is
// fitted by width when it is relatively wider than the container and by
// height otherwise, preserving its aspect ratio. Degenerate sizes yield 1.
func ZoomRatio(container, img geometry.Size) float64 {
	if container.Empty() || img.Empty() {
		return 1
	}
	if img.Aspect() > container.Aspect() {
		return container.Width / img.Width
	}
	return container.Height / img.Height
}

// Mapper holds the current zoom ratio for one image/container pair
type Mapper struct {
	ratio float64
	image geometry.Size
}

// NewMapper creates a Mapper with ratio 1 and no image
func NewMapper() *Mapper {
	return &Mapper{ratio: 1}
}

// Fit recomputes the ratio for the given container and image sizes
func (m *Mapper) Fit(container, img geometry.Size) float64 {
	m.image = img
	m.ratio = ZoomRatio(container, img)
	return m.ratio
}

// Ratio returns the current zoom ratio
func (m *Mapper) Ratio() float64 {
	return m.ratio
}

// ImageSize returns the canonical image size the mapper was fitted to
func (m *Mapper) ImageSize() geometry.Size {
	return m.image
}

// DisplaySize returns the image size in display space
func (m *Mapper) DisplaySize() geometry.Size {
	return geometry.Sz(m.image.Width*m.ratio, m.image.Height*m.ratio)
}

// ToDisplay converts a canonical box to an unrotated display box
func (m *Mapper) ToDisplay(b types.Box) geometry.Box {
	b = b.Normalize()
	return geometry.Box{
		X:      b[0] * m.ratio,
		Y:      b[1] * m.ratio,
		Width:  b.Width() * m.ratio,
		Height: b.Height() * m.ratio,
	}
}

// ToCanonical converts a display box with an additional shape scale back to
// canonical space, rounded to integer pixels and clamped into the image.
func (m *Mapper) ToCanonical(d geometry.Box, shapeScale geometry.Point) types.Box {
	x := d.X / m.ratio
	y := d.Y / m.ratio
	width := d.Width * shapeScale.X / m.ratio
	height := d.Height * shapeScale.Y / m.ratio

	b := types.Box{x, y, x + width, y + height}.Round()
	if !m.image.Empty() {
		b = b.Clamp(m.image.Width, m.image.Height)
	}
	return b
}
