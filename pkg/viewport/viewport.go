// Package viewport owns the interactive pan offset and zoom scale applied on
// top of the fit-to-container ratio. Both are clamped so the image always
// covers the whole viewport.
package viewport

import (
	"math"

	"github.com/menta2k/image-annotator/pkg/geometry"
)

const (
	DefaultMinScale = 1.0
	DefaultMaxScale = 5.0
	DefaultZoomIn   = 1.1
	DefaultZoomOut  = 0.9
)

// Config holds the scale limits and wheel factors
type Config struct {
	MinScale float64
	MaxScale float64
	ZoomIn   float64
	ZoomOut  float64
}

// DefaultConfig returns the standard [1,5] limits with 10% wheel steps
func DefaultConfig() Config {
	return Config{
		MinScale: DefaultMinScale,
		MaxScale: DefaultMaxScale,
		ZoomIn:   DefaultZoomIn,
		ZoomOut:  DefaultZoomOut,
	}
}

// Controller tracks the interactive scale and pan offset of one stage
type Controller struct {
	config Config
	scale  float64
	pos    geometry.Point
}

// New creates a Controller with the default configuration
func New() *Controller {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Controller with custom limits
func NewWithConfig(config Config) *Controller {
	if config.MinScale <= 0 {
		config.MinScale = DefaultMinScale
	}
	if config.MaxScale < config.MinScale {
		config.MaxScale = config.MinScale
	}
	if config.ZoomIn <= 1 {
		config.ZoomIn = DefaultZoomIn
	}
	if config.ZoomOut <= 0 || config.ZoomOut >= 1 {
		config.ZoomOut = DefaultZoomOut
	}
	return &Controller{config: config, scale: config.MinScale}
}

// Scale returns the interactive scale
func (c *Controller) Scale() float64 {
	return c.scale
}

// Position returns the pan offset
func (c *Controller) Position() geometry.Point {
	return c.pos
}

// Reset restores scale to the minimum and pan to the origin
func (c *Controller) Reset() {
	c.scale = c.config.MinScale
	c.pos = geometry.Point{}
}

// ClampPan moves the stage to pos, limited so no blank margin can appear:
// W - W*scale <= x <= 0 and likewise for y.
func (c *Controller) ClampPan(pos geometry.Point, stage geometry.Size) geometry.Point {
	c.pos = geometry.Point{
		X: math.Min(0, math.Max(pos.X, stage.Width-stage.Width*c.scale)),
		Y: math.Min(0, math.Max(pos.Y, stage.Height-stage.Height*c.scale)),
	}
	return c.pos
}

// Reclamp re-applies the pan limits after the stage size changed
func (c *Controller) Reclamp(stage geometry.Size) geometry.Point {
	return c.ClampPan(c.pos, stage)
}

// Wheel zooms around pointer. A positive deltaY zooms out, anything else zooms
// in. The point under the pointer keeps its on-screen location unless the pan
// limits intervene.
func (c *Controller) Wheel(pointer geometry.Point, deltaY float64, stage geometry.Size) {
	oldScale := c.scale
	local := c.ToLocal(pointer)

	var newScale float64
	if deltaY > 0 {
		newScale = math.Max(oldScale*c.config.ZoomOut, c.config.MinScale)
	} else {
		newScale = math.Min(oldScale*c.config.ZoomIn, c.config.MaxScale)
	}
	c.scale = newScale

	scaledWidth := stage.Width * newScale
	scaledHeight := stage.Height * newScale
	c.pos = geometry.Point{
		X: math.Max(math.Min(0, pointer.X-local.X*newScale), stage.Width-scaledWidth),
		Y: math.Max(math.Min(0, pointer.Y-local.Y*newScale), stage.Height-scaledHeight),
	}
}

// ToLocal converts a pointer position in container space to stage-local space
func (c *Controller) ToLocal(pointer geometry.Point) geometry.Point {
	return pointer.Sub(c.pos).Scale(1 / c.scale)
}

// ToAbsolute converts a stage-local point to container space
func (c *Controller) ToAbsolute(local geometry.Point) geometry.Point {
	return local.Scale(c.scale).Add(c.pos)
}

// Bounds returns the absolute viewport rectangle: the pan offset plus the
// stage size multiplied by the interactive scale.
func (c *Controller) Bounds(stage geometry.Size) geometry.Box {
	return geometry.Box{
		X:      c.pos.X,
		Y:      c.pos.Y,
		Width:  stage.Width * c.scale,
		Height: stage.Height * c.scale,
	}
}
