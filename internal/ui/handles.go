package ui

import (
	"math"

	"github.com/menta2k/image-annotator/pkg/geometry"
)

// Handle identifies a transform anchor on the selected rectangle
type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTopRight
	HandleBottomRight
	HandleBottomLeft
	HandleRotate
)

const (
	handleRadius   = 6
	rotateDistance = 24
)

// toWorld maps a point in the box frame to container space
func toWorld(b geometry.Box, p geometry.Point) geometry.Point {
	sin, cos := math.Sincos(b.Rotation)
	return geometry.Pt(b.X+p.X*cos-p.Y*sin, b.Y+p.X*sin+p.Y*cos)
}

// toBox maps a container point into the box frame
func toBox(b geometry.Box, p geometry.Point) geometry.Point {
	d := p.Sub(b.Position())
	sin, cos := math.Sincos(-b.Rotation)
	return geometry.Pt(d.X*cos-d.Y*sin, d.X*sin+d.Y*cos)
}

// handlePoints returns the anchor centres of b in container space
func handlePoints(b geometry.Box) map[Handle]geometry.Point {
	return map[Handle]geometry.Point{
		HandleTopLeft:     toWorld(b, geometry.Pt(0, 0)),
		HandleTopRight:    toWorld(b, geometry.Pt(b.Width, 0)),
		HandleBottomRight: toWorld(b, geometry.Pt(b.Width, b.Height)),
		HandleBottomLeft:  toWorld(b, geometry.Pt(0, b.Height)),
		HandleRotate:      toWorld(b, geometry.Pt(b.Width/2, -rotateDistance)),
	}
}

// hitHandle returns the anchor within radius of p
func hitHandle(b geometry.Box, p geometry.Point, radius float64) Handle {
	for _, h := range []Handle{HandleRotate, HandleTopLeft, HandleTopRight, HandleBottomRight, HandleBottomLeft} {
		c := handlePoints(b)[h]
		if math.Hypot(p.X-c.X, p.Y-c.Y) <= radius {
			return h
		}
	}
	return HandleNone
}

// resizeBox moves the dragged corner of start to p, keeping the opposite
// corner fixed in the box frame.
func resizeBox(start geometry.Box, h Handle, p geometry.Point) geometry.Box {
	var fixed geometry.Point
	switch h {
	case HandleTopLeft:
		fixed = geometry.Pt(start.Width, start.Height)
	case HandleTopRight:
		fixed = geometry.Pt(0, start.Height)
	case HandleBottomRight:
		fixed = geometry.Pt(0, 0)
	case HandleBottomLeft:
		fixed = geometry.Pt(start.Width, 0)
	default:
		return start
	}

	moved := toBox(start, p)
	x0, x1 := math.Min(fixed.X, moved.X), math.Max(fixed.X, moved.X)
	y0, y1 := math.Min(fixed.Y, moved.Y), math.Max(fixed.Y, moved.Y)

	origin := toWorld(start, geometry.Pt(x0, y0))
	return geometry.Box{
		X:        origin.X,
		Y:        origin.Y,
		Width:    x1 - x0,
		Height:   y1 - y0,
		Rotation: start.Rotation,
	}
}

// rotateBox turns start around its centre so the rotate anchor faces p
func rotateBox(start geometry.Box, p geometry.Point) geometry.Box {
	center := toWorld(start, geometry.Pt(start.Width/2, start.Height/2))
	angle := math.Atan2(p.Y-center.Y, p.X-center.X) + math.Pi/2

	sin, cos := math.Sincos(angle)
	hw, hh := start.Width/2, start.Height/2
	return geometry.Box{
		X:        center.X - hw*cos + hh*sin,
		Y:        center.Y - hw*sin - hh*cos,
		Width:    start.Width,
		Height:   start.Height,
		Rotation: angle,
	}
}

// boundsOf returns the axis-aligned box covering a possibly rotated box
func boundsOf(b geometry.Box) geometry.Box {
	if b.Rotation == 0 {
		return b
	}
	self := geometry.Box{Width: b.Width, Height: b.Height}
	return geometry.BoundingBoxAfterChanges(self, b.Position(), b.Rotation)
}
