// Package geometry provides the display-space primitives and clipping rules
// shared by the viewport, the draw state machine and the transform constraint.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Point represents a 2D point with floating-point coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point) Scale(factor float64) Point {
	return Point{X: p.X * factor, Y: p.Y * factor}
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sz is shorthand for Size{Width: w, Height: h}.
func Sz(w, h float64) Size {
	return Size{Width: w, Height: h}
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Aspect returns width / height, 0 for an empty size.
func (s Size) Aspect() float64 {
	if s.Empty() {
		return 0
	}
	return s.Width / s.Height
}

// Box is a rectangle with an optional rotation in radians around its origin.
type Box struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Position returns the box origin.
func (b Box) Position() Point {
	return Point{X: b.X, Y: b.Y}
}

// Contains reports whether p lies inside the box, taking rotation into account.
func (b Box) Contains(p Point) bool {
	local := p.Sub(b.Position())
	if b.Rotation != 0 {
		sin, cos := math.Sincos(-b.Rotation)
		local = Point{X: local.X*cos - local.Y*sin, Y: local.X*sin + local.Y*cos}
	}
	return local.X >= 0 && local.X <= b.Width && local.Y >= 0 && local.Y <= b.Height
}

// Corners returns the four corners of the unrotated box in clockwise order.
func (b Box) Corners() [4]Point {
	return [4]Point{
		{X: b.X, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y + b.Height},
		{X: b.X, Y: b.Y + b.Height},
	}
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FitToStage clips box against stage independently per axis. An edge that
// starts before the stage is pinned to it and the size shrinks by the
// overflow; otherwise a box running past the far edge is shortened.
func FitToStage(box, stage Box) Box {
	x, y, width, height := box.X, box.Y, box.Width, box.Height
	realX, realY := box.X-stage.X, box.Y-stage.Y

	if realX < 0 {
		x = stage.X
		width += realX
	} else if realX+box.Width > stage.Width {
		width = stage.Width - realX
	}

	if realY < 0 {
		y = stage.Y
		height += realY
	} else if realY+box.Height > stage.Height {
		height = stage.Height - realY
	}

	box.X, box.Y, box.Width, box.Height = x, y, width, height
	return box
}

// Transform is a 2D affine transform held as a 3x3 homogeneous matrix.
type Transform struct {
	m *mat.Dense
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{m: mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})}
}

// Translate returns t followed locally by a translation.
func (t Transform) Translate(dx, dy float64) Transform {
	return t.mul(mat.NewDense(3, 3, []float64{
		1, 0, dx,
		0, 1, dy,
		0, 0, 1,
	}))
}

// Rotate returns t followed locally by a rotation in radians.
func (t Transform) Rotate(radians float64) Transform {
	sin, cos := math.Sincos(radians)
	return t.mul(mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	}))
}

func (t Transform) mul(other *mat.Dense) Transform {
	var out mat.Dense
	out.Mul(t.m, other)
	return Transform{m: &out}
}

// Apply maps p through the transform.
func (t Transform) Apply(p Point) Point {
	v := mat.NewVecDense(3, []float64{p.X, p.Y, 1})
	var out mat.VecDense
	out.MulVec(t.m, v)
	return Point{X: out.AtVec(0), Y: out.AtVec(1)}
}

// BoundingBox returns the axis-aligned box enclosing rect's corners after the transform.
func BoundingBox(rect Box, t Transform) Box {
	corners := rect.Corners()
	xs := make([]float64, 0, len(corners))
	ys := make([]float64, 0, len(corners))
	for _, c := range corners {
		p := t.Apply(c)
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	minX, minY := floats.Min(xs), floats.Min(ys)
	return Box{
		X:      minX,
		Y:      minY,
		Width:  floats.Max(xs) - minX,
		Height: floats.Max(ys) - minY,
	}
}

// BoundingBoxAfterChanges shifts rect by shift, rotates it by radians and
// returns the enclosing axis-aligned box.
func BoundingBoxAfterChanges(rect Box, shift Point, radians float64) Box {
	t := Identity().Translate(shift.X, shift.Y).Rotate(radians)
	return BoundingBox(rect, t)
}

// ClampDraft limits a signed draw extent: positive growth may not pass the
// stage's far edge and negative growth may not pass its near edge.
func ClampDraft(origin, extent Point, stage Size) Point {
	if extent.X > 0 {
		extent.X = math.Min(extent.X, stage.Width-origin.X)
	} else {
		extent.X = math.Max(extent.X, -origin.X)
	}
	if extent.Y > 0 {
		extent.Y = math.Min(extent.Y, stage.Height-origin.Y)
	} else {
		extent.Y = math.Max(extent.Y, -origin.Y)
	}
	return extent
}

// NormalizeDraft turns an origin plus signed extent into a positive box
// clipped to the stage.
func NormalizeDraft(origin, extent Point, stage Size) Box {
	x, y := origin.X, origin.Y
	width, height := extent.X, extent.Y

	if width < 0 {
		x += width
		width = -width
	}
	if height < 0 {
		y += height
		height = -height
	}

	if x+width > stage.Width {
		width = stage.Width - x
	}
	if y+height > stage.Height {
		height = stage.Height - y
	}

	return Box{X: math.Max(0, x), Y: math.Max(0, y), Width: width, Height: height}
}
