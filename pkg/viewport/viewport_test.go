package viewport

import (
	"math"
	"testing"

	"github.com/menta2k/image-annotator/pkg/geometry"
)

func TestNew(t *testing.T) {
	c := New()
	if c.Scale() != 1 {
		t.Errorf("Expected scale 1, got %v", c.Scale())
	}
	if c.Position() != (geometry.Point{}) {
		t.Errorf("Expected zero position, got %v", c.Position())
	}
}

func TestWheelZoomOutClampsAtMinimum(t *testing.T) {
	c := New()
	stage := geometry.Sz(800, 600)

	c.Wheel(geometry.Pt(400, 300), 120, stage)

	if c.Scale() != 1 {
		t.Errorf("Expected scale to stay at 1, got %v", c.Scale())
	}
	if c.Position() != (geometry.Point{}) {
		t.Errorf("Expected no pan at scale 1, got %v", c.Position())
	}
}

func TestWheelZoomInKeepsPointerAnchored(t *testing.T) {
	c := New()
	stage := geometry.Sz(800, 600)
	pointer := geometry.Pt(400, 300)

	before := c.ToLocal(pointer)
	c.Wheel(pointer, -120, stage)

	if math.Abs(c.Scale()-1.1) > 1e-9 {
		t.Fatalf("Expected scale 1.1, got %v", c.Scale())
	}
	after := c.ToLocal(pointer)
	if math.Abs(before.X-after.X) > 1e-9 || math.Abs(before.Y-after.Y) > 1e-9 {
		t.Errorf("Pointer moved from %v to %v", before, after)
	}
}

func TestWheelZoomInClampsAtMaximum(t *testing.T) {
	c := New()
	stage := geometry.Sz(800, 600)
	for i := 0; i < 100; i++ {
		c.Wheel(geometry.Pt(10, 10), -1, stage)
	}
	if c.Scale() != 5 {
		t.Errorf("Expected scale 5, got %v", c.Scale())
	}
}

func TestPanInvariant(t *testing.T) {
	stage := geometry.Sz(800, 600)
	c := New()
	pointers := []geometry.Point{{X: 0, Y: 0}, {X: 800, Y: 600}, {X: 123, Y: 456}, {X: 790, Y: 5}}
	targets := []geometry.Point{{X: 100, Y: 100}, {X: -5000, Y: -5000}, {X: -200, Y: 50}, {X: 0, Y: -1}}

	for i := 0; i < 30; i++ {
		p := pointers[i%len(pointers)]
		delta := -1.0
		if i%4 == 3 {
			delta = 1
		}
		c.Wheel(p, delta, stage)
		assertPanInvariant(t, c, stage)

		c.ClampPan(targets[i%len(targets)], stage)
		assertPanInvariant(t, c, stage)
	}
}

func assertPanInvariant(t *testing.T, c *Controller, stage geometry.Size) {
	t.Helper()
	pos := c.Position()
	minX := stage.Width - stage.Width*c.Scale()
	minY := stage.Height - stage.Height*c.Scale()
	if pos.X > 0 || pos.X < minX-1e-9 {
		t.Errorf("pan x %v outside [%v, 0] at scale %v", pos.X, minX, c.Scale())
	}
	if pos.Y > 0 || pos.Y < minY-1e-9 {
		t.Errorf("pan y %v outside [%v, 0] at scale %v", pos.Y, minY, c.Scale())
	}
}

func TestResetIdempotent(t *testing.T) {
	c := New()
	stage := geometry.Sz(800, 600)
	c.Wheel(geometry.Pt(700, 500), -1, stage)
	c.Wheel(geometry.Pt(700, 500), -1, stage)

	c.Reset()
	scale, pos := c.Scale(), c.Position()
	c.Reset()

	if c.Scale() != scale || c.Position() != pos {
		t.Errorf("Reset not idempotent: (%v,%v) vs (%v,%v)", scale, pos, c.Scale(), c.Position())
	}
	if scale != 1 || pos != (geometry.Point{}) {
		t.Errorf("Expected scale 1 at origin, got %v at %v", scale, pos)
	}
}

func TestBounds(t *testing.T) {
	c := New()
	stage := geometry.Sz(100, 50)
	c.Wheel(geometry.Pt(100, 50), -1, stage)

	b := c.Bounds(stage)
	if math.Abs(b.Width-110) > 1e-9 || math.Abs(b.Height-55) > 1e-9 {
		t.Errorf("Expected 110x55, got %vx%v", b.Width, b.Height)
	}
	if b.X != c.Position().X || b.Y != c.Position().Y {
		t.Errorf("Bounds origin %v differs from position %v", b.Position(), c.Position())
	}
}
