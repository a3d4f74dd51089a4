package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/types"
)

func seeded(t *testing.T, extra ...types.Annotation) *fixture {
	t.Helper()
	f := newFixture(t, geometry.Sz(800, 600))
	initial := append([]types.Annotation{{ID: "a", Label: "cat", Box: types.Box{100, 100, 300, 300}}}, extra...)
	f.load(t, 1600, 1200, initial...)
	return f
}

func TestConstrainTransformAxisAligned(t *testing.T) {
	bounds := geometry.Box{Width: 800, Height: 600}
	old := geometry.Box{X: 50, Y: 50, Width: 100, Height: 100}

	tests := []struct {
		name     string
		proposed geometry.Box
		want     geometry.Box
	}{
		{"inside", geometry.Box{X: 40, Y: 40, Width: 200, Height: 100}, geometry.Box{X: 40, Y: 40, Width: 200, Height: 100}},
		{"past left", geometry.Box{X: -20, Y: 40, Width: 100, Height: 100}, geometry.Box{X: 0, Y: 40, Width: 80, Height: 100}},
		{"past bottom right", geometry.Box{X: 750, Y: 550, Width: 100, Height: 100}, geometry.Box{X: 750, Y: 550, Width: 50, Height: 50}},
		{"min size", geometry.Box{X: 10, Y: 10, Width: 1, Height: -4}, geometry.Box{X: 10, Y: 10, Width: 3, Height: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConstrainTransform(old, tt.proposed, bounds, 3)
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestConstrainTransformRotated(t *testing.T) {
	bounds := geometry.Box{Width: 800, Height: 600}
	old := geometry.Box{X: 50, Y: 50, Width: 100, Height: 100}

	inside := geometry.Box{X: 300, Y: 200, Width: 100, Height: 100, Rotation: math.Pi / 4}
	if got := ConstrainTransform(old, inside, bounds, 3); got != inside {
		t.Errorf("In-bounds rotation should be accepted, got %+v", got)
	}

	outside := geometry.Box{X: 10, Y: 10, Width: 100, Height: 100, Rotation: math.Pi / 4}
	if got := ConstrainTransform(old, outside, bounds, 3); got != old {
		t.Errorf("Out-of-bounds rotation should return old, got %+v", got)
	}

	rotatedOld := geometry.Box{X: 300, Y: 200, Width: 100, Height: 100, Rotation: math.Pi / 4}
	moved := rotatedOld
	moved.Y = 560
	if got := ConstrainTransform(rotatedOld, moved, bounds, 3); got != rotatedOld {
		t.Errorf("Moving a rotated box out of bounds should be rejected, got %+v", got)
	}
}

func TestClickSelectsTopmost(t *testing.T) {
	f := seeded(t, types.Annotation{ID: "b", Box: types.Box{200, 200, 400, 400}})

	f.engine.Click(geometry.Pt(120, 120))
	id, ok := f.engine.Selected()
	if !ok || id != "b" {
		t.Fatalf("Expected topmost b selected, got %q %v", id, ok)
	}

	rect, _ := scene.FindRect(f.scene, "b")
	if rect.Fill() != "rgba(255, 0, 0, 0.5)" {
		t.Errorf("Expected selected fill, got %q", rect.Fill())
	}
	if !rect.Draggable() {
		t.Error("Selected rectangle should be draggable")
	}
	if tr := f.scene.Transformer(); tr == nil || tr.Node().ID() != "b" {
		t.Error("Transformer not attached to b")
	}
	if len(f.events.all()) != 1 {
		t.Error("Selecting must not emit")
	}
}

func TestClickEmptyDeselectsAndEmitsUpdate(t *testing.T) {
	f := seeded(t)
	f.engine.Click(geometry.Pt(100, 100))
	if _, ok := f.engine.Selected(); !ok {
		t.Fatal("Expected selection")
	}

	f.engine.Click(geometry.Pt(700, 500))

	if _, ok := f.engine.Selected(); ok {
		t.Error("Selection should be cleared")
	}
	if f.scene.Transformer() != nil {
		t.Error("Transformer should be detached")
	}
	rect, _ := scene.FindRect(f.scene, "a")
	if rect.Fill() != "rgba(255, 0, 0, 0.2)" {
		t.Errorf("Expected fill rgba(255, 0, 0, 0.2), got %q", rect.Fill())
	}
	if rect.Draggable() {
		t.Error("Deselected rectangle should not be draggable")
	}
	last := f.events.last()
	if last.Type != types.ChangeUpdate || len(last.Data) != 1 {
		t.Errorf("Expected update with 1 annotation, got %+v", last)
	}
}

func TestClickMissWithoutSelection(t *testing.T) {
	f := seeded(t)
	f.engine.Click(geometry.Pt(700, 500))

	if _, ok := f.engine.Selected(); ok {
		t.Error("Nothing should be selected")
	}
	if len(f.events.all()) != 1 {
		t.Error("Missed click must not emit")
	}
}

func TestClickIgnoredWhileDrawing(t *testing.T) {
	f := seeded(t)
	if err := f.engine.Draw(types.LabelInfo{Label: "x"}); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	f.engine.Click(geometry.Pt(100, 100))

	if _, ok := f.engine.Selected(); ok {
		t.Error("Click while armed should not select")
	}
}

func TestClickUnderZoomHitsLocalGeometry(t *testing.T) {
	f := seeded(t)
	for i := 0; i < 7; i++ {
		f.engine.Wheel(geometry.Pt(0, 0), -1)
	}
	scale, _ := f.engine.View()

	f.engine.Click(geometry.Pt(140*scale, 140*scale))
	if _, ok := f.engine.Selected(); !ok {
		t.Error("Expected hit at scaled position")
	}
}

func TestTransformSelectedEmitsOnDeselect(t *testing.T) {
	f := seeded(t)
	f.engine.Click(geometry.Pt(100, 100))

	applied, ok := f.engine.TransformSelected(geometry.Box{X: 40, Y: 40, Width: 200, Height: 100})
	if !ok || applied != (geometry.Box{X: 40, Y: 40, Width: 200, Height: 100}) {
		t.Fatalf("Unexpected applied box %+v", applied)
	}
	if len(f.events.all()) != 1 {
		t.Error("Transform must not emit")
	}
	if box, _ := f.engine.SelectedBox(); box != applied {
		t.Errorf("SelectedBox %+v differs from applied %+v", box, applied)
	}

	rect, _ := scene.FindRect(f.scene, "a")
	if rect.Scale() != geometry.Pt(2, 1) {
		t.Errorf("Expected shape scale (2,1), got %v", rect.Scale())
	}

	f.engine.Click(geometry.Pt(700, 500))
	if got := f.events.last().Data[0].Box; got != (types.Box{80, 80, 480, 280}) {
		t.Errorf("Expected [80 80 480 280], got %v", got)
	}
}

func TestTransformSelectedUnderZoom(t *testing.T) {
	f := seeded(t)
	f.engine.Wheel(geometry.Pt(0, 0), -1)
	f.engine.Click(geometry.Pt(110, 110))

	old, ok := f.engine.SelectedBox()
	if !ok {
		t.Fatal("Expected selection")
	}
	if math.Abs(old.X-55) > 1e-9 || math.Abs(old.Width-110) > 1e-9 {
		t.Fatalf("Unexpected absolute box %+v", old)
	}

	f.engine.TransformSelected(geometry.Box{X: 55, Y: 55, Width: 220, Height: 110})
	f.engine.Click(geometry.Pt(700, 500))
	if got := f.events.last().Data[0].Box; got != (types.Box{100, 100, 500, 300}) {
		t.Errorf("Expected [100 100 500 300], got %v", got)
	}
}

func TestRotatedTransformOutOfBoundsUnchanged(t *testing.T) {
	f := seeded(t)
	f.engine.Click(geometry.Pt(100, 100))
	rect, _ := scene.FindRect(f.scene, "a")
	pos, size, scale, rot := rect.Position(), rect.Size(), rect.Scale(), rect.Rotation()

	applied, _ := f.engine.TransformSelected(geometry.Box{X: 10, Y: 10, Width: 100, Height: 100, Rotation: math.Pi / 4})

	if applied != (geometry.Box{X: 50, Y: 50, Width: 100, Height: 100}) {
		t.Errorf("Expected old box back, got %+v", applied)
	}
	if rect.Position() != pos || rect.Size() != size || rect.Scale() != scale || rect.Rotation() != rot {
		t.Error("Rejected transform changed geometry")
	}
}

func TestRotatedTransformInBounds(t *testing.T) {
	f := seeded(t)
	f.engine.Click(geometry.Pt(100, 100))

	proposed := geometry.Box{X: 300, Y: 200, Width: 100, Height: 100, Rotation: math.Pi / 4}
	applied, _ := f.engine.TransformSelected(proposed)
	if applied != proposed {
		t.Fatalf("Expected rotation accepted, got %+v", applied)
	}
	rect, _ := scene.FindRect(f.scene, "a")
	if rect.Rotation() != math.Pi/4 {
		t.Errorf("Expected rotation pi/4, got %v", rect.Rotation())
	}
}

func TestTransformWithoutSelection(t *testing.T) {
	f := seeded(t)
	if _, ok := f.engine.TransformSelected(geometry.Box{Width: 10, Height: 10}); ok {
		t.Error("Transform without selection should report false")
	}
}

func TestTransformSchedulesLabelSync(t *testing.T) {
	f := seeded(t)
	f.engine.Click(geometry.Pt(100, 100))
	f.engine.TransformSelected(geometry.Box{X: 40, Y: 40, Width: 100, Height: 100})

	text, _ := scene.FindText(f.scene, "a")
	if text.Position() != geometry.Pt(50, 28) {
		t.Errorf("Label moved before debounce: %v", text.Position())
	}
	f.engine.Flush()
	if text.Position() != geometry.Pt(40, 18) {
		t.Errorf("Expected label at (40,18), got %v", text.Position())
	}
}

func TestDragSelectedClamped(t *testing.T) {
	f := seeded(t)
	f.engine.Click(geometry.Pt(100, 100))

	got, ok := f.engine.DragSelected(geometry.Pt(750, -20))
	if !ok || got != geometry.Pt(700, 0) {
		t.Fatalf("Expected clamp to (700,0), got %v", got)
	}

	f.engine.Click(geometry.Pt(10, 500))
	if box := f.events.last().Data[0].Box; box != (types.Box{1400, 0, 1600, 200}) {
		t.Errorf("Expected [1400 0 1600 200], got %v", box)
	}
}

func TestDragRequiresSelection(t *testing.T) {
	f := seeded(t)
	if _, ok := f.engine.DragSelected(geometry.Pt(0, 0)); ok {
		t.Error("Drag without selection should report false")
	}
}

func TestSelectByID(t *testing.T) {
	f := seeded(t, types.Annotation{ID: "b", Box: types.Box{600, 600, 800, 800}})

	if err := f.engine.Select("a"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := f.engine.Select("b"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if id, _ := f.engine.Selected(); id != "b" {
		t.Errorf("Expected b selected, got %q", id)
	}
	if f.events.count(types.ChangeUpdate) != 1 {
		t.Error("Switching selection should emit one update")
	}
	if err := f.engine.Select("zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
