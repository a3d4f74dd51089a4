package engine

import (
	"math"

	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/types"
)

// rejectTolerance is how far a rotated bounding box may be moved by the stage
// clip before the transform is refused.
const rejectTolerance = 0.001

// ConstrainTransform returns the box a transform handle may apply, given the
// previous absolute box, the proposed one and the absolute viewport bounds.
// Axis-aligned boxes are clipped to the viewport. Rotated boxes whose
// bounding box would leave the viewport are rejected by returning old.
func ConstrainTransform(old, proposed, bounds geometry.Box, minSize float64) geometry.Box {
	rotation := proposed.Rotation
	rotated := rotation != old.Rotation

	next := proposed
	if next.Width < minSize {
		next.Width = minSize
	}
	if next.Height < minSize {
		next.Height = minSize
	}

	if rotation != 0 || rotated {
		self := geometry.Box{Width: next.Width, Height: next.Height}
		client := geometry.BoundingBoxAfterChanges(self, next.Position(), rotation)
		fixed := geometry.FitToStage(client, bounds)

		if math.Abs(fixed.X-client.X) > rejectTolerance ||
			math.Abs(fixed.Y-client.Y) > rejectTolerance ||
			math.Abs(fixed.Width-client.Width) > rejectTolerance ||
			math.Abs(fixed.Height-client.Height) > rejectTolerance {
			return old
		}
		return next
	}

	return geometry.FitToStage(next, bounds)
}

// Click toggles the selection. With a selection it always deselects and
// emits update; otherwise it selects the topmost rectangle under pointer.
// Clicks are ignored while drawing.
func (e *Engine) Click(pointer geometry.Point) {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	if e.drawArmed || e.draft != nil {
		return
	}

	if e.selected != nil {
		e.deselectLocked()
		e.emitLocked(types.ChangeUpdate)
		e.scene.Draw()
		return
	}

	if rect := e.hitTestLocked(pointer); rect != nil {
		e.selectLocked(rect)
		e.scene.Draw()
	}
}

// Select attaches the transform handle to the annotation with id
func (e *Engine) Select(id string) error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	rect, ok := scene.FindRect(e.scene, id)
	if !ok {
		return ErrNotFound
	}
	if e.selected != nil {
		if e.selected.Node().ID() == id {
			return nil
		}
		e.deselectLocked()
		e.emitLocked(types.ChangeUpdate)
	}
	e.selectLocked(rect)
	e.scene.Draw()
	return nil
}

// Selected returns the id of the selected annotation
func (e *Engine) Selected() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return "", false
	}
	return e.selected.Node().ID(), true
}

// SelectedBox returns the absolute geometry of the selected annotation
func (e *Engine) SelectedBox() (geometry.Box, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return geometry.Box{}, false
	}
	return e.absoluteBoxLocked(e.selected.Node()), true
}

// TransformSelected applies a proposed absolute box to the selected rectangle
// through ConstrainTransform and returns the box actually applied. Nothing is
// emitted until the rectangle is deselected.
func (e *Engine) TransformSelected(proposed geometry.Box) (geometry.Box, bool) {
	if e.lockLive() != nil {
		return geometry.Box{}, false
	}
	defer e.unlockAndFlush()

	if e.selected == nil {
		return geometry.Box{}, false
	}

	rect := e.selected.Node()
	old := e.absoluteBoxLocked(rect)
	applied := ConstrainTransform(old, proposed, e.viewportBoundsLocked(), e.minTransform)
	if applied == old {
		return old, true
	}

	e.applyAbsoluteLocked(rect, applied)
	e.scheduleLabelLocked(rect.ID())
	e.scene.Draw()
	return applied, true
}

// DragSelected moves the selected rectangle's absolute origin to pos, clamped
// so the scaled rectangle stays inside the viewport.
func (e *Engine) DragSelected(pos geometry.Point) (geometry.Point, bool) {
	if e.lockLive() != nil {
		return geometry.Point{}, false
	}
	defer e.unlockAndFlush()

	if e.selected == nil || !e.selected.Node().Draggable() {
		return geometry.Point{}, false
	}

	rect := e.selected.Node()
	abs := e.absoluteBoxLocked(rect)
	bounds := e.viewportBoundsLocked()

	clamped := geometry.Pt(
		math.Max(bounds.X, math.Min(pos.X, bounds.X+bounds.Width-abs.Width)),
		math.Max(bounds.Y, math.Min(pos.Y, bounds.Y+bounds.Height-abs.Height)),
	)
	rect.SetPosition(e.view.ToLocal(clamped))
	e.scheduleLabelLocked(rect.ID())
	e.scene.Draw()
	return clamped, true
}

func (e *Engine) selectLocked(rect scene.Rect) {
	rect.SetDraggable(true)
	rect.SetFill(e.fillLocked(rect.Stroke(), e.style.SelectOpacity))
	e.selected = e.scene.Attach(rect)
}

// deselectLocked restores the unselected fill and detaches the handle
func (e *Engine) deselectLocked() {
	rect := e.selected.Node()
	rect.SetDraggable(false)
	rect.SetFill(e.fillLocked(rect.Stroke(), e.style.FillOpacity))
	e.selected.Detach()
	e.selected = nil
}

// hitTestLocked returns the topmost committed rectangle under pointer
func (e *Engine) hitTestLocked(pointer geometry.Point) scene.Rect {
	local := e.view.ToLocal(pointer)
	rects := scene.Rects(e.scene)
	for i := len(rects) - 1; i >= 0; i-- {
		r := rects[i]
		if e.draft != nil && r == e.draft.rect {
			continue
		}
		if localBox(r).Contains(local) {
			return r
		}
	}
	return nil
}

// localBox returns the stage-local geometry of r including its shape scale
func localBox(r scene.Rect) geometry.Box {
	pos, size, scale := r.Position(), r.Size(), r.Scale()
	return geometry.Box{
		X:        pos.X,
		Y:        pos.Y,
		Width:    size.Width * scale.X,
		Height:   size.Height * scale.Y,
		Rotation: r.Rotation(),
	}
}

// absoluteBoxLocked returns the container-space geometry of r
func (e *Engine) absoluteBoxLocked(r scene.Rect) geometry.Box {
	local := localBox(r)
	s := e.view.Scale()
	origin := e.view.ToAbsolute(local.Position())
	return geometry.Box{
		X:        origin.X,
		Y:        origin.Y,
		Width:    local.Width * s,
		Height:   local.Height * s,
		Rotation: local.Rotation,
	}
}

// applyAbsoluteLocked converts an absolute box into local position, shape
// scale and rotation on r.
func (e *Engine) applyAbsoluteLocked(r scene.Rect, b geometry.Box) {
	s := e.view.Scale()
	r.SetPosition(e.view.ToLocal(b.Position()))
	r.SetRotation(b.Rotation)

	size := r.Size()
	if size.Width <= 0 || size.Height <= 0 {
		r.SetSize(geometry.Sz(b.Width/s, b.Height/s))
		r.SetScale(geometry.Pt(1, 1))
		return
	}
	r.SetScale(geometry.Pt(b.Width/(size.Width*s), b.Height/(size.Height*s)))
}

// fillLocked derives a translucent fill from a stroke color
func (e *Engine) fillLocked(stroke string, alpha float64) string {
	fill, err := style.ToRgba(stroke, alpha)
	if err != nil {
		e.logger.Warn("Invalid stroke color", zap.String("color", stroke), zap.Error(err))
		return stroke
	}
	return fill
}
