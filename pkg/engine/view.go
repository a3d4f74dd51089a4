package engine

import (
	"github.com/menta2k/image-annotator/pkg/geometry"
)

// Wheel zooms around the pointer. It is ignored while a draw session is active.
func (e *Engine) Wheel(pointer geometry.Point, deltaY float64) {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	if e.draft != nil {
		return
	}
	e.view.Wheel(pointer, deltaY, e.scene.Size())
	e.applyViewLocked()
}

// PanTo moves the stage to pos within the pan limits. Panning is disabled
// while draw mode is armed.
func (e *Engine) PanTo(pos geometry.Point) geometry.Point {
	if e.lockLive() != nil {
		return geometry.Point{}
	}
	defer e.unlockAndFlush()

	if e.panEnabled {
		e.view.ClampPan(pos, e.scene.Size())
		e.applyViewLocked()
	}
	return e.view.Position()
}

// PanBy moves the stage by delta within the pan limits
func (e *Engine) PanBy(delta geometry.Point) geometry.Point {
	if e.lockLive() != nil {
		return geometry.Point{}
	}
	defer e.unlockAndFlush()

	if e.panEnabled {
		e.view.ClampPan(e.view.Position().Add(delta), e.scene.Size())
		e.applyViewLocked()
	}
	return e.view.Position()
}

// ResetZoom restores scale 1 and pan (0,0)
func (e *Engine) ResetZoom() error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	e.view.Reset()
	e.applyViewLocked()
	return nil
}

// View returns the interactive scale and pan offset
func (e *Engine) View() (float64, geometry.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.Scale(), e.view.Position()
}

// PanEnabled reports whether the stage can currently be panned
func (e *Engine) PanEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.panEnabled && !e.destroyed
}

// ToLocal converts a container point to stage-local coordinates
func (e *Engine) ToLocal(pointer geometry.Point) geometry.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.ToLocal(pointer)
}

func (e *Engine) applyViewLocked() {
	e.scene.SetView(e.view.Scale(), e.view.Position())
	e.scene.Draw()
}

// viewportBoundsLocked returns the absolute rectangle covered by the scaled stage
func (e *Engine) viewportBoundsLocked() geometry.Box {
	return e.view.Bounds(e.scene.Size())
}
