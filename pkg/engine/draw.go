package engine

import (
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/types"
)

// draft is an in-progress draw session
type draft struct {
	rect   scene.Rect
	text   scene.Text
	origin geometry.Point
}

// Draw arms draw mode for one rectangle labelled with info
func (e *Engine) Draw(info types.LabelInfo) error {
	if c := info.Color(); c != "" {
		if _, err := style.ParseColor(c); err != nil {
			return err
		}
	}
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	e.drawArmed = true
	e.drawInfo = types.LabelInfo{Label: info.Label, Metadata: info.Metadata.Clone()}
	e.panEnabled = false
	e.scene.SetCursor(scene.CursorCrosshair)
	return nil
}

// Drawing reports whether draw mode is armed or a session is in progress
func (e *Engine) Drawing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drawArmed || e.draft != nil
}

// CancelDraw leaves draw mode from any state without emitting
func (e *Engine) CancelDraw() {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	e.cancelDrawLocked()
	e.scene.Draw()
}

func (e *Engine) cancelDrawLocked() {
	e.drawInfo = types.LabelInfo{}
	e.drawArmed = false
	e.panEnabled = true
	e.scene.SetCursor(scene.CursorDefault)

	if e.draft != nil {
		e.draft.rect.Destroy()
		e.draft.text.Destroy()
		e.draft = nil
	}
	if e.selected != nil {
		e.deselectLocked()
	}
}

// PointerDown starts a draw session when draw mode is armed. A second press
// during a session commits it.
func (e *Engine) PointerDown(pointer geometry.Point) {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	if e.draft != nil {
		e.commitDraftLocked()
		return
	}
	if !e.drawArmed || e.img == nil {
		return
	}

	stage := e.scene.Size()
	local := e.view.ToLocal(pointer)
	local = geometry.Pt(
		geometry.Clamp(local.X, 0, stage.Width),
		geometry.Clamp(local.Y, 0, stage.Height),
	)

	rect, text, err := e.createLabelLocked(e.newIDLocked(), geometry.Box{X: local.X, Y: local.Y}, e.drawInfo)
	if err != nil {
		e.logger.Error("Failed to start draw session", zap.Error(err))
		return
	}
	e.draft = &draft{rect: rect, text: text, origin: local}
	e.scene.Draw()
}

// PointerMove grows the in-progress rectangle toward the pointer, clamped to the stage
func (e *Engine) PointerMove(pointer geometry.Point) {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	if e.draft == nil {
		return
	}

	stage := e.scene.Size()
	local := e.view.ToLocal(pointer)
	extent := geometry.ClampDraft(e.draft.origin, local.Sub(e.draft.origin), stage)
	e.draft.rect.SetSize(geometry.Sz(extent.X, extent.Y))

	box := geometry.NormalizeDraft(e.draft.origin, extent, stage)
	e.draft.text.SetPosition(e.labelPositionLocked(box.Position()))
	e.scene.Draw()
}

// PointerUp commits the in-progress rectangle
func (e *Engine) PointerUp() {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	if e.draft == nil {
		return
	}
	e.commitDraftLocked()
}

// commitDraftLocked normalizes and clips the draft, discards it when too
// small, otherwise emits add. Draw mode is disarmed either way.
func (e *Engine) commitDraftLocked() {
	d := e.draft
	e.draft = nil

	size := d.rect.Size()
	box := geometry.NormalizeDraft(d.origin, geometry.Pt(size.Width, size.Height), e.scene.Size())

	if box.Width < e.minDraw || box.Height < e.minDraw {
		d.rect.Destroy()
		d.text.Destroy()
		e.logger.Debug("Discarded undersized rectangle",
			zap.Float64("width", box.Width),
			zap.Float64("height", box.Height))
	} else {
		d.rect.SetPosition(box.Position())
		d.rect.SetSize(geometry.Sz(box.Width, box.Height))
		e.scheduleLabelLocked(d.rect.ID())
		e.emitLocked(types.ChangeAdd)
	}

	e.cancelDrawLocked()
	e.scene.Draw()
}

// createLabelLocked adds a rectangle and its label for box (stage-local)
func (e *Engine) createLabelLocked(id string, box geometry.Box, info types.LabelInfo) (scene.Rect, scene.Text, error) {
	stroke := info.Color()
	if stroke == "" {
		stroke = e.style.Color
	}
	fill, err := style.ToRgba(stroke, e.style.FillOpacity)
	if err != nil {
		return nil, nil, err
	}

	data := types.Annotation{ID: id, Label: info.Label, Metadata: info.Metadata.Clone()}
	text := e.scene.AddText(scene.TextSpec{
		ID:       id,
		Position: e.labelPositionLocked(box.Position()),
		Text:     info.Label,
		FontSize: e.style.FontSize,
		Fill:     stroke,
	})
	rect := e.scene.AddRect(scene.RectSpec{
		ID:          id,
		Box:         box,
		Fill:        fill,
		Stroke:      stroke,
		StrokeWidth: e.style.StrokeWidth,
		Data:        data,
	})
	return rect, text, nil
}

// labelPositionLocked returns the label origin for a rectangle at pos
func (e *Engine) labelPositionLocked(pos geometry.Point) geometry.Point {
	return geometry.Pt(pos.X, pos.Y-e.style.LabelOffset())
}
