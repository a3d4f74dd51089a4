package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/types"
)

// rebuildLocked recomputes the annotation list from the live rectangles in
// scene order. The store is never patched incrementally.
func (e *Engine) rebuildLocked() {
	rects := scene.Rects(e.scene)
	out := make([]types.Annotation, 0, len(rects))
	for _, r := range rects {
		if e.draft != nil && r == e.draft.rect {
			continue
		}
		out = append(out, e.canonicalLocked(r))
	}
	e.annotations = out
}

// canonicalLocked merges the rectangle's data with its canonical box
func (e *Engine) canonicalLocked(r scene.Rect) types.Annotation {
	a := r.Data()
	a.ID = r.ID()
	pos, size := r.Position(), r.Size()
	a.Box = e.mapper.ToCanonical(geometry.Box{X: pos.X, Y: pos.Y, Width: size.Width, Height: size.Height}, r.Scale())
	return a
}

// DrawBox seeds one annotation from its canonical box, clamped to the image.
// It rebuilds the store without emitting.
func (e *Engine) DrawBox(a types.Annotation) error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	if err := e.drawBoxLocked(a); err != nil {
		return err
	}
	e.rebuildLocked()
	e.scene.Draw()
	return nil
}

// AddAnnotations seeds a batch of annotations and emits a single update when
// at least one was added. Rejected entries are skipped and reported in the
// joined error; the count of added annotations is returned either way.
func (e *Engine) AddAnnotations(anns []types.Annotation) (int, error) {
	if err := e.lockLive(); err != nil {
		return 0, err
	}
	defer e.unlockAndFlush()

	if e.img == nil {
		return 0, ErrNoImage
	}
	added := 0
	var errs []error
	for _, a := range anns {
		if err := e.drawBoxLocked(a); err != nil {
			e.logger.Warn("Skipping annotation", zap.String("label", a.Label), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		added++
	}
	if added > 0 {
		e.emitLocked(types.ChangeUpdate)
		e.scene.Draw()
	}
	return added, errors.Join(errs...)
}

func (e *Engine) drawBoxLocked(a types.Annotation) error {
	if e.img == nil {
		return ErrNoImage
	}

	id := a.ID
	if id == "" {
		id = e.newIDLocked()
	} else if _, exists := scene.FindRect(e.scene, id); exists {
		return fmt.Errorf("duplicate annotation id %q", id)
	}

	box := a.Box.Clamp(e.imageSize.Width, e.imageSize.Height)
	info := types.LabelInfo{Label: a.Label, Metadata: a.Metadata}
	if _, _, err := e.createLabelLocked(id, e.mapper.ToDisplay(box), info); err != nil {
		return fmt.Errorf("annotation %q: %w", id, err)
	}
	return nil
}

// DeleteSelected removes the selected annotation and emits delete
func (e *Engine) DeleteSelected() error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	if e.selected == nil {
		return nil
	}
	rect := e.selected.Node()
	e.selected.Detach()
	e.selected = nil
	e.removeLocked(rect)
	e.emitLocked(types.ChangeDelete)
	e.scene.Draw()
	return nil
}

// DeleteByID removes the annotation with id and emits delete
func (e *Engine) DeleteByID(id string) error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	rect, ok := scene.FindRect(e.scene, id)
	if !ok || (e.draft != nil && rect == e.draft.rect) {
		return ErrNotFound
	}
	if e.selected != nil && e.selected.Node().ID() == id {
		e.selected.Detach()
		e.selected = nil
	}
	e.removeLocked(rect)
	e.emitLocked(types.ChangeDelete)
	e.scene.Draw()
	return nil
}

// removeLocked destroys a rectangle, its label and its pending label sync
func (e *Engine) removeLocked(rect scene.Rect) {
	id := rect.ID()
	if text, ok := scene.FindText(e.scene, id); ok {
		text.Destroy()
	}
	rect.Destroy()
	if d, ok := e.labels[id]; ok {
		d.Cancel()
		delete(e.labels, id)
	}
	e.logger.Debug("Annotation removed", zap.String("id", id))
}

// UpdateLabelName replaces the label and metadata of an annotation, resyncs
// its label and emits update. The stroke color is kept.
func (e *Engine) UpdateLabelName(id string, info types.LabelInfo) error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	rect, ok := scene.FindRect(e.scene, id)
	if !ok {
		return ErrNotFound
	}
	rect.SetData(types.Annotation{ID: id, Label: info.Label, Metadata: info.Metadata.Clone()})
	e.scheduleLabelLocked(id)
	e.emitLocked(types.ChangeUpdate)
	return nil
}

// UpdateFillOpacity restyles every unselected rectangle
func (e *Engine) UpdateFillOpacity(v float64) error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	e.style.FillOpacity = v
	var selected scene.Rect
	if e.selected != nil {
		selected = e.selected.Node()
	}
	for _, r := range scene.Rects(e.scene) {
		if r == selected {
			continue
		}
		r.SetFill(e.fillLocked(r.Stroke(), v))
	}
	e.scene.Draw()
	return nil
}

// UpdateSelectOpacity restyles the selected rectangle
func (e *Engine) UpdateSelectOpacity(v float64) error {
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	e.style.SelectOpacity = v
	if e.selected != nil {
		r := e.selected.Node()
		r.SetFill(e.fillLocked(r.Stroke(), v))
		e.scene.Draw()
	}
	return nil
}
