package engine

import (
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/debounce"
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/types"
)

// scheduleLabelLocked (re)starts the label sync for one annotation
func (e *Engine) scheduleLabelLocked(id string) {
	d, ok := e.labels[id]
	if !ok {
		d = debounce.NewWithDispatcher(e.labelDelay, e.dispatch)
		e.labels[id] = d
	}
	d.Trigger(func() { e.syncLabel(id) })
}

// syncLabel places the label above its rectangle's live geometry and sets its text
func (e *Engine) syncLabel(id string) {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	rect, ok := scene.FindRect(e.scene, id)
	if !ok {
		return
	}
	if e.placeLabelLocked(rect) {
		e.scene.Draw()
	}
}

func (e *Engine) placeLabelLocked(rect scene.Rect) bool {
	text, ok := scene.FindText(e.scene, rect.ID())
	if !ok {
		return false
	}
	text.SetPosition(e.labelPositionLocked(rect.Position()))
	text.SetText(rect.Data().Label)
	return true
}

// relayout runs when container resizes have settled
func (e *Engine) relayout() {
	if e.lockLive() != nil {
		return
	}
	defer e.unlockAndFlush()

	if e.img == nil {
		return
	}
	e.relayoutLocked()
	e.scene.Draw()
}

// relayoutLocked refits the stage and re-derives every rectangle from its
// canonical box. Shape scale is reset and rotation kept.
func (e *Engine) relayoutLocked() {
	type snapshot struct {
		rect scene.Rect
		box  types.Box
	}

	var live []snapshot
	for _, r := range scene.Rects(e.scene) {
		if e.draft != nil && r == e.draft.rect {
			continue
		}
		live = append(live, snapshot{rect: r, box: e.canonicalLocked(r).Box})
	}

	old := e.mapper.Ratio()
	e.fitLocked()

	for _, s := range live {
		d := e.mapper.ToDisplay(s.box)
		s.rect.SetPosition(d.Position())
		s.rect.SetSize(geometry.Sz(d.Width, d.Height))
		s.rect.SetScale(geometry.Pt(1, 1))
		e.placeLabelLocked(s.rect)
		if pending, ok := e.labels[s.rect.ID()]; ok {
			pending.Cancel()
		}
	}

	e.view.Reclamp(e.scene.Size())
	e.scene.SetView(e.view.Scale(), e.view.Position())
	e.rebuildLocked()

	e.logger.Debug("Stage refitted",
		zap.Float64("old_ratio", old),
		zap.Float64("zoom_ratio", e.mapper.Ratio()),
		zap.Int("annotations", len(live)))
}
