package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/menta2k/image-annotator/pkg/engine"
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
)

type dragMode int

const (
	dragNone dragMode = iota
	dragDraw
	dragPan
	dragMove
	dragResize
	dragRotate
)

// Canvas is the interactive annotation surface. It forwards pointer input to
// the engine and doubles as the engine's resizable container.
type Canvas struct {
	widget.BaseWidget

	scene  *Scene
	stage  *scene.StaticContainer
	engine *engine.Engine
	bg     *canvas.Rectangle

	mode        dragMode
	handle      Handle
	start       geometry.Box
	grab        geometry.Point
	suppressTap bool
}

var (
	_ fyne.Draggable     = (*Canvas)(nil)
	_ fyne.Tappable      = (*Canvas)(nil)
	_ fyne.Scrollable    = (*Canvas)(nil)
	_ desktop.Mouseable  = (*Canvas)(nil)
	_ desktop.Hoverable  = (*Canvas)(nil)
	_ desktop.Cursorable = (*Canvas)(nil)
)

// NewCanvas creates a canvas drawing s. Call Bind before use.
func NewCanvas(s *Scene) *Canvas {
	c := &Canvas{
		scene: s,
		stage: scene.NewStaticContainer(geometry.Size{}),
		bg:    canvas.NewRectangle(color.NRGBA{R: 40, G: 40, B: 40, A: 255}),
	}
	c.ExtendBaseWidget(c)
	return c
}

// Container returns the size source the engine fits images into
func (c *Canvas) Container() scene.Container {
	return c.stage
}

// Bind attaches the engine receiving input
func (c *Canvas) Bind(e *engine.Engine) {
	c.engine = e
}

func (c *Canvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(c.bg, c.scene.Object()))
}

func (c *Canvas) MinSize() fyne.Size {
	return fyne.NewSize(320, 240)
}

// Resize also resizes the engine container, which schedules a re-layout
func (c *Canvas) Resize(size fyne.Size) {
	c.BaseWidget.Resize(size)
	c.stage.Resize(geometry.Sz(float64(size.Width), float64(size.Height)))
}

func point(p fyne.Position) geometry.Point {
	return geometry.Pt(float64(p.X), float64(p.Y))
}

func (c *Canvas) Cursor() desktop.Cursor {
	if c.scene.Cursor() == scene.CursorCrosshair {
		return desktop.CrosshairCursor
	}
	return desktop.DefaultCursor
}

func (c *Canvas) MouseDown(ev *desktop.MouseEvent) {
	if c.engine == nil || ev.Button != desktop.MouseButtonPrimary {
		return
	}
	p := point(ev.Position)
	c.suppressTap = false
	c.mode = dragNone

	if c.engine.Drawing() {
		c.engine.PointerDown(p)
		c.mode = dragDraw
		c.suppressTap = true
		return
	}

	if box, ok := c.engine.SelectedBox(); ok {
		switch h := hitHandle(box, p, handleRadius+2); h {
		case HandleNone:
		case HandleRotate:
			c.mode, c.handle, c.start = dragRotate, h, box
			c.suppressTap = true
			return
		default:
			c.mode, c.handle, c.start = dragResize, h, box
			c.suppressTap = true
			return
		}
		if box.Contains(p) {
			c.mode = dragMove
			c.grab = p.Sub(box.Position())
			return
		}
	}

	if c.engine.PanEnabled() {
		c.mode = dragPan
	}
}

func (c *Canvas) MouseUp(ev *desktop.MouseEvent) {
	if c.engine == nil || ev.Button != desktop.MouseButtonPrimary {
		return
	}
	if c.mode == dragDraw {
		c.engine.PointerUp()
	}
	c.mode = dragNone
}

func (c *Canvas) MouseIn(*desktop.MouseEvent) {}

func (c *Canvas) MouseMoved(ev *desktop.MouseEvent) {
	if c.engine != nil && c.mode == dragDraw {
		c.engine.PointerMove(point(ev.Position))
	}
}

func (c *Canvas) MouseOut() {}

func (c *Canvas) Dragged(ev *fyne.DragEvent) {
	if c.engine == nil {
		return
	}
	p := point(ev.Position)

	switch c.mode {
	case dragDraw:
		c.engine.PointerMove(p)
	case dragPan:
		c.engine.PanBy(geometry.Pt(float64(ev.Dragged.DX), float64(ev.Dragged.DY)))
	case dragMove:
		c.engine.DragSelected(p.Sub(c.grab))
	case dragResize:
		c.engine.TransformSelected(resizeBox(c.start, c.handle, p))
	case dragRotate:
		c.engine.TransformSelected(rotateBox(c.start, p))
	}
}

func (c *Canvas) DragEnd() {
	if c.mode != dragDraw {
		c.mode = dragNone
	}
}

func (c *Canvas) Tapped(ev *fyne.PointEvent) {
	if c.engine == nil {
		return
	}
	if c.suppressTap {
		c.suppressTap = false
		return
	}
	c.engine.Click(point(ev.Position))
}

func (c *Canvas) Scrolled(ev *fyne.ScrollEvent) {
	if c.engine == nil || ev.Scrolled.DY == 0 {
		return
	}
	c.engine.Wheel(point(ev.Position), -float64(ev.Scrolled.DY))
}
