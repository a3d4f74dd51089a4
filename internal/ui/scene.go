package ui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/style"
)

var (
	handleFill   = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	handleStroke = color.NRGBA{R: 0, G: 161, B: 255, A: 255}
)

// Scene is a scene.Scene whose state lives in a scene.Memory and is mirrored
// into Fyne canvas objects on every Draw. Fyne cannot rotate primitives, so
// rotated rectangles are shown by their axis-aligned bounds; the transform
// anchors do follow the rotation.
type Scene struct {
	*scene.Memory

	root    *fyne.Container
	image   *canvas.Image
	imgSrc  image.Image
	rects   map[string]*canvas.Rectangle
	texts   map[string]*canvas.Text
	handles []fyne.CanvasObject
}

var _ scene.Scene = (*Scene)(nil)

// NewScene creates an empty Fyne-backed scene
func NewScene() *Scene {
	s := &Scene{
		Memory: scene.NewMemory(geometry.Size{}),
		root:   container.NewWithoutLayout(),
		rects:  map[string]*canvas.Rectangle{},
		texts:  map[string]*canvas.Text{},
	}
	s.Memory.OnDraw(s.sync)
	return s
}

// Object returns the canvas object holding every primitive
func (s *Scene) Object() fyne.CanvasObject {
	return s.root
}

// SelectedBox returns the container-space box of the rectangle the
// transform handle is attached to.
func (s *Scene) SelectedBox() (geometry.Box, bool) {
	tr := s.Transformer()
	if tr == nil {
		return geometry.Box{}, false
	}
	scale, pan := s.View()
	local := localBox(tr.Node())
	return geometry.Box{
		X:        local.X*scale + pan.X,
		Y:        local.Y*scale + pan.Y,
		Width:    local.Width * scale,
		Height:   local.Height * scale,
		Rotation: local.Rotation,
	}, true
}

func toAbsolute(p geometry.Point, scale float64, pan geometry.Point) fyne.Position {
	return fyne.NewPos(float32(p.X*scale+pan.X), float32(p.Y*scale+pan.Y))
}

func parseFill(s string) color.Color {
	c, err := style.ParseRgba(s)
	if err != nil {
		return color.Transparent
	}
	return c
}

// frame is a copy of the memory model taken on the drawing goroutine and
// applied to canvas objects on the Fyne thread.
type frame struct {
	scale     float64
	pan       geometry.Point
	stage     geometry.Size
	img       image.Image
	imageSize geometry.Size
	rects     []rectFrame
	texts     []textFrame
	selected  *geometry.Box
}

type rectFrame struct {
	id          string
	box         geometry.Box
	fill        color.Color
	stroke      color.Color
	strokeWidth float64
}

type textFrame struct {
	id       string
	text     string
	fill     color.Color
	fontSize float64
	pos      geometry.Point
}

// sync snapshots the memory model and hands it to the Fyne thread. Draw may
// run on any goroutine, so canvas objects are only touched inside fyne.Do.
func (s *Scene) sync() {
	f := s.snapshot()
	fyne.Do(func() { s.apply(f) })
}

func (s *Scene) snapshot() frame {
	f := frame{img: s.Memory.Image(), imageSize: s.ImageSize(), stage: s.Size()}
	f.scale, f.pan = s.View()
	for _, r := range scene.Rects(s) {
		f.rects = append(f.rects, rectFrame{
			id:          r.ID(),
			box:         boundsOf(localBox(r)),
			fill:        parseFill(r.Fill()),
			stroke:      parseFill(r.Stroke()),
			strokeWidth: r.StrokeWidth(),
		})
	}
	for _, t := range scene.Texts(s) {
		f.texts = append(f.texts, textFrame{
			id:       t.ID(),
			text:     t.Text(),
			fill:     parseFill(t.Fill()),
			fontSize: t.FontSize(),
			pos:      t.Position(),
		})
	}
	if box, ok := s.SelectedBox(); ok {
		f.selected = &box
	}
	return f
}

// apply rebuilds the canvas object list from f
func (s *Scene) apply(f frame) {
	objects := make([]fyne.CanvasObject, 0, len(f.rects)+len(f.texts)+1)

	if f.img != nil {
		if s.image == nil || s.imgSrc != f.img {
			s.image = canvas.NewImageFromImage(f.img)
			s.image.FillMode = canvas.ImageFillStretch
			s.image.ScaleMode = canvas.ImageScaleFastest
			s.imgSrc = f.img
		}
		s.image.Move(toAbsolute(geometry.Point{}, f.scale, f.pan))
		s.image.Resize(fyne.NewSize(float32(f.imageSize.Width*f.scale), float32(f.imageSize.Height*f.scale)))
		objects = append(objects, s.image)
	} else {
		s.image, s.imgSrc = nil, nil
	}

	liveRects := map[string]*canvas.Rectangle{}
	for _, r := range f.rects {
		obj, ok := s.rects[r.id]
		if !ok {
			obj = canvas.NewRectangle(color.Transparent)
		}
		obj.FillColor = r.fill
		obj.StrokeColor = r.stroke
		obj.StrokeWidth = float32(r.strokeWidth)
		obj.Move(toAbsolute(r.box.Position(), f.scale, f.pan))
		obj.Resize(fyne.NewSize(float32(r.box.Width*f.scale), float32(r.box.Height*f.scale)))
		obj.Refresh()
		liveRects[r.id] = obj
		objects = append(objects, obj)
	}
	s.rects = liveRects

	liveTexts := map[string]*canvas.Text{}
	for _, t := range f.texts {
		obj, ok := s.texts[t.id]
		if !ok {
			obj = canvas.NewText("", color.Black)
		}
		obj.Text = t.text
		obj.Color = t.fill
		obj.TextSize = float32(t.fontSize * f.scale)
		obj.Move(toAbsolute(t.pos, f.scale, f.pan))
		obj.Refresh()
		liveTexts[t.id] = obj
		objects = append(objects, obj)
	}
	s.texts = liveTexts

	s.handles = s.handles[:0]
	if f.selected != nil {
		for _, p := range handlePoints(*f.selected) {
			c := canvas.NewCircle(handleFill)
			c.StrokeColor = handleStroke
			c.StrokeWidth = 1
			c.Move(fyne.NewPos(float32(p.X-handleRadius), float32(p.Y-handleRadius)))
			c.Resize(fyne.NewSize(2*handleRadius, 2*handleRadius))
			s.handles = append(s.handles, c)
		}
		objects = append(objects, s.handles...)
	}

	s.root.Objects = objects
	s.root.Resize(fyne.NewSize(float32(f.stage.Width), float32(f.stage.Height)))
	s.root.Refresh()
}

// localBox returns the stage-local geometry of r including its shape scale
func localBox(r scene.Rect) geometry.Box {
	pos, size, sc := r.Position(), r.Size(), r.Scale()
	return geometry.Box{
		X:        pos.X,
		Y:        pos.Y,
		Width:    size.Width * sc.X,
		Height:   size.Height * sc.Y,
		Rotation: r.Rotation(),
	}
}
