// Package scene defines the retained-mode drawing capability the annotation
// engine renders through, plus an in-memory implementation.
package scene

import (
	"image"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Kind identifies the type of a scene node
type Kind int

const (
	KindImage Kind = iota
	KindRect
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindRect:
		return "rect"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Cursor is the pointer cursor shown over the stage
type Cursor string

const (
	CursorDefault   Cursor = "default"
	CursorCrosshair Cursor = "crosshair"
)

// Node is any primitive placed on the stage. Positions are stage-local,
// before the view scale and pan are applied.
type Node interface {
	ID() string
	Kind() Kind
	Position() geometry.Point
	SetPosition(geometry.Point)
	Destroy()
}

// Rect is an annotation rectangle. Its size may be negative while a draw
// session is in progress.
type Rect interface {
	Node
	Size() geometry.Size
	SetSize(geometry.Size)
	Scale() geometry.Point
	SetScale(geometry.Point)
	Rotation() float64
	SetRotation(float64)
	Fill() string
	SetFill(string)
	Stroke() string
	StrokeWidth() float64
	Draggable() bool
	SetDraggable(bool)
	Data() types.Annotation
	SetData(types.Annotation)
}

// Text is a label drawn near its rectangle
type Text interface {
	Node
	Text() string
	SetText(string)
	FontSize() float64
	Fill() string
}

// RectSpec describes a rectangle to create
type RectSpec struct {
	ID          string
	Box         geometry.Box
	Fill        string
	Stroke      string
	StrokeWidth float64
	Data        types.Annotation
}

// TextSpec describes a label to create
type TextSpec struct {
	ID       string
	Position geometry.Point
	Text     string
	FontSize float64
	Fill     string
}

// Transformer is the resize/rotate handle attached to one rectangle
type Transformer interface {
	Node() Rect
	Detach()
}

// Scene is the stage the engine draws on
type Scene interface {
	Size() geometry.Size
	SetSize(geometry.Size)
	View() (scale float64, pos geometry.Point)
	SetView(scale float64, pos geometry.Point)
	Cursor() Cursor
	SetCursor(Cursor)
	Image() image.Image
	SetImage(img image.Image, size geometry.Size)

	AddRect(RectSpec) Rect
	AddText(TextSpec) Text
	// Children returns the live nodes of the given kind in insertion order
	Children(kind Kind) []Node
	Attach(Rect) Transformer
	Transformer() Transformer

	Clear()
	Draw()
	Destroy()
}

// Container is the host element the stage is fitted into
type Container interface {
	Size() geometry.Size
	// OnResize registers fn for size changes and returns a function removing it
	OnResize(fn func(geometry.Size)) func()
}

// Rects returns the live rectangles of s in insertion order
func Rects(s Scene) []Rect {
	nodes := s.Children(KindRect)
	out := make([]Rect, 0, len(nodes))
	for _, n := range nodes {
		if r, ok := n.(Rect); ok {
			out = append(out, r)
		}
	}
	return out
}

// Texts returns the live labels of s in insertion order
func Texts(s Scene) []Text {
	nodes := s.Children(KindText)
	out := make([]Text, 0, len(nodes))
	for _, n := range nodes {
		if t, ok := n.(Text); ok {
			out = append(out, t)
		}
	}
	return out
}

// FindRect returns the rectangle with the given id
func FindRect(s Scene, id string) (Rect, bool) {
	for _, r := range Rects(s) {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// FindText returns the label with the given id
func FindText(s Scene, id string) (Text, bool) {
	for _, t := range Texts(s) {
		if t.ID() == id {
			return t, true
		}
	}
	return nil, false
}
