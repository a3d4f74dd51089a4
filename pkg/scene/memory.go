package scene

import (
	"image"
	"sync"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Memory is an in-process Scene. It keeps every primitive as plain state and
// notifies draw listeners, which lets front-ends mirror it.
type Memory struct {
	mu          sync.RWMutex
	size        geometry.Size
	scale       float64
	pos         geometry.Point
	cursor      Cursor
	img         image.Image
	imgSize     geometry.Size
	nodes       []Node
	transformer *memTransformer
	onDraw      []func()
	draws       int
	destroyed   bool
}

// NewMemory creates an empty stage of the given size
func NewMemory(size geometry.Size) *Memory {
	return &Memory{size: size, scale: 1, cursor: CursorDefault}
}

func (m *Memory) Size() geometry.Size {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *Memory) SetSize(size geometry.Size) {
	m.mu.Lock()
	m.size = size
	m.mu.Unlock()
}

func (m *Memory) View() (float64, geometry.Point) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scale, m.pos
}

func (m *Memory) SetView(scale float64, pos geometry.Point) {
	m.mu.Lock()
	m.scale, m.pos = scale, pos
	m.mu.Unlock()
}

func (m *Memory) Cursor() Cursor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor
}

func (m *Memory) SetCursor(c Cursor) {
	m.mu.Lock()
	m.cursor = c
	m.mu.Unlock()
}

func (m *Memory) Image() image.Image {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.img
}

// ImageSize returns the display size the image node is stretched to
func (m *Memory) ImageSize() geometry.Size {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.imgSize
}

func (m *Memory) SetImage(img image.Image, size geometry.Size) {
	m.mu.Lock()
	m.img, m.imgSize = img, size
	m.mu.Unlock()
}

func (m *Memory) AddRect(spec RectSpec) Rect {
	r := &memRect{
		memNode:     memNode{scene: m, id: spec.ID, kind: KindRect, pos: spec.Box.Position()},
		size:        geometry.Sz(spec.Box.Width, spec.Box.Height),
		scale:       geometry.Pt(1, 1),
		rotation:    spec.Box.Rotation,
		fill:        spec.Fill,
		stroke:      spec.Stroke,
		strokeWidth: spec.StrokeWidth,
		data:        spec.Data,
	}
	r.self = r
	m.add(r)
	return r
}

func (m *Memory) AddText(spec TextSpec) Text {
	t := &memText{
		memNode:  memNode{scene: m, id: spec.ID, kind: KindText, pos: spec.Position},
		text:     spec.Text,
		fontSize: spec.FontSize,
		fill:     spec.Fill,
	}
	t.self = t
	m.add(t)
	return t
}

func (m *Memory) add(n Node) {
	m.mu.Lock()
	m.nodes = append(m.nodes, n)
	m.mu.Unlock()
}

func (m *Memory) remove(n Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, node := range m.nodes {
		if node == n {
			m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
			break
		}
	}
	if m.transformer != nil && Node(m.transformer.rect) == n {
		m.transformer = nil
	}
}

func (m *Memory) Children(kind Kind) []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Node
	for _, n := range m.nodes {
		if n.Kind() == kind {
			out = append(out, n)
		}
	}
	return out
}

// Attach replaces any existing transformer with one bound to r
func (m *Memory) Attach(r Rect) Transformer {
	rect, ok := r.(*memRect)
	if !ok {
		return nil
	}
	t := &memTransformer{scene: m, rect: rect}
	m.mu.Lock()
	m.transformer = t
	m.mu.Unlock()
	return t
}

func (m *Memory) Transformer() Transformer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.transformer == nil {
		return nil
	}
	return m.transformer
}

// Clear removes every node and the image
func (m *Memory) Clear() {
	m.mu.Lock()
	m.nodes = nil
	m.transformer = nil
	m.img = nil
	m.imgSize = geometry.Size{}
	m.mu.Unlock()
}

// OnDraw registers fn to run after every Draw
func (m *Memory) OnDraw(fn func()) {
	m.mu.Lock()
	m.onDraw = append(m.onDraw, fn)
	m.mu.Unlock()
}

// Draws returns how many times Draw ran
func (m *Memory) Draws() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.draws
}

func (m *Memory) Draw() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.draws++
	listeners := append([]func(){}, m.onDraw...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (m *Memory) Destroy() {
	m.Clear()
	m.mu.Lock()
	m.destroyed = true
	m.onDraw = nil
	m.mu.Unlock()
}

type memNode struct {
	scene *Memory
	self  Node
	id    string
	kind  Kind
	pos   geometry.Point
}

func (n *memNode) ID() string { return n.id }

func (n *memNode) Kind() Kind { return n.kind }

func (n *memNode) Position() geometry.Point {
	n.scene.mu.RLock()
	defer n.scene.mu.RUnlock()
	return n.pos
}

func (n *memNode) SetPosition(p geometry.Point) {
	n.scene.mu.Lock()
	n.pos = p
	n.scene.mu.Unlock()
}

func (n *memNode) Destroy() {
	n.scene.remove(n.self)
}

type memRect struct {
	memNode
	size        geometry.Size
	scale       geometry.Point
	rotation    float64
	fill        string
	stroke      string
	strokeWidth float64
	draggable   bool
	data        types.Annotation
}

func (r *memRect) Size() geometry.Size {
	r.scene.mu.RLock()
	defer r.scene.mu.RUnlock()
	return r.size
}

func (r *memRect) SetSize(s geometry.Size) {
	r.scene.mu.Lock()
	r.size = s
	r.scene.mu.Unlock()
}

func (r *memRect) Scale() geometry.Point {
	r.scene.mu.RLock()
	defer r.scene.mu.RUnlock()
	return r.scale
}

func (r *memRect) SetScale(s geometry.Point) {
	r.scene.mu.Lock()
	r.scale = s
	r.scene.mu.Unlock()
}

func (r *memRect) Rotation() float64 {
	r.scene.mu.RLock()
	defer r.scene.mu.RUnlock()
	return r.rotation
}

func (r *memRect) SetRotation(v float64) {
	r.scene.mu.Lock()
	r.rotation = v
	r.scene.mu.Unlock()
}

func (r *memRect) Fill() string {
	r.scene.mu.RLock()
	defer r.scene.mu.RUnlock()
	return r.fill
}

func (r *memRect) SetFill(f string) {
	r.scene.mu.Lock()
	r.fill = f
	r.scene.mu.Unlock()
}

func (r *memRect) Stroke() string { return r.stroke }

func (r *memRect) StrokeWidth() float64 { return r.strokeWidth }

func (r *memRect) Draggable() bool {
	r.scene.mu.RLock()
	defer r.scene.mu.RUnlock()
	return r.draggable
}

func (r *memRect) SetDraggable(v bool) {
	r.scene.mu.Lock()
	r.draggable = v
	r.scene.mu.Unlock()
}

func (r *memRect) Data() types.Annotation {
	r.scene.mu.RLock()
	defer r.scene.mu.RUnlock()
	d := r.data
	d.Metadata = d.Metadata.Clone()
	return d
}

func (r *memRect) SetData(a types.Annotation) {
	r.scene.mu.Lock()
	r.data = a
	r.scene.mu.Unlock()
}

type memText struct {
	memNode
	text     string
	fontSize float64
	fill     string
}

func (t *memText) Text() string {
	t.scene.mu.RLock()
	defer t.scene.mu.RUnlock()
	return t.text
}

func (t *memText) SetText(s string) {
	t.scene.mu.Lock()
	t.text = s
	t.scene.mu.Unlock()
}

func (t *memText) FontSize() float64 { return t.fontSize }

func (t *memText) Fill() string { return t.fill }

type memTransformer struct {
	scene *Memory
	rect  *memRect
}

func (t *memTransformer) Node() Rect { return t.rect }

func (t *memTransformer) Detach() {
	t.scene.mu.Lock()
	if t.scene.transformer == t {
		t.scene.transformer = nil
	}
	t.scene.mu.Unlock()
}

// StaticContainer is a Container whose size only changes through Resize
type StaticContainer struct {
	mu        sync.Mutex
	size      geometry.Size
	listeners map[int]func(geometry.Size)
	next      int
}

// NewStaticContainer creates a container of the given size
func NewStaticContainer(size geometry.Size) *StaticContainer {
	return &StaticContainer{size: size, listeners: map[int]func(geometry.Size){}}
}

func (c *StaticContainer) Size() geometry.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *StaticContainer) OnResize(fn func(geometry.Size)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Resize changes the size and notifies every listener
func (c *StaticContainer) Resize(size geometry.Size) {
	c.mu.Lock()
	c.size = size
	listeners := make([]func(geometry.Size), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(size)
	}
}
