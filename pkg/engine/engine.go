// Package engine implements the interactive annotation engine: it fits an
// image into a container, runs the draw and selection state machines on top
// of a scene, and pushes the rebuilt annotation list to the host after every
// logical change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/coords"
	"github.com/menta2k/image-annotator/pkg/debounce"
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/viewport"
)

const (
	DefaultMinDrawSize      = 5.0
	DefaultMinTransformSize = 3.0
	DefaultLabelDelay       = 200 * time.Millisecond
	DefaultLayoutDelay      = 200 * time.Millisecond
)

var (
	ErrDestroyed  = errors.New("engine destroyed")
	ErrEmptyImage = errors.New("image has zero size")
	ErrNoImage    = errors.New("no image loaded")
	ErrSuperseded = errors.New("image load superseded by a newer load")
	ErrNoLoader   = errors.New("no image loader configured")
	ErrNotFound   = errors.New("annotation not found")
)

// Loader resolves an image source such as a path or URL
type Loader interface {
	Load(ctx context.Context, source string) (image.Image, error)
}

// ChangeFunc receives every change event
type ChangeFunc func(types.ChangeEvent)

// Option configures an Engine
type Option func(*Engine)

// WithStyle replaces the label style with s as given
func WithStyle(s style.LabelStyle) Option {
	return func(e *Engine) {
		c := s
		e.style = &c
	}
}

// WithStyleOverride applies the set fields of o on top of the default style
func WithStyleOverride(o style.Override) Option {
	return func(e *Engine) {
		s := o.Apply(style.Default())
		e.style = &s
	}
}

// WithOnChange sets the change callback
func WithOnChange(fn ChangeFunc) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLoader sets the loader used by LoadImageURL
func WithLoader(l Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithDispatcher sets the function debounced work is handed to when its
// timer fires. Front-ends use it to get back onto their UI thread.
func WithDispatcher(fn func(func())) Option {
	return func(e *Engine) {
		if fn != nil {
			e.dispatch = fn
		}
	}
}

// WithViewport sets the zoom limits and wheel factors
func WithViewport(c viewport.Config) Option {
	return func(e *Engine) { e.view = viewport.NewWithConfig(c) }
}

// WithDebounce sets the label sync and resize re-layout delays
func WithDebounce(label, layout time.Duration) Option {
	return func(e *Engine) {
		e.labelDelay = label
		e.layoutDelay = layout
	}
}

// WithMinSizes sets the smallest drawn and transformed rectangle in display pixels
func WithMinSizes(draw, transform float64) Option {
	return func(e *Engine) {
		if draw > 0 {
			e.minDraw = draw
		}
		if transform > 0 {
			e.minTransform = transform
		}
	}
}

// WithIDFunc sets the generator for new annotation ids
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.idFunc = fn
		}
	}
}

// Engine is the annotation engine bound to one scene and container
type Engine struct {
	mu sync.Mutex

	scene     scene.Scene
	container scene.Container
	loader    Loader
	style     *style.LabelStyle
	mapper    *coords.Mapper
	view      *viewport.Controller
	logger    *zap.Logger
	dispatch  func(func())
	onChange  ChangeFunc
	idFunc    func() string

	minDraw      float64
	minTransform float64
	labelDelay   time.Duration
	layoutDelay  time.Duration

	img         image.Image
	imageSize   geometry.Size
	annotations []types.Annotation
	labels      map[string]*debounce.Debouncer
	layout      *debounce.Debouncer
	unsubscribe func()

	drawArmed  bool
	drawInfo   types.LabelInfo
	draft      *draft
	panEnabled bool
	selected   scene.Transformer

	pending   []types.ChangeEvent
	destroyed bool
	loadGen   uint64
}

// New creates an Engine drawing on s and fitted to container
func New(s scene.Scene, container scene.Container, opts ...Option) *Engine {
	def := style.Default()
	e := &Engine{
		scene:        s,
		container:    container,
		style:        &def,
		mapper:       coords.NewMapper(),
		view:         viewport.New(),
		logger:       zap.NewNop(),
		dispatch:     func(fn func()) { fn() },
		idFunc:       timestampID,
		minDraw:      DefaultMinDrawSize,
		minTransform: DefaultMinTransformSize,
		labelDelay:   DefaultLabelDelay,
		layoutDelay:  DefaultLayoutDelay,
		labels:       map[string]*debounce.Debouncer{},
		panEnabled:   true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.layout = debounce.NewWithDispatcher(e.layoutDelay, e.dispatch)
	if container != nil {
		e.unsubscribe = container.OnResize(func(geometry.Size) {
			e.layout.Trigger(e.relayout)
		})
	}
	return e
}

func timestampID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// LoadImage tears down the current state, fits img into the container, seeds
// initial annotations and emits init.
func (e *Engine) LoadImage(ctx context.Context, img image.Image, initial []types.Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkImage(img); err != nil {
		return err
	}
	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()

	e.loadGen++
	e.resetLocked()
	e.showLocked(img, initial)
	return nil
}

// LoadImageURL tears down the current state, then resolves source through the
// configured Loader and shows the result. Nothing from the previous image is
// live while the loader runs; on failure the engine stays empty. A load that
// finishes after a newer one started returns ErrSuperseded.
func (e *Engine) LoadImageURL(ctx context.Context, source string, initial []types.Annotation) error {
	if err := e.lockLive(); err != nil {
		return err
	}
	loader := e.loader
	if loader == nil {
		e.mu.Unlock()
		return ErrNoLoader
	}
	e.loadGen++
	gen := e.loadGen
	e.resetLocked()
	e.scene.Draw()
	e.unlockAndFlush()

	img, err := loader.Load(ctx, source)
	if err == nil {
		err = checkImage(img)
	}
	if err != nil {
		e.logger.Error("Failed to load image", zap.String("source", source), zap.Error(err))
		return err
	}

	if err := e.lockLive(); err != nil {
		return err
	}
	defer e.unlockAndFlush()
	if gen != e.loadGen {
		e.logger.Debug("Discarding superseded image", zap.String("source", source))
		return ErrSuperseded
	}
	e.showLocked(img, initial)
	return nil
}

func checkImage(img image.Image) error {
	if img == nil {
		return ErrEmptyImage
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return ErrEmptyImage
	}
	return nil
}

// showLocked fits img into the torn-down stage, seeds initial and emits init
func (e *Engine) showLocked(img image.Image, initial []types.Annotation) {
	bounds := img.Bounds()
	e.img = img
	e.imageSize = geometry.Sz(float64(bounds.Dx()), float64(bounds.Dy()))
	e.fitLocked()

	for _, a := range initial {
		if err := e.drawBoxLocked(a); err != nil {
			e.logger.Warn("Skipping initial annotation",
				zap.String("id", a.ID),
				zap.String("label", a.Label),
				zap.Error(err))
		}
	}

	e.logger.Info("Image loaded",
		zap.Float64("width", e.imageSize.Width),
		zap.Float64("height", e.imageSize.Height),
		zap.Float64("zoom_ratio", e.mapper.Ratio()),
		zap.Int("annotations", len(initial)))

	e.emitLocked(types.ChangeInit)
	e.scene.Draw()
}

// resetLocked clears every node, pending task and view offset
func (e *Engine) resetLocked() {
	e.cancelDrawLocked()
	for id, d := range e.labels {
		d.Cancel()
		delete(e.labels, id)
	}
	e.scene.Clear()
	e.img = nil
	e.imageSize = geometry.Size{}
	e.annotations = nil
	e.view.Reset()
	e.scene.SetView(e.view.Scale(), e.view.Position())
}

// fitLocked recomputes the zoom ratio and sizes the stage to the displayed image
func (e *Engine) fitLocked() {
	var container geometry.Size
	if e.container != nil {
		container = e.container.Size()
	}
	e.mapper.Fit(container, e.imageSize)
	display := e.mapper.DisplaySize()
	e.scene.SetSize(display)
	e.scene.SetImage(e.img, display)
}

// emitLocked rebuilds the store and queues one event for delivery after unlock
func (e *Engine) emitLocked(t types.ChangeType) {
	e.rebuildLocked()
	data := make([]types.Annotation, len(e.annotations))
	copy(data, e.annotations)
	e.pending = append(e.pending, types.ChangeEvent{Type: t, Data: data})
}

// unlockAndFlush releases the lock and then delivers queued events, so
// callbacks may call back into the engine.
func (e *Engine) unlockAndFlush() {
	events := e.pending
	e.pending = nil
	cb := e.onChange
	e.mu.Unlock()

	if cb == nil {
		return
	}
	for _, ev := range events {
		cb(ev)
	}
}

// Annotations returns the last rebuilt annotation list
func (e *Engine) Annotations() []types.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Annotation, len(e.annotations))
	for i, a := range e.annotations {
		a.Metadata = a.Metadata.Clone()
		out[i] = a
	}
	return out
}

// Style returns a copy of the current label style
func (e *Engine) Style() style.LabelStyle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.style
}

// ZoomRatio returns the current fit-to-container ratio
func (e *Engine) ZoomRatio() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mapper.Ratio()
}

// ImageSize returns the canonical size of the loaded image
func (e *Engine) ImageSize() geometry.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.imageSize
}

// Image returns the loaded image, nil before LoadImage
func (e *Engine) Image() image.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.img
}

// Flush runs every pending debounced task synchronously
func (e *Engine) Flush() {
	e.mu.Lock()
	tasks := make([]*debounce.Debouncer, 0, len(e.labels)+1)
	tasks = append(tasks, e.layout)
	for _, d := range e.labels {
		tasks = append(tasks, d)
	}
	e.mu.Unlock()

	for _, d := range tasks {
		d.Flush()
	}
}

// Destroy tears down the scene and stops listening to the container
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.layout.Cancel()
	for _, d := range e.labels {
		d.Cancel()
	}
	e.labels = map[string]*debounce.Debouncer{}
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.draft = nil
	e.selected = nil
	e.scene.Destroy()
	e.pending = nil
	e.mu.Unlock()

	e.logger.Debug("Engine destroyed")
}

// lockLive acquires the lock unless the engine was destroyed
func (e *Engine) lockLive() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	return nil
}

// newIDLocked returns an id not used by any live rectangle
func (e *Engine) newIDLocked() string {
	id := e.idFunc()
	if _, taken := scene.FindRect(e.scene, id); !taken {
		return id
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if _, taken := scene.FindRect(e.scene, candidate); !taken {
			return candidate
		}
	}
}
