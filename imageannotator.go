// Package imageannotator provides an embeddable bounding-box annotation engine.
//
// An image is fitted into a container, rectangles are drawn, selected,
// moved, resized, rotated and relabelled through pointer input, and after
// every logical change the host receives the full annotation list in the
// image's own pixel coordinates.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		imageannotator "github.com/menta2k/image-annotator"
//		"github.com/menta2k/image-annotator/pkg/engine"
//		"github.com/menta2k/image-annotator/pkg/geometry"
//		"github.com/menta2k/image-annotator/pkg/types"
//	)
//
//	func main() {
//		ann := imageannotator.New(800, 600, engine.WithOnChange(func(ev types.ChangeEvent) {
//			fmt.Println(ev.Type, len(ev.Data))
//		}))
//		defer ann.Close()
//
//		if err := ann.Open(context.Background(), "photo.jpg", nil); err != nil {
//			log.Fatal(err)
//		}
//
//		e := ann.Engine()
//		e.Draw(types.LabelInfo{Label: "cat"})
//		e.PointerDown(geometry.Pt(50, 50))
//		e.PointerMove(geometry.Pt(150, 150))
//		e.PointerUp()
//	}
//
// The package consists of these main components:
//
// 1. Engine (pkg/engine): draw, selection, transform and zoom state machines
// 2. Scene (pkg/scene): the drawing surface the engine renders on
// 3. Suggest (pkg/suggest): vision model pre-annotation via Ollama or llama.cpp
// 4. Export (pkg/export, pkg/render): overlays and crops of the annotated image
//
// Front-ends are a headless CLI with an HTTP/websocket bridge
// (cmd/image-annotator) and a Fyne desktop app (cmd/image-annotator-gui).
package imageannotator

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/image-annotator/pkg/engine"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/imageio"
	"github.com/menta2k/image-annotator/pkg/render"
	"github.com/menta2k/image-annotator/pkg/scene"
	"github.com/menta2k/image-annotator/pkg/suggest"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Version of the image annotator library
const Version = "0.1.0"

// ImageAnnotator bundles an engine with an in-memory scene and a fixed-size
// container, for headless use and tests.
type ImageAnnotator struct {
	engine    *engine.Engine
	scene     *scene.Memory
	container *scene.StaticContainer
	loader    *imageio.Loader
}

// New creates an annotator whose container is width x height. A default
// image loader is installed unless opts set one.
func New(width, height float64, opts ...engine.Option) *ImageAnnotator {
	ia := &ImageAnnotator{
		scene:     scene.NewMemory(geometry.Size{}),
		container: scene.NewStaticContainer(geometry.Sz(width, height)),
		loader:    imageio.NewLoader(),
	}
	all := append([]engine.Option{engine.WithLoader(ia.loader)}, opts...)
	ia.engine = engine.New(ia.scene, ia.container, all...)
	return ia
}

// Engine returns the underlying engine
func (ia *ImageAnnotator) Engine() *engine.Engine {
	return ia.engine
}

// Scene returns the in-memory scene
func (ia *ImageAnnotator) Scene() *scene.Memory {
	return ia.scene
}

// Resize changes the container size; the engine re-lays out after its debounce delay
func (ia *ImageAnnotator) Resize(width, height float64) {
	ia.container.Resize(geometry.Sz(width, height))
}

// LoadImage shows img with initial annotations
func (ia *ImageAnnotator) LoadImage(ctx context.Context, img image.Image, initial []types.Annotation) error {
	return ia.engine.LoadImage(ctx, img, initial)
}

// Open loads an image from a path or URL and shows it with initial annotations
func (ia *ImageAnnotator) Open(ctx context.Context, source string, initial []types.Annotation) error {
	return ia.engine.LoadImageURL(ctx, source, initial)
}

// Annotations returns the current annotations in image pixel coordinates
func (ia *ImageAnnotator) Annotations() []types.Annotation {
	return ia.engine.Annotations()
}

// Overlay renders the current annotations onto a copy of the image
func (ia *ImageAnnotator) Overlay() (*image.NRGBA, error) {
	img := ia.engine.Image()
	if img == nil {
		return nil, engine.ErrNoImage
	}
	ia.engine.Flush()
	return render.Overlay(img, ia.engine.Annotations(), ia.engine.Style()), nil
}

// Crops cuts every annotation out of the image
func (ia *ImageAnnotator) Crops(paddingRatio float64) ([]export.Crop, error) {
	img := ia.engine.Image()
	if img == nil {
		return nil, engine.ErrNoImage
	}
	return export.Crops(img, ia.engine.Annotations(), paddingRatio), nil
}

// Suggest runs s on the current image and adds every suggestion to the
// engine under a fresh id. No change event is emitted.
func (ia *ImageAnnotator) Suggest(ctx context.Context, s *suggest.Suggester) (*suggest.Result, error) {
	img := ia.engine.Image()
	if img == nil {
		return nil, engine.ErrNoImage
	}
	res, err := s.Suggest(ctx, img)
	if err != nil {
		return nil, err
	}

	batch := make([]types.Annotation, len(res.Annotations))
	for i, a := range res.Annotations {
		a.ID = ""
		batch[i] = a
	}
	if added, err := ia.engine.AddAnnotations(batch); err != nil {
		return res, fmt.Errorf("added %d of %d suggestions: %w", added, len(batch), err)
	}
	return res, nil
}

// Close destroys the engine
func (ia *ImageAnnotator) Close() {
	ia.engine.Destroy()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
