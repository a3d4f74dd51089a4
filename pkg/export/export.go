// Package export cuts annotated regions out of an image and writes them to disk.
package export

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/imageio"
	"github.com/menta2k/image-annotator/pkg/render"
	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Options controls how crops are cut and saved
type Options struct {
	Format       string
	Quality      int
	Lossless     bool
	Prefix       string
	PaddingRatio float64
	// Aspect is the width/height ratio every crop is grown to; 0 keeps the box shape
	Aspect       float64
	MinSize      int
}

// DefaultOptions returns jpg output at quality 90 without padding
func DefaultOptions() Options {
	return Options{
		Format:  "jpg",
		Quality: 90,
		MinSize: 1,
	}
}

// Crop is one annotation cut out of its image
type Crop struct {
	Annotation types.Annotation
	Rect       image.Rectangle
	Image      *image.NRGBA
}

// Result describes a crop written to disk
type Result struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Crops cuts every annotation box, grown by paddingRatio of its size on each
// side and intersected with the image bounds. Empty regions are skipped.
func Crops(img image.Image, annotations []types.Annotation, paddingRatio float64) []Crop {
	return CropsToAspect(img, annotations, paddingRatio, 0)
}

// CropsToAspect is Crops with every region then fitted to the aspect ratio,
// centered on the annotation and kept inside the image.
func CropsToAspect(img image.Image, annotations []types.Annotation, paddingRatio, aspect float64) []Crop {
	bounds := img.Bounds()
	crops := make([]Crop, 0, len(annotations))

	for _, a := range annotations {
		r := cropRect(a.Box, paddingRatio).Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			continue
		}
		r = fitAspect(r, aspect, bounds)
		crops = append(crops, Crop{
			Annotation: a,
			Rect:       r,
			Image:      imaging.Crop(img, r),
		})
	}
	return crops
}

func cropRect(b types.Box, paddingRatio float64) image.Rectangle {
	b = b.Normalize()
	padX := math.Max(0, paddingRatio) * b.Width()
	padY := math.Max(0, paddingRatio) * b.Height()
	return image.Rect(
		int(math.Floor(b[0]-padX)),
		int(math.Floor(b[1]-padY)),
		int(math.Ceil(b[2]+padX)),
		int(math.Ceil(b[3]+padY)),
	)
}

// SaveCrops writes one file per annotation into dir, named after source,
// the annotation label and its id.
func SaveCrops(img image.Image, annotations []types.Annotation, source, dir string, opts Options) ([]Result, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if opts.Format == "" {
		opts.Format = "jpg"
	}

	var results []Result
	for _, c := range CropsToAspect(img, annotations, opts.PaddingRatio, opts.Aspect) {
		if c.Rect.Dx() < opts.MinSize || c.Rect.Dy() < opts.MinSize {
			continue
		}

		suffix := "_" + utils.SanitizeFilename(c.Annotation.ID)
		if label := utils.SanitizeFilename(c.Annotation.Label); label != "" {
			suffix = "_" + label + suffix
		}
		path := utils.GenerateOutputFilename(source, dir, opts.Prefix, suffix, opts.Format)

		if err := imageio.SaveImage(c.Image, path, opts.Format, opts.Quality, opts.Lossless); err != nil {
			return results, fmt.Errorf("failed to save crop %s: %w", c.Annotation.ID, err)
		}
		results = append(results, Result{
			ID:     c.Annotation.ID,
			Label:  c.Annotation.Label,
			Path:   path,
			Width:  c.Rect.Dx(),
			Height: c.Rect.Dy(),
		})
	}
	return results, nil
}

// SaveOverlay renders every annotation onto a copy of img and writes it to
// dir under a name derived from source and suffix.
func SaveOverlay(img image.Image, annotations []types.Annotation, st style.LabelStyle, source, dir, suffix string, opts Options) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if opts.Format == "" {
		opts.Format = "jpg"
	}

	path := utils.GenerateOutputFilename(source, dir, opts.Prefix, suffix, opts.Format)
	if err := imageio.SaveImage(render.Overlay(img, annotations, st), path, opts.Format, opts.Quality, opts.Lossless); err != nil {
		return "", fmt.Errorf("failed to save overlay: %w", err)
	}
	return path, nil
}
