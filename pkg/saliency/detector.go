// Package saliency proposes annotation boxes without a model by scoring
// image regions on edge strength and brightness. It implements
// client.VisionClient so it can stand in for a vision backend offline.
package saliency

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/imageio"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Label is the class assigned to every proposed region
const Label = "subject"

var _ client.VisionClient = (*Detector)(nil)

// ErrEmptyImage is returned for images without pixels
var ErrEmptyImage = errors.New("empty image")

// Config holds configuration for region detection
type Config struct {
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	MinSubjectRatio float64
	MaxRegions      int
	// WorkDim bounds the long side of the image the saliency map is computed on
	WorkDim int
	// Overlap is the IoU above which a weaker region is suppressed
	Overlap float64
}

// DefaultConfig returns the default detection configuration
func DefaultConfig() Config {
	return Config{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.3,
		ColorWeight:     0.2,
		MinSubjectRatio: 0.05,
		MaxRegions:      10,
		WorkDim:         256,
		Overlap:         0.3,
	}
}

// Detector finds salient regions in images
type Detector struct {
	config Config
	logger *zap.Logger
}

// New creates a Detector with the default configuration
func New(logger *zap.Logger) *Detector {
	return NewWithConfig(DefaultConfig(), logger)
}

// NewWithConfig creates a Detector with custom configuration
func NewWithConfig(config Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{config: config, logger: logger.Named("saliency")}
}

// Region is a rectangular region of interest in image pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Box returns the region as an annotation box
func (r Region) Box() types.Box {
	return types.Box{float64(r.X), float64(r.Y), float64(r.X + r.Width), float64(r.Y + r.Height)}
}

func (r Region) iou(o Region) float64 {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	inter := float64((x1 - x0) * (y1 - y0))
	return inter / (float64(r.Area()+o.Area()) - inter)
}

// DetectSubjects returns the most salient, mostly disjoint regions of img,
// best first, in img's pixel coordinates relative to its bounds.
func (d *Detector) DetectSubjects(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}

	work := image.Image(img)
	if d.config.WorkDim > 0 && max(width, height) > d.config.WorkDim {
		work = imaging.Fit(img, d.config.WorkDim, d.config.WorkDim, imaging.Box)
	}
	ww, wh := work.Bounds().Dx(), work.Bounds().Dy()

	sums := integrate(d.saliencyMap(work))
	candidates := d.filter(d.scanWindows(sums, ww, wh), ww, wh)
	regions := d.suppress(candidates)

	sx, sy := float64(width)/float64(ww), float64(height)/float64(wh)
	for i, r := range regions {
		regions[i] = scaleRegion(r, sx, sy, width, height)
	}

	d.logger.Debug("Salient regions",
		zap.Int("candidates", len(candidates)),
		zap.Int("regions", len(regions)))
	return regions, nil
}

// saliencyMap combines local edge strength with brightness per pixel
func (d *Detector) saliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	sal := make([][]float64, height)
	for i := range sal {
		sal[i] = make([]float64, width)
	}

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var edge float64
			for _, off := range neighbors {
				r2, g2, b2, _ := img.At(x+off[0]+bounds.Min.X, y+off[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edge += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edge /= 8.0 * 65535.0

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)
			sal[y][x] = d.config.ContrastWeight*edge + d.config.ColorWeight*brightness
		}
	}
	return sal
}

// integrate builds a summed-area table with one row and column of padding
func integrate(sal [][]float64) [][]float64 {
	height := len(sal)
	width := 0
	if height > 0 {
		width = len(sal[0])
	}
	sums := make([][]float64, height+1)
	sums[0] = make([]float64, width+1)
	for y := 0; y < height; y++ {
		sums[y+1] = make([]float64, width+1)
		var row float64
		for x := 0; x < width; x++ {
			row += sal[y][x]
			sums[y+1][x+1] = sums[y][x+1] + row
		}
	}
	return sums
}

func windowMean(sums [][]float64, x, y, w, h int) float64 {
	total := sums[y+h][x+w] - sums[y][x+w] - sums[y+h][x] + sums[y][x]
	return total / float64(w*h)
}

// scanWindows slides square windows of several sizes over the map
func (d *Detector) scanWindows(sums [][]float64, width, height int) []Region {
	var regions []Region
	for _, div := range []int{20, 16, 12, 8, 4} {
		size := width / div
		if size < 4 || size > height {
			continue
		}
		step := max(1, size/8)
		for y := 0; y <= height-size; y += step {
			for x := 0; x <= width-size; x += step {
				score := windowMean(sums, x, y, size, size)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}
	return regions
}

// filter drops regions below the minimum area and sorts the rest by score
func (d *Detector) filter(regions []Region, width, height int) []Region {
	minArea := int(float64(width*height) * d.config.MinSubjectRatio)
	kept := regions[:0]
	for _, r := range regions {
		if r.Area() >= minArea {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return kept
}

// suppress keeps the best regions that do not overlap a better one
func (d *Detector) suppress(sorted []Region) []Region {
	var out []Region
	for _, r := range sorted {
		if d.config.MaxRegions > 0 && len(out) >= d.config.MaxRegions {
			break
		}
		overlaps := false
		for _, k := range out {
			if r.iou(k) > d.config.Overlap {
				overlaps = true
				break
			}
		}
		if !overlaps {
			out = append(out, r)
		}
	}
	return out
}

func scaleRegion(r Region, sx, sy float64, width, height int) Region {
	x0 := int(math.Round(float64(r.X) * sx))
	y0 := int(math.Round(float64(r.Y) * sy))
	x1 := min(width, int(math.Round(float64(r.X+r.Width)*sx)))
	y1 := min(height, int(math.Round(float64(r.Y+r.Height)*sy)))
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Score: r.Score}
}

// SimpleQuery reports the image size and region count; model and prompt are ignored
func (d *Detector) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if imgB64 == "" {
		return "saliency detector ready", nil
	}
	img, regions, err := d.decodeAndDetect(ctx, imgB64)
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	return fmt.Sprintf("Image %dx%d with %d salient regions", b.Dx(), b.Dy(), len(regions)), nil
}

// DetectObjects proposes every salient region as a "subject" with a
// confidence relative to the best region.
func (d *Detector) DetectObjects(ctx context.Context, model, prompt, imgB64 string) (*types.DetectionResult, error) {
	img, regions, err := d.decodeAndDetect(ctx, imgB64)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	result := &types.DetectionResult{
		Objects:     make([]types.Detection, 0, len(regions)),
		Description: fmt.Sprintf("%d salient regions", len(regions)),
		Tags:        []string{"saliency"},
	}
	for _, r := range regions {
		confidence := 1.0
		if top := regions[0].Score; top > 0 {
			confidence = r.Score / top
		}
		result.Objects = append(result.Objects, types.Detection{
			Label:      Label,
			Confidence: confidence,
			Box: types.NormBox{
				X: float64(r.X) / w,
				Y: float64(r.Y) / h,
				W: float64(r.Width) / w,
				H: float64(r.Height) / h,
			},
		})
	}
	return result, nil
}

func (d *Detector) decodeAndDetect(ctx context.Context, imgB64 string) (image.Image, []Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	data, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	img, err := imageio.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}
	regions, err := d.DetectSubjects(img)
	if err != nil {
		return nil, nil, err
	}
	return img, regions, nil
}
