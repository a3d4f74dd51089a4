// Package suggest turns vision model detections into seed annotations.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/imageio"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Metadata keys set on suggested annotations
const (
	MetaScore     = "score"
	MetaClassName = "className"
)

// SimpleTestPrompt checks whether the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for every distinct object with a normalized box
const DefaultPrompt = `You are an object locator for an image annotation tool.

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- One entry per distinct object; boxes tightly include the object.
- Labels: lowercase nouns, singular, no punctuation. Do not guess real identities.
- Confidence is your probability that the label and box are correct.
- If nothing is found, return {"objects": [], "description": "empty scene", "tags": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var ErrNoClient = errors.New("no vision client configured")

// Config controls how images are sent and how detections are filtered
type Config struct {
	Model         string
	Prompt        string
	MinConfidence float64
	MaxObjects    int
	MaxDim        int
	Quality       int
	Format        string
	IDPrefix      string
}

// DefaultConfig returns the settings used when a field is left zero
func DefaultConfig() Config {
	return Config{
		Model:         "minicpm-v",
		Prompt:        DefaultPrompt,
		MinConfidence: 0.3,
		MaxObjects:    50,
		MaxDim:        1024,
		Quality:       85,
		Format:        "jpg",
		IDPrefix:      "s",
	}
}

// Result is the outcome of one suggestion run
type Result struct {
	Annotations []types.Annotation `json:"annotations"`
	Description string             `json:"description"`
	Tags        []string           `json:"tags"`
	Dropped     int                `json:"dropped"`
}

// Suggester queries a vision model for objects in an image
type Suggester struct {
	client client.VisionClient
	cfg    Config
	logger *zap.Logger
}

// New creates a Suggester. Zero fields of cfg fall back to DefaultConfig,
// except MinConfidence where zero keeps every detection.
func New(c client.VisionClient, cfg Config, logger *zap.Logger) *Suggester {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Prompt == "" {
		cfg.Prompt = def.Prompt
	}
	if cfg.MaxObjects <= 0 {
		cfg.MaxObjects = def.MaxObjects
	}
	if cfg.MaxDim <= 0 {
		cfg.MaxDim = def.MaxDim
	}
	if cfg.Quality <= 0 {
		cfg.Quality = def.Quality
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = def.IDPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{client: c, cfg: cfg, logger: logger.Named("suggest")}
}

// Config returns the effective configuration
func (s *Suggester) Config() Config {
	return s.cfg
}

// Suggest asks the model for objects in img and returns them as annotations
// with canonical pixel boxes, highest confidence first.
func (s *Suggester) Suggest(ctx context.Context, img image.Image) (*Result, error) {
	if s.client == nil {
		return nil, ErrNoClient
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("cannot suggest on empty image")
	}

	imgB64, err := imageio.EncodeBase64(img, s.cfg.Format, s.cfg.MaxDim, s.cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	detections, err := s.client.DetectObjects(ctx, s.cfg.Model, s.cfg.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	result := s.toResult(detections, float64(b.Dx()), float64(b.Dy()))
	s.logger.Info("suggestions ready",
		zap.String("model", s.cfg.Model),
		zap.Int("kept", len(result.Annotations)),
		zap.Int("dropped", result.Dropped))
	return result, nil
}

// TestVision checks that the model can actually see the image
func (s *Suggester) TestVision(ctx context.Context, img image.Image) (string, error) {
	if s.client == nil {
		return "", ErrNoClient
	}
	imgB64, err := imageio.EncodeBase64(img, s.cfg.Format, s.cfg.MaxDim, s.cfg.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return s.client.SimpleQuery(ctx, s.cfg.Model, SimpleTestPrompt, imgB64)
}

func (s *Suggester) toResult(d *types.DetectionResult, width, height float64) *Result {
	objects := make([]types.Detection, 0, len(d.Objects))
	dropped := 0
	for _, obj := range d.Objects {
		obj.Label = strings.ToLower(strings.TrimSpace(obj.Label))
		obj.Box = normalizeBox(obj.Box)
		if obj.Label == "" || obj.Label == "none" || obj.Confidence < s.cfg.MinConfidence ||
			obj.Box.W <= 0 || obj.Box.H <= 0 {
			dropped++
			continue
		}
		objects = append(objects, obj)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Confidence > objects[j].Confidence
	})
	if len(objects) > s.cfg.MaxObjects {
		dropped += len(objects) - s.cfg.MaxObjects
		objects = objects[:s.cfg.MaxObjects]
	}

	anns := make([]types.Annotation, 0, len(objects))
	for i, obj := range objects {
		anns = append(anns, types.Annotation{
			ID:    s.cfg.IDPrefix + strconv.Itoa(i+1),
			Label: obj.Label,
			Box:   ToPixels(obj.Box, width, height),
			Metadata: types.Metadata{
				MetaScore:     obj.Confidence,
				MetaClassName: obj.Label,
			},
		})
	}

	return &Result{
		Annotations: anns,
		Description: d.Description,
		Tags:        normalizeTags(d.Tags),
		Dropped:     dropped,
	}
}

// ToPixels converts a normalized box to a rounded canonical box
func ToPixels(b types.NormBox, width, height float64) types.Box {
	return types.Box{
		b.X * width,
		b.Y * height,
		(b.X + b.W) * width,
		(b.Y + b.H) * height,
	}.Round().Clamp(width, height)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside [0,1] on both axes
func normalizeBox(b types.NormBox) types.NormBox {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.NormBox{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
