package suggest

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"testing"

	"github.com/menta2k/image-annotator/pkg/types"
)

type fakeClient struct {
	result *types.DetectionResult
	err    error
	model  string
	prompt string
	imgB64 string
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.model, f.prompt, f.imgB64 = model, prompt, imgB64
	return "a test image", f.err
}

func (f *fakeClient) DetectObjects(ctx context.Context, model, prompt, imgB64 string) (*types.DetectionResult, error) {
	f.model, f.prompt, f.imgB64 = model, prompt, imgB64
	return f.result, f.err
}

func TestSuggest(t *testing.T) {
	fc := &fakeClient{result: &types.DetectionResult{
		Objects: []types.Detection{
			{Label: " Cat ", Confidence: 0.6, Box: types.NormBox{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}},
			{Label: "dog", Confidence: 0.9, Box: types.NormBox{X: 0.5, Y: 0.5, W: 0.8, H: 0.8}},
			{Label: "blur", Confidence: 0.1, Box: types.NormBox{X: 0, Y: 0, W: 1, H: 1}},
			{Label: "none", Confidence: 0.9, Box: types.NormBox{X: 0, Y: 0, W: 1, H: 1}},
		},
		Description: "pets",
		Tags:        []string{"Pets", "pets", " animals "},
	}}

	s := New(fc, Config{Model: "llava", MinConfidence: 0.5}, nil)
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	result, err := s.Suggest(context.Background(), img)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}

	if fc.model != "llava" || fc.prompt != DefaultPrompt {
		t.Errorf("Unexpected model %q or prompt", fc.model)
	}
	if _, err := base64.StdEncoding.DecodeString(fc.imgB64); err != nil {
		t.Errorf("Expected base64 image, got error %v", err)
	}

	if len(result.Annotations) != 2 {
		t.Fatalf("Expected 2 annotations, got %d", len(result.Annotations))
	}
	if result.Dropped != 2 {
		t.Errorf("Expected 2 dropped, got %d", result.Dropped)
	}

	dog := result.Annotations[0]
	if dog.ID != "s1" || dog.Label != "dog" {
		t.Errorf("Expected highest confidence first, got %+v", dog)
	}
	if dog.Box != (types.Box{100, 50, 200, 100}) {
		t.Errorf("Expected box clipped to image, got %v", dog.Box)
	}
	if dog.Metadata[MetaScore] != 0.9 || dog.Metadata[MetaClassName] != "dog" {
		t.Errorf("Unexpected metadata %v", dog.Metadata)
	}

	cat := result.Annotations[1]
	if cat.Label != "cat" || cat.Box != (types.Box{20, 20, 80, 60}) {
		t.Errorf("Unexpected cat annotation %+v", cat)
	}

	if len(result.Tags) != 2 || result.Tags[0] != "pets" || result.Tags[1] != "animals" {
		t.Errorf("Unexpected tags %v", result.Tags)
	}
}

func TestSuggestMaxObjects(t *testing.T) {
	objs := make([]types.Detection, 5)
	for i := range objs {
		objs[i] = types.Detection{Label: "box", Confidence: 0.5, Box: types.NormBox{W: 0.1, H: 0.1}}
	}
	s := New(&fakeClient{result: &types.DetectionResult{Objects: objs}}, Config{MaxObjects: 3}, nil)

	result, err := s.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(result.Annotations) != 3 || result.Dropped != 2 {
		t.Errorf("Expected 3 kept and 2 dropped, got %d and %d", len(result.Annotations), result.Dropped)
	}
}

func TestSuggestErrors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))

	if _, err := New(nil, Config{}, nil).Suggest(context.Background(), img); !errors.Is(err, ErrNoClient) {
		t.Errorf("Expected ErrNoClient, got %v", err)
	}

	boom := errors.New("boom")
	_, err := New(&fakeClient{err: boom}, Config{}, nil).Suggest(context.Background(), img)
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped client error, got %v", err)
	}

	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := New(&fakeClient{}, Config{}, nil).Suggest(context.Background(), empty); err == nil {
		t.Error("Expected error for empty image")
	}
}

func TestTestVision(t *testing.T) {
	fc := &fakeClient{}
	got, err := New(fc, Config{}, nil).TestVision(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil || got != "a test image" {
		t.Errorf("Unexpected response %q, %v", got, err)
	}
	if fc.prompt != SimpleTestPrompt {
		t.Errorf("Expected simple test prompt, got %q", fc.prompt)
	}
}

func TestNormalizeBox(t *testing.T) {
	got := normalizeBox(types.NormBox{X: -0.2, Y: 0.9, W: 0.5, H: 0.5})
	if got.X != 0 || got.Y != 0.9 || got.W != 0.5 || got.H < 0.0999 || got.H > 0.1001 {
		t.Errorf("Unexpected normalized box %+v", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := New(&fakeClient{}, Config{}, nil).Config()
	if cfg.Model != "minicpm-v" || cfg.MaxDim != 1024 || cfg.IDPrefix != "s" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestNewClient(t *testing.T) {
	for _, backend := range []string{BackendOllama, BackendLlamaCpp, BackendSaliency} {
		c, err := NewClient(backend, "", nil)
		if err != nil || c == nil {
			t.Errorf("NewClient(%s) failed: %v", backend, err)
		}
	}
	if _, err := NewClient("openai", "", nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
