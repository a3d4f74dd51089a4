package export

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/types"
)

func TestCrops(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	anns := []types.Annotation{
		{ID: "a", Box: types.Box{10, 20, 60, 70}},
		{ID: "b", Box: types.Box{150, 50, 400, 300}},
		{ID: "c", Box: types.Box{300, 300, 400, 400}},
	}

	crops := Crops(img, anns, 0)
	if len(crops) != 2 {
		t.Fatalf("Expected 2 crops, got %d", len(crops))
	}
	if got := crops[0].Image.Bounds(); got.Dx() != 50 || got.Dy() != 50 {
		t.Errorf("Expected 50x50 crop, got %v", got)
	}
	if crops[1].Rect != image.Rect(150, 50, 200, 100) {
		t.Errorf("Expected crop clipped to image, got %v", crops[1].Rect)
	}
}

func TestCropsPadding(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	crops := Crops(img, []types.Annotation{{ID: "a", Box: types.Box{50, 50, 150, 100}}}, 0.1)

	if crops[0].Rect != image.Rect(40, 45, 160, 105) {
		t.Errorf("Unexpected padded rect %v", crops[0].Rect)
	}
}

func TestSaveCrops(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crops")
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	anns := []types.Annotation{
		{ID: "1", Label: "cat/dog", Box: types.Box{0, 0, 50, 50}},
		{ID: "2", Label: "tiny", Box: types.Box{60, 60, 62, 62}},
	}

	opts := DefaultOptions()
	opts.Format = "png"
	opts.MinSize = 5
	results, err := SaveCrops(img, anns, "/images/photo.jpg", dir, opts)
	if err != nil {
		t.Fatalf("SaveCrops failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 saved crop, got %d", len(results))
	}
	want := filepath.Join(dir, "photo_cat_dog_1.png")
	if results[0].Path != want {
		t.Errorf("Expected %s, got %s", want, results[0].Path)
	}
	if !utils.FileExists(want) {
		t.Error("Crop file not written")
	}
}

func TestSaveOverlay(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	anns := []types.Annotation{{ID: "1", Label: "cat", Box: types.Box{8, 8, 40, 40}}}

	opts := DefaultOptions()
	opts.Format = "png"
	path, err := SaveOverlay(img, anns, style.Default(), "https://host/pic.webp", dir, "_annotated", opts)
	if err != nil {
		t.Fatalf("SaveOverlay failed: %v", err)
	}
	if want := filepath.Join(dir, "pic_annotated.png"); path != want {
		t.Errorf("Expected %s, got %s", want, path)
	}
	if !utils.FileExists(path) {
		t.Error("Overlay file not written")
	}
}

func TestParseAspect(t *testing.T) {
	tests := map[string]float64{
		"":       0,
		"free":   0,
		"square": 1,
		"16:9":   16.0 / 9.0,
		"Story":  9.0 / 16.0,
		"1.5":    1.5,
	}
	for in, want := range tests {
		got, err := ParseAspect(in)
		if err != nil {
			t.Errorf("ParseAspect(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAspect(%q) = %f, want %f", in, got, want)
		}
	}

	for _, bad := range []string{"wide", "0:1", "-2", "a:b"} {
		if _, err := ParseAspect(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestCropsToAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	anns := []types.Annotation{
		{ID: "a", Box: types.Box{100, 50, 140, 150}},
		{ID: "b", Box: types.Box{0, 0, 20, 190}},
	}

	crops := CropsToAspect(img, anns, 0, Square.Ratio())
	if len(crops) != 2 {
		t.Fatalf("Expected 2 crops, got %d", len(crops))
	}
	if crops[0].Rect != image.Rect(70, 50, 170, 150) {
		t.Errorf("Expected square grown around the box, got %v", crops[0].Rect)
	}
	if crops[1].Rect != image.Rect(0, 0, 190, 190) {
		t.Errorf("Expected square shifted inside the image, got %v", crops[1].Rect)
	}

	wide := CropsToAspect(img, anns[:1], 0, 4)
	if wide[0].Rect != image.Rect(0, 50, 400, 150) {
		t.Errorf("Expected crop limited by image width, got %v", wide[0].Rect)
	}
}
