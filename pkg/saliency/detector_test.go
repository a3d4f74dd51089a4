package saliency

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/image-annotator/pkg/imageio"
)

// createTestImage creates a dark image with a white block in the middle third
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	d := New(nil)
	if d == nil {
		t.Fatal("New() returned nil")
	}
	if d.config.EdgeThreshold != 0.01 {
		t.Errorf("Expected edge threshold 0.01, got %f", d.config.EdgeThreshold)
	}
	if d.config.MaxRegions != 10 {
		t.Errorf("Expected 10 max regions, got %d", d.config.MaxRegions)
	}
}

func TestRegionGeometry(t *testing.T) {
	r := Region{X: 10, Y: 20, Width: 100, Height: 80}

	if cx, cy := r.Center(); cx != 60 || cy != 60 {
		t.Errorf("Expected center (60, 60), got (%d, %d)", cx, cy)
	}
	if r.Area() != 8000 {
		t.Errorf("Expected area 8000, got %d", r.Area())
	}
	if b := r.Box(); b[0] != 10 || b[1] != 20 || b[2] != 110 || b[3] != 100 {
		t.Errorf("Unexpected box %v", b)
	}

	if got := r.iou(r); got != 1 {
		t.Errorf("Expected IoU 1 with itself, got %f", got)
	}
	if got := r.iou(Region{X: 200, Y: 200, Width: 10, Height: 10}); got != 0 {
		t.Errorf("Expected IoU 0 for disjoint regions, got %f", got)
	}
}

func TestDetectSubjects(t *testing.T) {
	d := New(nil)
	regions, err := d.DetectSubjects(createTestImage(400, 300))
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("Expected to detect at least one region")
	}

	cx, cy := regions[0].Center()
	if cx <= 133 || cx >= 266 || cy <= 100 || cy >= 200 {
		t.Errorf("Expected best region centered on the white block, got center (%d, %d)", cx, cy)
	}

	for i, r := range regions {
		if r.Width <= 0 || r.Height <= 0 {
			t.Errorf("Region %d has invalid dimensions: %dx%d", i, r.Width, r.Height)
		}
		if r.X < 0 || r.Y < 0 || r.X+r.Width > 400 || r.Y+r.Height > 300 {
			t.Errorf("Region %d outside image: %+v", i, r)
		}
		if i > 0 && r.Score > regions[i-1].Score {
			t.Errorf("Regions not sorted by score at %d", i)
		}
		for j := 0; j < i; j++ {
			if r.iou(regions[j]) > d.config.Overlap {
				t.Errorf("Regions %d and %d overlap", j, i)
			}
		}
	}
}

func TestDetectSubjectsEmpty(t *testing.T) {
	if _, err := New(nil).DetectSubjects(image.NewRGBA(image.Rect(0, 0, 0, 0))); err != ErrEmptyImage {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
}

func TestSaliencyMap(t *testing.T) {
	sal := New(nil).saliencyMap(createTestImage(100, 100))
	if len(sal) != 100 || len(sal[0]) != 100 {
		t.Fatalf("Expected 100x100 map, got %dx%d", len(sal[0]), len(sal))
	}
	if sal[50][50] <= sal[10][10] {
		t.Errorf("Expected the white block to be more salient than the background")
	}
	if sal[0][0] != 0 {
		t.Errorf("Expected border pixels to stay zero, got %f", sal[0][0])
	}
}

func TestIntegrate(t *testing.T) {
	sums := integrate([][]float64{{1, 2}, {3, 4}})
	if sums[2][2] != 10 {
		t.Errorf("Expected total 10, got %f", sums[2][2])
	}
	if got := windowMean(sums, 1, 0, 1, 2); got != 3 {
		t.Errorf("Expected mean 3, got %f", got)
	}
}

func TestDetectObjects(t *testing.T) {
	b64, err := imageio.EncodeBase64(createTestImage(400, 300), "png", 0, 90)
	if err != nil {
		t.Fatal(err)
	}

	d := New(nil)
	result, err := d.DetectObjects(context.Background(), "", "", b64)
	if err != nil {
		t.Fatalf("DetectObjects failed: %v", err)
	}
	if len(result.Objects) == 0 {
		t.Fatal("Expected at least one object")
	}

	top := result.Objects[0]
	if top.Label != Label || top.Confidence != 1 {
		t.Errorf("Unexpected top object %+v", top)
	}
	for i, o := range result.Objects {
		if o.Box.X < 0 || o.Box.Y < 0 || o.Box.X+o.Box.W > 1.0001 || o.Box.Y+o.Box.H > 1.0001 {
			t.Errorf("Object %d box not normalized: %+v", i, o.Box)
		}
		if o.Confidence <= 0 || o.Confidence > 1 {
			t.Errorf("Object %d confidence out of range: %f", i, o.Confidence)
		}
	}
	if len(result.Tags) != 1 || result.Tags[0] != "saliency" {
		t.Errorf("Unexpected tags %v", result.Tags)
	}
}

func TestDetectObjectsErrors(t *testing.T) {
	d := New(nil)
	if _, err := d.DetectObjects(context.Background(), "", "", "!!"); err == nil {
		t.Error("Expected error for invalid base64")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.DetectObjects(ctx, "", "", ""); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestSimpleQuery(t *testing.T) {
	d := New(nil)
	if got, err := d.SimpleQuery(context.Background(), "", "", ""); err != nil || got == "" {
		t.Errorf("Expected ready message, got %q (%v)", got, err)
	}

	b64, err := imageio.EncodeBase64(createTestImage(120, 90), "png", 0, 90)
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.SimpleQuery(context.Background(), "", "", b64)
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if got[:13] != "Image 120x90 " {
		t.Errorf("Unexpected answer %q", got)
	}
}

func BenchmarkDetectSubjects(b *testing.B) {
	d := New(nil)
	img := createTestImage(1024, 768)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.DetectSubjects(img)
	}
}
