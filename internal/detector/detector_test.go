package detector

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
)

func TestNewPigoRejectsShortCascade(t *testing.T) {
	_, err := NewPigo([]byte("nope"), DefaultParams())
	if !errors.Is(err, ErrInvalidCascade) {
		t.Fatalf("expected ErrInvalidCascade, got %v", err)
	}
}

func TestLoadPigoMissingFile(t *testing.T) {
	_, err := LoadPigo(filepath.Join(t.TempDir(), "facefinder"), DefaultParams())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestToRectsFiltersSortsAndClips(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 200)
	dets := []pigo.Detection{
		{Row: 100, Col: 100, Scale: 100, Q: 6},
		{Row: 50, Col: 50, Scale: 40, Q: 2},   // below quality floor
		{Row: 190, Col: 20, Scale: 60, Q: 12}, // overhangs the bottom edge
	}

	rects := toRects(dets, 5.0, bounds)
	if len(rects) != 2 {
		t.Fatalf("expected 2 rects, got %d: %v", len(rects), rects)
	}
	if want := image.Rect(0, 160, 50, 200); rects[0] != want {
		t.Errorf("first rect = %v, want %v", rects[0], want)
	}
	if want := image.Rect(50, 50, 150, 150); rects[1] != want {
		t.Errorf("second rect = %v, want %v", rects[1], want)
	}
}

func TestParamsWithDefaults(t *testing.T) {
	got := Params{MinSize: 60, ScaleFactor: 0.9}.withDefaults()
	if got.MinSize != 60 {
		t.Errorf("MinSize = %d, want 60", got.MinSize)
	}
	if got.ScaleFactor != 1.1 {
		t.Errorf("ScaleFactor = %v, want 1.1", got.ScaleFactor)
	}
	if got.MaxSize != 1000 || got.ShiftFactor != 0.1 || got.IoUThreshold != 0.2 {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestRepack(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	sub := src.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)

	out := repack(sub)
	if out.Bounds() != image.Rect(0, 0, 2, 2) || out.Stride != 2 {
		t.Fatalf("unexpected layout %v stride %d", out.Bounds(), out.Stride)
	}
	if want := []uint8{5, 6, 9, 10}; string(out.Pix) != string(want) {
		t.Fatalf("unexpected pixels %v", out.Pix)
	}
}

func loadTestCascade(t *testing.T) *Pigo {
	t.Helper()

	det, err := LoadPigo(filepath.Join("testdata", "facefinder"), DefaultParams())
	if err != nil {
		t.Fatalf("failed to load cascade: %v", err)
	}
	return det
}

func TestDetectBlankFrames(t *testing.T) {
	det := loadTestCascade(t)

	for _, size := range []int{1, 50, 99, 100, 640} {
		frame := image.NewGray(image.Rect(0, 0, size, size))
		if faces := det.Detect(frame); len(faces) != 0 {
			t.Errorf("size %d: expected no faces on a blank frame, got %v", size, faces)
		}
	}
}

func TestDetectFrameSmallerThanMinSize(t *testing.T) {
	det := loadTestCascade(t)

	if faces := det.Detect(image.NewGray(image.Rect(0, 0, 80, 320))); faces != nil {
		t.Fatalf("expected nil for a frame narrower than MinSize, got %v", faces)
	}
}

func TestDetectSubImage(t *testing.T) {
	det := loadTestCascade(t)

	frame := image.NewGray(image.Rect(0, 0, 400, 300))
	for i := range frame.Pix {
		frame.Pix[i] = uint8(i % 251)
	}
	sub := frame.SubImage(image.Rect(60, 40, 360, 280)).(*image.Gray)

	for _, r := range det.Detect(sub) {
		if !r.In(image.Rect(0, 0, 300, 240)) {
			t.Fatalf("box %v lies outside the repacked frame", r)
		}
	}
}
