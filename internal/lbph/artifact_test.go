package lbph

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "face_model.yml")

	m := New()
	faces := []*image.Gray{noiseFace(1, 40, 0), wavesFace(40)}
	if err := m.Train(faces, []int{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(loaded.Samples))
	}
	p := loaded.Predict(faces[1])
	if p.Label != 1 || p.Distance != 0 {
		t.Fatalf("prediction after reload = %+v", p)
	}
}

func TestLoadMissingModel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "face_model.yml"))
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestLoadRejectsWrongShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face_model.yml")
	content := "radius: 1\nneighbors: 8\ngrid_x: 8\ngrid_y: 8\nsamples:\n  - label: 0\n    histogram: [0.5, 0.5]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestLoadLabelsCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yml")

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 0 {
		t.Fatalf("expected empty labels, got %v", labels)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected labels file to be created: %v", err)
	}
}

func TestSaveAndLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yml")
	if err := SaveLabels(path, LabelMap{0: "Rohan", 2: "Mira"}); err != nil {
		t.Fatal(err)
	}

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatal(err)
	}
	if name, ok := labels.Name(2); !ok || name != "Mira" {
		t.Fatalf("Name(2) = %q, %v", name, ok)
	}
	if _, ok := labels.Name(1); ok {
		t.Fatal("expected label 1 to be unknown")
	}
	if ids := labels.Sorted(); len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("unexpected sorted labels %v", ids)
	}
}
