package lbph

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrModelNotFound = errors.New("lbph: model file not found")

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, err
	}
	m := New()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("lbph: decode %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the model as YAML, replacing any previous file atomically.
func (m *Model) Save(path string) error {
	if err := m.validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("lbph: encode model: %w", err)
	}
	return writeAtomic(path, data)
}

// LabelMap maps a trained label to the person it stands for.
type LabelMap map[int]string

// Name returns the name registered for label.
func (l LabelMap) Name(label int) (string, bool) {
	name, ok := l[label]
	return name, ok
}

// Sorted returns the labels in ascending order.
func (l LabelMap) Sorted() []int {
	ids := make([]int, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// LoadLabels reads the label map. A missing file is created empty so a fresh
// deployment can start before anyone is enrolled.
func LoadLabels(path string) (LabelMap, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		labels := LabelMap{}
		if err := SaveLabels(path, labels); err != nil {
			return nil, err
		}
		return labels, nil
	}
	if err != nil {
		return nil, err
	}

	labels := LabelMap{}
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("lbph: decode labels %s: %w", path, err)
	}
	return labels, nil
}

// SaveLabels writes the label map as YAML.
func SaveLabels(path string, labels LabelMap) error {
	if labels == nil {
		labels = LabelMap{}
	}
	data, err := yaml.Marshal(labels)
	if err != nil {
		return fmt.Errorf("lbph: encode labels: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
