// Package lbph implements a Local Binary Patterns Histograms face matcher.
//
// Every training face is reduced to a spatial histogram of its circular
// local binary patterns; a probe is labelled after its nearest training
// sample under the chi-square distance. Lower distances mean closer matches,
// so the value returned as "confidence" is really a dissimilarity.
package lbph

import (
	"errors"
	"fmt"
	"image"
	"math"
)

const (
	DefaultRadius    = 1
	DefaultNeighbors = 8
	DefaultGridX     = 8
	DefaultGridY     = 8

	// UnknownLabel is returned by Predict when the model has no samples.
	UnknownLabel = -1

	epsilon = 2.220446049250313e-16
)

var (
	ErrEmptyTrainingSet = errors.New("lbph: empty training set")
	ErrLabelMismatch    = errors.New("lbph: faces and labels differ in length")
	ErrShapeMismatch    = errors.New("lbph: histogram size does not match model")
)

// Model holds the trained histograms.
type Model struct {
	Radius    int      `yaml:"radius"`
	Neighbors int      `yaml:"neighbors"`
	GridX     int      `yaml:"grid_x"`
	GridY     int      `yaml:"grid_y"`
	Samples   []Sample `yaml:"samples"`
}

// Sample is one training face.
type Sample struct {
	Label     int       `yaml:"label"`
	Histogram []float32 `yaml:"histogram,flow"`
}

// Prediction is the nearest sample found for a probe face.
type Prediction struct {
	Label    int
	Distance float64
}

// New returns an untrained model with the classic 1/8/8x8 configuration.
func New() *Model {
	return &Model{
		Radius:    DefaultRadius,
		Neighbors: DefaultNeighbors,
		GridX:     DefaultGridX,
		GridY:     DefaultGridY,
	}
}

// Train replaces the model samples with histograms computed from faces.
func (m *Model) Train(faces []*image.Gray, labels []int) error {
	m.Samples = nil
	return m.Update(faces, labels)
}

// Update appends samples without discarding the existing ones.
func (m *Model) Update(faces []*image.Gray, labels []int) error {
	if len(faces) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(faces) != len(labels) {
		return fmt.Errorf("%w: %d faces, %d labels", ErrLabelMismatch, len(faces), len(labels))
	}
	for i, face := range faces {
		m.Samples = append(m.Samples, Sample{Label: labels[i], Histogram: m.Histogram(face)})
	}
	return nil
}

// Predict returns the label of the closest sample. An untrained model yields
// UnknownLabel at +Inf distance.
func (m *Model) Predict(face *image.Gray) Prediction {
	query := m.Histogram(face)
	best := Prediction{Label: UnknownLabel, Distance: math.Inf(1)}
	for _, s := range m.Samples {
		if len(s.Histogram) != len(query) {
			continue
		}
		if d := chiSquare(s.Histogram, query); d < best.Distance {
			best = Prediction{Label: s.Label, Distance: d}
		}
	}
	return best
}

// Labels lists the distinct labels the model was trained on, in first-seen order.
func (m *Model) Labels() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, s := range m.Samples {
		if _, ok := seen[s.Label]; !ok {
			seen[s.Label] = struct{}{}
			out = append(out, s.Label)
		}
	}
	return out
}

func (m *Model) validate() error {
	if m.Radius <= 0 || m.Neighbors <= 0 || m.Neighbors > 16 || m.GridX <= 0 || m.GridY <= 0 {
		return fmt.Errorf("lbph: invalid parameters radius=%d neighbors=%d grid=%dx%d", m.Radius, m.Neighbors, m.GridX, m.GridY)
	}
	want := m.GridX * m.GridY * (1 << m.Neighbors)
	for i, s := range m.Samples {
		if len(s.Histogram) != want {
			return fmt.Errorf("%w: sample %d has %d bins, want %d", ErrShapeMismatch, i, len(s.Histogram), want)
		}
	}
	return nil
}

// Histogram computes the concatenated, per-cell normalised LBP histogram of face.
func (m *Model) Histogram(face *image.Gray) []float32 {
	codes, w, h := m.patterns(face)
	bins := 1 << m.Neighbors
	out := make([]float32, m.GridX*m.GridY*bins)

	cellW, cellH := w/m.GridX, h/m.GridY
	if cellW == 0 || cellH == 0 {
		return out
	}
	total := float32(cellW * cellH)
	for gy := 0; gy < m.GridY; gy++ {
		for gx := 0; gx < m.GridX; gx++ {
			hist := out[(gy*m.GridX+gx)*bins : (gy*m.GridX+gx+1)*bins]
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				row := codes[y*w : (y+1)*w]
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					hist[row[x]]++
				}
			}
			for i := range hist {
				hist[i] /= total
			}
		}
	}
	return out
}

// patterns computes the extended (circular, bilinearly interpolated) LBP
// code of every interior pixel. The result is (w-2r) x (h-2r).
func (m *Model) patterns(face *image.Gray) ([]uint32, int, int) {
	b := face.Bounds()
	r := m.Radius
	w, h := b.Dx()-2*r, b.Dy()-2*r
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}
	at := func(x, y int) float64 {
		return float64(face.Pix[face.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}

	codes := make([]uint32, w*h)
	for n := 0; n < m.Neighbors; n++ {
		angle := 2 * math.Pi * float64(n) / float64(m.Neighbors)
		sx := float64(r) * math.Cos(angle)
		sy := -float64(r) * math.Sin(angle)

		fx, fy := int(math.Floor(sx)), int(math.Floor(sy))
		cx, cy := int(math.Ceil(sx)), int(math.Ceil(sy))
		tx, ty := sx-float64(fx), sy-float64(fy)
		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		for y := r; y < b.Dy()-r; y++ {
			for x := r; x < b.Dx()-r; x++ {
				t := w1*at(x+fx, y+fy) + w2*at(x+cx, y+fy) + w3*at(x+fx, y+cy) + w4*at(x+cx, y+cy)
				c := at(x, y)
				if t > c || math.Abs(t-c) < epsilon {
					codes[(y-r)*w+(x-r)] |= 1 << n
				}
			}
		}
	}
	return codes, w, h
}

// chiSquare is the symmetric chi-square distance 2*(a-b)^2/(a+b).
func chiSquare(a, b []float32) float64 {
	var sum float64
	for i := range a {
		s := float64(a[i]) + float64(b[i])
		if math.Abs(s) > epsilon {
			d := float64(a[i]) - float64(b[i])
			sum += 2 * d * d / s
		}
	}
	return sum
}
