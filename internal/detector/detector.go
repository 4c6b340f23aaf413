package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
)

// Detector finds face regions in a grayscale frame.
type Detector interface {
	Detect(gray *image.Gray) []image.Rectangle
}

// Params mirrors the knobs of a sliding-window cascade search.
type Params struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	// MinQuality discards weak detections, the way minNeighbors does for a
	// Haar cascade.
	MinQuality float64
}

// DefaultParams returns the settings used for webcam captures: faces of at
// least 100px, 10% scale steps.
func DefaultParams() Params {
	return Params{
		MinSize:      100,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

var ErrInvalidCascade = errors.New("invalid cascade")

// Pigo is a Detector backed by a pigo pixel-intensity-comparison cascade.
type Pigo struct {
	classifier *pigo.Pigo
	params     Params
}

// LoadPigo reads a cascade file from disk.
func LoadPigo(path string, params Params) (*Pigo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade %q: %w", path, err)
	}
	return NewPigo(data, params)
}

// NewPigo unpacks a binary cascade. Pigo indexes into the packet without
// bounds checks, so truncated input is turned into ErrInvalidCascade.
func NewPigo(cascade []byte, params Params) (p *Pigo, err error) {
	if len(cascade) < 16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCascade, len(cascade))
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %v", ErrInvalidCascade, r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCascade, err)
	}
	return &Pigo{classifier: classifier, params: params.withDefaults()}, nil
}

// Detect runs the cascade over gray and returns face boxes, strongest first.
func (p *Pigo) Detect(gray *image.Gray) []image.Rectangle {
	if gray.Bounds().Min != image.Pt(0, 0) || gray.Stride != gray.Bounds().Dx() {
		gray = repack(gray)
	}
	cols, rows := gray.Bounds().Dx(), gray.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil
	}

	maxSize := p.params.MaxSize
	if limit := min(cols, rows); maxSize > limit {
		maxSize = limit
	}
	if maxSize < p.params.MinSize {
		return nil
	}

	dets := p.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     p.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: p.params.ShiftFactor,
		ScaleFactor: p.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.params.IoUThreshold)

	return toRects(dets, p.params.MinQuality, gray.Bounds())
}

func toRects(dets []pigo.Detection, minQuality float64, bounds image.Rectangle) []image.Rectangle {
	kept := make([]pigo.Detection, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) >= minQuality {
			kept = append(kept, det)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Q > kept[j].Q })

	rects := make([]image.Rectangle, 0, len(kept))
	for _, det := range kept {
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half).Intersect(bounds)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects
}

func repack(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		off := gray.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:], gray.Pix[off:off+b.Dx()])
	}
	return out
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.MinSize <= 0 {
		p.MinSize = def.MinSize
	}
	if p.MaxSize <= 0 {
		p.MaxSize = def.MaxSize
	}
	if p.ShiftFactor <= 0 {
		p.ShiftFactor = def.ShiftFactor
	}
	if p.ScaleFactor <= 1 {
		p.ScaleFactor = def.ScaleFactor
	}
	if p.IoUThreshold <= 0 {
		p.IoUThreshold = def.IoUThreshold
	}
	if p.MinQuality < 0 {
		p.MinQuality = 0
	}
	return p
}
