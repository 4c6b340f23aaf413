package training

import (
	"errors"
	"io/fs"
	"os"

	"github.com/example/face-attendance/internal/lbph"
)

// Verification reports whether the serving artifacts are in place.
type Verification struct {
	ModelPresent  bool
	LabelsPresent bool
	Samples       int
	// TrainedLabels lists the labels that have at least one sample.
	TrainedLabels []int
	Names         []string
}

// Ready reports whether both artifacts exist.
func (v *Verification) Ready() bool {
	return v.ModelPresent && v.LabelsPresent
}

// Verify inspects the model and label files without creating them.
func Verify(modelPath, labelsPath string) (*Verification, error) {
	v := &Verification{}

	var err error
	if v.ModelPresent, err = exists(modelPath); err != nil {
		return nil, err
	}
	if v.LabelsPresent, err = exists(labelsPath); err != nil {
		return nil, err
	}
	if !v.Ready() {
		return v, nil
	}

	model, err := lbph.Load(modelPath)
	if err != nil {
		return nil, err
	}
	v.Samples = len(model.Samples)
	v.TrainedLabels = model.Labels()

	labels, err := lbph.LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}
	for _, id := range labels.Sorted() {
		v.Names = append(v.Names, labels[id])
	}
	return v, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
