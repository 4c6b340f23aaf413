// Package training builds the LBPH model and label map from a folder of
// enrolment photos laid out as dataset/<Name>/*.jpg.
package training

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/example/face-attendance/internal/detector"
	"github.com/example/face-attendance/internal/imagecodec"
	"github.com/example/face-attendance/internal/lbph"
	"github.com/example/face-attendance/internal/logging"
)

var ErrNoTrainingFaces = errors.New("no faces found in dataset")

// Report summarises a training run.
type Report struct {
	Labels  lbph.LabelMap
	Images  int
	Faces   int
	Skipped []string
}

type imageFile struct {
	path  string
	label int
}

// Trainer turns enrolment photos into face crops and fits a model on them.
type Trainer struct {
	detector detector.Detector
	logger   *zap.Logger
	progress io.Writer
}

// NewTrainer creates a trainer. Progress is drawn on progress when it is
// non-nil.
func NewTrainer(det detector.Detector, logger *zap.Logger, progress io.Writer) *Trainer {
	if progress == nil {
		progress = io.Discard
	}
	return &Trainer{detector: det, logger: logger.Named("training"), progress: progress}
}

// Train walks datasetDir and returns the fitted model. Every subdirectory is
// one person; labels are assigned from 0 in lexical order of the names.
func (t *Trainer) Train(ctx context.Context, datasetDir string) (*lbph.Model, *Report, error) {
	labels, files, err := scanDataset(datasetDir)
	if err != nil {
		return nil, nil, logging.NewOperationError("training.scan", "", err)
	}

	report := &Report{Labels: labels}
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(t.progress),
		progressbar.OptionSetDescription("Extracting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	var (
		faces     []*image.Gray
		faceLabel []int
	)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		crops, err := t.extract(file.path)
		_ = bar.Add(1)
		if err != nil {
			t.logger.Warn("skipping unreadable image", zap.String("path", file.path), zap.Error(err))
			report.Skipped = append(report.Skipped, file.path)
			continue
		}
		report.Images++
		if len(crops) == 0 {
			t.logger.Debug("no face found", zap.String("path", file.path))
		}
		for _, crop := range crops {
			faces = append(faces, crop)
			faceLabel = append(faceLabel, file.label)
		}
	}
	_ = bar.Finish()
	report.Faces = len(faces)

	if len(faces) == 0 {
		return nil, report, ErrNoTrainingFaces
	}

	model := lbph.New()
	if err := model.Train(faces, faceLabel); err != nil {
		return nil, report, logging.NewOperationError("training.fit", "", err)
	}
	t.logger.Info("model trained",
		zap.Int("people", len(labels)),
		zap.Int("images", report.Images),
		zap.Int("faces", report.Faces),
		zap.Int("skipped", len(report.Skipped)),
	)
	return model, report, nil
}

// Run trains on datasetDir and writes the model and the label map.
func (t *Trainer) Run(ctx context.Context, datasetDir, modelPath, labelsPath string) (*Report, error) {
	model, report, err := t.Train(ctx, datasetDir)
	if err != nil {
		return report, err
	}
	if err := model.Save(modelPath); err != nil {
		return report, logging.NewOperationError("training.save_model", "", err)
	}
	if err := lbph.SaveLabels(labelsPath, report.Labels); err != nil {
		return report, logging.NewOperationError("training.save_labels", "", err)
	}
	t.logger.Info("artifacts written", zap.String("model", modelPath), zap.String("labels", labelsPath))
	return report, nil
}

func (t *Trainer) extract(path string) ([]*image.Gray, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	gray := imagecodec.ToGray(img)

	boxes := t.detector.Detect(gray)
	crops := make([]*image.Gray, 0, len(boxes))
	for _, box := range boxes {
		crop := imagecodec.Crop(gray, box)
		if crop.Bounds().Empty() {
			continue
		}
		crops = append(crops, crop)
	}
	return crops, nil
}

func scanDataset(root string) (lbph.LabelMap, []imageFile, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, err
	}

	var people []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			people = append(people, entry.Name())
		}
	}
	if len(people) == 0 {
		return nil, nil, fmt.Errorf("dataset %s has no person directories", root)
	}
	sort.Strings(people)

	labels := make(lbph.LabelMap, len(people))
	var files []imageFile
	for label, name := range people {
		labels[label] = name

		dir := filepath.Join(root, name)
		images, err := os.ReadDir(dir)
		if err != nil {
			return nil, nil, err
		}
		for _, img := range images {
			if img.IsDir() || !isImage(img.Name()) {
				continue
			}
			files = append(files, imageFile{path: filepath.Join(dir, img.Name()), label: label})
		}
	}
	return labels, files, nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
