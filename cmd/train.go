package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/face-attendance/internal/detector"
	"github.com/example/face-attendance/internal/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the face model from the enrolment dataset",
	Long: `Train the LBPH model from a dataset directory laid out as
dataset/<Name>/*.jpg. Each person directory becomes one label, numbered from
0 in name order, and the label map is written next to the model.

Examples:
  # Train from ./dataset into ./models
  face-attendance train

  # Use a different dataset
  face-attendance train --dataset /srv/enrolment`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("dataset", "", "Dataset directory (default DATASET_PATH)")
	trainCmd.Flags().String("model", "", "Output model path (default MODEL_PATH)")
	trainCmd.Flags().String("labels", "", "Output label map path (default LABELS_PATH)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	dataset := flagOr(cmd, "dataset", cfg.Model.DatasetPath)
	modelPath := flagOr(cmd, "model", cfg.Model.ModelPath)
	labelsPath := flagOr(cmd, "labels", cfg.Model.LabelsPath)

	det, err := detector.LoadPigo(cfg.Model.CascadePath, trainingDetectorParams(cfg.Detection))
	if err != nil {
		return err
	}

	fmt.Printf("Processing dataset: %s\n", dataset)
	report, err := training.NewTrainer(det, logger, os.Stderr).Run(cmd.Context(), dataset, modelPath, labelsPath)
	if report != nil {
		fmt.Printf("\nImages: %d, faces: %d, skipped: %d\n", report.Images, report.Faces, len(report.Skipped))
	}
	if err != nil {
		return err
	}

	for _, id := range report.Labels.Sorted() {
		fmt.Printf("  %d: %s\n", id, report.Labels[id])
	}
	fmt.Printf("Model saved to %s\n", modelPath)
	fmt.Printf("Name mappings saved to %s\n", labelsPath)
	return nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if value, _ := cmd.Flags().GetString(name); value != "" {
		return value
	}
	return fallback
}
