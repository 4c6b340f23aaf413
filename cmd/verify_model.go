package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/face-attendance/internal/config"
	"github.com/example/face-attendance/internal/training"
)

var verifyModelCmd = &cobra.Command{
	Use:   "verify-model",
	Short: "Check that the trained model and label map are present",
	RunE:  runVerifyModel,
}

func init() {
	rootCmd.AddCommand(verifyModelCmd)
}

func runVerifyModel(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	v, err := training.Verify(cfg.Model.ModelPath, cfg.Model.LabelsPath)
	if err != nil {
		return err
	}
	if !v.Ready() {
		fmt.Println("Model or name mappings are missing. Retrain the model.")
		return errors.New("model artifacts missing")
	}

	fmt.Println("Model and name mappings are present.")
	fmt.Printf("Samples: %d\n", v.Samples)
	fmt.Printf("Trained labels: %v\n", v.TrainedLabels)
	fmt.Printf("Known names: %s\n", strings.Join(v.Names, ", "))
	return nil
}
