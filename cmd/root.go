package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/face-attendance/internal/config"
	"github.com/example/face-attendance/internal/detector"
	"github.com/example/face-attendance/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance tracker",
	Long: `face-attendance marks students present from webcam captures.

A captured frame is decoded, faces are located with a pixel-intensity
cascade, each face is matched against an LBPH model trained on enrolment
photos and the first confident match is written to the attendance table.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

// trainingDetectorParams searches down to TrainMinSize so small faces in
// enrolment photos still become training samples.
func trainingDetectorParams(cfg config.DetectionConfig) detector.Params {
	params := detectorParams(cfg)
	if cfg.TrainMinSize > 0 {
		params.MinSize = cfg.TrainMinSize
	}
	return params
}

func detectorParams(cfg config.DetectionConfig) detector.Params {
	return detector.Params{
		MinSize:      cfg.MinSize,
		MaxSize:      cfg.MaxSize,
		ShiftFactor:  cfg.ShiftFactor,
		ScaleFactor:  cfg.ScaleFactor,
		IoUThreshold: cfg.IoUThreshold,
		MinQuality:   cfg.MinQuality,
	}
}
