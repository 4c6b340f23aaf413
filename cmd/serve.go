package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/face-attendance/internal/auth"
	"github.com/example/face-attendance/internal/config"
	"github.com/example/face-attendance/internal/detector"
	"github.com/example/face-attendance/internal/grpcserver"
	"github.com/example/face-attendance/internal/handlers"
	"github.com/example/face-attendance/internal/lbph"
	"github.com/example/face-attendance/internal/recognition"
	"github.com/example/face-attendance/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognition HTTP API",
	Long: `Start the HTTP API that accepts captured frames on /real_time_recognition
and records attendance. A gRPC health endpoint is served on GRPC_ADDR.

The model and label map produced by "face-attendance train" must exist.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	warnDefaultSecret(cfg.Auth, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db) //nolint:errcheck

	repo := repository.NewAttendanceRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	var cache recognition.Cache
	if client := initRedis(ctx, cfg.Redis, logger); client != nil {
		defer client.Close()
		cache = recognition.NewRedisCache(client)
	}

	det, err := detector.LoadPigo(cfg.Model.CascadePath, detectorParams(cfg.Detection))
	if err != nil {
		return err
	}
	model, err := lbph.Load(cfg.Model.ModelPath)
	if err != nil {
		if errors.Is(err, lbph.ErrModelNotFound) {
			return fmt.Errorf("%w (run \"face-attendance train\" first)", err)
		}
		return err
	}
	labels, err := lbph.LoadLabels(cfg.Model.LabelsPath)
	if err != nil {
		return err
	}
	logger.Info("model loaded",
		zap.String("path", cfg.Model.ModelPath),
		zap.Int("samples", len(model.Samples)),
		zap.Int("people", len(labels)),
	)

	svc := recognition.NewService(det, model, labels, repo, cache, logger, recognition.Options{
		Threshold: cfg.Recognition.Threshold,
		ResultTTL: cfg.Redis.TTL,
	})

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize
	handlers.RegisterRoutes(r, svc, repo, auth.JWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience, auth.RoleAdmin))

	health, err := startHealth(cfg.GRPC, logger)
	if err != nil {
		return err
	}
	if health != nil {
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer stopCancel()
			health.Stop(stopCtx)
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("attendance API listening", zap.String("addr", cfg.HTTP.Addr))
	return serveHTTPServer(server, cfg.HTTP.ShutdownTimeout, logger)
}

// warnDefaultSecret reports whether the built-in development JWT secret is in use.
func warnDefaultSecret(cfg config.AuthConfig, logger *zap.Logger) bool {
	if cfg.JWTSecret != config.DefaultJWTSecret {
		return false
	}
	logger.Warn("JWT_SECRET is not set, admin tokens are signed with the development secret")
	return true
}

// initRedis returns nil when caching is disabled or Redis is unreachable.
func initRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("redis disabled, recognition results are served from the database")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis connection failed, continuing without cache", zap.String("addr", cfg.Addr), zap.Error(err))
		client.Close()
		return nil
	}
	return client
}

func startHealth(cfg config.GRPCConfig, logger *zap.Logger) (*grpcserver.HealthServer, error) {
	if strings.EqualFold(cfg.Addr, "off") {
		return nil, nil
	}
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}

	health := grpcserver.New(logger)
	go func() {
		if err := health.Serve(listener); err != nil {
			logger.Error("gRPC health server failed", zap.Error(err))
		}
	}()
	health.SetServing(true)
	return health, nil
}
