package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/face-attendance/internal/detector"
	"github.com/example/face-attendance/internal/imagecodec"
	"github.com/example/face-attendance/internal/lbph"
	"github.com/example/face-attendance/internal/logging"
	"github.com/example/face-attendance/internal/repository"
)

const (
	// DefaultThreshold is the largest LBPH distance accepted as a match.
	DefaultThreshold = 150.0
	// UnknownName is recorded when a label has no entry in the label map.
	UnknownName = "Unknown"

	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	ErrNoImage        = errors.New("no image provided")
	ErrInvalidImage   = errors.New("invalid image file")
	ErrNoFaces        = errors.New("no faces detected")
	ErrNotRecognized  = errors.New("face not recognized")
	ErrUnknownSession = errors.New("unknown session")
	ErrResultNotFound = errors.New("recognition result not found")
)

// Matcher labels a cropped grayscale face. *lbph.Model implements it.
type Matcher interface {
	Predict(face *image.Gray) lbph.Prediction
}

// Repository defines the persistence operations needed by the service.
type Repository interface {
	GetSession(ctx context.Context, id uint) (*repository.ClassSession, error)
	RecordAttendance(ctx context.Context, record *repository.Attendance) error
	LogError(ctx context.Context, entry *repository.ErrorLog) error
	SaveRecognition(ctx context.Context, log *repository.RecognitionLog) error
	FindRecognition(ctx context.Context, requestID string) (*repository.RecognitionLog, error)
	AggregateRecognitions(ctx context.Context) (*repository.RecognitionAggregation, error)
}

// Request is one captured frame submitted for attendance.
type Request struct {
	Image     []byte
	SessionID *uint
}

// Outcome describes what happened to a recognition request. It is cached and
// served back by GetResult.
type Outcome struct {
	RequestID    string    `json:"request_id"`
	Status       string    `json:"status"`
	Outcome      string    `json:"outcome"`
	StudentID    *int      `json:"student_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	Confidence   float64   `json:"confidence"`
	FaceCount    int       `json:"face_count"`
	SessionID    *uint     `json:"session_id,omitempty"`
	ProcessingMs int64     `json:"processing_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Options tune a Service. Zero values select the defaults.
type Options struct {
	Threshold float64
	ResultTTL time.Duration
}

// Service runs the decode, detect, match, threshold and persist pipeline.
type Service struct {
	detector  detector.Detector
	matcher   Matcher
	labels    lbph.LabelMap
	repo      Repository
	cache     Cache
	logger    *zap.Logger
	threshold float64
	resultTTL time.Duration
	now       func() time.Time
}

// NewService constructs a new service instance. A nil cache disables result caching.
func NewService(det detector.Detector, matcher Matcher, labels lbph.LabelMap, repo Repository, cache Cache, logger *zap.Logger, opts Options) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	if labels == nil {
		labels = lbph.LabelMap{}
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 5 * time.Minute
	}
	return &Service{
		detector:  det,
		matcher:   matcher,
		labels:    labels,
		repo:      repo,
		cache:     cache,
		logger:    logger.Named("recognition"),
		threshold: opts.Threshold,
		resultTTL: opts.ResultTTL,
		now:       time.Now,
	}
}

// Recognize runs one frame through the pipeline. The returned Outcome is
// non-nil whenever a request id was assigned, including for the sentinel
// errors, so callers can always report the request id.
func (s *Service) Recognize(ctx context.Context, req Request) (*Outcome, error) {
	start := s.now()
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(s.logger, "recognition.recognize", requestID)

	out := &Outcome{
		RequestID: requestID,
		Status:    StatusError,
		SessionID: req.SessionID,
		CreatedAt: start.UTC(),
	}

	if len(req.Image) == 0 {
		opLogger.Warn("no image provided")
		return s.finish(ctx, opLogger, out, start, repository.OutcomeInvalidImage, ErrNoImage)
	}

	if req.SessionID != nil {
		if _, err := s.repo.GetSession(ctx, *req.SessionID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				opLogger.Warn("unknown session", zap.Uint("session_id", *req.SessionID))
				return s.finish(ctx, opLogger, out, start, repository.OutcomeFailed, ErrUnknownSession)
			}
			wrapped := logging.NewOperationError("recognition.load_session", requestID, err)
			opLogger.Error("failed to load session", zap.Error(wrapped))
			return s.finish(ctx, opLogger, out, start, repository.OutcomeFailed, wrapped)
		}
	}

	decodeStart := s.now()
	img, err := imagecodec.Decode(req.Image)
	if err != nil {
		opLogger.Warn("invalid image file received", zap.Error(err), zap.Int("bytes", len(req.Image)))
		return s.finish(ctx, opLogger, out, start, repository.OutcomeInvalidImage, ErrInvalidImage)
	}
	gray := imagecodec.ToGray(img)
	decodeTime := s.now().Sub(decodeStart)

	detectStart := s.now()
	faces := s.detector.Detect(gray)
	detectTime := s.now().Sub(detectStart)
	out.FaceCount = len(faces)
	opLogger.Info("detected faces",
		zap.Int("count", len(faces)),
		zap.Any("boxes", faces),
		zap.Duration("decode", decodeTime),
		zap.Duration("detect", detectTime),
	)

	if len(faces) == 0 {
		opLogger.Warn("no faces detected")
		return s.finish(ctx, opLogger, out, start, repository.OutcomeNoFace, ErrNoFaces)
	}

	best := math.Inf(1)
	for i, box := range faces {
		pred := s.matcher.Predict(imagecodec.Crop(gray, box))
		opLogger.Info("predicted identity",
			zap.Int("face", i),
			zap.Int("label", pred.Label),
			zap.Float64("confidence", pred.Distance),
		)
		if pred.Distance < best {
			best = pred.Distance
		}
		if pred.Label == lbph.UnknownLabel || pred.Distance >= s.threshold {
			continue
		}

		label := pred.Label
		name, ok := s.labels.Name(label)
		if !ok {
			name = UnknownName
		}
		out.StudentID = &label
		out.Name = name
		out.Confidence = pred.Distance

		record := &repository.Attendance{
			StudentID:  label,
			SessionID:  req.SessionID,
			Name:       name,
			Confidence: pred.Distance,
			Status:     repository.StatusPresent,
			RequestID:  requestID,
			RecordedAt: s.now().UTC(),
		}
		if err := s.repo.RecordAttendance(ctx, record); err != nil {
			wrapped := logging.NewOperationError("recognition.record_attendance", requestID, err)
			opLogger.Error("failed to record attendance", zap.Error(wrapped))
			s.logError(ctx, opLogger, requestID, &label, wrapped)
			return s.finish(ctx, opLogger, out, start, repository.OutcomeFailed, wrapped)
		}

		opLogger.Info("attendance logged", zap.String("name", name), zap.Int("student_id", label))
		out.Status = StatusSuccess
		return s.finish(ctx, opLogger, out, start, repository.OutcomeRecognized, nil)
	}

	if !math.IsInf(best, 1) {
		out.Confidence = best
	}
	opLogger.Warn("face not recognized", zap.Float64("best_confidence", out.Confidence), zap.Float64("threshold", s.threshold))
	return s.finish(ctx, opLogger, out, start, repository.OutcomeUnrecognized, ErrNotRecognized)
}

// finish writes the audit row and caches the outcome. Neither failure changes
// the result handed back to the caller.
func (s *Service) finish(ctx context.Context, opLogger *zap.Logger, out *Outcome, start time.Time, outcome string, resultErr error) (*Outcome, error) {
	out.Outcome = outcome
	out.ProcessingMs = s.now().Sub(start).Milliseconds()

	audit := &repository.RecognitionLog{
		RequestID:    out.RequestID,
		Outcome:      outcome,
		FaceCount:    out.FaceCount,
		Label:        out.StudentID,
		Name:         out.Name,
		Confidence:   out.Confidence,
		SessionID:    out.SessionID,
		ProcessingMs: out.ProcessingMs,
		CreatedAt:    out.CreatedAt,
	}
	if err := s.repo.SaveRecognition(ctx, audit); err != nil {
		opLogger.Warn("failed to persist recognition log", zap.Error(logging.NewOperationError("recognition.save_log", out.RequestID, err)))
	}

	if serialized, err := json.Marshal(out); err != nil {
		opLogger.Warn("failed to serialize recognition outcome", zap.Error(err))
	} else if err := s.cache.Set(ctx, resultKey(out.RequestID), string(serialized), s.resultTTL); err != nil {
		opLogger.Warn("failed to cache recognition outcome", zap.Error(logging.NewOperationError("cache.set.result", out.RequestID, err)))
	}

	return out, resultErr
}

func (s *Service) logError(ctx context.Context, opLogger *zap.Logger, requestID string, studentID *int, cause error) {
	entry := &repository.ErrorLog{
		StudentID: studentID,
		RequestID: requestID,
		Operation: logging.OperationOf(cause),
		Message:   cause.Error(),
	}
	if err := s.repo.LogError(ctx, entry); err != nil {
		opLogger.Error("failed to write error log", zap.Error(err))
	}
}

// GetResult retrieves a cached recognition outcome or loads it from the audit trail.
func (s *Service) GetResult(ctx context.Context, requestID string) (*Outcome, error) {
	opLogger := logging.WithOperation(s.logger, "recognition.get_result", requestID)

	cached, err := s.cache.Get(ctx, resultKey(requestID))
	switch {
	case err == nil:
		var out Outcome
		decodeErr := json.Unmarshal([]byte(cached), &out)
		if decodeErr == nil {
			return &out, nil
		}
		opLogger.Warn("failed to decode cached result", zap.Error(decodeErr))
	case !errors.Is(err, redis.Nil):
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	log, err := s.repo.FindRecognition(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, logging.NewOperationError("recognition.find_log", requestID, err)
	}
	return outcomeFromLog(log), nil
}

func outcomeFromLog(log *repository.RecognitionLog) *Outcome {
	status := StatusError
	if log.Outcome == repository.OutcomeRecognized {
		status = StatusSuccess
	}
	return &Outcome{
		RequestID:    log.RequestID,
		Status:       status,
		Outcome:      log.Outcome,
		StudentID:    log.Label,
		Name:         log.Name,
		Confidence:   log.Confidence,
		FaceCount:    log.FaceCount,
		SessionID:    log.SessionID,
		ProcessingMs: log.ProcessingMs,
		CreatedAt:    log.CreatedAt,
	}
}
