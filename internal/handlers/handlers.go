package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/face-attendance/internal/imagecodec"
	"github.com/example/face-attendance/internal/recognition"
	"github.com/example/face-attendance/internal/repository"
)

// MaxUploadSize bounds a single recognition request body.
const MaxUploadSize = 10 << 20

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// RecognitionService is the subset of recognition.Service used by the HTTP layer.
type RecognitionService interface {
	Recognize(ctx context.Context, req recognition.Request) (*recognition.Outcome, error)
	GetResult(ctx context.Context, requestID string) (*recognition.Outcome, error)
	MetricsSummary(ctx context.Context) (*recognition.MetricsSummary, error)
}

// AdminStore holds the enrolment and reporting operations behind /admin.
type AdminStore interface {
	CreateStudent(ctx context.Context, student *repository.Student) error
	ListStudents(ctx context.Context) ([]repository.Student, error)
	DeleteStudent(ctx context.Context, id uint) error
	CreateSession(ctx context.Context, session *repository.ClassSession) error
	ListSessions(ctx context.Context) ([]repository.ClassSession, error)
	ListAttendance(ctx context.Context, sessionID *uint, limit int) ([]repository.Attendance, error)
	ListErrors(ctx context.Context, limit int) ([]repository.ErrorLog, error)
}

type recognitionRequest struct {
	Image     string `json:"image"`
	SessionID *uint  `json:"session_id"`
}

type studentRequest struct {
	Name      string `json:"name" form:"name"`
	ImagePath string `json:"image_path" form:"image_path"`
}

type sessionRequest struct {
	Name string `json:"name" form:"name"`
	Date string `json:"date" form:"date"`
}

type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

// RegisterRoutes wires the HTTP handlers to the Gin router. The admin group is
// guarded by authMiddleware.
func RegisterRoutes(router *gin.Engine, svc RecognitionService, store AdminStore, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/real_time_recognition", func(c *gin.Context) {
		req, reqErr := readRecognitionRequest(c)
		if reqErr != nil {
			respondError(c, reqErr.status, reqErr.message, "")
			return
		}

		out, err := svc.Recognize(c.Request.Context(), req)
		requestID := ""
		if out != nil {
			requestID = out.RequestID
		}
		if err != nil {
			status, message := recognitionStatus(err)
			if status == http.StatusInternalServerError {
				_ = c.Error(err)
			}
			respondError(c, status, message, requestID)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     recognition.StatusSuccess,
			"message":    "Attendance recorded for " + out.Name,
			"name":       out.Name,
			"confidence": out.Confidence,
			"student_id": out.StudentID,
			"request_id": out.RequestID,
		})
	})

	router.GET("/recognitions/:id", func(c *gin.Context) {
		requestID := strings.TrimSpace(c.Param("id"))
		if requestID == "" {
			respondError(c, http.StatusBadRequest, "id is required", "")
			return
		}

		out, err := svc.GetResult(c.Request.Context(), requestID)
		if err != nil {
			if errors.Is(err, recognition.ErrResultNotFound) {
				respondError(c, http.StatusNotFound, "result not found", requestID)
				return
			}
			_ = c.Error(err)
			respondError(c, http.StatusInternalServerError, err.Error(), requestID)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	admin := router.Group("/admin")
	if authMiddleware != nil {
		admin.Use(authMiddleware)
	}
	registerAdminRoutes(admin, svc, store)
}

func registerAdminRoutes(admin *gin.RouterGroup, svc RecognitionService, store AdminStore) {
	admin.GET("/students", func(c *gin.Context) {
		students, err := store.ListStudents(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	})

	admin.POST("/students", func(c *gin.Context) {
		var body studentRequest
		if err := c.ShouldBind(&body); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body", "")
			return
		}
		if strings.TrimSpace(body.Name) == "" {
			respondError(c, http.StatusBadRequest, "Name is required.", "")
			return
		}

		student := &repository.Student{Name: body.Name, ImagePath: strings.TrimSpace(body.ImagePath)}
		if err := store.CreateStudent(c.Request.Context(), student); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				respondError(c, http.StatusConflict, "Student already registered.", "")
				return
			}
			internalError(c, err)
			return
		}
		c.JSON(http.StatusCreated, student)
	})

	admin.DELETE("/students/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil || id == 0 {
			respondError(c, http.StatusBadRequest, "invalid student id", "")
			return
		}
		if err := store.DeleteStudent(c.Request.Context(), uint(id)); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondError(c, http.StatusNotFound, "student not found", "")
				return
			}
			internalError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	admin.GET("/attendance", func(c *gin.Context) {
		var sessionID *uint
		if raw := strings.TrimSpace(c.Query("session_id")); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				respondError(c, http.StatusBadRequest, "invalid session_id", "")
				return
			}
			id := uint(parsed)
			sessionID = &id
		}
		limit, ok := queryLimit(c)
		if !ok {
			return
		}

		records, err := store.ListAttendance(c.Request.Context(), sessionID, limit)
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendance": records})
	})

	admin.GET("/sessions", func(c *gin.Context) {
		sessions, err := store.ListSessions(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	admin.POST("/sessions", func(c *gin.Context) {
		var body sessionRequest
		if err := c.ShouldBind(&body); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body", "")
			return
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			respondError(c, http.StatusBadRequest, "Session name is required.", "")
			return
		}
		date := time.Now().UTC()
		if raw := strings.TrimSpace(body.Date); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				respondError(c, http.StatusBadRequest, "date must be YYYY-MM-DD", "")
				return
			}
			date = parsed
		}

		session := &repository.ClassSession{Name: name, Date: date}
		if err := store.CreateSession(c.Request.Context(), session); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				respondError(c, http.StatusConflict, "Session already exists for that date.", "")
				return
			}
			internalError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	})

	admin.GET("/errors", func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}
		entries, err := store.ListErrors(c.Request.Context(), limit)
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"errors": entries})
	})

	admin.GET("/metrics", func(c *gin.Context) {
		summary, err := svc.MetricsSummary(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// readRecognitionRequest accepts either a multipart upload in the image field
// or a JSON body carrying a base64 data URL.
func readRecognitionRequest(c *gin.Context) (recognition.Request, *requestError) {
	var req recognition.Request

	if c.Request.ContentLength > MaxUploadSize {
		return req, &requestError{http.StatusRequestEntityTooLarge, "Image exceeds the upload limit."}
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	switch c.ContentType() {
	case gin.MIMEJSON:
		var body recognitionRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			if isTooLarge(err) {
				return req, &requestError{http.StatusRequestEntityTooLarge, "Image exceeds the upload limit."}
			}
			return req, &requestError{http.StatusBadRequest, "Invalid request body."}
		}
		data, err := imagecodec.DecodeDataURL(body.Image)
		if err != nil {
			if errors.Is(err, imagecodec.ErrEmptyImage) {
				return req, &requestError{http.StatusBadRequest, "No image provided."}
			}
			return req, &requestError{http.StatusBadRequest, "Invalid image file."}
		}
		req.Image = data
		req.SessionID = body.SessionID
		return req, nil

	case gin.MIMEMultipartPOSTForm:
		file, err := c.FormFile("image")
		if err != nil {
			if isTooLarge(err) {
				return req, &requestError{http.StatusRequestEntityTooLarge, "Image exceeds the upload limit."}
			}
			return req, &requestError{http.StatusBadRequest, "No image provided."}
		}
		if !allowedPartType(file) {
			return req, &requestError{http.StatusUnsupportedMediaType, "Unsupported image content type."}
		}
		data, err := readPart(file)
		if err != nil {
			return req, &requestError{http.StatusBadRequest, "Invalid image file."}
		}
		req.Image = data

		if raw := strings.TrimSpace(c.PostForm("session_id")); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return req, &requestError{http.StatusBadRequest, "Invalid session_id."}
			}
			id := uint(parsed)
			req.SessionID = &id
		}
		return req, nil
	}

	return req, &requestError{http.StatusUnsupportedMediaType, "Expected multipart/form-data or application/json."}
}

func allowedPartType(file *multipart.FileHeader) bool {
	contentType := strings.ToLower(strings.TrimSpace(file.Header.Get("Content-Type")))
	if contentType == "" {
		return true
	}
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "application/octet-stream")
}

func readPart(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func recognitionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, recognition.ErrNoImage):
		return http.StatusBadRequest, "No image provided."
	case errors.Is(err, recognition.ErrInvalidImage):
		return http.StatusBadRequest, "Invalid image file."
	case errors.Is(err, recognition.ErrNoFaces):
		return http.StatusBadRequest, "No faces detected."
	case errors.Is(err, recognition.ErrNotRecognized):
		return http.StatusBadRequest, "Face not recognized."
	case errors.Is(err, recognition.ErrUnknownSession):
		return http.StatusBadRequest, "Unknown session."
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		respondError(c, http.StatusBadRequest, "limit must be a positive integer", "")
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}

func respondError(c *gin.Context, status int, message, requestID string) {
	body := gin.H{"status": recognition.StatusError, "message": message}
	if requestID != "" {
		body["request_id"] = requestID
	}
	c.AbortWithStatusJSON(status, body)
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, err.Error(), "")
}
