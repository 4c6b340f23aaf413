package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("record already exists")
	ErrInvalidStatus = errors.New("attendance status must be Present or Absent")
)

// AttendanceRepository provides persistence APIs for students, sessions,
// attendance and the recognition audit trail.
type AttendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository creates a new repository instance.
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// AutoMigrate ensures the schema is available.
func (r *AttendanceRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&Student{},
		&ClassSession{},
		&Attendance{},
		&ErrorLog{},
		&RecognitionLog{},
	)
}

// CreateStudent registers a student by name.
func (r *AttendanceRepository) CreateStudent(ctx context.Context, student *Student) error {
	student.Name = strings.TrimSpace(student.Name)
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(student).Error)
}

// ListStudents returns every student ordered by id.
func (r *AttendanceRepository) ListStudents(ctx context.Context) ([]Student, error) {
	var students []Student
	err := r.db.WithContext(ctx).Order("id ASC").Find(&students).Error
	return students, err
}

// GetStudent loads one student.
func (r *AttendanceRepository) GetStudent(ctx context.Context, id uint) (*Student, error) {
	var student Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, translate(err)
	}
	return &student, nil
}

// DeleteStudent removes a student together with their attendance rows.
// Attendance carries the classifier label rather than the student id, so rows
// are matched on the recorded name and the labels found there are detached
// from the error log.
func (r *AttendanceRepository) DeleteStudent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student Student
		if err := tx.First(&student, id).Error; err != nil {
			return translate(err)
		}

		var labels []int
		if err := tx.Model(&Attendance{}).Where("name = ?", student.Name).Distinct().Pluck("student_id", &labels).Error; err != nil {
			return err
		}
		if len(labels) > 0 {
			if err := tx.Model(&ErrorLog{}).Where("student_id IN ?", labels).Update("student_id", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("name = ?", student.Name).Delete(&Attendance{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&Student{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateSession opens a named session for a calendar day.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *ClassSession) error {
	session.Name = strings.TrimSpace(session.Name)
	y, m, d := session.Date.Date()
	session.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(session).Error)
}

// ListSessions returns sessions, most recent day first.
func (r *AttendanceRepository) ListSessions(ctx context.Context) ([]ClassSession, error) {
	var sessions []ClassSession
	err := r.db.WithContext(ctx).Order("date DESC, id DESC").Find(&sessions).Error
	return sessions, err
}

// GetSession loads one session.
func (r *AttendanceRepository) GetSession(ctx context.Context, id uint) (*ClassSession, error) {
	var session ClassSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// RecordAttendance persists an attendance event.
func (r *AttendanceRepository) RecordAttendance(ctx context.Context, record *Attendance) error {
	if record.Status == "" {
		record.Status = StatusPresent
	}
	if record.Status != StatusPresent && record.Status != StatusAbsent {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, record.Status)
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(record).Error)
}

// ListAttendance returns attendance rows, newest first. A nil sessionID lists
// every session; limit <= 0 means no limit.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, sessionID *uint, limit int) ([]Attendance, error) {
	q := r.db.WithContext(ctx).Order("recorded_at DESC, id DESC")
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []Attendance
	err := q.Find(&records).Error
	return records, err
}

// LogError stores a failure in the error log.
func (r *AttendanceRepository) LogError(ctx context.Context, entry *ErrorLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListErrors returns the most recent error log entries.
func (r *AttendanceRepository) ListErrors(ctx context.Context, limit int) ([]ErrorLog, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []ErrorLog
	err := q.Find(&entries).Error
	return entries, err
}

// SaveRecognition persists the audit row of a recognition attempt.
func (r *AttendanceRepository) SaveRecognition(ctx context.Context, log *RecognitionLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(log).Error)
}

// FindRecognition retrieves the audit row of a recognition request.
func (r *AttendanceRepository) FindRecognition(ctx context.Context, requestID string) (*RecognitionLog, error) {
	var log RecognitionLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error; err != nil {
		return nil, translate(err)
	}
	return &log, nil
}

// AggregateRecognitions summarises the recognition audit trail.
func (r *AttendanceRepository) AggregateRecognitions(ctx context.Context) (*RecognitionAggregation, error) {
	var agg RecognitionAggregation
	err := r.db.WithContext(ctx).Model(&RecognitionLog{}).
		Select(`COUNT(*) AS total_count,
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0) AS recognized_count,
			COALESCE(AVG(CASE WHEN outcome = ? THEN confidence END), 0) AS average_confidence,
			COALESCE(AVG(processing_ms), 0) AS average_processing_ms`,
			OutcomeRecognized, OutcomeRecognized).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// isUniqueViolation catches drivers whose dialector does not translate
// constraint errors.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
