package repository

import "time"

const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"

	OutcomeRecognized   = "recognized"
	OutcomeUnrecognized = "unrecognized"
	OutcomeNoFace       = "no_face"
	OutcomeInvalidImage = "invalid_image"
	OutcomeFailed       = "failed"
)

// Student is an enrolled person.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:name;size:128;not null;uniqueIndex" json:"name"`
	ImagePath string    `gorm:"column:image_path;size:512" json:"image_path,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the default table name.
func (Student) TableName() string {
	return "students"
}

// ClassSession groups attendance for one lecture on one day.
type ClassSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:name;size:128;not null;uniqueIndex:idx_class_session_name_date" json:"name"`
	Date      time.Time `gorm:"column:date;type:date;not null;uniqueIndex:idx_class_session_name_date" json:"date"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the default table name.
func (ClassSession) TableName() string {
	return "class_sessions"
}

// Attendance is one recorded presence. StudentID holds the classifier label,
// which is the student id the model was trained with.
type Attendance struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  int       `gorm:"column:student_id;not null;index" json:"student_id"`
	SessionID  *uint     `gorm:"column:session_id;index" json:"session_id,omitempty"`
	Name       string    `gorm:"column:name;size:128" json:"name"`
	Confidence float64   `gorm:"column:confidence" json:"confidence"`
	Status     string    `gorm:"column:status;size:16;not null;default:Present" json:"status"`
	RequestID  string    `gorm:"column:request_id;size:64;index" json:"request_id"`
	RecordedAt time.Time `gorm:"column:recorded_at;index" json:"recorded_at"`
}

// TableName overrides the default table name.
func (Attendance) TableName() string {
	return "attendance"
}

// ErrorLog keeps failures that happened while handling a recognition.
type ErrorLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID *int      `gorm:"column:student_id" json:"student_id,omitempty"`
	RequestID string    `gorm:"column:request_id;size:64" json:"request_id,omitempty"`
	Operation string    `gorm:"column:operation;size:64" json:"operation,omitempty"`
	Message   string    `gorm:"column:error_message;type:text" json:"message"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

// TableName overrides the default table name.
func (ErrorLog) TableName() string {
	return "error_log"
}

// RecognitionLog is the audit row written for every recognition attempt.
type RecognitionLog struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RequestID    string    `gorm:"column:request_id;uniqueIndex;size:64" json:"request_id"`
	Outcome      string    `gorm:"column:outcome;size:32;index" json:"outcome"`
	FaceCount    int       `gorm:"column:face_count" json:"face_count"`
	Label        *int      `gorm:"column:label" json:"label,omitempty"`
	Name         string    `gorm:"column:name;size:128" json:"name,omitempty"`
	Confidence   float64   `gorm:"column:confidence" json:"confidence"`
	SessionID    *uint     `gorm:"column:session_id" json:"session_id,omitempty"`
	ProcessingMs int64     `gorm:"column:processing_ms" json:"processing_ms"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the default table name.
func (RecognitionLog) TableName() string {
	return "recognition_logs"
}

// RecognitionAggregation is the raw result of AggregateRecognitions.
type RecognitionAggregation struct {
	TotalCount          int64
	RecognizedCount     int64
	AverageConfidence   float64
	AverageProcessingMs float64
}
