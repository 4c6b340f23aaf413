package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/face-attendance/internal/config"
)

func newTestRepository(t *testing.T) *AttendanceRepository {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "attendance.db"),
		MaxOpenConns: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { Close(db) })

	repo := NewAttendanceRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return repo
}

func TestDeleteStudentKeepsOtherLabels(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	alice := &Student{Name: "Alice"}
	bob := &Student{Name: "Bob"}
	for _, s := range []*Student{alice, bob} {
		if err := repo.CreateStudent(ctx, s); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if alice.ID != 1 || bob.ID != 2 {
		t.Fatalf("unexpected ids alice=%d bob=%d", alice.ID, bob.ID)
	}

	// labels come from dataset order and start at 0
	aliceLabel, bobLabel := 0, 1
	if err := repo.RecordAttendance(ctx, &Attendance{StudentID: aliceLabel, Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordAttendance(ctx, &Attendance{StudentID: bobLabel, Name: "Bob"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.LogError(ctx, &ErrorLog{StudentID: &aliceLabel, Message: "alice failed"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.LogError(ctx, &ErrorLog{StudentID: &bobLabel, Message: "bob failed"}); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteStudent(ctx, alice.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	records, err := repo.ListAttendance(ctx, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name != "Bob" || records[0].StudentID != bobLabel {
		t.Fatalf("expected only Bob's attendance to remain, got %+v", records)
	}

	entries, err := repo.ListErrors(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		switch e.Message {
		case "alice failed":
			if e.StudentID != nil {
				t.Fatalf("expected Alice's error entry to be detached, got %d", *e.StudentID)
			}
		case "bob failed":
			if e.StudentID == nil || *e.StudentID != bobLabel {
				t.Fatalf("expected Bob's error entry to keep label %d, got %v", bobLabel, e.StudentID)
			}
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestStudentLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := &Student{Name: "  Rohan "}
	if err := repo.CreateStudent(ctx, student); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if student.ID == 0 || student.Name != "Rohan" {
		t.Fatalf("unexpected student %+v", student)
	}

	if err := repo.CreateStudent(ctx, &Student{Name: "Rohan"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := repo.RecordAttendance(ctx, &Attendance{StudentID: int(student.ID), Name: "Rohan"}); err != nil {
		t.Fatalf("record attendance failed: %v", err)
	}

	if err := repo.DeleteStudent(ctx, student.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetStudent(ctx, student.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	records, err := repo.ListAttendance(ctx, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("expected attendance to be removed with the student, got %d rows", len(records))
	}
	if err := repo.DeleteStudent(ctx, student.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSessionsAreUniquePerDay(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	day := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	if err := repo.CreateSession(ctx, &ClassSession{Name: "Algorithms", Date: day}); err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	err := repo.CreateSession(ctx, &ClassSession{Name: "Algorithms", Date: day.Add(3 * time.Hour)})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for same day, got %v", err)
	}
	if err := repo.CreateSession(ctx, &ClassSession{Name: "Algorithms", Date: day.AddDate(0, 0, 1)}); err != nil {
		t.Fatalf("next day session failed: %v", err)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if !sessions[0].Date.After(sessions[1].Date) {
		t.Fatalf("expected newest session first, got %v then %v", sessions[0].Date, sessions[1].Date)
	}
}

func TestAttendanceFilteringAndStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	session := &ClassSession{Name: "Physics", Date: time.Now()}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rows := []*Attendance{
		{StudentID: 0, Name: "Rohan", SessionID: &session.ID, RecordedAt: base},
		{StudentID: 1, Name: "Mira", RecordedAt: base.Add(time.Minute)},
		{StudentID: 1, Name: "Mira", SessionID: &session.ID, RecordedAt: base.Add(2 * time.Minute), Status: StatusAbsent},
	}
	for _, row := range rows {
		if err := repo.RecordAttendance(ctx, row); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}
	if rows[0].Status != StatusPresent {
		t.Fatalf("expected default status Present, got %q", rows[0].Status)
	}

	if err := repo.RecordAttendance(ctx, &Attendance{StudentID: 2, Status: "Late"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	all, err := repo.ListAttendance(ctx, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Status != StatusAbsent {
		t.Fatalf("unexpected attendance listing %+v", all)
	}

	filtered, err := repo.ListAttendance(ctx, &session.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].StudentID != 1 {
		t.Fatalf("unexpected filtered listing %+v", filtered)
	}
}

func TestRecognitionAuditAndAggregation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	empty, err := repo.AggregateRecognitions(ctx)
	if err != nil {
		t.Fatalf("aggregate on empty table failed: %v", err)
	}
	if empty.TotalCount != 0 || empty.AverageConfidence != 0 {
		t.Fatalf("unexpected empty aggregation %+v", empty)
	}

	label := 0
	logs := []*RecognitionLog{
		{RequestID: "a", Outcome: OutcomeRecognized, Label: &label, Confidence: 40, ProcessingMs: 10},
		{RequestID: "b", Outcome: OutcomeRecognized, Label: &label, Confidence: 60, ProcessingMs: 30},
		{RequestID: "c", Outcome: OutcomeUnrecognized, Confidence: 190, ProcessingMs: 20},
		{RequestID: "d", Outcome: OutcomeNoFace},
	}
	for _, l := range logs {
		if err := repo.SaveRecognition(ctx, l); err != nil {
			t.Fatalf("save recognition failed: %v", err)
		}
	}
	if err := repo.SaveRecognition(ctx, &RecognitionLog{RequestID: "a"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated request id, got %v", err)
	}

	found, err := repo.FindRecognition(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if found.Outcome != OutcomeUnrecognized || found.Confidence != 190 {
		t.Fatalf("unexpected audit row %+v", found)
	}
	if _, err := repo.FindRecognition(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	agg, err := repo.AggregateRecognitions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalCount != 4 || agg.RecognizedCount != 2 {
		t.Fatalf("unexpected counts %+v", agg)
	}
	if agg.AverageConfidence != 50 {
		t.Fatalf("average confidence = %f, want 50", agg.AverageConfidence)
	}
	if agg.AverageProcessingMs != 15 {
		t.Fatalf("average processing = %f, want 15", agg.AverageProcessingMs)
	}
}

func TestErrorLog(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	studentID := 3
	if err := repo.LogError(ctx, &ErrorLog{StudentID: &studentID, Message: "insert failed"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.LogError(ctx, &ErrorLog{Message: "second"}); err != nil {
		t.Fatal(err)
	}

	entries, err := repo.ListErrors(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Message != "second" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
