package studies_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/config"
	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/mirror"
	"github.com/PublicLifeLab/gehl-backend/internal/schema"
	"github.com/PublicLifeLab/gehl-backend/internal/studies"
	"github.com/PublicLifeLab/gehl-backend/internal/users"
	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var dbAvailable bool

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	if os.Getenv("DATABASE_URL") == "" {
		os.Exit(m.Run())
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	db.Connect(cfg.Database)
	dbAvailable = true

	users.Init()
	studies.Init(mirror.Noop{})

	os.Exit(m.Run())
}

type recordingMirror struct {
	fail     error
	afterPut func()
	put      []uuid.UUID
	deleted  []uuid.UUID
}

func (m *recordingMirror) PutStudy(_ context.Context, doc mirror.StudyDocument) error {
	if m.fail != nil {
		return m.fail
	}
	m.put = append(m.put, doc.StudyID)
	if m.afterPut != nil {
		m.afterPut()
	}
	return nil
}

func (m *recordingMirror) DeleteStudy(_ context.Context, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func useMirror(t *testing.T, m mirror.Mirror) {
	t.Helper()
	prev := studies.Mirror
	studies.Mirror = m
	t.Cleanup(func() { studies.Mirror = prev })
}

func requireDB(t *testing.T) {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
}

func createTestUser(t *testing.T) users.User {
	t.Helper()
	user, err := users.CreateUser(context.Background(), users.Registration{
		Email:           fmt.Sprintf("author_%s@example.org", uuid.NewString()[:8]),
		Password:        "TestPass123!",
		ConfirmPassword: "TestPass123!",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	t.Cleanup(func() { db.DB.Delete(&users.User{}, "user_id = ?", user.UserID) })
	return user
}

func tableExists(t *testing.T, studyID uuid.UUID) bool {
	t.Helper()
	var present bool
	err := db.DB.Raw(`SELECT to_regclass($1) IS NOT NULL`, schema.QualifiedTableName(studyID)).Row().Scan(&present)
	if err != nil {
		t.Fatalf("to_regclass: %v", err)
	}
	return present
}

func TestCreateAndDeleteStudy(t *testing.T) {
	requireDB(t)
	rec := &recordingMirror{}
	useMirror(t, rec)
	user := createTestUser(t)
	ctx := context.Background()

	study, err := studies.CreateStudy(ctx, studies.NewStudy{
		UserID: user.UserID, Title: "Harbour bath", Type: studies.TypeMovement,
		Fields: []string{"gender", "location"},
	})
	if err != nil {
		t.Fatalf("CreateStudy: %v", err)
	}
	if !tableExists(t, study.StudyID) {
		t.Fatalf("expected table %s", study.Table)
	}
	if len(rec.put) != 1 || rec.put[0] != study.StudyID {
		t.Errorf("expected the study to be mirrored, got %v", rec.put)
	}

	list, err := studies.ListStudies(ctx, user.UserID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListStudies: %v (%d studies)", err, len(list))
	}

	if err := studies.DeleteStudy(ctx, study.StudyID); err != nil {
		t.Fatalf("DeleteStudy: %v", err)
	}
	if tableExists(t, study.StudyID) {
		t.Errorf("table should be dropped with the study")
	}
	if _, err := studies.GetStudy(ctx, study.StudyID); !errors.Is(err, studies.ErrStudyNotFound) {
		t.Errorf("expected ErrStudyNotFound, got %v", err)
	}
	if err := studies.DeleteStudy(ctx, study.StudyID); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("expected deleting twice to be not found, got %v", err)
	}
}

func TestCreateStudyRollsBackWhenMirrorFails(t *testing.T) {
	requireDB(t)
	useMirror(t, &recordingMirror{fail: errors.New("bucket unavailable")})
	user := createTestUser(t)
	ctx := context.Background()

	_, err := studies.CreateStudy(ctx, studies.NewStudy{
		UserID: user.UserID, Title: "Doomed", Type: studies.TypeActivity,
		Fields: schema.ShapeFull.Fields(),
	})
	if err == nil {
		t.Fatalf("expected CreateStudy to fail")
	}

	list, err := studies.ListStudies(ctx, user.UserID)
	if err != nil {
		t.Fatalf("ListStudies: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no study metadata after rollback, got %d", len(list))
	}
}

func TestCreateStudyRemovesMirroredDocumentWhenCommitFails(t *testing.T) {
	requireDB(t)
	user := createTestUser(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Cancelling after the put makes the commit fail.
	rec := &recordingMirror{afterPut: cancel}
	useMirror(t, rec)

	_, err := studies.CreateStudy(ctx, studies.NewStudy{
		UserID: user.UserID, Title: "Interrupted", Type: studies.TypeActivity,
		Fields: []string{"gender", "location"},
	})
	if err == nil {
		t.Fatalf("expected CreateStudy to fail when the commit is interrupted")
	}
	if len(rec.put) != 1 {
		t.Fatalf("expected one mirrored document, got %v", rec.put)
	}
	if len(rec.deleted) != 1 || rec.deleted[0] != rec.put[0] {
		t.Errorf("expected the mirrored document to be removed, got %v", rec.deleted)
	}
	if tableExists(t, rec.put[0]) {
		t.Errorf("expected no study table after the rollback")
	}
}

func TestCreateStudyUnknownAuthor(t *testing.T) {
	requireDB(t)

	_, err := studies.CreateStudy(context.Background(), studies.NewStudy{
		UserID: uuid.New(), Title: "Nobody", Type: studies.TypeActivity,
		Fields: []string{"gender", "location"},
	})
	if !errors.Is(err, users.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGrantStudyAccessCreatesMissingUser(t *testing.T) {
	requireDB(t)
	owner := createTestUser(t)
	ctx := context.Background()

	study, err := studies.CreateStudy(ctx, studies.NewStudy{
		UserID: owner.UserID, Title: "Shared", Type: studies.TypeActivity,
		Fields: []string{"gender", "location"},
	})
	if err != nil {
		t.Fatalf("CreateStudy: %v", err)
	}
	t.Cleanup(func() { _ = studies.DeleteStudy(context.Background(), study.StudyID) })

	guest := uuid.New()
	t.Cleanup(func() { db.DB.Delete(&users.User{}, "user_id = ?", guest) })
	if err := studies.GrantStudyAccess(ctx, study.StudyID, guest); err != nil {
		t.Fatalf("GrantStudyAccess: %v", err)
	}
	if _, err := users.FindByID(ctx, guest); err != nil {
		t.Errorf("expected the guest user to be created, got %v", err)
	}

	shared, err := studies.ListStudies(ctx, guest)
	if err != nil || len(shared) != 1 {
		t.Errorf("expected the guest to see the study, got %d (%v)", len(shared), err)
	}

	if err := studies.GrantStudyAccess(ctx, uuid.New(), guest); !errors.Is(err, studies.ErrStudyNotFound) {
		t.Errorf("expected ErrStudyNotFound, got %v", err)
	}
}

func TestCreateSurveyUnknownEmail(t *testing.T) {
	requireDB(t)
	owner := createTestUser(t)
	ctx := context.Background()

	study, err := studies.CreateStudy(ctx, studies.NewStudy{
		UserID: owner.UserID, Title: "Square", Type: studies.TypeActivity,
		Fields: []string{"gender", "location"},
	})
	if err != nil {
		t.Fatalf("CreateStudy: %v", err)
	}
	t.Cleanup(func() { _ = studies.DeleteStudy(context.Background(), study.StudyID) })

	start := study.CreatedAt
	_, err = studies.CreateSurvey(ctx, studies.NewSurvey{
		StudyID: study.StudyID, LocationID: uuid.New(), UserEmail: "nobody@example.org",
		StartTime: start, StopTime: start.Add(time.Hour),
	})
	if !errors.Is(err, users.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
