package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"lms/internal/model"
	"lms/internal/repository"

	"github.com/rs/zerolog"
)

type fakeCertificateRepo struct {
	rows   map[string]*model.Certificate
	nextID int
	// raceWinner, when set, is inserted ahead of the next create to simulate
	// losing a concurrent issuance race.
	raceWinner *model.Certificate
}

func newFakeCertificateRepo() *fakeCertificateRepo {
	return &fakeCertificateRepo{rows: map[string]*model.Certificate{}}
}

func (f *fakeCertificateRepo) CreateCertificate(_ context.Context, c *model.Certificate) error {
	if f.raceWinner != nil {
		winner := f.raceWinner
		f.raceWinner = nil
		f.rows[winner.CertificateID] = winner
		return repository.ErrDuplicateCertificate
	}
	for _, row := range f.rows {
		if (row.StudentID == c.StudentID && row.CourseID == c.CourseID) || row.CertificateNumber == c.CertificateNumber {
			return repository.ErrDuplicateCertificate
		}
	}
	f.nextID++
	c.CertificateID = fmt.Sprintf("cert-%d", f.nextID)
	c.IssuedAt = time.Now()
	cp := *c
	f.rows[c.CertificateID] = &cp
	return nil
}

func (f *fakeCertificateRepo) GetCertificateByID(_ context.Context, certificateID string) (*model.Certificate, error) {
	row, ok := f.rows[certificateID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeCertificateRepo) GetCertificateByStudentAndCourse(_ context.Context, studentID, courseID string) (*model.Certificate, error) {
	for _, row := range f.rows {
		if row.StudentID == studentID && row.CourseID == courseID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCertificateRepo) GetCertificateByNumber(_ context.Context, certificateNumber string) (*model.Certificate, error) {
	for _, row := range f.rows {
		if row.CertificateNumber == certificateNumber {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCertificateRepo) ListCertificatesByStudent(_ context.Context, studentID string) ([]model.Certificate, error) {
	out := []model.Certificate{}
	for _, row := range f.rows {
		if row.StudentID == studentID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeCertificateRepo) ListCertificatesByCourse(_ context.Context, courseID string) ([]model.Certificate, error) {
	out := []model.Certificate{}
	for _, row := range f.rows {
		if row.CourseID == courseID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type certificateFixture struct {
	svc             CertificateService
	certificateRepo *fakeCertificateRepo
	enrollmentRepo  *fakeEnrollmentRepo
	courseRepo      *fakeCourseRepo
	enrollmentID    string
}

// newCertificateFixture seeds an approved course and a completed enrollment
// for student-1.
func newCertificateFixture(t *testing.T) *certificateFixture {
	t.Helper()
	certificateRepo := newFakeCertificateRepo()
	enrollmentRepo := newFakeEnrollmentRepo()
	courseRepo := &fakeCourseRepo{courses: map[string]*model.Course{
		"course-1": {
			CourseID:  "course-1",
			TrainerID: "trainer-1",
			Title:     "Intro to Gardening",
			Status:    model.CourseStatusApproved,
			LessonIDs: []string{"lesson-1", "lesson-2"},
		},
	}}

	enrollment := &model.Enrollment{
		StudentID:        "student-1",
		CourseID:         "course-1",
		CompletedLessons: []string{"lesson-1", "lesson-2"},
	}
	if err := enrollmentRepo.CreateEnrollment(context.Background(), enrollment); err != nil {
		t.Fatalf("seeding enrollment: %v", err)
	}
	now := time.Now()
	row := enrollmentRepo.rows[enrollment.EnrollmentID]
	row.Progress = 100
	row.Status = model.EnrollmentStatusCompleted
	row.CompletedAt = &now

	svc := NewCertificateService(certificateRepo, enrollmentRepo, courseRepo, nil, "certificates", "IC", zerolog.Nop())
	return &certificateFixture{
		svc:             svc,
		certificateRepo: certificateRepo,
		enrollmentRepo:  enrollmentRepo,
		courseRepo:      courseRepo,
		enrollmentID:    enrollment.EnrollmentID,
	}
}

var certificateNumberPattern = regexp.MustCompile(`^IC-[0-9A-Z]+-[0-9A-Z]{6}$`)

func TestIssueByTrainer(t *testing.T) {
	fx := newCertificateFixture(t)
	ctx := context.Background()

	certificate, err := fx.svc.Issue(ctx, "student-1", "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if certificate.StudentID != "student-1" || certificate.CourseID != "course-1" {
		t.Fatalf("unexpected certificate subject: %+v", certificate)
	}
	if certificate.EnrollmentID != fx.enrollmentID {
		t.Fatalf("expected enrollment %s, got %s", fx.enrollmentID, certificate.EnrollmentID)
	}
	if certificate.IssuedBy != "trainer-1" {
		t.Fatalf("expected issued_by trainer-1, got %s", certificate.IssuedBy)
	}
	if !certificateNumberPattern.MatchString(certificate.CertificateNumber) {
		t.Fatalf("unexpected certificate number format: %s", certificate.CertificateNumber)
	}
	if !fx.enrollmentRepo.rows[fx.enrollmentID].CertificateIssued {
		t.Fatal("expected certificate_issued flag on the enrollment")
	}
}

func TestIssueSelfService(t *testing.T) {
	fx := newCertificateFixture(t)
	if _, err := fx.svc.Issue(context.Background(), "student-1", "course-1", "student-1", model.RoleLearner); err != nil {
		t.Fatalf("self-service Issue returned error: %v", err)
	}
}

func TestIssueNotAuthorized(t *testing.T) {
	fx := newCertificateFixture(t)
	if _, err := fx.svc.Issue(context.Background(), "student-1", "course-1", "student-2", model.RoleLearner); err != ErrNotAuthorized {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestIssueCourseNotCompleted(t *testing.T) {
	fx := newCertificateFixture(t)
	row := fx.enrollmentRepo.rows[fx.enrollmentID]
	row.Progress = 50
	row.Status = model.EnrollmentStatusInProgress
	row.CompletedAt = nil

	if _, err := fx.svc.Issue(context.Background(), "student-1", "course-1", "trainer-1", model.RoleTrainer); err != ErrCourseNotCompleted {
		t.Fatalf("expected ErrCourseNotCompleted, got %v", err)
	}
}

func TestIssueMissingEnrollment(t *testing.T) {
	fx := newCertificateFixture(t)
	if _, err := fx.svc.Issue(context.Background(), "student-2", "course-1", "trainer-1", model.RoleTrainer); err != ErrEnrollmentNotFound {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}
	if _, err := fx.svc.Issue(context.Background(), "student-1", "missing", "trainer-1", model.RoleTrainer); err != ErrCourseNotFound {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestIssueIdempotent(t *testing.T) {
	fx := newCertificateFixture(t)
	ctx := context.Background()

	first, err := fx.svc.Issue(ctx, "student-1", "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("first Issue returned error: %v", err)
	}
	second, err := fx.svc.Issue(ctx, "student-1", "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("second Issue returned error: %v", err)
	}
	if second.CertificateID != first.CertificateID || second.CertificateNumber != first.CertificateNumber {
		t.Fatalf("expected the stored certificate back, got %+v and %+v", first, second)
	}
	if len(fx.certificateRepo.rows) != 1 {
		t.Fatalf("expected a single stored certificate, got %d", len(fx.certificateRepo.rows))
	}
}

func TestIssueLostRaceReturnsWinner(t *testing.T) {
	fx := newCertificateFixture(t)
	fx.certificateRepo.raceWinner = &model.Certificate{
		CertificateID:     "cert-winner",
		StudentID:         "student-1",
		CourseID:          "course-1",
		EnrollmentID:      fx.enrollmentID,
		CertificateNumber: "IC-RACE00-ABCDEF",
		IssuedBy:          "trainer-1",
		IssuedAt:          time.Now(),
	}

	certificate, err := fx.svc.Issue(context.Background(), "student-1", "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if certificate.CertificateID != "cert-winner" {
		t.Fatalf("expected the winner's certificate, got %+v", certificate)
	}
}

func TestVerify(t *testing.T) {
	fx := newCertificateFixture(t)
	ctx := context.Background()
	issued, err := fx.svc.Issue(ctx, "student-1", "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	verified, err := fx.svc.Verify(ctx, issued.CertificateNumber)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if verified.CertificateID != issued.CertificateID {
		t.Fatalf("expected certificate %s, got %s", issued.CertificateID, verified.CertificateID)
	}

	if _, err := fx.svc.Verify(ctx, "IC-NOPE00-000000"); err != ErrCertificateNotFound {
		t.Fatalf("expected ErrCertificateNotFound, got %v", err)
	}
}

func TestGetCertificateVisibility(t *testing.T) {
	fx := newCertificateFixture(t)
	ctx := context.Background()
	issued, err := fx.svc.Issue(ctx, "student-1", "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := fx.svc.GetCertificate(ctx, issued.CertificateID, "student-1", model.RoleLearner); err != nil {
		t.Fatalf("owner read returned error: %v", err)
	}
	if _, err := fx.svc.GetCertificate(ctx, issued.CertificateID, "admin-1", model.RoleAdmin); err != nil {
		t.Fatalf("admin read returned error: %v", err)
	}
	if _, err := fx.svc.GetCertificate(ctx, issued.CertificateID, "student-2", model.RoleLearner); err != ErrNotAuthorized {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestListForCourse(t *testing.T) {
	fx := newCertificateFixture(t)
	ctx := context.Background()
	if _, err := fx.svc.Issue(ctx, "student-1", "course-1", "trainer-1", model.RoleTrainer); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	certificates, err := fx.svc.ListForCourse(ctx, "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("ListForCourse returned error: %v", err)
	}
	if len(certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(certificates))
	}

	if _, err := fx.svc.ListForCourse(ctx, "course-1", "trainer-2", model.RoleTrainer); err != ErrNotAuthorized {
		t.Fatalf("expected ErrNotAuthorized for another trainer, got %v", err)
	}
}

func TestDownloadURLWithoutFile(t *testing.T) {
	fx := newCertificateFixture(t)
	ctx := context.Background()
	issued, err := fx.svc.Issue(ctx, "student-1", "course-1", "trainer-1", model.RoleTrainer)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := fx.svc.DownloadURL(ctx, issued.CertificateID, "student-1", model.RoleLearner); !errors.Is(err, ErrNoCertificateFile) {
		t.Fatalf("expected ErrNoCertificateFile, got %v", err)
	}
}

func TestGenerateCertificateNumber(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	number, err := generateCertificateNumber("IC", now)
	if err != nil {
		t.Fatalf("generateCertificateNumber returned error: %v", err)
	}
	if !certificateNumberPattern.MatchString(number) {
		t.Fatalf("unexpected number format: %s", number)
	}

	other, err := generateCertificateNumber("IC", now)
	if err != nil {
		t.Fatalf("generateCertificateNumber returned error: %v", err)
	}
	if number == other {
		t.Fatalf("expected distinct random suffixes, got %s twice", number)
	}
}
