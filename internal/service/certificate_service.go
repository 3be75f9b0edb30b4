package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lms/internal/model"
	"lms/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

var (
	ErrNotAuthorized       = errors.New("not authorized to manage certificates for this course")
	ErrCourseNotCompleted  = errors.New("course has not been completed yet")
	ErrCertificateNotFound = errors.New("certificate not found or invalid")
	ErrNoCertificateFile   = errors.New("certificate has no rendered file")
)

// CertificateService issues and verifies completion certificates. Issuance is
// idempotent per (student, course): repeated calls return the stored
// certificate, including the loser of a concurrent race.
type CertificateService interface {
	// Issue mints a certificate for a completed enrollment. The actor must
	// be the course's trainer, an admin, or the student themselves
	// (self-service path).
	Issue(ctx context.Context, studentID, courseID, actorID, actorRole string) (*model.Certificate, error)
	// Verify resolves a certificate by its public number. No auth: the
	// number is the bearer credential.
	Verify(ctx context.Context, certificateNumber string) (*model.Certificate, error)
	// GetCertificate returns a certificate visible to its owner or an admin.
	GetCertificate(ctx context.Context, certificateID, actorID, actorRole string) (*model.Certificate, error)
	// ListForStudent returns the student's certificates, newest first.
	ListForStudent(ctx context.Context, studentID string) ([]model.Certificate, error)
	// ListForCourse returns a course's certificates for its trainer or an
	// admin.
	ListForCourse(ctx context.Context, courseID, actorID, actorRole string) ([]model.Certificate, error)
	// DownloadURL returns a short-lived presigned URL for the certificate's
	// rendered PDF, when one exists.
	DownloadURL(ctx context.Context, certificateID, actorID, actorRole string) (string, error)
}

type certificateService struct {
	certificateRepo repository.CertificateRepository
	enrollmentRepo  repository.EnrollmentRepository
	courseRepo      repository.CourseRepository
	presignClient   *s3.PresignClient
	bucketName      string
	numberPrefix    string
	logger          zerolog.Logger
}

// NewCertificateService creates a new CertificateService
func NewCertificateService(
	certificateRepo repository.CertificateRepository,
	enrollmentRepo repository.EnrollmentRepository,
	courseRepo repository.CourseRepository,
	s3Client *s3.Client,
	bucketName string,
	numberPrefix string,
	logger zerolog.Logger,
) CertificateService {
	var presignClient *s3.PresignClient
	if s3Client != nil {
		presignClient = s3.NewPresignClient(s3Client)
	}
	return &certificateService{
		certificateRepo: certificateRepo,
		enrollmentRepo:  enrollmentRepo,
		courseRepo:      courseRepo,
		presignClient:   presignClient,
		bucketName:      bucketName,
		numberPrefix:    numberPrefix,
		logger:          logger,
	}
}

// Issue runs the precondition chain in order: course exists, actor is
// authorized, enrollment exists, course is completed, no certificate yet.
// Both the status and the progress are checked for completion since the two
// can be inspected independently.
func (s *certificateService) Issue(ctx context.Context, studentID, courseID, actorID, actorRole string) (*model.Certificate, error) {
	course, err := s.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	if actorID != course.TrainerID && actorRole != model.RoleAdmin && actorID != studentID {
		return nil, ErrNotAuthorized
	}

	enrollment, err := s.enrollmentRepo.GetEnrollmentByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	if enrollment.Status != model.EnrollmentStatusCompleted && enrollment.Progress < 100 {
		return nil, ErrCourseNotCompleted
	}

	existing, err := s.certificateRepo.GetCertificateByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.markIssued(ctx, enrollment)
		return existing, nil
	}

	number, err := generateCertificateNumber(s.numberPrefix, time.Now())
	if err != nil {
		return nil, err
	}
	certificate := &model.Certificate{
		StudentID:         studentID,
		CourseID:          courseID,
		EnrollmentID:      enrollment.EnrollmentID,
		CertificateNumber: number,
		IssuedBy:          actorID,
	}
	if err := s.certificateRepo.CreateCertificate(ctx, certificate); err != nil {
		if errors.Is(err, repository.ErrDuplicateCertificate) {
			// Lost a concurrent issuance race: return the winner's row.
			winner, getErr := s.certificateRepo.GetCertificateByStudentAndCourse(ctx, studentID, courseID)
			if getErr != nil {
				return nil, getErr
			}
			if winner == nil {
				// Number-space collision rather than a pair duplicate.
				return nil, fmt.Errorf("certificate number collision for student %s in course %s: %w", studentID, courseID, err)
			}
			s.markIssued(ctx, enrollment)
			return winner, nil
		}
		return nil, err
	}

	s.markIssued(ctx, enrollment)
	return certificate, nil
}

// markIssued flips the enrollment flag. The flag is derived bookkeeping, so a
// failure is logged and healed by the next Issue call rather than surfaced.
func (s *certificateService) markIssued(ctx context.Context, e *model.Enrollment) {
	if e.CertificateIssued {
		return
	}
	if err := s.enrollmentRepo.SetCertificateIssued(ctx, e.EnrollmentID); err != nil {
		s.logger.Error().Err(err).Str("enrollment_id", e.EnrollmentID).Msg("Failed to set certificate_issued flag")
	}
}

// Verify resolves a certificate by number.
func (s *certificateService) Verify(ctx context.Context, certificateNumber string) (*model.Certificate, error) {
	certificate, err := s.certificateRepo.GetCertificateByNumber(ctx, certificateNumber)
	if err != nil {
		return nil, err
	}
	if certificate == nil {
		return nil, ErrCertificateNotFound
	}
	return certificate, nil
}

// GetCertificate returns the certificate if the actor owns it or is an admin.
func (s *certificateService) GetCertificate(ctx context.Context, certificateID, actorID, actorRole string) (*model.Certificate, error) {
	certificate, err := s.certificateRepo.GetCertificateByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if certificate == nil {
		return nil, ErrCertificateNotFound
	}
	if certificate.StudentID != actorID && actorRole != model.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	return certificate, nil
}

func (s *certificateService) ListForStudent(ctx context.Context, studentID string) ([]model.Certificate, error) {
	return s.certificateRepo.ListCertificatesByStudent(ctx, studentID)
}

// ListForCourse returns all certificates of a course to its trainer or an admin.
func (s *certificateService) ListForCourse(ctx context.Context, courseID, actorID, actorRole string) ([]model.Certificate, error) {
	course, err := s.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if actorID != course.TrainerID && actorRole != model.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	return s.certificateRepo.ListCertificatesByCourse(ctx, courseID)
}

// DownloadURL generates a presigned GET URL for the certificate's PDF.
func (s *certificateService) DownloadURL(ctx context.Context, certificateID, actorID, actorRole string) (string, error) {
	certificate, err := s.GetCertificate(ctx, certificateID, actorID, actorRole)
	if err != nil {
		return "", err
	}
	if certificate.PDFPath == nil || *certificate.PDFPath == "" {
		return "", ErrNoCertificateFile
	}
	resp, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(*certificate.PDFPath),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		s.logger.Error().Err(err).Str("certificate_id", certificateID).Msg("Failed to generate presigned URL")
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return resp.URL, nil
}

const certificateNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateCertificateNumber builds PREFIX-<base36 unix ms>-<6 random base36
// chars>. Unique with overwhelming probability without a central sequence;
// the column's uniqueness constraint is the backstop.
func generateCertificateNumber(prefix string, now time.Time) (string, error) {
	timestamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("reading random suffix: %w", err)
	}
	for i, b := range suffix {
		suffix[i] = certificateNumberAlphabet[int(b)%len(certificateNumberAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, timestamp, suffix), nil
}
