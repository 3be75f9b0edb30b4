package repository

import (
	"context"
	"errors"
	"fmt"

	"lms/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateCertificate is returned when either the (student, course)
// constraint or the certificate number constraint rejects an insert. The
// caller resolves it by fetching and returning the stored certificate.
var ErrDuplicateCertificate = errors.New("certificate already exists")

// CertificateRepository persists issued certificates. Rows are immutable once
// created; there is no update or delete.
type CertificateRepository interface {
	CreateCertificate(ctx context.Context, c *model.Certificate) error
	GetCertificateByID(ctx context.Context, certificateID string) (*model.Certificate, error)
	GetCertificateByStudentAndCourse(ctx context.Context, studentID, courseID string) (*model.Certificate, error)
	GetCertificateByNumber(ctx context.Context, certificateNumber string) (*model.Certificate, error)
	ListCertificatesByStudent(ctx context.Context, studentID string) ([]model.Certificate, error)
	ListCertificatesByCourse(ctx context.Context, courseID string) ([]model.Certificate, error)
}

type certificateRepo struct {
	pool *pgxpool.Pool
}

// NewCertificateRepo creates a new CertificateRepository
func NewCertificateRepo(pool *pgxpool.Pool) CertificateRepository {
	return &certificateRepo{pool: pool}
}

const certificateColumns = `id, student_id, course_id, enrollment_id, certificate_number, issued_by, issued_at, pdf_path`

func scanCertificate(row pgx.Row, c *model.Certificate) error {
	return row.Scan(
		&c.CertificateID,
		&c.StudentID,
		&c.CourseID,
		&c.EnrollmentID,
		&c.CertificateNumber,
		&c.IssuedBy,
		&c.IssuedAt,
		&c.PDFPath,
	)
}

// CreateCertificate inserts the certificate and fills c with the stored row.
// A unique violation on either constraint surfaces as ErrDuplicateCertificate
// so the loser of a concurrent issuance race can return the winner's row.
func (r *certificateRepo) CreateCertificate(ctx context.Context, c *model.Certificate) error {
	query := `
		INSERT INTO certificates (student_id, course_id, enrollment_id, certificate_number, issued_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + certificateColumns
	err := scanCertificate(r.pool.QueryRow(ctx, query, c.StudentID, c.CourseID, c.EnrollmentID, c.CertificateNumber, c.IssuedBy), c)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCertificate
		}
		return fmt.Errorf("creating certificate for student %s in course %s: %w", c.StudentID, c.CourseID, err)
	}
	return nil
}

// GetCertificateByID retrieves a certificate by id, or (nil, nil) when absent.
func (r *certificateRepo) GetCertificateByID(ctx context.Context, certificateID string) (*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	var c model.Certificate
	if err := scanCertificate(r.pool.QueryRow(ctx, query, certificateID), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting certificate by id %s: %w", certificateID, err)
	}
	return &c, nil
}

// GetCertificateByStudentAndCourse retrieves the certificate for a
// (student, course) pair, or (nil, nil) when none was issued.
func (r *certificateRepo) GetCertificateByStudentAndCourse(ctx context.Context, studentID, courseID string) (*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE student_id = $1 AND course_id = $2`
	var c model.Certificate
	if err := scanCertificate(r.pool.QueryRow(ctx, query, studentID, courseID), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting certificate for student %s in course %s: %w", studentID, courseID, err)
	}
	return &c, nil
}

// GetCertificateByNumber retrieves a certificate by its public number.
func (r *certificateRepo) GetCertificateByNumber(ctx context.Context, certificateNumber string) (*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE certificate_number = $1`
	var c model.Certificate
	if err := scanCertificate(r.pool.QueryRow(ctx, query, certificateNumber), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting certificate by number %s: %w", certificateNumber, err)
	}
	return &c, nil
}

// ListCertificatesByStudent retrieves a student's certificates, newest first.
func (r *certificateRepo) ListCertificatesByStudent(ctx context.Context, studentID string) ([]model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE student_id = $1 ORDER BY issued_at DESC`
	return r.listCertificates(ctx, query, studentID)
}

// ListCertificatesByCourse retrieves all certificates issued for a course.
func (r *certificateRepo) ListCertificatesByCourse(ctx context.Context, courseID string) ([]model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE course_id = $1 ORDER BY issued_at DESC`
	return r.listCertificates(ctx, query, courseID)
}

func (r *certificateRepo) listCertificates(ctx context.Context, query string, arg any) ([]model.Certificate, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying certificates: %w", err)
	}
	defer rows.Close()

	var certificates []model.Certificate
	for rows.Next() {
		var c model.Certificate
		if err := scanCertificate(rows, &c); err != nil {
			return nil, fmt.Errorf("scanning certificate row: %w", err)
		}
		certificates = append(certificates, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating certificate rows: %w", err)
	}

	if len(certificates) == 0 {
		return []model.Certificate{}, nil
	}
	return certificates, nil
}
