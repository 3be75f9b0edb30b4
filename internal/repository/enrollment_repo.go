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

var (
	// ErrDuplicateEnrollment is returned when the (student, course) unique
	// constraint rejects an insert, i.e. a concurrent enroll won the race.
	ErrDuplicateEnrollment = errors.New("enrollment already exists for student and course")
	// ErrStaleEnrollment is returned when the derived-state write loses a
	// compare-and-set against a concurrent recompute. The caller re-derives
	// from the current row and retries.
	ErrStaleEnrollment = errors.New("enrollment changed since it was read")
)

// EnrollmentRepository persists enrollments. Completed-lesson set mutations
// are single atomic statements so concurrent lesson completions cannot lose
// updates; the progress/status write is a compare-and-set keyed on the
// completed-lesson set the recompute derived from.
type EnrollmentRepository interface {
	CreateEnrollment(ctx context.Context, e *model.Enrollment) error
	GetEnrollmentByID(ctx context.Context, enrollmentID string) (*model.Enrollment, error)
	GetEnrollmentByStudentAndCourse(ctx context.Context, studentID, courseID string) (*model.Enrollment, error)
	// ListEnrollmentsByStudent returns the student's enrollments, newest
	// first, optionally filtered by status ("" means all).
	ListEnrollmentsByStudent(ctx context.Context, studentID, status string) ([]model.Enrollment, error)
	// AddCompletedLesson atomically adds the lesson to the completed set if
	// absent and returns the fresh row.
	AddCompletedLesson(ctx context.Context, enrollmentID, lessonID string) (*model.Enrollment, error)
	// RemoveCompletedLesson atomically removes the lesson from the completed
	// set if present and returns the fresh row.
	RemoveCompletedLesson(ctx context.Context, enrollmentID, lessonID string) (*model.Enrollment, error)
	// UpdateDerivedState writes the recomputed completed set, progress,
	// status and completed_at, guarded by the completed set the computation
	// started from. Returns ErrStaleEnrollment when the guard misses.
	UpdateDerivedState(ctx context.Context, e *model.Enrollment, readSet []string) error
	// UpdateStatus sets the lifecycle status only (used for drop and
	// reactivation) and returns the fresh row.
	UpdateStatus(ctx context.Context, enrollmentID, status string) (*model.Enrollment, error)
	// SetCertificateIssued flips the certificate_issued flag.
	SetCertificateIssued(ctx context.Context, enrollmentID string) error
}

type enrollmentRepo struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepo creates a new EnrollmentRepository
func NewEnrollmentRepo(pool *pgxpool.Pool) EnrollmentRepository {
	return &enrollmentRepo{pool: pool}
}

const enrollmentColumns = `id, student_id, course_id, progress, completed_lessons, status, enrolled_at, completed_at, certificate_issued`

func scanEnrollment(row pgx.Row, e *model.Enrollment) error {
	return row.Scan(
		&e.EnrollmentID,
		&e.StudentID,
		&e.CourseID,
		&e.Progress,
		&e.CompletedLessons,
		&e.Status,
		&e.EnrolledAt,
		&e.CompletedAt,
		&e.CertificateIssued,
	)
}

// CreateEnrollment inserts a new enrollment and returns the created record in e.
func (r *enrollmentRepo) CreateEnrollment(ctx context.Context, e *model.Enrollment) error {
	query := `
		INSERT INTO enrollments (student_id, course_id, progress, completed_lessons, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + enrollmentColumns
	err := scanEnrollment(r.pool.QueryRow(ctx, query, e.StudentID, e.CourseID, e.Progress, e.CompletedLessons, e.Status), e)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEnrollment
		}
		return fmt.Errorf("creating enrollment for student %s in course %s: %w", e.StudentID, e.CourseID, err)
	}
	return nil
}

// GetEnrollmentByID retrieves an enrollment by id, or (nil, nil) when absent.
func (r *enrollmentRepo) GetEnrollmentByID(ctx context.Context, enrollmentID string) (*model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var e model.Enrollment
	if err := scanEnrollment(r.pool.QueryRow(ctx, query, enrollmentID), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting enrollment by id %s: %w", enrollmentID, err)
	}
	return &e, nil
}

// GetEnrollmentByStudentAndCourse retrieves the enrollment for a
// (student, course) pair regardless of status, or (nil, nil) when absent.
func (r *enrollmentRepo) GetEnrollmentByStudentAndCourse(ctx context.Context, studentID, courseID string) (*model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var e model.Enrollment
	if err := scanEnrollment(r.pool.QueryRow(ctx, query, studentID, courseID), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting enrollment for student %s in course %s: %w", studentID, courseID, err)
	}
	return &e, nil
}

// ListEnrollmentsByStudent retrieves a student's enrollments, newest first.
func (r *enrollmentRepo) ListEnrollmentsByStudent(ctx context.Context, studentID, status string) ([]model.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE student_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY enrolled_at DESC
	`
	rows, err := r.pool.Query(ctx, query, studentID, status)
	if err != nil {
		return nil, fmt.Errorf("querying enrollments for student %s: %w", studentID, err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		if err := scanEnrollment(rows, &e); err != nil {
			return nil, fmt.Errorf("scanning enrollment row: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enrollment rows: %w", err)
	}

	if len(enrollments) == 0 {
		return []model.Enrollment{}, nil
	}
	return enrollments, nil
}

// AddCompletedLesson adds the lesson to the completed set. The whole mutation
// is a single statement, so two concurrent completions of different lessons
// both land; repeating the same lesson is a no-op.
func (r *enrollmentRepo) AddCompletedLesson(ctx context.Context, enrollmentID, lessonID string) (*model.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET completed_lessons = CASE
			WHEN $2 = ANY(completed_lessons) THEN completed_lessons
			ELSE array_append(completed_lessons, $2)
		END
		WHERE id = $1
		RETURNING ` + enrollmentColumns
	var e model.Enrollment
	if err := scanEnrollment(r.pool.QueryRow(ctx, query, enrollmentID, lessonID), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("adding completed lesson %s to enrollment %s: %w", lessonID, enrollmentID, err)
	}
	return &e, nil
}

// RemoveCompletedLesson removes the lesson from the completed set.
func (r *enrollmentRepo) RemoveCompletedLesson(ctx context.Context, enrollmentID, lessonID string) (*model.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET completed_lessons = array_remove(completed_lessons, $2)
		WHERE id = $1
		RETURNING ` + enrollmentColumns
	var e model.Enrollment
	if err := scanEnrollment(r.pool.QueryRow(ctx, query, enrollmentID, lessonID), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("removing completed lesson %s from enrollment %s: %w", lessonID, enrollmentID, err)
	}
	return &e, nil
}

// UpdateDerivedState writes progress, status, completed_at and the (possibly
// pruned) completed set. The guard on the previously read set makes this a
// compare-and-set: a concurrent recompute that changed the set in between
// causes ErrStaleEnrollment instead of a lost update.
func (r *enrollmentRepo) UpdateDerivedState(ctx context.Context, e *model.Enrollment, readSet []string) error {
	query := `
		UPDATE enrollments
		SET completed_lessons = $2, progress = $3, status = $4, completed_at = $5
		WHERE id = $1 AND completed_lessons = $6
		RETURNING ` + enrollmentColumns
	err := scanEnrollment(r.pool.QueryRow(ctx, query, e.EnrollmentID, e.CompletedLessons, e.Progress, e.Status, e.CompletedAt, readSet), e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleEnrollment
		}
		return fmt.Errorf("updating derived state of enrollment %s: %w", e.EnrollmentID, err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status and returns the fresh row.
func (r *enrollmentRepo) UpdateStatus(ctx context.Context, enrollmentID, status string) (*model.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET status = $2
		WHERE id = $1
		RETURNING ` + enrollmentColumns
	var e model.Enrollment
	if err := scanEnrollment(r.pool.QueryRow(ctx, query, enrollmentID, status), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating status of enrollment %s: %w", enrollmentID, err)
	}
	return &e, nil
}

// SetCertificateIssued flips the certificate_issued flag on the enrollment.
func (r *enrollmentRepo) SetCertificateIssued(ctx context.Context, enrollmentID string) error {
	query := `UPDATE enrollments SET certificate_issued = TRUE WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, enrollmentID); err != nil {
		return fmt.Errorf("setting certificate_issued on enrollment %s: %w", enrollmentID, err)
	}
	return nil
}
