package repository

import (
	"context"
	"errors"
	"fmt"

	"lms/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CourseRepository is the read-only catalog surface this service consumes.
// The lesson list comes back in display order and defines the progress
// denominator.
type CourseRepository interface {
	// GetCourseByID retrieves a course with its ordered lesson ids.
	GetCourseByID(ctx context.Context, courseID string) (*model.Course, error)
	// ListLessonsByCourse retrieves the course's lessons in display order.
	ListLessonsByCourse(ctx context.Context, courseID string) ([]model.Lesson, error)
}

type courseRepo struct {
	pool *pgxpool.Pool
}

// NewCourseRepo creates a new CourseRepository
func NewCourseRepo(pool *pgxpool.Pool) CourseRepository {
	return &courseRepo{pool: pool}
}

// GetCourseByID retrieves a course by its ID, or (nil, nil) when absent.
func (r *courseRepo) GetCourseByID(ctx context.Context, courseID string) (*model.Course, error) {
	query := `
		SELECT c.id, c.trainer_id, c.title, c.status,
		       COALESCE(array_agg(l.id ORDER BY l.position) FILTER (WHERE l.id IS NOT NULL), '{}'),
		       c.created_at, c.updated_at
		FROM courses c
		LEFT JOIN lessons l ON l.course_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`
	var c model.Course
	err := r.pool.QueryRow(ctx, query, courseID).Scan(
		&c.CourseID,
		&c.TrainerID,
		&c.Title,
		&c.Status,
		&c.LessonIDs,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting course by id %s: %w", courseID, err)
	}
	return &c, nil
}

// ListLessonsByCourse retrieves all lessons of a course ordered by position.
func (r *courseRepo) ListLessonsByCourse(ctx context.Context, courseID string) ([]model.Lesson, error) {
	query := `
		SELECT id, course_id, title, position
		FROM lessons
		WHERE course_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("querying lessons for course %s: %w", courseID, err)
	}
	defer rows.Close()

	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.LessonID, &l.CourseID, &l.Title, &l.Position); err != nil {
			return nil, fmt.Errorf("scanning lesson row: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lesson rows: %w", err)
	}

	if len(lessons) == 0 {
		return []model.Lesson{}, nil
	}
	return lessons, nil
}
