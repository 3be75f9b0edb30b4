package repository

import (
	"context"
	"fmt"

	"lms/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LessonProgressRepository persists per (user, lesson) activity records.
type LessonProgressRepository interface {
	// UpsertLessonProgress creates or updates the (user, lesson) record and
	// fills p with the stored row. started_at is only set on insert;
	// completed_at is set once when completing, kept on a repeated
	// completion and cleared when un-completing.
	UpsertLessonProgress(ctx context.Context, p *model.LessonProgress) error
	// ListLessonProgressByUserAndCourse retrieves all of a user's lesson
	// progress records within a course.
	ListLessonProgressByUserAndCourse(ctx context.Context, userID, courseID string) ([]model.LessonProgress, error)
}

type lessonProgressRepo struct {
	pool *pgxpool.Pool
}

// NewLessonProgressRepo creates a new LessonProgressRepository
func NewLessonProgressRepo(pool *pgxpool.Pool) LessonProgressRepository {
	return &lessonProgressRepo{pool: pool}
}

// UpsertLessonProgress upserts on the (user_id, lesson_id) unique constraint.
// The COALESCE keeps completed_at stable when a completion is repeated, which
// makes the operation idempotent from the caller's point of view.
func (r *lessonProgressRepo) UpsertLessonProgress(ctx context.Context, p *model.LessonProgress) error {
	query := `
		INSERT INTO lesson_progress (user_id, lesson_id, course_id, is_completed, completed_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN NOW() END)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET is_completed = EXCLUDED.is_completed,
		    completed_at = CASE WHEN EXCLUDED.is_completed THEN COALESCE(lesson_progress.completed_at, NOW()) END
		RETURNING id, user_id, lesson_id, course_id, is_completed, started_at, completed_at
	`
	err := r.pool.QueryRow(ctx, query, p.UserID, p.LessonID, p.CourseID, p.IsCompleted).Scan(
		&p.ProgressID,
		&p.UserID,
		&p.LessonID,
		&p.CourseID,
		&p.IsCompleted,
		&p.StartedAt,
		&p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting lesson progress for user %s lesson %s: %w", p.UserID, p.LessonID, err)
	}
	return nil
}

// ListLessonProgressByUserAndCourse retrieves progress rows in lesson order.
func (r *lessonProgressRepo) ListLessonProgressByUserAndCourse(ctx context.Context, userID, courseID string) ([]model.LessonProgress, error) {
	query := `
		SELECT lp.id, lp.user_id, lp.lesson_id, lp.course_id, lp.is_completed, lp.started_at, lp.completed_at
		FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		WHERE lp.user_id = $1 AND lp.course_id = $2
		ORDER BY l.position ASC
	`
	rows, err := r.pool.Query(ctx, query, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("querying lesson progress for user %s in course %s: %w", userID, courseID, err)
	}
	defer rows.Close()

	var records []model.LessonProgress
	for rows.Next() {
		var p model.LessonProgress
		if err := rows.Scan(
			&p.ProgressID,
			&p.UserID,
			&p.LessonID,
			&p.CourseID,
			&p.IsCompleted,
			&p.StartedAt,
			&p.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lesson progress row: %w", err)
		}
		records = append(records, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lesson progress rows: %w", err)
	}

	if len(records) == 0 {
		return []model.LessonProgress{}, nil
	}
	return records, nil
}
