package model

import "time"

// LessonProgress is the per (user, lesson) record of learning activity, keyed
// uniquely on that pair. StartedAt is set on first touch and never changes.
// Un-completing clears CompletedAt but the row is kept for history.
type LessonProgress struct {
	ProgressID  string     `db:"id" json:"progress_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	LessonID    string     `db:"lesson_id" json:"lesson_id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
