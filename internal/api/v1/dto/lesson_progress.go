package dto

import (
	"time"

	"lms/internal/model"
)

// LessonStateDTO is used for incoming lesson started/completed requests.
// IsCompleted is a pointer so an explicit false survives the required check.
type LessonStateDTO struct {
	LessonID    string `json:"lesson_id" validate:"required"`
	CourseID    string `json:"course_id" validate:"required"`
	IsCompleted *bool  `json:"is_completed" validate:"required"`
}

// LessonProgressResponseDTO is returned in API responses for lesson progress
type LessonProgressResponseDTO struct {
	ProgressID  string     `json:"progress_id"`
	UserID      string     `json:"user_id"`
	LessonID    string     `json:"lesson_id"`
	CourseID    string     `json:"course_id"`
	IsCompleted bool       `json:"is_completed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RecordLessonStateResponseDTO bundles the updated lesson record with the
// recomputed enrollment.
type RecordLessonStateResponseDTO struct {
	Progress   LessonProgressResponseDTO `json:"progress"`
	Enrollment EnrollmentResponseDTO     `json:"enrollment"`
}

// FromLessonProgress maps a model row to its response shape.
func FromLessonProgress(p *model.LessonProgress) LessonProgressResponseDTO {
	return LessonProgressResponseDTO{
		ProgressID:  p.ProgressID,
		UserID:      p.UserID,
		LessonID:    p.LessonID,
		CourseID:    p.CourseID,
		IsCompleted: p.IsCompleted,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
	}
}

// FromLessonProgressList maps a list of model rows.
func FromLessonProgressList(records []model.LessonProgress) []LessonProgressResponseDTO {
	out := make([]LessonProgressResponseDTO, 0, len(records))
	for i := range records {
		out = append(out, FromLessonProgress(&records[i]))
	}
	return out
}
