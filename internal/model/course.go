package model

import "time"

// Course statuses. Only approved courses accept enrollments.
const (
	CourseStatusDraft    = "draft"
	CourseStatusPending  = "pending"
	CourseStatusApproved = "approved"
	CourseStatusRejected = "rejected"
)

// Course represents a course in the catalog. This service treats courses as
// read-only input: the lesson list defines the denominator for enrollment
// progress and the trainer id drives certificate authorization.
type Course struct {
	CourseID  string    `db:"id" json:"course_id"`
	TrainerID string    `db:"trainer_id" json:"trainer_id"`
	Title     string    `db:"title" json:"title"`
	Status    string    `db:"status" json:"status"`
	LessonIDs []string  `db:"lesson_ids" json:"lesson_ids"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TotalLessons is the progress denominator.
func (c *Course) TotalLessons() int {
	return len(c.LessonIDs)
}

// HasLesson reports whether the lesson belongs to this course.
func (c *Course) HasLesson(lessonID string) bool {
	for _, id := range c.LessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// Lesson represents a single lesson within a course.
type Lesson struct {
	LessonID string `db:"id" json:"lesson_id"`
	CourseID string `db:"course_id" json:"course_id"`
	Title    string `db:"title" json:"title"`
	Position int    `db:"position" json:"position"`
}
