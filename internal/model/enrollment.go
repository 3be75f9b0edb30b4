package model

import "time"

// Enrollment statuses. The enrolled/in-progress/completed transitions are
// derived from progress; dropped is only ever set explicitly and is terminal
// for recomputes.
const (
	EnrollmentStatusEnrolled   = "enrolled"
	EnrollmentStatusInProgress = "in-progress"
	EnrollmentStatusCompleted  = "completed"
	EnrollmentStatusDropped    = "dropped"
)

// Enrollment is the record of a student's relationship to a course. There is
// at most one row per (student, course) pair, enforced by a unique constraint.
// Progress is always recomputed from CompletedLessons against the course's
// current lesson list, never incremented.
type Enrollment struct {
	EnrollmentID      string     `db:"id" json:"enrollment_id"`
	StudentID         string     `db:"student_id" json:"student_id"`
	CourseID          string     `db:"course_id" json:"course_id"`
	Progress          int        `db:"progress" json:"progress"`
	CompletedLessons  []string   `db:"completed_lessons" json:"completed_lessons"`
	Status            string     `db:"status" json:"status"`
	EnrolledAt        time.Time  `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CertificateIssued bool       `db:"certificate_issued" json:"certificate_issued"`
}

// HasCompletedLesson reports whether the lesson is in the completed set.
func (e *Enrollment) HasCompletedLesson(lessonID string) bool {
	for _, id := range e.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}
