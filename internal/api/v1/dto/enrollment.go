package dto

import (
	"time"

	"lms/internal/model"
)

// EnrollmentCreateDTO is used for incoming enrollment requests
type EnrollmentCreateDTO struct {
	CourseID string `json:"course_id" validate:"required"`
}

// EnrollmentResponseDTO is returned in API responses for enrollments
type EnrollmentResponseDTO struct {
	EnrollmentID      string     `json:"enrollment_id"`
	StudentID         string     `json:"student_id"`
	CourseID          string     `json:"course_id"`
	Progress          int        `json:"progress"`
	CompletedLessons  []string   `json:"completed_lessons"`
	Status            string     `json:"status"`
	EnrolledAt        time.Time  `json:"enrolled_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CertificateIssued bool       `json:"certificate_issued"`
}

// FromEnrollment maps a model row to its response shape.
func FromEnrollment(e *model.Enrollment) EnrollmentResponseDTO {
	return EnrollmentResponseDTO{
		EnrollmentID:      e.EnrollmentID,
		StudentID:         e.StudentID,
		CourseID:          e.CourseID,
		Progress:          e.Progress,
		CompletedLessons:  e.CompletedLessons,
		Status:            e.Status,
		EnrolledAt:        e.EnrolledAt,
		CompletedAt:       e.CompletedAt,
		CertificateIssued: e.CertificateIssued,
	}
}

// FromEnrollments maps a list of model rows, keeping an empty slice over nil.
func FromEnrollments(enrollments []model.Enrollment) []EnrollmentResponseDTO {
	out := make([]EnrollmentResponseDTO, 0, len(enrollments))
	for i := range enrollments {
		out = append(out, FromEnrollment(&enrollments[i]))
	}
	return out
}
