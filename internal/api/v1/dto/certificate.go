package dto

import (
	"time"

	"lms/internal/model"
)

// CertificateIssueDTO is used by trainers/admins to issue a certificate
type CertificateIssueDTO struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// CertificateGenerateDTO is used by students for self-service issuance
type CertificateGenerateDTO struct {
	CourseID string `json:"course_id" validate:"required"`
}

// CertificateResponseDTO is returned in API responses for certificates
type CertificateResponseDTO struct {
	CertificateID     string    `json:"certificate_id"`
	StudentID         string    `json:"student_id"`
	CourseID          string    `json:"course_id"`
	EnrollmentID      string    `json:"enrollment_id"`
	CertificateNumber string    `json:"certificate_number"`
	IssuedBy          string    `json:"issued_by"`
	IssuedAt          time.Time `json:"issued_at"`
}

// CertificateDownloadResponseDTO carries the presigned URL for the rendered PDF
type CertificateDownloadResponseDTO struct {
	URL string `json:"url"`
}

// FromCertificate maps a model row to its response shape.
func FromCertificate(c *model.Certificate) CertificateResponseDTO {
	return CertificateResponseDTO{
		CertificateID:     c.CertificateID,
		StudentID:         c.StudentID,
		CourseID:          c.CourseID,
		EnrollmentID:      c.EnrollmentID,
		CertificateNumber: c.CertificateNumber,
		IssuedBy:          c.IssuedBy,
		IssuedAt:          c.IssuedAt,
	}
}

// FromCertificates maps a list of model rows, keeping an empty slice over nil.
func FromCertificates(certificates []model.Certificate) []CertificateResponseDTO {
	out := make([]CertificateResponseDTO, 0, len(certificates))
	for i := range certificates {
		out = append(out, FromCertificate(&certificates[i]))
	}
	return out
}
