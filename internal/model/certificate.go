package model

import "time"

// Certificate is an immutable proof of course completion. One per
// (student, course) pair, with a globally unique human-shareable number.
// PDFPath points at an externally rendered artifact in object storage, if any.
type Certificate struct {
	CertificateID     string    `db:"id" json:"certificate_id"`
	StudentID         string    `db:"student_id" json:"student_id"`
	CourseID          string    `db:"course_id" json:"course_id"`
	EnrollmentID      string    `db:"enrollment_id" json:"enrollment_id"`
	CertificateNumber string    `db:"certificate_number" json:"certificate_number"`
	IssuedBy          string    `db:"issued_by" json:"issued_by"`
	IssuedAt          time.Time `db:"issued_at" json:"issued_at"`
	PDFPath           *string   `db:"pdf_path" json:"pdf_path,omitempty"`
}
