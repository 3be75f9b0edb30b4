package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"lms/internal/api/v1/dto"
	"lms/internal/service"

	"github.com/go-playground/validator/v10"
)

// CertificateHandler handles certificate endpoints
type CertificateHandler struct {
	certificateService service.CertificateService
	validate           *validator.Validate
}

// NewCertificateHandler creates a new CertificateHandler
func NewCertificateHandler(certificateService service.CertificateService, validate *validator.Validate) *CertificateHandler {
	return &CertificateHandler{certificateService: certificateService, validate: validate}
}

// RegisterRoutes mounts certificate routes. Verification is public: the
// certificate number is the bearer credential.
func (h *CertificateHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/certificates", authMw(http.HandlerFunc(h.listCertificates)))
	mux.Handle("/certificates/issue", authMw(http.HandlerFunc(h.issueCertificate)))
	mux.Handle("/certificates/generate", authMw(http.HandlerFunc(h.generateCertificate)))
	mux.Handle("/certificates/course/", authMw(http.HandlerFunc(h.listCourseCertificates)))
	mux.Handle("/certificates/verify/", http.HandlerFunc(h.verifyCertificate))
	mux.Handle("/certificates/", authMw(http.HandlerFunc(h.handleCertificate)))
}

// listCertificates godoc
// @Summary List certificates
// @Description Retrieves the authenticated student's certificates, newest first.
// @Tags certificates
// @Produce json
// @Success 200 {array} dto.CertificateResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Router /certificates [get]
func (h *CertificateHandler) listCertificates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/certificates" {
		http.NotFound(w, r)
		return
	}
	userID, _, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	certificates, err := h.certificateService.ListForStudent(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromCertificates(certificates))
}

// issueCertificate godoc
// @Summary Issue a certificate
// @Description Issues a certificate to a student who completed the course. The caller must be the course's trainer or an admin. Idempotent: an already issued certificate is returned as-is.
// @Tags certificates
// @Accept json
// @Produce json
// @Param issue body dto.CertificateIssueDTO true "Issue request"
// @Success 201 {object} dto.CertificateResponseDTO
// @Failure 400 {string} string "Invalid JSON payload, validation failed or course not completed"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not authorized to manage certificates for this course"
// @Failure 404 {string} string "Course or enrollment not found"
// @Router /certificates/issue [post]
func (h *CertificateHandler) issueCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, role, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.CertificateIssueDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	certificate, err := h.certificateService.Issue(r.Context(), req.StudentID, req.CourseID, userID, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromCertificate(certificate))
}

// generateCertificate godoc
// @Summary Generate own certificate
// @Description Self-service issuance path: the authenticated student requests their own certificate for a completed course.
// @Tags certificates
// @Accept json
// @Produce json
// @Param generate body dto.CertificateGenerateDTO true "Generate request"
// @Success 201 {object} dto.CertificateResponseDTO
// @Failure 400 {string} string "Invalid JSON payload, validation failed or course not completed"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 404 {string} string "Course or enrollment not found"
// @Router /certificates/generate [post]
func (h *CertificateHandler) generateCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, role, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.CertificateGenerateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	certificate, err := h.certificateService.Issue(r.Context(), userID, req.CourseID, userID, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromCertificate(certificate))
}

// listCourseCertificates godoc
// @Summary List certificates for a course
// @Description Retrieves all certificates issued for a course. The caller must be the course's trainer or an admin.
// @Tags certificates
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {array} dto.CertificateResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not authorized to manage certificates for this course"
// @Failure 404 {string} string "Course not found"
// @Router /certificates/course/{courseId} [get]
func (h *CertificateHandler) listCourseCertificates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	courseID := strings.TrimPrefix(r.URL.Path, "/certificates/course/")
	userID, role, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	certificates, err := h.certificateService.ListForCourse(r.Context(), courseID, userID, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromCertificates(certificates))
}

// verifyCertificate godoc
// @Summary Verify a certificate
// @Description Resolves a certificate by its public number. No authentication: the number is the bearer credential.
// @Tags certificates
// @Produce json
// @Param certificateNumber path string true "Certificate number"
// @Success 200 {object} dto.CertificateResponseDTO
// @Failure 404 {string} string "Certificate not found or invalid"
// @Router /certificates/verify/{certificateNumber} [get]
func (h *CertificateHandler) verifyCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	certificateNumber := strings.TrimPrefix(r.URL.Path, "/certificates/verify/")
	certificate, err := h.certificateService.Verify(r.Context(), certificateNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromCertificate(certificate))
}

func (h *CertificateHandler) handleCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/certificates/") {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/download") {
		h.downloadCertificate(w, r)
		return
	}
	h.getCertificate(w, r)
}

// getCertificate godoc
// @Summary Get a certificate
// @Description Retrieves a certificate by its ID. Visible to its owner and to admins.
// @Tags certificates
// @Produce json
// @Param certificateId path string true "Certificate ID"
// @Success 200 {object} dto.CertificateResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not authorized to view this certificate"
// @Failure 404 {string} string "Certificate not found or invalid"
// @Router /certificates/{certificateId} [get]
func (h *CertificateHandler) getCertificate(w http.ResponseWriter, r *http.Request) {
	certificateID := strings.TrimPrefix(r.URL.Path, "/certificates/")
	userID, role, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	certificate, err := h.certificateService.GetCertificate(r.Context(), certificateID, userID, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromCertificate(certificate))
}

// downloadCertificate godoc
// @Summary Download a certificate PDF
// @Description Returns a short-lived presigned URL for the certificate's rendered PDF.
// @Tags certificates
// @Produce json
// @Param certificateId path string true "Certificate ID"
// @Success 200 {object} dto.CertificateDownloadResponseDTO
// @Failure 400 {string} string "Certificate has no rendered file"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not authorized to view this certificate"
// @Failure 404 {string} string "Certificate not found or invalid"
// @Router /certificates/{certificateId}/download [get]
func (h *CertificateHandler) downloadCertificate(w http.ResponseWriter, r *http.Request) {
	certificateID := strings.TrimPrefix(r.URL.Path, "/certificates/")
	certificateID = strings.TrimSuffix(certificateID, "/download")
	userID, role, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	url, err := h.certificateService.DownloadURL(r.Context(), certificateID, userID, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CertificateDownloadResponseDTO{URL: url})
}
