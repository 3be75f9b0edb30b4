package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"lms/internal/api/v1/dto"
	"lms/internal/service"

	"github.com/go-playground/validator/v10"
)

// EnrollmentHandler handles enrollment-related endpoints
type EnrollmentHandler struct {
	enrollmentService service.EnrollmentService
	validate          *validator.Validate
}

// NewEnrollmentHandler creates a new EnrollmentHandler
func NewEnrollmentHandler(enrollmentService service.EnrollmentService, validate *validator.Validate) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService, validate: validate}
}

// RegisterRoutes mounts enrollment routes
func (h *EnrollmentHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/enrollments", authMw(http.HandlerFunc(h.handleEnrollments)))
	mux.Handle("/enrollments/", authMw(http.HandlerFunc(h.handleEnrollment)))
}

func (h *EnrollmentHandler) handleEnrollments(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/enrollments" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.enroll(w, r)
	case http.MethodGet:
		h.listEnrollments(w, r)
	default:
		http.NotFound(w, r)
	}
}

// enroll godoc
// @Summary Enroll in a course
// @Description Enrolls the authenticated student in an approved course.
// @Tags enrollments
// @Accept json
// @Produce json
// @Param enrollment body dto.EnrollmentCreateDTO true "Enrollment request"
// @Success 201 {object} dto.EnrollmentResponseDTO
// @Failure 400 {string} string "Invalid JSON payload, validation failed or course not approved"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 404 {string} string "Course not found"
// @Failure 409 {string} string "Already enrolled in this course"
// @Router /enrollments [post]
func (h *EnrollmentHandler) enroll(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.EnrollmentCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	enrollment, err := h.enrollmentService.Enroll(r.Context(), userID, req.CourseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromEnrollment(enrollment))
}

// listEnrollments godoc
// @Summary List enrollments
// @Description Retrieves the authenticated student's enrollments, optionally filtered by status.
// @Tags enrollments
// @Produce json
// @Param status query string false "Filter by status (enrolled, in-progress, completed, dropped)"
// @Success 200 {array} dto.EnrollmentResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Router /enrollments [get]
func (h *EnrollmentHandler) listEnrollments(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	status := r.URL.Query().Get("status")
	enrollments, err := h.enrollmentService.ListEnrollments(r.Context(), userID, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEnrollments(enrollments))
}

func (h *EnrollmentHandler) handleEnrollment(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/enrollments/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getEnrollment(w, r)
	case http.MethodDelete:
		h.dropEnrollment(w, r)
	default:
		http.NotFound(w, r)
	}
}

// getEnrollment godoc
// @Summary Get an enrollment
// @Description Retrieves an enrollment by its ID. Visible to its owner and to trainers/admins.
// @Tags enrollments
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Success 200 {object} dto.EnrollmentResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not authorized for this enrollment"
// @Failure 404 {string} string "Enrollment not found"
// @Router /enrollments/{enrollmentId} [get]
func (h *EnrollmentHandler) getEnrollment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := strings.TrimPrefix(r.URL.Path, "/enrollments/")
	userID, role, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	enrollment, err := h.enrollmentService.GetEnrollment(r.Context(), enrollmentID, userID, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEnrollment(enrollment))
}

// dropEnrollment godoc
// @Summary Drop an enrollment
// @Description Marks the enrollment as dropped. The record and its progress history are preserved.
// @Tags enrollments
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Success 200 {object} dto.EnrollmentResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not authorized for this enrollment"
// @Failure 404 {string} string "Enrollment not found"
// @Router /enrollments/{enrollmentId} [delete]
func (h *EnrollmentHandler) dropEnrollment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := strings.TrimPrefix(r.URL.Path, "/enrollments/")
	userID, _, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	enrollment, err := h.enrollmentService.Drop(r.Context(), userID, enrollmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEnrollment(enrollment))
}
