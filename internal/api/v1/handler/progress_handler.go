package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"lms/internal/api/v1/dto"
	"lms/internal/service"

	"github.com/go-playground/validator/v10"
)

// ProgressHandler handles lesson progress endpoints
type ProgressHandler struct {
	enrollmentService service.EnrollmentService
	validate          *validator.Validate
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(enrollmentService service.EnrollmentService, validate *validator.Validate) *ProgressHandler {
	return &ProgressHandler{enrollmentService: enrollmentService, validate: validate}
}

// RegisterRoutes mounts progress routes
func (h *ProgressHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/progress/lessons", authMw(http.HandlerFunc(h.recordLessonState)))
	mux.Handle("/progress/courses/", authMw(http.HandlerFunc(h.listCourseProgress)))
}

// recordLessonState godoc
// @Summary Mark a lesson as started or completed
// @Description Upserts the lesson progress record and recomputes the enrollment's progress and status.
// @Tags progress
// @Accept json
// @Produce json
// @Param state body dto.LessonStateDTO true "Lesson state request"
// @Success 200 {object} dto.RecordLessonStateResponseDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not enrolled in this course"
// @Failure 404 {string} string "Lesson not found in this course"
// @Router /progress/lessons [post]
func (h *ProgressHandler) recordLessonState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/progress/lessons" {
		http.NotFound(w, r)
		return
	}
	userID, _, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.LessonStateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	progress, enrollment, err := h.enrollmentService.RecordLessonState(r.Context(), userID, req.LessonID, req.CourseID, *req.IsCompleted)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := dto.RecordLessonStateResponseDTO{
		Progress:   dto.FromLessonProgress(progress),
		Enrollment: dto.FromEnrollment(enrollment),
	}
	writeJSON(w, http.StatusOK, resp)
}

// listCourseProgress godoc
// @Summary List lesson progress for a course
// @Description Retrieves all of the authenticated student's lesson progress records within a course.
// @Tags progress
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {array} dto.LessonProgressResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 403 {string} string "Not enrolled in this course"
// @Router /progress/courses/{courseId} [get]
func (h *ProgressHandler) listCourseProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	courseID := strings.TrimPrefix(r.URL.Path, "/progress/courses/")
	userID, _, ok := actorFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	records, err := h.enrollmentService.ListLessonProgress(r.Context(), userID, courseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromLessonProgressList(records))
}
