package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"lms/internal/middleware"
	"lms/internal/service"
)

// actorFromContext pulls the authenticated user id and role injected by the
// auth middleware.
func actorFromContext(r *http.Request) (userID, role string, ok bool) {
	userID, idOK := r.Context().Value(middleware.UserContextKey).(string)
	role, _ = r.Context().Value(middleware.RoleContextKey).(string)
	return userID, role, idOK && userID != ""
}

// writeServiceError maps the service error taxonomy to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrEnrollmentNotFound),
		errors.Is(err, service.ErrLessonNotInCourse),
		errors.Is(err, service.ErrCertificateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotEnrolled),
		errors.Is(err, service.ErrNotOwner),
		errors.Is(err, service.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyEnrolled),
		errors.Is(err, service.ErrConcurrentUpdate):
		status = http.StatusConflict
	case errors.Is(err, service.ErrCourseNotApproved),
		errors.Is(err, service.ErrCourseNotCompleted),
		errors.Is(err, service.ErrNoCertificateFile):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
