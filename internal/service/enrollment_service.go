package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"lms/internal/model"
	"lms/internal/pubsub"
	"lms/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotApproved  = errors.New("course is not available for enrollment")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
	ErrNotEnrolled        = errors.New("not enrolled in this course")
	ErrLessonNotInCourse  = errors.New("lesson not found in this course")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrNotOwner           = errors.New("not authorized for this enrollment")
	ErrConcurrentUpdate   = errors.New("enrollment is being updated concurrently, retry")
)

// recomputeRetries bounds the compare-and-set loop for the derived
// progress/status write. Every attempt re-derives from the freshly read row,
// so retrying the whole request stays safe if the budget is exhausted.
const recomputeRetries = 3

// EnrollmentService owns the enrollment lifecycle and the per-lesson progress
// records that drive it. Progress is always derived from the completed-lesson
// set against the course's current lesson list, never incremented.
type EnrollmentService interface {
	// Enroll creates (or, after a drop, reactivates) the student's
	// enrollment in an approved course.
	Enroll(ctx context.Context, studentID, courseID string) (*model.Enrollment, error)
	// RecordLessonState upserts the (user, lesson) progress record and
	// recomputes the enrollment's progress and status as one logical
	// operation.
	RecordLessonState(ctx context.Context, userID, lessonID, courseID string, isCompleted bool) (*model.LessonProgress, *model.Enrollment, error)
	// Drop soft-deletes the enrollment. History is preserved.
	Drop(ctx context.Context, studentID, enrollmentID string) (*model.Enrollment, error)
	// GetEnrollment returns a single enrollment, visible to its owner or to
	// trainers/admins.
	GetEnrollment(ctx context.Context, enrollmentID, actorID, actorRole string) (*model.Enrollment, error)
	// ListEnrollments returns the student's enrollments, optionally
	// filtered by status.
	ListEnrollments(ctx context.Context, studentID, status string) ([]model.Enrollment, error)
	// ListLessonProgress returns the student's per-lesson records within a
	// course.
	ListLessonProgress(ctx context.Context, userID, courseID string) ([]model.LessonProgress, error)
}

type enrollmentService struct {
	enrollmentRepo repository.EnrollmentRepository
	progressRepo   repository.LessonProgressRepository
	courseRepo     repository.CourseRepository
	publisher      pubsub.Publisher
	topic          string
	logger         zerolog.Logger
}

// NewEnrollmentService creates a new EnrollmentService
func NewEnrollmentService(
	enrollmentRepo repository.EnrollmentRepository,
	progressRepo repository.LessonProgressRepository,
	courseRepo repository.CourseRepository,
	publisher pubsub.Publisher,
	notificationsTopic string,
	logger zerolog.Logger,
) EnrollmentService {
	return &enrollmentService{
		enrollmentRepo: enrollmentRepo,
		progressRepo:   progressRepo,
		courseRepo:     courseRepo,
		publisher:      publisher,
		topic:          notificationsTopic,
		logger:         logger,
	}
}

// Enroll enrolls a student in an approved course. A dropped enrollment for
// the same pair is reactivated in place so the unique (student, course) row
// and its history survive the drop.
func (s *enrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*model.Enrollment, error) {
	course, err := s.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if course.Status != model.CourseStatusApproved {
		return nil, ErrCourseNotApproved
	}

	existing, err := s.enrollmentRepo.GetEnrollmentByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status != model.EnrollmentStatusDropped {
			return nil, ErrAlreadyEnrolled
		}
		return s.reactivate(ctx, existing, course)
	}

	enrollment := &model.Enrollment{
		StudentID:        studentID,
		CourseID:         courseID,
		Progress:         0,
		CompletedLessons: []string{},
		Status:           model.EnrollmentStatusEnrolled,
	}
	if err := s.enrollmentRepo.CreateEnrollment(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}

	s.notifyEnrollment(ctx, enrollment, course)
	return enrollment, nil
}

// reactivate revives a dropped enrollment: status is reset and then
// re-derived from the preserved progress through the normal transition rules.
func (s *enrollmentService) reactivate(ctx context.Context, e *model.Enrollment, course *model.Course) (*model.Enrollment, error) {
	revived, err := s.enrollmentRepo.UpdateStatus(ctx, e.EnrollmentID, model.EnrollmentStatusEnrolled)
	if err != nil {
		return nil, err
	}
	if revived == nil {
		return nil, ErrEnrollmentNotFound
	}
	updated, err := s.recompute(ctx, revived, course)
	if err != nil {
		return nil, err
	}
	s.notifyEnrollment(ctx, updated, course)
	return updated, nil
}

// RecordLessonState is the single entry point for lesson activity. The
// progress upsert and the enrollment recompute belong to one logical
// operation; a failure in between is healed by retrying, because the
// recompute derives everything from scratch.
func (s *enrollmentService) RecordLessonState(ctx context.Context, userID, lessonID, courseID string, isCompleted bool) (*model.LessonProgress, *model.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetEnrollmentByStudentAndCourse(ctx, userID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if enrollment == nil || enrollment.Status == model.EnrollmentStatusDropped {
		return nil, nil, ErrNotEnrolled
	}

	course, err := s.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if course == nil {
		return nil, nil, ErrCourseNotFound
	}
	if !course.HasLesson(lessonID) {
		return nil, nil, ErrLessonNotInCourse
	}

	progress := &model.LessonProgress{
		UserID:      userID,
		LessonID:    lessonID,
		CourseID:    courseID,
		IsCompleted: isCompleted,
	}
	if err := s.progressRepo.UpsertLessonProgress(ctx, progress); err != nil {
		return nil, nil, err
	}

	var fresh *model.Enrollment
	if isCompleted {
		fresh, err = s.enrollmentRepo.AddCompletedLesson(ctx, enrollment.EnrollmentID, lessonID)
	} else {
		fresh, err = s.enrollmentRepo.RemoveCompletedLesson(ctx, enrollment.EnrollmentID, lessonID)
	}
	if err != nil {
		return nil, nil, err
	}
	if fresh == nil {
		return nil, nil, ErrEnrollmentNotFound
	}

	updated, err := s.recompute(ctx, fresh, course)
	if err != nil {
		return nil, nil, err
	}
	return progress, updated, nil
}

// Drop sets the enrollment to dropped. The row, its progress and its
// completed-lesson set are kept.
func (s *enrollmentService) Drop(ctx context.Context, studentID, enrollmentID string) (*model.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	if enrollment.StudentID != studentID {
		return nil, ErrNotOwner
	}
	dropped, err := s.enrollmentRepo.UpdateStatus(ctx, enrollmentID, model.EnrollmentStatusDropped)
	if err != nil {
		return nil, err
	}
	if dropped == nil {
		return nil, ErrEnrollmentNotFound
	}
	return dropped, nil
}

// GetEnrollment returns the enrollment if the actor owns it or holds a
// trainer/admin role.
func (s *enrollmentService) GetEnrollment(ctx context.Context, enrollmentID, actorID, actorRole string) (*model.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	if enrollment.StudentID != actorID && actorRole != model.RoleTrainer && actorRole != model.RoleAdmin {
		return nil, ErrNotOwner
	}
	return enrollment, nil
}

func (s *enrollmentService) ListEnrollments(ctx context.Context, studentID, status string) ([]model.Enrollment, error) {
	return s.enrollmentRepo.ListEnrollmentsByStudent(ctx, studentID, status)
}

// ListLessonProgress returns the student's records for a course. Any
// enrollment, dropped included, grants access to the student's own history.
func (s *enrollmentService) ListLessonProgress(ctx context.Context, userID, courseID string) ([]model.LessonProgress, error) {
	enrollment, err := s.enrollmentRepo.GetEnrollmentByStudentAndCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrNotEnrolled
	}
	return s.progressRepo.ListLessonProgressByUserAndCourse(ctx, userID, courseID)
}

// recompute derives progress and status from the completed-lesson set in e
// and writes them with a compare-and-set. On a lost race the row is re-read
// and everything is derived again from scratch.
func (s *enrollmentService) recompute(ctx context.Context, e *model.Enrollment, course *model.Course) (*model.Enrollment, error) {
	for attempt := 0; attempt < recomputeRetries; attempt++ {
		readSet := e.CompletedLessons
		updated := *e
		deriveEnrollmentState(&updated, course, time.Now())

		err := s.enrollmentRepo.UpdateDerivedState(ctx, &updated, readSet)
		if err == nil {
			return &updated, nil
		}
		if !errors.Is(err, repository.ErrStaleEnrollment) {
			return nil, err
		}

		fresh, err := s.enrollmentRepo.GetEnrollmentByID(ctx, e.EnrollmentID)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, ErrEnrollmentNotFound
		}
		e = fresh
	}
	return nil, ErrConcurrentUpdate
}

// deriveEnrollmentState recomputes progress from the completed-lesson set and
// applies the status transitions in their fixed order. A course with zero
// lessons keeps its prior progress and set untouched (mid-authoring guard).
// Dropped enrollments are never handed to this function.
func deriveEnrollmentState(e *model.Enrollment, course *model.Course, now time.Time) {
	if total := course.TotalLessons(); total > 0 {
		// Stale ids from catalog edits are pruned so the set stays a
		// subset of the course's current lesson list.
		kept := make([]string, 0, len(e.CompletedLessons))
		for _, id := range e.CompletedLessons {
			if course.HasLesson(id) {
				kept = append(kept, id)
			}
		}
		e.CompletedLessons = kept
		e.Progress = int(math.Round(float64(len(kept)) / float64(total) * 100))
	}

	switch {
	case e.Progress == 100 && e.Status != model.EnrollmentStatusCompleted:
		e.Status = model.EnrollmentStatusCompleted
		if e.CompletedAt == nil {
			t := now
			e.CompletedAt = &t
		}
	case e.Progress > 0 && e.Status == model.EnrollmentStatusEnrolled:
		e.Status = model.EnrollmentStatusInProgress
	case e.Progress == 0 && e.Status == model.EnrollmentStatusInProgress:
		e.Status = model.EnrollmentStatusEnrolled
	}
}

// notifyEnrollment publishes the "enrollment succeeded" and "new enrollment"
// events. Best effort: failures are logged, never propagated to the caller.
func (s *enrollmentService) notifyEnrollment(ctx context.Context, e *model.Enrollment, course *model.Course) {
	events := []pubsub.NotificationEvent{
		{
			Type:        pubsub.EventEnrollmentSucceeded,
			UserID:      e.StudentID,
			CourseID:    course.CourseID,
			CourseTitle: course.Title,
			Message:     fmt.Sprintf("You have successfully enrolled in %q. Start learning now!", course.Title),
		},
		{
			Type:        pubsub.EventNewEnrollment,
			UserID:      course.TrainerID,
			CourseID:    course.CourseID,
			CourseTitle: course.Title,
			Message:     fmt.Sprintf("A student has enrolled in your course %q", course.Title),
		},
	}
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to encode notification event")
			continue
		}
		if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
			s.logger.Error().Err(err).Str("event_type", string(event.Type)).Str("course_id", course.CourseID).Msg("Failed to publish notification event")
		}
	}
}
