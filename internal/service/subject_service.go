package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
	"github.com/tatugacamp/school-api/pkg/jobs"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.Subject, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
	MaxOrder(ctx context.Context, schoolID string) (int, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	UpdateOrder(ctx context.Context, id string, order int) error
	Delete(ctx context.Context, id string) (*models.Subject, error)
}

type subjectGroupRepository interface {
	ListBySubject(ctx context.Context, subjectID string) ([]models.GroupOnSubject, error)
	Delete(ctx context.Context, id string) error
}

type subjectAssignmentRepository interface {
	ListFilesBySubject(ctx context.Context, subjectID string) ([]models.FileOnAssignment, error)
	ListStudentFilesBySubject(ctx context.Context, subjectID string) ([]models.FileOnStudentAssignment, error)
	DeleteCommentsBySubject(ctx context.Context, subjectID string) error
	DeleteStudentSkillsBySubject(ctx context.Context, subjectID string) error
	DeleteStudentsBySubject(ctx context.Context, subjectID string) error
	DeleteFilesBySubject(ctx context.Context, subjectID string) error
	DeleteStudentFilesBySubject(ctx context.Context, subjectID string) error
	DeleteSkillsBySubject(ctx context.Context, subjectID string) error
	DeleteAssignmentsBySubject(ctx context.Context, subjectID string) error
}

type subjectAttendanceRepository interface {
	DeleteAttendancesBySubject(ctx context.Context, subjectID string) error
	DeleteStatusListsBySubject(ctx context.Context, subjectID string) error
	DeleteRowsBySubject(ctx context.Context, subjectID string) error
	DeleteTablesBySubject(ctx context.Context, subjectID string) error
}

type subjectScoreRepository interface {
	DeleteStudentScoresBySubject(ctx context.Context, subjectID string) error
	DeleteSubjectScoresBySubject(ctx context.Context, subjectID string) error
}

type subjectEnrollmentRepository interface {
	DeleteStudentsBySubject(ctx context.Context, subjectID string) error
	DeleteTeachersBySubject(ctx context.Context, subjectID string) error
}

type subjectAuthorizer interface {
	RequireSchoolMember(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error)
	RequireSchoolAdmin(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error)
}

type cleanupEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CreateSubjectRequest carries the fields for a new subject.
type CreateSubjectRequest struct {
	Title         string `json:"title" validate:"required,min=1,max=255"`
	Description   string `json:"description" validate:"max=2000"`
	EducationYear string `json:"education_year" validate:"required"`
	SchoolID      string `json:"school_id" validate:"required,uuid"`
}

// UpdateSubjectRequest carries the mutable descriptive fields.
type UpdateSubjectRequest struct {
	Title         *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	EducationYear *string `json:"education_year" validate:"omitempty"`
}

// ReorderSubjectsRequest carries the full desired ordering of a school's
// subjects; position in the slice becomes the stored order value.
type ReorderSubjectsRequest struct {
	SubjectIDs []string `json:"subject_ids" validate:"required,min=1,dive,uuid"`
}

// SubjectService manages the subject aggregate: CRUD, ordering, and the
// cascade that removes a subject together with everything hanging off it.
type SubjectService struct {
	subjects    subjectRepository
	groups      subjectGroupRepository
	assignments subjectAssignmentRepository
	attendance  subjectAttendanceRepository
	scores      subjectScoreRepository
	enrollments subjectEnrollmentRepository
	authz       subjectAuthorizer
	cleanup     cleanupEnqueuer
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewSubjectService wires the subject aggregate manager.
func NewSubjectService(
	subjects subjectRepository,
	groups subjectGroupRepository,
	assignments subjectAssignmentRepository,
	attendance subjectAttendanceRepository,
	scores subjectScoreRepository,
	enrollments subjectEnrollmentRepository,
	authz subjectAuthorizer,
	cleanup cleanupEnqueuer,
	logger *zap.Logger,
) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{
		subjects:    subjects,
		groups:      groups,
		assignments: assignments,
		attendance:  attendance,
		scores:      scores,
		enrollments: enrollments,
		authz:       authz,
		cleanup:     cleanup,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Get returns a subject after checking school membership.
func (s *SubjectService) Get(ctx context.Context, subjectID, userID string) (*models.Subject, error) {
	subject, err := s.load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireSchoolMember(ctx, userID, subject.SchoolID); err != nil {
		return nil, err
	}
	return subject, nil
}

// ListBySchool returns the school's subjects in stored order.
func (s *SubjectService) ListBySchool(ctx context.Context, schoolID, userID string) ([]models.Subject, error) {
	if _, err := s.authz.RequireSchoolMember(ctx, userID, schoolID); err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Create appends a subject at the end of the school's order sequence. Only
// school admins may create subjects.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest, userID string) (*models.Subject, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, err := s.authz.RequireSchoolAdmin(ctx, userID, req.SchoolID); err != nil {
		return nil, err
	}

	max, err := s.subjects.MaxOrder(ctx, req.SchoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to determine subject order")
	}

	subject := &models.Subject{
		Title:         req.Title,
		Description:   req.Description,
		EducationYear: req.EducationYear,
		Order:         max + 1,
		SchoolID:      req.SchoolID,
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// Update modifies the descriptive fields of a subject.
func (s *SubjectService) Update(ctx context.Context, subjectID string, req UpdateSubjectRequest, userID string) (*models.Subject, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	subject, err := s.load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireSchoolMember(ctx, userID, subject.SchoolID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		subject.Title = *req.Title
	}
	if req.Description != nil {
		subject.Description = *req.Description
	}
	if req.EducationYear != nil {
		subject.EducationYear = *req.EducationYear
	}
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// Reorder assigns each subject the order value of its position in the
// request. Updates run concurrently; any failure surfaces as an internal
// error and no rollback is attempted.
func (s *SubjectService) Reorder(ctx context.Context, req ReorderSubjectsRequest, userID string) ([]models.Subject, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	first, err := s.load(ctx, req.SubjectIDs[0])
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireSchoolMember(ctx, userID, first.SchoolID); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	errs := make([]error, len(req.SubjectIDs))
	for i, id := range req.SubjectIDs {
		wg.Add(1)
		go func(index int, subjectID string) {
			defer wg.Done()
			errs[index] = s.subjects.UpdateOrder(ctx, subjectID, index)
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			s.logger.Error("failed to reorder subject",
				zap.String("subject_id", req.SubjectIDs[i]),
				zap.Int("order", i),
				zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reorder subjects")
		}
	}

	subjects, err := s.subjects.ListByIDs(ctx, req.SubjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload subjects")
	}
	return subjects, nil
}

// Delete removes a subject and every record hanging off it. Group deletion
// is best effort, storage cleanup runs in the background, and the remaining
// rows are deleted in foreign-key-safe order before the subject row itself.
// The deleted subject is returned.
func (s *SubjectService) Delete(ctx context.Context, subjectID, userID string) (*models.Subject, error) {
	subject, err := s.load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireSchoolMember(ctx, userID, subject.SchoolID); err != nil {
		return nil, err
	}

	files, err := s.assignments.ListFilesBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment files")
	}
	studentFiles, err := s.assignments.ListStudentFilesBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student files")
	}
	groups, err := s.groups.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load groups")
	}

	if outcome := s.deleteGroups(ctx, groups); !outcome.Ok() {
		s.logger.Warn("some subject groups could not be deleted",
			zap.String("subject_id", subjectID),
			zap.Int("total", outcome.Total),
			zap.Int("failed", len(outcome.Failures)),
			zap.Any("failures", outcome.Failures))
	}

	if err := s.assignments.DeleteCommentsBySubject(ctx, subjectID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comments")
	}

	s.enqueueCleanup(subjectID, files, studentFiles)

	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"skill_on_student_assignments", s.assignments.DeleteStudentSkillsBySubject},
		{"attendances", s.attendance.DeleteAttendancesBySubject},
		{"attendance_status_lists", s.attendance.DeleteStatusListsBySubject},
		{"attendance_rows", s.attendance.DeleteRowsBySubject},
		{"attendance_tables", s.attendance.DeleteTablesBySubject},
		{"score_on_students", s.scores.DeleteStudentScoresBySubject},
		{"score_on_subjects", s.scores.DeleteSubjectScoresBySubject},
		{"student_on_assignments", s.assignments.DeleteStudentsBySubject},
		{"student_on_subjects", s.enrollments.DeleteStudentsBySubject},
		{"teacher_on_subjects", s.enrollments.DeleteTeachersBySubject},
		{"file_on_assignments", s.assignments.DeleteFilesBySubject},
		{"file_on_student_assignments", s.assignments.DeleteStudentFilesBySubject},
		{"skill_on_assignments", s.assignments.DeleteSkillsBySubject},
		{"assignments", s.assignments.DeleteAssignmentsBySubject},
	}
	for _, step := range steps {
		if err := step.fn(ctx, subjectID); err != nil {
			s.logger.Error("subject cascade step failed",
				zap.String("subject_id", subjectID),
				zap.String("step", step.name),
				zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject records")
		}
	}

	deleted, err := s.subjects.Delete(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}

	s.logger.Info("subject deleted",
		zap.String("subject_id", subjectID),
		zap.String("school_id", deleted.SchoolID),
		zap.Int("groups", len(groups)),
		zap.Int("files", len(files)+len(studentFiles)))
	return deleted, nil
}

// deleteGroups removes each group concurrently, settling all before
// returning. Failures never abort the surrounding cascade.
func (s *SubjectService) deleteGroups(ctx context.Context, groups []models.GroupOnSubject) models.PartialOutcome {
	outcome := models.PartialOutcome{Total: len(groups)}
	if len(groups) == 0 {
		return outcome
	}

	var wg sync.WaitGroup
	errs := make([]error, len(groups))
	for i, group := range groups {
		wg.Add(1)
		go func(index int, groupID string) {
			defer wg.Done()
			errs[index] = s.groups.Delete(ctx, groupID)
		}(i, group.ID)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			outcome.Failures = append(outcome.Failures, models.ItemFailure{ID: groups[i].ID, Reason: err.Error()})
		}
	}
	return outcome
}

// enqueueCleanup hands the deferred deletions to the background queue: the
// stored objects behind file records, the grade range, and the file rows
// themselves. Enqueue failures are logged and dropped; the delete response
// never waits on cleanup.
func (s *SubjectService) enqueueCleanup(subjectID string, files []models.FileOnAssignment, studentFiles []models.FileOnStudentAssignment) {
	if s.cleanup == nil {
		return
	}

	enqueue := func(jobType string, payload interface{}) {
		if err := s.cleanup.Enqueue(jobs.Job{Type: jobType, Payload: payload}); err != nil {
			s.logger.Warn("failed to enqueue cleanup job",
				zap.String("subject_id", subjectID),
				zap.String("type", jobType),
				zap.Error(err))
		}
	}

	fileIDs := make([]string, 0, len(files))
	for _, file := range files {
		fileIDs = append(fileIDs, file.ID)
		enqueue(JobTypeDeleteStorageObject, StorageObjectPayload{Key: file.URL})
	}

	studentFileIDs := make([]string, 0, len(studentFiles))
	for _, file := range studentFiles {
		studentFileIDs = append(studentFileIDs, file.ID)
		if file.ContentType == models.ContentTypeFile {
			enqueue(JobTypeDeleteStorageObject, StorageObjectPayload{Key: file.Body})
		}
	}

	enqueue(JobTypeDeleteGradeRange, SubjectPayload{SubjectID: subjectID})
	if len(fileIDs) > 0 {
		enqueue(JobTypeDeleteAssignmentFile, FileIDsPayload{IDs: fileIDs})
	}
	if len(studentFileIDs) > 0 {
		enqueue(JobTypeDeleteStudentFile, FileIDsPayload{IDs: studentFileIDs})
	}
}

func (s *SubjectService) load(ctx context.Context, subjectID string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}
