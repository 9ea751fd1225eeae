package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
	"github.com/tatugacamp/school-api/pkg/jobs"
)

type callLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *callLog) add(step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
}

type mockSubjectRepo struct {
	mu       sync.Mutex
	subjects map[string]models.Subject
	maxOrder int
	orders   map[string]int
	orderErr map[string]error
	created  *models.Subject
	deleted  []string
	log      *callLog
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRepo) ListBySchool(ctx context.Context, schoolID string) ([]models.Subject, error) {
	var list []models.Subject
	for _, s := range m.subjects {
		if s.SchoolID == schoolID {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *mockSubjectRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	var list []models.Subject
	for _, id := range ids {
		if s, ok := m.subjects[id]; ok {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *mockSubjectRepo) MaxOrder(ctx context.Context, schoolID string) (int, error) {
	return m.maxOrder, nil
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = "new-subject"
	}
	if m.subjects == nil {
		m.subjects = make(map[string]models.Subject)
	}
	m.subjects[subject.ID] = *subject
	m.created = subject
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	m.subjects[subject.ID] = *subject
	return nil
}

func (m *mockSubjectRepo) UpdateOrder(ctx context.Context, id string, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.orderErr[id]; ok {
		return err
	}
	if m.orders == nil {
		m.orders = make(map[string]int)
	}
	m.orders[id] = order
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) (*models.Subject, error) {
	if m.log != nil {
		m.log.add("subjects")
	}
	s, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.subjects, id)
	m.deleted = append(m.deleted, id)
	return &s, nil
}

type mockGroupRepo struct {
	mu      sync.Mutex
	groups  []models.GroupOnSubject
	failOn  map[string]error
	deleted []string
}

func (m *mockGroupRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.GroupOnSubject, error) {
	return m.groups, nil
}

func (m *mockGroupRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOn[id]; ok {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockAssignmentRepo struct {
	files        []models.FileOnAssignment
	studentFiles []models.FileOnStudentAssignment
	failOn       map[string]error
	log          *callLog
}

func (m *mockAssignmentRepo) step(name string) error {
	if err, ok := m.failOn[name]; ok {
		return err
	}
	m.log.add(name)
	return nil
}

func (m *mockAssignmentRepo) ListFilesBySubject(ctx context.Context, subjectID string) ([]models.FileOnAssignment, error) {
	return m.files, nil
}

func (m *mockAssignmentRepo) ListStudentFilesBySubject(ctx context.Context, subjectID string) ([]models.FileOnStudentAssignment, error) {
	return m.studentFiles, nil
}

func (m *mockAssignmentRepo) DeleteCommentsBySubject(ctx context.Context, subjectID string) error {
	return m.step("comment_on_assignments")
}

func (m *mockAssignmentRepo) DeleteStudentSkillsBySubject(ctx context.Context, subjectID string) error {
	return m.step("skill_on_student_assignments")
}

func (m *mockAssignmentRepo) DeleteStudentsBySubject(ctx context.Context, subjectID string) error {
	return m.step("student_on_assignments")
}

func (m *mockAssignmentRepo) DeleteFilesBySubject(ctx context.Context, subjectID string) error {
	return m.step("file_on_assignments")
}

func (m *mockAssignmentRepo) DeleteStudentFilesBySubject(ctx context.Context, subjectID string) error {
	return m.step("file_on_student_assignments")
}

func (m *mockAssignmentRepo) DeleteSkillsBySubject(ctx context.Context, subjectID string) error {
	return m.step("skill_on_assignments")
}

func (m *mockAssignmentRepo) DeleteAssignmentsBySubject(ctx context.Context, subjectID string) error {
	return m.step("assignments")
}

type mockAttendanceRepo struct {
	failOn map[string]error
	log    *callLog
}

func (m *mockAttendanceRepo) step(name string) error {
	if err, ok := m.failOn[name]; ok {
		return err
	}
	m.log.add(name)
	return nil
}

func (m *mockAttendanceRepo) DeleteAttendancesBySubject(ctx context.Context, subjectID string) error {
	return m.step("attendances")
}

func (m *mockAttendanceRepo) DeleteStatusListsBySubject(ctx context.Context, subjectID string) error {
	return m.step("attendance_status_lists")
}

func (m *mockAttendanceRepo) DeleteRowsBySubject(ctx context.Context, subjectID string) error {
	return m.step("attendance_rows")
}

func (m *mockAttendanceRepo) DeleteTablesBySubject(ctx context.Context, subjectID string) error {
	return m.step("attendance_tables")
}

type mockScoreRepo struct {
	log *callLog
}

func (m *mockScoreRepo) DeleteStudentScoresBySubject(ctx context.Context, subjectID string) error {
	m.log.add("score_on_students")
	return nil
}

func (m *mockScoreRepo) DeleteSubjectScoresBySubject(ctx context.Context, subjectID string) error {
	m.log.add("score_on_subjects")
	return nil
}

type mockEnrollmentRepo struct {
	log *callLog
}

func (m *mockEnrollmentRepo) DeleteStudentsBySubject(ctx context.Context, subjectID string) error {
	m.log.add("student_on_subjects")
	return nil
}

func (m *mockEnrollmentRepo) DeleteTeachersBySubject(ctx context.Context, subjectID string) error {
	m.log.add("teacher_on_subjects")
	return nil
}

type mockAuthz struct {
	member bool
	admin  bool
}

func (m *mockAuthz) RequireSchoolMember(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error) {
	if !m.member {
		return nil, appErrors.Clone(appErrors.ErrNotMember, "access denied: user is not a member of the school")
	}
	role := models.MemberRoleMember
	if m.admin {
		role = models.MemberRoleAdmin
	}
	return &models.MemberOnSchool{UserID: userID, SchoolID: schoolID, Role: role}, nil
}

func (m *mockAuthz) RequireSchoolAdmin(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error) {
	member, err := m.RequireSchoolMember(ctx, userID, schoolID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.MemberRoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotAdmin, "access denied: user is not an admin")
	}
	return member, nil
}

type mockQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type subjectFixture struct {
	service     *SubjectService
	subjects    *mockSubjectRepo
	groups      *mockGroupRepo
	assignments *mockAssignmentRepo
	queue       *mockQueue
	log         *callLog
}

func newSubjectFixture(authz *mockAuthz) *subjectFixture {
	log := &callLog{}
	subjects := &mockSubjectRepo{
		subjects: map[string]models.Subject{
			"subj-1": {ID: "subj-1", Title: "Math", SchoolID: "school-1", Order: 0},
		},
		log: log,
	}
	groups := &mockGroupRepo{}
	assignments := &mockAssignmentRepo{log: log}
	queue := &mockQueue{}

	svc := NewSubjectService(
		subjects,
		groups,
		assignments,
		&mockAttendanceRepo{log: log},
		&mockScoreRepo{log: log},
		&mockEnrollmentRepo{log: log},
		authz,
		queue,
		zap.NewNop(),
	)
	return &subjectFixture{
		service:     svc,
		subjects:    subjects,
		groups:      groups,
		assignments: assignments,
		queue:       queue,
		log:         log,
	}
}

func TestSubjectDeleteCascadeOrder(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})
	f.groups.groups = []models.GroupOnSubject{{ID: "group-1", SubjectID: "subj-1"}}

	deleted, err := f.service.Delete(context.Background(), "subj-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "subj-1", deleted.ID)
	assert.Equal(t, []string{"group-1"}, f.groups.deleted)

	expected := []string{
		"comment_on_assignments",
		"skill_on_student_assignments",
		"attendances",
		"attendance_status_lists",
		"attendance_rows",
		"attendance_tables",
		"score_on_students",
		"score_on_subjects",
		"student_on_assignments",
		"student_on_subjects",
		"teacher_on_subjects",
		"file_on_assignments",
		"file_on_student_assignments",
		"skill_on_assignments",
		"assignments",
		"subjects",
	}
	assert.Equal(t, expected, f.log.steps)
}

func TestSubjectDeleteEnqueuesCleanup(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})
	f.assignments.files = []models.FileOnAssignment{
		{ID: "file-1", URL: "uploads/a.png", SubjectID: "subj-1"},
	}
	f.assignments.studentFiles = []models.FileOnStudentAssignment{
		{ID: "sfile-1", Body: "uploads/work.pdf", ContentType: models.ContentTypeFile, SubjectID: "subj-1"},
		{ID: "sfile-2", Body: "just text", ContentType: models.ContentTypeText, SubjectID: "subj-1"},
	}

	_, err := f.service.Delete(context.Background(), "subj-1", "user-1")
	require.NoError(t, err)

	var storageKeys []string
	var gradeRanges, fileBatches, studentBatches int
	for _, job := range f.queue.jobs {
		switch job.Type {
		case JobTypeDeleteStorageObject:
			storageKeys = append(storageKeys, job.Payload.(StorageObjectPayload).Key)
		case JobTypeDeleteGradeRange:
			gradeRanges++
			assert.Equal(t, "subj-1", job.Payload.(SubjectPayload).SubjectID)
		case JobTypeDeleteAssignmentFile:
			fileBatches++
			assert.Equal(t, []string{"file-1"}, job.Payload.(FileIDsPayload).IDs)
		case JobTypeDeleteStudentFile:
			studentBatches++
			assert.Equal(t, []string{"sfile-1", "sfile-2"}, job.Payload.(FileIDsPayload).IDs)
		}
	}

	// Text submissions have no stored object behind them.
	assert.ElementsMatch(t, []string{"uploads/a.png", "uploads/work.pdf"}, storageKeys)
	assert.Equal(t, 1, gradeRanges)
	assert.Equal(t, 1, fileBatches)
	assert.Equal(t, 1, studentBatches)
}

func TestSubjectDeleteGroupFailureDoesNotAbort(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})
	f.groups.groups = []models.GroupOnSubject{
		{ID: "group-1", SubjectID: "subj-1"},
		{ID: "group-2", SubjectID: "subj-1"},
	}
	f.groups.failOn = map[string]error{"group-1": errors.New("locked")}

	deleted, err := f.service.Delete(context.Background(), "subj-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "subj-1", deleted.ID)
	assert.Equal(t, []string{"group-2"}, f.groups.deleted)
}

func TestSubjectDeleteStepFailureAborts(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})
	f.assignments.failOn = map[string]error{"student_on_assignments": errors.New("deadlock")}

	_, err := f.service.Delete(context.Background(), "subj-1", "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Empty(t, f.subjects.deleted)
}

func TestSubjectDeleteNotMember(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: false})

	_, err := f.service.Delete(context.Background(), "subj-1", "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotMember.Code, appErr.Code)
	assert.Empty(t, f.subjects.deleted)
	assert.Empty(t, f.log.steps)
}

func TestSubjectDeleteNotFound(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})

	_, err := f.service.Delete(context.Background(), "missing", "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubjectReorderAssignsIndexOrder(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})
	f.subjects.subjects["subj-2"] = models.Subject{ID: "subj-2", SchoolID: "school-1", Order: 1}
	f.subjects.subjects["subj-3"] = models.Subject{ID: "subj-3", SchoolID: "school-1", Order: 2}

	req := ReorderSubjectsRequest{SubjectIDs: []string{
		"3b241101-e2bb-4255-8caf-4136c566a962",
		"2c5ea4c0-4067-11e9-8bad-9b1deb4d3b7d",
	}}
	f.subjects.subjects[req.SubjectIDs[0]] = models.Subject{ID: req.SubjectIDs[0], SchoolID: "school-1"}
	f.subjects.subjects[req.SubjectIDs[1]] = models.Subject{ID: req.SubjectIDs[1], SchoolID: "school-1"}

	subjects, err := f.service.Reorder(context.Background(), req, "user-1")
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
	assert.Equal(t, 0, f.subjects.orders[req.SubjectIDs[0]])
	assert.Equal(t, 1, f.subjects.orders[req.SubjectIDs[1]])
}

func TestSubjectReorderFailureIsInternal(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})
	req := ReorderSubjectsRequest{SubjectIDs: []string{
		"3b241101-e2bb-4255-8caf-4136c566a962",
		"2c5ea4c0-4067-11e9-8bad-9b1deb4d3b7d",
	}}
	f.subjects.subjects[req.SubjectIDs[0]] = models.Subject{ID: req.SubjectIDs[0], SchoolID: "school-1"}
	f.subjects.subjects[req.SubjectIDs[1]] = models.Subject{ID: req.SubjectIDs[1], SchoolID: "school-1"}
	f.subjects.orderErr = map[string]error{req.SubjectIDs[1]: errors.New("gone")}

	_, err := f.service.Reorder(context.Background(), req, "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}

func TestSubjectReorderRejectsInvalidIDs(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true})

	_, err := f.service.Reorder(context.Background(), ReorderSubjectsRequest{SubjectIDs: []string{"not-a-uuid"}}, "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSubjectCreateAppendsOrder(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true, admin: true})
	f.subjects.maxOrder = 4

	subject, err := f.service.Create(context.Background(), CreateSubjectRequest{
		Title:         "Physics",
		EducationYear: "2025",
		SchoolID:      "3b241101-e2bb-4255-8caf-4136c566a962",
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, subject.Order)
}

func TestSubjectCreateRequiresAdmin(t *testing.T) {
	f := newSubjectFixture(&mockAuthz{member: true, admin: false})

	_, err := f.service.Create(context.Background(), CreateSubjectRequest{
		Title:         "Physics",
		EducationYear: "2025",
		SchoolID:      "3b241101-e2bb-4255-8caf-4136c566a962",
	}, "user-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotAdmin.Code, appErr.Code)
}
