package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

// AssignmentRepository handles persistence for assignments and the records
// hanging off them: files, submissions, comments, and skill links.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new repository instance.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListFilesBySubject returns every assignment file scoped to the subject.
func (r *AssignmentRepository) ListFilesBySubject(ctx context.Context, subjectID string) ([]models.FileOnAssignment, error) {
	const query = `SELECT id, url, type, size, assignment_id, subject_id, school_id, created_at FROM file_on_assignments WHERE subject_id = $1`
	var files []models.FileOnAssignment
	if err := r.db.SelectContext(ctx, &files, query, subjectID); err != nil {
		return nil, fmt.Errorf("list assignment files: %w", appErrors.FromStore(err, ""))
	}
	return files, nil
}

// ListStudentFilesBySubject returns every student submission artifact scoped
// to the subject.
func (r *AssignmentRepository) ListStudentFilesBySubject(ctx context.Context, subjectID string) ([]models.FileOnStudentAssignment, error) {
	const query = `SELECT id, body, content_type, student_on_assignment_id, subject_id, school_id, created_at FROM file_on_student_assignments WHERE subject_id = $1`
	var files []models.FileOnStudentAssignment
	if err := r.db.SelectContext(ctx, &files, query, subjectID); err != nil {
		return nil, fmt.Errorf("list student assignment files: %w", appErrors.FromStore(err, ""))
	}
	return files, nil
}

// DeleteCommentsBySubject removes all assignment comments for the subject.
func (r *AssignmentRepository) DeleteCommentsBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "comment_on_assignments", subjectID)
}

// DeleteFilesByIDs bulk-deletes assignment files by id.
func (r *AssignmentRepository) DeleteFilesByIDs(ctx context.Context, ids []string) error {
	return r.deleteByIDs(ctx, "file_on_assignments", ids)
}

// DeleteStudentFilesByIDs bulk-deletes student submission artifacts by id.
func (r *AssignmentRepository) DeleteStudentFilesByIDs(ctx context.Context, ids []string) error {
	return r.deleteByIDs(ctx, "file_on_student_assignments", ids)
}

// DeleteStudentSkillsBySubject removes skill evaluations on student work.
func (r *AssignmentRepository) DeleteStudentSkillsBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "skill_on_student_assignments", subjectID)
}

// DeleteStudentsBySubject removes student participation rows.
func (r *AssignmentRepository) DeleteStudentsBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "student_on_assignments", subjectID)
}

// DeleteFilesBySubject removes any assignment files still scoped to the
// subject. Idempotent with respect to the bulk id deletes.
func (r *AssignmentRepository) DeleteFilesBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "file_on_assignments", subjectID)
}

// DeleteStudentFilesBySubject removes remaining student submission artifacts.
func (r *AssignmentRepository) DeleteStudentFilesBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "file_on_student_assignments", subjectID)
}

// DeleteSkillsBySubject removes assignment skill tags.
func (r *AssignmentRepository) DeleteSkillsBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "skill_on_assignments", subjectID)
}

// DeleteAssignmentsBySubject removes the assignments themselves.
func (r *AssignmentRepository) DeleteAssignmentsBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "assignments", subjectID)
}

// UpdateCommentAuthorProfile syncs denormalized author fields on every
// comment owned by the user.
func (r *AssignmentRepository) UpdateCommentAuthorProfile(ctx context.Context, userID string, profile models.UserProfile) error {
	const query = `UPDATE comment_on_assignments SET first_name = $2, last_name = $3, email = $4, phone = $5, photo = $6, blur_hash = $7, updated_at = $8 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, profile.FirstName, profile.LastName, profile.Email, profile.Phone, profile.Photo, profile.BlurHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update comment author profile: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

func (r *AssignmentRepository) deleteBySubject(ctx context.Context, table, subjectID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE subject_id = $1", table)
	if _, err := r.db.ExecContext(ctx, query, subjectID); err != nil {
		return fmt.Errorf("delete %s by subject: %w", table, appErrors.FromStore(err, ""))
	}
	return nil
}

func (r *AssignmentRepository) deleteByIDs(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE id IN (?)", table), ids)
	if err != nil {
		return fmt.Errorf("build %s delete query: %w", table, err)
	}
	query = r.db.Rebind(query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s by ids: %w", table, appErrors.FromStore(err, ""))
	}
	return nil
}
