package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

// EnrollmentRepository handles the student and teacher rosters attached to
// subjects.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// DeleteStudentsBySubject removes student enrollments for the subject.
func (r *EnrollmentRepository) DeleteStudentsBySubject(ctx context.Context, subjectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM student_on_subjects WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete student enrollments by subject: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// DeleteTeachersBySubject removes teacher roster rows for the subject.
func (r *EnrollmentRepository) DeleteTeachersBySubject(ctx context.Context, subjectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_on_subjects WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete teacher roster by subject: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// FindTeacherOnSubject returns the roster row linking a user to a subject.
func (r *EnrollmentRepository) FindTeacherOnSubject(ctx context.Context, userID, subjectID string) (*models.TeacherOnSubject, error) {
	const query = `SELECT id, user_id, subject_id, school_id, first_name, last_name, email, phone, photo, blur_hash, created_at, updated_at FROM teacher_on_subjects WHERE user_id = $1 AND subject_id = $2 LIMIT 1`
	var row models.TeacherOnSubject
	if err := r.db.GetContext(ctx, &row, query, userID, subjectID); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateTeacherProfiles syncs denormalized profile fields on every teacher
// roster row owned by the user.
func (r *EnrollmentRepository) UpdateTeacherProfiles(ctx context.Context, userID string, profile models.UserProfile) error {
	const query = `UPDATE teacher_on_subjects SET first_name = $2, last_name = $3, email = $4, phone = $5, photo = $6, blur_hash = $7, updated_at = $8 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, profile.FirstName, profile.LastName, profile.Email, profile.Phone, profile.Photo, profile.BlurHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update teacher roster profile: %w", appErrors.FromStore(err, ""))
	}
	return nil
}
