package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

const subjectColumns = "id, title, description, education_year, subject_order, school_id, created_at, updated_at"

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1 LIMIT 1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", appErrors.FromStore(err, ""))
	}
	return &subject, nil
}

// ListBySchool returns a school's subjects ordered by their dense order value.
func (r *SubjectRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE school_id = $1 ORDER BY subject_order ASC", subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, schoolID); err != nil {
		return nil, fmt.Errorf("list subjects by school: %w", appErrors.FromStore(err, ""))
	}
	return subjects, nil
}

// ListByIDs returns the subjects matching the given ids ordered by their
// order value.
func (r *SubjectRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM subjects WHERE id IN (?) ORDER BY subject_order ASC", subjectColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build subjects by ids query: %w", err)
	}
	query = r.db.Rebind(query)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects by ids: %w", appErrors.FromStore(err, ""))
	}
	return subjects, nil
}

// MaxOrder returns the highest order value among a school's subjects, or -1
// when the school has none.
func (r *SubjectRepository) MaxOrder(ctx context.Context, schoolID string) (int, error) {
	const query = `SELECT COALESCE(MAX(subject_order), -1) FROM subjects WHERE school_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, schoolID); err != nil {
		return 0, fmt.Errorf("max subject order: %w", appErrors.FromStore(err, ""))
	}
	return max, nil
}

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, title, description, education_year, subject_order, school_id, created_at, updated_at) VALUES (:id, :title, :description, :education_year, :subject_order, :school_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", appErrors.FromStore(err, "subject order already taken"))
	}
	return nil
}

// Update modifies a subject's descriptive fields.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET title = :title, description = :description, education_year = :education_year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// UpdateOrder assigns the given order value to one subject.
func (r *SubjectRepository) UpdateOrder(ctx context.Context, id string, order int) error {
	const query = `UPDATE subjects SET subject_order = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, order, time.Now().UTC()); err != nil {
		return fmt.Errorf("update subject order: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// Delete removes the subject row and returns the deleted record.
func (r *SubjectRepository) Delete(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("DELETE FROM subjects WHERE id = $1 RETURNING %s", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("delete subject: %w", appErrors.FromStore(err, ""))
	}
	return &subject, nil
}
