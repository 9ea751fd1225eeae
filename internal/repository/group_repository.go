package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

const groupColumns = "id, title, description, subject_id, school_id, created_at, updated_at"

// GroupRepository handles persistence for subject groups and their members.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates a new repository instance.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID returns a group by id.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.GroupOnSubject, error) {
	query := fmt.Sprintf("SELECT %s FROM group_on_subjects WHERE id = $1 LIMIT 1", groupColumns)
	var group models.GroupOnSubject
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group by id: %w", appErrors.FromStore(err, ""))
	}
	return &group, nil
}

// ListBySubject returns every group owned by the subject.
func (r *GroupRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.GroupOnSubject, error) {
	query := fmt.Sprintf("SELECT %s FROM group_on_subjects WHERE subject_id = $1", groupColumns)
	var groups []models.GroupOnSubject
	if err := r.db.SelectContext(ctx, &groups, query, subjectID); err != nil {
		return nil, fmt.Errorf("list groups by subject: %w", appErrors.FromStore(err, ""))
	}
	return groups, nil
}

// Delete removes a group and its member rows. Units and student placements
// belong to the group and go with it.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM student_on_groups WHERE group_on_subject_id = $1`, id); err != nil {
		return fmt.Errorf("delete group students: %w", appErrors.FromStore(err, ""))
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM unit_on_groups WHERE group_on_subject_id = $1`, id); err != nil {
		return fmt.Errorf("delete group units: %w", appErrors.FromStore(err, ""))
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM group_on_subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete group: %w", appErrors.FromStore(err, ""))
	}
	return nil
}
