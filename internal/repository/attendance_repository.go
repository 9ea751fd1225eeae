package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

// AttendanceRepository handles persistence for attendance tables, rows,
// statuses, and marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new repository instance.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// DeleteAttendancesBySubject removes student attendance marks.
func (r *AttendanceRepository) DeleteAttendancesBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "attendances", subjectID)
}

// DeleteStatusListsBySubject removes the configurable status entries.
func (r *AttendanceRepository) DeleteStatusListsBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "attendance_status_lists", subjectID)
}

// DeleteRowsBySubject removes dated attendance sessions.
func (r *AttendanceRepository) DeleteRowsBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "attendance_rows", subjectID)
}

// DeleteTablesBySubject removes the attendance tables themselves.
func (r *AttendanceRepository) DeleteTablesBySubject(ctx context.Context, subjectID string) error {
	return r.deleteBySubject(ctx, "attendance_tables", subjectID)
}

func (r *AttendanceRepository) deleteBySubject(ctx context.Context, table, subjectID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE subject_id = $1", table)
	if _, err := r.db.ExecContext(ctx, query, subjectID); err != nil {
		return fmt.Errorf("delete %s by subject: %w", table, appErrors.FromStore(err, ""))
	}
	return nil
}
