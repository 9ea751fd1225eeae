package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

// ScoreRepository handles persistence for scores and grade ranges.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new repository instance.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// DeleteStudentScoresBySubject removes scores awarded to students.
func (r *ScoreRepository) DeleteStudentScoresBySubject(ctx context.Context, subjectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM score_on_students WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete student scores by subject: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// DeleteSubjectScoresBySubject removes the subject's score categories.
func (r *ScoreRepository) DeleteSubjectScoresBySubject(ctx context.Context, subjectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM score_on_subjects WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete subject scores by subject: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// DeleteGradeRangeBySubject removes the subject's grade range mapping.
// Missing ranges are a no-op so the cleanup job stays idempotent.
func (r *ScoreRepository) DeleteGradeRangeBySubject(ctx context.Context, subjectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grade_ranges WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete grade range by subject: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// SummarizeBySubject aggregates awarded scores per enrolled student, ordered
// by student number for stable report output.
func (r *ScoreRepository) SummarizeBySubject(ctx context.Context, subjectID string) ([]models.StudentScoreSummary, error) {
	const query = `
		SELECT sos.id AS student_on_subject_id,
		       sos.first_name,
		       sos.last_name,
		       sos.number,
		       COALESCE(SUM(s.score), 0) AS total_score
		FROM student_on_subjects sos
		LEFT JOIN score_on_students s ON s.student_on_subject_id = sos.id
		WHERE sos.subject_id = $1
		GROUP BY sos.id, sos.first_name, sos.last_name, sos.number
		ORDER BY sos.number ASC`
	var summaries []models.StudentScoreSummary
	if err := r.db.SelectContext(ctx, &summaries, query, subjectID); err != nil {
		return nil, fmt.Errorf("summarize scores by subject: %w", appErrors.FromStore(err, ""))
	}
	return summaries, nil
}
