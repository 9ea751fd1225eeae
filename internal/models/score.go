package models

import "time"

// ScoreOnSubject is a reusable score category defined on a subject.
type ScoreOnSubject struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Score     float64   `db:"score" json:"score"`
	Icon      string    `db:"icon" json:"icon"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreOnStudent is a score awarded to one enrolled student.
type ScoreOnStudent struct {
	ID                 string    `db:"id" json:"id"`
	Title              string    `db:"title" json:"title"`
	Score              float64   `db:"score" json:"score"`
	StudentOnSubjectID string    `db:"student_on_subject_id" json:"student_on_subject_id"`
	ScoreOnSubjectID   string    `db:"score_on_subject_id" json:"score_on_subject_id"`
	SubjectID          string    `db:"subject_id" json:"subject_id"`
	SchoolID           string    `db:"school_id" json:"school_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// GradeRange maps accumulated scores to letter grades for one subject.
type GradeRange struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Ranges    string    `db:"ranges" json:"ranges"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentScoreSummary aggregates awarded scores per enrolled student, used by
// the score report export.
type StudentScoreSummary struct {
	StudentOnSubjectID string  `db:"student_on_subject_id" json:"student_on_subject_id"`
	FirstName          string  `db:"first_name" json:"first_name"`
	LastName           string  `db:"last_name" json:"last_name"`
	Number             string  `db:"number" json:"number"`
	TotalScore         float64 `db:"total_score" json:"total_score"`
}
