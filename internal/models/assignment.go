package models

import "time"

// FileContentType distinguishes uploaded files from inline text bodies on
// student work.
type FileContentType string

const (
	ContentTypeFile FileContentType = "FILE"
	ContentTypeText FileContentType = "TEXT"
)

// Assignment is a task published on a subject.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FileOnAssignment references an object-store file attached to an assignment.
type FileOnAssignment struct {
	ID           string    `db:"id" json:"id"`
	URL          string    `db:"url" json:"url"`
	Type         string    `db:"type" json:"type"`
	Size         int64     `db:"size" json:"size"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// FileOnStudentAssignment is a student submission artifact. Body holds the
// object-store path when ContentType is FILE, otherwise inline text.
type FileOnStudentAssignment struct {
	ID                    string          `db:"id" json:"id"`
	Body                  string          `db:"body" json:"body"`
	ContentType           FileContentType `db:"content_type" json:"content_type"`
	StudentOnAssignmentID string          `db:"student_on_assignment_id" json:"student_on_assignment_id"`
	SubjectID             string          `db:"subject_id" json:"subject_id"`
	SchoolID              string          `db:"school_id" json:"school_id"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}

// StudentOnAssignment tracks a student's participation in an assignment.
type StudentOnAssignment struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	Score        *float64  `db:"score" json:"score,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CommentOnAssignment is a discussion entry on an assignment carrying the
// author's denormalized profile fields.
type CommentOnAssignment struct {
	ID           string    `db:"id" json:"id"`
	Content      string    `db:"content" json:"content"`
	UserID       string    `db:"user_id" json:"user_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	Photo        string    `db:"photo" json:"photo"`
	BlurHash     string    `db:"blur_hash" json:"blur_hash"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SkillOnAssignment tags an assignment with a skill.
type SkillOnAssignment struct {
	ID           string    `db:"id" json:"id"`
	SkillID      string    `db:"skill_id" json:"skill_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SkillOnStudentAssignment records a skill evaluation for a student's work.
type SkillOnStudentAssignment struct {
	ID                    string    `db:"id" json:"id"`
	SkillID               string    `db:"skill_id" json:"skill_id"`
	StudentOnAssignmentID string    `db:"student_on_assignment_id" json:"student_on_assignment_id"`
	SubjectID             string    `db:"subject_id" json:"subject_id"`
	Weight                float64   `db:"weight" json:"weight"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}
