package models

import "time"

// Subject is a curricular unit within a school. Order values across a
// school's subjects form a contiguous 0-based sequence used for stable list
// presentation.
type Subject struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	EducationYear string    `db:"education_year" json:"education_year"`
	Order         int       `db:"subject_order" json:"order"`
	SchoolID      string    `db:"school_id" json:"school_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// GroupOnSubject is a student grouping owned by a subject and deleted
// transitively with it.
type GroupOnSubject struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherOnSubject links a teaching user to a subject, carrying denormalized
// profile fields.
type TeacherOnSubject struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Photo     string    `db:"photo" json:"photo"`
	BlurHash  string    `db:"blur_hash" json:"blur_hash"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentOnSubject enrolls a student into a subject.
type StudentOnSubject struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Number    string    `db:"number" json:"number"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
