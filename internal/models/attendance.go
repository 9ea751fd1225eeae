package models

import "time"

// AttendanceTable groups attendance rows for a subject.
type AttendanceTable struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceRow is one dated session within an attendance table.
type AttendanceRow struct {
	ID                string    `db:"id" json:"id"`
	StartDate         time.Time `db:"start_date" json:"start_date"`
	EndDate           time.Time `db:"end_date" json:"end_date"`
	Note              string    `db:"note" json:"note"`
	AttendanceTableID string    `db:"attendance_table_id" json:"attendance_table_id"`
	SubjectID         string    `db:"subject_id" json:"subject_id"`
	SchoolID          string    `db:"school_id" json:"school_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Attendance marks a student's status for one row.
type Attendance struct {
	ID                 string    `db:"id" json:"id"`
	Status             string    `db:"status" json:"status"`
	Note               string    `db:"note" json:"note"`
	AttendanceRowID    string    `db:"attendance_row_id" json:"attendance_row_id"`
	StudentOnSubjectID string    `db:"student_on_subject_id" json:"student_on_subject_id"`
	SubjectID          string    `db:"subject_id" json:"subject_id"`
	SchoolID           string    `db:"school_id" json:"school_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceStatusList defines the selectable statuses for a subject's
// attendance tables.
type AttendanceStatusList struct {
	ID                string    `db:"id" json:"id"`
	Title             string    `db:"title" json:"title"`
	Value             int       `db:"value" json:"value"`
	Color             string    `db:"color" json:"color"`
	AttendanceTableID string    `db:"attendance_table_id" json:"attendance_table_id"`
	SubjectID         string    `db:"subject_id" json:"subject_id"`
	SchoolID          string    `db:"school_id" json:"school_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
