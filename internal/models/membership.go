package models

import "time"

// MemberRole represents the role a user holds within a school.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// MemberOnSchool links a user to a school with a role. Profile columns are
// denormalized from the owning user and kept in sync on profile updates.
type MemberOnSchool struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	SchoolID  string     `db:"school_id" json:"school_id"`
	Role      MemberRole `db:"role" json:"role"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Email     string     `db:"email" json:"email"`
	Phone     string     `db:"phone" json:"phone"`
	Photo     string     `db:"photo" json:"photo"`
	BlurHash  string     `db:"blur_hash" json:"blur_hash"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// MemberOnTeam links a user to a team.
type MemberOnTeam struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	TeamID    string    `db:"team_id" json:"team_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Photo     string    `db:"photo" json:"photo"`
	BlurHash  string    `db:"blur_hash" json:"blur_hash"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
