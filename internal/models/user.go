package models

import "time"

// User represents an account stored in the users table. Password and token
// columns never serialize to JSON.
type User struct {
	ID                          string     `db:"id" json:"id"`
	Email                       string     `db:"email" json:"email"`
	Password                    string     `db:"password" json:"-"`
	FirstName                   string     `db:"first_name" json:"first_name"`
	LastName                    string     `db:"last_name" json:"last_name"`
	Phone                       string     `db:"phone" json:"phone"`
	Photo                       string     `db:"photo" json:"photo"`
	BlurHash                    string     `db:"blur_hash" json:"blur_hash"`
	IsVerifyEmail               bool       `db:"is_verify_email" json:"is_verify_email"`
	VerifyEmailToken            *string    `db:"verify_email_token" json:"-"`
	VerifyEmailTokenExpiresAt   *time.Time `db:"verify_email_token_expires_at" json:"-"`
	ResetPasswordToken          *string    `db:"reset_password_token" json:"-"`
	ResetPasswordTokenExpiresAt *time.Time `db:"reset_password_token_expires_at" json:"-"`
	LastActiveAt                time.Time  `db:"last_active_at" json:"last_active_at"`
	CreatedAt                   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                   time.Time  `db:"updated_at" json:"updated_at"`
}

// UserProfile carries the denormalized profile columns that membership and
// comment rows copy from their owning user.
type UserProfile struct {
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
	Photo     string `db:"photo"`
	BlurHash  string `db:"blur_hash"`
}

// Profile extracts the denormalized profile fields from the user.
func (u *User) Profile() UserProfile {
	return UserProfile{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Photo:     u.Photo,
		BlurHash:  u.BlurHash,
	}
}
