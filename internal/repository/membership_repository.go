package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

// MembershipRepository handles school and team membership rows.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new repository instance.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// FindSchoolMember returns the membership row for (userID, schoolID).
func (r *MembershipRepository) FindSchoolMember(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error) {
	const query = `SELECT id, user_id, school_id, role, first_name, last_name, email, phone, photo, blur_hash, created_at, updated_at FROM member_on_schools WHERE user_id = $1 AND school_id = $2 LIMIT 1`
	var member models.MemberOnSchool
	if err := r.db.GetContext(ctx, &member, query, userID, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find school member: %w", appErrors.FromStore(err, ""))
	}
	return &member, nil
}

// FindTeamMember returns the membership row for (userID, teamID).
func (r *MembershipRepository) FindTeamMember(ctx context.Context, userID, teamID string) (*models.MemberOnTeam, error) {
	const query = `SELECT id, user_id, team_id, first_name, last_name, email, phone, photo, blur_hash, created_at, updated_at FROM member_on_teams WHERE user_id = $1 AND team_id = $2 LIMIT 1`
	var member models.MemberOnTeam
	if err := r.db.GetContext(ctx, &member, query, userID, teamID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find team member: %w", appErrors.FromStore(err, ""))
	}
	return &member, nil
}

// UpdateSchoolMemberProfiles syncs denormalized profile fields on every
// school membership owned by the user.
func (r *MembershipRepository) UpdateSchoolMemberProfiles(ctx context.Context, userID string, profile models.UserProfile) error {
	const query = `UPDATE member_on_schools SET first_name = $2, last_name = $3, email = $4, phone = $5, photo = $6, blur_hash = $7, updated_at = $8 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, profile.FirstName, profile.LastName, profile.Email, profile.Phone, profile.Photo, profile.BlurHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update school member profile: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// UpdateTeamMemberProfiles syncs denormalized profile fields on every team
// membership owned by the user.
func (r *MembershipRepository) UpdateTeamMemberProfiles(ctx context.Context, userID string, profile models.UserProfile) error {
	const query = `UPDATE member_on_teams SET first_name = $2, last_name = $3, email = $4, phone = $5, photo = $6, blur_hash = $7, updated_at = $8 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, profile.FirstName, profile.LastName, profile.Email, profile.Phone, profile.Photo, profile.BlurHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update team member profile: %w", appErrors.FromStore(err, ""))
	}
	return nil
}
