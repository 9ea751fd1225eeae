package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

// bcryptCost matches the cost the rest of the platform hashes with.
const bcryptCost = 10

// verifyTokenTTL bounds how long an emailed verification link stays valid.
const verifyTokenTTL = 24 * time.Hour

// resendCooldown throttles repeated verification emails per account.
const resendCooldown = time.Minute

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	SearchVerifiedByEmail(ctx context.Context, fragment string, limit int) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastActive(ctx context.Context, id string) error
}

type profileMembershipRepository interface {
	UpdateSchoolMemberProfiles(ctx context.Context, userID string, profile models.UserProfile) error
	UpdateTeamMemberProfiles(ctx context.Context, userID string, profile models.UserProfile) error
}

type profileEnrollmentRepository interface {
	UpdateTeacherProfiles(ctx context.Context, userID string, profile models.UserProfile) error
}

type profileCommentRepository interface {
	UpdateCommentAuthorProfile(ctx context.Context, userID string, profile models.UserProfile) error
}

type verifyMailer interface {
	SendVerifyEmail(ctx context.Context, toEmail, toName, token string) error
}

type membershipInvalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

// UpdateUserRequest is a patch over the account's profile fields. Nil fields
// stay untouched.
type UpdateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Photo     *string `json:"photo" validate:"omitempty,url"`
	BlurHash  *string `json:"blur_hash" validate:"omitempty"`
}

// UpdatePasswordRequest carries the credential change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// UserService manages account state: profile updates with denormalized
// propagation, password changes, verification email flow, and search.
type UserService struct {
	users       userRepository
	memberships profileMembershipRepository
	enrollments profileEnrollmentRepository
	comments    profileCommentRepository
	mailer      verifyMailer
	authz       membershipInvalidator
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewUserService wires the account manager. Mailer and authz may be nil.
func NewUserService(
	users userRepository,
	memberships profileMembershipRepository,
	enrollments profileEnrollmentRepository,
	comments profileCommentRepository,
	mailer verifyMailer,
	authz membershipInvalidator,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       users,
		memberships: memberships,
		enrollments: enrollments,
		comments:    comments,
		mailer:      mailer,
		authz:       authz,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Get returns the account and refreshes its activity timestamp.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLastActive(ctx, userID); err != nil {
		s.logger.Warn("failed to touch last active", zap.String("user_id", userID), zap.Error(err))
	}
	return user, nil
}

// Update applies a profile patch. Changing the email resets verification
// state and triggers a new verification email; afterwards the denormalized
// profile copies on memberships, rosters, and comments are rewritten best
// effort.
func (s *UserService) Update(ctx context.Context, req UpdateUserRequest, userID string) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.Photo != nil && (req.BlurHash == nil || *req.BlurHash == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "blurHash is required when photo is provided")
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Email != nil && *req.Email == user.Email {
		return nil, appErrors.Clone(appErrors.ErrValidation, "can't update email to the same email")
	}

	emailChanged := req.Email != nil
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Photo != nil {
		user.Photo = *req.Photo
	}
	if req.BlurHash != nil {
		user.BlurHash = *req.BlurHash
	}

	var verifyToken string
	if emailChanged {
		verifyToken = uuid.NewString()
		expires := time.Now().UTC().Add(verifyTokenTTL)
		user.IsVerifyEmail = false
		user.VerifyEmailToken = &verifyToken
		user.VerifyEmailTokenExpiresAt = &expires
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if emailChanged && s.mailer != nil {
		if err := s.mailer.SendVerifyEmail(ctx, user.Email, user.FirstName, verifyToken); err != nil {
			s.logger.Error("failed to send verification email",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	if outcome := s.propagateProfile(ctx, user); !outcome.Ok() {
		s.logger.Warn("profile propagation partially failed",
			zap.String("user_id", userID),
			zap.Any("failures", outcome.Failures))
	}
	if s.authz != nil {
		s.authz.InvalidateUser(ctx, userID)
	}

	return user, nil
}

// UpdatePassword verifies the current credential and stores a fresh hash.
// Reset-token fields are left untouched on this path.
func (s *UserService) UpdatePassword(ctx context.Context, req UpdatePasswordRequest, userID string) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrWrongPassword, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return nil, err
	}
	user.Password = string(hash)
	return user, nil
}

// ResendVerifyEmail issues a fresh verification token and email, throttled
// to one request per minute per account.
func (s *UserService) ResendVerifyEmail(ctx context.Context, userID string) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsVerifyEmail {
		return appErrors.Clone(appErrors.ErrValidation, "email is already verified")
	}
	if time.Since(user.UpdatedAt) < resendCooldown {
		return appErrors.Clone(appErrors.ErrValidation, "please wait 1 minute before requesting another email")
	}

	token := uuid.NewString()
	expires := time.Now().UTC().Add(verifyTokenTTL)
	user.VerifyEmailToken = &token
	user.VerifyEmailTokenExpiresAt = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendVerifyEmail(ctx, user.Email, user.FirstName, token); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send verification email")
	}
	return nil
}

// SearchByEmail returns up to five verified accounts whose email contains
// the fragment. Credential and token fields are cleared from the results.
func (s *UserService) SearchByEmail(ctx context.Context, fragment string) ([]models.User, error) {
	if fragment == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}

	users, err := s.users.SearchVerifiedByEmail(ctx, fragment, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search users")
	}

	for i := range users {
		users[i].Password = ""
		users[i].VerifyEmailToken = nil
		users[i].VerifyEmailTokenExpiresAt = nil
		users[i].ResetPasswordToken = nil
		users[i].ResetPasswordTokenExpiresAt = nil
	}
	return users, nil
}

// propagateProfile rewrites the denormalized profile columns on every table
// that copies them, concurrently and best effort.
func (s *UserService) propagateProfile(ctx context.Context, user *models.User) models.PartialOutcome {
	profile := user.Profile()
	targets := []struct {
		name string
		fn   func(context.Context, string, models.UserProfile) error
	}{
		{"member_on_schools", s.memberships.UpdateSchoolMemberProfiles},
		{"member_on_teams", s.memberships.UpdateTeamMemberProfiles},
		{"teacher_on_subjects", s.enrollments.UpdateTeacherProfiles},
		{"comment_on_assignments", s.comments.UpdateCommentAuthorProfile},
	}

	outcome := models.PartialOutcome{Total: len(targets)}
	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, target := range targets {
		wg.Add(1)
		go func(index int, fn func(context.Context, string, models.UserProfile) error) {
			defer wg.Done()
			errs[index] = fn(ctx, user.ID, profile)
		}(i, target.fn)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			outcome.Failures = append(outcome.Failures, models.ItemFailure{ID: targets[i].name, Reason: err.Error()})
		}
	}
	return outcome
}

func (s *UserService) load(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
