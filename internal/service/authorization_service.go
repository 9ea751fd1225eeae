package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

type membershipRepository interface {
	FindSchoolMember(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error)
	FindTeamMember(ctx context.Context, userID, teamID string) (*models.MemberOnTeam, error)
}

type membershipCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// membershipCacheTTL keeps authorization lookups cheap without letting role
// changes go stale for long.
const membershipCacheTTL = 2 * time.Minute

// AuthorizationService answers membership and role questions for school and
// team scoped operations.
type AuthorizationService struct {
	repo    membershipRepository
	cache   membershipCache
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuthorizationService creates an authorization service. Cache and
// metrics may be nil.
func NewAuthorizationService(repo membershipRepository, cache membershipCache, metrics *MetricsService, logger *zap.Logger) *AuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// RequireSchoolMember returns the membership row for any role, or a
// forbidden error when the user does not belong to the school.
func (s *AuthorizationService) RequireSchoolMember(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error) {
	member, err := s.schoolMember(ctx, userID, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotMember, "access denied: user is not a member of the school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school membership")
	}
	return member, nil
}

// RequireSchoolAdmin returns the membership row when the user holds the
// ADMIN role on the school.
func (s *AuthorizationService) RequireSchoolAdmin(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error) {
	member, err := s.RequireSchoolMember(ctx, userID, schoolID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.MemberRoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotAdmin, "access denied: user is not an admin")
	}
	return member, nil
}

// RequireTeamMember reports whether the user belongs to the team, returning
// a forbidden error when absent.
func (s *AuthorizationService) RequireTeamMember(ctx context.Context, userID, teamID string) (bool, error) {
	key := fmt.Sprintf("membership:team:%s:%s", userID, teamID)
	if s.cache != nil {
		var cached models.MemberOnTeam
		start := time.Now()
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(start))
			return true, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(start))
	}

	member, err := s.repo.FindTeamMember(ctx, userID, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotMember, "access denied: user is not a member of the team")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team membership")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, member, membershipCacheTTL); err != nil {
			s.logger.Warn("failed to cache team membership", zap.Error(err))
		}
	}
	return true, nil
}

// InvalidateUser drops cached memberships for the user, called after profile
// propagation rewrites the denormalized rows.
func (s *AuthorizationService) InvalidateUser(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{
		fmt.Sprintf("membership:school:%s:*", userID),
		fmt.Sprintf("membership:team:%s:*", userID),
	} {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate membership cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (s *AuthorizationService) schoolMember(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error) {
	key := fmt.Sprintf("membership:school:%s:%s", userID, schoolID)
	if s.cache != nil {
		var cached models.MemberOnSchool
		start := time.Now()
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(start))
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(start))
	}

	member, err := s.repo.FindSchoolMember(ctx, userID, schoolID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, member, membershipCacheTTL); err != nil {
			s.logger.Warn("failed to cache school membership", zap.Error(err))
		}
	}
	return member, nil
}
