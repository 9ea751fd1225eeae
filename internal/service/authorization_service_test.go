package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

type mockMembershipRepo struct {
	schoolMembers map[string]models.MemberOnSchool
	teamMembers   map[string]models.MemberOnTeam
	schoolCalls   int
	teamCalls     int
}

func (m *mockMembershipRepo) FindSchoolMember(ctx context.Context, userID, schoolID string) (*models.MemberOnSchool, error) {
	m.schoolCalls++
	if member, ok := m.schoolMembers[userID+"|"+schoolID]; ok {
		return &member, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMembershipRepo) FindTeamMember(ctx context.Context, userID, teamID string) (*models.MemberOnTeam, error) {
	m.teamCalls++
	if member, ok := m.teamMembers[userID+"|"+teamID]; ok {
		return &member, nil
	}
	return nil, sql.ErrNoRows
}

type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *mapCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func TestRequireSchoolMemberCachesLookup(t *testing.T) {
	repo := &mockMembershipRepo{
		schoolMembers: map[string]models.MemberOnSchool{
			"user-1|school-1": {ID: "member-1", UserID: "user-1", SchoolID: "school-1", Role: models.MemberRoleMember},
		},
	}
	svc := NewAuthorizationService(repo, newMapCache(), nil, zap.NewNop())

	member, err := svc.RequireSchoolMember(context.Background(), "user-1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, "member-1", member.ID)

	_, err = svc.RequireSchoolMember(context.Background(), "user-1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.schoolCalls)
}

func TestRequireSchoolMemberAbsentForbidden(t *testing.T) {
	svc := NewAuthorizationService(&mockMembershipRepo{}, nil, nil, zap.NewNop())

	_, err := svc.RequireSchoolMember(context.Background(), "user-1", "school-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotMember.Code, appErr.Code)
	assert.Equal(t, 403, appErr.Status)
}

func TestRequireSchoolAdminRejectsPlainMember(t *testing.T) {
	repo := &mockMembershipRepo{
		schoolMembers: map[string]models.MemberOnSchool{
			"user-1|school-1": {UserID: "user-1", SchoolID: "school-1", Role: models.MemberRoleMember},
		},
	}
	svc := NewAuthorizationService(repo, nil, nil, zap.NewNop())

	_, err := svc.RequireSchoolAdmin(context.Background(), "user-1", "school-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotAdmin.Code, appErr.Code)
}

func TestRequireSchoolAdminAllowsAdmin(t *testing.T) {
	repo := &mockMembershipRepo{
		schoolMembers: map[string]models.MemberOnSchool{
			"user-1|school-1": {UserID: "user-1", SchoolID: "school-1", Role: models.MemberRoleAdmin},
		},
	}
	svc := NewAuthorizationService(repo, nil, nil, zap.NewNop())

	member, err := svc.RequireSchoolAdmin(context.Background(), "user-1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleAdmin, member.Role)
}

func TestRequireTeamMember(t *testing.T) {
	repo := &mockMembershipRepo{
		teamMembers: map[string]models.MemberOnTeam{
			"user-1|team-1": {UserID: "user-1", TeamID: "team-1"},
		},
	}
	svc := NewAuthorizationService(repo, newMapCache(), nil, zap.NewNop())

	ok, err := svc.RequireTeamMember(context.Background(), "user-1", "team-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.RequireTeamMember(context.Background(), "user-1", "team-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, repo.teamCalls)

	_, err = svc.RequireTeamMember(context.Background(), "user-2", "team-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotMember.Code, appErr.Code)
}

func TestInvalidateUserDropsCachedMemberships(t *testing.T) {
	repo := &mockMembershipRepo{
		schoolMembers: map[string]models.MemberOnSchool{
			"user-1|school-1": {UserID: "user-1", SchoolID: "school-1", Role: models.MemberRoleMember},
		},
	}
	cache := newMapCache()
	svc := NewAuthorizationService(repo, cache, nil, zap.NewNop())

	_, err := svc.RequireSchoolMember(context.Background(), "user-1", "school-1")
	require.NoError(t, err)
	assert.Len(t, cache.entries, 1)

	svc.InvalidateUser(context.Background(), "user-1")
	assert.Empty(t, cache.entries)

	_, err = svc.RequireSchoolMember(context.Background(), "user-1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.schoolCalls)
}
