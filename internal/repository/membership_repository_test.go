package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatugacamp/school-api/internal/models"
)

func TestFindSchoolMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "school_id", "role", "first_name", "last_name", "email", "phone", "photo", "blur_hash", "created_at", "updated_at"}).
		AddRow("member-1", "user-1", "school-1", "ADMIN", "First", "Last", "a@b.c", "", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, school_id, role, first_name, last_name, email, phone, photo, blur_hash, created_at, updated_at FROM member_on_schools WHERE user_id = $1 AND school_id = $2 LIMIT 1")).
		WithArgs("user-1", "school-1").
		WillReturnRows(rows)

	member, err := repo.FindSchoolMember(context.Background(), "user-1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleAdmin, member.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSchoolMemberAbsentPassesNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectQuery("SELECT .+ FROM member_on_schools").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindSchoolMember(context.Background(), "user-1", "school-1")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSchoolMemberProfiles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE member_on_schools SET first_name = $2, last_name = $3, email = $4, phone = $5, photo = $6, blur_hash = $7, updated_at = $8 WHERE user_id = $1")).
		WithArgs("user-1", "First", "Last", "a@b.c", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.UpdateSchoolMemberProfiles(context.Background(), "user-1", models.UserProfile{
		FirstName: "First", LastName: "Last", Email: "a@b.c",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
