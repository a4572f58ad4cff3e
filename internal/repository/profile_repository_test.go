package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/spml-provisioner/internal/models"
)

func TestProfileFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "account_id", "kind", "surname", "given_name", "mail", "mobile", "normalized_mobile", "department_number", "organizational_unit", "title", "common_name", "primary_affiliation", "date_of_birth", "hide_private_info", "hide_public_info", "updated_by", "created_at", "updated_at"}).
		AddRow("p1", "a1", string(models.ProfileSystem), "Doe", "Jane", nil, nil, nil, "10001", "STA", nil, "jdoe", "student", nil, true, false, "spml", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + profileColumns + " FROM profiles WHERE account_id = $1 AND kind = $2 LIMIT 1")).
		WithArgs("a1", models.ProfileSystem).
		WillReturnRows(rows)

	profile, err := repo.Find(context.Background(), "a1", models.ProfileSystem)
	require.NoError(t, err)
	require.NotNil(t, profile.Surname)
	assert.Equal(t, "Doe", *profile.Surname)
	assert.Nil(t, profile.Mail)
	assert.True(t, profile.HidePrivateInfo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileCreateIsIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (account_id, kind) DO NOTHING")).WillReturnResult(sqlmock.NewResult(0, 0))

	profile := &models.Profile{AccountID: "a1", Kind: models.ProfileUser}
	require.NoError(t, repo.Create(context.Background(), profile))
	assert.NotEmpty(t, profile.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("UPDATE profiles SET surname").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), &models.Profile{ID: "p1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
