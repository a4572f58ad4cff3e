package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/spml-provisioner/internal/models"
)

const profileColumns = `id, account_id, kind, surname, given_name, mail, mobile, normalized_mobile, department_number, organizational_unit, title, common_name, primary_affiliation, date_of_birth, hide_private_info, hide_public_info, updated_by, created_at, updated_at`

// ProfileRepository persists extended person profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Find returns the profile of the given kind for an account.
func (r *ProfileRepository) Find(ctx context.Context, accountID string, kind models.ProfileKind) (*models.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE account_id = $1 AND kind = $2 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, accountID, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

// Create inserts a profile unless one of the same kind already exists.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO profiles (` + profileColumns + `) VALUES (:id, :account_id, :kind, :surname, :given_name, :mail, :mobile, :normalized_mobile, :department_number, :organizational_unit, :title, :common_name, :primary_affiliation, :date_of_birth, :hide_private_info, :hide_public_info, :updated_by, :created_at, :updated_at) ON CONFLICT (account_id, kind) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Update writes every mutable profile column.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET surname = :surname, given_name = :given_name, mail = :mail, mobile = :mobile, normalized_mobile = :normalized_mobile, department_number = :department_number, organizational_unit = :organizational_unit, title = :title, common_name = :common_name, primary_affiliation = :primary_affiliation, date_of_birth = :date_of_birth, hide_private_info = :hide_private_info, hide_public_info = :hide_public_info, updated_by = :updated_by, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}
