package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/spml-provisioner/internal/models"
)

// OrgRepository reads and self-populates the org unit lookup table.
type OrgRepository struct {
	db *sqlx.DB
}

// NewOrgRepository creates a new instance of OrgRepository.
func NewOrgRepository(db *sqlx.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// FindByUnit returns the lookup row for a numeric org unit.
func (r *OrgRepository) FindByUnit(ctx context.Context, unit int) (*models.OrgUnit, error) {
	const query = `SELECT org_unit, org, description FROM uct_org WHERE org_unit = $1 LIMIT 1`
	var org models.OrgUnit
	if err := r.db.GetContext(ctx, &org, query, unit); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find org unit: %w", err)
	}
	return &org, nil
}

// InsertPlaceholder registers an unknown org unit without a code.
func (r *OrgRepository) InsertPlaceholder(ctx context.Context, unit int, description string) (bool, error) {
	const query = `INSERT INTO uct_org (org_unit, description) VALUES ($1, $2) ON CONFLICT (org_unit) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, unit, description)
	if err != nil {
		return false, fmt.Errorf("insert org placeholder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert org placeholder rows affected: %w", err)
	}
	return affected > 0, nil
}
