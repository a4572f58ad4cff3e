package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/spml-provisioner/internal/models"
	"github.com/noah-isme/spml-provisioner/pkg/ids"
)

// RequestLogRepository persists the raw request audit log and the student update queue.
type RequestLogRepository struct {
	db *sqlx.DB
}

// NewRequestLogRepository creates a new instance of RequestLogRepository.
func NewRequestLogRepository(db *sqlx.DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Insert appends a request to spml_log.
func (r *RequestLogRepository) Insert(ctx context.Context, entry *models.RequestLog) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO spml_log (id, spml_type, spml_body, user_eid, created_at) VALUES (:id, :spml_type, :spml_body, :user_eid, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// FlagUpdatedUser queues a login for the downstream enrollment job unless already queued.
func (r *RequestLogRepository) FlagUpdatedUser(ctx context.Context, login string, at time.Time) (bool, error) {
	const query = `INSERT INTO spml_updated_users (user_eid, date_queued) VALUES ($1, $2) ON CONFLICT (user_eid) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, login, at)
	if err != nil {
		return false, fmt.Errorf("flag updated user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("flag updated user rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteOlderThan prunes log rows created before cutoff.
func (r *RequestLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM spml_log WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune request log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune request log rows affected: %w", err)
	}
	return affected, nil
}

// ListByLogin returns the most recent requests logged for a login.
func (r *RequestLogRepository) ListByLogin(ctx context.Context, login string, limit int) ([]models.RequestLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, spml_type, spml_body, user_eid, created_at FROM spml_log WHERE user_eid = $1 ORDER BY id DESC LIMIT $2`
	var entries []models.RequestLog
	if err := r.db.SelectContext(ctx, &entries, query, login, limit); err != nil {
		return nil, fmt.Errorf("list request log: %w", err)
	}
	return entries, nil
}
