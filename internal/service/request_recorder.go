package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

type requestLogStore interface {
	Insert(ctx context.Context, entry *models.RequestLog) error
	FlagUpdatedUser(ctx context.Context, login string, at time.Time) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListByLogin(ctx context.Context, login string, limit int) ([]models.RequestLog, error)
}

// RequestRecorder keeps the raw request audit log and the student update queue.
// Recording never fails a request.
type RequestRecorder struct {
	store  requestLogStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRequestRecorder constructs a RequestRecorder.
func NewRequestRecorder(store requestLogStore, logger *zap.Logger, now func() time.Time) *RequestRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &RequestRecorder{store: store, logger: logger, now: now}
}

// Record appends the raw request. An empty login is stored as "null".
func (r *RequestRecorder) Record(ctx context.Context, requestType, rawBody, login string) {
	if login == "" {
		login = models.NullLogin
	}
	entry := &models.RequestLog{Type: requestType, Body: rawBody, Login: login, CreatedAt: r.now().UTC()}
	if err := r.store.Insert(ctx, entry); err != nil {
		r.logger.Warn("failed to record request",
			zap.String("login", login),
			zap.String("operation", requestType),
			zap.Error(err),
		)
	}
}

// FlagStudentUpdate queues login for the downstream enrollment job.
func (r *RequestRecorder) FlagStudentUpdate(ctx context.Context, login string) {
	queued, err := r.store.FlagUpdatedUser(ctx, login, r.now().UTC())
	if err != nil {
		r.logger.Warn("failed to flag student update", zap.String("login", login), zap.Error(err))
		return
	}
	if queued {
		r.logger.Debug("student queued for enrollment update", zap.String("login", login))
	}
}

// Prune deletes log rows older than retention.
func (r *RequestRecorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-retention)
	removed, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune request log")
	}
	r.logger.Info("pruned request log", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	return removed, nil
}

// History lists the latest requests logged for login.
func (r *RequestRecorder) History(ctx context.Context, login string, limit int) ([]models.RequestLog, error) {
	entries, err := r.store.ListByLogin(ctx, login, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list request log")
	}
	return entries, nil
}
