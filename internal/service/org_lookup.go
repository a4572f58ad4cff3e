package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

type orgStore interface {
	FindByUnit(ctx context.Context, unit int) (*models.OrgUnit, error)
	InsertPlaceholder(ctx context.Context, unit int, description string) (bool, error)
}

// OrgLookupService resolves numeric org units to their three-letter codes.
type OrgLookupService struct {
	store   orgStore
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewOrgLookupService constructs an OrgLookupService. cache may be nil.
func NewOrgLookupService(store orgStore, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *OrgLookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrgLookupService{store: store, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// ResolveCode returns the code for orgUnit, or "" when the unit is unknown or has no code
// yet. Unknown units are registered with orgName as their description.
func (s *OrgLookupService) ResolveCode(ctx context.Context, orgUnit, orgName string) (string, error) {
	if orgUnit == "" {
		return "", nil
	}
	unit, err := strconv.Atoi(orgUnit)
	if err != nil {
		s.logger.Warn("non-numeric org unit", zap.String("org_unit", orgUnit))
		return "", nil
	}

	key := orgCacheKey(unit)
	var cached models.OrgUnit
	hit, err := s.cache.Get(ctx, key, &cached)
	switch {
	case err != nil:
		// an unreadable entry would otherwise shadow the row until its TTL runs out
		_ = s.cache.Invalidate(ctx, key)
	case hit && cached.Code != nil:
		return *cached.Code, nil
	}

	start := time.Now()
	org, err := s.store.FindByUnit(ctx, unit)
	s.metrics.ObserveDBQuery("org_lookup", time.Since(start))
	switch {
	case err == nil:
		if org.Code == nil {
			return "", nil
		}
		_ = s.cache.Set(ctx, key, org, s.ttl)
		return *org.Code, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up org unit")
	}

	s.logger.Info("unknown org unit, adding", zap.Int("org_unit", unit), zap.String("description", orgName))
	if _, err := s.store.InsertPlaceholder(ctx, unit, orgName); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register org unit")
	}
	return "", nil
}

func orgCacheKey(unit int) string {
	return "spml:org:" + strconv.Itoa(unit)
}
