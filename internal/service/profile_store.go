package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

type profileRepository interface {
	Find(ctx context.Context, accountID string, kind models.ProfileKind) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
}

// ProfileStore reads and writes extended profiles on behalf of an explicit identity.
// The user-mutable profile may only be touched acting as its owner; the system profile
// needs an identity with provisioning permission.
type ProfileStore struct {
	repo   profileRepository
	logger *zap.Logger
}

// NewProfileStore constructs a ProfileStore.
func NewProfileStore(repo profileRepository, logger *zap.Logger) *ProfileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileStore{repo: repo, logger: logger}
}

// GetOrCreate loads the profile of kind for account, creating it with default privacy flags
// when it does not exist yet.
func (s *ProfileStore) GetOrCreate(ctx context.Context, actingAs models.Identity, account *models.Account, kind models.ProfileKind) (*models.Profile, error) {
	if err := authorizeProfile(actingAs, account.ID, kind); err != nil {
		return nil, err
	}

	profile, err := s.repo.Find(ctx, account.ID, kind)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	updatedBy := actingAs.Login
	profile = &models.Profile{
		AccountID:       account.ID,
		Kind:            kind,
		HidePrivateInfo: true,
		HidePublicInfo:  false,
		UpdatedBy:       &updatedBy,
	}
	if account.Email != "" {
		mail := account.Email
		profile.Mail = &mail
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	s.logger.Debug("created profile", zap.String("account_id", account.ID), zap.String("kind", string(kind)))

	// A concurrent writer may have won the insert; reload the stored row.
	stored, err := s.repo.Find(ctx, account.ID, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return stored, nil
}

// Save persists profile, stamping the acting identity.
func (s *ProfileStore) Save(ctx context.Context, actingAs models.Identity, profile *models.Profile) error {
	if err := authorizeProfile(actingAs, profile.AccountID, profile.Kind); err != nil {
		return err
	}
	updatedBy := actingAs.Login
	profile.UpdatedBy = &updatedBy
	if err := s.repo.Update(ctx, profile); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save profile")
	}
	return nil
}

func authorizeProfile(actingAs models.Identity, accountID string, kind models.ProfileKind) error {
	switch kind {
	case models.ProfileUser:
		if actingAs.AccountID != accountID {
			return appErrors.Clone(appErrors.ErrNoPermission, "user profile may only be changed by its owner")
		}
	case models.ProfileSystem:
		if !actingAs.CanProvision {
			return appErrors.Clone(appErrors.ErrNoPermission, "system profile requires provisioning permission")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown profile kind")
	}
	return nil
}
