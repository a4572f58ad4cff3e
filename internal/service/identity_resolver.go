package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/models"
	"github.com/noah-isme/spml-provisioner/internal/repository"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

const loginRules = "required,max=99,printascii"

type accountDirectory interface {
	FindByLogin(ctx context.Context, login string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
}

// IdentityResolver finds or creates the account a request is about.
type IdentityResolver struct {
	accounts  accountDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(accounts accountDirectory, validate *validator.Validate, logger *zap.Logger) *IdentityResolver {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{accounts: accounts, validator: validate, logger: logger}
}

// Resolve returns the account for login and whether it was created by this call. A nil account
// with a nil error means the login is unknown and inactive, so nothing should be provisioned.
func (r *IdentityResolver) Resolve(ctx context.Context, actor models.Identity, login, status string) (*models.Account, bool, error) {
	account, err := r.accounts.FindByLogin(ctx, login)
	if err == nil {
		if account.Locked {
			r.logger.Warn("account locked for editing", zap.String("login", login))
			return nil, false, appErrors.Clone(appErrors.ErrUserLocked, "User is locked for editing")
		}
		if !actor.CanProvision {
			r.logger.Error("no permission to edit account", zap.String("login", login), zap.String("actor", actor.Login))
			return nil, false, appErrors.Clone(appErrors.ErrNoPermission, "No permission to edit user")
		}
		return account, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if status == models.StatusInactive {
		r.logger.Info("inactive login unknown, not creating account", zap.String("login", login))
		return nil, false, nil
	}

	if err := r.validateLogin(login); err != nil {
		r.logger.Error("invalid username", zap.String("login", login), zap.Error(err))
		return nil, false, appErrors.Wrap(err, appErrors.ErrInvalidUsername.Code, appErrors.ErrInvalidUsername.Status, "invalid username")
	}
	if !actor.CanProvision {
		r.logger.Error("no permission to add account", zap.String("login", login), zap.String("actor", actor.Login))
		return nil, false, appErrors.Clone(appErrors.ErrNoPermission, "No permission to add user")
	}

	updatedBy := actor.Login
	account = &models.Account{Login: login, UpdatedBy: &updatedBy}
	if err := r.accounts.Create(ctx, account); err != nil {
		if repository.IsUniqueViolation(err) {
			r.logger.Error("account already exists", zap.String("login", login))
			return nil, false, appErrors.Wrap(err, appErrors.ErrUserAlreadyExists.Code, appErrors.ErrUserAlreadyExists.Status, "user already exists")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	r.logger.Info("created account", zap.String("login", login), zap.String("account_id", account.ID))
	return account, true, nil
}

func (r *IdentityResolver) validateLogin(login string) error {
	if strings.ContainsAny(login, " \t\r\n/") {
		return errors.New("login contains whitespace or '/'")
	}
	return r.validator.Var(login, loginRules)
}
