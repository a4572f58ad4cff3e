package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

type credentialStore interface {
	FindByLogin(ctx context.Context, login string) (*models.Account, error)
}

// AuthConfig configures feed authentication.
type AuthConfig struct {
	ServiceLogin string
	Secret       string
	Expiry       time.Duration
	Issuer       string
}

// AuthService authenticates the provisioning feed and mints its bearer tokens.
type AuthService struct {
	accounts credentialStore
	config   AuthConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService. accounts may be nil for token minting only.
func NewAuthService(accounts credentialStore, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 365 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "spml-provisioner"
	}
	cfg.ServiceLogin = strings.ToLower(cfg.ServiceLogin)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{accounts: accounts, config: cfg, logger: logger, now: time.Now}
}

// ServiceLogin is the login the feed authenticates as.
func (s *AuthService) ServiceLogin() string {
	return s.config.ServiceLogin
}

// AuthenticateBasic checks login and password against the stored bcrypt hash.
func (s *AuthService) AuthenticateBasic(ctx context.Context, login, password string) (models.Identity, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	account, err := s.accounts.FindByLogin(ctx, login)
	if err != nil {
		s.logger.Warn("feed login failed", zap.String("login", login), zap.Error(err))
		return models.Identity{}, appErrors.Clone(appErrors.ErrLoginFailure, "")
	}
	if account.PasswordHash == nil || account.Locked {
		s.logger.Warn("feed login failed", zap.String("login", login), zap.String("reason", "no password or locked"))
		return models.Identity{}, appErrors.Clone(appErrors.ErrLoginFailure, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("feed login failed", zap.String("login", login), zap.String("reason", "bad password"))
		return models.Identity{}, appErrors.Clone(appErrors.ErrLoginFailure, "")
	}
	return models.IdentityOf(account), nil
}

// AuthenticateToken validates a bearer token issued for the service login.
func (s *AuthService) AuthenticateToken(ctx context.Context, tokenString string) (models.Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		s.logger.Warn("feed token rejected", zap.Error(err))
		return models.Identity{}, appErrors.Clone(appErrors.ErrLoginFailure, "")
	}
	if !strings.EqualFold(claims.Subject, s.config.ServiceLogin) {
		s.logger.Warn("feed token subject mismatch", zap.String("subject", claims.Subject))
		return models.Identity{}, appErrors.Clone(appErrors.ErrLoginFailure, "")
	}
	account, err := s.accounts.FindByLogin(ctx, strings.ToLower(claims.Subject))
	if err != nil || account.Locked {
		s.logger.Warn("feed token account unavailable", zap.String("subject", claims.Subject), zap.Error(err))
		return models.Identity{}, appErrors.Clone(appErrors.ErrLoginFailure, "")
	}
	return models.IdentityOf(account), nil
}

// ValidateToken parses and verifies an HS256 feed token.
func (s *AuthService) ValidateToken(tokenString string) (*models.FeedClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.FeedClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.FeedClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// IssueToken mints a bearer token for login.
func (s *AuthService) IssueToken(login string) (*models.FeedToken, error) {
	if s.config.Secret == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token secret is not configured")
	}
	login = strings.ToLower(strings.TrimSpace(login))
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.FeedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   login,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return &models.FeedToken{Token: signed, Subject: login, ExpiresAt: expiresAt}, nil
}

// HashPassword returns the bcrypt hash stored for a feed account password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return string(hash), nil
}
