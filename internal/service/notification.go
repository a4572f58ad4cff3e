package service

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/models"
	"github.com/noah-isme/spml-provisioner/pkg/mail"
)

const templatePrefix = "spml."

// Notification outcomes as counted in metrics.
const (
	NotificationSent      = "sent"
	NotificationSkipped   = "skipped"
	NotificationNoTmpl    = "no_template"
	NotificationFailed    = "failed"
	NotificationNoAddress = "no_address"
)

type accountLoader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
}

type templateCatalogue interface {
	Get(key string) (*models.EmailTemplate, bool)
}

// NotificationConfig is the sender identity of welcome mail.
type NotificationConfig struct {
	From     string
	FromName string
}

// NotificationService sends the one-time welcome mail for new accounts.
type NotificationService struct {
	accounts  accountLoader
	templates templateCatalogue
	sender    mail.Sender
	metrics   *MetricsService
	cfg       NotificationConfig
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(accounts accountLoader, templates templateCatalogue, sender mail.Sender, metrics *MetricsService, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{accounts: accounts, templates: templates, sender: sender, metrics: metrics, cfg: cfg, logger: logger}
}

// NotifyNewAccount renders spml.<type> for the account and sends it once. Nothing is
// persisted when the account has no address or no template exists for its type, so a later
// feed cycle retries.
func (s *NotificationService) NotifyNewAccount(ctx context.Context, accountID, accountType string) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		s.logger.Warn("failed to load account for notification", zap.String("account_id", accountID), zap.Error(err))
		return err
	}
	if account.Email == "" {
		s.metrics.RecordNotification(NotificationNoAddress)
		return nil
	}
	if account.Properties.WelcomeEmailSent {
		s.metrics.RecordNotification(NotificationSkipped)
		return nil
	}

	// Offer holders already have working mail.
	if accountType == models.TypeOffer {
		accountType = models.TypeStudent
	}
	key := templatePrefix + accountType
	tmpl, ok := s.templates.Get(key)
	if !ok {
		s.logger.Info("no welcome template", zap.String("login", account.Login), zap.String("template", key))
		s.metrics.RecordNotification(NotificationNoTmpl)
		return nil
	}

	values := map[string]string{
		"userEid":       account.Login,
		"userFirstName": account.FirstName,
		"userLastName":  account.LastName,
		"userEmail":     account.Email,
	}
	subject, err := render(key+".subject", tmpl.Subject, values)
	if err != nil {
		s.metrics.RecordNotification(NotificationFailed)
		return err
	}
	body, err := render(key+".body", tmpl.Body, values)
	if err != nil {
		s.metrics.RecordNotification(NotificationFailed)
		return err
	}

	s.logger.Info("sending welcome mail", zap.String("login", account.Login), zap.String("to", account.Email), zap.String("subject", subject))
	msg := mail.Message{
		From:     s.cfg.From,
		FromName: s.cfg.FromName,
		To:       account.Email,
		ToName:   fmt.Sprintf("%s %s", account.FirstName, account.LastName),
		Subject:  subject,
		Body:     body,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification(NotificationFailed)
		s.logger.Warn("failed to send welcome mail", zap.String("login", account.Login), zap.Error(err))
		return err
	}

	account.Properties.WelcomeEmailSent = true
	if err := s.accounts.Update(ctx, account); err != nil {
		s.logger.Warn("failed to flag welcome mail", zap.String("login", account.Login), zap.Error(err))
		return err
	}
	s.metrics.RecordNotification(NotificationSent)
	return nil
}

func render(name, text string, values map[string]string) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
