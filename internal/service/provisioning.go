package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/dto"
	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

// Provisioning results as counted in metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// unknownOperation labels batch items whose type is not add, modify or delete.
const unknownOperation = "unknown"

// ProvisioningDeps wires the orchestrator's collaborators.
type ProvisioningDeps struct {
	Mapper        *FieldMapper
	Resolver      *IdentityResolver
	Profiles      *ProfileStore
	Reconciler    *ProfileReconciler
	Enrollments   *EnrollmentSynchronizer
	Notifications *NotificationService
	Recorder      *RequestRecorder
	Orgs          *OrgLookupService
	Metrics       *MetricsService
	Validator     *validator.Validate
	Logger        *zap.Logger
	Now           func() time.Time
}

// BatchResult is the outcome of one batch sub-request. Err is nil on success.
type BatchResult struct {
	Type      string
	RequestID string
	Err       error
}

// ProvisioningService runs SPML operations one at a time.
type ProvisioningService struct {
	mu sync.Mutex

	mapper        *FieldMapper
	resolver      *IdentityResolver
	profiles      *ProfileStore
	reconciler    *ProfileReconciler
	enrollments   *EnrollmentSynchronizer
	notifications *NotificationService
	recorder      *RequestRecorder
	orgs          *OrgLookupService
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
}

// NewProvisioningService constructs a ProvisioningService.
func NewProvisioningService(deps ProvisioningDeps) *ProvisioningService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Mapper == nil {
		deps.Mapper = NewFieldMapper(deps.Validator, deps.Logger)
	}
	return &ProvisioningService{
		mapper:        deps.Mapper,
		resolver:      deps.Resolver,
		profiles:      deps.Profiles,
		reconciler:    deps.Reconciler,
		enrollments:   deps.Enrollments,
		notifications: deps.Notifications,
		recorder:      deps.Recorder,
		orgs:          deps.Orgs,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           deps.Now,
	}
}

// Add provisions the account described by req.
func (s *ProvisioningService) Add(ctx context.Context, actor models.Identity, req dto.SPMLRequest, rawBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(dto.OperationAdd, func() error { return s.add(ctx, actor, req, rawBody) })
}

// Modify records the request. Modifications are not acted on.
func (s *ProvisioningService) Modify(ctx context.Context, actor models.Identity, req dto.SPMLRequest, rawBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(dto.OperationModify, func() error { return s.ignore(ctx, models.RequestModify, req, rawBody) })
}

// Delete records the request. Accounts are never deleted.
func (s *ProvisioningService) Delete(ctx context.Context, actor models.Identity, req dto.SPMLRequest, rawBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(dto.OperationDelete, func() error { return s.ignore(ctx, models.RequestDelete, req, rawBody) })
}

// Handle dispatches a single add, modify or delete request.
func (s *ProvisioningService) Handle(ctx context.Context, actor models.Identity, operation string, req dto.SPMLRequest, rawBody string) error {
	switch operation {
	case dto.OperationAdd:
		return s.Add(ctx, actor, req, rawBody)
	case dto.OperationModify:
		return s.Modify(ctx, actor, req, rawBody)
	case dto.OperationDelete:
		return s.Delete(ctx, actor, req, rawBody)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown operation "+operation)
	}
}

// Batch processes the sub-requests in order and returns one result per sub-request.
// A sub-request of unknown type is logged and fails on its own; the rest still run.
func (s *ProvisioningService) Batch(ctx context.Context, actor models.Identity, req dto.BatchRequest) ([]BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]BatchResult, 0, len(req.Requests))
	for _, item := range req.Requests {
		sub := dto.SPMLRequest{RequestID: item.RequestID, Attributes: item.Attributes}
		raw, err := json.Marshal(item)
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", item.Attributes))
		}

		var opErr error
		switch item.Type {
		case dto.OperationAdd:
			opErr = s.run(item.Type, func() error { return s.add(ctx, actor, sub, string(raw)) })
		case dto.OperationModify:
			opErr = s.run(item.Type, func() error { return s.ignore(ctx, models.RequestModify, sub, string(raw)) })
		case dto.OperationDelete:
			opErr = s.run(item.Type, func() error { return s.ignore(ctx, models.RequestDelete, sub, string(raw)) })
		default:
			opErr = s.run(unknownOperation, func() error { return s.rejectItem(ctx, item, string(raw)) })
		}
		results = append(results, BatchResult{Type: item.Type, RequestID: item.RequestID, Err: opErr})
	}
	s.logger.Info("batch processed", zap.String("request_id", req.RequestID), zap.Int("requests", len(results)))
	return results, nil
}

// History lists recent raw requests for login.
func (s *ProvisioningService) History(ctx context.Context, login string, limit int) ([]models.RequestLog, error) {
	return s.recorder.History(ctx, login, limit)
}

// run executes op, turning a panic into an InternalError and counting the outcome.
func (s *ProvisioningService) run(operation string, op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while provisioning",
				zap.String("operation", operation),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = appErrors.Wrap(fmt.Errorf("panic: %v", r), appErrors.ErrSPMLInternal.Code, appErrors.ErrSPMLInternal.Status, appErrors.ErrSPMLInternal.Message)
		}
		if err != nil {
			s.metrics.RecordProvisioning(operation, ResultFailure, appErrors.FromError(err).Code)
			return
		}
		s.metrics.RecordProvisioning(operation, ResultSuccess, "")
	}()
	return op()
}

func (s *ProvisioningService) ignore(ctx context.Context, requestType string, req dto.SPMLRequest, rawBody string) error {
	login := Login(req.Attributes)
	s.logger.Warn("request not handled", zap.String("operation", requestType), zap.String("login", login))
	s.recorder.Record(ctx, requestType, rawBody, login)
	return nil
}

func (s *ProvisioningService) rejectItem(ctx context.Context, item dto.BatchItem, rawBody string) error {
	login := Login(item.Attributes)
	s.logger.Warn("rejected batch item", zap.String("type", item.Type), zap.String("login", login))
	s.recorder.Record(ctx, models.RequestBatch, rawBody, login)
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request type %q", item.Type))
}

func (s *ProvisioningService) add(ctx context.Context, actor models.Identity, req dto.SPMLRequest, rawBody string) error {
	login := Login(req.Attributes)
	s.logger.Info("add request", zap.String("login", login), zap.String("request_id", req.RequestID))
	s.recorder.Record(ctx, models.RequestAdd, rawBody, login)

	candidate, err := s.mapper.Map(req.Attributes)
	if err != nil {
		s.logger.Error("rejected add request", zap.String("login", login), zap.Error(err))
		return err
	}
	accountType := DeriveAccountType(candidate.CareerType, candidate.Status)
	s.logger.Info("derived account type",
		zap.String("login", login),
		zap.String("career_type", candidate.CareerType),
		zap.String("status", candidate.Status),
		zap.String("type", accountType.Effective),
	)

	orgCode, err := s.orgs.ResolveCode(ctx, candidate.OrgUnit, candidate.OrgName)
	if err != nil {
		s.logger.Warn("org lookup failed", zap.String("login", login), zap.String("org_unit", candidate.OrgUnit), zap.Error(err))
		orgCode = ""
	}

	account, created, err := s.resolver.Resolve(ctx, actor, candidate.Login, candidate.Status)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	system, err := s.profiles.GetOrCreate(ctx, actor, account, models.ProfileSystem)
	if err != nil {
		return err
	}
	user, err := s.profiles.GetOrCreate(ctx, models.IdentityOf(account), account, models.ProfileUser)
	if err != nil {
		return err
	}

	result := s.reconciler.Reconcile(ReconcileInput{
		Account:   account,
		System:    system,
		User:      user,
		Candidate: candidate,
		Type:      accountType,
		OrgCode:   orgCode,
		Now:       s.now(),
	})
	for _, warning := range result.Warnings {
		s.logger.Warn(warning, zap.String("login", login))
	}
	// Partial commits are left for the next feed cycle to heal.
	_ = s.reconciler.Commit(ctx, actor, result)

	if result.SendNotification {
		if err := s.notifications.NotifyNewAccount(ctx, account.ID, accountType.Effective); err != nil {
			s.logger.Warn("welcome notification failed", zap.String("login", login), zap.Error(err))
		}
	}

	if candidate.IsStudent() {
		s.recorder.FlagStudentUpdate(ctx, login)
		if err := s.enrollments.Sync(ctx, login, candidate); err != nil {
			s.logger.Warn("enrollment sync failed", zap.String("login", login), zap.Error(err))
		}
	}

	s.logger.Info("add request finished", zap.String("login", login), zap.Bool("created", created))
	return nil
}
