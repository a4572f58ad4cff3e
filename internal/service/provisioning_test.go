package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/spml-provisioner/internal/dto"
	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

type provisioningHarness struct {
	accounts *fakeAccounts
	profiles *fakeProfiles
	catalog  *fakeCatalog
	orgs     *fakeOrgs
	log      *fakeRequestLog
	sender   *fakeSender
	metrics  *MetricsService
	service  *ProvisioningService
}

func newProvisioningHarness(t *testing.T, now time.Time) *provisioningHarness {
	t.Helper()
	code := "CSC"
	h := &provisioningHarness{
		accounts: newFakeAccounts(&models.Account{ID: "acc-locked", Login: "locked1", Locked: true}),
		profiles: newFakeProfiles(),
		catalog:  newFakeCatalog(),
		orgs:     &fakeOrgs{units: map[int]*models.OrgUnit{100: {OrgUnit: 100, Code: &code}}},
		log:      &fakeRequestLog{},
		sender:   &fakeSender{},
		metrics:  NewMetricsService(),
	}
	clock := fixedClock(now)
	store := NewProfileStore(h.profiles, nil)
	h.service = NewProvisioningService(ProvisioningDeps{
		Resolver:      NewIdentityResolver(h.accounts, nil, nil),
		Profiles:      store,
		Reconciler:    NewProfileReconciler(h.accounts, store, NewMobileNormalizer("27"), "example.ac.za", nil),
		Enrollments:   NewEnrollmentSynchronizer(h.catalog, nil, h.metrics, EnrollmentConfig{}, nil, clock),
		Notifications: NewNotificationService(h.accounts, welcomeTemplates, h.sender, h.metrics, NotificationConfig{From: "noreply@example.org"}, nil),
		Recorder:      NewRequestRecorder(h.log, nil, clock),
		Orgs:          NewOrgLookupService(h.orgs, nil, h.metrics, time.Hour, nil),
		Metrics:       h.metrics,
		Now:           clock,
	})
	return h
}

func studentAttrs(login string) map[string]string {
	return map[string]string{
		AttrLogin:         login,
		AttrSurname:       "Smith",
		AttrGivenName:     "Ann",
		AttrEmail:         "ann@example.org",
		AttrStudentStatus: "Active",
		AttrFaculty:       "SCI",
		AttrCourseCodes:   "CSC1015F",
		AttrProgramCodes:  "SB014",
		AttrOrgUnit:       "100",
	}
}

func TestProvisioningAddCreatesStudent(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	h := newProvisioningHarness(t, now)
	ctx := context.Background()

	err := h.service.Add(ctx, feedActor, dto.SPMLRequest{RequestID: "r1", Attributes: studentAttrs("STUD1")}, `{"CN":"STUD1"}`)
	require.NoError(t, err)

	account := h.accounts.byLogin["stud1"]
	require.NotNil(t, account)
	assert.Equal(t, "Smith", account.LastName)
	assert.Equal(t, "ann@example.org", account.Email)
	assert.Equal(t, models.TypeStudent, account.Type)
	assert.True(t, account.Properties.WelcomeEmailSent)
	assert.Equal(t, now, *account.Properties.LastSpmlUpdate)

	system := h.profiles.get(account.ID, models.ProfileSystem)
	user := h.profiles.get(account.ID, models.ProfileUser)
	assert.Equal(t, "CSC", *system.OrganizationalUnit)
	assert.Equal(t, "CSC", *user.OrganizationalUnit)
	assert.Equal(t, "feed", *system.UpdatedBy)
	assert.Equal(t, "stud1", *user.UpdatedBy)

	require.Len(t, h.sender.sent, 1)
	require.Len(t, h.log.entries, 1)
	assert.Equal(t, models.RequestAdd, h.log.entries[0].Type)
	assert.Equal(t, `{"CN":"STUD1"}`, h.log.entries[0].Body)
	assert.Contains(t, h.log.flagged, "stud1")
	assert.Equal(t, []string{"SB014,2024", "SCI_STUD,2024"}, h.catalog.enrolled("stud1"))

	// replaying the same request changes nothing and sends no second mail
	before := h.accounts.byLogin["stud1"].Clone()
	require.NoError(t, h.service.Add(ctx, feedActor, dto.SPMLRequest{Attributes: studentAttrs("stud1")}, "{}"))
	assert.Equal(t, before.Email, h.accounts.byLogin["stud1"].Email)
	assert.Len(t, h.sender.sent, 1)
	assert.Equal(t, uint64(2), h.metrics.Snapshot().ProvisioningTotal)
	assert.Zero(t, h.metrics.Snapshot().ProvisioningFailures)
}

func TestProvisioningAddRejectsMissingLogin(t *testing.T) {
	h := newProvisioningHarness(t, time.Now())
	attrs := studentAttrs("")

	err := h.service.Add(context.Background(), feedActor, dto.SPMLRequest{Attributes: attrs}, "{}")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidUsername))
	require.Len(t, h.log.entries, 1)
	assert.Equal(t, models.NullLogin, h.log.entries[0].Login)
	assert.Equal(t, uint64(1), h.metrics.Snapshot().ProvisioningFailures)
}

func TestProvisioningAddRejections(t *testing.T) {
	h := newProvisioningHarness(t, time.Now())
	ctx := context.Background()

	err := h.service.Add(ctx, feedActor, dto.SPMLRequest{Attributes: studentAttrs("locked1")}, "{}")
	assert.True(t, appErrors.Is(err, appErrors.ErrUserLocked))

	err = h.service.Add(ctx, feedActor, dto.SPMLRequest{Attributes: studentAttrs("bad/login")}, "{}")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidUsername))

	attrs := studentAttrs("noaff")
	delete(attrs, AttrStudentStatus)
	err = h.service.Add(ctx, feedActor, dto.SPMLRequest{Attributes: attrs}, "{}")
	assert.True(t, appErrors.Is(err, appErrors.ErrNoAffiliation))

	viewer := models.Identity{AccountID: "acc-view", Login: "viewer"}
	err = h.service.Add(ctx, viewer, dto.SPMLRequest{Attributes: studentAttrs("fresh")}, "{}")
	assert.True(t, appErrors.Is(err, appErrors.ErrNoPermission))
	assert.NotContains(t, h.accounts.byLogin, "fresh")
}

func TestProvisioningAddSkipsUnknownInactive(t *testing.T) {
	h := newProvisioningHarness(t, time.Now())
	attrs := studentAttrs("gone1")
	attrs[AttrStudentStatus] = "Inactive"

	require.NoError(t, h.service.Add(context.Background(), feedActor, dto.SPMLRequest{Attributes: attrs}, "{}"))
	assert.NotContains(t, h.accounts.byLogin, "gone1")
	assert.Empty(t, h.sender.sent)
}

func TestProvisioningModifyAndDeleteAreOnlyRecorded(t *testing.T) {
	h := newProvisioningHarness(t, time.Now())
	ctx := context.Background()

	require.NoError(t, h.service.Modify(ctx, feedActor, dto.SPMLRequest{Attributes: studentAttrs("stud1")}, "modify-body"))
	require.NoError(t, h.service.Delete(ctx, feedActor, dto.SPMLRequest{}, "delete-body"))

	assert.NotContains(t, h.accounts.byLogin, "stud1")
	require.Len(t, h.log.entries, 2)
	assert.Equal(t, models.RequestModify, h.log.entries[0].Type)
	assert.Equal(t, "stud1", h.log.entries[0].Login)
	assert.Equal(t, models.RequestDelete, h.log.entries[1].Type)
	assert.Equal(t, models.NullLogin, h.log.entries[1].Login)
}

func TestProvisioningBatch(t *testing.T) {
	h := newProvisioningHarness(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	results, err := h.service.Batch(ctx, feedActor, dto.BatchRequest{
		RequestID: "b1",
		Requests: []dto.BatchItem{
			{Type: dto.OperationAdd, RequestID: "1", Attributes: studentAttrs("stud1")},
			{Type: dto.OperationAdd, RequestID: "2", Attributes: studentAttrs("")},
			{Type: dto.OperationDelete, RequestID: "3", Attributes: studentAttrs("stud1")},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.True(t, appErrors.Is(results[1].Err, appErrors.ErrInvalidUsername))
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "3", results[2].RequestID)
	assert.Equal(t, dto.OperationDelete, results[2].Type)

	assert.Contains(t, h.accounts.byLogin, "stud1")
	require.Len(t, h.log.entries, 3)
	assert.Contains(t, h.log.entries[0].Body, `"requestId":"1"`)
}

func TestProvisioningBatchUnknownTypeFailsOnlyThatItem(t *testing.T) {
	h := newProvisioningHarness(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	results, err := h.service.Batch(context.Background(), feedActor, dto.BatchRequest{
		Requests: []dto.BatchItem{
			{Type: "rename", RequestID: "1", Attributes: studentAttrs("stud2")},
			{Type: dto.OperationAdd, RequestID: "2", Attributes: studentAttrs("stud1")},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, appErrors.Is(results[0].Err, appErrors.ErrValidation))
	assert.Contains(t, results[0].Err.Error(), `"rename"`)
	assert.Equal(t, "rename", results[0].Type)
	assert.NoError(t, results[1].Err)

	assert.Contains(t, h.accounts.byLogin, "stud1")
	assert.NotContains(t, h.accounts.byLogin, "stud2")
	require.Len(t, h.log.entries, 2)
	assert.Equal(t, models.RequestBatch, h.log.entries[0].Type)
	assert.Equal(t, "stud2", h.log.entries[0].Login)
	assert.Contains(t, h.log.entries[0].Body, `"type":"rename"`)
	assert.Equal(t, models.RequestAdd, h.log.entries[1].Type)
	assert.Equal(t, uint64(1), h.metrics.Snapshot().ProvisioningFailures)
}

func TestProvisioningRecoversFromPanic(t *testing.T) {
	h := newProvisioningHarness(t, time.Now())
	broken := NewProvisioningService(ProvisioningDeps{
		Resolver: NewIdentityResolver(h.accounts, nil, nil),
		Recorder: NewRequestRecorder(h.log, nil, nil),
		Metrics:  h.metrics,
	})

	err := broken.Add(context.Background(), feedActor, dto.SPMLRequest{Attributes: studentAttrs("stud1")}, "{}")
	assert.True(t, appErrors.Is(err, appErrors.ErrSPMLInternal))
	assert.Equal(t, uint64(1), h.metrics.Snapshot().ProvisioningFailures)
}

func TestProvisioningHistory(t *testing.T) {
	h := newProvisioningHarness(t, time.Now())
	ctx := context.Background()
	require.NoError(t, h.service.Modify(ctx, feedActor, dto.SPMLRequest{Attributes: studentAttrs("stud1")}, "{}"))

	entries, err := h.service.History(ctx, "stud1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
