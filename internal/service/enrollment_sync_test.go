package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/spml-provisioner/internal/models"
	"github.com/noah-isme/spml-provisioner/pkg/jobs"
	"github.com/noah-isme/spml-provisioner/pkg/mail"
)

var syncNow = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

func newTestSynchronizer(catalog *fakeCatalog, queue *fakeQueue, now time.Time) *EnrollmentSynchronizer {
	var alerts jobEnqueuer
	if queue != nil {
		alerts = queue
	}
	return NewEnrollmentSynchronizer(catalog, alerts, nil, EnrollmentConfig{AdminAlertAddress: "cm-admin@example.org"}, nil, fixedClock(now))
}

func studentCandidate(status string) *models.Candidate {
	return &models.Candidate{Login: "stud1", CareerType: models.CareerStudent, Status: status}
}

func TestSyncAddsProgramAndFacultyWithCourses(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.seedEnrollment("stud1", "CSC1015F,2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	queue := &fakeQueue{}
	s := newTestSynchronizer(catalog, queue, syncNow)

	c := studentCandidate(models.StatusActive)
	c.ProgramCodes = []string{"SB014"}
	c.CourseCodes = []string{"CSC1015F"}
	c.FacultyCode = "SCI"
	require.NoError(t, s.Sync(context.Background(), "stud1", c))

	assert.Equal(t, []string{"CSC1015F,2024", "SB014,2024", "SCI_STUD,2024"}, catalog.enrolled("stud1"))

	assert.Equal(t, models.CategoryDegree, catalog.sets["SB"].Category)
	assert.Equal(t, "SB", catalog.setCourses["SB014"])
	assert.Equal(t, models.CategoryDepartment, catalog.sets["SCI"].Category)
	assert.Equal(t, models.RoleStudent, catalog.sectionMember[memberKey("SB014,2024", "stud1")].Role)
	assert.Contains(t, catalog.offerMember, memberKey("SB014,2024", "stud1"))

	offering := catalog.offerings["SB014,2024"]
	assert.Equal(t, syncNow, *offering.StartDate)
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), *offering.EndDate)

	require.Len(t, queue.jobs, 2)
	msg, ok := queue.jobs[0].Payload.(mail.Message)
	require.True(t, ok)
	assert.Equal(t, JobTypeAdminAlert, queue.jobs[0].Type)
	assert.Equal(t, "[CM]: new course created: SB014,2024", msg.Subject)
	assert.Equal(t, "cm-admin@example.org", msg.To)
}

func TestSyncOfferHolderMovesToOfferTerm(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.seedEnrollment("stud1", "CSC1015F,2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	s := newTestSynchronizer(catalog, &fakeQueue{}, syncNow)
	ctx := context.Background()

	withCourses := studentCandidate(models.StatusActive)
	withCourses.ProgramCodes = []string{"SB014"}
	withCourses.CourseCodes = []string{"CSC1015F"}
	withCourses.FacultyCode = "SCI"
	require.NoError(t, s.Sync(ctx, "stud1", withCourses))

	offer := studentCandidate(models.StatusAdmitted)
	offer.ProgramCodes = []string{"SB014"}
	require.NoError(t, s.Sync(ctx, "stud1", offer))

	assert.Equal(t, []string{"CSC1015F,2024", "SB014,OFFER"}, catalog.enrolled("stud1"))
	offering := catalog.offerings["SB014,OFFER"]
	assert.Equal(t, offerTermStart, *offering.StartDate)
	assert.Equal(t, offerTermEnd, *offering.EndDate)
	assert.Equal(t, offerTermEnd, catalog.sessions[models.TermOffer].EndDate)

	// a repeat of the same feed keeps the offer membership
	require.NoError(t, s.Sync(ctx, "stud1", offer))
	assert.Equal(t, []string{"CSC1015F,2024", "SB014,OFFER"}, catalog.enrolled("stud1"))

	// years later the offer term has not lapsed
	later := newTestSynchronizer(catalog, &fakeQueue{}, time.Date(2031, time.June, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, later.Sync(ctx, "stud1", offer))
	assert.Contains(t, catalog.enrolled("stud1"), "SB014,OFFER")
	assert.NotContains(t, catalog.enrolled("stud1"), "SB014,2031")
}

func TestSyncInactiveClearsSynchronizedMemberships(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.seedEnrollment("stud1", "CSC1015F,2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	s := newTestSynchronizer(catalog, nil, syncNow)
	ctx := context.Background()

	c := studentCandidate(models.StatusActive)
	c.ProgramCodes = []string{"SB014"}
	c.CourseCodes = []string{"CSC1015F"}
	c.FacultyCode = "SCI"
	require.NoError(t, s.Sync(ctx, "stud1", c))

	require.NoError(t, s.Sync(ctx, "stud1", studentCandidate(models.StatusInactive)))
	assert.Equal(t, []string{"CSC1015F,2024"}, catalog.enrolled("stud1"))
	assert.NotContains(t, catalog.sectionMember, memberKey("SB014,2024", "stud1"))
	assert.NotContains(t, catalog.offerMember, memberKey("SB014,2024", "stud1"))
}

func TestSyncIgnoresOtherStatuses(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.seedEnrollment("stud1", "SB014,2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	s := newTestSynchronizer(catalog, nil, syncNow)

	require.NoError(t, s.Sync(context.Background(), "stud1", studentCandidate("Graduated")))
	assert.Equal(t, []string{"SB014,2024"}, catalog.enrolled("stud1"))
}

func TestSyncLeavesEndedOfferingsAlone(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.seedEnrollment("stud1", "SB014,2023", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	s := newTestSynchronizer(catalog, nil, syncNow)

	require.NoError(t, s.Sync(context.Background(), "stud1", studentCandidate(models.StatusInactive)))
	assert.Equal(t, []string{"SB014,2023"}, catalog.enrolled("stud1"))
}

func TestSyncResidence(t *testing.T) {
	const residence = "OBZ*2024-01-31*2024-12-15"
	ctx := context.Background()

	t.Run("current residence is added as participant", func(t *testing.T) {
		catalog := newFakeCatalog()
		s := newTestSynchronizer(catalog, nil, syncNow)
		c := studentCandidate(models.StatusActive)
		c.ResidenceCode = residence

		require.NoError(t, s.Sync(ctx, "stud1", c))
		assert.Equal(t, []string{"OBZ,2024"}, catalog.enrolled("stud1"))
		assert.Equal(t, models.RoleParticipant, catalog.sectionMember[memberKey("OBZ,2024", "stud1")].Role)
		assert.Equal(t, models.CategoryResidence, catalog.sets["OBZ"].Category)

		// the end day itself still counts
		endDay := time.Date(2024, time.December, 15, 18, 0, 0, 0, time.UTC)
		require.NoError(t, newTestSynchronizer(catalog, nil, endDay).Sync(ctx, "stud1", c))
		assert.Equal(t, []string{"OBZ,2024"}, catalog.enrolled("stud1"))
	})

	t.Run("ended residence is removed", func(t *testing.T) {
		catalog := newFakeCatalog()
		c := studentCandidate(models.StatusActive)
		c.ResidenceCode = residence
		require.NoError(t, newTestSynchronizer(catalog, nil, syncNow).Sync(ctx, "stud1", c))

		after := time.Date(2024, time.December, 16, 9, 0, 0, 0, time.UTC)
		require.NoError(t, newTestSynchronizer(catalog, nil, after).Sync(ctx, "stud1", c))
		assert.Empty(t, catalog.enrolled("stud1"))
	})

	t.Run("residence from another year is ignored", func(t *testing.T) {
		catalog := newFakeCatalog()
		c := studentCandidate(models.StatusActive)
		c.ResidenceCode = "OBZ*2023-01-31*2024-12-15"
		require.NoError(t, newTestSynchronizer(catalog, nil, syncNow).Sync(ctx, "stud1", c))
		assert.Empty(t, catalog.enrolled("stud1"))
	})
}

func TestAddMembershipPrefersLatestRunningOffering(t *testing.T) {
	catalog := newFakeCatalog()
	for _, year := range []int{2023, 2024} {
		term := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
		catalog.sessions[term] = models.AcademicSession{EID: term, StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)}
		start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
		catalog.offerings["MAM1000W,"+term] = models.CourseOffering{EID: "MAM1000W," + term, CanonicalCourseEID: "MAM1000W", SessionEID: term, StartDate: &start, EndDate: &end}
	}
	queue := &fakeQueue{}
	s := newTestSynchronizer(catalog, queue, syncNow)

	require.NoError(t, s.AddMembership(context.Background(), "stud1", "mam1000w", "", ""))
	assert.Equal(t, []string{"MAM1000W,2024"}, catalog.enrolled("stud1"))
	assert.Equal(t, "MAM", catalog.sets["MAM"].EID)
	assert.Empty(t, queue.jobs)
}

func TestAddMembershipRepairsSectionWithoutEnrollmentSet(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.sections["SB014,2024"] = models.Section{EID: "SB014,2024", OfferingEID: "SB014,2024"}
	s := newTestSynchronizer(catalog, nil, syncNow)

	require.NoError(t, s.AddMembership(context.Background(), "stud1", "SB014", "2024", ""))
	section := catalog.sections["SB014,2024"]
	require.NotNil(t, section.EnrollmentSetEID)
	assert.Equal(t, "SB014,2024", *section.EnrollmentSetEID)
	assert.Equal(t, models.CategoryCourse, section.Category)
}

func TestAddMembershipRejectsUnknownTerm(t *testing.T) {
	s := newTestSynchronizer(newFakeCatalog(), nil, syncNow)
	err := s.AddMembership(context.Background(), "stud1", "SB014", "SPRING", "")
	assert.Error(t, err)
}

func TestAddMembershipFailureDoesNotStopSync(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.failAdd["SB014"] = errBoom
	s := newTestSynchronizer(catalog, nil, syncNow)

	c := studentCandidate(models.StatusActive)
	c.ProgramCodes = []string{"SB014"}
	c.CourseCodes = []string{"CSC1015F"}
	c.FacultyCode = "SCI"
	require.NoError(t, s.Sync(context.Background(), "stud1", c))
	assert.Equal(t, []string{"SCI_STUD,2024"}, catalog.enrolled("stud1"))
}

func TestSyncReportsListFailure(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.listErr = errBoom
	s := newTestSynchronizer(catalog, nil, syncNow)
	assert.ErrorIs(t, s.Sync(context.Background(), "stud1", studentCandidate(models.StatusInactive)), errBoom)
}

func TestParseResidence(t *testing.T) {
	res, ok := ParseResidence("obz*2024-01-31*2024-12-15")
	require.True(t, ok)
	assert.Equal(t, Residence{Code: "OBZ", Year: "2024", End: "2024-12-15"}, res)

	for _, raw := range []string{"", "OBZ", "*2024-01-31", "OBZ*20240131"} {
		_, ok := ParseResidence(raw)
		assert.False(t, ok, raw)
	}

	assert.True(t, Residence{End: "soon"}.CurrentAt(syncNow))
	assert.False(t, Residence{End: "2024-05-31"}.CurrentAt(syncNow))
}

func TestIsSyncedSection(t *testing.T) {
	cases := map[string]bool{
		"SCI_STUD,2024":  true,
		"SB014,2024":     true,
		"SB014,OFFER":    true,
		"OBZ,2024":       true,
		"CSC1015F,2024":  false,
		"MAM1000W,2024":  false,
		"CSC2001F,2023x": false,
	}
	for eid, want := range cases {
		assert.Equal(t, want, IsSyncedSection(eid), eid)
	}
}

func TestAlertHandler(t *testing.T) {
	sender := &fakeSender{}
	handler := NewAlertHandler(sender)

	msg := mail.Message{To: "cm-admin@example.org", Subject: "hello"}
	require.NoError(t, handler(context.Background(), jobs.Job{Type: JobTypeAdminAlert, Payload: msg}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, msg, sender.sent[0])

	assert.Error(t, handler(context.Background(), jobs.Job{Type: JobTypeAdminAlert, Payload: "oops"}))
}

func TestOfferingInScopeOnLastDay(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)
	section := models.EnrolledSection{OfferingEID: "SB014,2024", StartDate: &start, EndDate: &end}

	assert.True(t, offeringInScope(section, time.Date(2024, time.December, 31, 15, 0, 0, 0, time.UTC)))
	assert.False(t, offeringInScope(section, time.Date(2025, time.January, 1, 0, 0, 1, 0, time.UTC)))
}
