package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/models"
	"github.com/noah-isme/spml-provisioner/pkg/ids"
	"github.com/noah-isme/spml-provisioner/pkg/jobs"
	"github.com/noah-isme/spml-provisioner/pkg/mail"
)

// JobTypeAdminAlert is the queue job type carrying an admin alert mail.
const JobTypeAdminAlert = "admin_alert"

const (
	facultySuffix = "_STUD"
	residenceDate = "2006-01-02"

	// Section id widths the synchronizer owns, e.g. SB014,2014 and OBZ,2014.
	programSectionWidth   = len("SB014,2014")
	residenceSectionWidth = len("OBZ,2014")
	programCodeWidth      = len("SB014")
)

var (
	offerTermStart = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	offerTermEnd   = time.Date(2099, time.December, 31, 23, 59, 59, 0, time.UTC)
)

type catalogStore interface {
	EnsureAcademicSession(ctx context.Context, session models.AcademicSession) (bool, error)
	EnsureCourseSet(ctx context.Context, set models.CourseSet) (bool, error)
	EnsureCanonicalCourse(ctx context.Context, course models.CanonicalCourse) (bool, error)
	LinkCanonicalCourse(ctx context.Context, setEID, courseEID string) error
	EnsureCourseOffering(ctx context.Context, offering models.CourseOffering) (bool, error)
	LinkCourseOffering(ctx context.Context, setEID, offeringEID string) error
	EnsureEnrollmentSet(ctx context.Context, set models.EnrollmentSet) (bool, error)
	FindSection(ctx context.Context, eid string) (*models.Section, error)
	EnsureSection(ctx context.Context, section models.Section) (bool, error)
	AttachEnrollmentSet(ctx context.Context, sectionEID, enrollmentSetEID, category string) error
	UpsertSectionMembership(ctx context.Context, m models.SectionMembership) error
	UpsertEnrollment(ctx context.Context, e models.Enrollment) error
	UpsertOfferingMembership(ctx context.Context, m models.OfferingMembership) error
	ListEnrolledSections(ctx context.Context, login string) ([]models.EnrolledSection, error)
	ListActiveOfferings(ctx context.Context, canonicalEID string, day time.Time) ([]models.CourseOffering, error)
	RemoveOfferingMembership(ctx context.Context, login, offeringEID string) error
	RemoveSectionMembership(ctx context.Context, login, sectionEID string) error
	RemoveEnrollment(ctx context.Context, login, enrollmentSetEID string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// EnrollmentConfig holds the synchronizer's mail settings.
type EnrollmentConfig struct {
	AdminAlertAddress string
}

// EnrollmentSynchronizer keeps a student's faculty, program and residence memberships in
// line with the feed.
type EnrollmentSynchronizer struct {
	catalog catalogStore
	alerts  jobEnqueuer
	metrics *MetricsService
	cfg     EnrollmentConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewEnrollmentSynchronizer constructs an EnrollmentSynchronizer. alerts may be nil.
func NewEnrollmentSynchronizer(catalog catalogStore, alerts jobEnqueuer, metrics *MetricsService, cfg EnrollmentConfig, logger *zap.Logger, now func() time.Time) *EnrollmentSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &EnrollmentSynchronizer{catalog: catalog, alerts: alerts, metrics: metrics, cfg: cfg, logger: logger, now: now}
}

// Sync adds the memberships the candidate should hold and removes the synchronized ones it
// no longer should. Only Active, Admitted and Inactive statuses are acted on.
func (s *EnrollmentSynchronizer) Sync(ctx context.Context, login string, c *models.Candidate) error {
	now := s.now()
	var desired []string
	switch c.Status {
	case models.StatusActive, models.StatusAdmitted:
		desired = s.addDesired(ctx, login, c, now)
	case models.StatusInactive:
		// empty desired list: clears every synchronized membership
	default:
		s.logger.Debug("status not synchronized", zap.String("login", login), zap.String("status", c.Status))
		return nil
	}
	return s.removeStale(ctx, login, desired, now)
}

func (s *EnrollmentSynchronizer) addDesired(ctx context.Context, login string, c *models.Candidate, now time.Time) []string {
	var checkList []string
	add := func(code, term, category, listed string) {
		if err := s.AddMembership(ctx, login, code, term, category); err != nil {
			s.metrics.RecordMembership(MembershipFailed)
			s.logger.Warn("failed to add membership",
				zap.String("login", login),
				zap.String("course_eid", code),
				zap.String("term", term),
				zap.Error(err),
			)
		}
		checkList = append(checkList, listed)
	}

	if len(c.ProgramCodes) > 0 && !c.HasCourses() {
		// Offer holders keep a program membership in the perpetual term.
		for _, program := range c.ProgramCodes {
			add(program, models.TermOffer, "", program+","+models.TermOffer)
		}
	} else if c.HasCourses() {
		for _, program := range c.ProgramCodes {
			add(program, "", "", program)
		}
		if c.FacultyCode != "" {
			faculty := c.FacultyCode + facultySuffix
			add(faculty, "", "", faculty)
		}
	}

	if res, ok := ParseResidence(c.ResidenceCode); ok {
		s.logger.Info("residence found", zap.String("login", login), zap.String("residence", res.Code), zap.String("year", res.Year))
		if res.Year == strconv.Itoa(now.Year()) && res.CurrentAt(now) {
			add(res.Code, res.Year, models.CategoryResidence, res.Code)
		}
	}
	return checkList
}

// AddMembership enrolls login in code, creating the catalog chain it needs. An empty term
// resolves to the preferred running offering, else the current year. An empty category is
// derived from the code.
func (s *EnrollmentSynchronizer) AddMembership(ctx context.Context, login, code, term, category string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	now := s.now()

	setID, setCategory := courseSetFor(code, category)
	role := models.RoleStudent
	if strings.EqualFold(setCategory, models.CategoryResidence) {
		role = models.RoleParticipant
	}

	var eid string
	if term == "" {
		resolved, err := s.preferredEID(ctx, code, now)
		if err != nil {
			return err
		}
		eid = resolved
		term = resolved[strings.Index(resolved, ",")+1:]
	} else {
		eid = code + "," + term
	}

	session, err := sessionFor(term)
	if err != nil {
		return err
	}
	if _, err := s.catalog.EnsureAcademicSession(ctx, session); err != nil {
		return err
	}
	if _, err := s.catalog.EnsureCourseSet(ctx, models.CourseSet{EID: setID, Title: setID, Category: setCategory}); err != nil {
		return err
	}
	created, err := s.catalog.EnsureCanonicalCourse(ctx, models.CanonicalCourse{EID: code, Title: code})
	if err != nil {
		return err
	}
	if created {
		if err := s.catalog.LinkCanonicalCourse(ctx, setID, code); err != nil {
			return err
		}
	}

	start, end := offeringDates(term, session, now)
	created, err = s.catalog.EnsureCourseOffering(ctx, models.CourseOffering{
		EID:                eid,
		CanonicalCourseEID: code,
		SessionEID:         term,
		Title:              eid,
		Status:             models.OfferingActive,
		StartDate:          &start,
		EndDate:            &end,
	})
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("created course offering", zap.String("course_eid", eid), zap.String("term", term))
		if err := s.catalog.LinkCourseOffering(ctx, setID, eid); err != nil {
			return err
		}
		s.alertNewOffering(eid)
	}

	if _, err := s.catalog.EnsureEnrollmentSet(ctx, models.EnrollmentSet{
		EID:         eid,
		OfferingEID: eid,
		Title:       eid,
		Category:    models.EnrollmentSetCat,
		Credits:     models.DefaultCredits,
	}); err != nil {
		return err
	}
	if err := s.ensureSection(ctx, eid); err != nil {
		return err
	}

	s.logger.Info("adding student to course", zap.String("login", login), zap.String("course_eid", eid), zap.String("role", role))
	if err := s.catalog.UpsertSectionMembership(ctx, models.SectionMembership{SectionEID: eid, Login: login, Role: role, Status: models.MemberEnrolled}); err != nil {
		return err
	}
	if err := s.catalog.UpsertEnrollment(ctx, models.Enrollment{
		EnrollmentSetEID: eid,
		Login:            login,
		Status:           models.MemberEnrolled,
		Credits:          models.DefaultCredits,
		GradingScheme:    models.GradingSchemeNA,
	}); err != nil {
		return err
	}
	if err := s.catalog.UpsertOfferingMembership(ctx, models.OfferingMembership{OfferingEID: eid, Login: login, Role: role, Status: models.MemberEnrolled}); err != nil {
		return err
	}
	s.metrics.RecordMembership(MembershipAdded)
	return nil
}

func (s *EnrollmentSynchronizer) ensureSection(ctx context.Context, eid string) error {
	created, err := s.catalog.EnsureSection(ctx, models.Section{
		EID:              eid,
		OfferingEID:      eid,
		EnrollmentSetEID: &eid,
		Title:            eid,
		Category:         models.CategoryCourse,
	})
	if err != nil || created {
		return err
	}
	section, err := s.catalog.FindSection(ctx, eid)
	if err != nil {
		return err
	}
	if section.EnrollmentSetEID == nil {
		s.logger.Info("repairing section without enrollment set", zap.String("course_eid", eid))
		return s.catalog.AttachEnrollmentSet(ctx, eid, eid, models.CategoryCourse)
	}
	return nil
}

func (s *EnrollmentSynchronizer) removeStale(ctx context.Context, login string, desired []string, now time.Time) error {
	final := make(map[string]struct{}, len(desired))
	for _, entry := range desired {
		if strings.HasSuffix(entry, models.TermOffer) {
			final[entry] = struct{}{}
			continue
		}
		eid, err := s.preferredEID(ctx, entry, now)
		if err != nil {
			s.logger.Warn("failed to resolve preferred offering", zap.String("login", login), zap.String("course_eid", entry), zap.Error(err))
			eid = entry + "," + strconv.Itoa(now.Year())
		}
		final[strings.ToUpper(eid)] = struct{}{}
	}

	sections, err := s.catalog.ListEnrolledSections(ctx, login)
	if err != nil {
		return fmt.Errorf("list enrolled sections for %s: %w", login, err)
	}

	for _, section := range sections {
		if section.StartDate == nil || section.EndDate == nil {
			s.logger.Debug("offering missing dates", zap.String("course_eid", section.OfferingEID))
			continue
		}
		if !offeringInScope(section, now) || !IsSyncedSection(section.EnrollmentSetEID) {
			continue
		}
		if _, keep := final[section.EnrollmentSetEID]; keep {
			s.logger.Debug("retaining membership", zap.String("login", login), zap.String("course_eid", section.EnrollmentSetEID))
			continue
		}

		s.logger.Info("removing membership", zap.String("login", login), zap.String("course_eid", section.EnrollmentSetEID))
		removals := []struct {
			operation string
			run       func() error
		}{
			{"offering_membership", func() error { return s.catalog.RemoveOfferingMembership(ctx, login, section.OfferingEID) }},
			{"section_membership", func() error { return s.catalog.RemoveSectionMembership(ctx, login, section.SectionEID) }},
			{"enrollment", func() error { return s.catalog.RemoveEnrollment(ctx, login, section.EnrollmentSetEID) }},
		}
		failed := false
		for _, removal := range removals {
			if err := removal.run(); err != nil {
				failed = true
				s.logger.Warn("failed to remove membership",
					zap.String("login", login),
					zap.String("course_eid", section.EnrollmentSetEID),
					zap.String("operation", removal.operation),
					zap.Error(err),
				)
			}
		}
		if failed {
			s.metrics.RecordMembership(MembershipFailed)
		} else {
			s.metrics.RecordMembership(MembershipRemoved)
		}
	}
	return nil
}

// preferredEID returns the running offering of code with the latest session start, or
// code,<current year> when none runs. Offers are never preferred.
func (s *EnrollmentSynchronizer) preferredEID(ctx context.Context, code string, now time.Time) (string, error) {
	offerings, err := s.catalog.ListActiveOfferings(ctx, code, now)
	if err != nil {
		return "", err
	}
	var best *models.CourseOffering
	for i := range offerings {
		o := &offerings[i]
		if strings.HasSuffix(o.EID, ","+models.TermOffer) {
			continue
		}
		if best == nil || laterSession(o, best) {
			best = o
		}
	}
	if best != nil {
		return best.EID, nil
	}
	return code + "," + strconv.Itoa(now.Year()), nil
}

func (s *EnrollmentSynchronizer) alertNewOffering(eid string) {
	if s.alerts == nil || s.cfg.AdminAlertAddress == "" {
		return
	}
	subject := "[CM]: new course created: " + eid
	job := jobs.Job{
		ID:   ids.New(),
		Type: JobTypeAdminAlert,
		Payload: mail.Message{
			From:    s.cfg.AdminAlertAddress,
			To:      s.cfg.AdminAlertAddress,
			Subject: subject,
			Body:    subject,
		},
	}
	if err := s.alerts.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue admin alert", zap.String("course_eid", eid), zap.Error(err))
	}
}

// NewAlertHandler delivers admin alert jobs through sender.
func NewAlertHandler(sender mail.Sender) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mail.Message)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", job.Type, job.Payload)
		}
		return sender.Send(ctx, msg)
	}
}

// IsSyncedSection reports whether a section id is a faculty, program, offer or residence
// section. Plain course sections are never touched.
func IsSyncedSection(eid string) bool {
	switch {
	case strings.Index(eid, facultySuffix) > 0:
		return true
	case len(eid) == programSectionWidth:
		return true
	case strings.HasSuffix(eid, models.TermOffer):
		return true
	case len(eid) == residenceSectionWidth:
		return true
	}
	return false
}

// Residence is a decoded CODE*start*end residence attribute.
type Residence struct {
	Code string
	Year string
	End  string
}

// ParseResidence decodes raw. Codes without dates are ignored.
func ParseResidence(raw string) (Residence, bool) {
	star := strings.Index(raw, "*")
	if star <= 0 {
		return Residence{}, false
	}
	dash := strings.Index(raw, "-")
	if dash <= star {
		return Residence{}, false
	}
	return Residence{
		Code: strings.ToUpper(raw[:star]),
		Year: raw[star+1 : dash],
		End:  raw[strings.LastIndex(raw, "*")+1:],
	}, true
}

// CurrentAt reports whether the residence end date has not passed on now's date. An
// unparseable end date counts as current.
func (r Residence) CurrentAt(now time.Time) bool {
	end, err := time.Parse(residenceDate, r.End)
	if err != nil {
		return true
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !end.Before(today)
}

func courseSetFor(code, category string) (string, string) {
	if category != "" {
		return code, category
	}
	if len(code) == programCodeWidth {
		return code[:2], models.CategoryDegree
	}
	if len(code) < 3 {
		return code, models.CategoryDepartment
	}
	return code[:3], models.CategoryDepartment
}

func sessionFor(term string) (models.AcademicSession, error) {
	if term == models.TermOffer {
		return models.AcademicSession{EID: term, Title: term, StartDate: offerTermStart, EndDate: offerTermEnd}, nil
	}
	year, err := strconv.Atoi(term)
	if err != nil {
		return models.AcademicSession{}, fmt.Errorf("term %q is not a year", term)
	}
	return models.AcademicSession{
		EID:       term,
		Title:     term,
		StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC),
	}, nil
}

func offeringDates(term string, session models.AcademicSession, now time.Time) (time.Time, time.Time) {
	if term == models.TermOffer {
		return offerTermStart, offerTermEnd
	}
	return now.UTC(), session.EndDate
}

func offeringInScope(section models.EnrolledSection, now time.Time) bool {
	if strings.HasSuffix(section.OfferingEID, models.TermOffer) {
		return true
	}
	if now.Before(*section.StartDate) {
		return true
	}
	return !now.After(*section.EndDate)
}

func laterSession(candidate, current *models.CourseOffering) bool {
	if candidate.SessionStart == nil {
		return false
	}
	if current.SessionStart == nil {
		return true
	}
	return candidate.SessionStart.After(*current.SessionStart)
}
