package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/spml-provisioner/internal/models"
	"github.com/noah-isme/spml-provisioner/pkg/jobs"
	"github.com/noah-isme/spml-provisioner/pkg/mail"
)

var errBoom = errors.New("boom")

type fakeAccounts struct {
	byLogin   map[string]*models.Account
	findErr   error
	createErr error
	updateErr error
	updates   int
}

func newFakeAccounts(accounts ...*models.Account) *fakeAccounts {
	f := &fakeAccounts{byLogin: map[string]*models.Account{}}
	for _, a := range accounts {
		f.byLogin[a.Login] = a.Clone()
	}
	return f
}

func (f *fakeAccounts) FindByLogin(ctx context.Context, login string) (*models.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if a, ok := f.byLogin[login]; ok {
		return a.Clone(), nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	for _, a := range f.byLogin {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccounts) Create(ctx context.Context, account *models.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	if account.ID == "" {
		account.ID = "acc-" + account.Login
	}
	f.byLogin[account.Login] = account.Clone()
	return nil
}

func (f *fakeAccounts) Update(ctx context.Context, account *models.Account) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.byLogin[account.Login] = account.Clone()
	return nil
}

type fakeProfiles struct {
	rows      map[string]*models.Profile
	updateErr map[models.ProfileKind]error
	creates   int
}

func newFakeProfiles(profiles ...*models.Profile) *fakeProfiles {
	f := &fakeProfiles{rows: map[string]*models.Profile{}, updateErr: map[models.ProfileKind]error{}}
	for _, p := range profiles {
		f.rows[profileKey(p.AccountID, p.Kind)] = p.Clone()
	}
	return f
}

func profileKey(accountID string, kind models.ProfileKind) string {
	return accountID + "/" + string(kind)
}

func (f *fakeProfiles) Find(ctx context.Context, accountID string, kind models.ProfileKind) (*models.Profile, error) {
	if p, ok := f.rows[profileKey(accountID, kind)]; ok {
		return p.Clone(), nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeProfiles) Create(ctx context.Context, profile *models.Profile) error {
	key := profileKey(profile.AccountID, profile.Kind)
	if _, ok := f.rows[key]; ok {
		return nil
	}
	if profile.ID == "" {
		profile.ID = "prof-" + key
	}
	f.creates++
	f.rows[key] = profile.Clone()
	return nil
}

func (f *fakeProfiles) Update(ctx context.Context, profile *models.Profile) error {
	if err := f.updateErr[profile.Kind]; err != nil {
		return err
	}
	f.rows[profileKey(profile.AccountID, profile.Kind)] = profile.Clone()
	return nil
}

func (f *fakeProfiles) get(accountID string, kind models.ProfileKind) *models.Profile {
	return f.rows[profileKey(accountID, kind)]
}

type fakeCatalog struct {
	sessions      map[string]models.AcademicSession
	sets          map[string]models.CourseSet
	canonicals    map[string]models.CanonicalCourse
	setCourses    map[string]string
	offerings     map[string]models.CourseOffering
	setOfferings  map[string]string
	enrollSets    map[string]models.EnrollmentSet
	sections      map[string]models.Section
	sectionMember map[string]models.SectionMembership
	enrollments   map[string]models.Enrollment
	offerMember   map[string]models.OfferingMembership
	failAdd       map[string]error
	listErr       error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		sessions:      map[string]models.AcademicSession{},
		sets:          map[string]models.CourseSet{},
		canonicals:    map[string]models.CanonicalCourse{},
		setCourses:    map[string]string{},
		offerings:     map[string]models.CourseOffering{},
		setOfferings:  map[string]string{},
		enrollSets:    map[string]models.EnrollmentSet{},
		sections:      map[string]models.Section{},
		sectionMember: map[string]models.SectionMembership{},
		enrollments:   map[string]models.Enrollment{},
		offerMember:   map[string]models.OfferingMembership{},
		failAdd:       map[string]error{},
	}
}

func memberKey(eid, login string) string { return eid + "|" + login }

func (f *fakeCatalog) EnsureAcademicSession(ctx context.Context, s models.AcademicSession) (bool, error) {
	if _, ok := f.sessions[s.EID]; ok {
		return false, nil
	}
	f.sessions[s.EID] = s
	return true, nil
}

func (f *fakeCatalog) EnsureCourseSet(ctx context.Context, s models.CourseSet) (bool, error) {
	if _, ok := f.sets[s.EID]; ok {
		return false, nil
	}
	f.sets[s.EID] = s
	return true, nil
}

func (f *fakeCatalog) EnsureCanonicalCourse(ctx context.Context, c models.CanonicalCourse) (bool, error) {
	if err := f.failAdd[c.EID]; err != nil {
		return false, err
	}
	if _, ok := f.canonicals[c.EID]; ok {
		return false, nil
	}
	f.canonicals[c.EID] = c
	return true, nil
}

func (f *fakeCatalog) LinkCanonicalCourse(ctx context.Context, setEID, courseEID string) error {
	f.setCourses[courseEID] = setEID
	return nil
}

func (f *fakeCatalog) EnsureCourseOffering(ctx context.Context, o models.CourseOffering) (bool, error) {
	if _, ok := f.offerings[o.EID]; ok {
		return false, nil
	}
	f.offerings[o.EID] = o
	return true, nil
}

func (f *fakeCatalog) LinkCourseOffering(ctx context.Context, setEID, offeringEID string) error {
	f.setOfferings[offeringEID] = setEID
	return nil
}

func (f *fakeCatalog) EnsureEnrollmentSet(ctx context.Context, s models.EnrollmentSet) (bool, error) {
	if _, ok := f.enrollSets[s.EID]; ok {
		return false, nil
	}
	f.enrollSets[s.EID] = s
	return true, nil
}

func (f *fakeCatalog) FindSection(ctx context.Context, eid string) (*models.Section, error) {
	s, ok := f.sections[eid]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeCatalog) EnsureSection(ctx context.Context, s models.Section) (bool, error) {
	if _, ok := f.sections[s.EID]; ok {
		return false, nil
	}
	f.sections[s.EID] = s
	return true, nil
}

func (f *fakeCatalog) AttachEnrollmentSet(ctx context.Context, sectionEID, enrollmentSetEID, category string) error {
	s := f.sections[sectionEID]
	es := enrollmentSetEID
	s.EnrollmentSetEID = &es
	s.Category = category
	f.sections[sectionEID] = s
	return nil
}

func (f *fakeCatalog) UpsertSectionMembership(ctx context.Context, m models.SectionMembership) error {
	f.sectionMember[memberKey(m.SectionEID, m.Login)] = m
	return nil
}

func (f *fakeCatalog) UpsertEnrollment(ctx context.Context, e models.Enrollment) error {
	f.enrollments[memberKey(e.EnrollmentSetEID, e.Login)] = e
	return nil
}

func (f *fakeCatalog) UpsertOfferingMembership(ctx context.Context, m models.OfferingMembership) error {
	f.offerMember[memberKey(m.OfferingEID, m.Login)] = m
	return nil
}

func (f *fakeCatalog) ListEnrolledSections(ctx context.Context, login string) ([]models.EnrolledSection, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.EnrolledSection
	for _, e := range f.enrollments {
		if e.Login != login || e.Status != models.MemberEnrolled {
			continue
		}
		for _, s := range f.sections {
			if s.EnrollmentSetEID == nil || *s.EnrollmentSetEID != e.EnrollmentSetEID {
				continue
			}
			o := f.offerings[s.OfferingEID]
			out = append(out, models.EnrolledSection{
				SectionEID:       s.EID,
				EnrollmentSetEID: e.EnrollmentSetEID,
				OfferingEID:      s.OfferingEID,
				StartDate:        o.StartDate,
				EndDate:          o.EndDate,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionEID < out[j].SectionEID })
	return out, nil
}

func (f *fakeCatalog) ListActiveOfferings(ctx context.Context, canonicalEID string, day time.Time) ([]models.CourseOffering, error) {
	var out []models.CourseOffering
	for _, o := range f.offerings {
		if o.CanonicalCourseEID != canonicalEID || o.StartDate == nil || o.EndDate == nil {
			continue
		}
		if o.StartDate.After(day) || o.EndDate.Before(day) {
			continue
		}
		if session, ok := f.sessions[o.SessionEID]; ok {
			start := session.StartDate
			o.SessionStart = &start
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EID < out[j].EID })
	return out, nil
}

func (f *fakeCatalog) RemoveOfferingMembership(ctx context.Context, login, offeringEID string) error {
	delete(f.offerMember, memberKey(offeringEID, login))
	return nil
}

func (f *fakeCatalog) RemoveSectionMembership(ctx context.Context, login, sectionEID string) error {
	delete(f.sectionMember, memberKey(sectionEID, login))
	return nil
}

func (f *fakeCatalog) RemoveEnrollment(ctx context.Context, login, enrollmentSetEID string) error {
	delete(f.enrollments, memberKey(enrollmentSetEID, login))
	return nil
}

func (f *fakeCatalog) enrolled(login string) []string {
	var eids []string
	for key, e := range f.enrollments {
		if e.Login == login {
			eids = append(eids, strings.TrimSuffix(key, "|"+login))
		}
	}
	sort.Strings(eids)
	return eids
}

// seedEnrollment records an existing enrollment chain outside the synchronizer.
func (f *fakeCatalog) seedEnrollment(login, eid string, start, end time.Time) {
	es := eid
	f.offerings[eid] = models.CourseOffering{EID: eid, CanonicalCourseEID: eid[:strings.Index(eid, ",")], SessionEID: eid[strings.Index(eid, ",")+1:], StartDate: &start, EndDate: &end}
	f.enrollSets[eid] = models.EnrollmentSet{EID: eid, OfferingEID: eid}
	f.sections[eid] = models.Section{EID: eid, OfferingEID: eid, EnrollmentSetEID: &es}
	f.enrollments[memberKey(eid, login)] = models.Enrollment{EnrollmentSetEID: eid, Login: login, Status: models.MemberEnrolled}
	f.sectionMember[memberKey(eid, login)] = models.SectionMembership{SectionEID: eid, Login: login, Status: models.MemberEnrolled}
}

type fakeOrgs struct {
	units     map[int]*models.OrgUnit
	inserted  []int
	finds     int
	insertErr error
}

func (f *fakeOrgs) FindByUnit(ctx context.Context, unit int) (*models.OrgUnit, error) {
	f.finds++
	if o, ok := f.units[unit]; ok {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeOrgs) InsertPlaceholder(ctx context.Context, unit int, description string) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if f.units == nil {
		f.units = map[int]*models.OrgUnit{}
	}
	if _, ok := f.units[unit]; ok {
		return false, nil
	}
	f.units[unit] = &models.OrgUnit{OrgUnit: unit, Description: description}
	f.inserted = append(f.inserted, unit)
	return true, nil
}

type fakeRequestLog struct {
	entries   []models.RequestLog
	flagged   map[string]time.Time
	insertErr error
	cutoff    time.Time
}

func (f *fakeRequestLog) Insert(ctx context.Context, entry *models.RequestLog) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRequestLog) FlagUpdatedUser(ctx context.Context, login string, at time.Time) (bool, error) {
	if f.flagged == nil {
		f.flagged = map[string]time.Time{}
	}
	if _, ok := f.flagged[login]; ok {
		return false, nil
	}
	f.flagged[login] = at
	return true, nil
}

func (f *fakeRequestLog) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	kept := f.entries[:0]
	var removed int64
	for _, e := range f.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *fakeRequestLog) ListByLogin(ctx context.Context, login string, limit int) ([]models.RequestLog, error) {
	var out []models.RequestLog
	for _, e := range f.entries {
		if e.Login == login {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTemplates map[string]*models.EmailTemplate

func (f fakeTemplates) Get(key string) (*models.EmailTemplate, bool) {
	t, ok := f[key]
	return t, ok
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeQueue struct {
	jobs []jobs.Job
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
