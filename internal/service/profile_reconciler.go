package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/spml-provisioner/internal/models"
)

const dateOfBirthLayout = "20060102"

// ReconcileInput is everything the reconciler needs. Account and both profiles are copied
// before being changed.
type ReconcileInput struct {
	Account   *models.Account
	System    *models.Profile
	User      *models.Profile
	Candidate *models.Candidate
	Type      AccountType
	OrgCode   string
	Now       time.Time
}

// ReconcileResult carries the updated copies.
type ReconcileResult struct {
	Account          *models.Account
	System           *models.Profile
	User             *models.Profile
	SendNotification bool
	Warnings         []string
}

type mergeOutcome int

const (
	// system copy absent: populate everything
	mergeFirst mergeOutcome = iota
	// system and user copies agree: advance both
	mergeSynced
	// user copy was hand-edited: advance system only
	mergeDiverged
)

type profileSaver interface {
	Save(ctx context.Context, actingAs models.Identity, profile *models.Profile) error
}

type accountUpdater interface {
	Update(ctx context.Context, account *models.Account) error
}

// ProfileReconciler applies feed values to an account and its two profiles.
type ProfileReconciler struct {
	accounts accountUpdater
	profiles profileSaver
	mobiles  *MobileNormalizer
	domain   string
	logger   *zap.Logger
}

// NewProfileReconciler constructs a ProfileReconciler. domain is the institution mail domain
// used for synthetic login@domain addresses.
func NewProfileReconciler(accounts accountUpdater, profiles profileSaver, mobiles *MobileNormalizer, domain string, logger *zap.Logger) *ProfileReconciler {
	if mobiles == nil {
		mobiles = NewMobileNormalizer("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileReconciler{accounts: accounts, profiles: profiles, mobiles: mobiles, domain: strings.TrimPrefix(domain, "@"), logger: logger}
}

// InstitutionAddress is the synthetic address for login.
func (r *ProfileReconciler) InstitutionAddress(login string) string {
	return login + "@" + r.domain
}

// Reconcile computes the new account and profile state. It performs no I/O.
func (r *ProfileReconciler) Reconcile(in ReconcileInput) ReconcileResult {
	acct := in.Account.Clone()
	sys := in.System.Clone()
	usr := in.User.Clone()
	c := in.Candidate
	res := ReconcileResult{}

	// Names count as present only when both the system copy and the account mirror are set.
	switch twoCopy(notBlank(sys.Surname) && acct.LastName != "", sys.Surname, usr.Surname, exactEqual, false) {
	case mergeDiverged:
		sys.Surname = strPtr(c.Surname)
	default:
		sys.Surname, usr.Surname, acct.LastName = strPtr(c.Surname), strPtr(c.Surname), c.Surname
	}
	switch twoCopy(notBlank(sys.GivenName) && acct.FirstName != "", sys.GivenName, usr.GivenName, exactEqual, false) {
	case mergeDiverged:
		sys.GivenName = strPtr(c.GivenName)
	default:
		sys.GivenName, usr.GivenName, acct.FirstName = strPtr(c.GivenName), strPtr(c.GivenName), c.GivenName
	}

	if c.HasEmail() {
		res.SendNotification = r.mergeEmail(acct, sys, usr, c)
	}

	if c.Status == models.StatusInactive {
		if in.Type.ForceInactiveEmail {
			forced := r.InstitutionAddress(c.Login)
			sys.Mail, usr.Mail, acct.Email = strPtr(forced), strPtr(forced), forced
		}
		if acct.Properties.DeactivatedSince == nil {
			acct.Properties.DeactivatedSince = timePtr(in.Now)
		}
	}
	if c.Status == models.StatusActive || c.Status == models.StatusAdmitted {
		acct.Properties.DeactivatedSince = nil
		if acct.Properties.ContentRemoved != nil {
			acct.Properties.DataClearedAt = acct.Properties.ContentRemoved
			acct.Properties.ContentRemoved = nil
		}
	}
	acct.Properties.LastSpmlUpdate = timePtr(in.Now)

	if c.Title != "" {
		switch twoCopy(notBlank(sys.Title), sys.Title, usr.Title, exactEqual, true) {
		case mergeDiverged:
			sys.Title = strPtr(c.Title)
		default:
			sys.Title, usr.Title = strPtr(c.Title), strPtr(c.Title)
		}
	}

	acct.Type = in.Type.Effective
	sys.PrimaryAffiliation, usr.PrimaryAffiliation = strPtr(in.Type.Effective), strPtr(in.Type.Effective)
	sys.CommonName, usr.CommonName = strPtr(c.Login), strPtr(c.Login)

	r.mergeMobile(sys, usr, c.Mobile)

	switch twoCopy(sys.DepartmentNumber != nil, sys.DepartmentNumber, usr.DepartmentNumber, exactEqual, false) {
	case mergeDiverged:
		sys.DepartmentNumber = strPtr(c.OrgUnit)
	default:
		sys.DepartmentNumber, usr.DepartmentNumber = strPtr(c.OrgUnit), strPtr(c.OrgUnit)
	}
	if in.OrgCode != "" {
		switch twoCopy(sys.OrganizationalUnit != nil, sys.OrganizationalUnit, usr.OrganizationalUnit, exactEqual, false) {
		case mergeDiverged:
			sys.OrganizationalUnit = strPtr(in.OrgCode)
		default:
			sys.OrganizationalUnit, usr.OrganizationalUnit = strPtr(in.OrgCode), strPtr(in.OrgCode)
		}
	}

	if c.DateOfBirth != "" {
		dob, err := time.Parse(dateOfBirthLayout, c.DateOfBirth)
		if err != nil {
			res.Warnings = append(res.Warnings, "cannot parse date of birth: "+c.DateOfBirth)
		} else {
			sys.DateOfBirth = &dob
		}
	}

	res.Account, res.System, res.User = acct, sys, usr
	return res
}

// mergeEmail applies the email rules and reports whether this was the first address the
// system profile ever received.
func (r *ProfileReconciler) mergeEmail(acct *models.Account, sys, usr *models.Profile, c *models.Candidate) bool {
	incoming := c.Email
	notify := false

	switch {
	case notBlank(sys.Mail):
		if twoCopy(true, sys.Mail, usr.Mail, strings.EqualFold, true) == mergeDiverged {
			sys.Mail = strPtr(incoming)
		} else {
			sys.Mail, usr.Mail, acct.Email = strPtr(incoming), strPtr(incoming), incoming
		}
	case sys.Mail == nil:
		// Account created outside the feed: keep an address the account already carries.
		sys.Mail = strPtr(incoming)
		notify = true
		if acct.Email == "" {
			usr.Mail, acct.Email = strPtr(incoming), incoming
		} else {
			usr.Mail = strPtr(acct.Email)
		}
	default:
		sys.Mail, usr.Mail, acct.Email = strPtr(incoming), strPtr(incoming), incoming
	}

	// Repairs accounts whose user copy still holds the pre-migration login@domain address.
	if c.IsStudent() && sys.Mail != nil && usr.Mail != nil && !strings.EqualFold(*sys.Mail, *usr.Mail) &&
		strings.EqualFold(*usr.Mail, r.InstitutionAddress(c.Login)) {
		usr.Mail, acct.Email = strPtr(incoming), incoming
	}
	return notify
}

func (r *ProfileReconciler) mergeMobile(sys, usr *models.Profile, incoming string) {
	normalized := r.mobiles.Normalize(incoming)
	if sys.Mobile == nil {
		sys.Mobile, usr.Mobile = strPtr(incoming), strPtr(incoming)
		sys.NormalizedMobile, usr.NormalizedMobile = strPtr(normalized), strPtr(normalized)
		return
	}

	systemNormalized := sys.NormalizedMobile
	if systemNormalized == nil {
		systemNormalized = r.mobiles.normalizePtr(sys.Mobile)
	}
	userNormalized := r.mobiles.normalizePtr(usr.Mobile)
	if twoCopy(true, systemNormalized, userNormalized, exactEqual, false) == mergeDiverged {
		sys.Mobile, sys.NormalizedMobile = strPtr(incoming), strPtr(normalized)
		return
	}
	sys.Mobile, usr.Mobile = strPtr(incoming), strPtr(incoming)
	sys.NormalizedMobile, usr.NormalizedMobile = strPtr(normalized), strPtr(normalized)
}

// Commit writes the account, then the system profile as actor, then the user profile as the
// account owner. Every write is attempted; failures are logged and the first one returned.
func (r *ProfileReconciler) Commit(ctx context.Context, actor models.Identity, res ReconcileResult) error {
	login := res.Account.Login
	var firstErr error
	record := func(operation string, err error) {
		if err == nil {
			return
		}
		r.logger.Warn("failed to save reconciled state",
			zap.String("login", login),
			zap.String("operation", operation),
			zap.Error(err),
		)
		if firstErr == nil {
			firstErr = err
		}
	}

	updatedBy := actor.Login
	res.Account.UpdatedBy = &updatedBy
	record("account", r.accounts.Update(ctx, res.Account))
	record("system_profile", r.profiles.Save(ctx, actor, res.System))
	record("user_profile", r.profiles.Save(ctx, models.IdentityOf(res.Account), res.User))
	return firstErr
}

// twoCopy classifies an incoming value against the current system and user copies.
// With blankUserFollows a missing or blank user copy is treated as in sync.
func twoCopy(present bool, system, user *string, equal func(a, b string) bool, blankUserFollows bool) mergeOutcome {
	if !present || system == nil {
		return mergeFirst
	}
	if user == nil || *user == "" {
		if blankUserFollows {
			return mergeSynced
		}
		if user == nil {
			return mergeDiverged
		}
	}
	if equal(*system, *user) {
		return mergeSynced
	}
	return mergeDiverged
}

func exactEqual(a, b string) bool { return a == b }

func notBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
