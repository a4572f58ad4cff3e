package service

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

// Attribute keys sent by the feed.
const (
	AttrLogin            = "CN"
	AttrSurname          = "Surname"
	AttrGivenName        = "Given Name"
	AttrPreferredName    = "preferredName"
	AttrEmail            = "Email"
	AttrAffiliation      = "eduPersonPrimaryAffiliation"
	AttrFaculty          = "uctFaculty"
	AttrMobile           = "mobile"
	AttrCourseCodes      = "uctCourseCode"
	AttrProgramCodes     = "uctProgramCode"
	AttrOrgName          = "OU"
	AttrDateOfBirth      = "DOB"
	AttrResidence        = "uctResidenceCode"
	AttrOrgUnit          = "uctorgaffiliation"
	AttrTitle            = "uctPersonalTitle"
	AttrStudentStatus    = "uctStudentStatus"
	AttrStaffStatus      = "employeeStatus"
	AttrThirdPartyStatus = "ucttpstatus"
)

// Upstream sometimes prefixes the active status with a stray digit.
const glitchActiveStatus = "1Active"

var statusSources = []struct {
	attr       string
	careerType string
}{
	{AttrStudentStatus, models.CareerStudent},
	{AttrStaffStatus, models.CareerStaff},
	{AttrThirdPartyStatus, models.CareerThirdParty},
}

// FieldMapper turns a decoded attribute map into a Candidate.
type FieldMapper struct {
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFieldMapper constructs a FieldMapper.
func NewFieldMapper(validate *validator.Validate, logger *zap.Logger) *FieldMapper {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldMapper{validator: validate, logger: logger}
}

// Login extracts the normalised login, or "" when absent.
func Login(attrs map[string]string) string {
	return strings.ToLower(strings.TrimSpace(attrs[AttrLogin]))
}

// Map validates and normalises attrs. A missing login yields ErrInvalidUsername and a missing
// affiliation ErrNoAffiliation.
func (m *FieldMapper) Map(attrs map[string]string) (*models.Candidate, error) {
	login := Login(attrs)
	if login == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidUsername, "invalid username")
	}

	c := &models.Candidate{
		Login:         login,
		Surname:       normalizeName(attrs[AttrSurname]),
		GivenName:     normalizeName(attrs[AttrGivenName]),
		Title:         strings.TrimSpace(attrs[AttrTitle]),
		DateOfBirth:   strings.TrimSpace(attrs[AttrDateOfBirth]),
		OrgUnit:       strings.TrimSpace(attrs[AttrOrgUnit]),
		OrgName:       strings.TrimSpace(attrs[AttrOrgName]),
		FacultyCode:   strings.ToUpper(strings.TrimSpace(attrs[AttrFaculty])),
		CourseCodes:   splitCodes(attrs[AttrCourseCodes]),
		ProgramCodes:  splitCodes(attrs[AttrProgramCodes]),
		ResidenceCode: strings.TrimSpace(attrs[AttrResidence]),
	}
	if preferred := normalizeName(attrs[AttrPreferredName]); preferred != "" {
		c.GivenName = preferred
	}
	if mobile := attrs[AttrMobile]; mobile != "" {
		c.Mobile = FixPhoneNumber(mobile)
	}

	for _, src := range statusSources {
		if status, ok := attrs[src.attr]; ok {
			c.CareerType = src.careerType
			c.Status = strings.TrimSpace(status)
			break
		}
	}
	if c.CareerType == "" {
		c.CareerType = strings.ToLower(strings.TrimSpace(attrs[AttrAffiliation]))
	}
	if c.CareerType == "" {
		return nil, appErrors.Clone(appErrors.ErrNoAffiliation, "no eduPersonPrimaryAffiliation")
	}

	switch {
	case c.Status == "" && c.CareerType == models.CareerStudent:
		c.Status = models.StatusInactive
	case c.Status == "":
		c.Status = models.StatusActive
	case c.Status == glitchActiveStatus:
		c.Status = models.StatusActive
	}

	if email := strings.TrimSpace(attrs[AttrEmail]); m.validEmail(email) {
		c.Email = email
	} else if email != "" {
		m.logger.Debug("ignoring invalid email", zap.String("login", login), zap.String("email", email))
	}

	return c, nil
}

func (m *FieldMapper) validEmail(email string) bool {
	if email == "" || !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
		return false
	}
	return m.validator.Var(email, "email") == nil
}

func normalizeName(name string) string {
	return strings.TrimSpace(norm.NFC.String(name))
}

func splitCodes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, part := range parts {
		if code := strings.ToUpper(strings.TrimSpace(part)); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
