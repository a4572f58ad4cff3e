package models

// Career types carried by the feed.
const (
	CareerStudent    = "student"
	CareerStaff      = "staff"
	CareerThirdParty = "thirdparty"
)

// Feed status values.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusAdmitted = "Admitted"
)

// Effective account types derived from career type and status.
const (
	TypeStudent            = "student"
	TypeStaff              = "staff"
	TypeThirdParty         = "thirdparty"
	TypeOffer              = "offer"
	TypeInactiveStudent    = "inactiveStudent"
	TypeInactiveStaff      = "inactiveStaff"
	TypeInactiveThirdParty = "inactiveThirdparty"
)

// Candidate is the normalized form of one inbound add request.
type Candidate struct {
	Login         string   `json:"login"`
	GivenName     string   `json:"givenName"`
	Surname       string   `json:"surname"`
	Email         string   `json:"email,omitempty"`
	Mobile        string   `json:"mobile,omitempty"`
	Title         string   `json:"title,omitempty"`
	DateOfBirth   string   `json:"dateOfBirth,omitempty"`
	OrgUnit       string   `json:"orgUnit,omitempty"`
	OrgName       string   `json:"orgName,omitempty"`
	CareerType    string   `json:"careerType"`
	Status        string   `json:"status"`
	FacultyCode   string   `json:"facultyCode,omitempty"`
	CourseCodes   []string `json:"courseCodes,omitempty"`
	ProgramCodes  []string `json:"programCodes,omitempty"`
	ResidenceCode string   `json:"residenceCode,omitempty"`
}

// HasEmail reports whether the feed offered a valid address.
func (c *Candidate) HasEmail() bool {
	return c.Email != ""
}

// HasCourses reports whether at least one concrete course code was supplied.
func (c *Candidate) HasCourses() bool {
	return len(c.CourseCodes) > 0
}

// IsStudent reports whether the raw career type is student.
func (c *Candidate) IsStudent() bool {
	return c.CareerType == CareerStudent
}
