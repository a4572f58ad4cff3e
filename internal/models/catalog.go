package models

import "time"

// TermOffer is the perpetual term used for offer-holder program memberships.
const TermOffer = "OFFER"

// Course set categories.
const (
	CategoryDegree     = "degree"
	CategoryDepartment = "Department"
	CategoryCourse     = "course"
	CategoryResidence  = "residence"
)

// Membership roles and status.
const (
	RoleStudent      = "Student"
	RoleParticipant  = "Participant"
	MemberEnrolled   = "enrolled"
	GradingSchemeNA  = "NA"
	DefaultCredits   = "0"
	OfferingActive   = "active"
	EnrollmentSetCat = "category"
)

// AcademicSession is a term; eid is a year or TermOffer.
type AcademicSession struct {
	EID       string    `db:"eid" json:"eid"`
	Title     string    `db:"title" json:"title"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
}

// CourseSet groups canonical courses and offerings.
type CourseSet struct {
	EID      string `db:"eid" json:"eid"`
	Title    string `db:"title" json:"title"`
	Category string `db:"category" json:"category"`
}

// CanonicalCourse is the term-independent course.
type CanonicalCourse struct {
	EID   string `db:"eid" json:"eid"`
	Title string `db:"title" json:"title"`
}

// CourseOffering is a canonical course run in a session, eid "CODE,TERM".
type CourseOffering struct {
	EID                string     `db:"eid" json:"eid"`
	CanonicalCourseEID string     `db:"canonical_course_eid" json:"canonicalCourseEid"`
	SessionEID         string     `db:"session_eid" json:"sessionEid"`
	Title              string     `db:"title" json:"title"`
	Status             string     `db:"status" json:"status"`
	StartDate          *time.Time `db:"start_date" json:"startDate,omitempty"`
	EndDate            *time.Time `db:"end_date" json:"endDate,omitempty"`
	SessionStart       *time.Time `db:"session_start" json:"sessionStart,omitempty"`
}

// EnrollmentSet belongs to an offering.
type EnrollmentSet struct {
	EID         string `db:"eid" json:"eid"`
	OfferingEID string `db:"offering_eid" json:"offeringEid"`
	Title       string `db:"title" json:"title"`
	Category    string `db:"category" json:"category"`
	Credits     string `db:"default_credits" json:"defaultCredits"`
}

// Section is the unit memberships are recorded against.
type Section struct {
	EID              string  `db:"eid" json:"eid"`
	OfferingEID      string  `db:"offering_eid" json:"offeringEid"`
	EnrollmentSetEID *string `db:"enrollment_set_eid" json:"enrollmentSetEid,omitempty"`
	Title            string  `db:"title" json:"title"`
	Category         string  `db:"category" json:"category"`
}

// SectionMembership links a user to a section with a role.
type SectionMembership struct {
	SectionEID string `db:"section_eid" json:"sectionEid"`
	Login      string `db:"login" json:"login"`
	Role       string `db:"role" json:"role"`
	Status     string `db:"status" json:"status"`
}

// Enrollment links a user to an enrollment set.
type Enrollment struct {
	EnrollmentSetEID string `db:"enrollment_set_eid" json:"enrollmentSetEid"`
	Login            string `db:"login" json:"login"`
	Status           string `db:"status" json:"status"`
	Credits          string `db:"credits" json:"credits"`
	GradingScheme    string `db:"grading_scheme" json:"gradingScheme"`
}

// OfferingMembership links a user to an offering with a role.
type OfferingMembership struct {
	OfferingEID string `db:"offering_eid" json:"offeringEid"`
	Login       string `db:"login" json:"login"`
	Role        string `db:"role" json:"role"`
	Status      string `db:"status" json:"status"`
}

// EnrolledSection is a section the user holds an enrollment in, with its offering dates.
type EnrolledSection struct {
	SectionEID       string     `db:"section_eid" json:"sectionEid"`
	EnrollmentSetEID string     `db:"enrollment_set_eid" json:"enrollmentSetEid"`
	OfferingEID      string     `db:"offering_eid" json:"offeringEid"`
	StartDate        *time.Time `db:"start_date" json:"startDate,omitempty"`
	EndDate          *time.Time `db:"end_date" json:"endDate,omitempty"`
}
