package models

import "time"

// ProfileKind distinguishes the feed-owned profile from the owner-editable one.
type ProfileKind string

const (
	ProfileSystem ProfileKind = "SystemMutableType"
	ProfileUser   ProfileKind = "UserMutableType"
)

// Profile is an extended person record. Nil fields are unset; blank strings are set-but-empty.
type Profile struct {
	ID                 string      `db:"id" json:"id"`
	AccountID          string      `db:"account_id" json:"accountId"`
	Kind               ProfileKind `db:"kind" json:"kind"`
	Surname            *string     `db:"surname" json:"surname,omitempty"`
	GivenName          *string     `db:"given_name" json:"givenName,omitempty"`
	Mail               *string     `db:"mail" json:"mail,omitempty"`
	Mobile             *string     `db:"mobile" json:"mobile,omitempty"`
	NormalizedMobile   *string     `db:"normalized_mobile" json:"normalizedMobile,omitempty"`
	DepartmentNumber   *string     `db:"department_number" json:"departmentNumber,omitempty"`
	OrganizationalUnit *string     `db:"organizational_unit" json:"organizationalUnit,omitempty"`
	Title              *string     `db:"title" json:"title,omitempty"`
	CommonName         *string     `db:"common_name" json:"commonName,omitempty"`
	PrimaryAffiliation *string     `db:"primary_affiliation" json:"primaryAffiliation,omitempty"`
	DateOfBirth        *time.Time  `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	HidePrivateInfo    bool        `db:"hide_private_info" json:"hidePrivateInfo"`
	HidePublicInfo     bool        `db:"hide_public_info" json:"hidePublicInfo"`
	UpdatedBy          *string     `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Surname = cloneString(p.Surname)
	out.GivenName = cloneString(p.GivenName)
	out.Mail = cloneString(p.Mail)
	out.Mobile = cloneString(p.Mobile)
	out.NormalizedMobile = cloneString(p.NormalizedMobile)
	out.DepartmentNumber = cloneString(p.DepartmentNumber)
	out.OrganizationalUnit = cloneString(p.OrganizationalUnit)
	out.Title = cloneString(p.Title)
	out.CommonName = cloneString(p.CommonName)
	out.PrimaryAffiliation = cloneString(p.PrimaryAffiliation)
	out.DateOfBirth = cloneTime(p.DateOfBirth)
	out.UpdatedBy = cloneString(p.UpdatedBy)
	return &out
}
