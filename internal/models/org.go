package models

// OrgUnit maps a numeric org unit to its 3-letter code. Code is nil for self-registered placeholders.
type OrgUnit struct {
	OrgUnit     int     `db:"org_unit" json:"orgUnit"`
	Code        *string `db:"org" json:"code,omitempty"`
	Description string  `db:"description" json:"description"`
}
